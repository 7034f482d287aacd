package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chirpnet/chirp/pkg/health"
	pkgmiddleware "github.com/chirpnet/chirp/pkg/middleware"
)

// RouterConfig wires the handlers, validators, and cross-cutting middleware
// into the route tree.
type RouterConfig struct {
	Auth       *AuthHandler
	Follow     *FollowHandler
	Validators *Validators
	Health     *health.Handler
	CORS       pkgmiddleware.CORSConfig
	Logger     *slog.Logger
}

// NewRouter builds the chi route tree.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(pkgmiddleware.Recovery(cfg.Logger))
	r.Use(pkgmiddleware.RequestLogging(cfg.Logger))
	r.Use(pkgmiddleware.Tracing("chirp-api"))
	r.Use(pkgmiddleware.RequestLogger(cfg.Logger))
	r.Use(pkgmiddleware.Metrics())
	r.Use(pkgmiddleware.CORS(cfg.CORS))

	r.Get("/health/live", cfg.Health.Live)
	r.Get("/health/ready", cfg.Health.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	v := cfg.Validators
	requireAuth := Validate(v.AccessToken(), cfg.Logger)
	requireVerified := RequireVerified(cfg.Logger)

	r.Route("/api/v1/users", func(r chi.Router) {
		r.With(Validate(v.Register(), cfg.Logger)).Post("/register", cfg.Auth.Register)
		r.With(Validate(v.Login(), cfg.Logger)).Post("/login", cfg.Auth.Login)
		r.With(Validate(v.OAuthGoogle(), cfg.Logger)).Get("/oauth/google", cfg.Auth.OAuthGoogle)

		r.With(Validate(v.RefreshToken(), cfg.Logger)).Post("/refresh-token", cfg.Auth.RefreshToken)
		r.With(requireAuth, Validate(v.RefreshToken(), cfg.Logger)).Post("/logout", cfg.Auth.Logout)

		r.With(Validate(v.EmailVerifyToken(), cfg.Logger)).Post("/verify-email", cfg.Auth.VerifyEmail)
		r.With(requireAuth).Post("/resend-verify-email", cfg.Auth.ResendVerifyEmail)

		r.With(Validate(v.ForgotPassword(), cfg.Logger)).Post("/forgot-password", cfg.Auth.ForgotPassword)
		r.With(Validate(v.VerifyForgotPassword(), cfg.Logger)).Post("/verify-forgot-password", cfg.Auth.VerifyForgotPassword)
		r.With(Validate(v.ResetPassword(), cfg.Logger)).Post("/reset-password", cfg.Auth.ResetPassword)

		r.With(requireAuth, requireVerified, Validate(v.ChangePassword(), cfg.Logger)).
			Put("/change-password", cfg.Auth.ChangePassword)

		r.With(requireAuth).Get("/me", cfg.Auth.GetMe)
		r.With(requireAuth, requireVerified, Validate(v.UpdateProfile(), cfg.Logger)).
			Patch("/me", cfg.Auth.UpdateProfile)

		r.With(requireAuth, requireVerified, Validate(v.Follow(), cfg.Logger)).
			Post("/follow", cfg.Follow.Follow)
		r.With(requireAuth, requireVerified, Validate(v.Unfollow(), cfg.Logger)).
			Delete("/follow/{user_id}", cfg.Follow.Unfollow)

		r.Get("/{username}", cfg.Auth.GetByUsername)
	})

	return r
}

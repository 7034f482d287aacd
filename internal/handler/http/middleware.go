package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chirpnet/chirp/internal/domain"
	"github.com/chirpnet/chirp/internal/validation"
	apperrors "github.com/chirpnet/chirp/pkg/errors"
	"github.com/chirpnet/chirp/pkg/httputil"
)

type inputContextKey struct{}

// requestInput returns the parsed validation input for the request, decoding
// the JSON body at most once per request regardless of how many schemas run.
func requestInput(r *http.Request) (*validation.Input, *http.Request, error) {
	if in, ok := r.Context().Value(inputContextKey{}).(*validation.Input); ok {
		return in, r, nil
	}

	in := &validation.Input{
		Header: r.Header,
		Query:  r.URL.Query(),
		Params: map[string]string{},
	}

	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			in.Params[key] = rctx.URLParams.Values[i]
		}
	}

	if r.Body != nil && r.ContentLength != 0 {
		body := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, r, apperrors.BadRequest("request body is not valid JSON")
		}
		in.Body = body
	}

	r = r.WithContext(context.WithValue(r.Context(), inputContextKey{}, in))
	return in, r, nil
}

// Validate runs a schema against the request. On success the resolved state
// is stored in the context, merged over whatever earlier schemas resolved.
func Validate(schema *validation.Schema, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			in, r, err := requestInput(r)
			if err != nil {
				httputil.WriteError(w, r, err, logger)
				return
			}

			st, err := schema.Run(r.Context(), in)
			if err != nil {
				httputil.WriteError(w, r, err, logger)
				return
			}

			merged := mergeState(validation.StateFromContext(r.Context()), st)
			next.ServeHTTP(w, r.WithContext(validation.NewContext(r.Context(), merged)))
		})
	}
}

// mergeState folds the newly resolved state over the prior one so chained
// schemas (access token, then endpoint body) see each other's results.
func mergeState(prior, st *validation.State) *validation.State {
	if st.User == nil {
		st.User = prior.User
	}
	if st.Session == nil {
		st.Session = prior.Session
	}
	if st.AccessClaims == nil {
		st.AccessClaims = prior.AccessClaims
	}
	if st.RefreshClaims == nil {
		st.RefreshClaims = prior.RefreshClaims
	}
	if st.EmailVerifyClaims == nil {
		st.EmailVerifyClaims = prior.EmailVerifyClaims
	}
	if st.ForgotPasswordClaims == nil {
		st.ForgotPasswordClaims = prior.ForgotPasswordClaims
	}
	return st
}

// RequireVerified rejects requests whose access token was minted for an
// unverified account. It must run after the access-token schema.
func RequireVerified(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := validation.StateFromContext(r.Context()).AccessClaims
			if claims == nil {
				httputil.WriteError(w, r, apperrors.Unauthorized("access token is required"), logger)
				return
			}
			if claims.VerifyStatus != domain.VerifyStatusVerified {
				httputil.WriteError(w, r, apperrors.Forbidden("account email is not verified"), logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

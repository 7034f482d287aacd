// Package event publishes user-domain events to Kafka. Email delivery is
// handled by a downstream worker consuming these topics, which is why the
// registration and password-reset payloads carry the relevant one-time
// tokens.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chirpnet/chirp/internal/domain"
	pkgkafka "github.com/chirpnet/chirp/pkg/kafka"
)

// Kafka topics for user domain events.
const (
	TopicUserRegistered         = "chirp.user.registered"
	TopicVerifyEmailRequested   = "chirp.user.verify_email_requested"
	TopicPasswordResetRequested = "chirp.user.password_reset_requested"
	TopicUserFollowed           = "chirp.user.followed"
)

const (
	aggregateTypeUser = "user"
	sourceAPI         = "chirp-api"
)

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	Username         string `json:"username"`
	EmailVerifyToken string `json:"email_verify_token"`
}

// VerifyEmailRequestedData is the payload for a re-sent verification email.
type VerifyEmailRequestedData struct {
	UserID           string `json:"user_id"`
	Email            string `json:"email"`
	EmailVerifyToken string `json:"email_verify_token"`
}

// PasswordResetRequestedData is the payload for a forgot-password request.
type PasswordResetRequestedData struct {
	UserID              string `json:"user_id"`
	Email               string `json:"email"`
	ForgotPasswordToken string `json:"forgot_password_token"`
}

// UserFollowedData is the payload for a new follow edge.
type UserFollowedData struct {
	UserID         string `json:"user_id"`
	FollowedUserID string `json:"followed_user_id"`
}

// Producer publishes user domain events.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// PublishUserRegistered announces a new account, carrying the verification
// token the email worker needs.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:               user.ID,
		Email:            user.Email,
		Name:             user.Name,
		Username:         user.Username,
		EmailVerifyToken: user.EmailVerifyToken,
	}
	if err := p.publish(ctx, TopicUserRegistered, user.ID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published user.registered event",
		slog.String("user_id", user.ID),
	)
	return nil
}

// PublishVerifyEmailRequested announces a fresh verification token.
func (p *Producer) PublishVerifyEmailRequested(ctx context.Context, user *domain.User) error {
	data := VerifyEmailRequestedData{
		UserID:           user.ID,
		Email:            user.Email,
		EmailVerifyToken: user.EmailVerifyToken,
	}
	if err := p.publish(ctx, TopicVerifyEmailRequested, user.ID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published verify_email_requested event",
		slog.String("user_id", user.ID),
	)
	return nil
}

// PublishPasswordResetRequested announces a forgot-password token.
func (p *Producer) PublishPasswordResetRequested(ctx context.Context, user *domain.User) error {
	data := PasswordResetRequestedData{
		UserID:              user.ID,
		Email:               user.Email,
		ForgotPasswordToken: user.ForgotPasswordToken,
	}
	if err := p.publish(ctx, TopicPasswordResetRequested, user.ID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published password_reset_requested event",
		slog.String("user_id", user.ID),
	)
	return nil
}

// PublishUserFollowed announces a new follow edge.
func (p *Producer) PublishUserFollowed(ctx context.Context, userID, followedUserID string) error {
	data := UserFollowedData{UserID: userID, FollowedUserID: followedUserID}
	if err := p.publish(ctx, TopicUserFollowed, userID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published user.followed event",
		slog.String("user_id", userID),
		slog.String("followed_user_id", followedUserID),
	)
	return nil
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	ev, err := pkgkafka.NewEvent(topic, aggregateID, aggregateTypeUser, sourceAPI, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if err := p.kafka.Publish(ctx, topic, ev); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/utafrali/identity-service/internal/domain"
	pkgkafka "github.com/utafrali/identity-service/pkg/kafka"
)

// Kafka topic constants for identity domain events.
const (
	TopicUserRegistered    = "identity.user.registered"
	TopicUserEmailVerified = "identity.user.email_verified"
	TopicUserRoleChanged   = "identity.user.role_changed"
	TopicUserDeleted       = "identity.user.deleted"
	TopicResetRequested    = "identity.user.reset_requested"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from this service.
const SourceIdentityService = "identity-service"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	UserID   int64  `json:"user_id"`
	Email    string `json:"email"`
	Provider string `json:"provider"`
	Role     string `json:"role"`
}

// UserEmailVerifiedData is the payload for a user.email_verified event.
type UserEmailVerifiedData struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
}

// UserRoleChangedData is the payload for a user.role_changed event.
type UserRoleChangedData struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// UserDeletedData is the payload for a user.deleted event.
type UserDeletedData struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
}

// ResetRequestedData is the payload for a reset_requested event. The token
// value itself is delivered so the notification consumer can build the
// reset link; it never appears in logs.
type ResetRequestedData struct {
	Email     string `json:"email"`
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
}

// Producer publishes identity domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the identity service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User, identity *domain.Identity, role *domain.UserRole) error {
	data := UserRegisteredData{
		UserID:   user.ID,
		Email:    user.Email,
		Provider: identity.Provider,
		Role:     role.Name,
	}
	return p.publish(ctx, TopicUserRegistered, user.ID, data)
}

// PublishUserEmailVerified publishes a user.email_verified event.
func (p *Producer) PublishUserEmailVerified(ctx context.Context, userID int64, email string) error {
	return p.publish(ctx, TopicUserEmailVerified, userID, UserEmailVerifiedData{UserID: userID, Email: email})
}

// PublishUserRoleChanged publishes a user.role_changed event.
func (p *Producer) PublishUserRoleChanged(ctx context.Context, role *domain.UserRole) error {
	return p.publish(ctx, TopicUserRoleChanged, role.UserID, UserRoleChangedData{UserID: role.UserID, Role: role.Name})
}

// PublishUserDeleted publishes a user.deleted event.
func (p *Producer) PublishUserDeleted(ctx context.Context, userID int64, email string) error {
	return p.publish(ctx, TopicUserDeleted, userID, UserDeletedData{UserID: userID, Email: email})
}

// PublishResetRequested publishes a reset_requested event carrying the
// freshly issued token.
func (p *Producer) PublishResetRequested(ctx context.Context, token *domain.ResetToken) error {
	data := ResetRequestedData{
		Email:     token.Email,
		Token:     token.Token,
		TokenType: token.TokenType,
	}

	event, err := pkgkafka.NewEvent(TopicResetRequested, token.Email, AggregateTypeUser, SourceIdentityService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", TopicResetRequested, err)
	}

	if err := p.kafka.Publish(ctx, TopicResetRequested, event); err != nil {
		return fmt.Errorf("publish %s event: %w", TopicResetRequested, err)
	}

	p.logger.DebugContext(ctx, "published reset_requested event",
		slog.String("email", token.Email),
		slog.String("token_type", token.TokenType),
	)

	return nil
}

func (p *Producer) publish(ctx context.Context, topic string, userID int64, data any) error {
	aggregateID := strconv.FormatInt(userID, 10)

	event, err := pkgkafka.NewEvent(topic, aggregateID, AggregateTypeUser, SourceIdentityService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.Int64("user_id", userID),
	)

	return nil
}

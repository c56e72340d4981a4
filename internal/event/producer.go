package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vidtube/backend/internal/domain"
	pkgkafka "github.com/vidtube/backend/pkg/kafka"
	"github.com/vidtube/backend/pkg/logger"
)

// Kafka topics for account events.
var (
	TopicUserRegistered      = pkgkafka.Topic("user", "registered")
	TopicUserLoggedIn        = pkgkafka.Topic("user", "logged_in")
	TopicUserLoggedOut       = pkgkafka.Topic("user", "logged_out")
	TopicUserTokenRefreshed  = pkgkafka.Topic("user", "token_refreshed")
	TopicUserPasswordChanged = pkgkafka.Topic("user", "password_changed")
	TopicUserUpdated         = pkgkafka.Topic("user", "updated")
)

// AggregateTypeUser is the aggregate type of every account event.
const AggregateTypeUser = "user"

// SourceUserService identifies events emitted by this service.
const SourceUserService = "vidtube-users"

// UserData is the payload of registered and updated events. It never
// carries credentials.
type UserData struct {
	ID         string `json:"id"`
	UserName   string `json:"user_name"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Avatar     string `json:"avatar,omitempty"`
	CoverImage string `json:"cover_image,omitempty"`
}

// SessionData is the payload of login, logout, refresh and password events.
type SessionData struct {
	UserID string `json:"user_id"`
}

// Producer publishes account events.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates an account event producer on top of publisher.
func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

// PublishUserRegistered publishes user.registered.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicUserRegistered, user.ID, userData(user))
}

// PublishUserUpdated publishes user.updated after account or media changes.
func (p *Producer) PublishUserUpdated(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicUserUpdated, user.ID, userData(user))
}

// PublishUserLoggedIn publishes user.logged_in.
func (p *Producer) PublishUserLoggedIn(ctx context.Context, userID string) error {
	return p.publish(ctx, TopicUserLoggedIn, userID, SessionData{UserID: userID})
}

// PublishUserLoggedOut publishes user.logged_out.
func (p *Producer) PublishUserLoggedOut(ctx context.Context, userID string) error {
	return p.publish(ctx, TopicUserLoggedOut, userID, SessionData{UserID: userID})
}

// PublishTokenRefreshed publishes user.token_refreshed.
func (p *Producer) PublishTokenRefreshed(ctx context.Context, userID string) error {
	return p.publish(ctx, TopicUserTokenRefreshed, userID, SessionData{UserID: userID})
}

// PublishPasswordChanged publishes user.password_changed.
func (p *Producer) PublishPasswordChanged(ctx context.Context, userID string) error {
	return p.publish(ctx, TopicUserPasswordChanged, userID, SessionData{UserID: userID})
}

func (p *Producer) publish(ctx context.Context, topic, userID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, userID, AggregateTypeUser, SourceUserService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}
	// Set for requests that passed the auth gate.
	if actor := logger.UserIDFromContext(ctx); actor != "" {
		event.WithMetadata("actor_id", actor)
	}

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published account event",
		slog.String("topic", topic),
		slog.String("user_id", userID),
	)
	return nil
}

func userData(u *domain.User) UserData {
	return UserData{
		ID:         u.ID,
		UserName:   u.UserName,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.Avatar,
		CoverImage: u.CoverImage,
	}
}

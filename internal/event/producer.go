package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Den-Varenik/social-network/internal/domain"
	pkgkafka "github.com/Den-Varenik/social-network/pkg/kafka"
)

// Kafka topic constants for user domain events.
const (
	TopicUserRegistered = "socialnetwork.user.registered"
	TopicUserLoggedIn   = "socialnetwork.user.logged_in"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from this service.
const SourceAuthService = "social-network"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	AccountType string `json:"account_type"`
}

// UserLoggedInData is the payload for a user.logged_in event.
type UserLoggedInData struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// Producer publishes user domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:          user.ID,
		Email:       user.Email,
		AccountType: user.AccountType,
	}

	return p.publish(ctx, TopicUserRegistered, user.ID, data)
}

// PublishUserLoggedIn publishes a user.logged_in event.
func (p *Producer) PublishUserLoggedIn(ctx context.Context, user *domain.User) error {
	data := UserLoggedInData{
		ID:    user.ID,
		Email: user.Email,
	}

	return p.publish(ctx, TopicUserLoggedIn, user.ID, data)
}

func (p *Producer) publish(ctx context.Context, topic string, userID int64, data any) error {
	event, err := pkgkafka.NewEvent(topic, strconv.FormatInt(userID, 10), AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published user event",
		slog.String("topic", topic),
		slog.Int64("user_id", userID),
	)

	return nil
}

// This file implements PushService: device token registration and the
// service-side entry point for sending notifications through the queue.

package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fittrack/server/internal/common"
	"github.com/fittrack/server/internal/logging"
	"github.com/fittrack/server/internal/server/models"
	"github.com/fittrack/server/internal/server/push"
	"github.com/fittrack/server/internal/server/repositories/repomanager"
)

// QueuePublisher enqueues a push job for asynchronous delivery.
type QueuePublisher interface {
	Publish(ctx context.Context, job *push.Job) error
}

type PushService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	publisher   QueuePublisher
	logger      logging.Logger
}

// NewPushService builds the service. publisher may be nil when no queue is
// configured; notifications are then dropped with a log line instead of
// failing their callers.
func NewPushService(db *sql.DB, m repomanager.RepositoryManager, publisher QueuePublisher, logger logging.Logger) *PushService {
	return &PushService{
		db:          db,
		repomanager: m,
		publisher:   publisher,
		logger:      logger,
	}
}

// RegisterToken stores a device token for the user. Registering a token that
// already exists reassigns it to this user and reactivates it.
func (s *PushService) RegisterToken(ctx context.Context, userID, token, platform, deviceID string) (*models.PushToken, error) {
	if token == "" || (platform != "ios" && platform != "android") {
		return nil, common.ErrInvalidInput
	}

	repo := s.repomanager.PushTokens(s.db)

	stored, err := repo.Upsert(ctx, &models.PushToken{
		UserID:   userID,
		Token:    token,
		Platform: platform,
		DeviceID: deviceID,
	})
	if err != nil {
		return nil, common.StoreError(err)
	}
	return stored, nil
}

// DeactivateToken disables one of the user's own tokens.
func (s *PushService) DeactivateToken(ctx context.Context, userID, token string) error {
	repo := s.repomanager.PushTokens(s.db)

	err := repo.Deactivate(ctx, token, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return common.StoreError(err)
	}
	return nil
}

func (s *PushService) ListTokens(ctx context.Context, userID string) ([]*models.PushToken, error) {
	repo := s.repomanager.PushTokens(s.db)

	tokens, err := repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, common.StoreError(err)
	}
	return tokens, nil
}

// NotifyUser queues one notification for every active device of the user.
// Having no devices, or no queue, is not an error.
func (s *PushService) NotifyUser(ctx context.Context, userID, title, body string, data map[string]string) error {
	tokens, err := s.repomanager.PushTokens(s.db).ListActiveByUser(ctx, userID)
	if err != nil {
		return common.StoreError(err)
	}
	if len(tokens) == 0 {
		return nil
	}
	if s.publisher == nil {
		s.logger.Debug(ctx, "push queue not configured, notification dropped", "user_id", userID)
		return nil
	}

	job := &push.Job{
		UserID: userID,
		Title:  title,
		Body:   body,
		Data:   data,
	}
	for _, t := range tokens {
		job.Tokens = append(job.Tokens, t.Token)
	}

	if err := s.publisher.Publish(ctx, job); err != nil {
		return common.ErrInternal
	}
	return nil
}

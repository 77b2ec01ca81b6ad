package sessions

import (
	"context"
	"time"

	"github.com/fittrack/server/internal/server/models"
)

// Aggregates holds the per-session metrics computed from stored frames
// when the session is completed.
type Aggregates struct {
	TotalReps    int
	AvgFormScore float64
	MaxFormScore float64
	MinFormScore float64
	CommonErrors []string
}

// Repository stores exercise sessions and their per-frame analyses.
type Repository interface {
	Create(ctx context.Context, s *models.ExerciseSession) error
	GetByID(ctx context.Context, id string) (*models.ExerciseSession, error)
	ListByUser(ctx context.Context, userID string, exerciseType string, limit, offset int) ([]*models.ExerciseSession, error)
	// Complete closes an active session, writing the final status and the
	// aggregates in one statement.
	Complete(ctx context.Context, id string, status string, endedAt time.Time, durationSeconds int, agg *Aggregates) error
	SetArchiveKey(ctx context.Context, id string, key string) error
	// Delete removes the session row only; the caller deletes the frames
	// explicitly in the same transaction.
	Delete(ctx context.Context, id string, userID string) error

	InsertFrames(ctx context.Context, sessionID string, frames []*models.FrameAnalysis) (int, error)
	DeleteFrames(ctx context.Context, sessionID string) error
	ListFrames(ctx context.Context, sessionID string, limit, offset int) ([]*models.FrameAnalysis, error)
	// AggregateFrames computes session metrics from the stored frames.
	AggregateFrames(ctx context.Context, sessionID string) (*Aggregates, error)
}

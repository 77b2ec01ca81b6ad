package progress

import (
	"context"
	"time"

	"github.com/fittrack/server/internal/server/models"
)

// Repository stores achievements, workout plans and per-day aggregates.
type Repository interface {
	// AwardAchievement inserts the achievement unless the user already has
	// one of the same type. It reports whether a row was inserted.
	AwardAchievement(ctx context.Context, a *models.Achievement) (bool, error)
	ListAchievements(ctx context.Context, userID string) ([]*models.Achievement, error)

	CreatePlan(ctx context.Context, p *models.WorkoutPlan) error
	GetPlan(ctx context.Context, id string) (*models.WorkoutPlan, error)
	ListPlans(ctx context.Context, userID string) ([]*models.WorkoutPlan, error)
	UpdatePlan(ctx context.Context, p *models.WorkoutPlan) error
	DeletePlan(ctx context.Context, id string, userID string) error

	// UpsertDailyStats folds one completed session into the (user, date)
	// row, creating it on first workout of the day.
	UpsertDailyStats(ctx context.Context, userID string, date time.Time, reps int, durationSeconds int, formScore float64) error
	ListDailyStats(ctx context.Context, userID string, from, to time.Time) ([]*models.DailyStats, error)
	CountCompletedSessions(ctx context.Context, userID string) (int, error)
}

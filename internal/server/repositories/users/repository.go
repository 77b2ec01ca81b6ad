// Package users declares the repository contract for account records.
package users

import (
	"context"
	"time"

	"github.com/fittrack/server/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)

	// UpdateLastLogin is best-effort: a failure must not fail the login.
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	UpdatePassword(ctx context.Context, id string, passwordHash string) error

	// RecordFailedLogin increments the failure counter and returns the new
	// count. ResetFailedLogins clears the counter and any lockout.
	RecordFailedLogin(ctx context.Context, id string) (int, error)
	ResetFailedLogins(ctx context.Context, id string) error
	SetLockedUntil(ctx context.Context, id string, until time.Time) error

	// UpdateWorkoutMetrics refreshes the aggregated counters shown on the
	// user profile.
	UpdateWorkoutMetrics(ctx context.Context, id string, totalWorkouts, totalReps int, avgFormScore float64) error
}

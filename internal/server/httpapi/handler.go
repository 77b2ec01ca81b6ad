// Package httpapi exposes the REST API: request decoding, bearer-token
// authentication and mapping service errors onto HTTP statuses. All business
// rules live in the services layer.
package httpapi

import (
	"context"
	"time"

	"github.com/fittrack/server/internal/logging"
	"github.com/fittrack/server/internal/server/models"
	"github.com/fittrack/server/internal/server/services"
)

// AuthService is the slice of the auth service the handlers use.
type AuthService interface {
	Register(ctx context.Context, user *models.User, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, *services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	Authenticate(ctx context.Context, accessToken string) (string, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string, tokens ...string) error
}

type SessionService interface {
	Start(ctx context.Context, userID, exerciseType string, settings []byte, notes string) (*models.ExerciseSession, error)
	Get(ctx context.Context, userID, sessionID string) (*models.ExerciseSession, error)
	List(ctx context.Context, userID, exerciseType string, limit, offset int) ([]*models.ExerciseSession, error)
	AppendFrames(ctx context.Context, userID, sessionID string, frames []*models.FrameAnalysis) (int, error)
	ListFrames(ctx context.Context, userID, sessionID string, limit, offset int) ([]*models.FrameAnalysis, error)
	Complete(ctx context.Context, userID, sessionID string) (*models.ExerciseSession, string, error)
	Cancel(ctx context.Context, userID, sessionID string) error
	Delete(ctx context.Context, userID, sessionID string) error
	ConfirmArchiveUpload(ctx context.Context, userID, sessionID, key string) error
	GetArchiveURL(ctx context.Context, userID, sessionID string) (string, error)
}

type PushService interface {
	RegisterToken(ctx context.Context, userID, token, platform, deviceID string) (*models.PushToken, error)
	DeactivateToken(ctx context.Context, userID, token string) error
	ListTokens(ctx context.Context, userID string) ([]*models.PushToken, error)
}

type ProgressService interface {
	ListAchievements(ctx context.Context, userID string) ([]*models.Achievement, error)
	CreatePlan(ctx context.Context, plan *models.WorkoutPlan) (*models.WorkoutPlan, error)
	GetPlan(ctx context.Context, userID, planID string) (*models.WorkoutPlan, error)
	ListPlans(ctx context.Context, userID string) ([]*models.WorkoutPlan, error)
	UpdatePlan(ctx context.Context, plan *models.WorkoutPlan) error
	DeletePlan(ctx context.Context, userID, planID string) error
	DailyStats(ctx context.Context, userID string, from, to time.Time) ([]*models.DailyStats, error)
}

// Handler carries the services behind the REST endpoints.
type Handler struct {
	auth     AuthService
	sessions SessionService
	push     PushService
	progress ProgressService
	logger   logging.Logger
}

func NewHandler(auth AuthService, sessions SessionService, push PushService, progress ProgressService, logger logging.Logger) *Handler {
	return &Handler{
		auth:     auth,
		sessions: sessions,
		push:     push,
		progress: progress,
		logger:   logger,
	}
}

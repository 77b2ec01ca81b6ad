// Package pushtokens declares the repository contract for device push tokens.
package pushtokens

import (
	"context"
	"time"

	"github.com/fittrack/server/internal/server/models"
)

type Repository interface {
	// Upsert registers a push token. The token string is globally unique:
	// if it already exists it is reassigned to the given user, updated and
	// reactivated.
	Upsert(ctx context.Context, token *models.PushToken) (*models.PushToken, error)

	// Deactivate disables the token owned by userID. Returns
	// common.ErrNotFound when the (token, user) pair does not exist.
	Deactivate(ctx context.Context, token, userID string) error

	// DeactivateByToken disables a token regardless of owner; used when the
	// provider reports the device as unregistered.
	DeactivateByToken(ctx context.Context, token string) error

	ListActiveByUser(ctx context.Context, userID string) ([]*models.PushToken, error)

	// TouchLastUsed is best-effort bookkeeping after a successful send.
	TouchLastUsed(ctx context.Context, token string, at time.Time) error
}

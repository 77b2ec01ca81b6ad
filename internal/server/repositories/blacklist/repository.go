// Package blacklist implements the revocation ledger: the persisted set of
// token identifiers that must be rejected before their natural expiry.
package blacklist

import (
	"context"
	"time"

	"github.com/fittrack/server/internal/server/models"
)

// Ledger is consulted on every refresh and on every authenticated request.
// Revoke must be idempotent: revoking an already-revoked jti is a no-op and
// never fails the surrounding operation.
type Ledger interface {
	Revoke(ctx context.Context, entry *models.RevokedToken) error
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// PruneExpired removes entries whose recorded expiry is strictly before
	// now. Pruning must never produce a false negative for an unexpired
	// entry. Returns the number of rows removed.
	PruneExpired(ctx context.Context, now time.Time) (int64, error)
}

// CachePrimer is implemented by ledgers that keep a read cache in front of
// the durable store. Revocations written transactionally through a bare
// repository must be primed into the cache once the transaction commits.
type CachePrimer interface {
	Prime(ctx context.Context, entries []*models.RevokedToken)
}

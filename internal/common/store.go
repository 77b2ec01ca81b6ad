package common

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// StoreError classifies a storage failure. Timeouts and connection-level
// failures become ErrStoreUnavailable, the one category a caller may retry;
// everything else becomes ErrInternal.
func StoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return ErrStoreUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrStoreUnavailable
	}

	// Postgres SQLSTATE classes: 08 connection exception, 53 insufficient
	// resources, 57 operator intervention (shutdown in progress).
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "08", "53", "57":
			return ErrStoreUnavailable
		}
	}

	return ErrInternal
}

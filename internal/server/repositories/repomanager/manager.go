package repomanager

import (
	"context"
	"database/sql"

	"github.com/fittrack/server/internal/dbx"
	"github.com/fittrack/server/internal/server/repositories/blacklist"
	"github.com/fittrack/server/internal/server/repositories/progress"
	"github.com/fittrack/server/internal/server/repositories/pushtokens"
	"github.com/fittrack/server/internal/server/repositories/sessions"
	"github.com/fittrack/server/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can run
// several of them inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Blacklist(db dbx.DBTX) blacklist.Ledger
	PushTokens(db dbx.DBTX) pushtokens.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Progress(db dbx.DBTX) progress.Repository
}

package models

import "time"

// Token kinds embedded in the "type" claim. A token's kind must match the
// operation it is used for.
const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
)

// Revocation reasons recorded in the blacklist.
const (
	RevocationReasonLogout          = "logout"
	RevocationReasonPasswordChanged = "password_changed"
	RevocationReasonSecurityAlert   = "security_alert"
)

// RevokedToken is one blacklist entry: a token identifier that must be
// rejected until its natural expiry passes. Entries are append-only.
type RevokedToken struct {
	JTI       string    `db:"jti"`
	UserID    string    `db:"user_id"`
	TokenType string    `db:"token_type"`
	ExpiresAt time.Time `db:"expires_at"`
	Reason    string    `db:"reason"`

	BlacklistedAt time.Time `db:"blacklisted_at"`
}

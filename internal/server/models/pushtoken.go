package models

import "time"

// PushToken is a device messaging token registered by a mobile client.
// A token string is globally unique; re-registering reassigns it to the
// current user and reactivates it.
type PushToken struct {
	ID       string `db:"id"`
	UserID   string `db:"user_id"`
	Token    string `db:"token"`
	Platform string `db:"platform"` // "ios" or "android"
	DeviceID string `db:"device_id"`
	IsActive bool   `db:"is_active"`

	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
	LastUsedAt *time.Time `db:"last_used_at"`
}

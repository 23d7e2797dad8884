package store

import "errors"

var (
	ErrNotFound = errors.New("not found")
)

// Setting keys.
const (
	KeyAuthToken       = "auth_token"
	KeyHistorySyncedAt = "history_synced_at"
)

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

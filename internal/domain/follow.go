package domain

import "time"

// Follow records that a user tracks a congressman. Congressman is an opaque
// display name as supplied by the client.
type Follow struct {
	ID          int64
	Username    string
	Congressman string
	CreatedAt   time.Time
}

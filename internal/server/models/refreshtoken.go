package models

import "time"

// RefreshToken is a server-side refresh credential. Token is the opaque
// value carried in the client's refresh cookie.
type RefreshToken struct {
	UserID  string
	Token   string
	Expires time.Time
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.Expires)
}

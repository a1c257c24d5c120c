// Package refreshtokens stores the server-side refresh credentials behind
// the client's HTTP-only refresh cookie. Memory, PostgreSQL and Redis
// backends share one contract.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authpipe/internal/server/models"
)

// Repository defines operations for issuing, retrieving, rotating and
// revoking refresh tokens.
type Repository interface {
	// Create stores a new refresh token for userID with an expiry of now+validity.
	Create(ctx context.Context, userID string, token string, validity time.Duration) error

	// Find looks up a refresh token by its opaque value. A missing token
	// yields common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Rotate atomically consumes oldToken and stores newToken for userID.
	// If oldToken was already consumed it yields common.ErrorNotFound and
	// stores nothing.
	Rotate(ctx context.Context, oldToken, userID, newToken string, validity time.Duration) error

	// Delete removes a refresh token. Deleting a missing token is not an error.
	Delete(ctx context.Context, token string) error
}

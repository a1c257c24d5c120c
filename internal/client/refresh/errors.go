package refresh

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/authpipe/internal/common"
)

// ErrSessionChanged is the cause of a RefreshError when the session was
// logged out, or logged in again, while the refresh was in flight. The new
// token is discarded.
var ErrSessionChanged = errors.New("session changed during refresh")

// RefreshError reports a failed refresh cycle. Every caller waiting on the
// cycle receives the same value. It matches common.ErrRefreshFailed.
type RefreshError struct {
	// Status is the refresh endpoint's HTTP status, 0 when no response arrived.
	Status int
	Cause  error
}

func (e *RefreshError) Error() string {
	switch {
	case e.Status != 0 && e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", common.ErrRefreshFailed, http.StatusText(e.Status), e.Cause)
	case e.Status != 0:
		return fmt.Sprintf("%s: %s", common.ErrRefreshFailed, http.StatusText(e.Status))
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", common.ErrRefreshFailed, e.Cause)
	default:
		return common.ErrRefreshFailed.Error()
	}
}

func (e *RefreshError) Unwrap() error { return e.Cause }

func (e *RefreshError) Is(target error) bool { return target == common.ErrRefreshFailed }

package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 1 << 10

var errEmptyToken = errors.New("refresh response carried no access token")

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPRefresher calls the refresh endpoint with an empty POST. The refresh
// credential travels out of band (an HTTP-only cookie in the Doer's jar).
type HTTPRefresher struct {
	doer      Doer
	url       string
	userAgent string
}

func NewHTTPRefresher(doer Doer, url string, userAgent string) *HTTPRefresher {
	return &HTTPRefresher{doer: doer, url: url, userAgent: userAgent}
}

type tokenResponse struct {
	Access      string `json:"access"`
	AccessToken string `json:"access_token"`
}

func (r *HTTPRefresher) Refresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, nil)
	if err != nil {
		return "", &RefreshError{Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.doer.Do(req)
	if err != nil {
		return "", &RefreshError{Cause: err}
	}
	//nolint:errcheck // best-effort cleanup on return
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		rerr := &RefreshError{Status: resp.StatusCode}
		if msg := strings.TrimSpace(string(body)); msg != "" {
			rerr.Cause = errors.New(msg)
		}
		return "", rerr
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", &RefreshError{Status: resp.StatusCode, Cause: fmt.Errorf("decode refresh response: %w", err)}
	}

	token := tr.Access
	if token == "" {
		token = tr.AccessToken
	}
	if token == "" {
		return "", &RefreshError{Status: resp.StatusCode, Cause: errEmptyToken}
	}
	return token, nil
}

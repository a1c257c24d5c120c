// Package session owns login, logout and the forced-logout hook the refresh
// coordinator calls when a refresh cycle fails.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/dmitrijs2005/authpipe/internal/client/tokenstore"
	"github.com/dmitrijs2005/authpipe/internal/common"
	"github.com/dmitrijs2005/authpipe/internal/logging"
)

// Doer sends HTTP requests. It must use the Jar so the refresh cookie set
// at login is sent on refresh.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	BaseURL    string
	LoginPath  string
	LogoutPath string
}

type Service struct {
	doer   Doer
	cfg    Config
	store  tokenstore.Store
	jar    *Jar
	logger logging.Logger

	mu           sync.Mutex
	loggedIn     bool
	onLoggedOut  func()
	forcedLogout int
}

func NewService(doer Doer, cfg Config, store tokenstore.Store, jar *Jar, logger logging.Logger) *Service {
	if cfg.LoginPath == "" {
		cfg.LoginPath = common.DefaultLoginPath
	}
	if cfg.LogoutPath == "" {
		cfg.LogoutPath = common.DefaultLogoutPath
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = logging.Nop()
	}
	_, loggedIn := store.Get()
	return &Service{
		doer:     doer,
		cfg:      cfg,
		store:    store,
		jar:      jar,
		logger:   logger.With("component", "session"),
		loggedIn: loggedIn,
	}
}

// OnLoggedOut registers the hook run after any logout, typically
// "show the login screen".
func (s *Service) OnLoggedOut(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLoggedOut = fn
}

func (s *Service) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

// ForcedLogouts counts OnUnauthenticated calls.
func (s *Service) ForcedLogouts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forcedLogout
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Access string `json:"access"`
}

// Login exchanges credentials for an access token. The server sets the
// refresh cookie on the same response.
func (s *Service) Login(ctx context.Context, username string, password []byte) error {
	body, err := json.Marshal(credentials{Username: username, Password: string(password)})
	if err != nil {
		return err
	}

	resp, err := s.post(ctx, s.cfg.LoginPath, body)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	//nolint:errcheck // best-effort cleanup on return
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("login: %w", common.ErrorUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("login: unexpected status %s", resp.Status)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("login: decode response: %w", err)
	}
	if lr.Access == "" {
		return fmt.Errorf("login: %w", common.ErrInvalidToken)
	}

	s.store.Set(lr.Access)
	s.mu.Lock()
	s.loggedIn = true
	s.mu.Unlock()

	s.logger.Info(ctx, "logged in", "username", username)
	return nil
}

// Logout tells the server to revoke the refresh credential and drops local
// state. Local state is dropped and the OnLoggedOut hook runs even when the
// server call fails.
func (s *Service) Logout(ctx context.Context) error {
	resp, err := s.post(ctx, s.cfg.LogoutPath, nil)
	s.clearLocal()
	s.notify()
	if err != nil {
		return fmt.Errorf("logout request: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	s.logger.Info(ctx, "logged out")
	return nil
}

// OnUnauthenticated is the forced-logout path: the refresh credential is
// no longer accepted. It clears session state and runs the OnLoggedOut hook.
func (s *Service) OnUnauthenticated(ctx context.Context) {
	s.clearLocal()

	s.mu.Lock()
	s.forcedLogout++
	s.mu.Unlock()

	s.logger.Warn(ctx, "session expired, logged out")
	s.notify()
}

// OnRefreshDiscarded runs when a refresh finished after the session had
// already ended. The server may have rotated the refresh cookie into the
// jar on that response, so the jar is emptied again unless the user has
// logged in since.
func (s *Service) OnRefreshDiscarded(ctx context.Context) {
	if s.LoggedIn() {
		s.logger.Debug(ctx, "stale refresh discarded, newer session kept")
		return
	}
	if s.jar != nil {
		s.jar.Reset()
	}
	s.logger.Info(ctx, "stale refresh discarded after logout")
}

func (s *Service) notify() {
	s.mu.Lock()
	hook := s.onLoggedOut
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (s *Service) clearLocal() {
	s.store.Clear()
	if s.jar != nil {
		s.jar.Reset()
	}
	s.mu.Lock()
	s.loggedIn = false
	s.mu.Unlock()
}

func (s *Service) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+path, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.doer.Do(req)
}

package cli

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/dmitrijs2005/authpipe/internal/client/client"
	"github.com/dmitrijs2005/authpipe/internal/client/config"
	"github.com/dmitrijs2005/authpipe/internal/client/endpoints"
	"github.com/dmitrijs2005/authpipe/internal/client/metrics"
	"github.com/dmitrijs2005/authpipe/internal/client/refresh"
	"github.com/dmitrijs2005/authpipe/internal/client/session"
	"github.com/dmitrijs2005/authpipe/internal/client/tokenstore"
	"github.com/dmitrijs2005/authpipe/internal/filex"
	"github.com/dmitrijs2005/authpipe/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
)

const userAgent = "authpipe-cli"

type App struct {
	config      *config.Config
	logger      logging.Logger
	store       tokenstore.Store
	db          *sql.DB
	session     *session.Service
	coordinator *refresh.Coordinator
	client      *client.Client
	classifier  *endpoints.Classifier
	registry    *prometheus.Registry

	userName string
	reader   *bufio.Reader
	out      io.Writer
}

// NewApp builds the whole pipeline from c. The caller owns the returned App
// and must Close it.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	baseURL, err := client.NormalizeBaseURL(c.BaseURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}

	a := &App{
		config:   c,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	jar, err := session.NewJar()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	hc := &http.Client{Jar: jar, Timeout: c.RequestTimeout}

	m, err := metrics.NewPrometheus(a.registry)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.session = session.NewService(hc, session.Config{
		BaseURL:    baseURL,
		LoginPath:  c.LoginPath,
		LogoutPath: c.LogoutPath,
	}, a.store, jar, logger)
	a.session.OnLoggedOut(func() {
		a.userName = ""
		fmt.Fprintln(a.out, "Session ended, please log in again.")
	})

	a.coordinator = refresh.NewCoordinator(
		refresh.NewHTTPRefresher(hc, baseURL+c.RefreshPath, userAgent),
		a.store,
		refresh.WithSink(a.session),
		refresh.WithLogger(logger),
		refresh.WithMetrics(m),
		refresh.WithTimeout(c.RefreshTimeout),
	)

	a.classifier = endpoints.NewClassifier(c.PublicPaths)
	a.client, err = client.New(client.Options{
		BaseURL:     baseURL,
		Transport:   hc,
		Store:       a.store,
		Classifier:  a.classifier,
		Coordinator: a.coordinator,
		Logger:      logger,
		Metrics:     m,
		UserAgent:   userAgent,
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	return a, nil
}

// openStore picks the token store: SQLite-backed when a session DB is
// configured, memory otherwise.
func (a *App) openStore(ctx context.Context) error {
	if a.config.SessionDB == "" {
		a.store = tokenstore.NewMemoryStore()
		return nil
	}

	path, err := filex.EnsureParentDir(a.config.SessionDB)
	if err != nil {
		return fmt.Errorf("open session db: %w", err)
	}

	db, err := tokenstore.OpenDB(ctx, path)
	if err != nil {
		return fmt.Errorf("open session db: %w", err)
	}
	s, err := tokenstore.OpenSessionStore(ctx, tokenstore.NewSQLiteRepository(db), a.config.SessionID, a.logger)
	if err != nil {
		_ = db.Close()
		return err
	}
	a.db = db
	a.store = s
	a.logger.Info(ctx, "session opened", "session_id", s.SessionID())
	return nil
}

// Run starts the REPL on stdin and blocks until the user exits.
func (a *App) Run(ctx context.Context) {
	defer a.Close(ctx)

	fmt.Fprintln(a.out, "authpipe demo client (type 'help' for commands)")
	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader), a.out)
}

func (a *App) Close(ctx context.Context) {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error(ctx, "close session db", "error", err)
	}
	a.db = nil
}

func (a *App) status() string {
	if a.userName != "" {
		return "(" + a.userName + ")"
	}
	if a.isLoggedIn() {
		return "(logged in)"
	}
	return ""
}

func (a *App) isLoggedIn() bool {
	return a.session.LoggedIn()
}

func (a *App) Login(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	defer clear(password)

	if err := a.session.Login(ctx, username, password); err != nil {
		return err
	}
	a.userName = username
	fmt.Fprintln(a.out, "Logged in.")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	err := a.session.Logout(ctx)
	if s, ok := a.store.(*tokenstore.SessionStore); ok {
		if endErr := s.End(ctx); endErr != nil {
			a.logger.Error(ctx, "end session", "error", endErr)
		}
	}
	return err
}

func (a *App) Get(ctx context.Context, path string) error {
	a.logger.Debug(ctx, "get", "url", a.client.URL(path), "auth", a.classifier.RequiresAuth(path))

	var body json.RawMessage
	if err := a.client.GetJSON(ctx, path, &body); err != nil {
		return err
	}
	fmt.Fprintln(a.out, string(body))
	return nil
}

// Burst fires n GETs at once, cycling through paths, and prints a summary.
func (a *App) Burst(ctx context.Context, n int, paths []string) error {
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = a.client.GetJSON(ctx, paths[i%len(paths)], nil)
		}()
	}
	wg.Wait()

	var failed int
	for i, err := range errs {
		if err != nil {
			failed++
			a.logger.Debug(ctx, "burst request failed", "path", paths[i%len(paths)], "error", err)
		}
	}
	st := a.coordinator.Stats()
	fmt.Fprintf(a.out, "%d requests: %d ok, %d failed; refreshes so far: %d\n", n, n-failed, failed, st.Refreshes)
	return nil
}

func (a *App) Stats(ctx context.Context) error {
	st := a.coordinator.Stats()
	fmt.Fprintf(a.out, "target=%s public=%s\n", a.client.URL("/"), strings.Join(a.classifier.PublicPaths(), ","))
	fmt.Fprintf(a.out, "refreshes=%d failures=%d waiters=%d\n", st.Refreshes, st.Failures, st.Waiters)
	return writeMetrics(a.out, a.registry)
}

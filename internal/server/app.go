// Package server wires the demo authentication server: it selects the
// refresh token backend, seeds the demo account, and runs the HTTP API and
// the optional gRPC endpoint until a shutdown signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/authpipe/internal/common"
	"github.com/dmitrijs2005/authpipe/internal/logging"
	"github.com/dmitrijs2005/authpipe/internal/server/config"
	"github.com/dmitrijs2005/authpipe/internal/server/httpapi"
	"github.com/dmitrijs2005/authpipe/internal/server/refreshtokens"
	"github.com/dmitrijs2005/authpipe/internal/server/services"
	"github.com/dmitrijs2005/authpipe/internal/server/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/authpipe/internal/server/grpc"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config      *config.Config
	logger      logging.Logger
	userService *services.UserService
	handler     http.Handler
	closers     []io.Closer
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	app := &App{config: c, logger: logger}

	tokens, err := app.openRefreshTokens(ctx)
	if err != nil {
		return nil, err
	}

	us := services.NewUserService(users.NewMemoryRepository(), tokens, c)
	app.userService = us

	if c.DemoUser != "" && c.DemoPassword != "" {
		_, err := us.Register(ctx, c.DemoUser, []byte(c.DemoPassword))
		if err != nil && !errors.Is(err, common.ErrorAlreadyExists) {
			app.Close()
			return nil, fmt.Errorf("seed demo user: %w", err)
		}
		logger.Info(ctx, "Demo account ready", "user", c.DemoUser)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	api, err := httpapi.New(us, logger, reg, c.RefreshTokenValidityDuration)
	if err != nil {
		app.Close()
		return nil, err
	}
	api.LimitCredentials(c.LoginRateLimit, c.LoginRateBurst)
	app.handler = api.Router()

	return app, nil
}

// openRefreshTokens picks the refresh token backend: Redis, then Postgres,
// then process memory.
func (app *App) openRefreshTokens(ctx context.Context) (refreshtokens.Repository, error) {
	switch {
	case app.config.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		app.closers = append(app.closers, client)
		app.logger.Info(ctx, "Refresh tokens stored in redis", "addr", app.config.RedisAddr)
		return refreshtokens.NewRedisRepository(client, ""), nil

	case app.config.DatabaseDSN != "":
		db, err := refreshtokens.OpenPostgres(ctx, app.config.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		app.closers = append(app.closers, db)
		app.logger.Info(ctx, "Refresh tokens stored in postgres")
		return refreshtokens.NewPostgresRepository(db), nil

	default:
		app.logger.Warn(ctx, "Refresh tokens stored in memory, they will not survive a restart")
		return refreshtokens.NewMemoryRepository(), nil
	}
}

// Handler returns the HTTP API router.
func (app *App) Handler() http.Handler {
	return app.handler
}

// Close releases storage connections.
func (app *App) Close() {
	for _, c := range app.closers {
		if err := c.Close(); err != nil {
			app.logger.Error(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.EndpointAddrHTTP)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a termination signal arrives, or a
// listener fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.EndpointAddrGRPC != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()
	app.Close()

	app.logger.Info(context.Background(), "App stopped")
}

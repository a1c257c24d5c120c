// Package httpapi is the demo server's JSON API.
//
// Public routes:
//
//	POST /api/register/        rate limited per client, see LimitCredentials
//	POST /api/login/           sets the HTTP-only refresh cookie, rate limited
//	POST /api/token/refresh/   rotates the refresh cookie, returns a new access token
//	POST /api/logout/
//	GET  /api/services/, /api/team/, /api/reviews/
//
// Protected routes (bearer access token):
//
//	GET /api/profile/, /api/bookings/, /api/userdashboard/
//
// Errors are JSON bodies shaped {"error":{"code":"...","message":"..."}}.
package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/authpipe/internal/logging"
	"github.com/dmitrijs2005/authpipe/internal/server/services"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const cookiePath = "/api/"

type API struct {
	users      *services.UserService
	logger     logging.Logger
	metrics    *metrics
	gatherer   prometheus.Gatherer
	refreshTTL time.Duration
	limiter    *credentialLimiter
}

// New registers the API's collectors on reg and returns the API.
func New(users *services.UserService, logger logging.Logger, reg *prometheus.Registry, refreshTTL time.Duration) (*API, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	m, err := newMetrics(reg)
	if err != nil {
		return nil, err
	}
	return &API{
		users:      users,
		logger:     logger.With("module", "http_api"),
		metrics:    m,
		gatherer:   reg,
		refreshTTL: refreshTTL,
	}, nil
}

// Router builds the route table.
func (a *API) Router() *mux.Router {
	router := mux.NewRouter()

	router.Use(a.logRequests)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/register/", a.limitCredentials(a.register)).Methods(http.MethodPost)
	api.HandleFunc("/login/", a.limitCredentials(a.login)).Methods(http.MethodPost)
	api.HandleFunc("/token/refresh/", a.refresh).Methods(http.MethodPost)
	api.HandleFunc("/logout/", a.logout).Methods(http.MethodPost)
	api.HandleFunc("/services/", a.listServices).Methods(http.MethodGet)
	api.HandleFunc("/team/", a.listTeam).Methods(http.MethodGet)
	api.HandleFunc("/reviews/", a.listReviews).Methods(http.MethodGet)

	protected := api.PathPrefix("/").Subrouter()
	protected.Use(a.requireAuth)
	protected.HandleFunc("/profile/", a.profile).Methods(http.MethodGet)
	protected.HandleFunc("/bookings/", a.bookings).Methods(http.MethodGet)
	protected.HandleFunc("/userdashboard/", a.dashboard).Methods(http.MethodGet)

	return router
}

package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitCredentials_RejectsBurstOverflow(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	env.api.LimitCredentials(0.001, 2)
	hc := env.httpClient(t)

	for range 2 {
		resp := env.post(t, hc, "/api/login/", `{"username":"alice","password":"secret"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := env.post(t, hc, "/api/login/", `{"username":"alice","password":"secret"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	resp = env.post(t, hc, "/api/register/", `{"username":"bob","password":"pw"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode, "register shares the bucket")

	assert.Equal(t, 2.0, testutil.ToFloat64(env.api.metrics.rateLimited))

	resp = env.get(t, hc, "/api/services/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "other routes are not limited")
}

func TestLimitCredentials_PerClient(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	env.api.LimitCredentials(0.001, 1)
	router := env.api.Router()

	login := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/login/", strings.NewReader(`{"username":"alice","password":"secret"}`))
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, login("10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, login("10.0.0.1:2000"), "same host, other port")
	assert.Equal(t, http.StatusOK, login("10.0.0.2:1000"))
}

func TestLimitCredentials_Disabled(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	env.api.LimitCredentials(0.001, 1)
	env.api.LimitCredentials(0, 0)
	hc := env.httpClient(t)

	for range 5 {
		resp := env.post(t, hc, "/api/login/", `{"username":"alice","password":"secret"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

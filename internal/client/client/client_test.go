package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/authpipe/internal/client/endpoints"
	"github.com/dmitrijs2005/authpipe/internal/client/refresh"
	"github.com/dmitrijs2005/authpipe/internal/client/tokenstore"
	"github.com/dmitrijs2005/authpipe/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI accepts exactly one bearer token at a time. The refresh endpoint
// swaps it for next.
type fakeAPI struct {
	mu            sync.Mutex
	valid         string
	next          string
	refreshStatus int
	gate          chan struct{}
	authSeen      map[string][]string
	bodies        []string

	refreshCalls atomic.Int32
}

func newFakeAPI(valid, next string) *fakeAPI {
	return &fakeAPI{valid: valid, next: next, authSeen: map[string][]string{}}
}

func (a *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	a.mu.Lock()
	a.authSeen[r.URL.Path] = append(a.authSeen[r.URL.Path], auth)
	a.mu.Unlock()

	switch r.URL.Path {
	case "/api/token/refresh/":
		a.refreshCalls.Add(1)
		if a.gate != nil {
			<-a.gate
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.refreshStatus != 0 {
			w.WriteHeader(a.refreshStatus)
			_, _ = w.Write([]byte(`{"detail":"refresh token expired"}`))
			return
		}
		a.valid = a.next
		_ = json.NewEncoder(w).Encode(map[string]string{"access": a.next})
		return
	case "/api/services/", "/api/team/":
		_ = json.NewEncoder(w).Encode([]string{"cleaning"})
		return
	case "/api/teapot/":
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"detail":"short and stout"}`))
		return
	case "/api/always401/":
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	a.mu.Lock()
	valid := a.valid
	a.mu.Unlock()
	if valid == "" || auth != "Bearer "+valid {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	body, _ := io.ReadAll(r.Body)
	a.mu.Lock()
	a.bodies = append(a.bodies, string(body))
	a.mu.Unlock()

	_ = json.NewEncoder(w).Encode(map[string]string{"path": r.URL.Path, "token": strings.TrimPrefix(auth, "Bearer ")})
}

func (a *fakeAPI) seen(path string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.authSeen[path]...)
}

type sinkSpy struct{ calls atomic.Int32 }

func (s *sinkSpy) OnUnauthenticated(context.Context) { s.calls.Add(1) }

type harness struct {
	api   *fakeAPI
	srv   *httptest.Server
	store *tokenstore.MemoryStore
	coord *refresh.Coordinator
	sink  *sinkSpy
	c     *Client
}

func newHarness(t *testing.T, api *fakeAPI) *harness {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	store := tokenstore.NewMemoryStore()
	sink := &sinkSpy{}
	coord := refresh.NewCoordinator(
		refresh.NewHTTPRefresher(srv.Client(), srv.URL+"/api/token/refresh/", "test"),
		store,
		refresh.WithSink(sink),
	)
	c, err := New(Options{
		BaseURL:     srv.URL + "/api/",
		Transport:   srv.Client(),
		Store:       store,
		Coordinator: coord,
	})
	require.NoError(t, err)

	return &harness{api: api, srv: srv, store: store, coord: coord, sink: sink, c: c}
}

func readPayload(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestDo_StaleTokenScenario(t *testing.T) {
	api := newFakeAPI("", "T2")
	api.gate = make(chan struct{})
	h := newHarness(t, api)
	h.store.Set("T1")

	paths := []string{"/bookings/", "/profile/", "/userdashboard/"}

	var wg sync.WaitGroup
	payloads := make([]map[string]string, len(paths))
	errs := make([]error, len(paths))
	for i, p := range paths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			resp, err := h.c.Do(context.Background(), Request{Method: http.MethodGet, Path: p})
			errs[i] = err
			if err == nil {
				payloads[i] = readPayload(t, resp)
			}
		}(i, p)
	}

	require.Eventually(t, func() bool {
		return h.coord.Refreshing() && h.coord.Stats().Waiters == int64(len(paths)-1)
	}, 5*time.Second, time.Millisecond)
	close(h.api.gate)
	wg.Wait()

	assert.EqualValues(t, 1, h.api.refreshCalls.Load())
	for i, p := range paths {
		require.NoError(t, errs[i])
		assert.Equal(t, "/api"+p, payloads[i]["path"])
		assert.Equal(t, "T2", payloads[i]["token"])
		assert.Equal(t, []string{"Bearer T1", "Bearer T2"}, h.api.seen("/api"+p))
	}
}

func TestDo_SingleFlightAcrossConcurrentFailures(t *testing.T) {
	for _, n := range []int{1, 5, 50} {
		t.Run(fmt.Sprintf("N=%d", n), func(t *testing.T) {
			api := newFakeAPI("", "T2")
			api.gate = make(chan struct{})
			h := newHarness(t, api)
			h.store.Set("T1")

			var wg sync.WaitGroup
			var ok atomic.Int32
			for i := range n {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					resp, err := h.c.Do(context.Background(), Request{Path: fmt.Sprintf("/bookings/%d/", i)})
					if err != nil {
						return
					}
					if readPayload(t, resp)["token"] == "T2" {
						ok.Add(1)
					}
				}(i)
			}

			require.Eventually(t, func() bool {
				return h.coord.Refreshing() && h.coord.Stats().Waiters == int64(n-1)
			}, 5*time.Second, time.Millisecond)
			close(h.api.gate)
			wg.Wait()

			assert.EqualValues(t, 1, h.api.refreshCalls.Load())
			assert.EqualValues(t, n, ok.Load(), "every request settles and replays with the new token")
			assert.Zero(t, h.sink.calls.Load())
		})
	}
}

func TestDo_RefreshFailureFansOut(t *testing.T) {
	for _, n := range []int{1, 5, 50} {
		t.Run(fmt.Sprintf("N=%d", n), func(t *testing.T) {
			api := newFakeAPI("", "T2")
			api.refreshStatus = http.StatusUnauthorized
			api.gate = make(chan struct{})
			h := newHarness(t, api)
			h.store.Set("T1")

			var wg sync.WaitGroup
			errs := make([]error, n)
			for i := range n {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = h.c.Do(context.Background(), Request{Path: "/profile/"})
				}(i)
			}

			require.Eventually(t, func() bool {
				return h.coord.Refreshing() && h.coord.Stats().Waiters == int64(n-1)
			}, 5*time.Second, time.Millisecond)
			close(api.gate)
			wg.Wait()

			for _, err := range errs {
				require.ErrorIs(t, err, common.ErrRefreshFailed)
			}
			assert.EqualValues(t, 1, api.refreshCalls.Load())
			assert.EqualValues(t, 1, h.sink.calls.Load(), "sink fires once, not once per request")
			_, has := h.store.Get()
			assert.False(t, has)
		})
	}
}

func TestDo_RetryCap(t *testing.T) {
	h := newHarness(t, newFakeAPI("T1", "T2"))
	h.store.Set("T1")

	_, err := h.c.Do(context.Background(), Request{Path: "/always401/"})
	require.ErrorIs(t, err, common.ErrRetryExhausted)
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.True(t, authErr.Retried)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)

	assert.EqualValues(t, 1, h.api.refreshCalls.Load(), "no second refresh for the same request")
	assert.Equal(t, []string{"Bearer T1", "Bearer T2"}, h.api.seen("/api/always401/"))
}

func TestDo_IdleResetTriggersFreshRefresh(t *testing.T) {
	h := newHarness(t, newFakeAPI("", "T2"))
	h.store.Set("T1")

	resp, err := h.c.Do(context.Background(), Request{Path: "/profile/"})
	require.NoError(t, err)
	assert.Equal(t, "T2", readPayload(t, resp)["token"])

	h.api.mu.Lock()
	h.api.valid = ""
	h.api.next = "T3"
	h.api.mu.Unlock()

	resp, err = h.c.Do(context.Background(), Request{Path: "/profile/"})
	require.NoError(t, err)
	assert.Equal(t, "T3", readPayload(t, resp)["token"])
	assert.EqualValues(t, 2, h.api.refreshCalls.Load())
}

func TestDo_EndpointClassification(t *testing.T) {
	h := newHarness(t, newFakeAPI("T1", "T2"))
	h.store.Set("T1")
	ctx := context.Background()

	resp, err := h.c.Do(ctx, Request{Path: "/services/"})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, []string{""}, h.api.seen("/api/services/"), "public paths never carry the token")

	resp, err = h.c.Do(ctx, Request{Path: "/bookings/"})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, []string{"Bearer T1"}, h.api.seen("/api/bookings/"))

	resp, err = h.c.Do(ctx, Request{Path: "/team/", SkipAuth: true})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, []string{""}, h.api.seen("/api/team/"))

	h.store.Clear()
	resp, err = h.c.Do(ctx, Request{Path: "/teapot/"})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, []string{""}, h.api.seen("/api/teapot/"), "no token, no header")
}

func TestDo_NoTokenOnPrivatePathStillRefreshes(t *testing.T) {
	h := newHarness(t, newFakeAPI("", "T2"))

	resp, err := h.c.Do(context.Background(), Request{Path: "/profile/"})
	require.NoError(t, err)
	assert.Equal(t, "T2", readPayload(t, resp)["token"])
	assert.Equal(t, []string{"", "Bearer T2"}, h.api.seen("/api/profile/"))
}

func TestDo_ForeignOriginNeverCarriesToken(t *testing.T) {
	h := newHarness(t, newFakeAPI("T1", "T2"))
	h.store.Set("T1")

	var foreignAuth []string
	var mu sync.Mutex
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		foreignAuth = append(foreignAuth, r.Header.Get("Authorization"))
		mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(foreign.Close)

	resp, err := h.c.Do(context.Background(), Request{Path: foreign.URL + "/api/profile/"})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "a foreign 401 is handed back as is")
	mu.Lock()
	assert.Equal(t, []string{""}, foreignAuth)
	mu.Unlock()
	assert.Zero(t, h.coord.Stats().Refreshes)
	assert.Zero(t, h.api.refreshCalls.Load())
	assert.Zero(t, h.sink.calls.Load())
	tok, _ := h.store.Get()
	assert.Equal(t, "T1", tok)

	resp, err = h.c.Do(context.Background(), Request{Path: h.srv.URL + "/api/profile/"})
	require.NoError(t, err)
	assert.Equal(t, "T1", readPayload(t, resp)["token"], "absolute URLs on the base origin keep the pipeline")
	assert.Equal(t, []string{"Bearer T1"}, h.api.seen("/api/profile/"))
}

func TestDo_BusinessErrorReturnedUnchanged(t *testing.T) {
	h := newHarness(t, newFakeAPI("T1", "T2"))
	h.store.Set("T1")

	resp, err := h.c.Do(context.Background(), Request{Path: "/teapot/"})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"detail":"short and stout"}`, string(body))
	assert.Zero(t, h.coord.Stats().Refreshes)
}

func TestDo_TransportErrorNeverRefreshes(t *testing.T) {
	h := newHarness(t, newFakeAPI("T1", "T2"))
	h.store.Set("T1")
	h.srv.Close()

	_, err := h.c.Do(context.Background(), Request{Path: "/profile/"})
	require.ErrorIs(t, err, common.ErrTransport)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.MethodGet, terr.Method)
	assert.Zero(t, h.coord.Stats().Refreshes)
}

func TestDo_ReplaySendsSameBody(t *testing.T) {
	h := newHarness(t, newFakeAPI("", "T2"))
	h.store.Set("T1")

	resp, err := h.c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/bookings/",
		Body:   []byte(`{"service":1}`),
		Header: http.Header{"Content-Type": []string{"application/json"}},
	})
	require.NoError(t, err)
	resp.Body.Close()

	h.api.mu.Lock()
	defer h.api.mu.Unlock()
	assert.Equal(t, []string{`{"service":1}`}, h.api.bodies)
}

func TestJSONHelpers(t *testing.T) {
	h := newHarness(t, newFakeAPI("T1", "T2"))
	h.store.Set("T1")
	ctx := context.Background()

	var out map[string]string
	require.NoError(t, h.c.GetJSON(ctx, "/profile/", &out))
	assert.Equal(t, "/api/profile/", out["path"])

	require.NoError(t, h.c.PostJSON(ctx, "/bookings/", map[string]int{"service": 1}, nil))

	err := h.c.GetJSON(ctx, "/teapot/", &out)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTeapot, apiErr.Status)
	assert.Equal(t, "short and stout", apiErr.Message)
}

func TestNew_Validation(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	coord := refresh.NewCoordinator(refresh.RefresherFunc(func(context.Context) (string, error) { return "", nil }), store)

	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"missing base url", Options{Store: store, Coordinator: coord}, "base URL required"},
		{"missing scheme", Options{BaseURL: "example.com", Store: store, Coordinator: coord}, "missing scheme"},
		{"missing host", Options{BaseURL: "http://", Store: store, Coordinator: coord}, "missing host"},
		{"missing store", Options{BaseURL: "http://h", Coordinator: coord}, "token store required"},
		{"missing coordinator", Options{BaseURL: "http://h", Store: store}, "refresh coordinator required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			require.ErrorContains(t, err, tt.want)
		})
	}

	c, err := New(Options{BaseURL: " https://api.example.com/api/ ", Store: store, Coordinator: coord, Classifier: endpoints.NewClassifier(nil)})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/api/profile/", c.URL("profile/"))
	assert.Equal(t, "https://other/x", c.URL("https://other/x"))
}

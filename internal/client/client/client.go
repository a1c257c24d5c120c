package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/authpipe/internal/client/endpoints"
	"github.com/dmitrijs2005/authpipe/internal/client/tokenstore"
	"github.com/dmitrijs2005/authpipe/internal/common"
	"github.com/dmitrijs2005/authpipe/internal/logging"
)

const defaultUserAgent = "authpipe/0.1"

// drained bodies larger than this are closed without reading to the end.
const maxDiscard = 64 << 10

// Transport sends one HTTP request. *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Acquirer hands out a refreshed access token, sharing one refresh among
// concurrent callers. *refresh.Coordinator satisfies it.
type Acquirer interface {
	Acquire(ctx context.Context) (string, error)
}

// Metrics observes the retry path.
type Metrics interface {
	// RequestRetried is called with "replayed", "exhausted" or "refresh_failed".
	RequestRetried(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) RequestRetried(string) {}

// Options wires a Client. BaseURL, Store and Coordinator are required.
type Options struct {
	BaseURL     string
	Transport   Transport
	Store       tokenstore.Store
	Classifier  *endpoints.Classifier
	Coordinator Acquirer
	Logger      logging.Logger
	Metrics     Metrics
	UserAgent   string
}

// Request describes one call. Body is kept as bytes so a replay sends the
// same payload.
type Request struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header

	// SkipAuth never attaches the token, whatever the classifier says.
	SkipAuth bool

	// retried caps the refresh-and-replay path at one attempt. Callers
	// cannot set it.
	retried bool
}

type Client struct {
	baseURL     string
	origin      *url.URL
	transport   Transport
	store       tokenstore.Store
	classifier  *endpoints.Classifier
	coordinator Acquirer
	logger      logging.Logger
	metrics     Metrics
	userAgent   string
}

// New validates opts and returns a ready-to-use Client.
func New(opts Options) (*Client, error) {
	baseURL, err := NormalizeBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	if opts.Store == nil {
		return nil, errors.New("client: token store required")
	}
	if opts.Coordinator == nil {
		return nil, errors.New("client: refresh coordinator required")
	}

	origin, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("client: invalid base URL: %w", err)
	}

	c := &Client{
		baseURL:     baseURL,
		origin:      origin,
		transport:   opts.Transport,
		store:       opts.Store,
		classifier:  opts.Classifier,
		coordinator: opts.Coordinator,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		userAgent:   opts.UserAgent,
	}
	if c.transport == nil {
		c.transport = http.DefaultClient
	}
	if c.classifier == nil {
		c.classifier = endpoints.NewClassifier(nil)
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	c.logger = c.logger.With("component", "client")
	if c.metrics == nil {
		c.metrics = nopMetrics{}
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	return c, nil
}

// NormalizeBaseURL checks raw has a scheme and host and trims trailing slashes.
func NormalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("client: base URL required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("client: invalid base URL: %w", err)
	}
	if u.Scheme == "" {
		return "", errors.New("client: base URL missing scheme (http/https)")
	}
	if u.Host == "" {
		return "", errors.New("client: base URL missing host")
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// Do sends req through the pipeline. See the package documentation for the
// exact retry rules.
func (c *Client) Do(ctx context.Context, req Request) (*http.Response, error) {
	token, ok := c.store.Get()

	for {
		resp, foreign, err := c.send(ctx, req, token, ok)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusUnauthorized || foreign {
			return resp, nil
		}
		discard(resp)

		if req.retried {
			c.metrics.RequestRetried("exhausted")
			c.logger.Warn(ctx, "request rejected after refresh", "method", req.Method, "path", req.Path)
			return nil, &AuthError{Method: req.Method, Path: req.Path, Status: resp.StatusCode, Retried: true}
		}
		req.retried = true

		c.logger.Debug(ctx, "access token rejected, refreshing", "method", req.Method, "path", req.Path)
		token, err = c.coordinator.Acquire(ctx)
		if err != nil {
			c.metrics.RequestRetried("refresh_failed")
			return nil, err
		}
		ok = true
		c.metrics.RequestRetried("replayed")
	}
}

// send reports foreign when the target is outside the base URL's origin.
// Such requests never carry the token and a 401 from them is not ours to
// recover from.
func (c *Client) send(ctx context.Context, req Request, token string, haveToken bool) (resp *http.Response, foreign bool, err error) {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, false, err
	}

	foreign = !c.sameOrigin(httpReq.URL)
	attach := haveToken && !req.SkipAuth && !foreign && c.classifier.RequiresAuth(req.Path)
	if attach {
		httpReq.Header.Set(common.AuthorizationHeaderName, common.BearerValue(token))
	}

	c.logger.Debug(ctx, "http request",
		"method", httpReq.Method,
		"url", httpReq.URL.String(),
		"auth", attach,
		"retried", req.retried,
	)

	resp, err = c.transport.Do(httpReq)
	if err != nil {
		return nil, foreign, &TransportError{Method: httpReq.Method, URL: httpReq.URL.String(), Cause: err}
	}
	return resp, foreign, nil
}

func (c *Client) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, c.origin.Scheme) && strings.EqualFold(u.Host, c.origin.Host)
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(req.Path), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	return httpReq, nil
}

func (c *Client) buildURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// URL resolves path against the base URL. Absolute http(s) URLs are
// returned as given.
func (c *Client) URL(path string) string {
	return c.buildURL(path)
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDiscard))
	_ = resp.Body.Close()
}

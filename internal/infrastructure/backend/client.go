package backend

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/patent-assistant-client/internal/infrastructure/resilience"
)

const (
	opUpload  = "upload"
	opAnalyze = "analyze"
	opQuery   = "query"
)

// RequestRecorder receives one observation per backend round trip.
type RequestRecorder interface {
	ObserveBackendRequest(operation string, status int, duration time.Duration)
}

type nopRequestRecorder struct{}

func (nopRequestRecorder) ObserveBackendRequest(string, int, time.Duration) {}

type Options struct {
	Timeout   time.Duration
	RateLimit rate.Limit
	Burst     int
	Executor  *resilience.Executor
	Recorder  RequestRecorder
	Logger    *slog.Logger
	Transport http.RoundTripper
}

// Client talks to the analysis backend. It implements the ingest, analysis
// and query gateways.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
	recorder   RequestRecorder
	logger     *slog.Logger
}

func New(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRequestRecorder{}
	}
	if opts.Executor == nil {
		opts.Executor = resilience.NewExecutor(resilience.Config{Logger: opts.Logger})
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(opts.RateLimit, burst)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &requestIDTransport{next: opts.Transport},
		},
		limiter:  limiter,
		executor: opts.Executor,
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
}

// do sends req after the rate limiter admits it and records the outcome.
// Non-2xx responses are returned as *domain.TransportError with the body
// already consumed.
func (c *Client) do(ctx context.Context, operation string, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, transportFailure(operation, err)
	}

	requestID := requestIDFromContext(ctx)
	if requestID == "" {
		ctx = WithRequestID(ctx, newRequestID())
		req = req.WithContext(ctx)
		requestID = requestIDFromContext(ctx)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.recorder.ObserveBackendRequest(operation, 0, duration)
		c.logger.Warn("backend_request",
			"request_id", requestID,
			"operation", operation,
			"method", req.Method,
			"path", req.URL.Path,
			"duration_ms", float64(duration.Microseconds())/1000.0,
			"error", err,
		)
		return nil, transportFailure(operation, err)
	}

	c.recorder.ObserveBackendRequest(operation, resp.StatusCode, duration)
	logAttrs := []any{
		"request_id", requestID,
		"operation", operation,
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", float64(duration.Microseconds()) / 1000.0,
	}
	switch {
	case resp.StatusCode >= 500:
		c.logger.Error("backend_request", logAttrs...)
	case resp.StatusCode >= 400:
		c.logger.Warn("backend_request", logAttrs...)
	default:
		c.logger.Debug("backend_request", logAttrs...)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeHTTPError(operation, resp)
	}
	return resp, nil
}

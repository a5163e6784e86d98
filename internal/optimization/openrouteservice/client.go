// Package openrouteservice provides a solver backed by the OpenRouteService
// optimization API.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/megabin/megabin/internal/optimization"
	"github.com/megabin/megabin/internal/provider/resilience"
)

const (
	// ProviderName identifies this solver.
	ProviderName = "openrouteservice"

	// DefaultBaseURL is the OpenRouteService API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultTimeout bounds a single optimization call. Large problems take minutes.
	DefaultTimeout = 300 * time.Second

	// maxErrorBody caps how much of an error body is kept on a SolverError.
	maxErrorBody = 4 << 10
)

var tracer = otel.Tracer("github.com/megabin/megabin/internal/optimization/openrouteservice")

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenRouteService solver.
type ClientConfig struct {
	// APIKey is the ORS API key. Required for the hosted API, optional for
	// self-hosted instances.
	APIKey string

	// BaseURL is the API base URL (optional, defaults to the hosted API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 300s).
	Timeout time.Duration

	// MaxAttempts bounds calls per optimization, the first one included
	// (optional, defaults to 3).
	MaxAttempts uint64

	// RetryAmbiguous also retries failures the API may already have processed,
	// such as 500, 504 and read timeouts.
	RetryAmbiguous bool

	// RequestsPerSecond caps calls to the API (optional, 0 disables).
	RequestsPerSecond float64

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client calls the OpenRouteService optimization endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OpenRouteService solver client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		if cfg.MaxAttempts > 0 {
			clientCfg.MaxAttempts = cfg.MaxAttempts
		}
		clientCfg.RetryAmbiguous = cfg.RetryAmbiguous
		clientCfg.RequestsPerSecond = cfg.RequestsPerSecond
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Optimize posts the problem to /optimization and decodes the solution.
// Every failure is reported as an *optimization.SolverError, except a missing
// API key for the hosted API, which is an *optimization.ConfigurationError.
func (c *Client) Optimize(ctx context.Context, req *optimization.SolverRequest) (*optimization.SolverResponse, error) {
	if c.apiKey == "" && c.baseURL == DefaultBaseURL {
		return nil, &optimization.ConfigurationError{Message: "ORS_API_KEY is required for the hosted OpenRouteService API"}
	}

	ctx, span := tracer.Start(ctx, "openrouteservice.Optimize",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int("solver.jobs", len(req.Jobs)),
			attribute.Int("solver.vehicles", len(req.Vehicles)),
		),
	)
	defer span.End()

	resp, err := c.optimize(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("solver.routes", len(resp.Routes)),
		attribute.Int("solver.unassigned", len(resp.Unassigned)),
	)
	return resp, nil
}

func (c *Client) optimize(ctx context.Context, req *optimization.SolverRequest) (*optimization.SolverResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, c.solverError(0, "", "marshaling request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/optimization", bytes.NewReader(body))
	if err != nil {
		return nil, c.solverError(0, "", "creating request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", c.apiKey)
	}

	c.logger.Debug().
		Int("jobs", len(req.Jobs)).
		Int("vehicles", len(req.Vehicles)).
		Int("request_bytes", len(body)).
		Msg("requesting optimization from ORS")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.solverError(0, "", "failed to reach solver", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.solverError(resp.StatusCode, "", "reading response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.handleErrorResponse(resp.StatusCode, respBody)
	}

	var out optimization.SolverResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, c.solverError(resp.StatusCode, truncate(respBody), "malformed solver response", err)
	}
	if out.Code != nil && *out.Code != solverCodeOK {
		return nil, c.handleSolverCode(resp.StatusCode, *out.Code, respBody)
	}

	c.logger.Debug().
		Int("routes", len(out.Routes)).
		Int("unassigned", len(out.Unassigned)).
		Dur("duration", time.Since(start)).
		Msg("received optimization from ORS")

	return &out, nil
}

// handleErrorResponse maps a non-2xx reply to a SolverError carrying the
// status and body.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	var msg string
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		msg = parsed.message()
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		if msg == "" {
			msg = "API access denied - check ORS_API_KEY"
		}
	case statusCode == http.StatusTooManyRequests:
		if msg == "" {
			msg = "API rate limit exceeded"
		}
	case statusCode >= 500:
		if msg == "" {
			msg = "solver is temporarily unavailable"
		}
	default:
		if msg == "" {
			msg = fmt.Sprintf("solver returned status %d", statusCode)
		}
	}

	c.logger.Warn().
		Int("status", statusCode).
		Str("message", msg).
		Msg("ORS optimization request failed")

	return c.solverError(statusCode, truncate(body), msg, nil)
}

func (c *Client) handleSolverCode(statusCode, code int, body []byte) error {
	msg := solverCodeText(code)
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		if m := parsed.message(); m != "" {
			msg = msg + ": " + m
		}
	}
	return c.solverError(statusCode, truncate(body), fmt.Sprintf("solver reported code %d (%s)", code, msg), nil)
}

func (c *Client) solverError(statusCode int, body, msg string, err error) *optimization.SolverError {
	return &optimization.SolverError{
		Provider:   ProviderName,
		StatusCode: statusCode,
		Body:       body,
		Message:    msg,
		Err:        err,
	}
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody])
	}
	return string(body)
}

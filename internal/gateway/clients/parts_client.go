package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"parts-inventory/internal/models"
)

const (
	DefaultBaseURL = "http://localhost:3000"
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 10 << 20
)

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Envelope EnvelopeMode
	Logger   *zap.Logger
	// HTTPClient overrides the default transport; its own Timeout is ignored
	// in favour of Timeout above.
	HTTPClient *http.Client
}

// PartsClient talks to the remote parts REST API. It never retries; every
// failure comes back as an *APIError.
type PartsClient struct {
	baseURL    string
	timeout    time.Duration
	envelope   EnvelopeMode
	httpClient *http.Client
	logger     *zap.Logger
}

func NewPartsClient(cfg Config) (*PartsClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid parts API base URL %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	envelope := cfg.Envelope
	if envelope == "" {
		envelope = EnvelopeAuto
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PartsClient{
		baseURL:    base,
		timeout:    timeout,
		envelope:   envelope,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

func (c *PartsClient) BaseURL() string { return c.baseURL }

// --- Parts ---

func (c *PartsClient) ListParts(ctx context.Context) ([]models.Part, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/parts", nil)
	if err != nil {
		c.logFailure("Error fetching all parts", err)
		return nil, err
	}
	parts, _, err := decodeList(resp.body, resp.envelope(c.envelope))
	if err != nil {
		err = decodeError(resp, err)
		c.logFailure("Error fetching all parts", err)
		return nil, err
	}
	return parts, nil
}

func (c *PartsClient) GetPart(ctx context.Context, id models.ID) (models.Part, error) {
	if id == "" {
		return models.Part{}, ErrMissingID
	}
	resp, err := c.do(ctx, http.MethodGet, partPath(id), nil)
	if err != nil {
		c.logFailure("Error fetching part", err, zap.String("id", id.String()))
		return models.Part{}, err
	}
	return c.decodePart(resp, "Error fetching part", id)
}

func (c *PartsClient) CreatePart(ctx context.Context, in models.PartCreateInput) (models.Part, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/parts", in)
	if err != nil {
		c.logFailure("Error creating part", err, zap.String("sku", in.SKU))
		return models.Part{}, err
	}
	return c.decodePart(resp, "Error creating part", "")
}

func (c *PartsClient) UpdatePart(ctx context.Context, id models.ID, in models.PartUpdateInput) (models.Part, error) {
	if id == "" {
		return models.Part{}, ErrMissingID
	}
	resp, err := c.do(ctx, http.MethodPut, partPath(id), in)
	if err != nil {
		c.logFailure("Error updating part", err, zap.String("id", id.String()))
		return models.Part{}, err
	}
	return c.decodePart(resp, "Error updating part", id)
}

func (c *PartsClient) DeletePart(ctx context.Context, id models.ID) error {
	if id == "" {
		return ErrMissingID
	}
	if _, err := c.do(ctx, http.MethodDelete, partPath(id), nil); err != nil {
		c.logFailure("Error deleting part", err, zap.String("id", id.String()))
		return err
	}
	return nil
}

// SearchParts sends only the non-empty params; the server does the filtering.
func (c *PartsClient) SearchParts(ctx context.Context, params models.PartSearchParams) ([]models.Part, error) {
	path := "/api/parts/search"
	if q := params.Values().Encode(); q != "" {
		path += "?" + q
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		c.logFailure("Error searching parts", err)
		return nil, err
	}
	parts, page, err := decodeList(resp.body, resp.envelope(c.envelope))
	if err != nil {
		err = decodeError(resp, err)
		c.logFailure("Error searching parts", err)
		return nil, err
	}
	if page != nil {
		c.logger.Debug("search page received",
			zap.Int64("total_elements", page.TotalElements),
			zap.Int("returned", len(parts)))
	}
	return parts, nil
}

// Ping checks that the API answers the list endpoint.
func (c *PartsClient) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/parts", nil)
	return err
}

func (c *PartsClient) decodePart(resp *response, msg string, id models.ID) (models.Part, error) {
	part, err := decodeOne(resp.body, resp.envelope(c.envelope))
	if err != nil {
		err = decodeError(resp, err)
		c.logFailure(msg, err, zap.String("id", id.String()))
		return models.Part{}, err
	}
	return part, nil
}

func partPath(id models.ID) string {
	return "/api/parts/" + url.PathEscape(id.String())
}

// --- Transport ---

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r *response) envelope(fallback EnvelopeMode) EnvelopeMode {
	if h := r.header.Get(EnvelopeHeader); h != "" {
		if mode, err := ParseEnvelopeMode(h); err == nil {
			return mode
		}
	}
	return fallback
}

func (c *PartsClient) do(ctx context.Context, method, path string, payload any) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, &APIError{Kind: KindTransport, Message: "failed to encode request", Err: err}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &APIError{Kind: KindTransport, Message: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id := RequestIDFrom(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(ctx, err)
	}

	c.logger.Debug("parts api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, responseError(resp.StatusCode, data)
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

func transportError(ctx context.Context, err error) *APIError {
	apiErr := &APIError{Kind: KindTransport, Message: err.Error(), Err: err}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		apiErr.Timeout = true
		apiErr.Message = "request timed out"
	}
	return apiErr
}

func decodeError(resp *response, err error) *APIError {
	return &APIError{
		Kind:    KindTransport,
		Status:  resp.status,
		Message: "unexpected response from parts API",
		Err:     err,
	}
}

func (c *PartsClient) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if errors.Is(err, ErrTransport) {
		c.logger.Error(msg, fields...)
		return
	}
	c.logger.Warn(msg, fields...)
}

package riskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/domain/interfaces"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/usecase"
	"github.com/secmon-lab/riskmatrix/pkg/utils/logging"
	"github.com/secmon-lab/riskmatrix/pkg/utils/safe"
)

// RequestIDHeader carries a client generated request ID
const RequestIDHeader = "X-Request-Id"

// APIError is a non-2xx answer of the risk API
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("risk API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("risk API returned status %d: %s", e.StatusCode, e.Detail)
}

// Client talks to a riskmatrix server
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

var _ interfaces.RiskFetcher = &Client{}

// Option configures Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a client for the server at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, goerr.New("API URL is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, goerr.Wrap(err, "invalid API URL", goerr.V("url", baseURL))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, goerr.New("API URL must be http or https", goerr.V("url", baseURL))
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListOptions selects and orders the register on the server
type ListOptions struct {
	Level string
	Sort  string
	Order string
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Level != "" && o.Level != string(model.LevelFilterAll) {
		q.Set("level", o.Level)
	}
	if o.Sort != "" {
		q.Set("sort", o.Sort)
	}
	if o.Order != "" {
		q.Set("order", o.Order)
	}
	return q
}

// ListRisks returns the register
func (c *Client) ListRisks(ctx context.Context, opts ListOptions) ([]*model.Risk, error) {
	var risks []*model.Risk
	if err := c.doJSON(ctx, http.MethodGet, "/risks", opts.query(), nil, &risks); err != nil {
		return nil, err
	}
	// a null element decodes to a nil pointer
	return model.Compact(risks), nil
}

// FetchRisks returns the full unfiltered register
func (c *Client) FetchRisks(ctx context.Context) ([]*model.Risk, error) {
	return c.ListRisks(ctx, ListOptions{})
}

// GetRisk returns one risk
func (c *Client) GetRisk(ctx context.Context, id int64) (*model.Risk, error) {
	var risk model.Risk
	if err := c.doJSON(ctx, http.MethodGet, "/risks/"+strconv.FormatInt(id, 10), nil, nil, &risk); err != nil {
		return nil, err
	}
	return &risk, nil
}

// AssessRisk submits a new assessment and returns the persisted risk
func (c *Client) AssessRisk(ctx context.Context, input model.RiskInput) (*model.Risk, error) {
	var risk model.Risk
	if err := c.doJSON(ctx, http.MethodPost, "/assess-risk", nil, input, &risk); err != nil {
		return nil, err
	}
	return &risk, nil
}

// Preview asks the server to score ratings without persisting them
func (c *Client) Preview(ctx context.Context, input model.RiskInput) (*usecase.Assessment, error) {
	var assessment usecase.Assessment
	if err := c.doJSON(ctx, http.MethodPost, "/preview", nil, input, &assessment); err != nil {
		return nil, err
	}
	return &assessment, nil
}

// Export downloads the CSV register. An empty register yields model.ErrEmptyExport.
func (c *Client) Export(ctx context.Context, opts ListOptions) (*usecase.ExportResult, error) {
	resp, err := c.do(ctx, http.MethodGet, "/risks/export", opts.query(), nil)
	if err != nil {
		return nil, err
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode == http.StatusNoContent {
		return nil, goerr.Wrap(model.ErrEmptyExport, "server has nothing to export")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read export")
	}

	filename := model.ExportFilename(model.DefaultExportPrefix, time.Now())
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}

	return &usecase.ExportResult{
		Filename: filename,
		Rows:     strings.Count(string(data), "\n"),
		Data:     data,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	resp, err := c.do(ctx, method, path, query, in)
	if err != nil {
		return err
	}
	defer safe.Close(ctx, resp.Body)

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerr.Wrap(err, "failed to decode response", goerr.V("path", path))
	}
	return nil
}

// do sends the request and turns any non-2xx answer into *APIError
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any) (*http.Response, error) {
	u := c.baseURL.JoinPath(path)
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to encode request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("url", u.String()))
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	logging.From(ctx).Debug("risk API request",
		"method", method,
		"url", u.String(),
		"request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "risk API request failed",
			goerr.V("method", method),
			goerr.V("url", u.String()),
			goerr.V("request_id", requestID))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer safe.Close(ctx, resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var detail struct {
			Detail any `json:"detail"`
		}
		if raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024)); err == nil {
			if json.Unmarshal(raw, &detail) == nil && detail.Detail != nil {
				apiErr.Detail = detailString(detail.Detail)
			} else {
				apiErr.Detail = strings.TrimSpace(string(raw))
			}
		}
		return nil, goerr.Wrap(apiErr, "risk API error",
			goerr.V("method", method),
			goerr.V("url", u.String()),
			goerr.V("status", resp.StatusCode),
			goerr.V("request_id", requestID))
	}

	return resp, nil
}

// detailString flattens a detail value. Validation details may be a list of objects with a msg field.
func detailString(v any) string {
	switch d := v.(type) {
	case string:
		return d
	case []any:
		msgs := make([]string, 0, len(d))
		for _, item := range d {
			if m, ok := item.(map[string]any); ok {
				if msg, ok := m["msg"].(string); ok {
					msgs = append(msgs, msg)
					continue
				}
			}
			msgs = append(msgs, fmt.Sprint(item))
		}
		return strings.Join(msgs, "; ")
	default:
		return fmt.Sprint(d)
	}
}

package marquez

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/lineforge/lineforge/internal/openlineage"
	"github.com/lineforge/lineforge/pkg/core"
)

// ClientConfig configures the store client. Zero values get defaults:
// 30s timeout, 3 retries, 200ms initial backoff, no rate limit.
type ClientConfig struct {
	// BaseURL is the store's root URL, e.g. "http://marquez:5000".
	BaseURL string
	// APIKey, when set, is sent as a bearer token.
	APIKey string
	// Timeout is the per-request timeout.
	Timeout time.Duration
	// MaxRetries is the number of retry attempts after the initial request.
	MaxRetries int
	// InitialBackoff is the base backoff; each retry doubles it.
	InitialBackoff time.Duration
	// RequestsPerSecond caps the outbound request rate. 0 means unlimited.
	RequestsPerSecond float64
	// HTTPClient overrides the default client, for tests.
	HTTPClient *http.Client
	// Logger receives request-level diagnostics. Nil discards.
	Logger *slog.Logger
}

// Client is the lineage store HTTP client. All calls retry transient
// failures with exponential backoff before reporting an error.
type Client struct {
	baseURL    string
	apiKey     string
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries uint64
	backoff    time.Duration
	logger     *slog.Logger
}

// NewClient creates a store client, applying defaults for zero config values.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("marquez: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		baseURL:    trimTrailingSlash(cfg.BaseURL),
		apiKey:     cfg.APIKey,
		http:       httpClient,
		limiter:    limiter,
		maxRetries: uint64(cfg.MaxRetries),
		backoff:    cfg.InitialBackoff,
		logger:     logger,
	}, nil
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// apiError is a non-2xx response from the store.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("store returned %d: %s", e.Status, e.Body)
}

// do issues one request with rate limiting and retry. Connectivity failures,
// 5xx, and 429 are retried; other statuses fail immediately. The response
// body is decoded into out when out is non-nil and the status is 2xx.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, body)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Debug("request failed, will retry", slog.String("url", u), slog.Any("error", err))
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil {
				return nil
			}
			return json.NewDecoder(resp.Body).Decode(out)
		}

		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &apiError{Status: resp.StatusCode, Body: string(data)}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			c.logger.Debug("transient store error, will retry",
				slog.String("url", u), slog.Int("status", resp.StatusCode))
			return retry.RetryableError(apiErr)
		}
		return apiErr
	})
}

// exists issues a GET reporting whether the resource is present.
func (c *Client) exists(ctx context.Context, path string) (bool, error) {
	err := c.do(ctx, http.MethodGet, path, nil, nil, nil)
	if err == nil {
		return true, nil
	}
	var ae *apiError
	if errors.As(err, &ae) && ae.Status == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

// EnsureNamespace creates the namespace if it does not exist. An existing
// namespace is left untouched so its description never drifts.
func (c *Client) EnsureNamespace(ctx context.Context, name, owner, description string) error {
	path := "/api/v1/namespaces/" + url.PathEscape(name)
	ok, err := c.exists(ctx, path)
	if err != nil {
		return fmt.Errorf("check namespace %q: %w", name, err)
	}
	if ok {
		return nil
	}
	if owner == "" {
		owner = "anonymous"
	}
	if err := c.do(ctx, http.MethodPut, path, nil, namespaceUpsert{OwnerName: owner, Description: description}, nil); err != nil {
		return fmt.Errorf("create namespace %q: %w", name, err)
	}
	c.logger.Info("namespace created", slog.String("namespace", name))
	return nil
}

// EnsureSource creates the data source if it does not exist, leaving an
// existing record untouched.
func (c *Client) EnsureSource(ctx context.Context, name, sourceType, connectionURL, description string) error {
	path := "/api/v1/sources/" + url.PathEscape(name)
	ok, err := c.exists(ctx, path)
	if err != nil {
		return fmt.Errorf("check source %q: %w", name, err)
	}
	if ok {
		return nil
	}
	payload := sourceUpsert{Type: sourceType, ConnectionURL: connectionURL, Description: description}
	if err := c.do(ctx, http.MethodPut, path, nil, payload, nil); err != nil {
		return fmt.Errorf("create source %q: %w", name, err)
	}
	c.logger.Info("source created", slog.String("source", name))
	return nil
}

// UpsertDataset PUTs a dataset, replacing its field list in full.
func (c *Client) UpsertDataset(ctx context.Context, id core.DatasetID, ds DatasetUpsert) error {
	path := "/api/v1/namespaces/" + url.PathEscape(id.Namespace) +
		"/datasets/" + url.PathEscape(id.Name)
	if err := c.do(ctx, http.MethodPut, path, nil, ds, nil); err != nil {
		return fmt.Errorf("upsert dataset %s: %w", id.Key(), err)
	}
	return nil
}

// DeleteDataset removes a dataset. Deleting an absent dataset is a success:
// the operation is idempotent.
func (c *Client) DeleteDataset(ctx context.Context, id core.DatasetID) error {
	path := "/api/v1/namespaces/" + url.PathEscape(id.Namespace) +
		"/datasets/" + url.PathEscape(id.Name)
	err := c.do(ctx, http.MethodDelete, path, nil, nil, nil)
	var ae *apiError
	if errors.As(err, &ae) && ae.Status == http.StatusNotFound {
		c.logger.Info("dataset already absent", slog.String("dataset", id.Key()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete dataset %s: %w", id.Key(), err)
	}
	return nil
}

// EmitEvent POSTs a lineage event. Events append to the job's run history;
// the store never rewrites an existing run.
func (c *Client) EmitEvent(ctx context.Context, event *openlineage.Event) error {
	if err := c.do(ctx, http.MethodPost, "/api/v1/lineage", nil, event, nil); err != nil {
		return fmt.Errorf("emit event for job %q: %w", event.Job.Name, err)
	}
	return nil
}

// ListJobs pages through the store's job records, optionally filtered by
// namespace.
func (c *Client) ListJobs(ctx context.Context, namespace string) ([]core.Job, error) {
	const pageSize = 500

	var jobs []core.Job
	for offset := 0; ; offset += pageSize {
		q := url.Values{}
		q.Set("limit", fmt.Sprint(pageSize))
		q.Set("offset", fmt.Sprint(offset))
		if namespace != "" {
			q.Set("namespace", namespace)
		}

		var page jobsResponse
		if err := c.do(ctx, http.MethodGet, "/api/v1/jobs", q, nil, &page); err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		for _, r := range page.Jobs {
			jobs = append(jobs, r.toJob())
		}
		if len(page.Jobs) < pageSize {
			return jobs, nil
		}
	}
}

// ListJobRuns returns a job's run records, newest first as the store orders
// them.
func (c *Client) ListJobRuns(ctx context.Context, namespace, job string) ([]core.JobRun, error) {
	const runPageLimit = 100

	path := "/api/v1/namespaces/" + url.PathEscape(namespace) +
		"/jobs/" + url.PathEscape(job) + "/runs"
	q := url.Values{}
	q.Set("limit", fmt.Sprint(runPageLimit))

	var resp runsResponse
	if err := c.do(ctx, http.MethodGet, path, q, nil, &resp); err != nil {
		return nil, fmt.Errorf("list runs for job %s::%s: %w", namespace, job, err)
	}
	runs := make([]core.JobRun, 0, len(resp.Runs))
	for _, r := range resp.Runs {
		runs = append(runs, r.toRun())
	}
	return runs, nil
}

// DeleteJobRun removes one run record of a job.
func (c *Client) DeleteJobRun(ctx context.Context, namespace, job, runID string) error {
	path := "/api/v1/namespaces/" + url.PathEscape(namespace) +
		"/jobs/" + url.PathEscape(job) + "/runs/" + url.PathEscape(runID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		return fmt.Errorf("delete run %s of job %s::%s: %w", runID, namespace, job, err)
	}
	return nil
}

// DeleteJob removes a job record and its run history.
func (c *Client) DeleteJob(ctx context.Context, namespace, name string) error {
	path := "/api/v1/namespaces/" + url.PathEscape(namespace) +
		"/jobs/" + url.PathEscape(name)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		return fmt.Errorf("delete job %s::%s: %w", namespace, name, err)
	}
	return nil
}

// LineageGraph fetches the lineage graph around a node id.
func (c *Client) LineageGraph(ctx context.Context, nodeID string, depth int) (*GraphResponse, error) {
	q := url.Values{}
	q.Set("nodeId", nodeID)
	if depth > 0 {
		q.Set("depth", fmt.Sprint(depth))
	}
	var resp GraphResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/lineage", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch lineage graph: %w", err)
	}
	return &resp, nil
}

package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Veraticus/attendance-engine/internal/common"
	"github.com/Veraticus/attendance-engine/internal/service"
)

// Config configures the terminal feed client.
type Config struct {
	BaseURL           string
	Token             string
	Name              string
	Timeout           time.Duration
	RequestsPerMinute int
}

// Client fetches punch pages from the terminal feed over HTTP.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    *url.URL
	token      string
	name       string
}

// NewClient creates a feed client. Requests are paced to RequestsPerMinute
// (60 when unset) so a long sync does not trip the feed's own limiter.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%w: feed base URL", common.ErrMissingConfig)
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: feed base URL %q: %v", common.ErrInvalidConfig, cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: feed base URL %q must be http(s)", common.ErrInvalidConfig, cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.Name == "" {
		cfg.Name = base.Host
	}

	perSecond := rate.Limit(float64(cfg.RequestsPerMinute) / 60)
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(perSecond, 1),
		baseURL:    base,
		token:      cfg.Token,
		name:       cfg.Name,
	}, nil
}

// Name identifies the feed in sync cursors.
func (c *Client) Name() string {
	return c.name
}

// FetchPage requests one page of punches. Errors are classified for
// common.WithRetry: throttling returns a *common.RateLimitError, timeouts and
// 5xx are retryable, and other 4xx responses are permanent.
func (c *Client) FetchPage(ctx context.Context, req service.FeedRequest) (*service.FeedPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("feed rate limiter: %w", err)
	}

	u := *c.baseURL
	u.Path += "/punches"
	q := u.Query()
	q.Set("start", req.Start.UTC().Format(time.RFC3339))
	q.Set("end", req.End.UTC().Format(time.RFC3339))
	q.Set("page", strconv.Itoa(req.Page))
	if req.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(req.PageSize))
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to create request: %w", err), Retryable: false}
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &common.RetryableError{
			Err:       fmt.Errorf("%w: %v", common.ErrFeedUnavailable, err),
			Retryable: true,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	var body pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		// A truncated body is usually a dropped connection, so try again.
		return nil, &common.RetryableError{
			Err:       fmt.Errorf("%w: decode page %d: %v", common.ErrInvalidPage, req.Page, err),
			Retryable: true,
		}
	}

	page := &service.FeedPage{
		Page:         body.Page,
		TotalPages:   body.TotalPages,
		TotalRecords: body.TotalRecords,
	}
	if page.Page == 0 {
		page.Page = req.Page
	}
	for _, rec := range body.Data {
		p, err := rec.toModel()
		if err != nil {
			return nil, &common.RetryableError{Err: err, Retryable: false}
		}
		page.Punches = append(page.Punches, p)
	}

	slog.Debug("Fetched feed page",
		"feed", c.name,
		"page", page.Page,
		"total_pages", page.TotalPages,
		"records", len(page.Punches))

	return page, nil
}

func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &common.RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return &common.RetryableError{
			Err:       fmt.Errorf("%w: HTTP %d: %s", common.ErrFeedUnavailable, resp.StatusCode, readSnippet(resp.Body)),
			Retryable: true,
		}
	default:
		return &common.RetryableError{
			Err:       fmt.Errorf("%w: HTTP %d: %s", common.ErrFeedRejected, resp.StatusCode, readSnippet(resp.Body)),
			Retryable: false,
		}
	}
}

// parseRetryAfter understands the delay-seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}

package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Fetcher retrieves listings from the content widget backend. It is
// implemented by *Client and can be replaced in tests.
type Fetcher interface {
	Fetch(ctx context.Context, query Query) (*Listing, error)
}

var _ Fetcher = (*Client)(nil)

const (
	DefaultEndpoint  = "http://127.0.0.1:8080/widget"
	defaultUserAgent = "contentstream/0.1"
	requestTimeout   = 10 * time.Second

	actionFilterData = "filter_system_data"
	widgetName       = "widget-content-stream.pl"
	ModeArticles     = "articles"
)

// Query selects what a Fetch returns. The zero Query with a State asks for
// the full listing; Mode articles with Start and Limit asks for one page.
type Query struct {
	State string
	Mode  string
	Start int
	Limit int
}

// PageQuery builds the query for the inclusive range [start, start+limit-1].
func PageQuery(state string, start, limit int) Query {
	return Query{State: state, Mode: ModeArticles, Start: start, Limit: limit}
}

// Values encodes the query as the widget form parameters.
func (q Query) Values() url.Values {
	values := url.Values{}
	values.Set("ac", actionFilterData)
	values.Set("widget", widgetName)
	values.Set("valid_json", "1")
	state := strings.TrimSpace(q.State)
	if state == "" {
		state = "[]"
	}
	values.Set("state", state)
	if mode := strings.TrimSpace(q.Mode); mode != "" {
		values.Set("mode", mode)
	}
	if q.Mode != "" || q.Limit > 0 {
		values.Set("start", strconv.Itoa(q.Start))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	return values
}

// Options configure a Client. Zero values use the defaults.
type Options struct {
	Endpoint     string
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
	Logger       zerolog.Logger
}

// Client posts filter_system_data requests to the widget endpoint.
type Client struct {
	endpoint  *url.URL
	http      *http.Client
	userAgent string
	logger    zerolog.Logger
}

// NewClient builds a Client with retrying transport.
func NewClient(opts Options) (*Client, error) {
	endpoint, err := parseEndpoint(opts.Endpoint)
	if err != nil {
		return nil, err
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = requestTimeout
	if opts.Timeout > 0 {
		retryClient.HTTPClient.Timeout = opts.Timeout
	}
	retryClient.RetryMax = 3
	if opts.RetryMax > 0 {
		retryClient.RetryMax = opts.RetryMax
	}
	retryClient.RetryWaitMin = 250 * time.Millisecond
	if opts.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = opts.RetryWaitMin
	}
	retryClient.RetryWaitMax = 5 * time.Second
	if opts.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = opts.RetryWaitMax
	}
	retryClient.Logger = retryLogger{logger: opts.Logger}

	return &Client{
		endpoint:  endpoint,
		http:      retryClient.StandardClient(),
		userAgent: defaultUserAgent,
		logger:    opts.Logger,
	}, nil
}

// Endpoint returns the resolved widget URL.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// Fetch posts the query and decodes the listing.
func (c *Client) Fetch(ctx context.Context, query Query) (*Listing, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	requestID := ulid.Make().String()
	body := query.Values().Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-Id", requestID)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request %s: %w", requestID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("widget %s returned status %d", c.endpoint.Path, resp.StatusCode)
	}
	var listing Listing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	listing.RequestID = requestID

	c.logger.Debug().
		Str("request_id", requestID).
		Str("mode", query.Mode).
		Int("start", query.Start).
		Int("limit", query.Limit).
		Int("articles", len(listing.Articles)).
		Int("last", int(listing.Last)).
		Dur("took", time.Since(started)).
		Msg("listing fetched")
	return &listing, nil
}

func parseEndpoint(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultEndpoint
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse endpoint %q: missing host", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// retryLogger adapts zerolog to retryablehttp.LeveledLogger. Per-attempt
// chatter is kept at debug.
type retryLogger struct {
	logger zerolog.Logger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Trace().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

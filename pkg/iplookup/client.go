// Package iplookup queries the ip-api.com address-information service for
// ownership and location of a remote IP.
package iplookup

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/ipintel-cli/internal/resilience"
)

const defaultBaseURL = "http://ip-api.com"

// Client looks up identity fields for an IP address. Implementations make
// one outbound call per Lookup; every failure mode (transport, status,
// body) collapses into a single error kind the caller treats as non-fatal.
type Client interface {
	Lookup(ctx context.Context, addr string) (*Result, error)
}

// Result holds the fields the lookup service returned. Empty string means
// the service omitted the field; values are never invented.
type Result struct {
	Country string
	Org     string
	ISP     string
}

// lookupResponse is the JSON body from GET /json/{addr}. The service has
// shipped both "org" and "organization" keys over time, so both are mapped.
type lookupResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	Country      string `json:"country"`
	Org          string `json:"org"`
	Organization string `json:"organization"`
	ISP          string `json:"isp"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the requests-per-second limit for lookup calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetry overrides the transient-error retry settings.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates an ip-api.com lookup client. The default limiter stays
// under the free tier's 45 requests per minute.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(45.0/60.0), 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Lookup(ctx context.Context, addr string) (*Result, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*Result, error) {
		return c.lookupOnce(ctx, addr)
	})
}

func (c *httpClient) lookupOnce(ctx context.Context, addr string) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "iplookup: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/json/"+addr, nil)
	if err != nil {
		return nil, eris.Wrap(err, "iplookup: build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "iplookup: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("iplookup: returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "iplookup: read body")
	}

	var lr lookupResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, eris.Wrap(err, "iplookup: parse response")
	}
	if lr.Status == "fail" {
		return nil, eris.Errorf("iplookup: service rejected %s: %s", addr, lr.Message)
	}

	org := lr.Org
	if org == "" {
		org = lr.Organization
	}
	return &Result{
		Country: lr.Country,
		Org:     org,
		ISP:     lr.ISP,
	}, nil
}

package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	cf "github.com/cloudflare/cloudflare-go/v4"
	"github.com/cloudflare/cloudflare-go/v4/cache"
	"github.com/cloudflare/cloudflare-go/v4/option"

	"github.com/arroweffect/imgapi"
)

const (
	// DefaultAPIBase is the Cloudflare v4 API root.
	DefaultAPIBase = "https://api.cloudflare.com/client/v4"

	// DefaultTimeout bounds a purge call and the wait for transform
	// response headers.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 1 << 20
)

// Client purges URLs from one zone through the Cloudflare API.
type Client struct {
	zoneID string
	api    *cf.Client
}

type clientOptions struct {
	apiBase    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*clientOptions)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// WithAPIBase overrides the API root, e.g. for tests.
func WithAPIBase(base string) Option {
	return func(o *clientOptions) {
		o.apiBase = base
	}
}

// NewClient creates a Client for one zone.
func NewClient(zoneID, apiToken string, opts ...Option) (*Client, error) {
	if zoneID == "" {
		return nil, errors.New("new cloudflare client: zone id is required")
	}
	if apiToken == "" {
		return nil, errors.New("new cloudflare client: api token is required")
	}

	o := clientOptions{
		apiBase:    DefaultAPIBase,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(&o)
	}

	api := cf.NewClient(
		option.WithAPIToken(apiToken),
		option.WithBaseURL(strings.TrimSuffix(o.apiBase, "/")+"/"),
		option.WithHTTPClient(o.httpClient),
		option.WithMaxRetries(0),
	)

	return &Client{zoneID: zoneID, api: api}, nil
}

type apiResponse struct {
	Success bool            `json:"success"`
	Errors  json.RawMessage `json:"errors"`
}

// Purge evicts rawURL from the zone's cache. The API response body is
// returned verbatim on success. The request is not retried.
func (c *Client) Purge(ctx context.Context, rawURL string) (json.RawMessage, error) {
	var resp *http.Response
	_, err := c.api.Cache.Purge(ctx, cache.CachePurgeParams{
		ZoneID: cf.F(c.zoneID),
		Body: cache.CachePurgeParamsBodyCachePurgeSingleFile{
			Files: cf.F([]string{rawURL}),
		},
	}, option.WithResponseBodyInto(&resp))
	if err != nil {
		var apiErr *cf.Error
		if errors.As(err, &apiErr) {
			return nil, purgeFailure(apiErr.StatusCode, []byte(apiErr.JSON.RawJSON()))
		}
		return nil, &imgapi.UpstreamError{Op: "purge", Err: err}
	}
	if resp == nil {
		return nil, &imgapi.UpstreamError{Op: "purge", Err: errors.New("empty response")}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &imgapi.UpstreamError{Op: "purge", StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	var result apiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &imgapi.UpstreamError{
			Op:         "purge",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	if !result.Success {
		return nil, purgeFailure(resp.StatusCode, body)
	}

	return json.RawMessage(body), nil
}

// purgeFailure carries the API "errors" array as the failure detail, or the
// whole body when the array is absent.
func purgeFailure(status int, body []byte) error {
	var result apiResponse
	_ = json.Unmarshal(body, &result)

	detail := result.Errors
	if len(detail) == 0 || string(detail) == "null" {
		detail = json.RawMessage(body)
	}
	if !json.Valid(detail) {
		detail = nil
	}

	return &imgapi.UpstreamError{Op: "purge", StatusCode: status, Detail: detail}
}

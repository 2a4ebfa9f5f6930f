package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/arroweffect/imgapi"
)

// Transformer implements imgapi.ImageTransformer with Cloudflare URL-based
// Image Resizing on a zone that has it enabled.
type Transformer struct {
	zoneBase   string
	httpClient *http.Client
}

// TransformerOption configures a Transformer.
type TransformerOption func(*Transformer)

// WithTransformHTTPClient sets a custom HTTP client.
func WithTransformHTTPClient(client *http.Client) TransformerOption {
	return func(t *Transformer) {
		t.httpClient = client
	}
}

// WithResponseHeaderTimeout bounds the wait for response headers. Zero
// means no limit.
func WithResponseHeaderTimeout(d time.Duration) TransformerOption {
	return func(t *Transformer) {
		t.httpClient = newFetchClient(d)
	}
}

// newFetchClient limits only the time to first response header. The image
// body is relayed after the status line has been written downstream, so it
// streams for as long as the request context allows.
func newFetchClient(headerTimeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: tr}
}

// NewTransformer creates a Transformer that requests resized images from
// zoneBaseURL (scheme and host of the resizing-enabled zone).
func NewTransformer(zoneBaseURL string, opts ...TransformerOption) (*Transformer, error) {
	u, err := url.Parse(zoneBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("new cloudflare transformer: zone base url must be absolute")
	}

	t := &Transformer{
		zoneBase:   strings.TrimSuffix(u.String(), "/"),
		httpClient: newFetchClient(DefaultTimeout),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// URL returns the URL fetched for req.
func (t *Transformer) URL(req imgapi.FetchRequest) string {
	if !req.Transformed() {
		return req.OriginURL
	}
	return t.zoneBase + "/cdn-cgi/image/" + req.Options.Encode() + "/" + req.OriginURL
}

// Fetch performs a single GET. Non-2xx statuses are returned as responses.
func (t *Transformer) Fetch(ctx context.Context, req imgapi.FetchRequest) (*imgapi.FetchResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL(req), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("fetch image: create request: %w", err)
	}
	if req.UserAgent != "" {
		httpReq.Header.Set("User-Agent", req.UserAgent)
	}
	if req.Accept != "" {
		httpReq.Header.Set("Accept", req.Accept)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}

	return &imgapi.FetchResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

package imgapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

// ObjectStore defines the interface for key-addressed blob storage.
// Implementations can use the local filesystem, S3-compatible buckets, or
// any other backend.
//
// All methods accept a context for cancellation. Implementations must map
// a missing key to ErrNotFound.
type ObjectStore interface {
	// Head returns the metadata of the object stored at key.
	//
	// Returns:
	//   - ObjectInfo: Size, content type, cache control and ETag
	//   - error: ErrNotFound if key doesn't exist, or other storage errors
	Head(ctx context.Context, key string) (ObjectInfo, error)

	// Get opens the object stored at key for reading.
	//
	// The caller is responsible for closing the returned ReadCloser.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Put stores content at key, replacing any existing object. size is the
	// exact content length.
	//
	// Implementations should:
	//   - Persist opts.ContentType and opts.CacheControl with the object
	//   - Never leave a partially written object visible at key
	Put(ctx context.Context, key string, content io.Reader, size int64, opts PutOptions) (ObjectInfo, error)

	// Delete removes the object at key.
	//
	// Returns:
	//   - error: ErrNotFound if key doesn't exist, or other storage errors
	Delete(ctx context.Context, key string) error
}

// CachePurger evicts a URL from a CDN cache.
type CachePurger interface {
	// Purge asks the CDN to drop cached copies of rawURL. The upstream
	// response body is returned verbatim. Failures are reported as
	// *UpstreamError.
	Purge(ctx context.Context, rawURL string) (json.RawMessage, error)
}

// ImageTransformer fetches images from an origin, optionally transformed.
type ImageTransformer interface {
	// Fetch performs exactly one upstream request. A non-2xx upstream status
	// is not an error; the caller inspects FetchResponse.StatusCode and
	// owns FetchResponse.Body.
	Fetch(ctx context.Context, req FetchRequest) (*FetchResponse, error)
}

// Observer receives telemetry about outbound calls. All methods must be
// safe for concurrent use.
type Observer interface {
	ObserveUpstream(op string, duration time.Duration, err error)
	ObserveUpload(sizeBytes int64)
}

type nopObserver struct{}

func (nopObserver) ObserveUpstream(string, time.Duration, error) {}
func (nopObserver) ObserveUpload(int64) {}

// DefaultUserAgent is sent to the transformation backend when none is configured.
const DefaultUserAgent = "imgapi/1.0"

// ServiceConfig holds configuration options for Service.
type ServiceConfig struct {
	// OriginBaseURL is prefixed to image request paths to build origin URLs.
	OriginBaseURL string
	// UserAgent is sent on every transformation request (default: DefaultUserAgent).
	UserAgent string
	// Observer receives upstream call telemetry (optional).
	Observer Observer
}

// Service implements the gateway operations on top of the storage, purge
// and transformation backends. It holds no per-request state.
type Service struct {
	store       ObjectStore
	purger      CachePurger
	transformer ImageTransformer
	origin      *url.URL
	userAgent   string
	observer    Observer
}

func NewService(store ObjectStore, purger CachePurger, transformer ImageTransformer, cfg ServiceConfig) (*Service, error) {
	if store == nil || purger == nil || transformer == nil {
		return nil, errors.New("new service: store, purger and transformer are required")
	}

	origin, err := url.Parse(cfg.OriginBaseURL)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("new service: invalid origin base url: %q", cfg.OriginBaseURL)
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	var observer Observer = nopObserver{}
	if cfg.Observer != nil {
		observer = cfg.Observer
	}

	return &Service{
		store:       store,
		purger:      purger,
		transformer: transformer,
		origin:      origin,
		userAgent:   userAgent,
		observer:    observer,
	}, nil
}

// Upload decodes the base64 payload and writes it to the object store at
// req.Path, overwriting any existing object. The object is stored with
// req.ContentType and a one-year public Cache-Control.
//
// Error types returned:
//   - ErrMissingField: Path, ContentType or FileBase64 is empty
//   - ErrInvalidPath: Path fails IsValidPath
//   - ErrInvalidEncoding: FileBase64 is not valid base64
//   - Wrapped storage errors
func (s *Service) Upload(ctx context.Context, req UploadRequest) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, fmt.Errorf("upload: %w", err)
	}

	if missing := req.MissingFields(); len(missing) > 0 {
		return ObjectInfo{}, fmt.Errorf("upload: %w: %s", ErrMissingField, strings.Join(missing, ", "))
	}

	if !IsValidPath(req.Path) {
		return ObjectInfo{}, fmt.Errorf("upload %q: %w", req.Path, ErrInvalidPath)
	}

	data, err := decodeBase64(req.FileBase64)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("upload %s: %w", req.Path, ErrInvalidEncoding)
	}

	opts := PutOptions{
		ContentType:  req.ContentType,
		CacheControl: CacheControlObject,
	}

	start := time.Now()
	info, err := s.store.Put(ctx, req.Path, bytes.NewReader(data), int64(len(data)), opts)
	s.observer.ObserveUpstream("put", time.Since(start), err)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("upload %s: write failed: %w", req.Path, err)
	}

	s.observer.ObserveUpload(int64(len(data)))
	return info, nil
}

// Delete removes the object at path. It fails with ErrNotFound when no
// object exists there; the deletion itself is irreversible. The existence
// check is left to the store, whose Delete reports a missing key.
func (s *Service) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	if path == "" {
		return fmt.Errorf("delete: %w: path", ErrMissingField)
	}

	if !IsValidPath(path) {
		return fmt.Errorf("delete %q: %w", path, ErrInvalidPath)
	}

	start := time.Now()
	err := s.store.Delete(ctx, path)
	s.observer.ObserveUpstream("delete", time.Since(start), ignoreNotFound(err))
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}

	return nil
}

// Purge normalizes rawURL and asks the CDN to evict it. rawURL must be an
// absolute URL. The call is attempted once.
func (s *Service) Purge(ctx context.Context, rawURL string) (PurgeResult, error) {
	if err := ctx.Err(); err != nil {
		return PurgeResult{}, fmt.Errorf("purge: %w", err)
	}

	if rawURL == "" {
		return PurgeResult{}, fmt.Errorf("purge: %w: url", ErrMissingField)
	}

	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return PurgeResult{}, fmt.Errorf("purge: %w", err)
	}

	start := time.Now()
	resp, err := s.purger.Purge(ctx, normalized)
	s.observer.ObserveUpstream("purge", time.Since(start), err)
	if err != nil {
		return PurgeResult{}, fmt.Errorf("purge %s: %w", normalized, err)
	}

	return PurgeResult{URL: normalized, Response: resp}, nil
}

// NormalizeURL parses rawURL as an absolute URL and returns its canonical
// string form.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, rawURL)
	}
	return u.String(), nil
}

// ServeImage fetches the image for req from the transformation backend.
//
// The method performs the following steps:
//  1. Builds the origin URL from the configured base and req.Path. A path
//     with a ".." segment is answered as not found without any fetch
//  2. Builds TransformOptions from the query and Accept header, unless the
//     path is an SVG, which is always fetched untransformed
//  3. Fetches once; if a transformation fails (transport error or a non-2xx
//     status other than 404) it retries once against the untransformed origin
//  4. Rewrites caching headers on the result
//
// Cache-Control on the returned response is:
//   - CacheControlImage for 2xx
//   - CacheControlNotFound for 404, with a plain "Image not found" body
//   - CacheControlNoStore for every other status
//
// A transport failure of the last attempt is returned as an error matching
// ErrUpstream.
func (s *Service) ServeImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("serve image: %w", err)
	}

	if hasDotDotSegment(req.Path) {
		return notFoundResponse(), nil
	}

	accept := req.Accept
	if accept == "" {
		accept = DefaultImageAccept
	}

	fr := FetchRequest{
		Key:       req.Path,
		OriginURL: s.origin.JoinPath(req.Path).String(),
		Accept:    accept,
		UserAgent: s.userAgent,
	}
	if !IsSVG(req.Path) {
		fr.Options = BuildTransformOptions(req.Query, req.Accept)
	}

	resp, err := s.fetch(ctx, fr)
	if fr.Transformed() && transformFailed(resp, err) && ctx.Err() == nil {
		if resp != nil {
			discard(resp.Body)
		}
		slog.WarnContext(ctx, "transformation failed, falling back to origin",
			"path", req.Path, "status", statusOf(resp), "err", err)

		fr.Options = nil
		resp, err = s.fetch(ctx, fr)
	}
	if err != nil {
		return nil, fmt.Errorf("serve image %s: %w", req.Path, err)
	}

	return decorate(resp), nil
}

func (s *Service) fetch(ctx context.Context, fr FetchRequest) (*FetchResponse, error) {
	op := "origin"
	if fr.Transformed() {
		op = "transform"
	}

	start := time.Now()
	resp, err := s.transformer.Fetch(ctx, fr)
	s.observer.ObserveUpstream(op, time.Since(start), err)
	if err != nil {
		var upstreamErr *UpstreamError
		if errors.As(err, &upstreamErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &UpstreamError{Op: op, Err: err}
	}
	return resp, nil
}

// IsSVG reports whether path names an SVG document.
func IsSVG(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".svg")
}

func transformFailed(resp *FetchResponse, err error) bool {
	if err != nil {
		return true
	}
	return !isSuccess(resp.StatusCode) && resp.StatusCode != http.StatusNotFound
}

func decorate(resp *FetchResponse) *ImageResponse {
	header := cloneHeader(resp.Header)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		discard(resp.Body)
		return notFoundResponse()
	case isSuccess(resp.StatusCode):
		header.Set("Cache-Control", CacheControlImage)
	default:
		header.Set("Cache-Control", CacheControlNoStore)
	}

	return &ImageResponse{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       resp.Body,
	}
}

func notFoundResponse() *ImageResponse {
	header := http.Header{}
	header.Set("Content-Type", "text/plain; charset=utf-8")
	header.Set("Cache-Control", CacheControlNotFound)
	return &ImageResponse{
		StatusCode: http.StatusNotFound,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader("Image not found")),
	}
}

// hasDotDotSegment reports whether p would climb out of the origin base
// path once joined and cleaned.
func hasDotDotSegment(p string) bool {
	return slices.Contains(strings.Split(p, "/"), "..")
}

var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return http.Header{}
	}
	out := h.Clone()
	for _, k := range hopByHopHeaders {
		out.Del(k)
	}
	return out
}

func decodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	// Unpadded input is common from browser encoders.
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

func statusOf(resp *FetchResponse) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func discard(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

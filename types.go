package imgapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Cache-Control values written by the gateway.
const (
	// CacheControlObject is stored as object metadata on upload.
	CacheControlObject = "public, max-age=31536000, immutable"
	// CacheControlImage is set on every successful image response.
	CacheControlImage = "public, max-age=31536000, stale-while-revalidate=86400"
	// CacheControlNotFound is set on image 404s so a transient miss is not pinned for a year.
	CacheControlNotFound = "public, max-age=60"
	// CacheControlNoStore is set on every other non-2xx image response.
	CacheControlNoStore = "no-store"
)

// DefaultImageAccept is forwarded upstream when the client sent no Accept header.
const DefaultImageAccept = "image/*"

// UploadRequest is the JSON body of POST /upload.
type UploadRequest struct {
	Path        string `json:"path"`
	ContentType string `json:"contentType"`
	FileBase64  string `json:"fileBase64"`
}

// MissingFields returns the names of required fields that are empty, in
// declaration order.
func (r UploadRequest) MissingFields() []string {
	var missing []string
	if r.Path == "" {
		missing = append(missing, "path")
	}
	if r.ContentType == "" {
		missing = append(missing, "contentType")
	}
	if r.FileBase64 == "" {
		missing = append(missing, "fileBase64")
	}
	return missing
}

// DeleteRequest is the JSON body of POST /delete.
type DeleteRequest struct {
	Path string `json:"path"`
}

// PurgeRequest is the JSON body of POST /purge.
type PurgeRequest struct {
	URL string `json:"url"`
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	CacheControl string    `json:"cache_control,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PutOptions carries the HTTP metadata stored alongside an object.
type PutOptions struct {
	ContentType  string
	CacheControl string
}

// PurgeResult is the upstream purge API response, kept verbatim so it can be
// echoed back to the caller.
type PurgeResult struct {
	URL      string
	Response json.RawMessage
}

// FetchRequest is a single request to a transformation backend.
//
// Options is nil when the origin must be fetched untransformed.
type FetchRequest struct {
	// Key is the storage key derived from the request path.
	Key string
	// OriginURL is the absolute URL of the untransformed image.
	OriginURL string
	Options   TransformOptions
	Accept    string
	UserAgent string
}

// Transformed reports whether the request asks for a transformation.
func (r FetchRequest) Transformed() bool {
	return r.Options != nil
}

// FetchResponse is the upstream answer to a FetchRequest. The caller owns Body.
type FetchResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// ImageRequest is an inbound image-serving request.
type ImageRequest struct {
	// Path is the request path without its leading slash.
	Path   string
	Query  url.Values
	Accept string
}

// ImageResponse is what the gateway sends back for an ImageRequest. The
// caller owns Body.
type ImageResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

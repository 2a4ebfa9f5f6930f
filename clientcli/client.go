package clientcli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/arroweffect/imgapi"
	imgapihttp "github.com/arroweffect/imgapi/http"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// Client performs admin operations against an imgapi server.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a new Client with the given config and options.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config: &Config{
			Endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
			Token:    cfg.Token,
		},
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Upload uploads file(s) to the server.
// For recursive uploads, walks directory and preserves relative paths.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) ([]UploadResult, error) {
	if opts.LocalPath == "" {
		return nil, fmt.Errorf("upload: %w", ErrEmptyPath)
	}
	if opts.Recursive {
		return c.uploadRecursive(ctx, opts)
	}

	remotePath := opts.RemotePath
	if remotePath == "" {
		remotePath = NormalizeLocalToRemotePath(opts.LocalPath)
	}

	result, err := c.uploadSingle(ctx, opts.LocalPath, remotePath, opts.ContentType)
	if err != nil {
		return nil, err
	}
	return []UploadResult{result}, nil
}

func (c *Client) uploadRecursive(ctx context.Context, opts UploadOptions) ([]UploadResult, error) {
	info, err := os.Stat(opts.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("stat local path: %w", err)
	}

	if !info.IsDir() {
		return c.Upload(ctx, UploadOptions{
			LocalPath:   opts.LocalPath,
			RemotePath:  opts.RemotePath,
			ContentType: opts.ContentType,
		})
	}

	var results []UploadResult
	baseDir := opts.LocalPath
	remotePrefix := strings.Trim(opts.RemotePath, "/")

	walkErr := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, fileErr error) error {
		if fileErr != nil {
			return fileErr
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			return nil
		}

		relPath, relErr := filepath.Rel(baseDir, path)
		if relErr != nil {
			results = append(results, UploadResult{
				LocalPath: path,
				Err:       fmt.Errorf("calculate relative path: %w", relErr),
			})
			return nil
		}

		remotePath := filepath.ToSlash(relPath)
		if remotePrefix != "" {
			remotePath = remotePrefix + "/" + remotePath
		}

		result, uploadErr := c.uploadSingle(ctx, path, remotePath, "")
		if uploadErr != nil {
			result = UploadResult{
				LocalPath:  path,
				RemotePath: remotePath,
				Err:        uploadErr,
			}
		}
		results = append(results, result)
		return nil
	})

	if walkErr != nil {
		return results, fmt.Errorf("walk directory: %w", walkErr)
	}

	return results, nil
}

// uploadSingle reads a file, base64-encodes it and posts it to /upload.
func (c *Client) uploadSingle(ctx context.Context, localPath, remotePath, contentType string) (UploadResult, error) {
	data, err := os.ReadFile(localPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return UploadResult{}, fmt.Errorf("read file: %w", err)
	}

	if contentType == "" {
		contentType = detectContentType(localPath)
	}

	remotePath = normalizePath(remotePath)

	body := imgapi.UploadRequest{
		Path:        remotePath,
		ContentType: contentType,
		FileBase64:  base64.StdEncoding.EncodeToString(data),
	}

	status, respBody, err := c.post(ctx, "/upload", body)
	if err != nil {
		return UploadResult{}, err
	}

	if status != http.StatusCreated {
		return UploadResult{}, parseServerError(status, respBody)
	}

	return UploadResult{
		LocalPath:   localPath,
		RemotePath:  remotePath,
		ContentType: contentType,
		Size:        int64(len(data)),
		Message:     string(respBody),
	}, nil
}

// Delete deletes one or more files from the server.
// Continues on error, collecting results for all paths.
func (c *Client) Delete(ctx context.Context, opts DeleteOptions) ([]DeleteResult, error) {
	if len(opts.Paths) == 0 {
		return nil, ErrNoPaths
	}

	results := make([]DeleteResult, 0, len(opts.Paths))

	for _, path := range opts.Paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		results = append(results, c.deleteSingle(ctx, path))
	}

	return results, nil
}

func (c *Client) deleteSingle(ctx context.Context, path string) DeleteResult {
	remotePath := normalizePath(path)

	status, body, err := c.post(ctx, "/delete", imgapi.DeleteRequest{Path: remotePath})
	if err != nil {
		return DeleteResult{Path: path, Err: err}
	}

	if status != http.StatusOK {
		return DeleteResult{Path: path, Err: parseServerError(status, body)}
	}

	var resp imgapihttp.DeleteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return DeleteResult{Path: path, Err: fmt.Errorf("parse response: %w", err)}
	}

	return DeleteResult{
		Path:    path,
		Deleted: resp.Success,
	}
}

// HasDeleteErrors returns true if any delete operation failed.
func HasDeleteErrors(results []DeleteResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// Purge evicts one or more public URLs from the CDN cache.
// Continues on error, collecting results for all URLs.
func (c *Client) Purge(ctx context.Context, opts PurgeOptions) ([]PurgeResult, error) {
	if len(opts.URLs) == 0 {
		return nil, ErrNoURLs
	}

	results := make([]PurgeResult, 0, len(opts.URLs))

	for _, u := range opts.URLs {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		results = append(results, c.purgeSingle(ctx, u))
	}

	return results, nil
}

func (c *Client) purgeSingle(ctx context.Context, rawURL string) PurgeResult {
	status, body, err := c.post(ctx, "/purge", imgapi.PurgeRequest{URL: rawURL})
	if err != nil {
		return PurgeResult{URL: rawURL, Err: err}
	}

	if status != http.StatusOK {
		return PurgeResult{URL: rawURL, Err: parseServerError(status, body)}
	}

	var resp imgapihttp.PurgeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return PurgeResult{URL: rawURL, Err: fmt.Errorf("parse response: %w", err)}
	}

	return PurgeResult{
		URL:    resp.Purged,
		Purged: resp.Success,
		Detail: resp.Cloudflare,
	}
}

// HasPurgeErrors returns true if any purge operation failed.
func HasPurgeErrors(results []PurgeResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// post sends payload as JSON to an admin route and returns the status and
// the full response body.
func (c *Client) post(ctx context.Context, route string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint+route, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", imgapi.BearerPrefix+c.config.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, body, nil
}

// normalizePath strips leading and trailing slashes; storage keys are relative.
func normalizePath(path string) string {
	return strings.Trim(path, "/")
}

// NormalizeLocalToRemotePath converts a local path to a clean remote path.
// It handles:
//   - Leading "./" is stripped (./foo/bar.jpg -> foo/bar.jpg)
//   - Leading "/" is stripped (/abs/path/a.png -> abs/path/a.png)
//   - Parent traversal is resolved (../sibling/a.png -> sibling/a.png)
//   - Backslashes are converted to forward slashes (Windows)
func NormalizeLocalToRemotePath(localPath string) string {
	path := filepath.ToSlash(filepath.Clean(filepath.ToSlash(localPath)))

	path = strings.TrimPrefix(path, "./")
	path = strings.TrimPrefix(path, "/")

	for strings.HasPrefix(path, "../") {
		path = strings.TrimPrefix(path, "../")
	}

	if path == ".." || path == "." {
		return ""
	}

	return path
}

// detectContentType returns MIME type based on file extension.
func detectContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "application/octet-stream"
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "application/octet-stream"
	}

	return mimeType
}

func parseServerError(statusCode int, body []byte) error {
	return &APIError{
		StatusCode: statusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return "server error: " + strconv.Itoa(e.StatusCode) + " - " + e.Body
}

// Is reports whether target matches this error.
// It matches if target is an *APIError with the same StatusCode.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	return t.StatusCode == e.StatusCode
}

// IsNotFound returns true if the error is a 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Sentinel errors for common API error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrNotFound is returned when the object to delete does not exist (404).
	ErrNotFound = &APIError{StatusCode: http.StatusNotFound}

	// ErrUnauthorized is returned when the admin token is rejected (401).
	ErrUnauthorized = &APIError{StatusCode: http.StatusUnauthorized}

	// ErrBadRequest is returned when the server rejects the payload (400).
	ErrBadRequest = &APIError{StatusCode: http.StatusBadRequest}
)

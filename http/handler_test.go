package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arroweffect/imgapi"
	imgapihttp "github.com/arroweffect/imgapi/http"
)

const testSecret = "s3cret"

// MockService is a mock implementation of http.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Upload(ctx context.Context, req imgapi.UploadRequest) (imgapi.ObjectInfo, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(imgapi.ObjectInfo), args.Error(1)
}

func (m *MockService) Delete(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

func (m *MockService) Purge(ctx context.Context, rawURL string) (imgapi.PurgeResult, error) {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(imgapi.PurgeResult), args.Error(1)
}

func (m *MockService) ServeImage(ctx context.Context, req imgapi.ImageRequest) (*imgapi.ImageResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*imgapi.ImageResponse)
	return resp, args.Error(1)
}

func newHandler(t *testing.T) (http.Handler, *MockService) {
	t.Helper()
	service := new(MockService)
	config := &imgapihttp.HandlerConfig{Secret: testSecret, MaxBodySize: 1 << 10}
	return imgapihttp.NewHandler(config, service).Router(), service
}

func adminRequest(path, contentType, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testSecret)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Upload(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		handler, service := newHandler(t)

		want := imgapi.UploadRequest{Path: "photos/a.jpg", ContentType: "image/jpeg", FileBase64: "aGVsbG8="}
		service.On("Upload", mock.Anything, want).Return(imgapi.ObjectInfo{Key: "photos/a.jpg"}, nil)

		rec := serve(handler, adminRequest("/upload", "application/json",
			`{"path":"photos/a.jpg","contentType":"image/jpeg","fileBase64":"aGVsbG8="}`))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "File uploaded successfully: photos/a.jpg", rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

		service.AssertExpectations(t)
	})

	tests := []struct {
		name        string
		auth        string
		contentType string
		body        string
		wantCode    int
		wantBody    string
	}{
		{
			name:        "missing auth",
			contentType: "application/json",
			body:        `{}`,
			wantCode:    http.StatusUnauthorized,
			wantBody:    "Unauthorized",
		},
		{
			name:        "wrong token",
			auth:        "Bearer nope",
			contentType: "application/json",
			body:        `{}`,
			wantCode:    http.StatusUnauthorized,
			wantBody:    "Unauthorized",
		},
		{
			name:        "lowercase scheme",
			auth:        "bearer " + testSecret,
			contentType: "application/json",
			body:        `{}`,
			wantCode:    http.StatusUnauthorized,
			wantBody:    "Unauthorized",
		},
		{
			name:        "wrong content type",
			auth:        "Bearer " + testSecret,
			contentType: "text/plain",
			body:        `{"path":"a.jpg","contentType":"image/jpeg","fileBase64":"aGVsbG8="}`,
			wantCode:    http.StatusBadRequest,
			wantBody:    "Content-Type must be application/json",
		},
		{
			name:        "content type with charset",
			auth:        "Bearer " + testSecret,
			contentType: "application/json; charset=utf-8",
			body:        `{}`,
			wantCode:    http.StatusBadRequest,
			wantBody:    "Content-Type must be application/json",
		},
		{
			name:        "invalid json",
			auth:        "Bearer " + testSecret,
			contentType: "application/json",
			body:        `{"path":`,
			wantCode:    http.StatusBadRequest,
			wantBody:    "Invalid JSON body",
		},
		{
			name:        "trailing bracket",
			auth:        "Bearer " + testSecret,
			contentType: "application/json",
			body:        `{"path":"a.jpg","contentType":"image/jpeg","fileBase64":"aGVsbG8="}]`,
			wantCode:    http.StatusBadRequest,
			wantBody:    "Invalid JSON body",
		},
		{
			name:        "non-string path",
			auth:        "Bearer " + testSecret,
			contentType: "application/json",
			body:        `{"path":42,"contentType":"image/jpeg","fileBase64":"aGVsbG8="}`,
			wantCode:    http.StatusBadRequest,
			wantBody:    "Invalid JSON body",
		},
		{
			name:        "missing fields",
			auth:        "Bearer " + testSecret,
			contentType: "application/json",
			body:        `{"contentType":"image/jpeg"}`,
			wantCode:    http.StatusBadRequest,
			wantBody:    "Missing required fields: path, fileBase64",
		},
		{
			name:        "oversized body",
			auth:        "Bearer " + testSecret,
			contentType: "application/json",
			body:        fmt.Sprintf(`{"path":"a.jpg","contentType":"image/jpeg","fileBase64":"%s"}`, strings.Repeat("A", 2048)),
			wantCode:    http.StatusBadRequest,
			wantBody:    "Invalid JSON body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, service := newHandler(t)

			req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(tt.body))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			req.Header.Set("Content-Type", tt.contentType)

			rec := serve(handler, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
			service.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
		})
	}

	serviceErrors := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{name: "invalid path", err: fmt.Errorf("upload: %w", imgapi.ErrInvalidPath), wantCode: http.StatusBadRequest, wantBody: "Invalid path"},
		{name: "invalid base64", err: fmt.Errorf("upload: %w", imgapi.ErrInvalidEncoding), wantCode: http.StatusBadRequest, wantBody: "Invalid base64 content"},
		{name: "storage failure", err: errors.New("disk full"), wantCode: http.StatusInternalServerError, wantBody: "Upload failed"},
	}

	for _, tt := range serviceErrors {
		t.Run(tt.name, func(t *testing.T) {
			handler, service := newHandler(t)

			service.On("Upload", mock.Anything, mock.Anything).Return(imgapi.ObjectInfo{}, tt.err)

			rec := serve(handler, adminRequest("/upload", "application/json",
				`{"path":"a.jpg","contentType":"image/jpeg","fileBase64":"aGVsbG8="}`))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestHandler_Upload_EmptySecretRejects(t *testing.T) {
	service := new(MockService)
	handler := imgapihttp.NewHandler(&imgapihttp.HandlerConfig{}, service).Router()

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer ")
	req.Header.Set("Content-Type", "application/json")

	rec := serve(handler, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func decodeDelete(t *testing.T, rec *httptest.ResponseRecorder) imgapihttp.DeleteResponse {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp imgapihttp.DeleteResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHandler_Delete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		handler, service := newHandler(t)

		service.On("Delete", mock.Anything, "photos/a.jpg").Return(nil)

		rec := serve(handler, adminRequest("/delete", "application/json", `{"path":"photos/a.jpg"}`))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, imgapihttp.DeleteResponse{Success: true, Deleted: "photos/a.jpg"}, decodeDelete(t, rec))
		service.AssertExpectations(t)
	})

	tests := []struct {
		name       string
		auth       bool
		body       string
		serviceErr error
		callsSvc   bool
		wantCode   int
		wantError  string
	}{
		{name: "unauthorized", body: `{"path":"a.jpg"}`, wantCode: http.StatusUnauthorized, wantError: "Unauthorized"},
		{name: "invalid json", auth: true, body: `nope`, wantCode: http.StatusBadRequest, wantError: "Invalid JSON body"},
		{name: "stray closing brace", auth: true, body: `{"path":"a.jpg"}}`, wantCode: http.StatusBadRequest, wantError: "Invalid JSON body"},
		{name: "second object", auth: true, body: `{"path":"a.jpg"} {"path":"b.jpg"}`, wantCode: http.StatusBadRequest, wantError: "Invalid JSON body"},
		{name: "missing path", auth: true, body: `{}`, wantCode: http.StatusBadRequest, wantError: "Missing path field in body"},
		{
			name: "invalid path", auth: true, body: `{"path":"../a.jpg"}`,
			serviceErr: imgapi.ErrInvalidPath, callsSvc: true,
			wantCode: http.StatusBadRequest, wantError: "Invalid path",
		},
		{
			name: "not found", auth: true, body: `{"path":"missing.jpg"}`,
			serviceErr: fmt.Errorf("delete missing.jpg: %w", imgapi.ErrNotFound), callsSvc: true,
			wantCode: http.StatusNotFound, wantError: `File "missing.jpg" not found in bucket`,
		},
		{
			name: "storage failure", auth: true, body: `{"path":"a.jpg"}`,
			serviceErr: errors.New("bucket unavailable"), callsSvc: true,
			wantCode: http.StatusInternalServerError, wantError: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, service := newHandler(t)
			if tt.callsSvc {
				service.On("Delete", mock.Anything, mock.Anything).Return(tt.serviceErr)
			}

			req := httptest.NewRequest(http.MethodPost, "/delete", strings.NewReader(tt.body))
			if tt.auth {
				req.Header.Set("Authorization", "Bearer "+testSecret)
			}

			rec := serve(handler, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			resp := decodeDelete(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantError, resp.Error)

			if !tt.callsSvc {
				service.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestHandler_Purge(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		handler, service := newHandler(t)

		service.On("Purge", mock.Anything, "https://images.example.com/a.jpg").Return(imgapi.PurgeResult{
			URL:      "https://images.example.com/a.jpg",
			Response: json.RawMessage(`{"success":true,"result":{"id":"abc"}}`),
		}, nil)

		rec := serve(handler, adminRequest("/purge", "application/json", `{"url":"https://images.example.com/a.jpg"}`))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t,
			`{"success":true,"purged":"https://images.example.com/a.jpg","cloudflare":{"success":true,"result":{"id":"abc"}}}`,
			rec.Body.String())
	})

	t.Run("upstream failure relays detail", func(t *testing.T) {
		handler, service := newHandler(t)

		service.On("Purge", mock.Anything, mock.Anything).Return(imgapi.PurgeResult{}, &imgapi.UpstreamError{
			Op:         "purge",
			StatusCode: http.StatusForbidden,
			Detail:     json.RawMessage(`[{"code":10000,"message":"Authentication error"}]`),
		})

		rec := serve(handler, adminRequest("/purge", "application/json", `{"url":"https://images.example.com/a.jpg"}`))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `[{"code":10000,"message":"Authentication error"}]`, rec.Body.String())
	})

	t.Run("transport failure", func(t *testing.T) {
		handler, service := newHandler(t)

		service.On("Purge", mock.Anything, mock.Anything).Return(imgapi.PurgeResult{}, &imgapi.UpstreamError{
			Op:  "purge",
			Err: errors.New("dial tcp: i/o timeout"),
		})

		rec := serve(handler, adminRequest("/purge", "application/json", `{"url":"https://images.example.com/a.jpg"}`))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var msg string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
		assert.Contains(t, msg, "i/o timeout")
	})

	tests := []struct {
		name       string
		auth       bool
		body       string
		serviceErr error
		wantCode   int
		wantBody   string
	}{
		{name: "unauthorized", body: `{"url":"https://a.example.com/x"}`, wantCode: http.StatusUnauthorized, wantBody: "Unauthorized"},
		{name: "invalid json", auth: true, body: `[`, wantCode: http.StatusBadRequest, wantBody: "Invalid JSON body"},
		{name: "missing url", auth: true, body: `{}`, wantCode: http.StatusBadRequest, wantBody: "Missing url field in body"},
		{
			name: "invalid url", auth: true, body: `{"url":"not a url"}`,
			serviceErr: imgapi.ErrInvalidURL,
			wantCode:   http.StatusBadRequest, wantBody: "Invalid URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, service := newHandler(t)
			if tt.serviceErr != nil {
				service.On("Purge", mock.Anything, mock.Anything).Return(imgapi.PurgeResult{}, tt.serviceErr)
			}

			req := httptest.NewRequest(http.MethodPost, "/purge", strings.NewReader(tt.body))
			if tt.auth {
				req.Header.Set("Authorization", "Bearer "+testSecret)
			}

			rec := serve(handler, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}

func imageResponse(status int, body string, header http.Header) *imgapi.ImageResponse {
	return &imgapi.ImageResponse{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestHandler_Image(t *testing.T) {
	t.Run("passes through response", func(t *testing.T) {
		handler, service := newHandler(t)

		header := http.Header{}
		header.Set("Content-Type", "image/webp")
		header.Set("Cache-Control", imgapi.CacheControlImage)

		expected := imgapi.ImageRequest{
			Path:   "photos/a.jpg",
			Query:  url.Values{"width": {"800"}},
			Accept: "image/webp,*/*",
		}
		service.On("ServeImage", mock.Anything, expected).Return(imageResponse(http.StatusOK, "webp bytes", header), nil)

		req := httptest.NewRequest(http.MethodGet, "/photos/a.jpg?width=800", nil)
		req.Header.Set("Accept", "image/webp,*/*")
		rec := serve(handler, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "webp bytes", rec.Body.String())
		assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))
		assert.Equal(t, imgapi.CacheControlImage, rec.Header().Get("Cache-Control"))

		service.AssertExpectations(t)
	})

	t.Run("admin path with other method is an image", func(t *testing.T) {
		handler, service := newHandler(t)

		service.On("ServeImage", mock.Anything, mock.MatchedBy(func(req imgapi.ImageRequest) bool {
			return req.Path == "upload"
		})).Return(imageResponse(http.StatusNotFound, "Image not found", http.Header{}), nil)

		rec := serve(handler, httptest.NewRequest(http.MethodGet, "/upload", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Image not found", rec.Body.String())
	})

	t.Run("upstream failure", func(t *testing.T) {
		handler, service := newHandler(t)

		service.On("ServeImage", mock.Anything, mock.Anything).
			Return(nil, &imgapi.UpstreamError{Op: "origin", Err: errors.New("dial tcp 10.0.0.1:443: connection refused")})

		rec := serve(handler, httptest.NewRequest(http.MethodGet, "/a.jpg", nil))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "Image unavailable", rec.Body.String())
		assert.Equal(t, imgapi.CacheControlNoStore, rec.Header().Get("Cache-Control"))
		assert.NotContains(t, rec.Body.String(), "10.0.0.1")
	})

	t.Run("head has no body", func(t *testing.T) {
		handler, service := newHandler(t)

		service.On("ServeImage", mock.Anything, mock.Anything).
			Return(imageResponse(http.StatusOK, "bytes", http.Header{}), nil)

		rec := serve(handler, httptest.NewRequest(http.MethodHead, "/a.jpg", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}

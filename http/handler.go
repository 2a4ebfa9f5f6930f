package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/arroweffect/imgapi"
)

// Service is the gateway behaviour the handlers translate to HTTP.
type Service interface {
	Upload(ctx context.Context, req imgapi.UploadRequest) (imgapi.ObjectInfo, error)
	Delete(ctx context.Context, path string) error
	Purge(ctx context.Context, rawURL string) (imgapi.PurgeResult, error)
	ServeImage(ctx context.Context, req imgapi.ImageRequest) (*imgapi.ImageResponse, error)
}

type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

type HandlerConfig struct {
	// Secret is the shared bearer token for admin routes. Empty rejects
	// every admin request.
	Secret string
	// MaxBodySize caps admin request bodies in bytes. Zero means no limit.
	MaxBodySize int64
	CORS        CORSConfig
	// Middlewares run after the built-in ones, in order.
	Middlewares []func(http.Handler) http.Handler
}

// Handler provides HTTP handlers for the gateway operations.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	return &Handler{
		config:  *config,
		service: service,
	}
}

// Router returns an http.Handler with the admin routes and the image
// catch-all.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	for _, mw := range h.config.Middlewares {
		r.Use(mw)
	}

	r.Group(func(r chi.Router) {
		r.Use(BodyLimit(h.config.MaxBodySize))

		r.With(AuthMiddleware(h.config.Secret, writeTextUnauthorized)).Post("/upload", h.handleUpload)
		r.With(AuthMiddleware(h.config.Secret, writeJSONUnauthorized)).Post("/delete", h.handleDelete)
		r.With(AuthMiddleware(h.config.Secret, writeTextUnauthorized)).Post("/purge", h.handlePurge)
	})

	// Anything that is not an admin POST is an image request, including
	// GET /upload.
	r.Handle("/*", http.HandlerFunc(h.handleImage))
	r.MethodNotAllowed(h.handleImage)
	r.NotFound(h.handleImage)

	return r
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Content-Type") != "application/json" {
		WriteText(w, http.StatusBadRequest, "Content-Type must be application/json")
		return
	}

	var req imgapi.UploadRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteText(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if missing := req.MissingFields(); len(missing) > 0 {
		WriteText(w, http.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
		return
	}

	_, err := h.service.Upload(r.Context(), req)
	switch {
	case err == nil:
		WriteText(w, http.StatusCreated, "File uploaded successfully: "+req.Path)
	case errors.Is(err, imgapi.ErrInvalidPath):
		WriteText(w, http.StatusBadRequest, "Invalid path")
	case errors.Is(err, imgapi.ErrInvalidEncoding):
		WriteText(w, http.StatusBadRequest, "Invalid base64 content")
	case errors.Is(err, imgapi.ErrInvalidInput):
		WriteText(w, http.StatusBadRequest, "Invalid request")
	default:
		slog.ErrorContext(r.Context(), "upload failed", "path", req.Path, "err", err)
		WriteText(w, http.StatusInternalServerError, "Upload failed")
	}
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req imgapi.DeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteDeleteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if req.Path == "" {
		WriteDeleteError(w, http.StatusBadRequest, "Missing path field in body")
		return
	}

	err := h.service.Delete(r.Context(), req.Path)
	switch {
	case err == nil:
		_ = WriteJSON(w, http.StatusOK, DeleteResponse{Success: true, Deleted: req.Path})
	case errors.Is(err, imgapi.ErrNotFound):
		WriteDeleteError(w, http.StatusNotFound, fmt.Sprintf("File %q not found in bucket", req.Path))
	case errors.Is(err, imgapi.ErrInvalidInput):
		WriteDeleteError(w, http.StatusBadRequest, "Invalid path")
	default:
		slog.ErrorContext(r.Context(), "delete failed", "path", req.Path, "err", err)
		WriteDeleteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	var req imgapi.PurgeRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteText(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if req.URL == "" {
		WriteText(w, http.StatusBadRequest, "Missing url field in body")
		return
	}

	result, err := h.service.Purge(r.Context(), req.URL)
	switch {
	case err == nil:
		_ = WriteJSON(w, http.StatusOK, PurgeResponse{
			Success:    true,
			Purged:     result.URL,
			Cloudflare: result.Response,
		})
	case errors.Is(err, imgapi.ErrInvalidInput):
		WriteText(w, http.StatusBadRequest, "Invalid URL")
	default:
		slog.ErrorContext(r.Context(), "purge failed", "url", req.URL, "err", err)
		writeUpstreamError(w, err)
	}
}

func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ServeImage(r.Context(), imgapi.ImageRequest{
		Path:   strings.TrimPrefix(r.URL.Path, "/"),
		Query:  r.URL.Query(),
		Accept: r.Header.Get("Accept"),
	})
	if err != nil {
		if r.Context().Err() == nil {
			slog.WarnContext(r.Context(), "image unavailable", "path", r.URL.Path, "err", err)
		}
		w.Header().Set("Cache-Control", imgapi.CacheControlNoStore)
		WriteText(w, http.StatusBadGateway, "Image unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	header := w.Header()
	for k, v := range resp.Header {
		header[k] = v
	}
	w.WriteHeader(resp.StatusCode)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		slog.DebugContext(r.Context(), "image copy aborted", "path", r.URL.Path, "err", err)
	}
}

// decodeJSON rejects bodies that are not a single JSON object of the
// expected shape. Oversized bodies fail here too.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after JSON body")
	}
	return nil
}

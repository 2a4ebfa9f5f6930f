// Package filesystem provides an ObjectStore on a local directory.
// Writes are atomic (temp file plus rename) and object metadata is kept in
// JSON sidecar files under .meta/, which no valid object key can address.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/arroweffect/imgapi"
)

const metaDir = ".meta"

type metadata struct {
	ContentType  string `json:"content_type"`
	CacheControl string `json:"cache_control,omitempty"`
	ETag         string `json:"etag,omitempty"`
}

// Store provides file system storage operations.
type Store struct {
	root *os.Root
}

// NewStore creates a Store on root. The root provides sandboxed file
// operations preventing path traversal.
func NewStore(root *os.Root) *Store {
	return &Store{root: root}
}

// Head returns the metadata for key. Returns imgapi.ErrNotFound if the
// object does not exist.
func (s *Store) Head(ctx context.Context, key string) (imgapi.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return imgapi.ObjectInfo{}, err
	}

	fi, err := s.root.Stat(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return imgapi.ObjectInfo{}, imgapi.ErrNotFound
		}
		return imgapi.ObjectInfo{}, fmt.Errorf("stat %s: %w", key, err)
	}
	if fi.IsDir() {
		return imgapi.ObjectInfo{}, imgapi.ErrNotFound
	}

	return s.info(key, fi), nil
}

// Get opens an object for reading. Returns imgapi.ErrNotFound if the
// object does not exist.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, imgapi.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, imgapi.ObjectInfo{}, err
	}

	f, err := s.root.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, imgapi.ObjectInfo{}, imgapi.ErrNotFound
		}
		return nil, imgapi.ObjectInfo{}, fmt.Errorf("failed to open file: %w", err)
	}

	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		_ = f.Close()
		if err != nil {
			return nil, imgapi.ObjectInfo{}, fmt.Errorf("failed to stat file: %w", err)
		}
		return nil, imgapi.ObjectInfo{}, imgapi.ErrNotFound
	}

	return f, s.info(key, fi), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Put atomically writes content to key using a temp file and rename,
// creating intermediate directories as needed. The number of bytes read
// from content must equal size.
func (s *Store) Put(ctx context.Context, key string, content io.Reader, size int64, opts imgapi.PutOptions) (imgapi.ObjectInfo, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return imgapi.ObjectInfo{}, ctxErr
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return imgapi.ObjectInfo{}, fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	h := sha256.New()
	w := io.MultiWriter(h, t)

	written, err := io.Copy(w, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return imgapi.ObjectInfo{}, fmt.Errorf("could not copy file contents: %w", err)
	}
	if written != size {
		return imgapi.ObjectInfo{}, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := t.Sync(); err != nil {
		return imgapi.ObjectInfo{}, fmt.Errorf("could not sync written file: %w", err)
	}

	if err := s.mkdirFor(key); err != nil {
		return imgapi.ObjectInfo{}, err
	}
	if renameErr := s.root.Rename(tmpFile, key); renameErr != nil {
		return imgapi.ObjectInfo{}, fmt.Errorf("failed to rename file: %w", renameErr)
	}
	success = true

	// The sidecar is only written once the object is in place. A stale
	// sidecar from a previous version must not outlive a failed write.
	meta := metadata{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		ETag:         hex.EncodeToString(h.Sum(nil)),
	}
	if err := s.writeMeta(key, meta); err != nil {
		if rmErr := s.root.Remove(metaPath(key)); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			slog.Warn("failed to remove stale metadata", "key", key, "err", rmErr)
		}
		return imgapi.ObjectInfo{}, err
	}

	return imgapi.ObjectInfo{
		Key:          key,
		Size:         written,
		ContentType:  meta.ContentType,
		CacheControl: meta.CacheControl,
		ETag:         meta.ETag,
		UpdatedAt:    time.Now().UTC(),
	}, nil
}

// Delete removes an object and its metadata. Returns imgapi.ErrNotFound if
// the object does not exist.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if fi, err := s.root.Stat(key); err == nil && fi.IsDir() {
		return imgapi.ErrNotFound
	}

	err := s.root.Remove(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return imgapi.ErrNotFound
		}
		return fmt.Errorf("could not delete file: %w", err)
	}

	if err := s.root.Remove(metaPath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove metadata", "key", key, "err", err)
	}
	return nil
}

func (s *Store) info(key string, fi os.FileInfo) imgapi.ObjectInfo {
	meta := s.readMeta(key)
	return imgapi.ObjectInfo{
		Key:          key,
		Size:         fi.Size(),
		ContentType:  meta.ContentType,
		CacheControl: meta.CacheControl,
		ETag:         meta.ETag,
		UpdatedAt:    fi.ModTime().UTC(),
	}
}

// readMeta falls back to extension-based detection for files written
// outside the store.
func (s *Store) readMeta(key string) metadata {
	var meta metadata

	data, err := s.root.ReadFile(metaPath(key))
	if err == nil {
		if jsonErr := json.Unmarshal(data, &meta); jsonErr != nil {
			slog.Warn("ignoring corrupt metadata", "key", key, "err", jsonErr)
			meta = metadata{}
		}
	}

	if meta.ContentType == "" {
		meta.ContentType = detectContentType(key)
	}
	return meta
}

func (s *Store) writeMeta(key string, meta metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("could not encode metadata: %w", err)
	}

	target := metaPath(key)
	if err := s.mkdirFor(target); err != nil {
		return err
	}

	tmp := path.Join(metaDir, tmpFileName())
	if err := s.root.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("could not write metadata: %w", err)
	}
	if err := s.root.Rename(tmp, target); err != nil {
		_ = s.root.Remove(tmp)
		return fmt.Errorf("failed to rename metadata: %w", err)
	}
	return nil
}

func (s *Store) mkdirFor(name string) error {
	destDir := path.Dir(name)
	if destDir == "." {
		return nil
	}
	if err := s.root.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("could not create intermediate directories: %w", err)
	}
	return nil
}

func metaPath(key string) string {
	return path.Join(metaDir, key+".json")
}

func detectContentType(key string) string {
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}

func tmpFileName() string {
	return fmt.Sprintf(".t%s", uuid.New().String())
}

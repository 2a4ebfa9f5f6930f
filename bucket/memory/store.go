// Package memory provides an in-process ObjectStore. Objects live only as
// long as the Store value; it is meant for tests and local development.
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/arroweffect/imgapi"
)

type object struct {
	data []byte
	info imgapi.ObjectInfo
}

// Store is a map-backed object store safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
	now     func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		objects: make(map[string]object),
		now:     time.Now,
	}
}

// Head returns the metadata stored for key.
func (s *Store) Head(ctx context.Context, key string) (imgapi.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return imgapi.ObjectInfo{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return imgapi.ObjectInfo{}, imgapi.ErrNotFound
	}
	return obj.info, nil
}

// Get returns a reader over a copy of the object's bytes.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, imgapi.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, imgapi.ObjectInfo{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, imgapi.ObjectInfo{}, imgapi.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(obj.data))), obj.info, nil
}

// Put reads content fully and replaces whatever is stored at key.
func (s *Store) Put(ctx context.Context, key string, content io.Reader, size int64, opts imgapi.PutOptions) (imgapi.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return imgapi.ObjectInfo{}, err
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return imgapi.ObjectInfo{}, fmt.Errorf("read content: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return imgapi.ObjectInfo{}, fmt.Errorf("short write: expected %d bytes, got %d", size, len(data))
	}

	sum := sha256.Sum256(data)
	info := imgapi.ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		ETag:         hex.EncodeToString(sum[:]),
		UpdatedAt:    s.now(),
	}

	s.mu.Lock()
	s.objects[key] = object{data: data, info: info}
	s.mu.Unlock()

	return info, nil
}

// Delete removes key. Returns imgapi.ErrNotFound if it does not exist.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return imgapi.ErrNotFound
	}
	delete(s.objects, key)
	return nil
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

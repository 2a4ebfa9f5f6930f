package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arroweffect/imgapi"
	"github.com/arroweffect/imgapi/bucket/filesystem"
	"github.com/arroweffect/imgapi/bucket/memory"
	"github.com/arroweffect/imgapi/cloudflare"
	"github.com/arroweffect/imgapi/config"
	"github.com/arroweffect/imgapi/localimage"
)

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	t.Run("filesystem", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "data")

		store, closer, err := newStore(ctx, config.StorageConfig{Type: config.StorageFilesystem, Path: dir})
		require.NoError(t, err)
		require.NotNil(t, closer)
		defer func() { _ = closer.Close() }()

		assert.IsType(t, &filesystem.Store{}, store)

		_, err = store.Put(ctx, "a.txt", strings.NewReader("x"), 1, imgapi.PutOptions{ContentType: "text/plain"})
		assert.NoError(t, err)
	})

	t.Run("memory", func(t *testing.T) {
		store, closer, err := newStore(ctx, config.StorageConfig{Type: config.StorageMemory})
		require.NoError(t, err)
		assert.Nil(t, closer)
		assert.IsType(t, &memory.Store{}, store)
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := newStore(ctx, config.StorageConfig{Type: "ftp"})
		assert.Error(t, err)
	})
}

func TestNewTransformer(t *testing.T) {
	store := memory.NewStore()

	local, err := newTransformer(config.TransformConfig{Backend: config.TransformLocal}, store)
	require.NoError(t, err)
	assert.IsType(t, &localimage.Transformer{}, local)

	edge, err := newTransformer(config.TransformConfig{
		Backend:  config.TransformCloudflare,
		ZoneHost: "images.example.com",
		Timeout:  time.Second,
	}, store)
	require.NoError(t, err)
	require.IsType(t, &cloudflare.Transformer{}, edge)
	assert.Equal(t,
		"https://images.example.com/cdn-cgi/image/format=avif/https://origin.example.com/a.jpg",
		edge.(*cloudflare.Transformer).URL(imgapi.FetchRequest{
			OriginURL: "https://origin.example.com/a.jpg",
			Options:   imgapi.TransformOptions{"format": "avif"},
		}))

	_, err = newTransformer(config.TransformConfig{Backend: "imgix"}, store)
	assert.Error(t, err)
}

func TestNewPurger(t *testing.T) {
	purger, err := newPurger(config.CloudflareConfig{APIBase: "https://api.cloudflare.com/client/v4"})
	require.NoError(t, err)

	_, err = purger.Purge(context.Background(), "https://images.example.com/a.jpg")
	assert.ErrorIs(t, err, imgapi.ErrUpstream)

	purger, err = newPurger(config.CloudflareConfig{
		APIToken: "token",
		ZoneID:   "zone",
		APIBase:  "https://api.cloudflare.com/client/v4",
	})
	require.NoError(t, err)
	assert.IsType(t, &cloudflare.Client{}, purger)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
	}

	for input, want := range tests {
		assert.Equal(t, want, parseLevel(input), input)
	}
}

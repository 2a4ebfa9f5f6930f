package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/arroweffect/imgapi"
	"github.com/arroweffect/imgapi/bucket/filesystem"
	"github.com/arroweffect/imgapi/bucket/memory"
	"github.com/arroweffect/imgapi/bucket/minio"
	"github.com/arroweffect/imgapi/bucket/s3"
	"github.com/arroweffect/imgapi/cloudflare"
	"github.com/arroweffect/imgapi/config"
	"github.com/arroweffect/imgapi/localimage"
)

// newStore opens the configured object store. The returned closer releases
// any local resources.
func newStore(ctx context.Context, cfg config.StorageConfig) (imgapi.ObjectStore, io.Closer, error) {
	switch cfg.Type {
	case config.StorageFilesystem:
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, nil, fmt.Errorf("create storage directory: %w", err)
		}
		root, err := os.OpenRoot(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open storage root: %w", err)
		}
		return filesystem.NewStore(root), root, nil

	case config.StorageMemory:
		slog.Warn("using in-memory storage; uploads are lost on restart")
		return memory.NewStore(), nil, nil

	case config.StorageS3:
		client, err := s3.NewClient(ctx, s3.ClientConfig{
			Endpoint:        cfg.Endpoint,
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			UsePathStyle:    cfg.UsePathStyle,
		})
		if err != nil {
			return nil, nil, err
		}
		return s3.New(client, cfg.Bucket), nil, nil

	case config.StorageMinIO:
		client, err := minio.NewClient(minio.ClientConfig{
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Region:          cfg.Region,
			UseSSL:          cfg.UseSSL,
		})
		if err != nil {
			return nil, nil, err
		}
		return minio.New(client, cfg.Bucket), nil, nil
	}

	return nil, nil, fmt.Errorf("unknown storage type %q", cfg.Type)
}

func newTransformer(cfg config.TransformConfig, store imgapi.ObjectStore) (imgapi.ImageTransformer, error) {
	switch cfg.Backend {
	case config.TransformCloudflare:
		return cloudflare.NewTransformer("https://"+cfg.ZoneHost,
			cloudflare.WithResponseHeaderTimeout(cfg.Timeout))
	case config.TransformLocal:
		return localimage.New(store), nil
	}
	return nil, fmt.Errorf("unknown transform backend %q", cfg.Backend)
}

func newPurger(cfg config.CloudflareConfig) (imgapi.CachePurger, error) {
	if !cfg.PurgeEnabled() {
		slog.Warn("cloudflare purge credentials not set; /purge will fail")
		return disabledPurger{}, nil
	}
	return cloudflare.NewClient(cfg.ZoneID, cfg.APIToken, cloudflare.WithAPIBase(cfg.APIBase))
}

type disabledPurger struct{}

func (disabledPurger) Purge(context.Context, string) (json.RawMessage, error) {
	return nil, &imgapi.UpstreamError{Op: "purge", Err: errors.New("cloudflare purge is not configured")}
}

// Package minio provides an ObjectStore on a MinIO bucket.
package minio

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/arroweffect/imgapi"
)

// ClientConfig describes how to reach the MinIO server.
type ClientConfig struct {
	// Endpoint is host[:port] without a scheme.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	UseSSL          bool
}

// NewClient builds a MinIO client with static V4 credentials.
func NewClient(cfg ClientConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("new minio client: %w", err)
	}
	return client, nil
}

// Provider implements imgapi.ObjectStore for MinIO.
type Provider struct {
	client *minio.Client
	bucket string
}

// New creates a MinIO provider with the given client and bucket name.
func New(client *minio.Client, bucket string) *Provider {
	return &Provider{
		client: client,
		bucket: bucket,
	}
}

// Head returns the metadata of the object at key.
func (p *Provider) Head(ctx context.Context, key string) (imgapi.ObjectInfo, error) {
	stat, err := p.client.StatObject(ctx, p.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return imgapi.ObjectInfo{}, mapError(err)
	}
	return toInfo(key, stat), nil
}

// Get opens the object at key. The caller closes the returned body.
func (p *Provider) Get(ctx context.Context, key string) (io.ReadCloser, imgapi.ObjectInfo, error) {
	obj, err := p.client.GetObject(ctx, p.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, imgapi.ObjectInfo{}, mapError(err)
	}

	// GetObject is lazy; Stat surfaces a missing key.
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, imgapi.ObjectInfo{}, mapError(err)
	}

	return obj, toInfo(key, stat), nil
}

// Put stores content at key with its content type and cache control.
func (p *Provider) Put(ctx context.Context, key string, content io.Reader, size int64, opts imgapi.PutOptions) (imgapi.ObjectInfo, error) {
	info, err := p.client.PutObject(ctx, p.bucket, key, content, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
	})
	if err != nil {
		return imgapi.ObjectInfo{}, err
	}

	return imgapi.ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		ETag:         info.ETag,
		UpdatedAt:    info.LastModified,
	}, nil
}

// Delete removes the object at key.
func (p *Provider) Delete(ctx context.Context, key string) error {
	// RemoveObject succeeds for missing keys.
	if _, err := p.Head(ctx, key); err != nil {
		return err
	}

	return p.client.RemoveObject(ctx, p.bucket, key, minio.RemoveObjectOptions{})
}

func toInfo(key string, stat minio.ObjectInfo) imgapi.ObjectInfo {
	return imgapi.ObjectInfo{
		Key:          key,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		CacheControl: stat.Metadata.Get("Cache-Control"),
		ETag:         stat.ETag,
		UpdatedAt:    stat.LastModified,
	}
}

func mapError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return imgapi.ErrNotFound
	}
	return err
}

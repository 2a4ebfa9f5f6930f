// Package s3 provides an ObjectStore on an S3-compatible bucket (AWS S3,
// Cloudflare R2, LocalStack).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/arroweffect/imgapi"
)

// ClientConfig describes how to reach the bucket.
type ClientConfig struct {
	// Endpoint overrides the AWS endpoint, e.g.
	// https://<account>.r2.cloudflarestorage.com. Empty means AWS.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// UsePathStyle is required by most S3-compatible services.
	UsePathStyle bool
}

// NewClient builds an S3 client. Static credentials are used when both keys
// are set; otherwise the default AWS credential chain applies.
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// Provider implements imgapi.ObjectStore for S3.
type Provider struct {
	client *s3.Client
	bucket string
}

// New creates an S3 provider with the given client and bucket name.
func New(client *s3.Client, bucket string) *Provider {
	return &Provider{
		client: client,
		bucket: bucket,
	}
}

// Head returns the metadata of the object at key.
func (p *Provider) Head(ctx context.Context, key string) (imgapi.ObjectInfo, error) {
	output, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return imgapi.ObjectInfo{}, mapError(err)
	}

	return imgapi.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(output.ContentLength),
		ContentType:  aws.ToString(output.ContentType),
		CacheControl: aws.ToString(output.CacheControl),
		ETag:         trimETag(aws.ToString(output.ETag)),
		UpdatedAt:    aws.ToTime(output.LastModified),
	}, nil
}

// Get opens the object at key. The caller closes the returned body.
func (p *Provider) Get(ctx context.Context, key string) (io.ReadCloser, imgapi.ObjectInfo, error) {
	output, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, imgapi.ObjectInfo{}, mapError(err)
	}

	info := imgapi.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(output.ContentLength),
		ContentType:  aws.ToString(output.ContentType),
		CacheControl: aws.ToString(output.CacheControl),
		ETag:         trimETag(aws.ToString(output.ETag)),
		UpdatedAt:    aws.ToTime(output.LastModified),
	}

	return output.Body, info, nil
}

// Put stores content at key with its content type and cache control.
func (p *Provider) Put(ctx context.Context, key string, content io.Reader, size int64, opts imgapi.PutOptions) (imgapi.ObjectInfo, error) {
	// Request signing needs a seekable body.
	body, ok := content.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(content)
		if err != nil {
			return imgapi.ObjectInfo{}, fmt.Errorf("read content: %w", err)
		}
		body = bytes.NewReader(data)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.CacheControl != "" {
		input.CacheControl = aws.String(opts.CacheControl)
	}

	output, err := p.client.PutObject(ctx, input)
	if err != nil {
		return imgapi.ObjectInfo{}, err
	}

	return imgapi.ObjectInfo{
		Key:          key,
		Size:         size,
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		ETag:         trimETag(aws.ToString(output.ETag)),
	}, nil
}

// Delete removes the object at key.
func (p *Provider) Delete(ctx context.Context, key string) error {
	// S3 DeleteObject doesn't return an error if the key doesn't exist.
	if _, err := p.Head(ctx, key); err != nil {
		return err
	}

	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	return err
}

func mapError(err error) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return imgapi.ErrNotFound
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return imgapi.ErrNotFound
	}
	// R2 and some gateways answer HEAD misses with a bare 404.
	var re *awshttp.ResponseError
	if errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound {
		return imgapi.ErrNotFound
	}
	return err
}

func trimETag(etag string) string {
	return strings.Trim(etag, `"`)
}

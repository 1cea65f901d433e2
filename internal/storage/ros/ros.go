// Package ros wraps the S3-compatible raw object store the LFS engine
// and the regular-file commit path write physical bytes to. Grounded
// on the other_examples S3-backed LFS server's client construction
// (custom endpoint resolver, path-style addressing) generalized into
// a typed client with presign/multipart support.
package ros

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/platform/retry"
)

// Store is the port the lfs, commit, and resolve engines depend on —
// *Client satisfies it against a real S3-compatible endpoint; tests
// substitute an in-memory fake.
type Store interface {
	Head(ctx context.Context, key string) (size int64, found bool, err error)
	Get(ctx context.Context, key string, byteRange string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, body io.Reader, size int64) error
	PresignGet(ctx context.Context, key string, ttl int64, filename string) (string, error)
	PresignPut(ctx context.Context, key string, ttl int64) (string, error)
	Copy(ctx context.Context, srcKey, dstKey string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix, continuation string) (keys []string, next string, err error)
	MultipartCreate(ctx context.Context, key string) (string, error)
	MultipartPresignPart(ctx context.Context, key, uploadID string, partNumber int32, ttl int64) (string, error)
	MultipartComplete(ctx context.Context, key, uploadID string, parts []PartETag) error
	MultipartAbort(ctx context.Context, key, uploadID string) error
}

// Config carries the connection parameters for one S3-compatible
// endpoint (spec §4.A / §6 KOHAKU_HUB_S3_* env vars).
type Config struct {
	Endpoint string
	Access   string
	Secret   string
	Region   string
	Bucket   string
	UseSSL   bool
}

// Client is the typed raw-object-store accessor. It never returns the
// underlying SDK types to callers — only plain Go values — so the
// commit/lfs/resolve engines can be tested against a fake.
type Client struct {
	s3         *s3.Client
	presign    *s3.PresignClient
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucket     string
}

var _ Store = (*Client)(nil)

// NewClient builds an S3 client pointed at a (possibly non-AWS)
// S3-compatible endpoint using path-style addressing, the shape every
// self-hosted LFS backend in the example pack uses.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	resolver := s3.EndpointResolverFromURL(cfg.Endpoint)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.Access, cfg.Secret, "")),
	)
	if err != nil {
		return nil, apperr.WrapInternal(err, "ServerError", "failed to load S3 client config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.EndpointResolverV2 = resolver
	})

	return &Client{
		s3:         client,
		presign:    s3.NewPresignClient(client),
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		bucket:     cfg.Bucket,
	}, nil
}

// Head reports whether key exists and, if so, its size. A missing key
// is reported as (0, false, nil) — it is an ordinary outcome for the
// LFS dedup check, not a transport failure.
func (c *Client) Head(ctx context.Context, key string) (int64, bool, error) {
	out, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return 0, false, nil
		}

		return 0, false, apperr.WrapInternal(err, "ServerError", "failed to check object existence")
	}

	var size int64
	if out.ContentLength != nil {
		size = *out.ContentLength
	}

	return size, true, nil
}

// DownloadInto uses the concurrent-part manager.Downloader to fetch
// key fully into w, faster than a single-stream Get for the large LFS
// objects the resolve engine reconstructs from.
func (c *Client) DownloadInto(ctx context.Context, w io.WriterAt, key string) (int64, error) {
	n, err := c.downloader.Download(ctx, w, &s3.GetObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
	if err != nil {
		return 0, apperr.WrapInternal(err, "ServerError", "failed to download object")
	}

	return n, nil
}

// Get streams key, optionally range-limited ("bytes=start-end").
func (c *Client) Get(ctx context.Context, key string, byteRange string) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)}
	if byteRange != "" {
		input.Range = aws.String(byteRange)
	}

	out, err := c.s3.GetObject(ctx, input)
	if err != nil {
		return nil, apperr.NewNotFound(apperr.EntityFile, "EntryNotFound", "object not found in raw store")
	}

	return out.Body, nil
}

// Put uploads body to key directly (used for small inline-commit files).
func (c *Client) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return apperr.WrapInternal(err, "ServerError", "failed to upload object")
	}

	return nil
}

// PresignGet returns a time-limited download URL.
func (c *Client) PresignGet(ctx context.Context, key string, ttl int64, filename string) (string, error) {
	opts := []func(*s3.PresignOptions){withTTL(ttl)}

	input := &s3.GetObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)}
	if filename != "" {
		input.ResponseContentDisposition = aws.String(`attachment; filename="` + filename + `"`)
	}

	req, err := c.presign.PresignGetObject(ctx, input, opts...)
	if err != nil {
		return "", apperr.WrapInternal(err, "ServerError", "failed to presign download")
	}

	return req.URL, nil
}

// PresignPut returns a time-limited single-shot upload URL.
func (c *Client) PresignPut(ctx context.Context, key string, ttl int64) (string, error) {
	req, err := c.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, withTTL(ttl))
	if err != nil {
		return "", apperr.WrapInternal(err, "ServerError", "failed to presign upload")
	}

	return req.URL, nil
}

// Copy server-side copies one key to another, used by copyFile commit
// operations.
func (c *Client) Copy(ctx context.Context, srcKey, dstKey string) error {
	return retry.Do(ctx, retry.DefaultMaxElapsed, retry.AlwaysRetry, func() error {
		_, err := c.s3.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(c.bucket),
			Key:        aws.String(dstKey),
			CopySource: aws.String(c.bucket + "/" + srcKey),
		})

		return err
	})
}

// Delete removes a single key. Idempotent: a missing key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	return retry.Do(ctx, retry.DefaultMaxElapsed, retry.AlwaysRetry, func() error {
		_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
		return err
	})
}

// List returns up to 1000 keys under prefix starting after continuation.
func (c *Client) List(ctx context.Context, prefix, continuation string) (keys []string, next string, err error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(c.bucket), Prefix: aws.String(prefix)}
	if continuation != "" {
		input.ContinuationToken = aws.String(continuation)
	}

	out, err := c.s3.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, "", apperr.WrapInternal(err, "ServerError", "failed to list objects")
	}

	for _, obj := range out.Contents {
		if obj.Key != nil {
			keys = append(keys, *obj.Key)
		}
	}

	if out.NextContinuationToken != nil {
		next = *out.NextContinuationToken
	}

	return keys, next, nil
}

func withTTL(ttlSeconds int64) func(*s3.PresignOptions) {
	return func(o *s3.PresignOptions) {
		o.Expires = time.Duration(ttlSeconds) * time.Second
	}
}

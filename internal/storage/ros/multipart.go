package ros

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kohakuhub/hub/internal/apperr"
)

// PartETag pairs a completed part with the ETag S3 returned for it,
// the shape the LFS multipart-complete action needs (spec §4.A/§4.E).
type PartETag struct {
	PartNumber int32
	ETag       string
}

// MultipartCreate starts a multipart upload and returns its upload id.
func (c *Client) MultipartCreate(ctx context.Context, key string) (string, error) {
	out, err := c.s3.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", apperr.WrapInternal(err, "ServerError", "failed to start multipart upload")
	}

	return aws.ToString(out.UploadId), nil
}

// MultipartPresignPart returns a presigned PUT URL for one part.
func (c *Client) MultipartPresignPart(ctx context.Context, key, uploadID string, partNumber int32, ttl int64) (string, error) {
	req, err := c.presign.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(c.bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
	}, withTTL(ttl))
	if err != nil {
		return "", apperr.WrapInternal(err, "ServerError", "failed to presign part upload")
	}

	return req.URL, nil
}

// MultipartComplete finalizes the upload. This call is NOT retried by
// this client on ambiguous failures (spec §4.A): a retry after a
// timed-out-but-actually-applied complete could double-complete or
// surface a spurious conflict, so the caller decides whether to retry.
func (c *Client) MultipartComplete(ctx context.Context, key, uploadID string, parts []PartETag) error {
	completed := make([]types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = types.CompletedPart{PartNumber: aws.Int32(p.PartNumber), ETag: aws.String(p.ETag)}
	}

	_, err := c.s3.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(c.bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return apperr.WrapInternal(err, "ServerError", "failed to complete multipart upload")
	}

	return nil
}

// MultipartAbort releases a multipart upload's staged parts.
func (c *Client) MultipartAbort(ctx context.Context, key, uploadID string) error {
	_, err := c.s3.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(c.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return apperr.WrapInternal(err, "ServerError", "failed to abort multipart upload")
	}

	return nil
}

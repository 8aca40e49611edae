package storage

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MaxPresignExpiration is the longest lifetime SigV4 allows for a presigned
// URL.
const MaxPresignExpiration = 7 * 24 * time.Hour

// PresignedURL returns a URL granting GET access to key for expiration.
func (c *Client) PresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	return c.PresignedURLFor(ctx, http.MethodGet, key, expiration)
}

// PresignedURLFor returns a URL granting method (GET, PUT or DELETE) on key
// for expiration, which must be within (0, MaxPresignExpiration]. Signing
// is local; a signing failure is reported as KindDenied.
func (c *Client) PresignedURLFor(ctx context.Context, method, key string, expiration time.Duration) (string, error) {
	start := time.Now()

	if key == "" {
		return "", c.finish(ctx, opPresign, key, start, invalidArgument(opPresign, key, "empty object key"))
	}
	if expiration <= 0 || expiration > MaxPresignExpiration {
		return "", c.finish(ctx, opPresign, key, start,
			invalidArgument(opPresign, key, "expiration %s outside (0, %s]", expiration, MaxPresignExpiration))
	}

	bucket := aws.String(c.bucket)
	expires := s3.WithPresignExpires(expiration)

	var (
		req *v4.PresignedHTTPRequest
		err error
	)
	switch strings.ToUpper(method) {
	case http.MethodGet:
		req, err = c.presign.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: bucket, Key: aws.String(key)}, expires)
	case http.MethodPut:
		req, err = c.presign.PresignPutObject(ctx, &s3.PutObjectInput{Bucket: bucket, Key: aws.String(key)}, expires)
	case http.MethodDelete:
		req, err = c.presign.PresignDeleteObject(ctx, &s3.DeleteObjectInput{Bucket: bucket, Key: aws.String(key)}, expires)
	default:
		return "", c.finish(ctx, opPresign, key, start,
			invalidArgument(opPresign, key, "unsupported method %q", method))
	}
	if err != nil {
		return "", c.finish(ctx, opPresign, key, start, &StorageError{Op: opPresign, Key: key, Kind: KindDenied, Err: err})
	}

	return req.URL, c.finish(ctx, opPresign, key, start, nil)
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/infrakit/internal/filex"
)

const (
	opUpload   = "upload"
	opDownload = "download"
	opGet      = "get"
	opExists   = "exists"
	opList     = "list"
	opPresign  = "presign"
	opDelete   = "delete"
	opCopy     = "copy"

	defaultContentType = "application/octet-stream"
)

// UploadOption adjusts an upload.
type UploadOption func(*uploadOptions)

type uploadOptions struct {
	contentType string
	metadata    map[string]string
}

// WithContentType sets the object's Content-Type. Without it Upload guesses
// from the file extension and UploadReader sends application/octet-stream.
func WithContentType(ct string) UploadOption {
	return func(o *uploadOptions) { o.contentType = ct }
}

// WithMetadata attaches user metadata to the object.
func WithMetadata(md map[string]string) UploadOption {
	return func(o *uploadOptions) {
		if o.metadata == nil {
			o.metadata = make(map[string]string, len(md))
		}
		for k, v := range md {
			o.metadata[k] = v
		}
	}
}

// Upload stores the file at localPath under key. A missing local file is a
// KindNotFound error and no request is sent.
func (c *Client) Upload(ctx context.Context, localPath, key string, opts ...UploadOption) error {
	start := time.Now()
	if key == "" {
		return c.finish(ctx, opUpload, key, start, invalidArgument(opUpload, key, "empty object key"))
	}

	f, err := os.Open(localPath)
	if err != nil {
		kind := KindInvalid
		if errors.Is(err, fs.ErrNotExist) {
			kind = KindNotFound
		}
		return c.finish(ctx, opUpload, key, start, &StorageError{Op: opUpload, Key: key, Kind: kind, Err: err})
	}
	defer f.Close()

	o := uploadOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.contentType == "" {
		o.contentType = contentTypeFor(localPath)
	}

	return c.finish(ctx, opUpload, key, start, c.put(ctx, key, f, o))
}

// UploadReader stores everything read from r under key. Seekable readers are
// signed with a payload hash; other readers need an HTTPS endpoint.
func (c *Client) UploadReader(ctx context.Context, r io.Reader, key string, opts ...UploadOption) error {
	start := time.Now()
	if key == "" {
		return c.finish(ctx, opUpload, key, start, invalidArgument(opUpload, key, "empty object key"))
	}

	o := uploadOptions{contentType: defaultContentType}
	for _, opt := range opts {
		opt(&o)
	}

	return c.finish(ctx, opUpload, key, start, c.put(ctx, key, r, o))
}

func (c *Client) put(ctx context.Context, key string, body io.Reader, o uploadOptions) error {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(o.contentType),
	}
	if len(o.metadata) > 0 {
		in.Metadata = o.metadata
	}

	_, err := c.api.PutObject(ctx, in)
	return err
}

// Download writes the object at key to localPath, creating parent
// directories as needed. The file appears only once the whole object has
// been received.
func (c *Client) Download(ctx context.Context, key, localPath string) error {
	start := time.Now()

	out, err := c.get(ctx, opDownload, key)
	if err != nil {
		return c.finish(ctx, opDownload, key, start, err)
	}
	defer out.Body.Close()

	if _, err := filex.WriteAtomic(localPath, out.Body); err != nil {
		return c.finish(ctx, opDownload, key, start, err)
	}
	return c.finish(ctx, opDownload, key, start, nil)
}

// DownloadWriter streams the object at key into w.
func (c *Client) DownloadWriter(ctx context.Context, key string, w io.Writer) (int64, error) {
	start := time.Now()

	out, err := c.get(ctx, opDownload, key)
	if err != nil {
		return 0, c.finish(ctx, opDownload, key, start, err)
	}
	defer out.Body.Close()

	n, err := io.Copy(w, out.Body)
	if err != nil {
		err = fmt.Errorf("read object body: %w", err)
	}
	return n, c.finish(ctx, opDownload, key, start, err)
}

// Object is an object read in full together with its metadata.
type Object struct {
	ObjectInfo
	ContentType string
	Metadata    map[string]string
	Body        []byte
}

// GetObject reads the object at key into memory along with its content
// type and user metadata. A missing key is a KindNotFound error.
func (c *Client) GetObject(ctx context.Context, key string) (Object, error) {
	start := time.Now()

	out, err := c.get(ctx, opGet, key)
	if err != nil {
		return Object{}, c.finish(ctx, opGet, key, start, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return Object{}, c.finish(ctx, opGet, key, start, fmt.Errorf("read object body: %w", err))
	}

	size := aws.ToInt64(out.ContentLength)
	if size == 0 {
		size = int64(len(body))
	}
	obj := Object{
		ObjectInfo: ObjectInfo{
			Key:          key,
			Size:         size,
			LastModified: aws.ToTime(out.LastModified),
			ETag:         aws.ToString(out.ETag),
			StorageClass: string(out.StorageClass),
		},
		ContentType: aws.ToString(out.ContentType),
		Metadata:    out.Metadata,
		Body:        body,
	}
	return obj, c.finish(ctx, opGet, key, start, nil)
}

func (c *Client) get(ctx context.Context, op, key string) (*s3.GetObjectOutput, error) {
	if key == "" {
		return nil, invalidArgument(op, key, "empty object key")
	}
	return c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
}

// ObjectExists reports whether key exists. A missing object is (false, nil);
// any other failure is returned.
func (c *Client) ObjectExists(ctx context.Context, key string) (bool, error) {
	start := time.Now()

	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	err = c.finish(ctx, opExists, key, start, err)
	switch {
	case err == nil:
		return true, nil
	case IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// Delete removes key. S3 reports success for keys that do not exist.
func (c *Client) Delete(ctx context.Context, key string) error {
	start := time.Now()
	if key == "" {
		return c.finish(ctx, opDelete, key, start, invalidArgument(opDelete, key, "empty object key"))
	}

	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	return c.finish(ctx, opDelete, key, start, err)
}

// CopyOption adjusts a copy.
type CopyOption func(*copyOptions)

type copyOptions struct {
	sourceBucket string
	metadata     map[string]string
}

// WithSourceBucket copies from another bucket into the client's bucket.
func WithSourceBucket(bucket string) CopyOption {
	return func(o *copyOptions) { o.sourceBucket = bucket }
}

// WithReplacedMetadata replaces the object's metadata instead of copying it.
func WithReplacedMetadata(md map[string]string) CopyOption {
	return func(o *copyOptions) { o.metadata = md }
}

// Copy duplicates srcKey to dstKey server-side.
func (c *Client) Copy(ctx context.Context, srcKey, dstKey string, opts ...CopyOption) error {
	start := time.Now()
	if srcKey == "" || dstKey == "" {
		return c.finish(ctx, opCopy, dstKey, start, invalidArgument(opCopy, dstKey, "empty object key"))
	}

	o := copyOptions{sourceBucket: c.bucket}
	for _, opt := range opts {
		opt(&o)
	}

	in := &s3.CopyObjectInput{
		Bucket:     aws.String(c.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(o.sourceBucket, srcKey)),
	}
	if o.metadata != nil {
		in.Metadata = o.metadata
		in.MetadataDirective = types.MetadataDirectiveReplace
	}

	_, err := c.api.CopyObject(ctx, in)
	return c.finish(ctx, opCopy, srcKey, start, err)
}

// copySource builds the URL-encoded bucket/key value CopyObject expects.
func copySource(bucket, key string) string {
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		segs[i] = strings.ReplaceAll(url.QueryEscape(seg), "+", "%20")
	}
	return bucket + "/" + strings.Join(segs, "/")
}

func contentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return defaultContentType
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return defaultContentType
}

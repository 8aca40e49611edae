package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type fakeObject struct {
	body        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

// fakeS3 is an in-memory single bucket implementing objectAPI and
// presignAPI.
type fakeS3 struct {
	mu       sync.Mutex
	bucket   string
	objects  map[string]fakeObject
	pageSize int
	// fail forces an error for the named call: "put", "get", "head",
	// "delete", "copy", "list" or "presign".
	fail       map[string]error
	listCalls  int
	lastCopy   *s3.CopyObjectInput
	lastExpiry time.Duration
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{
		bucket:   bucket,
		objects:  make(map[string]fakeObject),
		pageSize: 1000,
		fail:     make(map[string]error),
	}
}

func (f *fakeS3) put(key, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = fakeObject{body: []byte(body), modified: time.Unix(1700000000, 0).UTC()}
}

func (f *fakeS3) object(key string) (fakeObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[key]
	return o, ok
}

func (f *fakeS3) checkBucket(b *string) error {
	if aws.ToString(b) != f.bucket {
		return &types.NoSuchBucket{Message: aws.String("no such bucket")}
	}
	return nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if err := f.fail["put"]; err != nil {
		return nil, err
	}
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = fakeObject{
		body:        b,
		contentType: aws.ToString(in.ContentType),
		metadata:    in.Metadata,
		modified:    time.Now().UTC(),
	}
	return &s3.PutObjectOutput{ETag: aws.String(fmt.Sprintf("%q", strconv.Itoa(len(b))))}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if err := f.fail["get"]; err != nil {
		return nil, err
	}
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	o, ok := f.object(aws.ToString(in.Key))
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	out := &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(o.body)),
		ContentLength: aws.Int64(int64(len(o.body))),
		LastModified:  aws.Time(o.modified),
		ETag:          aws.String(`"etag-` + aws.ToString(in.Key) + `"`),
		Metadata:      o.metadata,
		StorageClass:  types.StorageClassStandard,
	}
	if o.contentType != "" {
		out.ContentType = aws.String(o.contentType)
	}
	return out, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if err := f.fail["head"]; err != nil {
		return nil, err
	}
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	o, ok := f.object(aws.ToString(in.Key))
	if !ok {
		return nil, &types.NotFound{Message: aws.String("not found")}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(o.body)))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if err := f.fail["delete"]; err != nil {
		return nil, err
	}
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	if err := f.fail["copy"]; err != nil {
		return nil, err
	}
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	f.lastCopy = in

	srcBucket, escaped, _ := strings.Cut(aws.ToString(in.CopySource), "/")
	srcKey, err := url.PathUnescape(escaped)
	if err != nil {
		return nil, &smithy.GenericAPIError{Code: "InvalidArgument", Message: err.Error()}
	}
	if srcBucket != f.bucket {
		return nil, &types.NoSuchBucket{Message: aws.String("no such source bucket")}
	}
	o, ok := f.object(srcKey)
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	if in.MetadataDirective == types.MetadataDirectiveReplace {
		o.metadata = in.Metadata
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = o
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()

	if err := f.fail["list"]; err != nil {
		return nil, err
	}
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	offset := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		offset, _ = strconv.Atoi(tok)
	}
	end := min(offset+f.pageSize, len(keys))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[offset:end] {
		o := f.objects[k]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(o.body))),
			LastModified: aws.Time(o.modified),
			ETag:         aws.String(`"etag-` + k + `"`),
			StorageClass: types.ObjectStorageClassStandard,
		})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *fakeS3) presigned(method, key string, optFns []func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if err := f.fail["presign"]; err != nil {
		return nil, err
	}
	var po s3.PresignOptions
	for _, fn := range optFns {
		fn(&po)
	}
	f.lastExpiry = po.Expires

	u := url.URL{
		Scheme:   "https",
		Host:     "fake.s3.local",
		Path:     "/" + f.bucket + "/" + key,
		RawQuery: url.Values{"X-Amz-Expires": {strconv.Itoa(int(po.Expires.Seconds()))}}.Encode(),
	}
	return &v4.PresignedHTTPRequest{URL: u.String(), Method: method}, nil
}

func (f *fakeS3) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return f.presigned("GET", aws.ToString(in.Key), optFns)
}

func (f *fakeS3) PresignPutObject(_ context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return f.presigned("PUT", aws.ToString(in.Key), optFns)
}

func (f *fakeS3) PresignDeleteObject(_ context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return f.presigned("DELETE", aws.ToString(in.Key), optFns)
}

type recordedOp struct {
	op, outcome string
}

type recordingObserver struct {
	mu  sync.Mutex
	ops []recordedOp
}

func (r *recordingObserver) ObserveOperation(op, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, recordedOp{op, outcome})
}

func newTestClient(t *testing.T, opts ...Option) (*Client, *fakeS3) {
	t.Helper()
	fake := newFakeS3("media")
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return newClient("media", fake, fake, o), fake
}

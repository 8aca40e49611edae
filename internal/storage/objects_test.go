package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	local := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(local, []byte(`{"ok":true}`), 0o600))

	require.NoError(t, c.Upload(ctx, local, "reports/1.json", WithMetadata(map[string]string{"owner": "ops"})))

	obj, ok := fake.object("reports/1.json")
	require.True(t, ok)
	assert.Equal(t, `{"ok":true}`, string(obj.body))
	assert.Equal(t, "application/json", obj.contentType)
	assert.Equal(t, map[string]string{"owner": "ops"}, obj.metadata)
}

func TestUpload_ExplicitContentType(t *testing.T) {
	c, fake := newTestClient(t)

	local := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0o600))

	require.NoError(t, c.Upload(context.Background(), local, "k", WithContentType("text/plain")))
	obj, _ := fake.object("k")
	assert.Equal(t, "text/plain", obj.contentType)
}

func TestUpload_MissingLocalFile(t *testing.T) {
	c, fake := newTestClient(t)

	err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), "k")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, fake.objects)
}

func TestUploadReader(t *testing.T) {
	c, fake := newTestClient(t)

	require.NoError(t, c.UploadReader(context.Background(), strings.NewReader("streamed"), "s/1"))
	obj, ok := fake.object("s/1")
	require.True(t, ok)
	assert.Equal(t, "streamed", string(obj.body))
	assert.Equal(t, defaultContentType, obj.contentType)
}

func TestUpload_EmptyKey(t *testing.T) {
	c, _ := newTestClient(t)

	err := c.UploadReader(context.Background(), strings.NewReader("x"), "")
	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindInvalid, se.Kind)
}

func TestDownload(t *testing.T) {
	c, fake := newTestClient(t)
	fake.put("a/b.txt", "payload")

	target := filepath.Join(t.TempDir(), "nested", "dir", "b.txt")
	require.NoError(t, c.Download(context.Background(), "a/b.txt", target))

	b, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))
}

func TestDownload_MissingKey(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	target := filepath.Join(t.TempDir(), "missing.txt")

	err := c.Download(ctx, "missing", target)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr), "no partial file on failure")

	exists, err := c.ObjectExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDownloadWriter(t *testing.T) {
	c, fake := newTestClient(t)
	fake.put("k", "stream me")

	var buf bytes.Buffer
	n, err := c.DownloadWriter(context.Background(), "k", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)
	assert.Equal(t, "stream me", buf.String())
}

func TestObjectExists(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	fake.put("here", "1")

	ok, err := c.ObjectExists(ctx, "here")
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("denied is returned, not swallowed", func(t *testing.T) {
		fake.fail["head"] = &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
		t.Cleanup(func() { delete(fake.fail, "head") })

		ok, err := c.ObjectExists(ctx, "here")
		assert.False(t, ok)
		assert.True(t, IsDenied(err))
	})

	t.Run("transport failure is returned", func(t *testing.T) {
		fake.fail["head"] = errors.New("dial tcp: connection refused")
		t.Cleanup(func() { delete(fake.fail, "head") })

		_, err := c.ObjectExists(ctx, "here")
		assert.True(t, IsTransport(err))
	})
}

func TestDelete(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	fake.put("gone", "x")

	require.NoError(t, c.Delete(ctx, "gone"))
	_, ok := fake.object("gone")
	assert.False(t, ok)

	require.NoError(t, c.Delete(ctx, "never-existed"))
}

func TestCopy(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	fake.put("src", "data")

	require.NoError(t, c.Copy(ctx, "src", "dst"))
	obj, ok := fake.object("dst")
	require.True(t, ok)
	assert.Equal(t, "data", string(obj.body))
	assert.Equal(t, "media/src", aws.ToString(fake.lastCopy.CopySource))

	require.NoError(t, c.Copy(ctx, "src", "dst2", WithReplacedMetadata(map[string]string{"v": "2"})))
	obj, _ = fake.object("dst2")
	assert.Equal(t, map[string]string{"v": "2"}, obj.metadata)

	err := c.Copy(ctx, "src", "dst3", WithSourceBucket("elsewhere"))
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "elsewhere/src", aws.ToString(fake.lastCopy.CopySource))

	err = c.Copy(ctx, "missing", "dst4")
	assert.True(t, IsNotFound(err))
}

func TestCopy_EncodesSourceKey(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	fake.put("dir/a b+c.txt", "data")
	fake.put("dir/a b c.txt", "other")

	require.NoError(t, c.Copy(ctx, "dir/a b+c.txt", "dst"))
	assert.Equal(t, "media/dir/a%20b%2Bc.txt", aws.ToString(fake.lastCopy.CopySource))

	obj, ok := fake.object("dst")
	require.True(t, ok)
	assert.Equal(t, "data", string(obj.body))
}

func TestGetObject(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.UploadReader(ctx, strings.NewReader("{}"), "cfg/app.json",
		WithContentType("application/json"),
		WithMetadata(map[string]string{"owner": "ops"}),
	))

	obj, err := c.GetObject(ctx, "cfg/app.json")
	require.NoError(t, err)
	assert.Equal(t, "cfg/app.json", obj.Key)
	assert.Equal(t, []byte("{}"), obj.Body)
	assert.Equal(t, int64(2), obj.Size)
	assert.Equal(t, "application/json", obj.ContentType)
	assert.Equal(t, map[string]string{"owner": "ops"}, obj.Metadata)
	assert.NotEmpty(t, obj.ETag)
	assert.False(t, obj.LastModified.IsZero())

	_, err = c.GetObject(ctx, "cfg/missing.json")
	assert.True(t, IsNotFound(err))

	var se *StorageError
	_, err = c.GetObject(ctx, "")
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindInvalid, se.Kind)
	assert.Equal(t, opGet, se.Op)
}

func TestOperations_ReportToObserver(t *testing.T) {
	obs := &recordingObserver{}
	c, fake := newTestClient(t, WithObserver(obs))
	ctx := context.Background()
	fake.put("k", "v")

	_, _ = c.ObjectExists(ctx, "k")
	_, _ = c.ObjectExists(ctx, "missing")
	_ = c.Delete(ctx, "")

	assert.Equal(t, []recordedOp{
		{opExists, "ok"},
		{opExists, "not_found"},
		{opDelete, "invalid"},
	}, obs.ops)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/png", contentTypeFor("a/b.PNG"))
	assert.Equal(t, defaultContentType, contentTypeFor("noext"))
	assert.Equal(t, defaultContentType, contentTypeFor("x.unknownext"))
}

package storage

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/infrakit/internal/common"
	"github.com/dmitrijs2005/infrakit/internal/registry"
	"github.com/dmitrijs2005/infrakit/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedConstruction struct {
	load    awsconfig.LoadOptions
	options s3.Options
	loaded  bool
}

// stubAWS replaces the SDK constructors for the duration of the test and
// records what New passed to them.
func stubAWS(t *testing.T, loadErr error) *capturedConstruction {
	t.Helper()

	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
	})

	got := &capturedConstruction{}

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		got.loaded = true
		for _, fn := range optFns {
			if err := fn(&got.load); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if loadErr != nil {
			return aws.Config{}, loadErr
		}
		return aws.Config{Region: got.load.Region}, nil
	}

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&got.options)
		}
		return &s3.Client{}
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		if c == nil {
			t.Fatalf("nil client passed to presign")
		}
		return &s3.PresignClient{}
	}

	return got
}

func storageSettings(bucket string) settings.Settings {
	s := settings.Defaults()
	s.StorageBucket = bucket
	return s
}

func TestNew_EmptyBucket(t *testing.T) {
	got := stubAWS(t, nil)

	for _, bucket := range []string{"", "   "} {
		_, err := New(context.Background(), storageSettings(bucket))
		require.Error(t, err)

		var ce *common.ConfigurationError
		require.True(t, errors.As(err, &ce), "want ConfigurationError, got %T", err)
		assert.Equal(t, settings.KeyStorageBucket, ce.Key)
		assert.ErrorIs(t, err, common.ErrMissingValue)
		assert.Contains(t, ce.Suggestion, "STORAGE_BUCKET")
	}
	assert.False(t, got.loaded, "no AWS configuration is loaded without a bucket")
}

func TestNew_RejectsNonSigV4(t *testing.T) {
	stubAWS(t, nil)
	s := storageSettings("media")
	s.StorageSignatureVersion = "s3"

	_, err := New(context.Background(), s)
	var ce *common.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, settings.KeyStorageSignatureVersion, ce.Key)
	assert.ErrorIs(t, err, common.ErrInvalidValue)

	s.StorageSignatureVersion = "V4"
	_, err = New(context.Background(), s)
	assert.NoError(t, err)
}

func TestNew_DefaultChainAndAWSEndpoint(t *testing.T) {
	got := stubAWS(t, nil)
	s := storageSettings("media")
	s.StorageRegion = "eu-west-1"

	c, err := New(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "media", c.Bucket())

	assert.Equal(t, "eu-west-1", got.load.Region)
	assert.Nil(t, got.load.Credentials, "ambient credentials when no key pair is configured")
	assert.Nil(t, got.options.BaseEndpoint)
	assert.False(t, got.options.UsePathStyle)
	assert.False(t, got.options.EndpointOptions.DisableHTTPS)
}

func TestNew_StaticCredentialsAndCustomEndpoint(t *testing.T) {
	got := stubAWS(t, nil)
	s := storageSettings("media")
	s.AccessKeyID = "minioadmin"
	s.SecretAccessKey = "minioadmin-secret"
	s.StorageEndpoint = "127.0.0.1:9000"
	s.StorageUseSSL = false

	hc := &http.Client{Timeout: 5 * time.Second}
	_, err := New(context.Background(), s, WithHTTPClient(hc))
	require.NoError(t, err)

	require.NotNil(t, got.load.Credentials)
	creds, err := got.load.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minioadmin", creds.AccessKeyID)
	assert.Equal(t, "minioadmin-secret", creds.SecretAccessKey)
	assert.Same(t, hc, got.load.HTTPClient)

	require.NotNil(t, got.options.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *got.options.BaseEndpoint)
	assert.True(t, got.options.UsePathStyle)
}

func TestNew_DisableHTTPSWithoutEndpoint(t *testing.T) {
	got := stubAWS(t, nil)
	s := storageSettings("media")
	s.StorageUseSSL = false

	_, err := New(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, got.options.EndpointOptions.DisableHTTPS)
	assert.Nil(t, got.options.BaseEndpoint)
}

func TestNew_LoadConfigFailure(t *testing.T) {
	stubAWS(t, errors.New("bad shared config"))

	_, err := New(context.Background(), storageSettings("media"))
	var ce *common.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.ErrorIs(t, err, common.ErrInvalidValue)
	assert.Contains(t, err.Error(), "bad shared config")
}

func TestFromRegistry(t *testing.T) {
	stubAWS(t, nil)

	r := registry.New()
	_, err := FromRegistry(context.Background(), r)
	assert.ErrorIs(t, err, common.ErrNotInitialized)

	r.Set(storageSettings("media"))
	c, err := FromRegistry(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "media", c.Bucket())
}

func TestFromRegistry_ProcessWideDefault(t *testing.T) {
	stubAWS(t, nil)
	t.Cleanup(registry.Reset)

	registry.Set(storageSettings("shared"))
	c, err := FromRegistry(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "shared", c.Bucket())
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		in     string
		useSSL bool
		want   string
	}{
		{"", true, ""},
		{"minio:9000", false, "http://minio:9000"},
		{"minio:9000", true, "https://minio:9000"},
		{"http://localhost:9000", true, "http://localhost:9000"},
		{" https://s3.example.com ", false, "https://s3.example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, endpointURL(tt.in, tt.useSSL), tt.in)
	}
}

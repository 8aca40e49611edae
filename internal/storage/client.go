// Package storage is a thin client for an S3-compatible object store bound
// to the bucket named in the active settings.
//
// Every operation is a single attempt: there are no retries and no caching.
// Failures are returned as *StorageError classified as not found, denied,
// transport or invalid argument. Timeouts are the caller's, through context
// deadlines or an HTTP client passed with WithHTTPClient.
package storage

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/infrakit/internal/common"
	"github.com/dmitrijs2005/infrakit/internal/logging"
	"github.com/dmitrijs2005/infrakit/internal/registry"
	"github.com/dmitrijs2005/infrakit/internal/settings"
)

// objectAPI is the subset of *s3.Client the Client uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// presignAPI is the subset of *s3.PresignClient the Client uses.
type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignDeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}
)

// Observer receives one call per finished operation. outcome is "ok" or the
// Kind of the returned StorageError.
type Observer interface {
	ObserveOperation(op, outcome string, elapsed time.Duration)
}

// Option configures a Client.
type Option func(*options)

type options struct {
	logger     logging.Logger
	observer   Observer
	httpClient *http.Client
}

// WithLogger sets the logger. Operations log at debug on success.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver reports operation outcomes and durations to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithHTTPClient sends requests through c, e.g. one with a Timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// Client performs object operations against one bucket. It is safe for
// concurrent use.
type Client struct {
	bucket   string
	api      objectAPI
	presign  presignAPI
	logger   logging.Logger
	observer Observer
	now      func() time.Time
}

// New builds a Client from s. It fails with a *common.ConfigurationError when
// no bucket is configured, when the signature version is not SigV4, or when
// the AWS configuration cannot be loaded. No request is sent.
func New(ctx context.Context, s settings.Settings, opts ...Option) (*Client, error) {
	o := options{logger: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := s.StorageConfig()
	if cfg.Bucket == "" {
		return nil, &common.ConfigurationError{
			Key:        settings.KeyStorageBucket,
			Value:      s.StorageBucket,
			Present:    s.StorageBucket != "",
			Suggestion: settings.Suggest(settings.KeyStorageBucket),
			Err:        common.ErrMissingValue,
		}
	}
	if !isSigV4(cfg.SignatureVersion) {
		return nil, &common.ConfigurationError{
			Key:        settings.KeyStorageSignatureVersion,
			Value:      cfg.SignatureVersion,
			Present:    cfg.SignatureVersion != "",
			Suggestion: "use s3v4; " + settings.Suggest(settings.KeyStorageSignatureVersion),
			Err:        fmt.Errorf("%w: only SigV4 signing is supported", common.ErrInvalidValue),
		}
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	// Without a static key pair the SDK default chain applies (env, shared
	// profile, instance role).
	if cfg.HasStaticCredentials() {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	if o.httpClient != nil {
		loadOpts = append(loadOpts, awsconfig.WithHTTPClient(o.httpClient))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, &common.ConfigurationError{
			Key:        settings.KeyStorageRegion,
			Value:      cfg.Region,
			Present:    true,
			Suggestion: "check the AWS shared config and credentials files",
			Err:        fmt.Errorf("%w: load aws configuration: %w", common.ErrInvalidValue, err),
		}
	}

	endpoint := endpointURL(cfg.Endpoint, cfg.UseSSL)
	client := newS3ClientFromConfig(awsCfg, func(so *s3.Options) {
		if endpoint != "" {
			so.BaseEndpoint = aws.String(endpoint)
			so.UsePathStyle = true
		} else if !cfg.UseSSL {
			so.EndpointOptions.DisableHTTPS = true
		}
	})

	c := newClient(cfg.Bucket, client, newS3PresignClient(client), o)
	c.logger.Debug(ctx, "storage client ready",
		"region", cfg.Region,
		"endpoint", endpoint,
		"static_credentials", cfg.HasStaticCredentials(),
	)
	return c, nil
}

// FromRegistry builds a Client from the settings held by r. A nil r means
// the process-wide registry.
func FromRegistry(ctx context.Context, r *registry.Registry, opts ...Option) (*Client, error) {
	if r == nil {
		r = registry.Default()
	}
	s, err := r.Get()
	if err != nil {
		return nil, err
	}
	return New(ctx, s, opts...)
}

func newClient(bucket string, api objectAPI, presign presignAPI, o options) *Client {
	if o.logger == nil {
		o.logger = logging.Nop()
	}
	return &Client{
		bucket:   bucket,
		api:      api,
		presign:  presign,
		logger:   o.logger.With("bucket", bucket),
		observer: o.observer,
		now:      time.Now,
	}
}

// Bucket returns the bucket every operation targets.
func (c *Client) Bucket() string {
	return c.bucket
}

func isSigV4(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "s3v4", "v4":
		return true
	}
	return false
}

// endpointURL adds a scheme matching useSSL to endpoints configured as a
// bare host[:port].
func endpointURL(endpoint string, useSSL bool) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// finish records the outcome of op and converts err into a *StorageError.
func (c *Client) finish(ctx context.Context, op, key string, start time.Time, err error) error {
	elapsed := time.Since(start)

	if err == nil {
		c.observe(op, "ok", elapsed)
		c.logger.Debug(ctx, "storage operation", "op", op, "key", key, "elapsed", elapsed)
		return nil
	}

	se := classify(op, key, err)
	c.observe(op, se.Kind.String(), elapsed)
	if se.Kind == KindNotFound {
		c.logger.Debug(ctx, "storage object not found", "op", op, "key", key)
	} else {
		c.logger.Warn(ctx, "storage operation failed", "op", op, "key", key, "kind", se.Kind.String(), "error", se.Err)
	}
	return se
}

func (c *Client) observe(op, outcome string, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveOperation(op, outcome, elapsed)
	}
}

// Package settings defines the immutable configuration snapshot shared by
// every service component.
//
// A Settings value is produced once by the resolver (internal/config) and is
// never mutated afterwards: it is passed by value and has no mutating
// methods. Producing a different configuration means resolving a new one.
//
// A Settings without a storage bucket is valid. The bucket is only enforced
// when a storage client is built from it.
package settings

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Environment is the deployment environment a Settings was resolved for.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// ParseEnvironment normalises s, accepting the short aliases used by older
// deployments (dev, local, test, prod).
func ParseEnvironment(s string) (Environment, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "development", "dev", "local":
		return Development, true
	case "testing", "test":
		return Testing, true
	case "production", "prod":
		return Production, true
	}
	return "", false
}

// LogLevel is the minimum level services should log at.
type LogLevel string

const (
	LevelDebug   LogLevel = "debug"
	LevelInfo    LogLevel = "info"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

// ParseLogLevel normalises s. "warn" is accepted for warning.
func ParseLogLevel(s string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warning", "warn":
		return LevelWarning, true
	case "error":
		return LevelError, true
	}
	return "", false
}

// Settings holds every resolved setting.
//
// Fields:
//   - StorageEndpoint: set only for non-AWS endpoints (e.g. a local MinIO).
//   - AccessKeyID / SecretAccessKey: empty means ambient credentials
//     (instance role, shared profile, ...).
//   - DatabaseURL, JWT*: passed through to the database and token layers;
//     only presence and shape are checked here.
type Settings struct {
	Environment Environment `koanf:"environment" validate:"oneof=development testing production"`
	Debug       bool        `koanf:"debug"`
	LogLevel    LogLevel    `koanf:"log_level" validate:"oneof=debug info warning error"`

	StorageBucket           string `koanf:"storage_bucket"`
	StorageRegion           string `koanf:"storage_region" validate:"required"`
	StorageEndpoint         string `koanf:"storage_endpoint"`
	StorageUseSSL           bool   `koanf:"storage_use_ssl"`
	StorageSignatureVersion string `koanf:"storage_signature_version" validate:"required"`
	AccessKeyID             string `koanf:"access_key_id" validate:"required_with=SecretAccessKey"`
	SecretAccessKey         string `koanf:"secret_access_key" validate:"required_with=AccessKeyID"`

	DatabaseURL string `koanf:"database_url"`

	JWTSecret        string `koanf:"jwt_secret" validate:"required"`
	JWTAlgorithm     string `koanf:"jwt_algorithm" validate:"required,jwtalg"`
	JWTExpireMinutes int    `koanf:"jwt_expire_minutes" validate:"gt=0"`
}

// IsDevelopment reports whether s targets local development.
func (s Settings) IsDevelopment() bool {
	return s.Environment == Development
}

// IsProduction reports whether s targets production.
func (s Settings) IsProduction() bool {
	return s.Environment == Production
}

// HasStorage reports whether a storage client can be built from s.
func (s Settings) HasStorage() bool {
	return strings.TrimSpace(s.StorageBucket) != ""
}

// JWTExpiry returns the token lifetime as a duration.
func (s Settings) JWTExpiry() time.Duration {
	return time.Duration(s.JWTExpireMinutes) * time.Minute
}

// StorageConfig is the storage-related subset of Settings.
type StorageConfig struct {
	Bucket           string
	Region           string
	Endpoint         string
	UseSSL           bool
	SignatureVersion string
	AccessKeyID      string
	SecretAccessKey  string
}

// HasStaticCredentials reports whether an explicit key pair is configured.
func (c StorageConfig) HasStaticCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// StorageConfig returns the storage view of s.
func (s Settings) StorageConfig() StorageConfig {
	return StorageConfig{
		Bucket:           strings.TrimSpace(s.StorageBucket),
		Region:           s.StorageRegion,
		Endpoint:         s.StorageEndpoint,
		UseSSL:           s.StorageUseSSL,
		SignatureVersion: s.StorageSignatureVersion,
		AccessKeyID:      s.AccessKeyID,
		SecretAccessKey:  s.SecretAccessKey,
	}
}

// Values returns s as a key to value map using native Go types.
func (s Settings) Values() map[string]any {
	return map[string]any{
		KeyEnvironment:             string(s.Environment),
		KeyDebug:                   s.Debug,
		KeyLogLevel:                string(s.LogLevel),
		KeyStorageBucket:           s.StorageBucket,
		KeyStorageRegion:           s.StorageRegion,
		KeyStorageEndpoint:         s.StorageEndpoint,
		KeyStorageUseSSL:           s.StorageUseSSL,
		KeyStorageSignatureVersion: s.StorageSignatureVersion,
		KeyAccessKeyID:             s.AccessKeyID,
		KeySecretAccessKey:         s.SecretAccessKey,
		KeyDatabaseURL:             s.DatabaseURL,
		KeyJWTSecret:               s.JWTSecret,
		KeyJWTAlgorithm:            s.JWTAlgorithm,
		KeyJWTExpireMinutes:        s.JWTExpireMinutes,
	}
}

// Redacted returns s as strings with secrets masked and any password in
// the database URL removed. Intended for logs and the CLI.
func (s Settings) Redacted() map[string]string {
	out := make(map[string]string, len(specs))
	for k, v := range s.Values() {
		var str string
		switch val := v.(type) {
		case bool:
			str = strconv.FormatBool(val)
		case int:
			str = strconv.Itoa(val)
		case string:
			str = val
		}
		out[k] = Mask(k, str)
	}
	if s.DatabaseURL != "" {
		if u, err := url.Parse(s.DatabaseURL); err == nil {
			out[KeyDatabaseURL] = u.Redacted()
		}
	}
	return out
}

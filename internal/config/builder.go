package config

import (
	"strconv"

	"github.com/dmitrijs2005/infrakit/internal/common"
	"github.com/dmitrijs2005/infrakit/internal/settings"
)

// Builder assembles configuration fluently:
//
//	s, err := config.NewBuilder().
//		ForEnvironment("production").
//		WithStorage("media", config.Region("eu-west-1")).
//		WithAuth(secret, "HS256", 60).
//		Build()
//
// Values set on a Builder rank above the environment, legacy files and the
// preset, and below explicit overrides passed to BuildWith. A Builder can
// be built once; a second Build returns common.ErrAlreadyBuilt.
type Builder struct {
	resolver *Resolver
	values   Overrides
	preset   string
	legacy   LegacyLoader
	envFiles []string
	files    []string
	built    bool
}

// NewBuilder returns an empty Builder using a default Resolver.
func NewBuilder(opts ...ResolverOption) *Builder {
	return &Builder{
		resolver: NewResolver(opts...),
		values:   make(Overrides),
	}
}

// ForEnvironment selects the preset for env.
func (b *Builder) ForEnvironment(env string) *Builder {
	b.preset = env
	return b
}

// StorageOption adjusts the storage values set by WithStorage.
type StorageOption func(Overrides)

// Region sets storage_region.
func Region(region string) StorageOption {
	return func(o Overrides) { o[settings.KeyStorageRegion] = region }
}

// Endpoint sets storage_endpoint.
func Endpoint(url string) StorageOption {
	return func(o Overrides) { o[settings.KeyStorageEndpoint] = url }
}

// UseSSL sets storage_use_ssl.
func UseSSL(on bool) StorageOption {
	return func(o Overrides) { o[settings.KeyStorageUseSSL] = on }
}

// SignatureVersion sets storage_signature_version.
func SignatureVersion(v string) StorageOption {
	return func(o Overrides) { o[settings.KeyStorageSignatureVersion] = v }
}

// Credentials sets a static access key pair.
func Credentials(accessKeyID, secretAccessKey string) StorageOption {
	return func(o Overrides) {
		o[settings.KeyAccessKeyID] = accessKeyID
		o[settings.KeySecretAccessKey] = secretAccessKey
	}
}

// WithStorage sets the bucket and any further storage options.
func (b *Builder) WithStorage(bucket string, opts ...StorageOption) *Builder {
	b.values[settings.KeyStorageBucket] = bucket
	for _, opt := range opts {
		opt(b.values)
	}
	return b
}

// WithDatabase sets database_url.
func (b *Builder) WithDatabase(url string) *Builder {
	b.values[settings.KeyDatabaseURL] = url
	return b
}

// WithAuth sets the token signing settings. An empty secret, an empty
// algorithm or a zero expiry leave the lower layers in charge of that key.
func (b *Builder) WithAuth(secret, algorithm string, expireMinutes int) *Builder {
	if secret != "" {
		b.values[settings.KeyJWTSecret] = secret
	}
	if algorithm != "" {
		b.values[settings.KeyJWTAlgorithm] = algorithm
	}
	if expireMinutes != 0 {
		b.values[settings.KeyJWTExpireMinutes] = strconv.Itoa(expireMinutes)
	}
	return b
}

// WithLogLevel sets log_level.
func (b *Builder) WithLogLevel(level string) *Builder {
	b.values[settings.KeyLogLevel] = level
	return b
}

// WithDebug sets debug.
func (b *Builder) WithDebug(on bool) *Builder {
	b.values[settings.KeyDebug] = on
	return b
}

// WithOverrides copies arbitrary key/value pairs into the builder layer.
// Unknown keys are reported by Build.
func (b *Builder) WithOverrides(o Overrides) *Builder {
	for k, v := range o {
		b.values[k] = v
	}
	return b
}

// WithLegacyFiles enables the legacy shared dotenv files found in dir.
func (b *Builder) WithLegacyFiles(dir string) *Builder {
	b.legacy = LegacyFilesIn(dir)
	return b
}

// WithEnvFile adds a dotenv file to the legacy layer. Earlier files win.
func (b *Builder) WithEnvFile(path string) *Builder {
	b.envFiles = append(b.envFiles, path)
	return b
}

// WithConfigFile adds a YAML or JSON settings file just below the builder
// layer. The file is read by Build.
func (b *Builder) WithConfigFile(path string) *Builder {
	b.files = append(b.files, path)
	return b
}

// Build resolves the accumulated configuration.
func (b *Builder) Build() (settings.Settings, error) {
	return b.BuildWith(nil)
}

// BuildWith resolves the accumulated configuration with explicit overrides
// on top.
func (b *Builder) BuildWith(explicit Overrides) (settings.Settings, error) {
	res, err := b.Explain(explicit)
	if err != nil {
		return settings.Settings{}, err
	}
	return res.Settings, nil
}

// Explain is BuildWith that also reports the origin of every value.
func (b *Builder) Explain(explicit Overrides) (Resolution, error) {
	if b.built {
		return Resolution{}, common.ErrAlreadyBuilt
	}
	b.built = true

	req, err := b.request(explicit)
	if err != nil {
		return Resolution{}, err
	}
	return b.resolver.Explain(req)
}

func (b *Builder) request(explicit Overrides) (Request, error) {
	req := Request{
		Explicit:       explicit,
		Builder:        b.values.Clone(),
		Preset:         b.preset,
		UseLegacyFiles: b.legacy != nil,
		Legacy:         b.legacy,
		EnvFiles:       b.envFiles,
	}
	for _, path := range b.files {
		src, err := FileSource(path)
		if err != nil {
			return Request{}, err
		}
		req.Sources = append(req.Sources, src)
	}
	return req, nil
}

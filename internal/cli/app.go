// Package cli implements storagectl, a small operator tool that resolves
// settings exactly like the services do and runs object storage operations
// against the configured bucket.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"iter"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dmitrijs2005/infrakit/internal/config"
	"github.com/dmitrijs2005/infrakit/internal/database"
	"github.com/dmitrijs2005/infrakit/internal/logging"
	"github.com/dmitrijs2005/infrakit/internal/metrics"
	"github.com/dmitrijs2005/infrakit/internal/registry"
	"github.com/dmitrijs2005/infrakit/internal/settings"
	"github.com/dmitrijs2005/infrakit/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"
)

// objectStore is the part of *storage.Client the commands use.
type objectStore interface {
	Bucket() string
	NewObjectKey(prefix string) string
	Upload(ctx context.Context, localPath, key string, opts ...storage.UploadOption) error
	Download(ctx context.Context, key, localPath string) error
	ObjectExists(ctx context.Context, key string) (bool, error)
	GetObject(ctx context.Context, key string) (storage.Object, error)
	ListObjects(ctx context.Context, prefix string) iter.Seq2[storage.ObjectInfo, error]
	PresignedURLFor(ctx context.Context, method, key string, expiration time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
	Copy(ctx context.Context, srcKey, dstKey string, opts ...storage.CopyOption) error
}

// App wires flags to the resolver, the registry and the storage client.
type App struct {
	out    io.Writer
	errOut io.Writer

	resolverOpts []config.ResolverOption
	registry     *registry.Registry

	// httpClient carries presigned uploads; nil means http.DefaultClient.
	httpClient *http.Client

	openStore func(ctx context.Context, r *registry.Registry, opts ...storage.Option) (objectStore, error)
	openDB    func(ctx context.Context, s settings.Settings) (*sql.DB, error)
	isTTY     func() bool
}

// Option configures an App.
type Option func(*App)

// WithOutput redirects command output and diagnostics.
func WithOutput(out, errOut io.Writer) Option {
	return func(a *App) {
		a.out = out
		a.errOut = errOut
	}
}

// WithResolverOptions passes options to the settings resolver.
func WithResolverOptions(opts ...config.ResolverOption) Option {
	return func(a *App) { a.resolverOpts = append(a.resolverOpts, opts...) }
}

// WithRegistry stores resolved settings in r instead of the process-wide
// registry.
func WithRegistry(r *registry.Registry) Option {
	return func(a *App) { a.registry = r }
}

// NewApp returns an App writing to stdout and stderr.
func NewApp(opts ...Option) *App {
	a := &App{
		out:      os.Stdout,
		errOut:   os.Stderr,
		registry: registry.Default(),
		openStore: func(ctx context.Context, r *registry.Registry, opts ...storage.Option) (objectStore, error) {
			return storage.FromRegistry(ctx, r, opts...)
		},
		openDB: database.Open,
		isTTY: func() bool {
			return term.IsTerminal(int(os.Stderr.Fd()))
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type globalFlags struct {
	preset    *string
	files     *[]string
	envFiles  *[]string
	legacy    *bool
	legacyDir *string
	bucket    *string
	endpoint  *string
	region    *string
	metrics   *bool
}

// runEnv is what a command needs once settings are resolved.
type runEnv struct {
	settings settings.Settings
	origins  map[string]string
	logger   logging.Logger
	metrics  *prometheus.Registry
	observer *metrics.StorageMetrics
}

// Run parses args and executes the selected command.
func (a *App) Run(ctx context.Context, args []string) error {
	app := kingpin.New("storagectl", "Resolve service settings and operate on the configured object storage bucket.")
	app.UsageWriter(a.errOut)
	app.ErrorWriter(a.errOut)
	app.Terminate(func(int) {})
	app.HelpFlag.Short('h')

	g := globalFlags{
		preset:    app.Flag("preset", "Environment preset: development, testing or production.").Short('p').String(),
		files:     app.Flag("config", "YAML or JSON settings file (repeatable).").Short('c').ExistingFiles(),
		envFiles:  app.Flag("env-file", "Dotenv file merged above the process environment (repeatable).").Strings(),
		legacy:    app.Flag("legacy", "Read .env.shared.local and .env.shared.aws.").Bool(),
		legacyDir: app.Flag("legacy-dir", "Directory holding the legacy dotenv files; implies --legacy.").String(),
		bucket:    app.Flag("bucket", "Override storage_bucket.").String(),
		endpoint:  app.Flag("endpoint", "Override storage_endpoint.").String(),
		region:    app.Flag("region", "Override storage_region.").String(),
		metrics:   app.Flag("metrics", "Print storage metrics to stderr when done.").Bool(),
	}

	cmds := a.register(app)

	selected, err := app.Parse(args)
	if err != nil {
		return err
	}
	run, ok := cmds[selected]
	if !ok {
		// --help was handled by kingpin
		return nil
	}

	env, err := a.prepare(g)
	if err != nil {
		return err
	}

	err = run(ctx, env)
	if *g.metrics {
		if derr := metrics.Dump(a.errOut, env.metrics); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}

// prepare resolves settings, publishes them in the registry and builds the
// logger.
func (a *App) prepare(g globalFlags) (*runEnv, error) {
	b := config.NewBuilder(a.resolverOpts...)
	if *g.preset != "" {
		b.ForEnvironment(*g.preset)
	}
	for _, f := range *g.files {
		b.WithConfigFile(f)
	}
	for _, f := range *g.envFiles {
		b.WithEnvFile(f)
	}
	if *g.legacy || *g.legacyDir != "" {
		b.WithLegacyFiles(*g.legacyDir)
	}

	explicit := config.Overrides{}
	if *g.bucket != "" {
		explicit[settings.KeyStorageBucket] = *g.bucket
	}
	if *g.endpoint != "" {
		explicit[settings.KeyStorageEndpoint] = *g.endpoint
	}
	if *g.region != "" {
		explicit[settings.KeyStorageRegion] = *g.region
	}

	res, err := b.Explain(explicit)
	if err != nil {
		return nil, fmt.Errorf("resolve settings: %w", err)
	}
	a.registry.Set(res.Settings)

	reg := prometheus.NewRegistry()
	obs, err := metrics.NewStorageMetrics(reg)
	if err != nil {
		return nil, err
	}

	return &runEnv{
		settings: res.Settings,
		origins:  res.Origins,
		logger:   logging.ForSettings(res.Settings, a.errOut, a.isTTY()),
		metrics:  reg,
		observer: obs,
	}, nil
}

func (a *App) store(ctx context.Context, env *runEnv) (objectStore, error) {
	return a.openStore(ctx, a.registry,
		storage.WithLogger(env.logger),
		storage.WithObserver(env.observer),
	)
}

// Package config resolves a settings.Settings from layered sources.
//
// Layers, lowest precedence first:
//
//	defaults       hard-coded fallbacks (settings.Defaults)
//	environment    process environment via envsource.DefaultTable
//	legacy         .env.shared.local / .env.shared.aws and extra env files
//	preset         development, testing or production overrides
//	sources        caller supplied layers such as a config file
//	builder        values set through a Builder
//	explicit       overrides passed straight to Resolve / BuildWith
//
// Every key is resolved independently and the highest layer that supplies
// it wins. Only the winning value is type-checked, so a malformed value in
// a lower layer is harmless once a higher layer overrides it. Resolution has
// no side effects: it never writes the process
// environment and never talks to the network.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/infrakit/internal/common"
	"github.com/dmitrijs2005/infrakit/internal/envsource"
	"github.com/dmitrijs2005/infrakit/internal/logging"
	"github.com/dmitrijs2005/infrakit/internal/settings"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
)

// Request describes a single resolution.
type Request struct {
	Explicit Overrides
	Builder  Overrides
	// Preset names an environment preset. Empty means no preset layer.
	Preset string

	UseLegacyFiles bool
	// Legacy replaces the resolver's legacy loader for this request.
	Legacy LegacyLoader
	// EnvFiles are extra dotenv files merged just above the legacy files.
	EnvFiles []string

	// Sources sit between the preset and the builder layer.
	Sources []Source
}

// Resolution is a resolved Settings together with the origin of every key
// that did not come from the defaults.
type Resolution struct {
	Settings settings.Settings
	Origins  map[string]string
}

// Resolver merges configuration layers into Settings.
type Resolver struct {
	env    *envsource.Reader
	legacy LegacyLoader
	logger logging.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithEnvReader replaces the environment reader, e.g. with a map lookup in
// tests.
func WithEnvReader(r *envsource.Reader) ResolverOption {
	return func(res *Resolver) {
		res.env = r
	}
}

// WithLegacyLoader replaces the default legacy loader (LegacyFilesIn("")).
func WithLegacyLoader(l LegacyLoader) ResolverOption {
	return func(res *Resolver) {
		res.legacy = l
	}
}

// WithLogger sets the logger used for resolution diagnostics.
func WithLogger(l logging.Logger) ResolverOption {
	return func(res *Resolver) {
		res.logger = l
	}
}

// NewResolver returns a Resolver over the process environment.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		env:    envsource.NewReader(),
		legacy: LegacyFilesIn(""),
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve merges every layer and returns a validated Settings. Failures are
// reported as *common.ConfigurationError where a single key is at fault.
func Resolve(explicit Overrides, preset string, useLegacyFiles bool) (settings.Settings, error) {
	return NewResolver().Resolve(explicit, preset, useLegacyFiles)
}

// Resolve is the method form of the package level Resolve.
func (r *Resolver) Resolve(explicit Overrides, preset string, useLegacyFiles bool) (settings.Settings, error) {
	return r.ResolveRequest(Request{
		Explicit:       explicit,
		Preset:         preset,
		UseLegacyFiles: useLegacyFiles,
	})
}

// ResolveRequest resolves req.
func (r *Resolver) ResolveRequest(req Request) (settings.Settings, error) {
	res, err := r.Explain(req)
	if err != nil {
		return settings.Settings{}, err
	}
	return res.Settings, nil
}

// Explain resolves req and reports where each value came from.
func (r *Resolver) Explain(req Request) (Resolution, error) {
	ctx := context.Background()

	layers, err := r.layers(req)
	if err != nil {
		return Resolution{}, err
	}

	k := koanf.New(".")
	origins := make(map[string]string)
	names := make([]string, 0, len(layers))

	for _, src := range layers {
		values, err := src.present()
		if err != nil {
			return Resolution{}, err
		}
		if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
			return Resolution{}, fmt.Errorf("merge %s: %w", src.Name, err)
		}
		for key := range values {
			origins[key] = src.origin(key)
		}
		names = append(names, src.Name)
	}

	typed, err := normalize(k.All(), origins)
	if err != nil {
		r.logger.Debug(ctx, "settings rejected", "layers", strings.Join(names, ", "), "error", err)
		return Resolution{}, err
	}
	merged := koanf.New(".")
	if err := merged.Load(confmap.Provider(typed, "."), nil); err != nil {
		return Resolution{}, fmt.Errorf("merge settings: %w", err)
	}

	var s settings.Settings
	if err := merged.Unmarshal("", &s); err != nil {
		return Resolution{}, fmt.Errorf("decode settings: %w", err)
	}

	if err := s.Validate(); err != nil {
		var ce *common.ConfigurationError
		if errors.As(err, &ce) && ce.Present && ce.Origin == "" {
			ce.Origin = origins[ce.Key]
		}
		r.logger.Debug(ctx, "settings rejected", "layers", strings.Join(names, ", "), "error", err)
		return Resolution{}, err
	}

	r.warn(ctx, s, origins)
	r.logger.Debug(ctx, "settings resolved",
		"environment", string(s.Environment),
		"layers", strings.Join(names, ", "),
		"storage_bucket", s.StorageBucket,
	)

	for key, origin := range origins {
		if origin == defaultsLayer {
			delete(origins, key)
		}
	}
	return Resolution{Settings: s, Origins: origins}, nil
}

const defaultsLayer = "defaults"

func (r *Resolver) layers(req Request) ([]Source, error) {
	layers := []Source{
		{Name: defaultsLayer, Values: Overrides(settings.Defaults().Values())},
	}

	env := Source{Name: "environment", Values: fromStrings(r.env.Values()), Origins: make(map[string]string)}
	for key, variable := range r.env.Origins() {
		env.Origins[key] = "environment variable " + variable
	}
	layers = append(layers, env)

	if req.UseLegacyFiles {
		loader := req.Legacy
		if loader == nil {
			loader = r.legacy
		}
		src, err := loader.Load()
		if err != nil {
			return nil, err
		}
		layers = append(layers, src)
	}

	if len(req.EnvFiles) > 0 {
		src, err := NewDotenvLoader(req.EnvFiles...).Load()
		if err != nil {
			return nil, err
		}
		layers = append(layers, src)
	}

	if req.Preset != "" {
		values, ok := Preset(req.Preset)
		if !ok {
			return nil, &common.ConfigurationError{
				Key:        "preset",
				Value:      req.Preset,
				Present:    true,
				Origin:     "preset",
				Suggestion: "use one of " + strings.Join(PresetNames(), ", "),
				Err:        fmt.Errorf("%w: unknown preset", common.ErrInvalidValue),
			}
		}
		env, _ := settings.ParseEnvironment(req.Preset)
		layers = append(layers, Source{Name: "preset " + string(env), Values: values})
	}

	layers = append(layers, req.Sources...)

	if len(req.Builder) > 0 {
		layers = append(layers, Source{Name: "builder", Values: req.Builder})
	}
	if len(req.Explicit) > 0 {
		layers = append(layers, Source{Name: "explicit", Values: req.Explicit})
	}
	return layers, nil
}

func (r *Resolver) warn(ctx context.Context, s settings.Settings, origins map[string]string) {
	if !s.IsProduction() {
		return
	}
	if s.JWTSecret == settings.DevelopmentJWTSecret {
		r.logger.Warn(ctx, "production settings use the development jwt secret",
			"key", settings.KeyJWTSecret, "suggestion", settings.Suggest(settings.KeyJWTSecret))
	}
	if s.Debug {
		r.logger.Warn(ctx, "debug is enabled in production", "origin", origins[settings.KeyDebug])
	}
	if !s.StorageUseSSL {
		r.logger.Warn(ctx, "storage SSL is disabled in production", "origin", origins[settings.KeyStorageUseSSL])
	}
}

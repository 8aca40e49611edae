package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// FileSource reads a flat YAML or JSON document of setting keys, e.g.
//
//	storage_bucket: media
//	storage_use_ssl: false
//	jwt_expire_minutes: 60
//
// The format is picked from the extension. Nested keys are flattened with
// "." and therefore rejected as unknown settings when merged.
func FileSource(path string) (Source, error) {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return Source{}, fmt.Errorf("config file %s: unsupported format, want .yaml, .yml or .json", path)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return Source{}, fmt.Errorf("config file %s: %w", path, err)
	}

	return Source{
		Name:   "config file " + path,
		Values: Overrides(k.All()),
	}, nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/infrakit/internal/envsource"
	"github.com/joho/godotenv"
)

// LegacySharedFiles are the dotenv files older deployments keep next to the
// services. Earlier files win over later ones.
var LegacySharedFiles = []string{".env.shared.local", ".env.shared.aws"}

// LegacyLoader produces the legacy layer of the merge.
type LegacyLoader interface {
	Load() (Source, error)
}

// DotenvLoader reads dotenv files and maps their variables to setting keys
// through the same fallback table used for the process environment.
//
// Missing files are skipped. A file that exists but cannot be parsed is an
// error. Loading never modifies the process environment.
type DotenvLoader struct {
	name  string
	paths []string
}

// NewDotenvLoader returns a loader for the given files.
func NewDotenvLoader(paths ...string) *DotenvLoader {
	return &DotenvLoader{name: "env file", paths: paths}
}

// LegacyFilesIn returns a loader for LegacySharedFiles inside dir. An empty
// dir means the working directory.
func LegacyFilesIn(dir string) *DotenvLoader {
	paths := make([]string, 0, len(LegacySharedFiles))
	for _, f := range LegacySharedFiles {
		paths = append(paths, filepath.Join(dir, f))
	}
	return &DotenvLoader{name: "legacy file", paths: paths}
}

// Paths returns the files the loader reads, in priority order.
func (l *DotenvLoader) Paths() []string {
	return append([]string(nil), l.paths...)
}

// Load implements LegacyLoader.
func (l *DotenvLoader) Load() (Source, error) {
	vars := make(map[string]string)
	fileOf := make(map[string]string)

	for _, p := range l.paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		m, err := godotenv.Read(p)
		if err != nil {
			return Source{}, fmt.Errorf("read %s %s: %w", l.name, p, err)
		}
		for k, v := range m {
			if _, seen := vars[k]; seen {
				continue
			}
			vars[k] = v
			fileOf[k] = p
		}
	}

	reader := envsource.NewReader(envsource.WithLookup(envsource.MapLookup(vars)))
	origins := make(map[string]string)
	for key, variable := range reader.Origins() {
		origins[key] = fmt.Sprintf("%s %s in %s", l.name, variable, fileOf[variable])
	}

	return Source{
		Name:    l.name,
		Values:  fromStrings(reader.Values()),
		Origins: origins,
	}, nil
}

// Package envsource reads setting values from environment variables using a
// declarative fallback table (see DefaultTable). Reads have no side effects
// and a missing variable is a normal outcome, not an error.
package envsource

import (
	"os"
	"sort"
	"strings"
)

// LookupFunc resolves a single variable name. os.LookupEnv is the default.
type LookupFunc func(name string) (string, bool)

// Reader probes the variable chain configured for each setting key.
type Reader struct {
	lookup LookupFunc
	table  Table
}

// Option configures a Reader.
type Option func(*Reader)

// WithLookup replaces the variable lookup, e.g. to read a dotenv map.
func WithLookup(fn LookupFunc) Option {
	return func(r *Reader) {
		r.lookup = fn
	}
}

// WithTable replaces the key to variable table.
func WithTable(t Table) Option {
	return func(r *Reader) {
		r.table = t
	}
}

// NewReader returns a Reader over the process environment and DefaultTable.
func NewReader(opts ...Option) *Reader {
	r := &Reader{
		lookup: os.LookupEnv,
		table:  DefaultTable,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MapLookup adapts a name/value map (such as a parsed dotenv file) to a
// LookupFunc.
func MapLookup(m map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}

// Lookup returns the first non-blank value found for key together with the
// variable it came from. ok is false when no variable in the chain is set.
func (r *Reader) Lookup(key string) (value, variable string, ok bool) {
	for _, name := range r.table[key] {
		v, found := r.lookup(name)
		if !found {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		return v, name, true
	}
	return "", "", false
}

// Values returns every key that resolved to a value. Keys are visited in
// sorted order so callers iterating the result see a stable sequence.
func (r *Reader) Values() map[string]string {
	keys := make([]string, 0, len(r.table))
	for k := range r.table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, _, ok := r.Lookup(k); ok {
			out[k] = v
		}
	}
	return out
}

// Origins returns, for every resolved key, the variable that supplied it.
func (r *Reader) Origins() map[string]string {
	out := make(map[string]string)
	for k := range r.table {
		if _, name, ok := r.Lookup(k); ok {
			out[k] = name
		}
	}
	return out
}

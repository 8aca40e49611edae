package config

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/infrakit/internal/common"
	"github.com/dmitrijs2005/infrakit/internal/settings"
)

// Overrides maps setting keys to values. Values may be strings, as read
// from the environment or files, or native bool and int values.
type Overrides map[string]any

// Clone returns a shallow copy of o.
func (o Overrides) Clone() Overrides {
	out := make(Overrides, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Source is a named layer of overrides. Sources are merged lowest first and
// later sources win per key.
type Source struct {
	Name   string
	Values Overrides
	// Origins optionally refines Name per key, e.g. the environment
	// variable a value was read from.
	Origins map[string]string
}

func (s Source) origin(key string) string {
	if o, ok := s.Origins[key]; ok && o != "" {
		return o
	}
	return s.Name
}

// present returns the values of s that take part in the merge, unchanged.
// Unknown keys are rejected here, per layer. Values that mean "unset" are
// dropped so lower layers show through. Types are checked later, once per
// key, on the value that wins the merge.
func (s Source) present() (map[string]any, error) {
	keys := make([]string, 0, len(s.Values))
	for k := range s.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(keys))
	for _, key := range keys {
		raw := s.Values[key]
		if !settings.IsKnown(key) {
			return nil, &common.ConfigurationError{
				Key:        key,
				Value:      fmt.Sprint(raw),
				Present:    true,
				Origin:     s.origin(key),
				Suggestion: "remove it; known settings are " + strings.Join(settings.Keys(), ", "),
				Err:        common.ErrUnknownKey,
			}
		}
		if isUnset(key, raw) {
			continue
		}
		out[key] = raw
	}
	return out, nil
}

// isUnset reports whether raw leaves key to the lower layers. An empty
// storage_bucket or free-form string is a value and clears them.
func isUnset(key string, raw any) bool {
	if raw == nil {
		return true
	}
	str, ok := raw.(string)
	if !ok || strings.TrimSpace(str) != "" {
		return false
	}
	switch settings.KindOf(key) {
	case settings.KindBool, settings.KindInt:
		return true
	}
	return key == settings.KeyEnvironment || key == settings.KeyLogLevel
}

// normalize converts the merged values to the Go types settings expects.
// A malformed value is reported with the origin of the layer it won from.
func normalize(merged map[string]any, origins map[string]string) (map[string]any, error) {
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(keys))
	for _, key := range keys {
		v, keep, err := normalizeValue(key, merged[key])
		if err != nil {
			err.Origin = origins[key]
			return nil, err
		}
		if keep {
			out[key] = v
		}
	}
	return out, nil
}

func normalizeValue(key string, raw any) (any, bool, *common.ConfigurationError) {
	if !settings.IsKnown(key) {
		return nil, false, &common.ConfigurationError{
			Key:        key,
			Value:      fmt.Sprint(raw),
			Present:    true,
			Suggestion: "remove it; known settings are " + strings.Join(settings.Keys(), ", "),
			Err:        common.ErrUnknownKey,
		}
	}

	invalid := func(reason string) *common.ConfigurationError {
		return &common.ConfigurationError{
			Key:        key,
			Value:      settings.Mask(key, fmt.Sprint(raw)),
			Present:    true,
			Suggestion: settings.Suggest(key),
			Err:        fmt.Errorf("%w: %s", common.ErrInvalidValue, reason),
		}
	}

	if raw == nil {
		return nil, false, nil
	}

	switch settings.KindOf(key) {
	case settings.KindBool:
		switch v := raw.(type) {
		case bool:
			return v, true, nil
		case string:
			if strings.TrimSpace(v) == "" {
				return nil, false, nil
			}
			b, ok := parseBool(v)
			if !ok {
				return nil, false, invalid("must be a boolean (true/false)")
			}
			return b, true, nil
		default:
			return nil, false, invalid("must be a boolean (true/false)")
		}

	case settings.KindInt:
		var n int64
		switch v := raw.(type) {
		case int:
			n = int64(v)
		case int32:
			n = int64(v)
		case int64:
			n = v
		case float64:
			if v != math.Trunc(v) {
				return nil, false, invalid("must be a positive integer")
			}
			n = int64(v)
		case string:
			if strings.TrimSpace(v) == "" {
				return nil, false, nil
			}
			parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 0)
			if err != nil {
				return nil, false, invalid("must be a positive integer")
			}
			n = parsed
		default:
			return nil, false, invalid("must be a positive integer")
		}
		if n <= 0 {
			return nil, false, invalid("must be a positive integer")
		}
		return int(n), true, nil
	}

	var str string
	switch v := raw.(type) {
	case string:
		str = v
	case bool, int, int32, int64, float64:
		str = fmt.Sprint(v)
	default:
		return nil, false, invalid(fmt.Sprintf("must be a string, got %T", raw))
	}

	switch key {
	case settings.KeyEnvironment:
		if strings.TrimSpace(str) == "" {
			return nil, false, nil
		}
		env, ok := settings.ParseEnvironment(str)
		if !ok {
			ce := invalid("must be one of development, testing, production")
			ce.Suggestion = "set ENVIRONMENT to development, testing or production"
			return nil, false, ce
		}
		return string(env), true, nil

	case settings.KeyLogLevel:
		if strings.TrimSpace(str) == "" {
			return nil, false, nil
		}
		lvl, ok := settings.ParseLogLevel(str)
		if !ok {
			ce := invalid("must be one of debug, info, warning, error")
			ce.Suggestion = "set LOG_LEVEL to debug, info, warning or error"
			return nil, false, ce
		}
		return string(lvl), true, nil

	case settings.KeyStorageBucket:
		// An empty bucket clears lower layers; a blank one is a mistake.
		if str != "" && strings.TrimSpace(str) == "" {
			return nil, false, invalid("must not be blank")
		}
		return strings.TrimSpace(str), true, nil
	}

	return strings.TrimSpace(str), true, nil
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on", "y":
		return true, true
	case "no", "off", "n":
		return false, true
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, false
	}
	return b, true
}

func fromStrings(m map[string]string) Overrides {
	out := make(Overrides, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

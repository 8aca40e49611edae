package settings

import (
	"fmt"
	"sort"

	"github.com/dmitrijs2005/infrakit/internal/envsource"
)

// Setting keys. These are the only keys accepted by the resolver.
const (
	KeyEnvironment             = "environment"
	KeyDebug                   = "debug"
	KeyLogLevel                = "log_level"
	KeyStorageBucket           = "storage_bucket"
	KeyStorageRegion           = "storage_region"
	KeyStorageEndpoint         = "storage_endpoint"
	KeyStorageUseSSL           = "storage_use_ssl"
	KeyStorageSignatureVersion = "storage_signature_version"
	KeyAccessKeyID             = "access_key_id"
	KeySecretAccessKey         = "secret_access_key"
	KeyDatabaseURL             = "database_url"
	KeyJWTSecret               = "jwt_secret"
	KeyJWTAlgorithm            = "jwt_algorithm"
	KeyJWTExpireMinutes        = "jwt_expire_minutes"
)

// Kind is the value type stored under a key.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
)

type keySpec struct {
	kind   Kind
	secret bool
}

var specs = map[string]keySpec{
	KeyEnvironment:             {kind: KindString},
	KeyDebug:                   {kind: KindBool},
	KeyLogLevel:                {kind: KindString},
	KeyStorageBucket:           {kind: KindString},
	KeyStorageRegion:           {kind: KindString},
	KeyStorageEndpoint:         {kind: KindString},
	KeyStorageUseSSL:           {kind: KindBool},
	KeyStorageSignatureVersion: {kind: KindString},
	KeyAccessKeyID:             {kind: KindString},
	KeySecretAccessKey:         {kind: KindString, secret: true},
	KeyDatabaseURL:             {kind: KindString},
	KeyJWTSecret:               {kind: KindString, secret: true},
	KeyJWTAlgorithm:            {kind: KindString},
	KeyJWTExpireMinutes:        {kind: KindInt},
}

// Keys returns every known setting key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(specs))
	for k := range specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsKnown reports whether key is a recognised setting.
func IsKnown(key string) bool {
	_, ok := specs[key]
	return ok
}

// KindOf returns the value kind for key. Unknown keys report KindString.
func KindOf(key string) Kind {
	return specs[key].kind
}

// IsSecret reports whether values under key must not be logged.
func IsSecret(key string) bool {
	return specs[key].secret
}

// Mask hides secret values. Non-secret values are returned unchanged.
func Mask(key, value string) string {
	if !IsSecret(key) || value == "" {
		return value
	}
	return "****"
}

// Suggest returns the standard corrective action for key.
func Suggest(key string) string {
	if v := envsource.Primary(key); v != "" {
		return fmt.Sprintf("set %s environment variable or pass %s= explicitly", v, key)
	}
	return fmt.Sprintf("pass %s= explicitly", key)
}

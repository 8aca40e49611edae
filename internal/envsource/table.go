package envsource

// Table maps a setting key to the environment variables probed for it, in
// order. The first variable holding a non-blank value wins.
type Table map[string][]string

// DefaultTable is the variable table used for process environment and
// dotenv files alike. Generic names come after the storage-specific ones.
var DefaultTable = Table{
	"environment":               {"ENVIRONMENT", "APP_ENV"},
	"debug":                     {"DEBUG"},
	"log_level":                 {"LOG_LEVEL"},
	"storage_bucket":            {"STORAGE_BUCKET", "AWS_S3_BUCKET_NAME"},
	"storage_region":            {"STORAGE_REGION", "AWS_S3_REGION", "AWS_REGION", "AWS_DEFAULT_REGION"},
	"storage_endpoint":          {"STORAGE_ENDPOINT", "AWS_S3_ENDPOINT_URL"},
	"storage_use_ssl":           {"STORAGE_USE_SSL", "AWS_S3_USE_SSL"},
	"storage_signature_version": {"STORAGE_SIGNATURE_VERSION", "AWS_S3_SIGNATURE_VERSION"},
	"access_key_id":             {"STORAGE_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"},
	"secret_access_key":         {"STORAGE_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"},
	"database_url":              {"DATABASE_URL"},
	"jwt_secret":                {"JWT_SECRET"},
	"jwt_algorithm":             {"JWT_ALGORITHM"},
	"jwt_expire_minutes":        {"JWT_EXPIRE_MINUTES"},
}

// Variables returns the variable names probed for key, or nil.
func Variables(key string) []string {
	return DefaultTable[key]
}

// Primary returns the first (preferred) variable name for key, or "".
func Primary(key string) string {
	if vars := DefaultTable[key]; len(vars) > 0 {
		return vars[0]
	}
	return ""
}

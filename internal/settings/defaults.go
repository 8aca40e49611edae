package settings

// Hard-coded fallbacks, the lowest precedence layer of every resolution.
const (
	DefaultStorageRegion           = "us-east-2"
	DefaultStorageSignatureVersion = "s3v4"
	DefaultJWTAlgorithm            = "HS256"
	DefaultJWTExpireMinutes        = 30

	// DevelopmentJWTSecret is only suitable for local work. The resolver
	// warns when it survives into a production configuration.
	DevelopmentJWTSecret = "dev_jwt_secret_key_change_in_production"
)

// Defaults returns the hard-coded fallback configuration.
// NOTE: the JWT secret is insecure and must be overridden in production.
func Defaults() Settings {
	return Settings{
		Environment:             Development,
		Debug:                   false,
		LogLevel:                LevelInfo,
		StorageRegion:           DefaultStorageRegion,
		StorageUseSSL:           true,
		StorageSignatureVersion: DefaultStorageSignatureVersion,
		JWTSecret:               DevelopmentJWTSecret,
		JWTAlgorithm:            DefaultJWTAlgorithm,
		JWTExpireMinutes:        DefaultJWTExpireMinutes,
	}
}

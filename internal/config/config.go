package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
	Gateway  GatewayConfig  `mapstructure:"gateway" validate:"required"`
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
	Registry RegistryConfig `mapstructure:"registry" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// InternalToken guards the upload push endpoint and the connection
	// management API. The broker and the gateway client present it.
	InternalToken string `mapstructure:"internal_token" validate:"required,min=16"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
	// AutoMigrate applies pending goose migrations when the server starts.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// AuthConfig contains the bearer token verification settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
	// TokenLifetimeMinutes bounds tokens minted by GenerateToken.
	TokenLifetimeMinutes int `mapstructure:"token_lifetime_minutes" validate:"gt=0,lte=44640"`
}

// StorageConfig names the attachment and thumbnail buckets.
type StorageConfig struct {
	AttachmentsBucket string `mapstructure:"attachments_bucket" validate:"required"`
	ThumbnailsBucket  string `mapstructure:"thumbnails_bucket" validate:"required,nefield=AttachmentsBucket"`
	// PublicBaseURL is the prefix of publicly readable object URLs; the bucket
	// name and object key are appended to it.
	PublicBaseURL          string `mapstructure:"public_base_url" validate:"required,url"`
	UploadURLExpiryMinutes int    `mapstructure:"upload_url_expiry_minutes" validate:"gt=0,lte=10080"`
	// EmulatorHost points the client at a fake-gcs-server style emulator.
	EmulatorHost string `mapstructure:"emulator_host"`
}

// GatewayConfig describes the push transport used to reach client connections.
type GatewayConfig struct {
	Endpoint            string `mapstructure:"endpoint" validate:"required,url"`
	Stage               string `mapstructure:"stage" validate:"required,excludesall=/?#"`
	PushTimeoutSeconds  int    `mapstructure:"push_timeout_seconds" validate:"gt=0"`
	PingIntervalSeconds int    `mapstructure:"ping_interval_seconds" validate:"gt=0"`
	// InProcess pushes straight to the sessions held by this process instead
	// of calling the management API at Endpoint.
	InProcess bool `mapstructure:"in_process"`
}

// PipelineConfig tunes the upload pipeline consumers.
type PipelineConfig struct {
	// Concurrency bounds the number of entries or pushes in flight per invocation.
	Concurrency              int `mapstructure:"concurrency" validate:"gt=0,lte=256"`
	InvocationTimeoutSeconds int `mapstructure:"invocation_timeout_seconds" validate:"gt=0"`
	ThumbnailQuality         int `mapstructure:"thumbnail_quality" validate:"gte=1,lte=100"`
}

// RegistryConfig tunes the connection registry scans.
type RegistryConfig struct {
	PageSize int `mapstructure:"page_size" validate:"gt=0,lte=10000"`
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when --config is not provided.
const DefaultConfigPath = "config.yml"

// AppConfig holds the full runtime configuration. It is loaded once from
// config.yml at startup and stays immutable afterwards; hook settings that
// operators can change at runtime live in the database instead.
type AppConfig struct {
	Port           int
	Env            string
	JWTSecret      string
	Timezone       string
	AllowedOrigins []string

	Database DatabaseConfig
	Redis    RedisConfig
	Paths    PathsConfig
	Platform PlatformConfig
	Delivery DeliveryConfig
	Archive  ArchiveConfig
	Bark     BarkConfig
}

// DatabaseConfig describes the MySQL connection.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Params   map[string]string
}

// RedisConfig describes the redis connection.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TLS      bool
}

// PathsConfig holds on-disk directories the service writes to. Relative
// entries are resolved against the executable directory at load time.
type PathsConfig struct {
	Logs     string
	Archives string
}

// PlatformConfig points at the SurveyKit internal API the dispatcher pulls
// response data from.
type PlatformConfig struct {
	BaseURL        string
	ServiceToken   string
	TimeoutSeconds int
}

// DeliveryConfig tunes outbound webhook requests.
type DeliveryConfig struct {
	TimeoutSeconds int
}

// ArchiveConfig controls the hook event archive job.
type ArchiveConfig struct {
	Enable        bool
	RetentionDays int
	S3            S3Config
}

// S3Config describes the optional object storage target for archives.
type S3Config struct {
	Enable    bool
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// BarkConfig enables abuse notifications through a bark server.
type BarkConfig struct {
	Enable    bool
	Key       string
	ServerURL string
	AppTitle  string
}

type rawAppConfig struct {
	Port           *int      `yaml:"port"`
	Env            *string   `yaml:"env"`
	JWTSecret      *string   `yaml:"jwt_secret"`
	JWTSecretAlt   *string   `yaml:"jwtSecret"`
	Timezone       *string   `yaml:"timezone"`
	AllowedOrigins []string  `yaml:"allowed_origins"`
	AllowedAlt     []string  `yaml:"allowedOrigins"`

	Database *rawDatabaseConfig `yaml:"database"`
	DB       *rawDatabaseConfig `yaml:"db"`
	Redis    *rawRedisConfig    `yaml:"redis"`
	Paths    *rawPathsConfig    `yaml:"paths"`
	Platform *rawPlatformConfig `yaml:"platform"`
	Delivery *rawDeliveryConfig `yaml:"delivery"`
	Archive  *rawArchiveConfig  `yaml:"archive"`
	Bark     *rawBarkConfig     `yaml:"bark"`
}

type rawDatabaseConfig struct {
	Host     *string           `yaml:"host"`
	Port     *int              `yaml:"port"`
	User     *string           `yaml:"user"`
	Username *string           `yaml:"username"`
	Password *string           `yaml:"password"`
	Name     *string           `yaml:"name"`
	DBName   *string           `yaml:"dbname"`
	Params   map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	Host     *string `yaml:"host"`
	Port     *int    `yaml:"port"`
	Password *string `yaml:"password"`
	DB       *int    `yaml:"db"`
	TLS      *bool   `yaml:"tls"`
}

type rawPathsConfig struct {
	Logs     *string `yaml:"logs"`
	LogDir   *string `yaml:"log_dir"`
	Archives *string `yaml:"archives"`
}

type rawPlatformConfig struct {
	BaseURL        *string `yaml:"base_url"`
	BaseURLAlt     *string `yaml:"baseUrl"`
	ServiceToken   *string `yaml:"service_token"`
	ServiceTokAlt  *string `yaml:"serviceToken"`
	TimeoutSeconds *int    `yaml:"timeout_seconds"`
}

type rawDeliveryConfig struct {
	TimeoutSeconds *int `yaml:"timeout_seconds"`
	Timeout        *int `yaml:"timeout"`
}

type rawArchiveConfig struct {
	Enable        *bool        `yaml:"enable"`
	Enabled       *bool        `yaml:"enabled"`
	RetentionDays *int         `yaml:"retention_days"`
	S3            *rawS3Config `yaml:"s3"`
}

type rawS3Config struct {
	Enable    *bool   `yaml:"enable"`
	Endpoint  *string `yaml:"endpoint"`
	Region    *string `yaml:"region"`
	Bucket    *string `yaml:"bucket"`
	AccessKey *string `yaml:"access_key"`
	SecretKey *string `yaml:"secret_key"`
	PathStyle *bool   `yaml:"path_style"`
}

type rawBarkConfig struct {
	Enable    *bool   `yaml:"enable"`
	Key       *string `yaml:"key"`
	ServerURL *string `yaml:"server_url"`
	ServerAlt *string `yaml:"serverUrl"`
	AppTitle  *string `yaml:"app_title"`
}

// Load reads and validates the YAML config at path. Unknown top-level keys
// are rejected so typos surface at startup rather than as silent defaults.
func Load(path string) (*AppConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var raw rawAppConfig
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := applyRawAppConfig(cfg, &raw); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	resolvePaths(cfg)
	return cfg, nil
}

// Default returns the built-in configuration used when no config file is
// present. It expects local MySQL and redis instances.
func Default() *AppConfig {
	cfg := defaultAppConfig()
	resolvePaths(cfg)
	return cfg
}

func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Port:      2335,
		Env:       envOrDefault("SVK_ENV", "production"),
		JWTSecret: os.Getenv("SVK_JWT_SECRET"),
		Timezone:  "UTC",
		Database: DatabaseConfig{
			Host: "127.0.0.1",
			Port: 3306,
			User: "root",
			Name: "surveykit_hooks",
		},
		Redis: RedisConfig{
			Host: "127.0.0.1",
			Port: 6379,
		},
		Paths: PathsConfig{
			Logs:     envOrDefault("SVK_LOG_DIR", "logs"),
			Archives: "archives",
		},
		Platform: PlatformConfig{
			BaseURL:        os.Getenv("SVK_PLATFORM_URL"),
			ServiceToken:   os.Getenv("SVK_PLATFORM_TOKEN"),
			TimeoutSeconds: 10,
		},
		Delivery: DeliveryConfig{
			TimeoutSeconds: 30,
		},
		Archive: ArchiveConfig{
			RetentionDays: 90,
		},
		Bark: BarkConfig{
			AppTitle: "SurveyKit Hooks",
		},
	}
}

func applyRawAppConfig(cfg *AppConfig, raw *rawAppConfig) error {
	if raw.Port != nil {
		cfg.Port = *raw.Port
	}
	if raw.Env != nil {
		cfg.Env = strings.ToLower(strings.TrimSpace(*raw.Env))
	}
	applyString(&cfg.JWTSecret, raw.JWTSecret, raw.JWTSecretAlt)
	if raw.Timezone != nil {
		cfg.Timezone = *raw.Timezone
	}
	if raw.AllowedOrigins != nil {
		cfg.AllowedOrigins = raw.AllowedOrigins
	} else if raw.AllowedAlt != nil {
		cfg.AllowedOrigins = raw.AllowedAlt
	}

	db := raw.Database
	if db == nil {
		db = raw.DB
	}
	if db != nil {
		applyString(&cfg.Database.Host, db.Host)
		applyInt(&cfg.Database.Port, db.Port)
		applyString(&cfg.Database.User, db.User, db.Username)
		applyString(&cfg.Database.Password, db.Password)
		applyString(&cfg.Database.Name, db.Name, db.DBName)
		if db.Params != nil {
			cfg.Database.Params = db.Params
		}
	}
	if raw.Redis != nil {
		applyString(&cfg.Redis.Host, raw.Redis.Host)
		applyInt(&cfg.Redis.Port, raw.Redis.Port)
		applyString(&cfg.Redis.Password, raw.Redis.Password)
		applyInt(&cfg.Redis.DB, raw.Redis.DB)
		applyBool(&cfg.Redis.TLS, raw.Redis.TLS)
	}
	if raw.Paths != nil {
		applyString(&cfg.Paths.Logs, raw.Paths.Logs, raw.Paths.LogDir)
		applyString(&cfg.Paths.Archives, raw.Paths.Archives)
	}
	if raw.Platform != nil {
		applyString(&cfg.Platform.BaseURL, raw.Platform.BaseURL, raw.Platform.BaseURLAlt)
		applyString(&cfg.Platform.ServiceToken, raw.Platform.ServiceToken, raw.Platform.ServiceTokAlt)
		applyInt(&cfg.Platform.TimeoutSeconds, raw.Platform.TimeoutSeconds)
	}
	if raw.Delivery != nil {
		applyInt(&cfg.Delivery.TimeoutSeconds, raw.Delivery.TimeoutSeconds, raw.Delivery.Timeout)
	}
	if raw.Archive != nil {
		applyBool(&cfg.Archive.Enable, raw.Archive.Enable, raw.Archive.Enabled)
		applyInt(&cfg.Archive.RetentionDays, raw.Archive.RetentionDays)
		if s3 := raw.Archive.S3; s3 != nil {
			applyBool(&cfg.Archive.S3.Enable, s3.Enable)
			applyString(&cfg.Archive.S3.Endpoint, s3.Endpoint)
			applyString(&cfg.Archive.S3.Region, s3.Region)
			applyString(&cfg.Archive.S3.Bucket, s3.Bucket)
			applyString(&cfg.Archive.S3.AccessKey, s3.AccessKey)
			applyString(&cfg.Archive.S3.SecretKey, s3.SecretKey)
			applyBool(&cfg.Archive.S3.PathStyle, s3.PathStyle)
		}
	}
	if raw.Bark != nil {
		applyBool(&cfg.Bark.Enable, raw.Bark.Enable)
		applyString(&cfg.Bark.Key, raw.Bark.Key)
		applyString(&cfg.Bark.ServerURL, raw.Bark.ServerURL, raw.Bark.ServerAlt)
		applyString(&cfg.Bark.AppTitle, raw.Bark.AppTitle)
	}
	return nil
}

func (c *AppConfig) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("config: invalid database port %d", c.Database.Port)
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		return fmt.Errorf("config: invalid redis port %d", c.Redis.Port)
	}
	if c.Database.Name == "" {
		return errors.New("config: database name must not be empty")
	}
	if c.Delivery.TimeoutSeconds <= 0 {
		return errors.New("config: delivery timeout must be positive")
	}
	if c.Archive.Enable && c.Archive.RetentionDays <= 0 {
		return errors.New("config: archive retention must be positive when the archive job is enabled")
	}
	if c.Archive.S3.Enable && c.Archive.S3.Bucket == "" {
		return errors.New("config: s3 bucket must be set when s3 upload is enabled")
	}
	return nil
}

func resolvePaths(cfg *AppConfig) {
	cfg.Paths.Logs = ResolveRuntimePath(cfg.Paths.Logs)
	cfg.Paths.Archives = ResolveRuntimePath(cfg.Paths.Archives)
}

// IsDev reports whether the service runs with development behavior such as
// verbose gin output and console-friendly logging.
func (c *AppConfig) IsDev() bool {
	return c.Env == "dev" || c.Env == "development"
}

// LogDir returns the resolved directory for log files.
func (c *AppConfig) LogDir() string { return c.Paths.Logs }

// ArchiveDir returns the resolved directory for hook event archives.
func (c *AppConfig) ArchiveDir() string { return c.Paths.Archives }

func applyString(dst *string, candidates ...*string) {
	for _, c := range candidates {
		if c != nil {
			*dst = *c
			return
		}
	}
}

func applyInt(dst *int, candidates ...*int) {
	for _, c := range candidates {
		if c != nil {
			*dst = *c
			return
		}
	}
}

func applyBool(dst *bool, candidates ...*bool) {
	for _, c := range candidates {
		if c != nil {
			*dst = *c
			return
		}
	}
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

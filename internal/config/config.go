package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewGoalsHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	Timezone    string

	OTLPEndpoint string

	Catalog   CatalogConfig
	OAuth     OAuthConfig
	Backup    BackupConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

type CatalogConfig struct {
	Source  string
	Timeout time.Duration
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
}

type BackupConfig struct {
	Provider   string
	ScratchDir string
	FilePrefix string
	S3Bucket   string
	S3Region   string
	S3Prefix   string
	S3Endpoint string
	DriveAPI   string
}

type SessionConfig struct {
	Store         string
	TTL           time.Duration
	CookieSecure  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SessionCreateRate  float64
	SessionCreateBurst int
	WriteRate          float64
	WriteBurst         int
}

type SchedulerConfig struct {
	Enabled        bool
	RunInterval    time.Duration
	AuditRetention time.Duration
}

const (
	BackupProviderDrive = "drive"
	BackupProviderS3    = "s3"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"

	defaultDriveScope = "https://www.googleapis.com/auth/drive.file"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	cookieSecure := environment == "production"
	if !cookieSecure {
		cookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	scopes := parseList(getenv("OAUTH_SCOPES", defaultDriveScope))

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "macrolog"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  environment,
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		Timezone:     strings.TrimSpace(getenv("APP_TIMEZONE", "Local")),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		Catalog: CatalogConfig{
			Source:  strings.TrimSpace(getenv("CATALOG_SOURCE", "data/Filtered_Food_Data.csv")),
			Timeout: getenvDuration("CATALOG_TIMEOUT", 15*time.Second),
		},
		OAuth: OAuthConfig{
			ClientID:     strings.TrimSpace(getenv("OAUTH2_CLIENT_ID", "")),
			ClientSecret: strings.TrimSpace(getenv("OAUTH2_CLIENT_SECRET", "")),
			AuthURL:      strings.TrimSpace(getenv("OAUTH2_AUTH_URL", "")),
			TokenURL:     strings.TrimSpace(getenv("OAUTH2_TOKEN_URL", "")),
			RedirectURL:  lastOf(parseList(getenv("OAUTH2_REDIRECT_URIS", "http://localhost:8080/auth/callback"))),
			Scopes:       scopes,
		},
		Backup: BackupConfig{
			Provider:   normalizeBackupProvider(getenv("BACKUP_PROVIDER", BackupProviderDrive)),
			ScratchDir: strings.TrimSpace(getenv("BACKUP_SCRATCH_DIR", os.TempDir())),
			FilePrefix: strings.TrimSpace(getenv("BACKUP_FILE_PREFIX", "historial_consumo")),
			S3Bucket:   strings.TrimSpace(getenv("S3_BUCKET", "")),
			S3Region:   strings.TrimSpace(getenv("S3_REGION", getenv("AWS_REGION", ""))),
			S3Prefix:   strings.Trim(strings.TrimSpace(getenv("S3_PREFIX", "")), "/"),
			S3Endpoint: strings.TrimSpace(getenv("S3_ENDPOINT", "")),
			DriveAPI:   strings.TrimSpace(getenv("DRIVE_API_ENDPOINT", "")),
		},
		Session: SessionConfig{
			Store:         normalizeSessionStore(getenv("SESSION_STORE", SessionStoreMemory)),
			TTL:           getenvDuration("SESSION_TTL", 24*time.Hour),
			CookieSecure:  cookieSecure,
			RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getenv("REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:            getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:          getenv("RATE_LIMIT_REDIS_ADDR", getenv("REDIS_ADDR", "localhost:6379")),
			RedisPassword:      getenv("RATE_LIMIT_REDIS_PASSWORD", getenv("REDIS_PASSWORD", "")),
			RedisDB:            getenvInt("RATE_LIMIT_REDIS_DB", getenvInt("REDIS_DB", 0)),
			SessionCreateRate:  getenvFloat("RATE_LIMIT_SESSION_CREATE_RATE", 0.1),
			SessionCreateBurst: getenvInt("RATE_LIMIT_SESSION_CREATE_BURST", 5),
			WriteRate:          getenvFloat("RATE_LIMIT_WRITE_RATE", 1),
			WriteBurst:         getenvInt("RATE_LIMIT_WRITE_BURST", 10),
		},
		Scheduler: SchedulerConfig{
			Enabled:        getenvBool("SCHEDULER_ENABLED", true),
			RunInterval:    getenvDuration("SCHEDULER_INTERVAL", 5*time.Minute),
			AuditRetention: getenvDuration("AUDIT_RETENTION", 30*24*time.Hour),
		},
		DBType:            getenv("DATABASE_TYPE", "sqlite"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "macrolog"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "macrolog.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
	}

	return cfg
}

// Location resolves the configured timezone, falling back to local time.
func (c Config) Location() *time.Location {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

func normalizeBackupProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case BackupProviderS3:
		return BackupProviderS3
	default:
		return BackupProviderDrive
	}
}

func normalizeSessionStore(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case SessionStoreRedis:
		return SessionStoreRedis
	default:
		return SessionStoreMemory
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' '
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// lastOf mirrors the registered-client convention of using the last redirect URI.
func lastOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}

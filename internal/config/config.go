package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort                   = "3000"
	defaultShutdownTimeout        = 10 * time.Second
	defaultMaxConns         int32 = 10
	defaultStorageDriver          = DriverS3
	defaultStorageHost            = "storage.googleapis.com"
	defaultStorageEndpoint        = "https://storage.googleapis.com"
	defaultStorageRegion          = "auto"
	defaultKeyPrefix              = "uploads"
	defaultGitHubBranch           = "main"
	defaultLocalDir               = "data/objects"
	defaultBatchMaxTuples         = 200
	defaultBatchConcurrency       = 4
	defaultMaxRequestBytes        = 256 << 20
	defaultReconcileInterval      = "@every 15m"
	defaultReconcileGrace         = time.Hour
)

// Storage drivers understood by the object store factory.
const (
	DriverS3         = "s3"
	DriverGitHub     = "github"
	DriverFilesystem = "filesystem"
)

// Config captures server runtime configuration.
type Config struct {
	Port            string
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	DatabaseURL string
	DBMaxConns  int32

	StorageDriver    string
	StorageBucket    string
	StorageHost      string
	StorageEndpoint  string
	StorageRegion    string
	StorageAccessKey string
	StorageSecretKey string
	StorageKeyPrefix string

	GitHubToken  string
	GitHubOwner  string
	GitHubRepo   string
	GitHubBranch string

	LocalStorageDir string
	LocalPublicURL  string

	BatchMaxTuples         int
	BatchUploadConcurrency int
	// MaxRequestBytes caps any request body, batches included. Decoded files
	// are held in memory, so this bounds per-request memory.
	MaxRequestBytes int64

	ReconcileEnabled  bool
	ReconcileInterval string
	ReconcileGrace    time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads environment variables into a Config structure. A .env file in the
// working directory is applied first; variables already set in the process win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port:            getEnv("SERVER_PORT", getEnv("PORT", defaultPort)),
		ShutdownTimeout: parseDuration("SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		AllowedOrigins:  parseList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:  int32(parseInt64("DB_MAX_CONNS", int64(defaultMaxConns))),

		StorageDriver:    strings.ToLower(getEnv("STORAGE_DRIVER", defaultStorageDriver)),
		StorageBucket:    strings.TrimSpace(os.Getenv("STORAGE_BUCKET")),
		StorageHost:      getEnv("STORAGE_HOST", defaultStorageHost),
		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", defaultStorageEndpoint),
		StorageRegion:    getEnv("STORAGE_REGION", defaultStorageRegion),
		StorageAccessKey: strings.TrimSpace(os.Getenv("STORAGE_ACCESS_KEY")),
		StorageSecretKey: strings.TrimSpace(os.Getenv("STORAGE_SECRET_KEY")),
		StorageKeyPrefix: getEnv("STORAGE_KEY_PREFIX", defaultKeyPrefix),

		GitHubToken:  strings.TrimSpace(os.Getenv("GITHUB_ACCESS_TOKEN")),
		GitHubOwner:  strings.TrimSpace(os.Getenv("GITHUB_STORAGE_OWNER")),
		GitHubRepo:   strings.TrimSpace(os.Getenv("GITHUB_STORAGE_REPO")),
		GitHubBranch: getEnv("GITHUB_STORAGE_BRANCH", defaultGitHubBranch),

		LocalStorageDir: getEnv("STORAGE_LOCAL_DIR", defaultLocalDir),
		LocalPublicURL:  strings.TrimSpace(os.Getenv("STORAGE_PUBLIC_BASE_URL")),

		BatchMaxTuples:         int(parseInt64("BATCH_MAX_TUPLES", defaultBatchMaxTuples)),
		BatchUploadConcurrency: int(parseInt64("BATCH_UPLOAD_CONCURRENCY", defaultBatchConcurrency)),
		MaxRequestBytes:        parseInt64("MAX_REQUEST_BYTES", defaultMaxRequestBytes),

		ReconcileEnabled:  parseBool("RECONCILE_ENABLED", true),
		ReconcileInterval: getEnv("RECONCILE_INTERVAL", defaultReconcileInterval),
		ReconcileGrace:    parseDuration("RECONCILE_GRACE", defaultReconcileGrace),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = databaseURLFromParts()
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL or DB_HOST/DB_USER/DB_NAME is required")
	}

	switch cfg.StorageDriver {
	case DriverS3:
		if cfg.StorageBucket == "" {
			return nil, errors.New("STORAGE_BUCKET is required")
		}
	case DriverGitHub:
		if cfg.GitHubToken == "" {
			return nil, errors.New("GITHUB_ACCESS_TOKEN is required")
		}
		if cfg.GitHubOwner == "" {
			return nil, errors.New("GITHUB_STORAGE_OWNER is required")
		}
		if cfg.GitHubRepo == "" {
			return nil, errors.New("GITHUB_STORAGE_REPO is required")
		}
	case DriverFilesystem:
		if cfg.LocalPublicURL == "" {
			cfg.LocalPublicURL = "http://localhost:" + cfg.Port + "/files"
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DBMaxConns <= 0 {
		c.DBMaxConns = defaultMaxConns
	}
	if c.BatchMaxTuples <= 0 {
		c.BatchMaxTuples = defaultBatchMaxTuples
	}
	if c.BatchUploadConcurrency <= 0 {
		c.BatchUploadConcurrency = 1
	}
	if c.MaxRequestBytes <= 0 {
		c.MaxRequestBytes = defaultMaxRequestBytes
	}
	if c.ReconcileGrace <= 0 {
		c.ReconcileGrace = defaultReconcileGrace
	}
	c.StorageKeyPrefix = strings.Trim(c.StorageKeyPrefix, "/")
}

// databaseURLFromParts assembles a connection string from the discrete DB_*
// variables.
func databaseURLFromParts() string {
	host := strings.TrimSpace(os.Getenv("DB_HOST"))
	user := strings.TrimSpace(os.Getenv("DB_USER"))
	name := strings.TrimSpace(os.Getenv("DB_NAME"))
	if host == "" || user == "" || name == "" {
		return ""
	}
	port := getEnv("DB_PORT", "5432")
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, os.Getenv("DB_PASSWORD")),
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + name,
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func parseInt64(key string, fallback int64) int64 {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBool(key string, fallback bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return dur
}

func parseList(key string, fallback []string) []string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"productsnap/internal/domain"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	DatabaseMaxConns int32
	RedisURL         string
	QueueName        string
	JWTSecret        string
	FrontendURL      string
	GeoIPDBPath      string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	MaxUploadSize    int64

	StorageDriver  string
	StoragePath    string
	StorageBaseURL string
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string

	GenerationMode         string
	GenerationAPIURL       string
	GenerationAPIKey       string
	GenerationTimeout      time.Duration
	GenerationPollInterval time.Duration
	GenerationMaxWait      time.Duration

	WorkerIdleInterval         time.Duration
	WorkerErrorBackoff         time.Duration
	ReaperInterval             time.Duration
	ReaperStaleAfter           time.Duration
	ReaperReconcileConcurrency bool
	ThumbnailMaxSize           int

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	FreeJobsPerDay         int
	FreeConcurrentJobs     int
	PersonalJobsPerMonth   int
	PersonalConcurrentJobs int
	ProJobsPerMonth        int
	ProConcurrentJobs      int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             port,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DatabaseMaxConns: int32(getEnvInt("DATABASE_MAX_CONNS", 10)),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		QueueName:        getEnv("QUEUE_NAME", "job_queue"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		MaxUploadSize:    int64(getEnvInt("MAX_UPLOAD_SIZE", 10*1024*1024)),

		StorageDriver:  strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", fmt.Sprintf("http://localhost:%s/static", port)),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),

		GenerationMode:         strings.ToLower(getEnv("GENERATION_MODE", "mock")),
		GenerationAPIURL:       getEnv("GENERATION_API_URL", "https://api.nanobanana.com"),
		GenerationAPIKey:       os.Getenv("GENERATION_API_KEY"),
		GenerationTimeout:      getEnvDuration("GENERATION_HTTP_TIMEOUT", 60*time.Second),
		GenerationPollInterval: getEnvDuration("GENERATION_POLL_INTERVAL", 5*time.Second),
		GenerationMaxWait:      getEnvDuration("GENERATION_MAX_WAIT", 300*time.Second),

		WorkerIdleInterval:         getEnvDuration("WORKER_IDLE_INTERVAL", time.Second),
		WorkerErrorBackoff:         getEnvDuration("WORKER_ERROR_BACKOFF", 5*time.Second),
		ReaperInterval:             getEnvDuration("REAPER_INTERVAL", 60*time.Second),
		ReaperStaleAfter:           getEnvDuration("REAPER_STALE_AFTER", 15*time.Minute),
		ReaperReconcileConcurrency: getEnvBool("REAPER_RECONCILE_CONCURRENCY", false),
		ThumbnailMaxSize:           getEnvInt("THUMBNAIL_MAX_SIZE", 400),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@productsnap.com"),

		FreeJobsPerDay:         getEnvInt("FREE_JOBS_PER_DAY", 5),
		FreeConcurrentJobs:     getEnvInt("FREE_CONCURRENT_JOBS", 1),
		PersonalJobsPerMonth:   getEnvInt("PERSONAL_JOBS_PER_MONTH", 100),
		PersonalConcurrentJobs: getEnvInt("PERSONAL_CONCURRENT_JOBS", 3),
		ProJobsPerMonth:        getEnvInt("PRO_JOBS_PER_MONTH", 1000),
		ProConcurrentJobs:      getEnvInt("PRO_CONCURRENT_JOBS", 5),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.StorageDriver {
	case "local", "s3":
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	if cfg.StorageDriver == "s3" && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
	}

	switch cfg.GenerationMode {
	case "mock", "live":
	default:
		return nil, fmt.Errorf("unsupported GENERATION_MODE %q", cfg.GenerationMode)
	}

	return cfg, nil
}

// ValidateAPI checks settings only the HTTP API needs.
func (c *Config) ValidateAPI() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// PlanLimits builds the admission table from the configured per-plan limits.
// Basic plans share the personal tier limits.
func (c *Config) PlanLimits() domain.PlanLimitTable {
	personal := domain.PlanLimits{MaxJobs: c.PersonalJobsPerMonth, MaxConcurrent: c.PersonalConcurrentJobs, Period: domain.PeriodMonth}
	pro := domain.PlanLimits{MaxJobs: c.ProJobsPerMonth, MaxConcurrent: c.ProConcurrentJobs, Period: domain.PeriodMonth}
	return domain.PlanLimitTable{
		domain.PlanFree:         {MaxJobs: c.FreeJobsPerDay, MaxConcurrent: c.FreeConcurrentJobs, Period: domain.PeriodDay},
		domain.PlanBasicMonthly: personal,
		domain.PlanBasicYearly:  personal,
		domain.PlanProMonthly:   pro,
		domain.PlanProYearly:    pro,
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s") or bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	v = strings.TrimSpace(v)
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

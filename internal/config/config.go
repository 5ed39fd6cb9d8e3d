package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server        ServerConfig
	Redis         RedisConfig
	Storage       StorageConfig
	Blob          BlobConfig
	JWT           JWTConfig
	RateLimit     RateLimitConfig
	Deepgram      DeepgramConfig
	Summarizer    SummarizerConfig
	Transcription TranscriptionConfig
	Worker        WorkerConfig
	OIDC          OIDCConfig
	Gateway       GatewayConfig
}

type ServerConfig struct {
	Port        string
	Env         string
	LogLevel    string
	CORSOrigins string
	BodyLimitMB int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig selects where recordings and users are persisted
type StorageConfig struct {
	Driver      string // "redis" or "postgres"
	DatabaseURL string
}

// BlobConfig selects where uploaded audio bytes are kept
type BlobConfig struct {
	Driver    string // "local" or "s3"
	UploadDir string
	S3        S3Config
}

type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UsePathStyle    bool
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	UploadPerHour int
	AuthPerMin    int
}

type DeepgramConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
}

// SummarizerConfig points at an OpenAI-compatible chat completions API
type SummarizerConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type TranscriptionConfig struct {
	Timeout time.Duration
}

type WorkerConfig struct {
	Concurrency   int
	StuckAfter    time.Duration
	SweepInterval string // asynq scheduler cron spec
}

type OIDCConfig struct {
	Issuer   string
	ClientID string
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("DATABASE_URL")
	readSecret("DEEPGRAM_API_KEY")
	readSecret("OPENAI_API_KEY")
	readSecret("S3_ACCESS_KEY_ID")
	readSecret("S3_SECRET_ACCESS_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables
	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.cors_origins", "CORS_ORIGINS")
	_ = v.BindEnv("server.body_limit_mb", "BODY_LIMIT_MB")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("storage.driver", "STORAGE_DRIVER")
	_ = v.BindEnv("storage.database_url", "DATABASE_URL")
	_ = v.BindEnv("blob.driver", "BLOB_DRIVER")
	_ = v.BindEnv("blob.upload_dir", "UPLOAD_DIR")
	_ = v.BindEnv("blob.s3.endpoint", "S3_ENDPOINT")
	_ = v.BindEnv("blob.s3.region", "S3_REGION")
	_ = v.BindEnv("blob.s3.access_key_id", "S3_ACCESS_KEY_ID")
	_ = v.BindEnv("blob.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	_ = v.BindEnv("blob.s3.bucket_name", "S3_BUCKET_NAME")
	_ = v.BindEnv("blob.s3.use_path_style", "S3_USE_PATH_STYLE")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = v.BindEnv("deepgram.api_key", "DEEPGRAM_API_KEY")
	_ = v.BindEnv("deepgram.base_url", "DEEPGRAM_BASE_URL")
	_ = v.BindEnv("deepgram.model", "DEEPGRAM_MODEL")
	_ = v.BindEnv("deepgram.language", "DEEPGRAM_LANGUAGE")
	_ = v.BindEnv("summarizer.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("summarizer.base_url", "OPENAI_BASE_URL")
	_ = v.BindEnv("summarizer.model", "OPENAI_MODEL")
	_ = v.BindEnv("transcription.timeout", "TRANSCRIPTION_TIMEOUT")
	_ = v.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = v.BindEnv("worker.stuck_after", "WORKER_STUCK_AFTER")
	_ = v.BindEnv("worker.sweep_interval", "WORKER_SWEEP_INTERVAL")
	_ = v.BindEnv("oidc.issuer", "OIDC_ISSUER")
	_ = v.BindEnv("oidc.client_id", "OIDC_CLIENT_ID")
	_ = v.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.cors_origins", "http://localhost:5173")
	v.SetDefault("server.body_limit_mb", 50)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("storage.driver", "redis")
	v.SetDefault("blob.driver", "local")
	v.SetDefault("blob.upload_dir", "./uploads")
	v.SetDefault("blob.s3.region", "auto")
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expiration", 168)
	v.SetDefault("ratelimit.upload_per_hour", 30)
	v.SetDefault("ratelimit.auth_per_min", 20)

	// Provider defaults
	v.SetDefault("deepgram.base_url", "https://api.deepgram.com/v1")
	v.SetDefault("deepgram.model", "nova-2")
	v.SetDefault("deepgram.language", "en")
	v.SetDefault("summarizer.base_url", "https://api.openai.com/v1")
	v.SetDefault("summarizer.model", "gpt-4o-mini")

	// Pipeline defaults
	v.SetDefault("transcription.timeout", "5m")
	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("worker.stuck_after", "15m")
	v.SetDefault("worker.sweep_interval", "@every 1m")

	v.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetString("server.port"),
			Env:         v.GetString("server.env"),
			LogLevel:    v.GetString("server.log_level"),
			CORSOrigins: v.GetString("server.cors_origins"),
			BodyLimitMB: v.GetInt("server.body_limit_mb"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			Driver:      strings.ToLower(v.GetString("storage.driver")),
			DatabaseURL: v.GetString("storage.database_url"),
		},
		Blob: BlobConfig{
			Driver:    strings.ToLower(v.GetString("blob.driver")),
			UploadDir: v.GetString("blob.upload_dir"),
			S3: S3Config{
				Endpoint:        v.GetString("blob.s3.endpoint"),
				Region:          v.GetString("blob.s3.region"),
				AccessKeyID:     v.GetString("blob.s3.access_key_id"),
				SecretAccessKey: v.GetString("blob.s3.secret_access_key"),
				BucketName:      v.GetString("blob.s3.bucket_name"),
				UsePathStyle:    v.GetBool("blob.s3.use_path_style"),
			},
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			UploadPerHour: v.GetInt("ratelimit.upload_per_hour"),
			AuthPerMin:    v.GetInt("ratelimit.auth_per_min"),
		},
		Deepgram: DeepgramConfig{
			APIKey:   v.GetString("deepgram.api_key"),
			BaseURL:  v.GetString("deepgram.base_url"),
			Model:    v.GetString("deepgram.model"),
			Language: v.GetString("deepgram.language"),
		},
		Summarizer: SummarizerConfig{
			APIKey:  v.GetString("summarizer.api_key"),
			BaseURL: v.GetString("summarizer.base_url"),
			Model:   v.GetString("summarizer.model"),
		},
		Transcription: TranscriptionConfig{
			Timeout: v.GetDuration("transcription.timeout"),
		},
		Worker: WorkerConfig{
			Concurrency:   v.GetInt("worker.concurrency"),
			StuckAfter:    v.GetDuration("worker.stuck_after"),
			SweepInterval: v.GetString("worker.sweep_interval"),
		},
		OIDC: OIDCConfig{
			Issuer:   v.GetString("oidc.issuer"),
			ClientID: v.GetString("oidc.client_id"),
		},
		Gateway: GatewayConfig{
			Enabled: v.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"stocktake"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"stocktake"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	GeminiAPIKey   string `envconfig:"GEMINI_API_KEY"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`

	// Ingestion tuning
	EmbeddingDimension    int `envconfig:"EMBEDDING_DIMENSION" default:"1536"`
	ChunkMaxBytes         int `envconfig:"CHUNK_MAX_BYTES" default:"2000"`
	BatchSize             int `envconfig:"BATCH_SIZE" default:"4"`
	BatchIntervalSeconds  int `envconfig:"BATCH_INTERVAL_SECONDS" default:"2"`
	EmbedRetryAttempts    int `envconfig:"EMBED_RETRY_ATTEMPTS" default:"3"`
	EmbedRetryDelaySecond int `envconfig:"EMBED_RETRY_DELAY_SECONDS" default:"1"`

	// Single-writer coordination
	LockTTLMinutes           int `envconfig:"LOCK_TTL_MINUTES" default:"5"`
	ProcessingTimeoutMinutes int `envconfig:"PROCESSING_TIMEOUT_MINUTES" default:"30"`

	EnableAPI    bool `envconfig:"ENABLE_API" default:"true"`
	EnableWorker bool `envconfig:"ENABLE_WORKER" default:"true"`

	MigrationPath   string `envconfig:"MIGRATION_PATH" default:"file://migrations"`
	DefaultResource string `envconfig:"DEFAULT_RESOURCE" default:"inventory-data"`

	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath    string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	UploadDir       string `envconfig:"UPLOAD_DIR" default:"./uploads"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may come from the shell; a missing .env is not an error.
	_ = godotenv.Load(".env")

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("%w: EMBEDDING_DIMENSION must be positive", ErrMissingRequired)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: BATCH_SIZE must be positive", ErrMissingRequired)
	}
	return nil
}

func (c *Config) BatchInterval() time.Duration {
	return time.Duration(c.BatchIntervalSeconds) * time.Second
}

func (c *Config) EmbedRetryDelay() time.Duration {
	return time.Duration(c.EmbedRetryDelaySecond) * time.Second
}

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLMinutes) * time.Minute
}

func (c *Config) ProcessingTimeout() time.Duration {
	return time.Duration(c.ProcessingTimeoutMinutes) * time.Minute
}

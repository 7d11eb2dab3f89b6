package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	OCR      OCRConfig      `yaml:"ocr"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Queue    QueueConfig    `yaml:"queue"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // postgres | sqlite
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	AutoMigrate      bool          `yaml:"auto_migrate"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects where original uploads live.
type StorageConfig struct {
	Backend   string      `yaml:"backend"` // fs | minio
	UploadDir string      `yaml:"upload_dir"`
	Minio     MinioConfig `yaml:"minio"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Provider     string        `yaml:"provider"` // local | ocrspace
	APIKey       string        `yaml:"api_key"`
	Endpoint     string        `yaml:"endpoint"`
	Language     string        `yaml:"language"`
	TessdataDir  string        `yaml:"tessdata_dir"`
	MaxPages     int           `yaml:"max_pages"`
	MinTextChars int           `yaml:"min_text_chars"`
	Timeout      time.Duration `yaml:"timeout"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider          string        `yaml:"provider"` // openai | gemini
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Temperature       float32       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxInputChars     int           `yaml:"max_input_chars"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// PipelineConfig holds retry and scoring knobs.
type PipelineConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	StageTimeout   time.Duration `yaml:"stage_timeout"`
	PersistRetries int           `yaml:"persist_retries"`
	GapThreshold   float64       `yaml:"gap_threshold"`
}

// QueueConfig holds dispatcher settings.
type QueueConfig struct {
	Backend        string        `yaml:"backend"` // memory | redis
	Workers        int           `yaml:"workers"`
	Size           int           `yaml:"size"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
	RedisAddr      string        `yaml:"redis_addr"`
	RedisPassword  string        `yaml:"redis_password"`
	RedisDB        int           `yaml:"redis_db"`
	RedisKey       string        `yaml:"redis_key"`
	LeaseTTL       time.Duration `yaml:"lease_ttl"` // redis claim per running contract
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
			AutoMigrate:     true,
		},
		Server: ServerConfig{
			HTTPAddr:        ":8000",
			GRPCAddr:        ":8080",
			MaxUploadBytes:  52428800,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Backend:   "fs",
			UploadDir: "./uploads",
			Minio:     MinioConfig{Bucket: "contracts"},
		},
		OCR: OCRConfig{
			Provider:     "local",
			Language:     "eng",
			MinTextChars: 50,
			Timeout:      60 * time.Second,
		},
		LLM: LLMConfig{
			Provider:          "gemini",
			Model:             "gemini-1.5-flash",
			Temperature:       0.1,
			Timeout:           60 * time.Second,
			MaxInputChars:     30000,
			RequestsPerSecond: 2,
		},
		Pipeline: PipelineConfig{
			MaxRetries:     3,
			BaseDelay:      time.Second,
			MaxDelay:       30 * time.Second,
			StageTimeout:   2 * time.Minute,
			PersistRetries: 3,
			GapThreshold:   0.5,
		},
		Queue: QueueConfig{
			Backend:  "memory",
			Workers:  4,
			Size:     256,
			RedisKey: "contracts:jobs",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig layers defaults, an optional YAML file, .env and the process
// environment, in that order. An empty path skips the YAML file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", "read config file", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "parse config file", err)
		}
	}

	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, NewAppError("CONFIG_ERROR", "load .env", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	d := &c.Database
	d.Driver = getEnv("DB_DRIVER", d.Driver)
	d.DSN = getEnv("DATABASE_URL", getEnv("DB_URL", d.DSN))
	d.MaxConns = getEnvAsInt32("DB_MAX_CONNS", d.MaxConns)
	d.MinConns = getEnvAsInt32("DB_MIN_CONNS", d.MinConns)
	d.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", d.MaxConnLifetime)
	d.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", d.MaxConnIdleTime)
	d.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", d.DialTimeout)
	d.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", d.StatementTimeout)
	d.AutoMigrate = getEnvAsBool("DB_AUTO_MIGRATE", d.AutoMigrate)

	s := &c.Server
	s.HTTPAddr = getEnv("HTTP_ADDR", s.HTTPAddr)
	s.GRPCAddr = getEnv("GRPC_ADDR", s.GRPCAddr)
	s.MaxUploadBytes = getEnvAsInt64("MAX_FILE_SIZE", s.MaxUploadBytes)
	s.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", s.ShutdownTimeout)

	st := &c.Storage
	st.Backend = getEnv("STORAGE_BACKEND", st.Backend)
	st.UploadDir = getEnv("UPLOAD_DIR", st.UploadDir)
	st.Minio.Endpoint = getEnv("MINIO_ENDPOINT", st.Minio.Endpoint)
	st.Minio.AccessKey = getEnv("MINIO_ACCESS_KEY", st.Minio.AccessKey)
	st.Minio.SecretKey = getEnv("MINIO_SECRET_KEY", st.Minio.SecretKey)
	st.Minio.Bucket = getEnv("MINIO_BUCKET", st.Minio.Bucket)
	st.Minio.UseSSL = getEnvAsBool("MINIO_USE_SSL", st.Minio.UseSSL)

	o := &c.OCR
	o.Provider = getEnv("OCR_PROVIDER", o.Provider)
	o.APIKey = getEnv("OCR_SPACE_API_KEY", o.APIKey)
	o.Endpoint = getEnv("OCR_SPACE_ENDPOINT", o.Endpoint)
	o.Language = getEnv("OCR_LANGUAGE", o.Language)
	o.TessdataDir = getEnv("TESSDATA_PREFIX", o.TessdataDir)
	o.MaxPages = getEnvAsInt("OCR_MAX_PAGES", o.MaxPages)
	o.MinTextChars = getEnvAsInt("OCR_MIN_TEXT_CHARS", o.MinTextChars)
	o.Timeout = getEnvAsDuration("OCR_TIMEOUT", o.Timeout)

	l := &c.LLM
	l.Provider = getEnv("LLM_PROVIDER", l.Provider)
	l.Model = getEnv("LLM_MODEL", l.Model)
	switch l.Provider {
	case "openai":
		l.APIKey = getEnv("OPENAI_API_KEY", l.APIKey)
	default:
		l.APIKey = getEnv("GOOGLE_AI_API_KEY", l.APIKey)
	}
	l.BaseURL = getEnv("LLM_BASE_URL", l.BaseURL)
	l.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", l.Temperature)
	l.Timeout = getEnvAsDuration("LLM_TIMEOUT", l.Timeout)
	l.MaxInputChars = getEnvAsInt("LLM_MAX_INPUT_CHARS", l.MaxInputChars)
	l.RequestsPerSecond = getEnvAsFloat64("LLM_REQUESTS_PER_SECOND", l.RequestsPerSecond)

	p := &c.Pipeline
	p.MaxRetries = getEnvAsInt("PIPELINE_MAX_RETRIES", p.MaxRetries)
	p.BaseDelay = getEnvAsDuration("PIPELINE_BASE_DELAY", p.BaseDelay)
	p.MaxDelay = getEnvAsDuration("PIPELINE_MAX_DELAY", p.MaxDelay)
	p.StageTimeout = getEnvAsDuration("PIPELINE_STAGE_TIMEOUT", p.StageTimeout)
	p.PersistRetries = getEnvAsInt("PIPELINE_PERSIST_RETRIES", p.PersistRetries)
	p.GapThreshold = getEnvAsFloat64("SCORING_GAP_THRESHOLD", p.GapThreshold)

	q := &c.Queue
	q.Backend = getEnv("QUEUE_BACKEND", q.Backend)
	q.Workers = getEnvAsInt("QUEUE_WORKERS", q.Workers)
	q.Size = getEnvAsInt("QUEUE_SIZE", q.Size)
	q.ProcessTimeout = getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", q.ProcessTimeout)
	q.RedisAddr = getEnv("REDIS_ADDR", q.RedisAddr)
	q.RedisPassword = getEnv("REDIS_PASSWORD", q.RedisPassword)
	q.RedisDB = getEnvAsInt("REDIS_DB", q.RedisDB)
	q.RedisKey = getEnv("REDIS_QUEUE_KEY", q.RedisKey)
	q.LeaseTTL = getEnvAsDuration("REDIS_LEASE_TTL", q.LeaseTTL)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown DB_DRIVER %q", c.Database.Driver), ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DATABASE_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_FILE_SIZE must be positive", ErrInvalidInput)
	}
	switch c.Storage.Backend {
	case "fs":
		if strings.TrimSpace(c.Storage.UploadDir) == "" {
			return NewAppError("CONFIG_ERROR", "UPLOAD_DIR is required", ErrInvalidInput)
		}
	case "minio":
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "" {
			return NewAppError("CONFIG_ERROR", "MINIO_ENDPOINT and MINIO_BUCKET are required", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown STORAGE_BACKEND %q", c.Storage.Backend), ErrInvalidInput)
	}
	if c.OCR.Provider == "ocrspace" && c.OCR.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OCR_SPACE_API_KEY is required", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown LLM_PROVIDER %q", c.LLM.Provider), ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "an API key for the LLM provider is required", ErrInvalidInput)
	}
	if c.Pipeline.MaxRetries < 0 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_MAX_RETRIES must not be negative", ErrInvalidInput)
	}
	if c.Pipeline.GapThreshold < 0 || c.Pipeline.GapThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "SCORING_GAP_THRESHOLD must be within [0,1]", ErrInvalidInput)
	}
	switch c.Queue.Backend {
	case "memory":
	case "redis":
		if c.Queue.RedisAddr == "" {
			return NewAppError("CONFIG_ERROR", "REDIS_ADDR is required", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown QUEUE_BACKEND %q", c.Queue.Backend), ErrInvalidInput)
	}
	return nil
}

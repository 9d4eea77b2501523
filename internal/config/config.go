package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App      AppConfig      `toml:"app"`
	Log      LogConfig      `toml:"log"`
	Model    ModelConfig    `toml:"model"`
	Decision DecisionConfig `toml:"decision"`
	Upload   UploadConfig   `toml:"upload"`
	Cache    CacheConfig    `toml:"cache"`
	History  HistoryConfig  `toml:"history"`
	Auth     AuthConfig     `toml:"auth"`
	MySQL    MySQLConfig    `toml:"mysql"`
	Redis    RedisConfig    `toml:"redis"`
	RabbitMQ RabbitMQConfig `toml:"rabbitmq"`
}

type AppConfig struct {
	Name           string `toml:"name"`
	Version        string `toml:"version"`
	Env            string `toml:"env"`
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	GinMode        string `toml:"gin_mode"`
	MaxConcurrency int    `toml:"max_concurrency"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

type ModelConfig struct {
	Name              string   `toml:"name"`
	Version           string   `toml:"version"`
	Type              string   `toml:"type"`
	Path              string   `toml:"path"`
	ONNXSharedLibPath string   `toml:"onnx_shared_lib_path"`
	InputSize         int      `toml:"input_size"`
	Classes           []string `toml:"classes"`
}

type DecisionConfig struct {
	Threshold    float64 `toml:"threshold"`
	MinDimension int     `toml:"min_dimension"`
}

type UploadConfig struct {
	MaxBytes int64 `toml:"max_bytes"`
	// MaxPixels caps width*height of a decoded upload.
	MaxPixels int64 `toml:"max_pixels"`
}

type CacheConfig struct {
	// Backend is one of "none", "memory" or "redis".
	Backend    string `toml:"backend"`
	Size       int    `toml:"size"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

type HistoryConfig struct {
	Enabled bool `toml:"enabled"`
	// Driver is "mysql" or "sqlite".
	Driver     string `toml:"driver"`
	SQLitePath string `toml:"sqlite_path"`
	Async      bool   `toml:"async"`
}

type AuthConfig struct {
	JWTSecret            string `toml:"jwt_secret"`
	JWTExpireMinute      int    `toml:"jwt_expire_minute"`
	OperatorUsername     string `toml:"operator_username"`
	OperatorPasswordHash string `toml:"operator_password_hash"`
}

type MySQLConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DB       string `toml:"db"`
	Params   string `toml:"params"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type RabbitMQConfig struct {
	URL             string `toml:"url"`
	PredictionQueue string `toml:"prediction_queue"`
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		c.MySQL.User,
		c.MySQL.Password,
		c.MySQL.Host,
		c.MySQL.Port,
		c.MySQL.DB,
		c.MySQL.Params,
	)
}

// Validate reports the first configuration problem that would make the service
// misbehave at request time.
func (c *Config) Validate() error {
	var errs []error
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("app.port %d out of range", c.App.Port))
	}
	if c.App.MaxConcurrency <= 0 {
		errs = append(errs, errors.New("app.max_concurrency must be positive"))
	}
	if c.Model.InputSize <= 0 {
		errs = append(errs, errors.New("model.input_size must be positive"))
	}
	if len(c.Model.Classes) == 0 {
		errs = append(errs, errors.New("model.classes cannot be empty"))
	}
	for i, name := range c.Model.Classes {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("model.classes[%d] is blank", i))
		}
	}
	if c.Decision.Threshold <= 0 || c.Decision.Threshold > 1 {
		errs = append(errs, fmt.Errorf("decision.threshold %.4f must be in (0, 1]", c.Decision.Threshold))
	}
	if c.Decision.MinDimension < 0 {
		errs = append(errs, errors.New("decision.min_dimension cannot be negative"))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("upload.max_bytes must be positive"))
	}
	if c.Upload.MaxPixels <= 0 {
		errs = append(errs, errors.New("upload.max_pixels must be positive"))
	}
	switch c.Cache.Backend {
	case "none", "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of none, memory, redis", c.Cache.Backend))
	}
	if c.History.Enabled {
		switch c.History.Driver {
		case "mysql", "sqlite":
		default:
			errs = append(errs, fmt.Errorf("history.driver %q is not one of mysql, sqlite", c.History.Driver))
		}
	}
	if c.Auth.OperatorUsername != "" && (c.Auth.OperatorPasswordHash == "" || c.Auth.JWTSecret == "") {
		errs = append(errs, errors.New("auth.operator_username requires operator_password_hash and jwt_secret"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:           "caffmed-api",
			Version:        "1.0.0",
			Env:            "dev",
			Host:           "0.0.0.0",
			Port:           5000,
			GinMode:        "release",
			MaxConcurrency: 4,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Model: ModelConfig{
			Name:      "CaffMed Brain Tumor Classifier",
			Version:   "1.0.0",
			Type:      "CNN",
			Path:      "assets/brain_tumor.onnx",
			InputSize: 244,
			Classes:   []string{"Glioma", "Meningioma", "No Tumor", "Pituitary"},
		},
		Decision: DecisionConfig{
			Threshold:    0.83,
			MinDimension: 200,
		},
		Upload: UploadConfig{
			MaxBytes:  5 << 20,
			MaxPixels: 178_956_970,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			Size:       256,
			TTLSeconds: 600,
		},
		History: HistoryConfig{
			Enabled:    false,
			Driver:     "sqlite",
			SQLitePath: "data/history.db",
		},
		Auth: AuthConfig{
			JWTExpireMinute: 60,
		},
		MySQL: MySQLConfig{
			Host:   "127.0.0.1",
			Port:   3306,
			User:   "root",
			DB:     "caffmed",
			Params: "parseTime=true&loc=Local&charset=utf8mb4",
		},
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
		},
		RabbitMQ: RabbitMQConfig{
			PredictionQueue: "caffmed.prediction.persist",
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Version = getEnv("APP_VERSION", cfg.App.Version)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.Port = getEnvAsInt("PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)
	cfg.App.MaxConcurrency = getEnvAsInt("MAX_CONCURRENCY", cfg.App.MaxConcurrency)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)

	cfg.Model.Path = getEnv("MODEL_PATH", cfg.Model.Path)
	cfg.Model.ONNXSharedLibPath = getEnv("ONNX_LIB", cfg.Model.ONNXSharedLibPath)
	cfg.Model.InputSize = getEnvAsInt("MODEL_INPUT_SIZE", cfg.Model.InputSize)
	cfg.Model.Classes = getEnvAsList("CLASS_NAMES", cfg.Model.Classes)

	cfg.Decision.Threshold = getEnvAsFloat("THRESHOLD", cfg.Decision.Threshold)
	cfg.Decision.MinDimension = getEnvAsInt("MIN_DIMENSION", cfg.Decision.MinDimension)

	cfg.Upload.MaxBytes = getEnvAsInt64("MAX_CONTENT_LENGTH", cfg.Upload.MaxBytes)
	cfg.Upload.MaxPixels = getEnvAsInt64("MAX_IMAGE_PIXELS", cfg.Upload.MaxPixels)

	cfg.Cache.Backend = getEnv("CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.Size = getEnvAsInt("CACHE_SIZE", cfg.Cache.Size)
	cfg.Cache.TTLSeconds = getEnvAsInt("CACHE_TTL_SECONDS", cfg.Cache.TTLSeconds)

	cfg.History.Enabled = getEnvAsBool("HISTORY_ENABLED", cfg.History.Enabled)
	cfg.History.Driver = getEnv("HISTORY_DRIVER", cfg.History.Driver)
	cfg.History.SQLitePath = getEnv("HISTORY_SQLITE_PATH", cfg.History.SQLitePath)
	cfg.History.Async = getEnvAsBool("HISTORY_ASYNC", cfg.History.Async)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTExpireMinute = getEnvAsInt("JWT_EXPIRE_MINUTE", cfg.Auth.JWTExpireMinute)
	cfg.Auth.OperatorUsername = getEnv("OPERATOR_USERNAME", cfg.Auth.OperatorUsername)
	cfg.Auth.OperatorPasswordHash = getEnv("OPERATOR_PASSWORD_HASH", cfg.Auth.OperatorPasswordHash)

	cfg.MySQL.Host = getEnv("MYSQL_HOST", cfg.MySQL.Host)
	cfg.MySQL.Port = getEnvAsInt("MYSQL_PORT", cfg.MySQL.Port)
	cfg.MySQL.User = getEnv("MYSQL_USER", cfg.MySQL.User)
	cfg.MySQL.Password = getEnv("MYSQL_PASSWORD", cfg.MySQL.Password)
	cfg.MySQL.DB = getEnv("MYSQL_DB", cfg.MySQL.DB)
	cfg.MySQL.Params = getEnv("MYSQL_PARAMS", cfg.MySQL.Params)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.PredictionQueue = getEnv("RABBITMQ_PREDICTION_QUEUE", cfg.RabbitMQ.PredictionQueue)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsInt64(key string, fallback int64) int64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvAsList splits a comma separated value, keeping order. Blank entries are
// preserved so Validate can reject them.
func getEnvAsList(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

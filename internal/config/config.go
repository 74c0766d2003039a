package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RFM       RFMConfig       `yaml:"rfm"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Snowflake SnowflakeConfig `yaml:"snowflake"`
	Export    ExportConfig    `yaml:"export"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	// Allow override via environment
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns the host:port pair the server binds to.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// Lifetime returns the configured connection lifetime as a duration
func (c DatabaseConfig) Lifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Minute
}

// RedisConfig holds Redis settings for the per-calc_date run lock.
// Redis is optional; when Addr is empty the run lock falls back to
// PostgreSQL advisory locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

// RFMConfig holds defaults and tuning for the segmentation pipeline
type RFMConfig struct {
	WindowDays     int     `yaml:"window_days"`
	DefaultK       int     `yaml:"default_k"`
	Seed           int64   `yaml:"seed"`
	MaxIterations  int     `yaml:"max_iterations"`
	Epsilon        float64 `yaml:"epsilon"`
	FeatureWorkers int     `yaml:"feature_workers"`
	LockTTLMinutes int     `yaml:"lock_ttl_minutes"`
}

// LockTTL returns the run lock TTL as a duration
func (c RFMConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLMinutes) * time.Minute
}

// IngestionConfig holds CSV ingestion settings
type IngestionConfig struct {
	DataDir string `yaml:"data_dir"`
}

// SnowflakeConfig holds warehouse credentials for pulling orders directly
// from Snowflake instead of CSV files
type SnowflakeConfig struct {
	Account   string `yaml:"account"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Warehouse string `yaml:"warehouse"`
	Table     string `yaml:"table"`
	Enabled   bool   `yaml:"enabled"`
}

// ExportConfig holds S3 upload settings for segment exports
type ExportConfig struct {
	S3Bucket   string `yaml:"s3_bucket"`
	S3Prefix   string `yaml:"s3_prefix"`
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
	Enabled    bool   `yaml:"enabled"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c ExportConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return "" // Use default credential chain (IAM role)
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5
	}
	if cfg.RFM.WindowDays == 0 {
		cfg.RFM.WindowDays = 365
	}
	if cfg.RFM.DefaultK == 0 {
		cfg.RFM.DefaultK = 5
	}
	if cfg.RFM.Seed == 0 {
		cfg.RFM.Seed = 42
	}
	if cfg.RFM.MaxIterations == 0 {
		cfg.RFM.MaxIterations = 100
	}
	if cfg.RFM.Epsilon == 0 {
		cfg.RFM.Epsilon = 1e-6
	}
	if cfg.RFM.FeatureWorkers == 0 {
		cfg.RFM.FeatureWorkers = 8
	}
	if cfg.RFM.LockTTLMinutes == 0 {
		cfg.RFM.LockTTLMinutes = 15
	}
	if cfg.Ingestion.DataDir == "" {
		cfg.Ingestion.DataDir = "./data/input"
	}
	if cfg.Export.AWSRegion == "" {
		cfg.Export.AWSRegion = "us-west-2"
	}
}

// LoadFromEnv loads the config file (when path is non-empty and present)
// and overlays environment variables, loading a .env file first when one
// exists. Environment always wins over the file.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env if present; missing file is not an error
	_ = godotenv.Load()

	var cfg *Config
	if path != "" {
		loaded, err := Load(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		cfg = loaded
	}
	if cfg == nil {
		cfg = &Config{}
		cfg.applyDefaults()
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RFM_WINDOW_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			cfg.RFM.WindowDays = days
		}
	}
	if v := os.Getenv("RFM_DEFAULT_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.RFM.DefaultK = k
		}
	}
	if v := os.Getenv("RFM_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.RFM.Seed = seed
		}
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Ingestion.DataDir = v
	}
	if v := os.Getenv("SNOWFLAKE_ACCOUNT"); v != "" {
		cfg.Snowflake.Account = v
	}
	if v := os.Getenv("SNOWFLAKE_USER"); v != "" {
		cfg.Snowflake.User = v
	}
	if v := os.Getenv("SNOWFLAKE_PASSWORD"); v != "" {
		cfg.Snowflake.Password = v
	}
	if v := os.Getenv("EXPORT_S3_BUCKET"); v != "" {
		cfg.Export.S3Bucket = v
		cfg.Export.Enabled = true
	}

	return cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "AUDIOEDIT"

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `mapstructure:"basic_config" json:"basic_config"`
	Media       MediaConfig               `mapstructure:"media" json:"media"`
	Databases   map[string]DatabaseConfig `mapstructure:"databases" json:"databases"`
	Redis       RedisConfig               `mapstructure:"redis" json:"redis"`
	Log         LogConfig                 `mapstructure:"log" json:"log"`
}

type BasicConfig struct {
	ServerAddress     string `mapstructure:"server_address" json:"server_address"`
	FileBaseDir       string `mapstructure:"file_base_dir" json:"file_base_dir"`
	MaxUploadMB       int64  `mapstructure:"max_upload_mb" json:"max_upload_mb"`
	MinWorkers        int    `mapstructure:"min_workers" json:"min_workers"`
	MaxWorkers        int    `mapstructure:"max_workers" json:"max_workers"`
	QueueSize         int    `mapstructure:"queue_size" json:"queue_size"`
	WorkerIdleTimeout int    `mapstructure:"worker_idle_timeout" json:"worker_idle_timeout"` // minutes
	TempFileTTL       int    `mapstructure:"temp_file_ttl" json:"temp_file_ttl"`             // minutes
	TempCleanInterval int    `mapstructure:"temp_clean_interval" json:"temp_clean_interval"` // minutes
	ResultTTL         int    `mapstructure:"result_ttl" json:"result_ttl"`                   // minutes
}

// MediaConfig controls how the external media tool is located and invoked.
type MediaConfig struct {
	FFmpegPath     string `mapstructure:"ffmpeg_path" json:"ffmpeg_path"`
	FFprobePath    string `mapstructure:"ffprobe_path" json:"ffprobe_path"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" json:"timeout_seconds"`
	// RenderMode is one of auto, simple or crossfade.
	RenderMode     string `mapstructure:"render_mode" json:"render_mode"`
	HostedEnvFlag  string `mapstructure:"hosted_env_flag" json:"hosted_env_flag"`
	HostedHostname string `mapstructure:"hosted_hostname" json:"hosted_hostname"`
}

type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn" json:"dsn"`
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"`
	DBName   string `mapstructure:"db_name" json:"db_name"`
	Params   string `mapstructure:"params" json:"params"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" json:"enabled"`
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"`
	DB       int    `mapstructure:"db" json:"db"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("basic_config.server_address", ":8090")
	v.SetDefault("basic_config.file_base_dir", "./data/work")
	v.SetDefault("basic_config.max_upload_mb", 200)
	v.SetDefault("basic_config.min_workers", 1)
	v.SetDefault("basic_config.max_workers", 2)
	v.SetDefault("basic_config.queue_size", 16)
	v.SetDefault("basic_config.worker_idle_timeout", 5)
	v.SetDefault("basic_config.temp_file_ttl", 60)
	v.SetDefault("basic_config.temp_clean_interval", 15)
	v.SetDefault("basic_config.result_ttl", 30)

	v.SetDefault("media.ffmpeg_path", "ffmpeg")
	v.SetDefault("media.ffprobe_path", "ffprobe")
	v.SetDefault("media.timeout_seconds", 300)
	v.SetDefault("media.render_mode", "auto")
	v.SetDefault("media.hosted_env_flag", "STREAMLIT_SHARING")
	v.SetDefault("media.hosted_hostname", "streamlit.io")

	v.SetDefault("databases.sqlite3.dsn", "./data/audioedit.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing file is not an error; defaults and AUDIOEDIT_* variables apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	baseDir := filepath.Dir(absPath)

	if err := godotenv.Load(filepath.Join(baseDir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(absPath); err == nil {
		v.SetConfigFile(absPath)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.BasicConfig.FileBaseDir = rebase(baseDir, cfg.BasicConfig.FileBaseDir)
	for name, db := range cfg.Databases {
		if isSQLite(name) && db.DSN != "" && !strings.HasPrefix(db.DSN, "file:") && db.DSN != ":memory:" {
			db.DSN = rebase(baseDir, db.DSN)
			cfg.Databases[name] = db
		}
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.BasicConfig.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive")
	}
	if c.BasicConfig.MinWorkers < 0 {
		return fmt.Errorf("min_workers cannot be negative")
	}
	if c.Media.TimeoutSeconds <= 0 {
		return fmt.Errorf("media.timeout_seconds must be positive")
	}
	switch strings.ToLower(c.Media.RenderMode) {
	case "auto", "simple", "crossfade":
	default:
		return fmt.Errorf("media.render_mode must be auto, simple or crossfade, got %q", c.Media.RenderMode)
	}
	return nil
}

func rebase(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

func isSQLite(name string) bool {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return true
	}
	return false
}

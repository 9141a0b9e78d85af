package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	_const "github.com/BBVA/chaos-monkey-engine/const"
	"gopkg.in/yaml.v3"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config 引擎的完整配置
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Plugins   PluginsConfig   `yaml:"plugins"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// DatabaseConfig Plan和Executor的存储
type DatabaseConfig struct {
	// Dialect sqlite或postgres
	Dialect string `yaml:"dialect"`
	// DSN sqlite为文件路径，postgres为连接串
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// SchedulerConfig 调度引擎
type SchedulerConfig struct {
	// Timezone planner解析本地时间使用的时区
	Timezone      string        `yaml:"timezone"`
	MaxConcurrent int64         `yaml:"max_concurrent"`
	MaxWait       time.Duration `yaml:"max_wait"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	RetryCount    int           `yaml:"retry_count"`
}

// PluginsConfig unit描述文件所在目录
type PluginsConfig struct {
	AttacksDir  string `yaml:"attacks_dir"`
	PlannersDir string `yaml:"planners_dir"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type MetricsConfig struct {
	// Addr /metrics的监听地址，为空时不启动
	Addr string `yaml:"addr"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect: DialectSQLite,
			DSN:     "chaosmonkey.db",
		},
		Scheduler: SchedulerConfig{
			Timezone:      "Europe/Madrid",
			MaxConcurrent: _const.DefaultLimiter,
			MaxWait:       _const.DefaultMaxWait,
			RetryInterval: _const.DefaultRetryInterval,
			RetryCount:    _const.DefaultRetryCount,
		},
		Plugins: PluginsConfig{
			AttacksDir:  "attacks",
			PlannersDir: "planners",
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// LoadFromFile 在默认配置的基础上读取YAML文件
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Dialect {
	case DialectSQLite, DialectPostgres:
	default:
		return fmt.Errorf("%w: unsupported database.dialect %q", ErrInvalidConfig, c.Database.Dialect)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("%w: database.dsn is required", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Scheduler.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: scheduler.max_concurrent must be positive", ErrInvalidConfig)
	}
	if c.Scheduler.MaxWait <= 0 {
		return fmt.Errorf("%w: scheduler.max_wait must be positive", ErrInvalidConfig)
	}
	if c.Scheduler.RetryInterval <= 0 {
		return fmt.Errorf("%w: scheduler.retry_interval must be positive", ErrInvalidConfig)
	}
	if c.Scheduler.RetryCount <= 0 {
		return fmt.Errorf("%w: scheduler.retry_count must be positive", ErrInvalidConfig)
	}
	if c.Plugins.AttacksDir == "" || c.Plugins.PlannersDir == "" {
		return fmt.Errorf("%w: plugins.attacks_dir and plugins.planners_dir are required", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: scheduler.timezone: %v", ErrInvalidConfig, err)
	}
	return loc, nil
}

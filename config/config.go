package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "VALUEDB"
	configName = "valuedb"
)

// Config 运行配置. 优先级: 命令行 > 环境变量 (含 .env) > valuedb.yaml > 默认值
type Config struct {
	DB             string  `mapstructure:"db"`
	Concurrency    int     `mapstructure:"concurrency"`
	StaleShareDays int     `mapstructure:"stale_share_days"`
	ShareBasis     string  `mapstructure:"share_basis"`
	DefaultTaxRate float64 `mapstructure:"default_tax_rate"`
	LogLevel       string  `mapstructure:"log_level"`
	LogFormat      string  `mapstructure:"log_format"`
	Listen         string  `mapstructure:"listen"`
}

// New 返回已设置默认值与环境变量绑定的 viper 实例
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("db", "")
	v.SetDefault("concurrency", runtime.NumCPU())
	v.SetDefault("stale_share_days", 100)
	v.SetDefault("share_basis", "diluted")
	v.SetDefault("default_tax_rate", 0.21)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("listen", ":8080")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", configName))
	}
	return v
}

// Load 读取 .env 与配置文件, 并绑定 flags. flags 可为 nil
func Load(v *viper.Viper, flags *pflag.FlagSet) (*Config, error) {
	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindFlags 将 --stale-share-days 这类 flag 绑定到 stale_share_days
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if bindErr := v.BindPFlag(key, f); bindErr != nil {
			err = fmt.Errorf("bind flag %s: %w", f.Name, bindErr)
		}
	})
	return err
}

func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		c.Concurrency = runtime.NumCPU()
	}
	if c.StaleShareDays <= 0 {
		return fmt.Errorf("stale_share_days must be positive, got %d", c.StaleShareDays)
	}
	if c.DefaultTaxRate < 0 || c.DefaultTaxRate > 1 {
		return fmt.Errorf("default_tax_rate must be within [0, 1], got %v", c.DefaultTaxRate)
	}
	switch strings.ToLower(c.ShareBasis) {
	case "", "diluted", "basic":
	default:
		return fmt.Errorf("share_basis must be diluted or basic, got %q", c.ShareBasis)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// RequireDB 需要数据库的命令调用
func (c *Config) RequireDB() error {
	if strings.TrimSpace(c.DB) == "" {
		return fmt.Errorf("database uri is required (--db or %s_DB)", EnvPrefix)
	}
	return nil
}

// SetupLogger 配置全局 zerolog. 诊断日志写到 w (通常是 stderr)
func SetupLogger(c *Config, w io.Writer) error {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if strings.ToLower(c.LogFormat) == "json" {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"})
	}
	return nil
}

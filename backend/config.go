// backend/config.go
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"supaupload/provider"
)

type RateLimitConfig struct {
	Enabled         bool `mapstructure:"Enabled"`
	Requests        int  `mapstructure:"Requests"`
	DurationMinutes int  `mapstructure:"DurationMinutes"`
}
type DBConfig struct {
	Type string `mapstructure:"Type"`
	DSN  string `mapstructure:"DSN"`
}

// ProviderConfig 对应 provider.Config，Options 保持无类型以便原样透传
type ProviderConfig struct {
	APIURL    string         `mapstructure:"APIURL"`
	APIKey    string         `mapstructure:"APIKey"`
	Bucket    string         `mapstructure:"Bucket"`
	Directory string         `mapstructure:"Directory"`
	Options   map[string]any `mapstructure:"Options"`
}
type Config struct {
	ServerPort         string          `mapstructure:"ServerPort"`
	MaxUploadSizeMB    int64           `mapstructure:"MaxUploadSizeMB"`
	CORSAllowedOrigins string          `mapstructure:"CORSAllowedOrigins"`
	RateLimit          RateLimitConfig `mapstructure:"RateLimit"`
	Database           DBConfig        `mapstructure:"Database"`
	Provider           ProviderConfig  `mapstructure:"Provider"`
	ClamdSocket        string          `mapstructure:"ClamdSocket"`
	Initialized        bool            `mapstructure:"Initialized"`
}

var AppConfig *Config

// LoadConfig 读取配置文件；文件不存在时只依赖环境变量和默认值
func LoadConfig(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	// 设置默认值
	v.SetDefault("ServerPort", "8080")
	v.SetDefault("MaxUploadSizeMB", 200)
	v.SetDefault("CORSAllowedOrigins", "")
	v.SetDefault("RateLimit.Enabled", true)
	v.SetDefault("RateLimit.Requests", 30)
	v.SetDefault("RateLimit.DurationMinutes", 10)
	v.SetDefault("Database.Type", "sqlite")
	v.SetDefault("Database.DSN", "data/supaupload.db")
	v.SetDefault("Provider.APIURL", "")
	v.SetDefault("Provider.APIKey", "")
	v.SetDefault("Provider.Bucket", provider.DefaultBucket)
	v.SetDefault("Provider.Directory", "")
	v.SetDefault("ClamdSocket", "")
	v.SetDefault("Initialized", false)

	if err := v.ReadInConfig(); err != nil {
		// SetConfigFile 模式下文件缺失返回的是 *fs.PathError 而不是 ConfigFileNotFoundError
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			slog.Info("配置文件未找到，将完全依赖环境变量和默认值。", "path", path)
		} else {
			return fmt.Errorf("无法读取配置文件 %s: %w", path, err)
		}
	}

	// 绑定环境变量
	v.SetEnvPrefix("SUPAUPLOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return err
	}
	AppConfig = cfg

	slog.Info("配置加载完成",
		slog.String("serverPort", cfg.ServerPort),
		slog.String("dbType", cfg.Database.Type),
		slog.String("bucket", cfg.Provider.Bucket),
		slog.Bool("initialized", cfg.Initialized),
	)
	return nil
}

func (c *Config) GetRateLimitDuration() time.Duration {
	return time.Duration(c.RateLimit.DurationMinutes) * time.Minute
}

// ProviderSettings 把宿主配置转换为 provider.Config
func (c *Config) ProviderSettings() (provider.Config, error) {
	opts, err := provider.DecodeOptions(c.Provider.Options)
	if err != nil {
		return provider.Config{}, err
	}
	return provider.Config{
		APIURL:    c.Provider.APIURL,
		APIKey:    c.Provider.APIKey,
		Bucket:    c.Provider.Bucket,
		Directory: c.Provider.Directory,
		Options:   opts,
	}, nil
}

package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/llms-keep/llms-keep/internal/version"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absOutput, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("无法解析输出目录: %w", err)
	}
	cfg.OutputDir = absOutput

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("OutputDir", "./public")
	v.SetDefault("OutputFile", "llms.txt")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("FetchTimeout", "30s")
	v.SetDefault("CacheTTL", "12h")
	v.SetDefault("MaxRedirects", 5)
	v.SetDefault("ListenPort", 5000)
}

func applyDefaults(cfg *Config) {
	if cfg.OutputFile == "" {
		cfg.OutputFile = "llms.txt"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = version.UserAgent()
	}
	if cfg.FetchTimeout.DurationValue() == 0 {
		cfg.FetchTimeout = Duration(30 * time.Second)
	}
	if cfg.CacheTTL.DurationValue() < 0 {
		// 负值 TTL 语义上等同于“每次都重新校验”。
		cfg.CacheTTL = Duration(0)
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = 5
	}
	if cfg.ListenPort == 0 {
		cfg.ListenPort = 5000
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"12h" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// Config 是 TOML 文件映射的整体结构，单个进程只镜像一个文本资源。
type Config struct {
	// PublicURL 是站点根地址，SourceURL 缺省时由它派生出 <PublicURL>/llms.txt。
	PublicURL string `mapstructure:"PublicURL"`
	// SourceURL 显式指定抓取地址，优先于 PublicURL 派生结果。
	SourceURL string `mapstructure:"SourceURL"`

	OutputDir    string `mapstructure:"OutputDir"`
	OutputFile   string `mapstructure:"OutputFile"`
	MetadataFile string `mapstructure:"MetadataFile"`

	UserAgent    string   `mapstructure:"UserAgent"`
	FetchTimeout Duration `mapstructure:"FetchTimeout"`
	CacheTTL     Duration `mapstructure:"CacheTTL"`
	MaxRedirects int      `mapstructure:"MaxRedirects"`

	// RefreshInterval 与 RefreshAt 互斥：前者为固定间隔模式，
	// 后者为每日定点模式（"HH:MM" 本地时间）。
	RefreshInterval Duration `mapstructure:"RefreshInterval"`
	RefreshAt       string   `mapstructure:"RefreshAt"`

	ListenPort int `mapstructure:"ListenPort"`

	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
}

// ResolvedSourceURL 返回最终抓取地址：优先 SourceURL，否则由 PublicURL
// 去掉末尾斜杠后拼接 /llms.txt。
func (c *Config) ResolvedSourceURL() string {
	if c.SourceURL != "" {
		return c.SourceURL
	}
	base := strings.TrimRight(strings.TrimSpace(c.PublicURL), "/")
	if base == "" {
		return ""
	}
	return base + "/llms.txt"
}

// OutputPath 返回正文落盘的绝对组合路径。
func (c *Config) OutputPath() string {
	return filepath.Join(c.OutputDir, c.OutputFile)
}

// MetadataPath 返回校验元数据 sidecar 文件路径，缺省为 <OutputFile>.meta.json。
func (c *Config) MetadataPath() string {
	name := c.MetadataFile
	if name == "" {
		name = c.OutputFile + ".meta.json"
	}
	return filepath.Join(c.OutputDir, name)
}

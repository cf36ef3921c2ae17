package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

func TestLoadWithDefaults(t *testing.T) {
	cfgPath := writeTempConfig(t, `
PublicURL = "https://example.com"
OutputDir = "./mirror"
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.OutputFile != "llms.txt" {
		t.Fatalf("OutputFile 应该自动填充默认值，得到 %q", cfg.OutputFile)
	}
	if cfg.FetchTimeout.DurationValue() != 30*time.Second {
		t.Fatalf("FetchTimeout 应该自动填充默认值，得到 %v", cfg.FetchTimeout.DurationValue())
	}
	if cfg.CacheTTL.DurationValue() != 12*time.Hour {
		t.Fatalf("CacheTTL 应该自动填充默认值，得到 %v", cfg.CacheTTL.DurationValue())
	}
	if cfg.MaxRedirects != 5 {
		t.Fatalf("MaxRedirects 应该自动填充默认值，得到 %d", cfg.MaxRedirects)
	}
	if cfg.UserAgent == "" {
		t.Fatalf("UserAgent 应默认派生自版本信息")
	}
	if !filepath.IsAbs(cfg.OutputDir) {
		t.Fatalf("OutputDir 应被解析为绝对路径，得到 %q", cfg.OutputDir)
	}
}

func TestLoadParsesDurations(t *testing.T) {
	cfgPath := writeTempConfig(t, `
PublicURL = "https://example.com"
FetchTimeout = "5s"
CacheTTL = 3600
RefreshInterval = "10m"
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.FetchTimeout.DurationValue() != 5*time.Second {
		t.Fatalf("Duration 字符串解析错误: %v", cfg.FetchTimeout.DurationValue())
	}
	if cfg.CacheTTL.DurationValue() != time.Hour {
		t.Fatalf("纯数字秒值解析错误: %v", cfg.CacheTTL.DurationValue())
	}
	if cfg.RefreshInterval.DurationValue() != 10*time.Minute {
		t.Fatalf("RefreshInterval 解析错误: %v", cfg.RefreshInterval.DurationValue())
	}
}

func TestResolvedSourceURLDerivation(t *testing.T) {
	cfg := &Config{PublicURL: "https://example.com/"}
	if got := cfg.ResolvedSourceURL(); got != "https://example.com/llms.txt" {
		t.Fatalf("末尾斜杠应被规范化后拼接，得到 %q", got)
	}

	cfg = &Config{PublicURL: "https://example.com//"}
	if got := cfg.ResolvedSourceURL(); got != "https://example.com/llms.txt" {
		t.Fatalf("多重斜杠也应被规范化，得到 %q", got)
	}

	cfg = &Config{PublicURL: "https://example.com", SourceURL: "https://cdn.example.com/llms.txt"}
	if got := cfg.ResolvedSourceURL(); got != "https://cdn.example.com/llms.txt" {
		t.Fatalf("显式 SourceURL 应优先于派生结果，得到 %q", got)
	}
}

func TestMetadataPathDefault(t *testing.T) {
	cfg := &Config{OutputDir: "/data", OutputFile: "llms.txt"}
	want := filepath.Join("/data", "llms.txt.meta.json")
	if got := cfg.MetadataPath(); got != want {
		t.Fatalf("sidecar 默认路径错误: %q", got)
	}

	cfg.MetadataFile = "state.json"
	want = filepath.Join("/data", "state.json")
	if got := cfg.MetadataPath(); got != want {
		t.Fatalf("显式 MetadataFile 应生效: %q", got)
	}
}

func TestValidateRejectsMissingSource(t *testing.T) {
	cfg := &Config{OutputDir: "./x", OutputFile: "llms.txt", FetchTimeout: Duration(time.Second), ListenPort: 5000}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("缺少 PublicURL/SourceURL 应当报错")
	}
}

func TestValidateRejectsBadURL(t *testing.T) {
	cfg := validConfig()
	cfg.SourceURL = "ftp://example.com/llms.txt"
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("非 http/https URL 应当报错")
	}
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "SourceURL" {
		t.Fatalf("错误应定位到 SourceURL 字段，得到 %v", err)
	}
}

func TestValidateRejectsExclusiveSchedules(t *testing.T) {
	cfg := validConfig()
	cfg.RefreshInterval = Duration(time.Minute)
	cfg.RefreshAt = "02:00"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("RefreshInterval 与 RefreshAt 不能同时配置")
	}
}

func TestValidateRejectsPathSeparators(t *testing.T) {
	cfg := validConfig()
	cfg.OutputFile = "../escape.txt"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("OutputFile 携带路径分隔符应当报错")
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestParseWallClock(t *testing.T) {
	hour, minute, err := ParseWallClock("02:30")
	if err != nil || hour != 2 || minute != 30 {
		t.Fatalf("解析 02:30 失败: %d:%d %v", hour, minute, err)
	}

	for _, bad := range []string{"", "0230", "24:00", "12:60", "aa:bb"} {
		if _, _, err := ParseWallClock(bad); err == nil {
			t.Fatalf("%q 应当解析失败", bad)
		}
	}
}

func validConfig() *Config {
	return &Config{
		PublicURL:    "https://example.com",
		OutputDir:    "./mirror",
		OutputFile:   "llms.txt",
		FetchTimeout: Duration(30 * time.Second),
		ListenPort:   5000,
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("配置文件缺失应返回错误")
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("90s")); err != nil || d.DurationValue() != 90*time.Second {
		t.Fatalf("解析 90s 失败: %v %v", d.DurationValue(), err)
	}
	if err := d.UnmarshalText([]byte("120")); err != nil || d.DurationValue() != 2*time.Minute {
		t.Fatalf("解析纯数字失败: %v %v", d.DurationValue(), err)
	}
	if err := d.UnmarshalText([]byte("abc")); err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Fatalf("非法值应当报错，得到 %v", err)
	}
}

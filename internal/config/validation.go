package config

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	source := c.ResolvedSourceURL()
	if source == "" {
		return newFieldError("PublicURL", "PublicURL 与 SourceURL 至少配置一个")
	}
	if err := validateAbsoluteURL(source); err != nil {
		if c.SourceURL != "" {
			return newFieldError("SourceURL", err.Error())
		}
		return newFieldError("PublicURL", err.Error())
	}

	if c.OutputDir == "" {
		return newFieldError("OutputDir", "不能为空")
	}
	if strings.ContainsAny(c.OutputFile, `/\`) {
		return newFieldError("OutputFile", "只允许文件名，不允许路径分隔符")
	}
	if c.MetadataFile != "" && strings.ContainsAny(c.MetadataFile, `/\`) {
		return newFieldError("MetadataFile", "只允许文件名，不允许路径分隔符")
	}

	if c.FetchTimeout.DurationValue() <= 0 {
		return newFieldError("FetchTimeout", "必须大于 0")
	}
	if c.MaxRedirects < 0 {
		return newFieldError("MaxRedirects", "不能为负数")
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}

	if c.RefreshInterval.DurationValue() < 0 {
		return newFieldError("RefreshInterval", "不能为负数")
	}
	if c.RefreshAt != "" {
		if c.RefreshInterval.DurationValue() > 0 {
			return newFieldError("RefreshAt", "与 RefreshInterval 互斥，只能配置其一")
		}
		if _, _, err := ParseWallClock(c.RefreshAt); err != nil {
			return newFieldError("RefreshAt", err.Error())
		}
	}

	return nil
}

// validateAbsoluteURL 要求绝对、带 http(s) scheme 且含主机名的 URL。
func validateAbsoluteURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return errors.New("不是合法的 URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("仅支持 http/https")
	}
	if parsed.Host == "" {
		return errors.New("缺少主机名")
	}
	return nil
}

// ParseWallClock 解析 "HH:MM" 形式的每日定点时间，返回小时与分钟。
func ParseWallClock(raw string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, 0, errors.New("必须为 HH:MM 格式")
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, errors.New("小时必须在 0-23")
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, errors.New("分钟必须在 0-59")
	}
	return hour, minute, nil
}

package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RefreshFields 提供抓取来源/落盘路径/结论字段，供刷新日志复用。
func RefreshFields(sourceURL, outputPath, outcome string, elapsedMs int64) logrus.Fields {
	return logrus.Fields{
		"action":      "refresh",
		"source_url":  sourceURL,
		"output_path": outputPath,
		"outcome":     outcome,
		"elapsed_ms":  elapsedMs,
	}
}

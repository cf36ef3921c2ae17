package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/llms-keep/llms-keep/internal/config"
	"github.com/llms-keep/llms-keep/internal/freshness"
)

const contextKeyRequestID = "_llmskeep_request_id"

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Controller *freshness.Controller
	Config     *config.Config
}

// NewApp builds a Fiber application serving the mirrored file with
// ensure-on-request semantics and structured error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Controller == nil {
		return nil, errors.New("freshness controller is required")
	}
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/"+opts.Config.OutputFile, serveMirror(opts))

	return app, nil
}

// requestIDMiddleware 负责生成请求 ID，并回写到响应头便于排查。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID 读取中间件写入的请求 ID，缺失时返回空串。
func RequestID(c fiber.Ctx) string {
	if value, ok := c.Locals(contextKeyRequestID).(string); ok {
		return value
	}
	return ""
}

// serveMirror 先确保副本新鲜，再流式返回本地文件；刷新彻底失败时返回 502。
func serveMirror(opts AppOptions) fiber.Handler {
	fetchCfg := freshness.FromAppConfig(opts.Config)

	return func(c fiber.Ctx) error {
		started := time.Now()
		requestID := RequestID(c)

		ctx := c.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		outcome, err := opts.Controller.EnsureFresh(ctx, fetchCfg)
		if err != nil {
			logServe(opts.Logger, fetchCfg.SourceURL, requestID, string(outcome.Kind), started, err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "refresh_failed"})
		}

		c.Set("X-Llms-Keep-Outcome", string(outcome.Kind))
		c.Set("Content-Type", "text/plain; charset=utf-8")

		if err := c.SendFile(outcome.Path); err != nil {
			logServe(opts.Logger, fetchCfg.SourceURL, requestID, string(outcome.Kind), started, err)
			return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("read mirror failed: %v", err))
		}

		logServe(opts.Logger, fetchCfg.SourceURL, requestID, string(outcome.Kind), started, nil)
		return nil
	}
}

func logServe(logger *logrus.Logger, sourceURL, requestID, outcome string, started time.Time, err error) {
	fields := logrus.Fields{
		"action":     "serve",
		"source_url": sourceURL,
		"outcome":    outcome,
		"elapsed_ms": time.Since(started).Milliseconds(),
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		logger.WithFields(fields).Error("serve_failed")
		return
	}
	logger.WithFields(fields).Info("serve_complete")
}

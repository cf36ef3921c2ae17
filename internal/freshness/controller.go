package freshness

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/llms-keep/llms-keep/internal/cachestore"
	"github.com/llms-keep/llms-keep/internal/config"
	"github.com/llms-keep/llms-keep/internal/fetcher"
	"github.com/llms-keep/llms-keep/internal/logging"
)

// FetchConfig 是一次刷新所需的全部参数，逐调用传入、不做保存。
type FetchConfig struct {
	SourceURL    string
	OutputPath   string
	MetadataPath string
	UserAgent    string
	Timeout      time.Duration
	TTL          time.Duration
	MaxRedirects int
}

// FromAppConfig 将应用配置映射为刷新参数，供 CLI 与 HTTP 入口复用。
func FromAppConfig(cfg *config.Config) FetchConfig {
	return FetchConfig{
		SourceURL:    cfg.ResolvedSourceURL(),
		OutputPath:   cfg.OutputPath(),
		MetadataPath: cfg.MetadataPath(),
		UserAgent:    cfg.UserAgent,
		Timeout:      cfg.FetchTimeout.DurationValue(),
		TTL:          cfg.CacheTTL.DurationValue(),
		MaxRedirects: cfg.MaxRedirects,
	}
}

// Controller 编排 “TTL 判断 → 条件回源 → 落盘” 的全流程。
type Controller struct {
	fetcher *fetcher.Fetcher
	store   cachestore.Store
	logger  *logrus.Logger
	now     func() time.Time
	group   singleflight.Group
}

// NewController 注入 fetcher/store/logger 构建决策核心，时钟默认 time.Now。
func NewController(f *fetcher.Fetcher, store cachestore.Store, logger *logrus.Logger) *Controller {
	if logger == nil {
		logger = logrus.New()
	}
	return &Controller{
		fetcher: f,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// LocalPath 返回配置解析出的本地文件路径，调用方无需自行拼接。
func (c *Controller) LocalPath(cfg FetchConfig) string {
	return cfg.OutputPath
}

// EnsureFresh 保证本地副本满足 TTL 约束。同一 OutputPath 的并发调用被
// 合并为一次真实刷新，等待者共享同一个结论。
//
// 返回的 error 仅在 OutcomeFailed（无可用副本且抓取失败，或成功抓取后
// 落盘失败）时非空；ServedStale 不算错误，底层原因在 Outcome.StaleReason。
func (c *Controller) EnsureFresh(ctx context.Context, cfg FetchConfig) (Outcome, error) {
	v, err, _ := c.group.Do(cfg.OutputPath, func() (interface{}, error) {
		return c.ensureFresh(ctx, cfg)
	})
	outcome, ok := v.(Outcome)
	if !ok {
		outcome = Outcome{Kind: OutcomeFailed, Path: cfg.OutputPath}
	}
	return outcome, err
}

func (c *Controller) ensureFresh(ctx context.Context, cfg FetchConfig) (Outcome, error) {
	started := c.now()

	meta, hasMeta := c.store.ReadMetadata(cfg.MetadataPath)
	exists := c.store.ContentExists(cfg.OutputPath)

	ttl := cfg.TTL
	if ttl < 0 {
		ttl = 0
	}

	if exists && hasMeta && ttl > 0 {
		age := started.Sub(meta.LastFetchedAt())
		if age >= 0 && age < ttl {
			return c.conclude(cfg, started, Outcome{Kind: OutcomeFresh, Path: cfg.OutputPath}), nil
		}
	}

	opts := fetcher.Options{
		UserAgent:    cfg.UserAgent,
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
	}
	// 只有正文仍在盘上时才发送校验令牌，否则 304 将无正文可用。
	if hasMeta && exists {
		opts.Validators = fetcher.Validators{
			ETag:         meta.ETagValue(),
			LastModified: meta.LastModifiedValue(),
		}
	}

	result, err := c.fetcher.Fetch(ctx, cfg.SourceURL, opts)
	if err != nil {
		if exists {
			c.logger.WithFields(logging.RefreshFields(
				cfg.SourceURL, cfg.OutputPath, string(OutcomeServedStale), elapsedMs(started, c.now()),
			)).WithError(err).Warn("refresh_degraded")
			return Outcome{Kind: OutcomeServedStale, Path: cfg.OutputPath, StaleReason: err}, nil
		}
		c.logger.WithFields(logging.RefreshFields(
			cfg.SourceURL, cfg.OutputPath, string(OutcomeFailed), elapsedMs(started, c.now()),
		)).WithError(err).Error("refresh_failed")
		return Outcome{Kind: OutcomeFailed, Path: cfg.OutputPath}, err
	}

	if result.NotModified {
		if !exists {
			err := fmt.Errorf("upstream answered 304 but no local copy exists at %s", cfg.OutputPath)
			return Outcome{Kind: OutcomeFailed, Path: cfg.OutputPath}, err
		}
		touched := meta.Touched(c.now())
		if err := c.store.WriteMetadata(cfg.OutputPath, cfg.MetadataPath, touched); err != nil {
			return Outcome{Kind: OutcomeFailed, Path: cfg.OutputPath}, err
		}
		return c.conclude(cfg, started, Outcome{Kind: OutcomeRevalidated, Path: cfg.OutputPath}), nil
	}

	newMeta := cachestore.NewMetadata(result.Validators.ETag, result.Validators.LastModified, c.now())
	if err := c.store.WriteContentAndMetadata(cfg.OutputPath, cfg.MetadataPath, result.Body, newMeta); err != nil {
		return Outcome{Kind: OutcomeFailed, Path: cfg.OutputPath}, err
	}
	return c.conclude(cfg, started, Outcome{Kind: OutcomeUpdated, Path: cfg.OutputPath}), nil
}

// RefreshNow 无条件抓取并落盘，不携带校验令牌也不看 TTL，供一次性 CLI 使用。
func (c *Controller) RefreshNow(ctx context.Context, cfg FetchConfig) (Outcome, error) {
	v, err, _ := c.group.Do(cfg.OutputPath, func() (interface{}, error) {
		return c.refreshNow(ctx, cfg)
	})
	outcome, ok := v.(Outcome)
	if !ok {
		outcome = Outcome{Kind: OutcomeFailed, Path: cfg.OutputPath}
	}
	return outcome, err
}

func (c *Controller) refreshNow(ctx context.Context, cfg FetchConfig) (Outcome, error) {
	started := c.now()

	result, err := c.fetcher.Fetch(ctx, cfg.SourceURL, fetcher.Options{
		UserAgent:    cfg.UserAgent,
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
	})
	if err != nil {
		c.logger.WithFields(logging.RefreshFields(
			cfg.SourceURL, cfg.OutputPath, string(OutcomeFailed), elapsedMs(started, c.now()),
		)).WithError(err).Error("refresh_failed")
		return Outcome{Kind: OutcomeFailed, Path: cfg.OutputPath}, err
	}

	meta := cachestore.NewMetadata(result.Validators.ETag, result.Validators.LastModified, c.now())
	if err := c.store.WriteContentAndMetadata(cfg.OutputPath, cfg.MetadataPath, result.Body, meta); err != nil {
		return Outcome{Kind: OutcomeFailed, Path: cfg.OutputPath}, err
	}
	return c.conclude(cfg, started, Outcome{Kind: OutcomeUpdated, Path: cfg.OutputPath}), nil
}

func (c *Controller) conclude(cfg FetchConfig, started time.Time, outcome Outcome) Outcome {
	c.logger.WithFields(logging.RefreshFields(
		cfg.SourceURL, cfg.OutputPath, string(outcome.Kind), elapsedMs(started, c.now()),
	)).Info("refresh_complete")
	return outcome
}

func elapsedMs(started, ended time.Time) int64 {
	return ended.Sub(started).Milliseconds()
}

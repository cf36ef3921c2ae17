package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/llms-keep/llms-keep/internal/cachestore"
	"github.com/llms-keep/llms-keep/internal/config"
	"github.com/llms-keep/llms-keep/internal/fetcher"
	"github.com/llms-keep/llms-keep/internal/freshness"
	"github.com/llms-keep/llms-keep/internal/logging"
	"github.com/llms-keep/llms-keep/internal/scheduler"
	"github.com/llms-keep/llms-keep/internal/server"
	"github.com/llms-keep/llms-keep/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	force       bool
	serve       bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["source_url"] = cfg.ResolvedSourceURL()
		fields["output_path"] = cfg.OutputPath()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动遵循“配置 → 磁盘缓存 → fetcher → 决策核心”顺序，
	// 所有入口（CLI/调度器/HTTP）共享同一个 Controller 实例。
	store := cachestore.NewStore()
	controller := freshness.NewController(fetcher.New(nil), store, logger)
	fetchCfg := freshness.FromAppConfig(cfg)

	if opts.serve {
		return runServe(cfg, logger, controller, fetchCfg)
	}

	ctx := context.Background()
	if opts.force {
		_, err = controller.RefreshNow(ctx, fetchCfg)
	} else {
		_, err = controller.EnsureFresh(ctx, fetchCfg)
	}
	if err != nil {
		fmt.Fprintf(stdErr, "刷新失败: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdOut, controller.LocalPath(fetchCfg))
	return 0
}

// runServe 启动 HTTP 服务与可选的后台调度器，直至收到停止信号。
func runServe(
	cfg *config.Config,
	logger *logrus.Logger,
	controller *freshness.Controller,
	fetchCfg freshness.FetchConfig,
) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runner, err := buildRunner(cfg, controller, fetchCfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化调度器失败: %v\n", err)
		return 1
	}
	if runner != nil {
		runner.Start(ctx)
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Controller: controller,
		Config:     cfg,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务初始化失败: %v\n", err)
		return 1
	}

	go func() {
		<-ctx.Done()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	fields := logging.BaseFields("startup", "")
	fields["source_url"] = cfg.ResolvedSourceURL()
	fields["listen_port"] = cfg.ListenPort
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("服务启动")

	if err := app.Listen(fmt.Sprintf(":%d", cfg.ListenPort)); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}

	if runner != nil {
		runner.Stop()
		<-runner.Done()
	}
	return 0
}

// buildRunner 根据配置选择调度模式；两者都未配置时仅依赖 ensure-on-request。
func buildRunner(
	cfg *config.Config,
	controller *freshness.Controller,
	fetchCfg freshness.FetchConfig,
	logger *logrus.Logger,
) (*scheduler.Runner, error) {
	job := scheduler.Job(func(ctx context.Context) {
		// 失败已由 Controller 记录日志；调度循环继续运行。
		_, _ = controller.EnsureFresh(ctx, fetchCfg)
	})

	if cfg.RefreshAt != "" {
		hour, minute, err := config.ParseWallClock(cfg.RefreshAt)
		if err != nil {
			return nil, err
		}
		return scheduler.NewDailyRunner(job, hour, minute, logger)
	}
	if interval := cfg.RefreshInterval.DurationValue(); interval > 0 {
		return scheduler.NewIntervalRunner(job, interval, logger)
	}
	return nil, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("llms-keep", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		force      bool
		serve      bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 LLMS_KEEP_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.BoolVar(&force, "force", false, "忽略 TTL 与校验令牌，无条件抓取一次")
	fs.BoolVar(&serve, "serve", false, "启动 HTTP 服务与后台刷新调度器")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("LLMS_KEEP_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		force:       force,
		serve:       serve,
	}, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/any-hub/nx-cache-server/internal/access"
	"github.com/any-hub/nx-cache-server/internal/cache"
	"github.com/any-hub/nx-cache-server/internal/config"
	"github.com/any-hub/nx-cache-server/internal/logging"
	"github.com/any-hub/nx-cache-server/internal/server"
	"github.com/any-hub/nx-cache-server/internal/server/routes"
	"github.com/any-hub/nx-cache-server/internal/token"
	"github.com/any-hub/nx-cache-server/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, opts)
	stop()
	os.Exit(code)
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
// ctx 被取消时开始优雅关闭。
func run(ctx context.Context, opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["storage"] = cfg.StorageSummary()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序为“配置 → 缓存后端 → 令牌库 → 控制器 → Fiber server”，
	// 后端与令牌库在整个进程内只构建一次。
	backend, err := cache.NewBackend(cfg.Storage)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存后端失败: %v\n", err)
		return 1
	}

	tokens, err := token.Open(ctx, token.Options{Path: cfg.TokensDBPath, Logger: logger})
	if err != nil {
		fmt.Fprintf(stdErr, "打开令牌库失败: %v\n", err)
		return 1
	}
	defer func() {
		if err := tokens.Close(); err != nil {
			logger.WithField("action", "shutdown").WithError(err).Warn("关闭令牌库失败")
		}
	}()

	app, err := server.NewApp(server.AppOptions{
		Logger:   logger,
		Resolver: access.Resolver{AdminToken: cfg.AdminToken, Tokens: tokens},
	})
	if err != nil {
		fmt.Fprintf(stdErr, "构建 HTTP 服务失败: %v\n", err)
		return 1
	}
	routes.Register(app, routes.Controllers{
		Cache:  access.NewCacheController(backend, logger),
		Tokens: access.NewTokenController(tokens, logger),
	})

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.ListenPort
	fields["storage"] = cfg.StorageSummary()
	fields["tokens_db"] = cfg.TokensDBPath
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := serve(ctx, app, cfg, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务运行失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
// 未指定配置文件时只从环境变量读取配置。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := pflag.NewFlagSet("nx-cache-server", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（可被 NX_CACHE_CONFIG 指定，留空时只读取环境变量）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fs.SetOutput(stdOut)
			fs.PrintDefaults()
			return cliOptions{}, err
		}
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("NX_CACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// serve 监听端口直到 ctx 被取消或监听失败，随后在 ShutdownTimeout 内等待进行中的请求结束。
func serve(ctx context.Context, app *fiber.App, cfg *config.Config, logger *logrus.Logger) error {
	addr := fmt.Sprintf(":%d", cfg.ListenPort)
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.WithFields(logrus.Fields{
			"action": "listen",
			"port":   cfg.ListenPort,
		}).Info("Fiber 服务启动")
		return app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.WithField("action", "shutdown").Info("开始关闭 HTTP 服务")
		return app.ShutdownWithTimeout(cfg.ShutdownTimeout.DurationValue())
	})

	return group.Wait()
}

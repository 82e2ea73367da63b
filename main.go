package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"git.fiblab.net/sim/walkshed/walkgraph"
)

const version = "0.1.0"

var LOG_LEVELS = map[string]logrus.Level{
	"debug": logrus.DebugLevel,
	"info":  logrus.InfoLevel,
	"warn":  logrus.WarnLevel,
	"error": logrus.ErrorLevel,
	"fatal": logrus.FatalLevel,
	"panic": logrus.PanicLevel,
}

// 每个命令需要独立的flag实例
func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to config file",
			Value:   "config.yaml",
			Sources: cli.EnvVars("WALKSHED_CONFIG_FILE"),
		},
		&cli.StringFlag{
			Name:    "map",
			Usage:   "map file or database and collection [format: {fspath} or {db}.{col}]",
			Sources: cli.EnvVars("MAP_PATH"),
		},
		&cli.StringFlag{
			Name:    "mongo-uri",
			Usage:   "mongo db uri",
			Sources: cli.EnvVars("MONGO_URI"),
		},
		&cli.StringFlag{
			Name:  "cache",
			Usage: "input cache dir path (empty means disable cache)",
		},
		&cli.StringFlag{
			Name:  "listen",
			Usage: "connect/HTTP listening address",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "log level [debug, info, warn, error, fatal, panic]",
		},
		// 性能测试
		&cli.StringFlag{
			Name:  "pprof",
			Usage: "pprof listening address (empty means disable pprof)",
		},
		&cli.BoolFlag{
			Name:  "benchmark",
			Usage: "benchmark mode",
		},
		&cli.BoolFlag{
			Name:  "watch",
			Usage: "rebuild the walk graph when the map file changes",
		},
	}
}

// configure 读取配置文件，再用命令行参数覆盖
func configure(cmd *cli.Command) (*Config, error) {
	cfg := NewDefaultConfig()
	configPath := cmd.String("config")
	if cmd.IsSet("config") {
		if err := loadConfig(configPath, cfg); err != nil {
			return nil, err
		}
	} else if err := loadConfigIfExists(configPath, cfg); err != nil {
		return nil, err
	}
	overrides := map[string]*string{
		"map":       &cfg.Map,
		"mongo-uri": &cfg.MongoURI,
		"cache":     &cfg.Cache,
		"listen":    &cfg.Listen,
		"log-level": &cfg.LogLevel,
		"pprof":     &cfg.Pprof,
	}
	for name, target := range overrides {
		if cmd.IsSet(name) {
			*target = cmd.String(name)
		}
	}
	if cmd.IsSet("benchmark") {
		cfg.Benchmark.Enable = cmd.Bool("benchmark")
	}
	if cmd.IsSet("watch") {
		cfg.Watch = cmd.Bool("watch")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func setupLogging(level string) {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	logrus.SetLevel(LOG_LEVELS[level])
}

func newServer(ctx context.Context, cfg *Config) (*WalkshedServer, error) {
	mapPath, err := NewPath(cfg.Map)
	if err != nil {
		return nil, fmt.Errorf("invalid map path: %w", err)
	}
	source := NewMapSource(mapPath, cfg.MongoURI, cfg.Cache)
	return NewWalkshedServer(ctx, source, walkgraph.WithWalkSpeed(cfg.WalkSpeed))
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := configure(cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)

	// 启动步行可达性服务
	server, err := newServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer server.Close()

	if cfg.Pprof != "" {
		// 启动pprof
		startHTTPDebugger(cfg.Pprof)
	}

	if cfg.Benchmark.Enable {
		// 性能测试
		runBenchmark(ctx, server, cfg.Benchmark)
		return nil
	}
	return serve(ctx, cfg, server)
}

func serve(ctx context.Context, cfg *Config, server *WalkshedServer) error {
	// 使用HTTP/2 w.o. TLS
	s := &http.Server{
		Addr:    cfg.Listen,
		Handler: h2c.NewHandler(NewRouter(server), &http2.Server{}),
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Infof("server listening at %v", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})
	if cfg.Watch {
		if p := server.source.Path(); p.IsFile() {
			eg.Go(func() error {
				return watchMap(ctx, server, p.File)
			})
		} else {
			log.Warnf("watch is only supported for map files, ignored for %s", p)
		}
	}
	// 优雅退出
	eg.Go(func() error {
		signalCh := make(chan os.Signal, 1)
		//监听指定信号 ctrl+c kill
		signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-signalCh:
			log.Info("stopping...")
			go func() {
				<-signalCh
				os.Exit(1) // 强制结束
			}()
		case <-ctx.Done():
		}
		// 暂停接收新请求
		server.Suspend()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Errorf("server shutdown error: %v", err)
		}
		// 唤醒被暂停的请求，使其在关闭后返回
		server.Close()
		server.Resume()
		// 结束其他后台任务
		stop()
		return nil
	})
	err := eg.Wait()
	log.Info("walkshed closes")
	return err
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := configure(cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)
	// stdout用于MCP协议
	logrus.SetOutput(os.Stderr)
	server, err := newServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer server.Close()
	return NewMCPServer(server, version).ServeStdio()
}

func runImport(ctx context.Context, cmd *cli.Command) error {
	setupLogging("info")
	file := cmd.String("file")
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	// 上传前确认数据可以被解析
	if _, err := walkgraph.New(ctx, data); err != nil {
		return err
	}
	target, err := NewPath(cmd.String("to"))
	if err != nil || target == nil {
		return fmt.Errorf("invalid upload target %q: %v", cmd.String("to"), err)
	}
	return NewMapSource(target, cmd.String("mongo-uri"), "").Upload(ctx, data)
}

func main() {
	cmd := &cli.Command{
		Name:    "walkshed",
		Usage:   "Walking reachability and routing service over OpenStreetMap data",
		Version: version,
		Flags:   serveFlags(),
		Action:  run,
		Commands: []*cli.Command{
			{
				Name:   "serve-mcp",
				Usage:  "serve the query tools over MCP stdio",
				Flags:  serveFlags(),
				Action: runMCP,
			},
			{
				Name:  "import",
				Usage: "upload a map file to mongo as {db}.{col}",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Usage: "OSM XML or PBF file", Required: true},
					&cli.StringFlag{Name: "to", Usage: "target {db}.{col}", Required: true},
					&cli.StringFlag{Name: "mongo-uri", Usage: "mongo db uri", Sources: cli.EnvVars("MONGO_URI"), Required: true},
				},
				Action: runImport,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logrus.Fatalf("walkshed error: %v", err)
	}
}

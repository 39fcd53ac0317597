// teamflow service entry point.
//
// Usage:
//
//	teamflow serve                      # start the service
//	teamflow serve --config path.yaml   # with a config file
//	teamflow version                    # show version info
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/teamflow-ai/teamflow/capability"
	"github.com/teamflow-ai/teamflow/config"
	"github.com/teamflow-ai/teamflow/contextstore"
	"github.com/teamflow-ai/teamflow/coordinator"
	"github.com/teamflow-ai/teamflow/formation"
	"github.com/teamflow-ai/teamflow/internal/cache"
	"github.com/teamflow-ai/teamflow/internal/metrics"
	"github.com/teamflow-ai/teamflow/internal/pool"
	"github.com/teamflow-ai/teamflow/negotiation"
	"github.com/teamflow-ai/teamflow/registry"
	"github.com/teamflow-ai/teamflow/store"
	"github.com/teamflow-ai/teamflow/store/gormstore"
	"github.com/teamflow-ai/teamflow/types"
)

// Build-time injected.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting teamflow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persistence: GORM/sqlite when a DSN is configured, memory otherwise.
	stores, err := openStores(cfg.Database, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}

	// Cache: redis when an address is configured, in-process otherwise.
	sharedCache, err := openCache(cfg.Redis, logger)
	if err != nil {
		logger.Fatal("open cache", zap.Error(err))
	}

	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(promRegistry)

	workers := pool.New(pool.Config{
		CoreWorkers: cfg.Pool.CoreWorkers,
		MaxWorkers:  cfg.Pool.MaxWorkers,
		QueueSize:   cfg.Pool.QueueSize,
		IdleTimeout: cfg.Pool.IdleTimeout,
		PanicHandler: func(v any) {
			logger.Error("worker panic", zap.Any("panic", v))
		},
	})
	defer workers.Close()

	svc := newService(cfg, stores, sharedCache, workers, collector, logger)

	// Auto-assignment: unassigned tasks get teams formed in the
	// background until an API surface drives formation directly.
	go svc.runDispatcher(ctx, 10*time.Second)

	// Hot reload keeps the config file authoritative for the tunables;
	// engines snapshot their config at construction, so reloads take
	// effect on restart and are logged until then.
	if *configPath != "" {
		reloader := config.NewReloader(*configPath, cfg, 5*time.Second, logger)
		reloader.OnReload(func(_, next *config.Config) {
			logger.Info("config file changed, restart to apply engine tunables",
				zap.Float64("capability_match_threshold", next.Formation.CapabilityMatchThreshold))
		})
		go reloader.Start(ctx)
	}

	metricsServer := serveMetrics(cfg.Server, promRegistry, logger)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}
	logger.Info("teamflow stopped")
}

// service wires the collaboration engines over shared infrastructure. The
// engines are the process's API surface; the dispatcher is the only
// built-in driver.
type service struct {
	stores       *serviceStores
	agents       *registry.Registry
	capabilities *capability.Registry
	formation   *formation.Engine
	negotiation *negotiation.Engine
	contexts    *contextstore.Service
	coordinator *coordinator.Coordinator
	logger      *zap.Logger
}

func newService(cfg *config.Config, stores *serviceStores, sharedCache cache.Cache, workers *pool.WorkerPool, collector *metrics.Collector, logger *zap.Logger) *service {
	agents := registry.New(stores.agents, sharedCache, logger)
	formationEngine := formation.NewEngine(agents, stores.teams, stores.tasks, formation.Config{
		CapabilityMatchThreshold: cfg.Formation.CapabilityMatchThreshold,
		PerformanceWeight:        cfg.Formation.PerformanceWeight,
		SpecializationWeight:     cfg.Formation.SpecializationWeight,
	}, workers, collector, logger)
	contexts := contextstore.NewService(stores.contexts, collector, logger)
	return &service{
		stores:       stores,
		agents:       agents,
		capabilities: capability.NewRegistry(stores.capabilities, logger),
		formation:    formationEngine,
		negotiation: negotiation.NewEngine(stores.negotiations, agents, sharedCache,
			types.ResolutionStrategy(cfg.Negotiation.DefaultStrategy), collector, logger),
		contexts: contexts,
		coordinator: coordinator.New(formationEngine, contexts, stores.agents, stores.tasks,
			nil, cfg.Coordinator.SubtaskTimeout, collector, logger),
		logger: logger,
	}
}

// runDispatcher polls for unassigned tasks and forms teams for them.
func (s *service) runDispatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tasks, err := s.stores.tasks.FindUnassignedTasks(ctx)
			if err != nil {
				s.logger.Warn("dispatcher task scan failed", zap.Error(err))
				continue
			}
			for _, task := range tasks {
				if len(task.RequiredCapabilities) == 0 {
					continue
				}
				if _, err := s.formation.FormTeamForTask(ctx, task.ID); err != nil {
					s.logger.Warn("dispatcher formation failed",
						zap.String("task_id", task.ID),
						zap.Error(err))
				}
			}
		}
	}
}

// serviceStores groups the repository views the engines consume.
type serviceStores struct {
	agents       store.AgentStore
	tasks        store.TaskStore
	teams        store.TeamStore
	negotiations store.NegotiationStore
	contexts     store.ContextStore
	capabilities store.CapabilityStore
}

func openStores(cfg config.DatabaseConfig, logger *zap.Logger) (*serviceStores, error) {
	if cfg.DSN == "" {
		logger.Info("using in-memory store")
		m := store.NewMemory()
		return &serviceStores{agents: m, tasks: m, teams: m, negotiations: m, contexts: m, capabilities: m}, nil
	}
	if cfg.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite)", cfg.Driver)
	}
	s, err := gormstore.Open(cfg.DSN)
	if err != nil {
		return nil, err
	}
	sqlDB, err := s.DB().DB()
	if err == nil {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	logger.Info("database connected", zap.String("driver", cfg.Driver), zap.String("dsn", cfg.DSN))
	return &serviceStores{agents: s, tasks: s, teams: s, negotiations: s, contexts: s, capabilities: s}, nil
}

func openCache(cfg config.RedisConfig, logger *zap.Logger) (cache.Cache, error) {
	if cfg.Addr == "" {
		logger.Info("using in-process cache")
		return cache.NewMemoryCache(5 * time.Minute), nil
	}
	return cache.NewRedisCache(cache.RedisConfig{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}, logger)
}

func serveMetrics(cfg config.ServerConfig, registry *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	go func() {
		logger.Info("metrics server listening", zap.Int("port", cfg.MetricsPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func printVersion() {
	fmt.Printf("teamflow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`teamflow - multi-agent collaboration service

Usage:
  teamflow <command> [options]

Commands:
  serve     Start the teamflow service
  version   Show version information
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Examples:
  teamflow serve
  teamflow serve --config /etc/teamflow/config.yaml
  teamflow version`)
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	logger, err := zapConfig.Build(opts...)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"execsvc/internal/common/cache"
	commonmw "execsvc/internal/common/http/middleware"
	"execsvc/internal/executor/controller"
	executormw "execsvc/internal/executor/middleware"
	"execsvc/internal/executor/sandbox/engine"
	"execsvc/internal/executor/sandbox/observer"
	"execsvc/internal/executor/sandbox/workspace"
	"execsvc/internal/executor/service"
	"execsvc/internal/executor/validation"
	"execsvc/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/executor_service.yaml"

type routeDeps struct {
	execute   *controller.ExecuteController
	rateLimit *service.RateLimitService
	policy    executormw.RateLimitPolicy
	gatherer  prometheus.Gatherer
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observer.NewPrometheus(registry)
	if err != nil {
		logger.Error(context.Background(), "init metrics failed", zap.Error(err))
		return
	}

	eng, err := engine.NewEngine(appCfg.Sandbox.toEngineConfig())
	if err != nil {
		logger.Error(context.Background(), "init sandbox engine failed", zap.Error(err))
		return
	}

	limits := appCfg.Limits.toSpec()
	executeSvc := service.NewExecuteService(
		limits,
		workspace.NewMaterializer(appCfg.Sandbox.WorkRoot),
		eng,
		metrics,
		appCfg.Worker.toServiceConfig(),
	)

	deps := routeDeps{
		execute:  controller.NewExecuteController(executeSvc, validation.New(limits)),
		gatherer: registry,
		policy: executormw.RateLimitPolicy{
			Window:   appCfg.RateLimit.Window,
			IPMax:    appCfg.RateLimit.IPMax,
			FailOpen: appCfg.RateLimit.FailOpen,
		},
	}

	if appCfg.RateLimit.Enabled {
		redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
		if err != nil {
			logger.Error(context.Background(), "init redis failed", zap.Error(err))
			return
		}
		defer func() {
			_ = redisCache.Close()
		}()
		deps.rateLimit = service.NewRateLimitService(redisCache, appCfg.RateLimit.Window, appCfg.RateLimit.RedisTimeout)
	}

	logger.Info(context.Background(), "executor limits loaded",
		zap.Int64("max_executable", limits.MaxExecutable),
		zap.Int64("max_calldata", limits.MaxCalldata),
		zap.Int64("max_timeout_ms", limits.MaxTimeoutMs),
		zap.Int64("max_stdout", limits.MaxStdout),
		zap.Int64("max_stderr", limits.MaxStderr),
	)

	httpServer := buildHTTPServer(appCfg.Server, deps)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "executor http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

func buildHTTPServer(cfg ServerConfig, deps routeDeps) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      gzhttp.GzipHandler(buildRouter(deps)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func buildRouter(deps routeDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	router.POST("/execute",
		executormw.RateLimitMiddleware(deps.rateLimit, "execute", deps.policy),
		deps.execute.Execute,
	)
	router.GET("/healthz", deps.execute.Healthz)
	if deps.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.gatherer, promhttp.HandlerOpts{DisableCompression: true})))
	}
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

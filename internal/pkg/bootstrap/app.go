// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	zlog "github.com/rs/zerolog/log"

	"stockflow/internal/pkg/config"
	"stockflow/internal/pkg/logger"
	"stockflow/internal/pkg/mq"
	"stockflow/internal/pkg/nacos"
	"stockflow/internal/pkg/tracing"
	"stockflow/internal/pkg/utils"
)

const shutdownTimeout = 10 * time.Second

var currentConfig atomic.Pointer[config.Config]

// Init 加载配置并初始化日志，必须在 StartService 之前调用
func Init(serviceName string) *config.Config {
	cfg, err := config.Load("")
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load config")
	}
	currentConfig.Store(cfg)
	logger.Init(serviceName, cfg.App.LogLevel)
	return cfg
}

// GetCurrentConfig 返回 Init 加载的配置；未初始化时返回默认配置
func GetCurrentConfig() *config.Config {
	if cfg := currentConfig.Load(); cfg != nil {
		return cfg
	}
	return config.Default()
}

// AppCtx 是交给各服务注册路由和后台任务的上下文
type AppCtx struct {
	// Ctx 在收到退出信号时取消，后台任务应监听它
	Ctx    context.Context
	Router chi.Router
	Config *config.Config

	closers *closerStack
}

// OnShutdown 注册一个关停时执行的清理函数，按注册顺序的逆序执行
func (a AppCtx) OnShutdown(name string, fn func(ctx context.Context) error) {
	a.closers.push(name, fn)
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx) // 注册服务自己的 HTTP 路由和后台任务
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	cfg := GetCurrentConfig()

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// 2. 路由与通用中间件
	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	router.Use(tracing.Middleware, logger.Middleware)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Handle("/metrics", promhttp.Handler())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	closers := &closerStack{}
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Ctx: ctx, Router: router, Config: cfg, closers: closers})
	}

	// 3. 启动 HTTP Server
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zlog.Info().Msgf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal().Err(err).Msgf("could not listen on %s", server.Addr)
		}
	}()

	// 4. 可选的服务注册
	deregister := registerWithNacos(cfg, info)

	// 5. 优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msgf("Shutting down service %s...", info.ServiceName)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// a. 先从注册中心摘除，停止接收新流量
	deregister()

	// b. 关闭 HTTP 服务器
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("Error shutting down http server")
	}

	// c. 通知后台任务退出，然后按后进先出执行清理
	cancel()
	closers.run(shutdownCtx)

	// d. 关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
	if err := tp.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("Error shutting down tracer provider")
	}

	zlog.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
}

func registerWithNacos(cfg *config.Config, info AppInfo) func() {
	noop := func() {}
	if cfg.Infra.Nacos.ServerAddrs == "" {
		return noop
	}
	client, err := nacos.NewClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize nacos client")
	}
	ip, err := utils.GetOutboundIP()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to get outbound IP address")
	}
	if err := client.Register(info.ServiceName, ip, info.Port); err != nil {
		zlog.Fatal().Err(err).Msg("failed to register service with nacos")
	}
	return func() {
		if err := client.Deregister(info.ServiceName, ip, info.Port); err != nil {
			zlog.Error().Err(err).Msg("Error deregistering from Nacos")
		}
		client.Close()
	}
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

type closerStack struct {
	mu      sync.Mutex
	closers []closer
}

func (s *closerStack) push(name string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, closer{name: name, fn: fn})
}

func (s *closerStack) run(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if err := c.fn(ctx); err != nil {
			zlog.Error().Err(err).Str("component", c.name).Msg("shutdown step failed")
			continue
		}
		zlog.Info().Str("component", c.name).Msg("shut down")
	}
	s.closers = nil
}

// StartConsumer 启动一个 Kafka 消费者，关停时等待当前消息处理完再关闭 reader
func (a AppCtx) StartConsumer(name string, c *mq.Consumer) {
	c.Start(a.Ctx)
	a.OnShutdown(name, func(context.Context) error {
		c.Stop()
		return nil
	})
}

// ConsumerGroup 返回配置的消费组；未配置时按服务名和 topic 生成
func (a AppCtx) ConsumerGroup(serviceName, topic string) string {
	if g := a.Config.Infra.Kafka.ConsumerGroup; g != "" {
		return g + "-" + topic
	}
	return serviceName + "-" + topic
}

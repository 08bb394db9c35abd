package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/LahousseBram/CureSwarm/api/handlers"
	"github.com/LahousseBram/CureSwarm/config"
	"github.com/LahousseBram/CureSwarm/internal/affinity"
	"github.com/LahousseBram/CureSwarm/internal/consensus"
	"github.com/LahousseBram/CureSwarm/internal/database"
	"github.com/LahousseBram/CureSwarm/internal/doiverify"
	"github.com/LahousseBram/CureSwarm/internal/generator"
	"github.com/LahousseBram/CureSwarm/internal/metrics"
	"github.com/LahousseBram/CureSwarm/internal/research"
	"github.com/LahousseBram/CureSwarm/internal/scheduler"
	"github.com/LahousseBram/CureSwarm/internal/seed"
	"github.com/LahousseBram/CureSwarm/internal/server"
	"github.com/LahousseBram/CureSwarm/internal/store"
	"github.com/LahousseBram/CureSwarm/internal/telemetry"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 CureSwarm 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers

	// 数据库连接池
	pool *database.PoolManager

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// Handlers
	healthHandler *handlers.HealthHandler
	swarmHandler  *handlers.SwarmHandler
	queryHandler  *handlers.QueryHandler

	// 指标收集器
	metricsCollector *metrics.Collector

	// 后台 goroutine 生命周期管理
	reclaimerCancel   context.CancelFunc
	rateLimiterCancel context.CancelFunc

	wg sync.WaitGroup
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otel *telemetry.Providers) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		otel:   otel,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("cureswarm", s.logger)

	// 2. 初始化蜂群核心与 Handlers
	if err := s.initCore(); err != nil {
		return fmt.Errorf("failed to init swarm core: %w", err)
	}

	// 3. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 4. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initCore 组装存储、调度器、共识引擎与服务层
func (s *Server) initCore() error {
	ctx := context.Background()

	// 数据库连接池
	pool, err := database.Open(s.cfg.Database, s.logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.pool = pool

	st := store.New(pool, s.logger)
	if err := st.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// 种子目录（幂等，已初始化时跳过）
	mission, err := seed.Load(s.cfg.Catalog.MissionPath)
	if err != nil {
		return fmt.Errorf("failed to load mission catalog: %w", err)
	}
	if err := seed.Apply(ctx, st, mission, s.logger); err != nil {
		return fmt.Errorf("failed to seed mission catalog: %w", err)
	}

	// 综合任务领域配对目录
	catalog, err := generator.LoadCatalog(s.cfg.Catalog.PairsPath)
	if err != nil {
		return fmt.Errorf("failed to load synthesis pair catalog: %w", err)
	}

	// 核心组件
	gen := generator.New(st, catalog, s.cfg.Swarm, s.logger)
	tracker := affinity.NewTracker(st)
	engine := consensus.New(st, tracker, consensus.DefaultRules(), s.logger)
	// 调度器与服务层各自持锁，共享的随机源必须统一加锁
	rng := generator.NewLockedRand(rand.New(rand.NewSource(time.Now().UnixNano())))
	sched := scheduler.New(st, gen, rng, s.cfg.Swarm, s.logger)

	// DOI 核验（可选）
	var verifier *doiverify.Client
	if s.cfg.Verify.Enabled {
		verifier = doiverify.NewClient(s.cfg.Verify, s.metricsCollector, s.logger)
		s.logger.Info("DOI verification enabled", zap.String("base_url", s.cfg.Verify.BaseURL))
	} else {
		s.logger.Info("DOI verification disabled")
	}

	svc := research.New(st, sched, engine, gen, verifier, s.metricsCollector, rng, s.cfg.Swarm, s.logger)

	// Handlers
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewDatabaseHealthCheck("database", pool.Ping))
	if verifier != nil {
		s.healthHandler.RegisterCheck(handlers.NewRegistryHealthCheck("citation_registry", verifier.Probe))
	}
	s.swarmHandler = handlers.NewSwarmHandler(svc, s.logger)
	s.queryHandler = handlers.NewQueryHandler(svc, s.logger)

	// 后台回收器：定期回收超时未提交的任务
	reclaimer := scheduler.NewReclaimer(st, s.metricsCollector, s.cfg.Swarm, s.logger)
	reclaimerCtx, reclaimerCancel := context.WithCancel(context.Background())
	s.reclaimerCancel = reclaimerCancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		reclaimer.Run(reclaimerCtx)
	}()

	s.logger.Info("Swarm core initialized")
	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// ========================================
	// 健康检查端点
	// ========================================
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)

	// 版本信息端点
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// ========================================
	// 蜂群 API 路由
	// ========================================
	mux.HandleFunc("POST /api/v1/agents/register", s.swarmHandler.HandleRegister)
	mux.HandleFunc("GET /api/v1/tasks/next/{agentID}", s.swarmHandler.HandleNextTask)
	mux.HandleFunc("POST /api/v1/tasks/submit", s.swarmHandler.HandleSubmit)
	mux.HandleFunc("POST /api/v1/doi/verify", s.swarmHandler.HandleVerifyDOI)

	// ========================================
	// 查询 API 路由
	// ========================================
	mux.HandleFunc("GET /api/v1/agents", s.queryHandler.HandleListAgents)
	mux.HandleFunc("GET /api/v1/agents/{id}", s.queryHandler.HandleGetAgent)
	mux.HandleFunc("GET /api/v1/findings", s.queryHandler.HandleListFindings)
	mux.HandleFunc("GET /api/v1/findings/{id}", s.queryHandler.HandleGetFinding)
	mux.HandleFunc("GET /api/v1/hypotheses", s.queryHandler.HandleListHypotheses)
	mux.HandleFunc("GET /api/v1/hypotheses/{id}", s.queryHandler.HandleGetHypothesis)
	mux.HandleFunc("GET /api/v1/divisions", s.queryHandler.HandleListDivisions)
	mux.HandleFunc("GET /api/v1/divisions/{id}/report", s.queryHandler.HandleDivisionReport)
	mux.HandleFunc("GET /api/v1/stats", s.queryHandler.HandleStats)
	mux.HandleFunc("GET /api/v1/qc/stats", s.queryHandler.HandleQCStats)
	mux.HandleFunc("GET /api/v1/synthesis/opportunities", s.queryHandler.HandleOpportunities)

	// ========================================
	// 构建中间件链
	// ========================================
	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
	}
	if s.otel != nil {
		middlewares = append(middlewares, OTelTracing())
	}
	middlewares = append(middlewares,
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
		APIKeyAuth(s.cfg.Server.APIKey, skipAuthPaths, s.logger),
	)
	handler := Chain(mux, middlewares...)

	// ========================================
	// 使用 internal/server.Manager
	// ========================================
	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout, // 2x ReadTimeout
		MaxHeaderBytes:  1 << 20,                      // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	// 启动服务器（非阻塞）
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	// 启动服务器（非阻塞）
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	// 使用 httpManager 的 WaitForShutdown（它会监听信号）
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	// 执行清理
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	// 0. 停止后台 goroutine
	if s.reclaimerCancel != nil {
		s.reclaimerCancel()
	}
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 1. 关闭 HTTP 服务器
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 3. 等待所有 goroutine 完成
	s.wg.Wait()

	// 4. 关闭遥测与数据库连接
	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}
	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			s.logger.Error("Database close error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}

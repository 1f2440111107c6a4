package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"helper/internal/ai"
	"helper/internal/config"
	"helper/internal/handler"
	authHandler "helper/internal/handler/auth"
	"helper/internal/pkg/cache"
	"helper/internal/pkg/gmail"
	"helper/internal/pkg/jwt"
	"helper/internal/pkg/localstore"
	"helper/internal/pkg/mongodb"
	"helper/internal/pkg/storagefactory"
	"helper/internal/repository"
	authRepo "helper/internal/repository/auth"
	"helper/internal/server/middleware"
	"helper/internal/service"
)

// Server HTTP 服务器
type Server struct {
	cfg    *config.Config
	engine *gin.Engine
	mongo  *mongodb.Client
	redis  *cache.RedisCache
}

// New 创建服务器实例
// MongoDB 与 Redis 都是可选依赖：连不上只降级（匿名本地存储仍然可用），
// 不阻止进程启动
func New(cfg *config.Config) (*Server, error) {
	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// 初始化 MongoDB (可选)
	var mongoClient *mongodb.Client
	if cfg.Mongo.URI != "" {
		client, err := mongodb.New(&cfg.Mongo)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to MongoDB, continuing without it")
		} else {
			mongoClient = client
			log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

			if err := mongodb.EnsureIndexes(mongoClient.Database()); err != nil {
				log.Warn().Err(err).Msg("failed to ensure indexes")
			}
		}
	}

	// 初始化 Redis (可选)
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without it")
		} else {
			redisCache = rc
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	srv := &Server{
		cfg:    cfg,
		engine: engine,
		mongo:  mongoClient,
		redis:  redisCache,
	}

	if err := srv.setupRoutes(); err != nil {
		return nil, err
	}

	return srv, nil
}

// setupRoutes 组装依赖并设置路由
func (s *Server) setupRoutes() error {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS())

	// 健康检查
	healthHandler := handler.NewHealthHandler()
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// AI 客户端
	// 创建失败不挡启动：交换统一降级为固定兜底文案
	aiClient, err := ai.NewClient(context.Background(), &s.cfg.AI)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize AI client, exchanges will return the fallback message")
		aiClient = ai.NewClientWithModel(nil)
	}

	// 本地会话存储（无条件兜底）
	local, err := localstore.New(s.cfg.LocalStore.Dir)
	if err != nil {
		return err
	}

	// 附件归档（可选）
	var archiveSvc *service.ArchiveService
	store, err := storagefactory.NewStorage(context.Background(), &s.cfg.Storage)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize attachment storage, archiving disabled")
	} else if store != nil {
		archiveSvc = service.NewArchiveService(store)
		log.Info().Str("type", store.GetStorageType()).Msg("attachment archiving enabled")
	}

	// 仓库（MongoDB 可用时）
	var remote service.ConversationStore
	var users service.UserFinder
	var contacts service.ContactDirectory
	if s.mongo != nil {
		remote = repository.NewConversationRepo(s.mongo.Database())
		users = authRepo.NewUserRepo(s.mongo.Database())
		contacts = repository.NewContactRepo(s.mongo.Database())
	}

	// 委托凭证缓存（Redis 可用时）
	var tokens service.TokenCache
	if s.redis != nil {
		tokens = s.redis
	}

	directorySvc := service.NewDirectoryService(users, contacts)
	emailSvc := service.NewEmailService(
		directorySvc,
		gmail.NewClient(gmail.WithBaseURL(s.cfg.Email.GmailBaseURL)),
		tokens,
		s.cfg.Email.NoMatchReply,
	)
	chatSvc := service.NewChatService(aiClient, remote, local, emailSvc, archiveSvc)

	chatHdl := handler.NewChatHandler(chatSvc)
	convHdl := handler.NewConversationHandler(chatSvc)
	dirHdl := handler.NewDirectoryHandler(directorySvc, emailSvc)
	emailHdl := handler.NewEmailHandler(directorySvc, emailSvc)
	tokenHdl := handler.NewTokenHandler(emailSvc)

	jwtSecret := s.cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "default-secret-key-change-in-production"
		log.Warn().Msg("JWT secret not configured, using default (NOT SECURE for production)")
	}
	accessTokenExpiry := s.cfg.Auth.AccessTokenExpiry
	if accessTokenExpiry == 0 {
		accessTokenExpiry = 24 * time.Hour
	}
	jwtUtil := jwt.NewJWT(jwtSecret, accessTokenExpiry)

	// API v1
	v1 := s.engine.Group("/api/v1")
	{
		// 认证接口（需要 MongoDB）
		if s.mongo != nil {
			refreshTokenExpiry := s.cfg.Auth.RefreshTokenExpiry
			if refreshTokenExpiry == 0 {
				refreshTokenExpiry = 7 * 24 * time.Hour
			}

			authSvc := service.NewAuthService(
				authRepo.NewUserRepo(s.mongo.Database()),
				authRepo.NewRefreshTokenRepo(s.mongo.Database()),
				jwtSecret,
				accessTokenExpiry,
				refreshTokenExpiry,
			)
			authHdl := authHandler.NewHandler(authSvc)

			v1.POST("/auth/register", authHdl.Register)
			v1.POST("/auth/login", authHdl.Login)
			v1.POST("/auth/refresh", authHdl.Refresh)
			v1.POST("/auth/logout", authHdl.Logout)
			v1.GET("/auth/me", authHdl.GetMe)
		} else {
			log.Warn().Msg("MongoDB not configured, auth endpoints disabled")
		}

		// 会话与代理接口：登录用户带身份，匿名照常可用
		session := v1.Group("")
		session.Use(middleware.OptionalAuth(jwtUtil))
		{
			session.POST("/chat", chatHdl.Chat)

			session.GET("/conversations", convHdl.List)
			session.POST("/conversations", convHdl.Create)
			session.DELETE("/conversations/:id", convHdl.Delete)
			session.PUT("/conversations/:id/active", convHdl.SetActive)
			session.POST("/conversations/:id/messages", convHdl.AppendTurn)
			session.POST("/conversations/:id/select", convHdl.Select)

			session.POST("/directory/search", dirHdl.Search)
			session.GET("/email/flow", emailHdl.Flow)
			session.POST("/email/send", emailHdl.Send)
			session.POST("/oauth/token", tokenHdl.Store)
			session.DELETE("/oauth/token", tokenHdl.Clear)
		}
	}

	return nil
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")

		if s.mongo != nil {
			if err := s.mongo.Close(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to close MongoDB connection")
			}
		}
		if s.redis != nil {
			if err := s.redis.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close Redis connection")
			}
		}

		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

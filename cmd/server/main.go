// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"provision-fc-go/internal/config"
	"provision-fc-go/internal/handler"
	"provision-fc-go/internal/middleware"
	"provision-fc-go/internal/pipeline"
	"provision-fc-go/internal/repository"
	"provision-fc-go/internal/service"
	"provision-fc-go/pkg/database"
	"provision-fc-go/pkg/embedding"
	"provision-fc-go/pkg/es"
	"provision-fc-go/pkg/kafka"
	"provision-fc-go/pkg/llm"
	"provision-fc-go/pkg/log"
	"provision-fc-go/pkg/storage"
	"provision-fc-go/pkg/token"
	"provision-fc-go/pkg/tts"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库和 Redis
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	answerRepo := repository.NewAnswerRepository(database.DB)
	recentCache := repository.NewRecentAnswersCache(database.RDB)
	userRepository := repository.NewUserRepository(database.DB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	ttsClient := tts.NewClient(cfg.TTS)
	audioStore := service.NewMinioAudioStore(cfg.MinIO, cfg.TTS)
	taskProducer := service.NewKafkaTaskProducer()

	askService := service.NewAskService(embeddingClient, llmClient, ttsClient, audioStore, taskProducer)
	answerService := service.NewAnswerService(answerRepo, recentCache, embeddingClient, es.ESClient, cfg.Elasticsearch)
	userService := service.NewUserService(userRepository, jwtManager)

	// 6. 初始化持久化管道 (Persister)
	persister := pipeline.NewPersister(answerRepo, recentCache, cfg.Elasticsearch, cfg.Embedding)

	// 7. 启动后台 Kafka 消费者
	go kafka.StartConsumer(cfg.Kafka, persister)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	askHandler := handler.NewAskHandler(askService)

	// 9. 注册路由
	// 问答主入口，保持历史路径不变，供移动端直接调用
	r.POST("/api/ask-ai", middleware.RateLimitMiddleware(cfg.RateLimit), askHandler.Ask)

	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", handler.NewAuthHandler(userService).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", handler.NewUserHandler(userService).Register)
			users.POST("/login", handler.NewUserHandler(userService).Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", handler.NewUserHandler(userService).GetProfile)
			}
		}

		// 问答记录公开查询路由
		answers := apiV1.Group("/answers")
		{
			answers.GET("/recent", handler.NewAnswerHandler(answerService).GetRecent)
			answers.GET("/similar", handler.NewAnswerHandler(answerService).SearchSimilar)
		}

		// 流式问答路由 (WebSocket)
		askGroup := apiV1.Group("/ask")
		{
			askGroup.GET("/websocket-token", askHandler.GetStreamToken)
		}
		r.GET("/ask/stream/:token", askHandler.Stream)

		admin := apiV1.Group("/admin")
		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin.Use(middleware.AuthMiddleware(jwtManager, userService), middleware.AdminAuthMiddleware())
		{
			admin.GET("/answers", handler.NewAnswerHandler(answerService).ListAnswers)
			admin.DELETE("/answers/:key", handler.NewAnswerHandler(answerService).DeleteAnswer)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// Kafka 消费者是一个循环，会在进程退出时自然结束，
	// 无需在此处显式关闭。
	log.Info("服务已优雅关闭")
}

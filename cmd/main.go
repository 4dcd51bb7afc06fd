package main

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/parleychat/parley/config"
	"github.com/parleychat/parley/internal/archiver"
	"github.com/parleychat/parley/internal/consumer"
	"github.com/parleychat/parley/internal/fanout"
	"github.com/parleychat/parley/internal/handlers"
	"github.com/parleychat/parley/internal/repositories"
	"github.com/parleychat/parley/internal/routers"
	"github.com/parleychat/parley/internal/services"
	"github.com/parleychat/parley/internal/storage"
	"github.com/parleychat/parley/internal/uploader"
	"github.com/parleychat/parley/internal/ws"
	jwtmw "github.com/parleychat/parley/middleware/jwt"
	logger "github.com/parleychat/parley/middleware/log"
	"github.com/parleychat/parley/pkg/mq"
	"github.com/parleychat/parley/pkg/ratelimit"
)

func main() {
	cfg, err := config.LoadConfig("./config.toml")
	if err != nil {
		log.Fatalf("配置初始化失败: %v", err)
	}

	appLogger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer appLogger.Close()

	// 初始化 PostgreSQL
	dsn := storage.BuildDSN(cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName)
	postgres, err := storage.InitPostgres(dsn, cfg.Postgres.MaxIdleConns, cfg.Postgres.MaxOpenConns)
	if err != nil {
		log.Fatalf("postgres 初始化失败: %v", err)
	}

	// 初始化 Redis
	redisClient, err := storage.InitRedis(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, cfg.Redis.MinIdleConns)
	if err != nil {
		log.Fatalf("redis 初始化失败: %v", err)
	}

	// 初始化仓储层
	userRepo := repositories.NewUserRepository(postgres)
	groupRepo := repositories.NewGroupRepository(postgres)
	messageRepo := repositories.NewMessageRepository(postgres)
	archiveRepo := repositories.NewArchiveRepository(postgres)

	ctx := context.Background()

	// S3 上传器（附件消息依赖）
	s3Uploader, err := uploader.NewS3Uploader(ctx, &cfg.S3)
	if err != nil {
		log.Fatalf("S3 初始化失败: %v", err)
	}

	// Redis 扇出通道：消息写入后经此广播给所有在线订阅者
	fanoutChannel := fanout.NewChannel(redisClient, appLogger)

	// 初始化服务层
	tokens := jwtmw.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpireHours, cfg.JWT.RefreshHours)
	authService := services.NewAuthService(userRepo, tokens, appLogger)
	groupService := services.NewGroupService(groupRepo, userRepo, appLogger)
	messageService := services.NewMessageService(messageRepo, groupRepo, fanoutChannel, s3Uploader, appLogger)

	// 初始化 Kafka Producer
	var kafkaProducer *mq.KafkaProducer
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err = mq.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Printf("Kafka 生产者初始化失败: %v。系统将以降级模式运行（直接写入数据库）。", err)
			kafkaProducer = nil
		} else {
			defer kafkaProducer.Close()
		}
	}

	// 初始化 WebSocket Hub 并接入扇出通道
	hub := ws.NewHub(appLogger)
	go hub.Run()
	go func() {
		if err := hub.RunFanout(ctx, fanoutChannel); err != nil {
			appLogger.Error("扇出订阅退出: " + err.Error())
		}
	}()

	// 初始化 Kafka Consumer (如果 Kafka 可用)
	if kafkaProducer != nil {
		msgConsumer := consumer.NewMessageConsumer(messageService, appLogger)
		if err := consumer.StartConsumer(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, msgConsumer); err != nil {
			log.Printf("Kafka 消费者初始化失败: %v", err)
		}
	}

	// 归档任务：每日把过期消息搬入归档表
	sweeper := archiver.New(archiveRepo, cfg.Archive.Schedule,
		time.Duration(cfg.Archive.RetentionHours)*time.Hour, appLogger)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("归档任务启动失败: %v", err)
	}
	defer sweeper.Stop()

	// 限流器（发消息与上传接口）
	limiter := ratelimit.NewLimiter(redisClient, appLogger, true)

	// 初始化处理器
	authHandler := handlers.NewAuthHandler(authService)
	groupHandler := handlers.NewGroupHandler(groupService)
	messageHandler := handlers.NewMessageHandler(messageService)

	// 配置并创建 Gin 引擎
	gin.SetMode(cfg.Server.Mode)

	r := gin.Default()

	// 设置路由
	routers.SetupRoutes(r,
		cfg,
		tokens,
		authHandler,
		groupHandler,
		messageHandler,
		hub,
		messageService,
		kafkaProducer,
		limiter,
		appLogger,
	)

	// 启动服务器
	log.Printf("正在启动服务器，监听端口 :%d\n", cfg.Server.Port)
	if err := r.Run(":" + strconv.FormatInt(int64(cfg.Server.Port), 10)); err != nil {
		log.Fatalf("启动服务器失败: %v", err)
	}
}

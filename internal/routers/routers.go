package routers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/parleychat/parley/config"
	"github.com/parleychat/parley/internal/handlers"
	"github.com/parleychat/parley/internal/middlewares"
	"github.com/parleychat/parley/internal/services"
	"github.com/parleychat/parley/internal/ws"
	jwtmw "github.com/parleychat/parley/middleware/jwt"
	logger "github.com/parleychat/parley/middleware/log"
	ratemw "github.com/parleychat/parley/pkg/middlewares"
	"github.com/parleychat/parley/pkg/mq"
	"github.com/parleychat/parley/pkg/ratelimit"
)

// SetupRoutes 设置所有路由
func SetupRoutes(r *gin.Engine, cfg *config.Config,
	tokens *jwtmw.TokenManager,
	authHandler *handlers.AuthHandler,
	groupHandler *handlers.GroupHandler,
	messageHandler *handlers.MessageHandler,
	hub *ws.Hub, // 注入 Hub
	messageService *services.MessageService, // 注入 MessageService 用于 WS
	kafkaProducer *mq.KafkaProducer, // 注入 KafkaProducer 用于 WS
	limiter *ratelimit.Limiter,
	log *logger.Logger,
) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	auth := middlewares.AuthMiddleware(tokens)

	// WebSocket 路由 (token 可放在 query 参数中，方便浏览器客户端)
	r.GET("/ws", auth, func(c *gin.Context) {
		ws.ServeWs(hub, messageService, kafkaProducer, log, c)
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"Status": "OK",
		})
	})

	sendLimit := ratemw.SendRateLimit(limiter, cfg.RateLimit.SendLimit,
		time.Duration(cfg.RateLimit.SendWindowSeconds)*time.Second)

	registerUserRoutes(r, auth, authHandler)
	registerGroupRoutes(r, auth, sendLimit, groupHandler, messageHandler)
}

func registerUserRoutes(r *gin.Engine, auth gin.HandlerFunc, authHandler *handlers.AuthHandler) {
	userGroup := r.Group("/user")
	{
		userGroup.POST("/signup", authHandler.SignUp) // 注册
		userGroup.POST("/login", authHandler.Login)   // 登录
	}
	userGroup.Use(auth)
	{
		userGroup.GET("/all", authHandler.ListUsers) // 用户列表，用于邀请成员
	}
}

func registerGroupRoutes(r *gin.Engine, auth, sendLimit gin.HandlerFunc,
	groupHandler *handlers.GroupHandler, messageHandler *handlers.MessageHandler,
) {
	groupGroup := r.Group("/groups")
	groupGroup.Use(auth)
	{
		groupGroup.POST("", groupHandler.CreateGroup) // 建群，创建者自动成为管理员
		groupGroup.GET("", groupHandler.ListGroups)   // 当前用户所在的群组

		groupGroup.POST("/:groupId/add-user", groupHandler.AddUser)                  // 拉人（仅管理员）
		groupGroup.GET("/:groupId/members", groupHandler.ListMembers)                // 成员列表
		groupGroup.DELETE("/:groupId/remove-user/:userId", groupHandler.RemoveUser)  // 踢人（仅管理员）
		groupGroup.POST("/:groupId/make-admin", groupHandler.MakeAdmin)              // 提升管理员（仅管理员）

		groupGroup.POST("/:groupId/messages", sendLimit, messageHandler.SendMessage) // 同步发消息
		groupGroup.GET("/:groupId/messages", messageHandler.GetGroupMessages)        // 消息历史
	}

	// 附件上传：URL 作为消息写入并广播
	r.POST("/upload-file", auth, sendLimit, messageHandler.UploadFile)
}

package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"forumhub/internal/config"
	"forumhub/internal/middleware"
	"forumhub/internal/model"
	"forumhub/internal/repository"
	"forumhub/internal/service"
	"forumhub/internal/util"
	"forumhub/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// handlers is everything registerRoutes mounts.
type handlers struct {
	auth         *AuthHandler
	comment      *CommentHandler
	reaction     *ReactionHandler
	discussion   *DiscussionHandler
	report       *ReportHandler
	user         *UserHandler
	notification *NotificationHandler
	ws           http.HandlerFunc
}

// NewRouter connects the stores, starts the websocket hub and the notification
// worker, and returns the engine. The returned cleanup releases the connections;
// the hub and worker stop when ctx is cancelled.
func NewRouter(ctx context.Context, cfg *config.Config) (*gin.Engine, func(), error) {
	gin.SetMode(cfg.GinMode)

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto migrate
	if err := db.AutoMigrate(&model.Role{}, &model.User{}, &model.Profile{}, &model.Discussion{}, &model.Comment{}, &model.Reaction{}, &model.Report{}, &model.Notification{}, &model.AuditLog{}); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// reactions.target_id and reports.target_id point at more than one table
	dropPolymorphicConstraints(db, "reactions", "target_id")
	dropPolymorphicConstraints(db, "reports", "target_id")

	roleRepo := repository.NewRoleRepository(db)
	if err := roleRepo.EnsureDefaults(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to seed roles: %w", err)
	}

	redisClient := initRedisWithRetry(ctx, cfg)
	rabbitMQ := initRabbitMQWithRetry(ctx, cfg)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db, redisClient)
	auditRepo := repository.NewAuditRepository(db)
	discussionRepo := repository.NewDiscussionRepository(db, redisClient)
	commentRepo := repository.NewCommentRepository(db)
	reactionRepo := repository.NewReactionRepository(db)
	reportRepo := repository.NewReportRepository(db)
	notificationRepo := repository.NewNotificationRepository(db, redisClient)

	// A nil *RabbitMQClient must not end up inside a non-nil interface
	var publisher service.Publisher
	if rabbitMQ != nil {
		publisher = rabbitMQ
		if err := rabbitMQ.DeclareQueue(service.EmailExchange, service.EmailQueueName, service.EmailRoutingKey); err != nil {
			util.Logger.Warn("failed to declare email queue", zap.Error(err))
		}
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)
	util.Logger.Info("websocket hub started")

	var uploader service.AvatarUploader
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cloudinaryClient, err := util.NewCloudinaryClient(cfg)
		if err != nil {
			util.Logger.Warn("cloudinary disabled, profile picture uploads will fail", zap.Error(err))
		} else {
			uploader = cloudinaryClient
			util.Logger.Info("cloudinary initialized")
		}
	} else {
		util.Logger.Info("cloudinary credentials not configured, profile picture uploads disabled")
	}

	// Initialize services
	notificationService := service.NewNotificationService(notificationRepo, publisher)
	notificationService.SetWSHub(wsHub)

	authService := service.NewAuthService(userRepo, roleRepo, auditRepo, service.NewEmailSender(publisher),
		cfg.JWTSecret, cfg.JWTExpiresIn, cfg.ClientURL)
	commentService := service.NewCommentService(commentRepo, discussionRepo, reactionRepo, userRepo,
		notificationService, cfg.FlagThreshold)
	commentService.SetWSHub(wsHub)
	tree := service.NewCommentTreeAssembler(commentRepo, reactionRepo, discussionRepo, cfg.CommentMaxDepth)
	reactionService := service.NewReactionService(reactionRepo, commentRepo, discussionRepo, cfg.ClientURL)
	discussionService := service.NewDiscussionService(discussionRepo, commentRepo, reactionRepo)
	reportService := service.NewReportService(reportRepo, commentRepo, discussionRepo, userRepo)
	userService := service.NewUserService(userRepo, roleRepo, profileRepo, auditRepo, notificationService, uploader)

	var worker *service.NotificationWorker
	if rabbitMQ != nil {
		worker = service.NewNotificationWorker(rabbitMQ, wsHub)
		if err := worker.Start(ctx); err != nil {
			util.Logger.Warn("failed to start notification worker, notifications go straight to websocket", zap.Error(err))
			worker = nil
		}
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(util.Logger), middleware.Recovery(util.Logger))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	// Rate limiting middleware (if enabled)
	if cfg.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		r.Use(rateLimiter.Middleware())
		util.Logger.Info("rate limiting enabled", zap.Int("rps", cfg.RateLimitRPS), zap.Int("burst", cfg.RateLimitBurst))
	}

	registerRoutes(r, handlers{
		auth:         NewAuthHandler(authService),
		comment:      NewCommentHandler(commentService, tree),
		reaction:     NewReactionHandler(reactionService),
		discussion:   NewDiscussionHandler(discussionService),
		report:       NewReportHandler(reportService),
		user:         NewUserHandler(userService),
		notification: NewNotificationHandler(notificationService),
		ws:           websocket.ServeWS(wsHub, cfg.JWTSecret, websocket.NewUpgrader(cfg.CORSOrigins)),
	})

	cleanup := func() {
		if worker != nil {
			worker.Stop()
		}
		if rabbitMQ != nil {
			_ = rabbitMQ.Close()
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return r, cleanup, nil
}

func registerRoutes(r *gin.Engine, h handlers) {
	useJSONFieldNames()

	requireAuth := h.auth.AuthMiddleware()
	optionalAuth := h.auth.OptionalAuth()

	// API routes
	api := r.Group("/api/v1")
	{
		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.auth.Register)
			auth.POST("/login", h.auth.Login)
			auth.POST("/verify-email", h.auth.VerifyEmail)
			auth.POST("/forgot-password", h.auth.ForgotPassword)
			auth.POST("/reset-password", h.auth.ResetPassword)

			// Protected routes
			auth.POST("/refresh-token", requireAuth, h.auth.RefreshToken)
			auth.GET("/me", requireAuth, h.auth.GetMe)
		}

		// Discussion routes
		discussions := api.Group("/discussions")
		{
			// Public routes, private discussions need a token
			discussions.GET("", optionalAuth, h.discussion.ListDiscussions)
			discussions.GET("/:id", optionalAuth, h.discussion.GetDiscussion)
			discussions.GET("/:id/comments", optionalAuth, h.comment.GetThreadedComments)
			discussions.GET("/:id/comments/replies", optionalAuth, h.comment.GetMoreReplies)
			discussions.GET("/:id/comments/all", optionalAuth, h.comment.GetAllComments)

			// Protected routes
			discussions.POST("", requireAuth, h.discussion.CreateDiscussion)
			discussions.PUT("/:id", requireAuth, h.discussion.UpdateDiscussion)
			discussions.DELETE("/:id", requireAuth, h.discussion.DeleteDiscussion)
			discussions.PATCH("/:id/lock", requireAuth, h.discussion.ToggleLock)
			discussions.PATCH("/:id/pin", requireAuth, h.discussion.TogglePin)
			discussions.POST("/:id/bookmark", requireAuth, h.reaction.ToggleBookmark)
		}

		// Comment routes
		comments := api.Group("/comments")
		comments.Use(requireAuth)
		{
			comments.POST("", h.comment.CreateComment)
			comments.PUT("/:id", h.comment.UpdateComment)
			comments.DELETE("/:id", h.comment.DeleteComment)
			comments.POST("/:id/flag", h.comment.FlagComment)
		}

		// Reaction routes
		reactions := api.Group("/reactions")
		{
			reactions.GET("/:targetType/:targetId/status", optionalAuth, h.reaction.GetStatus)
			reactions.POST("/:targetType/:targetId/like", requireAuth, h.reaction.ToggleLike)
		}

		api.GET("/share/discussions/:id", optionalAuth, h.reaction.GetShareData)
		api.GET("/users/:id/profile-picture", h.user.GetProfilePicture)

		// Current user routes
		user := api.Group("/user")
		user.Use(requireAuth)
		{
			user.GET("/bookmarks", h.reaction.GetBookmarks)
			user.GET("/profile", h.user.GetProfile)
			user.PUT("/profile", h.user.UpdateProfile)
			user.POST("/profile/picture", h.user.UpdateProfilePicture)
			user.PUT("/password", h.user.UpdatePassword)
		}

		// Report routes
		reports := api.Group("/reports")
		reports.Use(requireAuth)
		{
			reports.POST("", h.report.CreateReport)

			staff := reports.Group("")
			staff.Use(h.auth.RequireRoles(model.RoleAdmin, model.RoleModerator))
			{
				staff.GET("", h.report.ListReports)
				staff.GET("/stats", h.report.GetReportStats)
				staff.PUT("/:id/status", h.report.UpdateReportStatus)
			}
		}

		// Admin routes
		admin := api.Group("/admin")
		admin.Use(requireAuth, h.auth.RequireRoles(model.RoleAdmin))
		{
			admin.GET("/users", h.user.ListUsers)
			admin.GET("/roles", h.user.ListRoles)
			admin.PUT("/users/:id/roles", h.user.UpdateUserRoles)
		}

		// Notification routes
		notifications := api.Group("/notifications")
		notifications.Use(requireAuth)
		{
			notifications.GET("", h.notification.GetNotifications)
			notifications.GET("/unread-count", h.notification.GetUnreadCount)
			notifications.PUT("/read-all", h.notification.MarkAllAsRead)
			notifications.PUT("/:id/read", h.notification.MarkAsRead)
			notifications.DELETE("/:id", h.notification.DeleteNotification)
		}
	}

	// WebSocket route
	if h.ws != nil {
		r.GET("/ws", gin.WrapF(h.ws))
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowCredentials = false
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{
		TranslateError: true,
	})
}

// initRedisWithRetry returns nil when Redis stays unreachable; caching is then disabled.
func initRedisWithRetry(ctx context.Context, cfg *config.Config) *util.RedisClient {
	client, err := util.WithRetry(ctx, "redis", func() (*util.RedisClient, error) {
		return util.NewRedisClient(cfg)
	}, util.ConnectRetryOptions())
	if err != nil {
		util.Logger.Warn("redis unavailable, caching disabled", zap.Error(err))
		return nil
	}
	util.Logger.Info("redis connected")
	return client
}

// initRabbitMQWithRetry returns nil when RabbitMQ stays unreachable; notifications
// are then pushed directly and email jobs are only logged.
func initRabbitMQWithRetry(ctx context.Context, cfg *config.Config) *util.RabbitMQClient {
	client, err := util.WithRetry(ctx, "rabbitmq", func() (*util.RabbitMQClient, error) {
		return util.NewRabbitMQClient(cfg)
	}, util.ConnectRetryOptions())
	if err != nil {
		util.Logger.Warn("rabbitmq unavailable, falling back to direct delivery", zap.Error(err))
		return nil
	}
	util.Logger.Info("rabbitmq connected")
	return client
}

// dropPolymorphicConstraints removes foreign keys AutoMigrate may have put on a
// column that references several tables.
func dropPolymorphicConstraints(db *gorm.DB, table, column string) {
	query := `
		SELECT tc.constraint_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
		WHERE tc.table_name = ?
		AND tc.constraint_type = 'FOREIGN KEY'
		AND kcu.column_name = ?
	`

	var constraints []struct {
		ConstraintName string `gorm:"column:constraint_name"`
	}

	if err := db.Raw(query, table, column).Scan(&constraints).Error; err != nil {
		util.Logger.Warn("failed to query foreign key constraints", zap.String("table", table), zap.Error(err))
		return
	}

	for _, constraint := range constraints {
		dropQuery := fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %q", table, constraint.ConstraintName)
		if err := db.Exec(dropQuery).Error; err != nil {
			util.Logger.Warn("failed to drop constraint", zap.String("constraint", constraint.ConstraintName), zap.Error(err))
		} else {
			util.Logger.Info("dropped foreign key constraint", zap.String("table", table), zap.String("constraint", constraint.ConstraintName))
		}
	}
}

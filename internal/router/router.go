package router

import (
	"log"
	"time"

	"stcoins/config"
	"stcoins/internal/domain"
	"stcoins/internal/handler"
	"stcoins/internal/middleware"
	"stcoins/internal/repository"
	"stcoins/internal/service"
	"stcoins/internal/ws"
	"stcoins/pkg/cloudinary"
	"stcoins/pkg/verify"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Setup wires repositories, services and routes. The returned worker is not started.
func Setup(cfg *config.Config, db *gorm.DB, cloud cloudinary.Client) (*gin.Engine, *service.MaintenanceWorker) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Server.Env == "development" {
		r.Use(gin.Logger())
	}
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	assignRepo := repository.NewAssignmentRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	rewardRepo := repository.NewRewardRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	connectedRepo := repository.NewConnectedServiceRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Services
	fcmSvc := service.NewFCMService(cfg.Firebase.ServiceAccountPath)
	if fcmSvc != nil {
		log.Printf("[notify] push notifications enabled")
	} else {
		log.Printf("[notify] push notifications disabled: set FIREBASE_SERVICE_ACCOUNT_PATH to enable")
	}
	notifSvc := service.NewNotificationService(notificationRepo, userRepo, fcmSvc)

	balanceHub := ws.NewHub()
	ledgerSvc := service.NewLedgerService(ledgerRepo)
	ledgerSvc.OnCommit(balanceHub.PublishEntry)

	spotifySvc := service.NewSpotifyService(connectedRepo)
	spotifyClient := verify.NewSpotify(verify.SpotifyOptions{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RedirectURL:  cfg.Spotify.RedirectURL,
		APIBaseURL:   cfg.Spotify.APIBaseURL,
		Timeout:      cfg.Ledger.VerifyTimeout,
	}, spotifySvc)
	spotifySvc.SetClient(spotifyClient)
	oracle := verify.NewMux()
	if cfg.Spotify.ClientID != "" {
		oracle.Register(domain.ServiceSpotify, spotifyClient)
	} else {
		log.Printf("[verify] spotify verification disabled: set SPOTIFY_CLIENT_ID to enable")
	}

	referralSvc := service.NewReferralService(referralRepo, userRepo, settingRepo, ledgerSvc, notifSvc, cfg.Ledger)
	authSvc := service.NewAuthService(cfg, userRepo, referralSvc)
	sessionSvc := service.NewSessionService(userRepo, referralSvc, ledgerSvc)
	taskSvc := service.NewTaskService(taskRepo, assignRepo, ledgerSvc, oracle, notifSvc, cfg.Ledger.VerifyTimeout)
	redemptionSvc := service.NewRedemptionService(rewardRepo, ledgerSvc, notifSvc)
	catalogSvc := service.NewCatalogService(taskRepo, rewardRepo)
	worker := service.NewMaintenanceWorker(taskSvc, referralSvc, cfg.Worker.Interval)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, sessionSvc)
	meHandler := handler.NewMeHandler(userRepo, ledgerSvc, sessionSvc)
	taskHandler := handler.NewTaskHandler(taskSvc)
	referralHandler := handler.NewReferralHandler(referralSvc)
	rewardHandler := handler.NewRewardHandler(redemptionSvc)
	notificationHandler := handler.NewNotificationHandler(notifSvc)
	spotifyHandler := handler.NewSpotifyHandler(spotifySvc, &cfg.JWT)
	uploadHandler := handler.NewUploadHandler(cloud, cfg.Cloudinary.Folder)
	adminHandler := handler.NewAdminHandler(adminRepo, auditRepo, userRepo, settingRepo, taskSvc, redemptionSvc, catalogSvc, ledgerSvc, notifSvc, connectedRepo)

	authMw := middleware.AuthRequired(&cfg.JWT)
	spendLimit := middleware.RateLimit(middleware.NewInMemoryRateLimiter(10, time.Minute))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.PATCH("/change-password", authMw, authHandler.ChangePassword)
		}

		api.GET("/tasks", taskHandler.ListTasks)
		api.GET("/task-categories", taskHandler.ListCategories)
		api.GET("/rewards", rewardHandler.ListRewards)
		api.GET("/spotify/callback", spotifyHandler.Callback)

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("/profile", meHandler.GetProfile)
			me.POST("/fcm-token", meHandler.RegisterFCMToken)
			me.GET("/balance", meHandler.GetBalance)
			me.GET("/ledger", meHandler.GetLedger)
			me.POST("/session/sync", meHandler.SyncSession)

			me.POST("/tasks/:id/start", taskHandler.StartTask)
			me.GET("/assignments", taskHandler.ListAssignments)
			me.POST("/assignments/:id/submit", taskHandler.SubmitTask)
			me.POST("/assignments/:id/reopen", taskHandler.ReopenTask)
			me.POST("/evidence", uploadHandler.UploadEvidence)

			me.GET("/referral-code", referralHandler.GetMyReferralCode)
			me.GET("/referrals", referralHandler.GetMyReferrals)
			me.POST("/referral/apply", spendLimit, referralHandler.ApplyCode)

			me.POST("/rewards/:id/redeem", spendLimit, rewardHandler.Redeem)
			me.GET("/redemptions", rewardHandler.MyRedemptions)

			me.GET("/notifications", notificationHandler.List)
			me.PUT("/notifications/:id/read", notificationHandler.MarkRead)

			me.GET("/spotify", spotifyHandler.Status)
			me.GET("/spotify/connect", spotifyHandler.Connect)
			me.POST("/spotify/refresh", spotifyHandler.Refresh)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.AdminRequired())
		{
			admin.GET("/stats", adminHandler.GetStats)
			admin.GET("/ledger", adminHandler.ListLedger)
			admin.GET("/audit-logs", adminHandler.ListAuditLogs)
			admin.GET("/users", adminHandler.ListUsers)
			admin.GET("/spotify/users", adminHandler.ListSpotifyUsers)
			admin.POST("/users/:id/points", adminHandler.AdjustPoints)
			admin.GET("/submissions", adminHandler.ListSubmissions)
			admin.POST("/submissions/:id/review", adminHandler.ReviewSubmission)
			admin.POST("/assignments/:id/credit", adminHandler.RetryCredit)
			admin.GET("/redemptions", adminHandler.ListRedemptions)
			admin.POST("/redemptions/:id/cancel", adminHandler.CancelRedemption)
			admin.POST("/redemptions/:id/fulfill", adminHandler.FulfillRedemption)
			admin.POST("/tasks", adminHandler.CreateTask)
			admin.POST("/categories", adminHandler.CreateCategory)
			admin.POST("/rewards", adminHandler.CreateReward)
			admin.GET("/settings", adminHandler.GetSettings)
			admin.PUT("/settings", adminHandler.UpdateSettings)
		}
	}

	r.GET("/ws/balance", ws.UpgradeBalanceWS(&cfg.JWT, balanceHub, ledgerSvc))

	return r, worker
}

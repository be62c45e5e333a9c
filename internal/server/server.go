// Package server assembles repositories, services and handlers into the HTTP
// application.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"taskhub/backend/internal/accesscode"
	"taskhub/backend/internal/cache"
	"taskhub/backend/internal/config"
	"taskhub/backend/internal/handlers"
	"taskhub/backend/internal/middleware"
	"taskhub/backend/internal/monitoring"
	"taskhub/backend/internal/repositories"
	"taskhub/backend/internal/services"
	"taskhub/backend/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Dependencies struct {
	Config *config.Config
	DB     *gorm.DB
	// Redis is optional. Without it tasks are read straight from the
	// database and activities are written synchronously.
	Redis  *redis.Client
	Logger *slog.Logger
}

type App struct {
	Router      *gin.Engine
	Worker      *worker.Worker
	RateLimiter *middleware.RateLimiter
	Health      *monitoring.HealthChecker

	config *config.Config
	logger *slog.Logger
}

func New(deps Dependencies) (*App, error) {
	if deps.Config == nil || deps.DB == nil {
		return nil, fmt.Errorf("server: config and database are required")
	}
	cfg := deps.Config
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	taskRepo := repositories.NewTaskRepository(deps.DB)
	projectRepo := repositories.NewProjectRepository(deps.DB)
	activityRepo := repositories.NewActivityRepository(deps.DB)
	userRepo := repositories.NewUserRepository(deps.DB)
	tokenRepo := repositories.NewTokenRepository(deps.DB)

	credentials := services.NewBcryptCredentialStore(cfg.Auth.BCryptCost)
	policy := services.NewAccessPolicy(log)
	tokens := services.NewTokenManager(services.TokenConfig{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
	})

	app := &App{
		Health: monitoring.NewHealthChecker(5 * time.Second),
		config: cfg,
		logger: log,
	}
	app.Health.Register("database", func(ctx context.Context) error {
		sqlDB, err := deps.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})

	var (
		queue      services.JobEnqueuer
		redisCache *cache.RedisCache
	)
	if deps.Redis != nil {
		redisCache = cache.NewRedisCacheFromClient(deps.Redis)
		app.Health.Register("redis", redisCache.Health)

		// Jobs are only queued when a worker consumes them; otherwise the feed
		// writes activities directly.
		if cfg.Worker.Enabled {
			queue = worker.NewJobQueue(deps.Redis)
			app.Worker = worker.NewWorker(worker.WorkerConfig{
				RedisClient:  deps.Redis,
				PollInterval: cfg.Worker.PollInterval,
				Queues:       cfg.Worker.Queues,
				Logger:       log,
			})
			app.Worker.RegisterHandler(worker.JobTypeMemberJoined, worker.MemberJoinedHandler(activityRepo))
		}
	}
	feed := services.NewActivityFeed(queue, activityRepo, log)

	var taskService services.TaskService = services.NewTaskService(services.TaskServiceDeps{
		Tasks:       taskRepo,
		Projects:    projectRepo,
		Enforcer:    accesscode.NewEnforcer(nil, taskRepo, cfg.AccessCode.MaxAttempts, log),
		Credentials: credentials,
		Policy:      policy,
		Activity:    feed,
		Logger:      log,
	})
	if redisCache != nil {
		taskCache := cache.NewTaskCache(redisCache, nil, cfg.Redis.TaskCacheTTL, log)
		cached := services.NewCachedTaskService(taskService, taskCache, policy)
		app.Health.RegisterDetail("task_cache", cached.GetCacheStats)
		taskService = cached
	}

	projectService := services.NewProjectService(projectRepo, policy, feed, log)
	teamService := services.NewTeamService(repositories.NewTeamRepository(deps.DB), userRepo, policy, log)
	dashboardService := services.NewDashboardService(projectRepo, taskRepo, activityRepo)
	authService := services.NewAuthService(userRepo, tokenRepo, credentials, tokens, log)
	registerService := services.NewRegisterService(userRepo, credentials, log)

	timeout := cfg.Server.RequestTimeout
	routes := routeHandlers{
		tasks:     handlers.NewTaskHandler(taskService, log, timeout),
		projects:  handlers.NewProjectHandler(projectService, log, timeout),
		teams:     handlers.NewTeamHandler(teamService, log, timeout),
		dashboard: handlers.NewDashboardHandler(dashboardService, log, timeout),
		auth:      handlers.NewAuthHandler(authService, log, timeout),
		refresh:   handlers.NewRefreshHandler(authService, log, timeout),
		logout:    handlers.NewLogoutHandler(authService, log, timeout),
		register:  handlers.NewRegisterHandler(registerService, log, timeout),
		authz:     middleware.AuthzMiddleware(tokens),
	}

	if cfg.RateLimit.Enabled {
		app.RateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerMin:  cfg.RateLimit.RequestsPerMin,
			BurstSize:       cfg.RateLimit.BurstSize,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
		})
		routes.limit = app.RateLimiter.Middleware()
	} else {
		routes.limit = func(c *gin.Context) { c.Next() }
	}

	app.Router = app.newRouter(routes)
	return app, nil
}

type routeHandlers struct {
	tasks     *handlers.TaskHandler
	projects  *handlers.ProjectHandler
	teams     *handlers.TeamHandler
	dashboard *handlers.DashboardHandler
	auth      *handlers.AuthHandler
	refresh   *handlers.RefreshHandler
	logout    *handlers.LogoutHandler
	register  *handlers.RegisterHandler
	authz     gin.HandlerFunc
	limit     gin.HandlerFunc
}

func (a *App) newRouter(h routeHandlers) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RecoveryWithLog(a.logger),
		middleware.RequestLogger(a.logger),
		monitoring.MetricsMiddleware(),
		cors.New(a.corsConfig()),
	)

	router.GET("/health", a.Health.HealthHandler())
	router.GET("/ready", a.Health.ReadinessHandler())
	router.GET("/live", a.Health.LivenessHandler())
	router.GET("/metrics", monitoring.MetricsHandler())

	api := router.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", h.register.Registration)
	auth.POST("/login", h.limit, h.auth.Token)
	auth.POST("/refresh", h.refresh.Refresh)
	auth.POST("/logout", h.logout.Logout)
	auth.GET("/profile", h.authz, h.auth.GetUserProfile)

	tasks := api.Group("/tasks", h.authz)
	tasks.POST("", h.tasks.CreateTask)
	tasks.GET("", h.tasks.GetTasks)
	tasks.POST("/join", h.limit, h.tasks.JoinTask)
	tasks.GET("/project/:projectId", h.tasks.GetProjectTasks)
	tasks.GET("/:id", h.tasks.GetTaskByID)
	tasks.PUT("/:id", h.tasks.UpdateTask)
	tasks.DELETE("/:id", h.tasks.DeleteTask)

	projects := api.Group("/projects", h.authz)
	projects.GET("", h.projects.GetProjects)
	projects.POST("", h.projects.CreateProject)
	projects.GET("/user/:userId", h.projects.GetUserProjects)
	projects.GET("/:id", h.projects.GetProject)
	projects.PUT("/:id", h.projects.UpdateProject)
	projects.DELETE("/:id", h.projects.DeleteProject)
	projects.POST("/:id/join", h.projects.JoinProject)

	teams := api.Group("/team", h.authz)
	teams.GET("", h.teams.GetTeams)
	teams.POST("", h.teams.CreateTeam)
	teams.GET("/:id", h.teams.GetTeam)
	teams.PUT("/:id", h.teams.UpdateTeam)
	teams.PUT("/:id/members", h.teams.AddMember)
	teams.DELETE("/:id/members/:userId", h.teams.RemoveMember)
	teams.DELETE("/:id", h.teams.DeleteTeam)

	api.GET("/dashboard", h.authz, h.dashboard.GetDashboard)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return router
}

func (a *App) corsConfig() cors.Config {
	config := cors.Config{
		AllowOrigins:     a.config.Server.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(config.AllowOrigins) == 0 {
		config.AllowOrigins = nil
		config.AllowAllOrigins = true
		config.AllowCredentials = false
	}
	return config
}

// Start launches the background worker and rate-limiter cleanup. They stop
// when ctx is cancelled or Stop is called.
func (a *App) Start(ctx context.Context) {
	if a.Worker != nil {
		a.Worker.Start(a.config.Worker.Concurrency)
	}
	if a.RateLimiter != nil {
		go a.RateLimiter.Run(ctx)
	}
}

func (a *App) Stop() {
	if a.Worker != nil {
		a.Worker.Stop()
	}
}

func (a *App) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         a.config.GetServerAddr(),
		Handler:      a.Router,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}
}

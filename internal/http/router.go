package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/helloworldit/portal/internal/auth"
	"github.com/helloworldit/portal/internal/broadcast"
	"github.com/helloworldit/portal/internal/config"
	"github.com/helloworldit/portal/internal/domain/user"
	"github.com/helloworldit/portal/internal/http/handlers"
	"github.com/helloworldit/portal/internal/http/middlewares"
	"github.com/helloworldit/portal/internal/observability"
	"github.com/helloworldit/portal/internal/repo/postgres"
	"github.com/helloworldit/portal/internal/session"
	"github.com/helloworldit/portal/internal/uploads"
)

// NewRouter wires repositories, middlewares and handlers into the gin
// engine. Everything stateful comes in as an argument so tests and the
// worker can share the pieces.
func NewRouter(cfg config.Config, log *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("portal-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(prom.GinHandleMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(8 << 20)) // biggest accepted body is a banner image

	// repositories
	jobsRepo := postgres.NewJobsRepo(pool, prom)
	usersRepo := postgres.NewUsersRepo(pool, prom)
	resetRepo := postgres.NewResetRequestsRepo(pool, jobsRepo, prom)
	noticesRepo := postgres.NewNoticesRepo(pool, prom)
	bannersRepo := postgres.NewBannersRepo(pool, prom)

	// shared infrastructure
	sessions := session.NewRedisStore(rdb)
	jwtManager := auth.NewManager(cfg.SessionSecret, cfg.SessionTTL())
	broker := broadcast.NewRedisBroker(rdb, log)
	images := uploads.NewStore(cfg.UploadDir, cfg.UploadWebPrefix)

	authMW := middlewares.NewAuthMiddleware(jwtManager, sessions)
	loginLimiter := middlewares.NewRateLimiter(10, time.Minute)
	submitLimiter := middlewares.NewRateLimiter(5, time.Minute)
	// every resolve sends a mail, so cap the rate per admin
	resolveLimiter := middlewares.NewRateLimiter(30, time.Minute)

	// handlers
	pingDB := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return pool.Ping(ctx)
	}
	pingRedis := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return rdb.Ping(ctx).Err()
	}

	healthHandler := handlers.NewHealthHandler(pingDB, pingRedis)
	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, images, jwtManager, sessions, cfg, log)
	usersHandler := handlers.NewUsersHandler(usersRepo, images, log)
	resetHandler := handlers.NewResetRequestsHandler(resetRepo, usersRepo, broker, log)
	streamHandler := handlers.NewStreamHandler(broker, log)
	noticesHandler := handlers.NewNoticesHandler(noticesRepo, log)
	bannersHandler := handlers.NewBannersHandler(bannersRepo, images, log)

	// ops
	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/readyz", healthHandler.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// uploaded images
	r.Static(cfg.UploadWebPrefix, cfg.UploadDir)

	// public surface
	r.POST("/auth/register", authHandler.Register)
	r.POST("/auth/login",
		middlewares.RequireJSON(),
		loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP),
		authHandler.Login)
	r.POST("/password-requests",
		middlewares.RequireJSON(),
		submitLimiter.RateLimiterMiddleware(middlewares.KeyByIP),
		resetHandler.Submit)
	r.GET("/banners", bannersHandler.ListPublic)
	r.POST("/banners/:id/click", bannersHandler.Click)

	// any authenticated account
	authed := r.Group("/", authMW.RequireAuth())
	authed.POST("/auth/logout", authHandler.Logout)
	authed.GET("/auth/me", authHandler.Me)
	authed.GET("/notices", noticesHandler.ListStudent)

	// admin surface
	admin := r.Group("/admin", authMW.RequireAuth(), authMW.RequireRole(user.RoleAdmin))
	{
		admin.GET("/users", usersHandler.List)
		admin.GET("/users/:id", usersHandler.Get)
		admin.PUT("/users/:id", usersHandler.Update)
		admin.DELETE("/users/:id", usersHandler.Deactivate)

		admin.GET("/password-requests", resetHandler.List)
		admin.POST("/password-requests/:id/resolve",
			middlewares.RequireJSON(),
			resolveLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP),
			resetHandler.Resolve)
		admin.GET("/password-requests/stream", streamHandler.Stream)

		admin.GET("/notices", noticesHandler.ListAdmin)
		admin.POST("/notices", middlewares.RequireJSON(), noticesHandler.Create)
		admin.GET("/notices/:id", noticesHandler.Get)
		admin.PUT("/notices/:id", middlewares.RequireJSON(), noticesHandler.Update)
		admin.POST("/notices/:id/deactivate", noticesHandler.Deactivate)
		admin.DELETE("/notices/:id", noticesHandler.Delete)

		admin.GET("/banners", bannersHandler.ListAdmin)
		admin.POST("/banners", bannersHandler.Create)
		admin.GET("/banners/:id", bannersHandler.Get)
		admin.PUT("/banners/:id", bannersHandler.Update)
		admin.POST("/banners/:id/deactivate", bannersHandler.Deactivate)
		admin.DELETE("/banners/:id", bannersHandler.Delete)
	}

	return r
}

package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/gigbook/internal/app"
	iauth "github.com/charlesng35/gigbook/internal/auth"
	"github.com/charlesng35/gigbook/internal/cache"
	"github.com/charlesng35/gigbook/internal/handlers"
	"github.com/charlesng35/gigbook/internal/middleware"
	"github.com/charlesng35/gigbook/internal/monitoring"
	"github.com/charlesng35/gigbook/internal/realtime"
)

// Dependencies bundles everything the router needs.
type Dependencies struct {
	Config    *app.Config
	JWT       *iauth.JWTService
	Services  *Services
	Hub       *realtime.Hub
	RateStore middleware.RateStore
	// Cache backs Idempotency-Key replays; nil disables them.
	Cache  cache.Store
	Health *monitoring.HealthManager
	Jobs   *monitoring.JobTracker
}

// NewRouter builds the Gin engine, wires middleware and registers the booking routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Services == nil {
		return nil, fmt.Errorf("services must be provided")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("realtime hub must be provided")
	}
	svc := deps.Services

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins...))
	r.Use(middleware.RateLimit(deps.RateStore, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window))

	// Health endpoints (public)
	health := handlers.NewHealthHandler(deps.Health, cfg.Monitoring.Health.Enabled)
	r.GET("/health", health.Summary)
	r.GET("/health/live", health.Live)
	r.GET("/health/ready", health.Ready)

	if cfg.Monitoring.Prometheus.Enabled {
		r.GET(metricsEndpoint(cfg), gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT, svc.Users))
	api.Use(middleware.Idempotency(deps.Cache, cfg.Server.IdempotencyTTL))

	api.GET("/me", handlers.NewMeHandler(svc.Users).Get)

	gigHandler := handlers.NewGigHandler(svc.Gigs)
	gigs := api.Group("/gigs")
	{
		gigs.POST("", gigHandler.Create)
		gigs.GET("", gigHandler.List)
		gigs.GET("/:id", gigHandler.Get)
		gigs.PATCH("/:id", gigHandler.Update)
		gigs.POST("/:id/publish", gigHandler.Publish)
		gigs.POST("/:id/cancel", gigHandler.Cancel)
		gigs.POST("/:id/roles", gigHandler.AddRole)
	}

	musicianHandler := handlers.NewMusicianHandler(svc.Musicians, svc.Views)
	musicians := api.Group("/musicians")
	{
		musicians.PUT("/me/profile", musicianHandler.UpsertProfile)
		musicians.GET("/me/suspension", musicianHandler.Suspension)
		musicians.GET("/me/invites/pending", musicianHandler.PendingInvites)
		musicians.GET("/me/gigs/confirmed", musicianHandler.ConfirmedGigs)
		musicians.GET("/:id/profile", musicianHandler.GetProfile)
	}

	roleHandler := handlers.NewRoleHandler(svc.Candidates, svc.Invites, svc.Confirmations)
	roles := api.Group("/roles")
	{
		roles.GET("/:id/candidates", roleHandler.Candidates)
		roles.POST("/:id/invites", roleHandler.DispatchInvites)
		roles.GET("/:id/invites", roleHandler.ListInvites)
		roles.POST("/:id/confirmations", roleHandler.Confirm)
		roles.GET("/:id/confirmation", roleHandler.Confirmation)
	}

	inviteHandler := handlers.NewInviteHandler(svc.Invites)
	ratingHandler := handlers.NewRatingHandler(svc.Ratings)
	invites := api.Group("/invites")
	{
		invites.GET("/:id", inviteHandler.Get)
		invites.POST("/:id/accept", inviteHandler.Accept)
		invites.POST("/:id/decline", inviteHandler.Decline)
		invites.POST("/:id/withdraw", inviteHandler.Withdraw)
		invites.POST("/:id/ratings", ratingHandler.Submit)
	}

	api.POST("/confirmations/:id/cancel", handlers.NewConfirmationHandler(svc.Confirmations).Cancel)

	users := api.Group("/users")
	{
		users.GET("/:id/ratings", ratingHandler.List)
		users.GET("/:id/ratings/summary", ratingHandler.Summary)
	}

	notificationHandler := handlers.NewNotificationHandler(svc.Notifications)
	notifications := api.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
		notifications.DELETE("/:id", notificationHandler.Delete)
	}

	api.GET("/realtime", handlers.NewRealtimeHandler(deps.Hub, realtime.DefaultStreams()...).Stream)

	monitoringHandler := handlers.NewMonitoringHandler(deps.Jobs, cfg.Monitoring.Prometheus.Enabled, metricsEndpoint(cfg))
	api.GET("/monitoring/summary", monitoringHandler.Summary)

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func metricsEndpoint(cfg *app.Config) string {
	endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
	if endpoint == "" {
		return "/metrics"
	}
	return endpoint
}

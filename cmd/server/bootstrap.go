package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/gigbook/internal/api"
	"github.com/charlesng35/gigbook/internal/app"
	"github.com/charlesng35/gigbook/internal/app/maintenance"
	iauth "github.com/charlesng35/gigbook/internal/auth"
	"github.com/charlesng35/gigbook/internal/cache"
	"github.com/charlesng35/gigbook/internal/database"
	"github.com/charlesng35/gigbook/internal/events"
	"github.com/charlesng35/gigbook/internal/middleware"
	"github.com/charlesng35/gigbook/internal/monitoring"
	"github.com/charlesng35/gigbook/internal/monitoring/checks"
	"github.com/charlesng35/gigbook/internal/realtime"
	"github.com/charlesng35/gigbook/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Redis      *cache.RedisStore
	Dispatcher *events.Dispatcher
	Hub        *realtime.Hub
	Cleaner    *maintenance.Cleaner
	Cache      cache.Store
	RateStore  middleware.RateStore
	Router     *gin.Engine
}

// bootstrapRuntime initialises databases, caches, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed operations", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	if stack.Redis != nil {
		stack.Cache = stack.Redis
	} else {
		stack.Cache = dbStore
	}
	stack.RateStore = middleware.NewStoreRateStore(stack.Cache)

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Dispatcher, err = events.NewDispatcher(stack.DB, cfg.Events.DispatcherOptions()...)
	if err != nil {
		return nil, fmt.Errorf("initialise event dispatcher: %w", err)
	}

	stack.Hub = realtime.NewHub(realtime.WithAllowedOrigins(cfg.Server.AllowedOrigins))

	svc, err := api.NewServices(stack.DB, stack.Dispatcher, stack.Hub, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialise services: %w", err)
	}

	jobs := monitoring.NewJobTracker()
	if cfg.Maintenance.Enabled {
		opts := []maintenance.Option{
			maintenance.WithTracker(jobs),
			maintenance.WithNotificationPruner(svc.Notifications),
			maintenance.WithBatchSize(cfg.Events.BatchSize),
			maintenance.WithRetention(cfg.Maintenance.NotificationRetention, cfg.Maintenance.EventRetention),
			maintenance.WithSchedules(cfg.Maintenance.RedeliverySchedule, cfg.Maintenance.NotificationSchedule, cfg.Maintenance.CacheSchedule),
		}
		if stack.Redis == nil {
			opts = append(opts, maintenance.WithCachePurger(dbStore))
		}
		stack.Cleaner = maintenance.NewCleaner(stack.Dispatcher, opts...)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:    cfg,
		JWT:       jwtSvc,
		Services:  svc,
		Hub:       stack.Hub,
		RateStore: stack.RateStore,
		Cache:     stack.Cache,
		Health:    newHealthManager(cfg, stack, jobs),
		Jobs:      jobs,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func newHealthManager(cfg *app.Config, stack *runtimeStack, jobs *monitoring.JobTracker) *monitoring.HealthManager {
	timeout := cfg.Monitoring.Health.Timeout
	manager := monitoring.NewHealthManager()
	manager.RegisterLiveness(monitoring.NewCheck("process", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(checks.Database(stack.DB, timeout))
	if stack.Redis != nil {
		manager.RegisterReadiness(checks.Redis(stack.Redis, true, timeout).NonCritical())
	} else {
		manager.RegisterReadiness(checks.Redis(nil, cfg.Cache.Redis.Enabled, timeout).NonCritical())
	}
	if stack.Dispatcher != nil {
		manager.RegisterReadiness(checks.Outbox(stack.Dispatcher, cfg.Events.MaxLag, timeout))
	}
	if cfg.Maintenance.Enabled {
		manager.RegisterReadiness(checks.Maintenance(jobs, cfg.Maintenance.StaleAfter).NonCritical())
	}
	return manager
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
		// Final redelivery pass so events written during shutdown are not left for the next boot.
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown run failed", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.OpenConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}

func shutdownTimeout(cfg *app.Config) time.Duration {
	if cfg.Server.ShutdownTimeout > 0 {
		return cfg.Server.ShutdownTimeout
	}
	return 15 * time.Second
}

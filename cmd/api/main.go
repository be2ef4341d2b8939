package main

import (
	"context"
	"fmt"
	"log"
	"time"

	common_api "go-reports/internal/common/api"
	"go-reports/internal/config"
	"go-reports/internal/database"
	"go-reports/internal/evaluation/evaluator"
	"go-reports/internal/evaluation/store"
	"go-reports/internal/features/authorization"
	"go-reports/internal/features/report"
	"go-reports/internal/features/settings"
	"go-reports/internal/features/system"
	"go-reports/internal/logger"
	"go-reports/internal/metrics"
	"go-reports/internal/middleware"
	"go-reports/pkg/utils"

	_ "go-reports/docs" // Import swagger docs

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          common_api.ErrorHandler,
	})

	// Use custom CORS middleware
	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),    // Cast to Interface
		fx.ResultTags(`group:"routes"`), // Add to Group
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	log.Printf("Registering %d routes...\n", len(routes))
	for i, route := range routes {
		log.Printf("Setting up route %d: %T\n", i+1, route)
		route.Setup(app)
	}
	log.Println("All routes registered successfully")
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// NewInstanceStore puts the Mongo store behind the query timeout currently configured.
func NewInstanceStore(mongoStore *store.MongoStore, holder *config.SettingsHolder, collector *metrics.Collector) store.InstanceStore {
	timeout := func() time.Duration { return holder.Load().QueryTimeout }
	return store.NewGuarded(mongoStore, timeout, collector)
}

// NewDatabasePinger exposes the connection to the readiness check.
func NewDatabasePinger(db *database.MongodbDB) system.Pinger {
	return db
}

func NewEngine(st store.InstanceStore, holder *config.SettingsHolder, collector *metrics.Collector, logger *zap.Logger) *evaluator.Engine {
	return evaluator.NewEngine(st, holder, collector, logger)
}

// InitializeIndexes ensures that necessary database indexes are created
func InitializeIndexes(lc fx.Lifecycle, mongoStore *store.MongoStore, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := mongoStore.EnsureIndexes(ctx); err != nil {
					logger.Warn("Failed to ensure instance indexes", zap.Error(err))
				}
			}()
			return nil
		},
	})
}

// @title           Report Evaluation API
// @version         1.0
// @description     Evaluates saved and ad hoc process and decision reports.

// @host            localhost:8000
// @BasePath        /
func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,
			config.NewSettingsHolder,

			// Initialize Database
			database.NewDatabase,
			NewDatabasePinger,

			// Initialize Logger
			logger.NewDBLogWriter,
			logger.NewLogger,

			metrics.NewCollector,

			// Initialize Fiber Server
			NewFiberServer,

			// Evaluation engine
			store.NewMongoStore,
			NewInstanceStore,
			fx.Annotate(NewEngine, fx.As(new(report.Evaluator))),

			// Initialize Repository
			authorization.NewAuthorizationRepository,
			report.NewReportRepository,
			settings.NewSettingsRepository,

			// Initialize Service
			authorization.NewAuthorizationService,
			report.NewReportService,
			settings.NewSettingsService,

			// Initialize Controller
			report.NewReportController,
			settings.NewSettingsController,

			// Initialize API Routes
			AsRoute(report.NewReportApi),
			AsRoute(settings.NewSettingsApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewSwaggerApi),
			AsRoute(system.NewMetricsApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			func(cfg *config.Config) {
				utils.SetSecret(cfg.JWTSecret)
			},
			// Register Routes & Start
			RegisterAllRoutesWithAnnotation,
			StartServer,
			func(lc fx.Lifecycle, settingsService settings.SettingsService) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return settingsService.InitializeScheduler(ctx)
					},
					OnStop: func(ctx context.Context) error {
						return settingsService.StopScheduler()
					},
				})
			},
			InitializeIndexes,
		),
	)

	app.Run()
}

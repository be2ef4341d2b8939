package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go-reports/internal/config"
	"go-reports/internal/database"
	"go-reports/internal/evaluation/store"
	"go-reports/internal/features/authorization"
	"go-reports/internal/features/report"
	"go-reports/internal/logger"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Seed runs the database seeding
func Seed(
	lc fx.Lifecycle,
	cfg *config.Config,
	mongoStore *store.MongoStore,
	reportRepo report.ReportRepository,
	authRepo authorization.AuthorizationRepository,
	logger *zap.Logger,
	shutdowner fx.Shutdowner,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				exitCode := 0
				defer func() {
					if err := shutdowner.Shutdown(fx.ExitCode(exitCode)); err != nil {
						logger.Error("Failed to shutdown", zap.Error(err))
					}
				}()

				logger.Info("Starting database seeding", zap.String("file", cfg.SeedFile))

				fixtures, err := LoadFixtures(cfg.SeedFile)
				if err != nil {
					logger.Error("Failed to load fixtures", zap.Error(err))
					exitCode = 1
					return
				}

				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				defer cancel()

				if err := mongoStore.EnsureIndexes(ctx); err != nil {
					logger.Warn("Failed to ensure instance indexes", zap.Error(err))
				}
				if err := NewSeeder(mongoStore, reportRepo, authRepo, logger).Seed(ctx, fixtures); err != nil {
					logger.Error("Seeding failed", zap.Error(err))
					exitCode = 1
					return
				}
				logger.Info("Database seeding completed")
			}()
			return nil
		},
	})
}

func main() {
	file := flag.String("file", "", "fixture file, defaults to SEED_FILE")
	dryRun := flag.Bool("dry-run", false, "evaluate the fixture reports in memory instead of writing to the database")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *file != "" {
		cfg.SeedFile = *file
	}

	if *dryRun {
		runDryRun(cfg)
		return
	}

	app := fx.New(
		fx.Supply(cfg),
		fx.Provide(
			database.NewDatabase,
			logger.NewDBLogWriter,
			logger.NewLogger,
			store.NewMongoStore,
			report.NewReportRepository,
			authorization.NewAuthorizationRepository,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(Seed),
	)

	app.Run()
}

func runDryRun(cfg *config.Config) {
	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	fixtures, err := LoadFixtures(cfg.SeedFile)
	if err != nil {
		zapLogger.Fatal("Failed to load fixtures", zap.Error(err))
	}
	if err := DryRun(context.Background(), fixtures, config.NewSettingsHolder(cfg), zapLogger); err != nil {
		zapLogger.Fatal("Dry run failed", zap.Error(err))
	}
	zapLogger.Info("Dry run completed", zap.Int("reports", len(fixtures.Reports)))
}

package logger

import (
	"context"

	"go-reports/internal/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewLogger now requires Database to pass to the DB Writer
func NewLogger(lc fx.Lifecycle, cfg *config.Config, dbWriter *DBLogWriter) (*zap.Logger, error) {

	// 1. Setup Base Config (Console/JSON)
	var zapConfig zap.Config
	if cfg.Environment == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Important: Enable Caller to get Function Name
	zapConfig.EncoderConfig.FunctionKey = "func"

	// Build the base logger
	baseLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	// 2. Wrap the Core (sends to both console and DB)
	finalCore := NewDBCore(baseLogger.Core(), dbWriter)

	// 3. Return new Logger with AddCaller enabled
	logger := zap.New(finalCore, zap.AddCaller())

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = logger.Sync()
			return dbWriter.Close(ctx)
		},
	})
	return logger, nil
}

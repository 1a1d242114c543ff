// Package logging builds the root zap logger every component derives its
// named logger from.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"syncdal/internal/config"
)

// NewLogger builds the root logger from the logging configuration.
// Development environments start from zap's development config, everything
// else from its production config (which samples); in both, the level and
// the encoding come from the logging configuration.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: invalid level %q: %w", cfg.Logging.Level, err)
	}

	var zapCfg zap.Config
	if cfg.IsDevelopment() {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = cfg.Logging.Encoding

	logger, err := zapCfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("logging: building logger: %w", err)
	}
	return logger.Named("syncdal").With(
		zap.String("environment", string(cfg.Environment)),
	), nil
}

package mzap

import (
	"log"
	"os"

	"github.com/harborgrid-justin/cadcore/common/mlog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitializeLogger builds the process-wide logger, honoring ENV_NAME and LOG_LEVEL.
//
//nolint:ireturn
func InitializeLogger() mlog.Logger {
	var zapCfg zap.Config

	if os.Getenv("ENV_NAME") == "production" {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if val, ok := os.LookupEnv("LOG_LEVEL"); ok {
		var lvl zapcore.Level
		if err := lvl.Set(val); err != nil {
			log.Printf("invalid LOG_LEVEL, falling back to info: %v", err)

			lvl = zapcore.InfoLevel
		}

		zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	zapCfg.DisableStacktrace = true

	logger, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}

	sugar := logger.Sugar()
	sugar.Infof("log level is %v", zapCfg.Level)

	return &ZapWithTraceLogger{Logger: sugar}
}

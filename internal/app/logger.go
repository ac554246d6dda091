package app

import (
	"fmt"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "clinic-scheduler"

// NewLogger собирает логгер клиники. В production JSON, иначе консоль с цветными уровнями.
// Время пишется по региональным часам, в тех же сутках, что и слоты с записями.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Environment == "production" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.EncoderConfig = encoderConfig(cfg.Environment, cfg.Timezone)

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	zcfg.OutputPaths = []string{"stdout"}
	zcfg.InitialFields = map[string]any{
		"service":     serviceName,
		"environment": cfg.Environment,
		"timezone":    cfg.Timezone.String(),
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func encoderConfig(env string, loc *time.Location) zapcore.EncoderConfig {
	var ec zapcore.EncoderConfig
	if env == "production" {
		ec = zap.NewProductionEncoderConfig()
		ec.TimeKey = "time"
	} else {
		ec = zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	ec.EncodeTime = regionalTimeEncoder(loc)
	return ec
}

func regionalTimeEncoder(loc *time.Location) zapcore.TimeEncoder {
	if loc == nil {
		loc = time.UTC
	}
	return func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.In(loc).Format("2006-01-02T15:04:05.000Z07:00"))
	}
}

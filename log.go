package basicauth

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger returns a JSON logger writing to stdout and, when path is set,
// to a rotated file at path.
func NewLogger(path string) *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.Lock(os.Stdout), zap.InfoLevel),
	}
	if path != "" {
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     7, // days
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, zap.InfoLevel))
	}
	return zap.New(zapcore.NewTee(cores...))
}

func nopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

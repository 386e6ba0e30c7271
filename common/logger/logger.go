package logger

import (
	"context"
	"io"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It is a no-op logger until Initialize runs
// so packages can log from tests without setup.
var Log = zap.NewNop()

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// Initialize builds Log for env ("production" gives JSON with ISO8601
// timestamps, anything else the colored development encoder).
func Initialize(env string) (*zap.Logger, error) {
	return InitializeWithWriter(env, nil)
}

// InitializeWithWriter is Initialize plus an optional extra sink, used for
// the CloudWatch Logs writer. The extra sink always receives JSON.
func InitializeWithWriter(env string, extra io.Writer) (*zap.Logger, error) {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if extra == nil {
		l, err := config.Build()
		if err != nil {
			return nil, err
		}
		Log = l
		return l, nil
	}

	level := zap.NewAtomicLevelAt(config.Level.Level())
	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(config.EncoderConfig), zapcore.AddSync(os.Stdout), level)

	jsonConfig := config.EncoderConfig
	jsonConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	extraCore := zapcore.NewCore(zapcore.NewJSONEncoder(jsonConfig), zapcore.AddSync(extra), level)

	Log = zap.New(zapcore.NewTee(consoleCore, extraCore), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return Log, nil
}

// FromContext returns Log annotated with the request id carried by a gin
// context, or Log itself.
func FromContext(ctx context.Context) *zap.Logger {
	if gc, ok := ctx.(*gin.Context); ok {
		if rid := gc.GetString(RequestIDKey); rid != "" {
			return Log.With(zap.String(RequestIDKey, rid))
		}
	}
	if rid, ok := ctx.Value(requestIDCtxKey{}).(string); ok && rid != "" {
		return Log.With(zap.String(RequestIDKey, rid))
	}
	return Log
}

type requestIDCtxKey struct{}

// WithRequestID stores rid on a plain context so FromContext can find it
// after the gin context is gone.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey{}, rid)
}

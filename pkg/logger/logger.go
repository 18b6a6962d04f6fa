// Package logger builds the process-wide slog logger and the attribute helpers used by every component.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Module provides *slog.Logger, *zap.Logger and *HTTPLogger.
var Module = fx.Module("logger",
	fx.Provide(
		NewLogger,
		NewZap,
		NewHTTPLogger,
	),
)

// Scope tags log records with the emitting component.
func Scope(name string) slog.Attr {
	return slog.String("scope", name)
}

// Error attaches an error under the "error" key.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates the application logger. LOG_LEVEL selects the level,
// GO_ENV=production switches to JSON output.
func NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFromEnv()}

	var handler slog.Handler
	if os.Getenv("GO_ENV") == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

// NewZap creates the zap logger used by the migrator, honouring the same LOG_LEVEL.
func NewZap() (*zap.Logger, error) {
	var lvl zapcore.Level
	switch levelFromEnv() {
	case slog.LevelDebug:
		lvl = zapcore.DebugLevel
	case slog.LevelWarn:
		lvl = zapcore.WarnLevel
	case slog.LevelError:
		lvl = zapcore.ErrorLevel
	default:
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewDevelopmentConfig()
	if os.Getenv("GO_ENV") == "production" {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// HTTPLogger writes one JSON access-log record per request. With HTTP_LOG_PATH set records go
// to a size-rotated file; without it they are dropped.
type HTTPLogger struct {
	z      *zap.Logger
	closer io.Closer
}

// NewHTTPLogger opens the rotated access log named by HTTP_LOG_PATH. HTTP_LOG_MAX_SIZE_MB,
// HTTP_LOG_MAX_BACKUPS and HTTP_LOG_MAX_AGE_DAYS tune rotation.
func NewHTTPLogger(lc fx.Lifecycle) *HTTPLogger {
	path := os.Getenv("HTTP_LOG_PATH")
	if path == "" {
		return &HTTPLogger{z: zap.NewNop()}
	}

	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    envInt("HTTP_LOG_MAX_SIZE_MB", 100),
		MaxBackups: envInt("HTTP_LOG_MAX_BACKUPS", 5),
		MaxAge:     envInt("HTTP_LOG_MAX_AGE_DAYS", 28),
		Compress:   true,
	}
	h := newHTTPLogger(zapcore.AddSync(w), w)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return h.Close()
		},
	})
	return h
}

// NewHTTPLoggerTo writes access records to w (tests).
func NewHTTPLoggerTo(w io.Writer) *HTTPLogger {
	return newHTTPLogger(zapcore.AddSync(w), nil)
}

func newHTTPLogger(ws zapcore.WriteSyncer, closer io.Closer) *HTTPLogger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.MessageKey = "msg"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(ws), zapcore.InfoLevel)
	return &HTTPLogger{z: zap.New(core), closer: closer}
}

// LogRequest records one served request.
func (h *HTTPLogger) LogRequest(ip, method, uri string, status int, latency time.Duration, userAgent, requestID string) {
	h.z.Info("request",
		zap.String("ip", ip),
		zap.String("method", method),
		zap.String("uri", uri),
		zap.Int("status", status),
		zap.Duration("latency_ms", latency),
		zap.String("user_agent", userAgent),
		zap.String("request_id", requestID),
	)
}

// Close flushes and releases the log file, if any.
func (h *HTTPLogger) Close() error {
	_ = h.z.Sync()
	if h.closer == nil {
		return nil
	}
	return h.closer.Close()
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

package observability

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/kanban-service/internal/auth"
	"github.com/spec-kit/kanban-service/internal/config"
	apperrors "github.com/spec-kit/kanban-service/pkg/util/errorutil"
)

const maskedValue = "***"

var sensitiveKeys = map[string]struct{}{
	"password":        {},
	"hashed_password": {},
	"access_token":    {},
}

// NewLogger creates a structured zap.Logger configured via env settings.
func NewLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(strings.ToLower(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:   "message",
			LevelKey:     "level",
			TimeKey:      "ts",
			CallerKey:    "caller",
			EncodeLevel:  zapcore.LowercaseLevelEncoder,
			EncodeTime:   zapcore.ISO8601TimeEncoder,
			EncodeCaller: zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapCfg.Build()
}

// RequestLogger logs one line per request and feeds the request metrics.
// Request bodies are logged with credentials masked.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			status = apperrors.ToDomainError(err).HTTPStatus
		}
		route := c.Route().Path
		metrics.RecordRequest(route, c.Method(), status, duration)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", duration),
			zap.String("ip", c.IP()),
		}
		if principal, ok := auth.PrincipalFromContext(c); ok && principal.User != nil {
			fields = append(fields, zap.String("user_id", principal.UserID()))
		}
		if body := c.Body(); len(body) > 0 {
			if masked, ok := MaskBody(body); ok {
				fields = append(fields, zap.String("body", masked))
			}
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
		return err
	}
}

// MaskBody replaces credential fields of a JSON object body. Bodies that are
// not JSON objects are reported as not loggable.
func MaskBody(body []byte) (string, bool) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}
	for key := range payload {
		if _, ok := sensitiveKeys[strings.ToLower(key)]; ok {
			payload[key] = maskedValue
		}
	}
	masked, err := json.Marshal(payload)
	if err != nil {
		return "", false
	}
	return string(masked), true
}

package log

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"pasti/internal/core"
)

type ContextKey string

const LoggerContextKey ContextKey = "logger"

// Middleware puts logger into every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext extracts a logger from the request context, falling back to
// the slog default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

// RequestIDMiddleware enriches the context logger with the request id.
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).With(FieldRequestID, extractRequestID(r))
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StructuredLogger emits the tracker's domain events.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPEnd logs a completed request at a level derived from its status.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, requestID string, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 500 {
		level = slog.LevelError
	} else if statusCode >= 400 {
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithRequestID(requestID).
		WithComponent(ComponentHTTP)

	sl.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogFoodRegistered(ctx context.Context, f core.FoodItem, catalogSize int) {
	fields := NewFields().
		WithFood(f.Name, f.CaloriesPer100g, f.Portion).
		WithOperation(OpCreate).
		WithComponent(ComponentTracker).
		ToSlice()
	fields = append(fields, "catalog_size", catalogSize)
	sl.logger.InfoContext(ctx, "Food registered", fields...)
}

func (sl *StructuredLogger) LogMealLogged(ctx context.Context, user string, e core.MealEntry) {
	fields := NewFields().
		WithUser(user).
		WithMeal(e.Date, e.Slot, e.FoodName, e.QuantityGrams, e.Calories).
		WithOperation(OpAppend).
		WithComponent(ComponentTracker)
	sl.logger.InfoContext(ctx, "Meal logged", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogWeightLogged(ctx context.Context, user string, s core.WeightSample) {
	fields := NewFields().
		WithUser(user).
		WithWeight(s.Date, s.WeightKg).
		WithOperation(OpAppend).
		WithComponent(ComponentTracker)
	sl.logger.InfoContext(ctx, "Weight logged", fields.ToSlice()...)
}

// LogError logs err with its category. fields may be nil.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	all := fields.
		WithError(err).
		WithErrorType(ErrorType(err)).
		WithOperation(operation).
		WithComponent(component)
	sl.logger.ErrorContext(ctx, msg, all.ToSlice()...)
}

// ErrorType places err in one of the ErrorType categories.
func ErrorType(err error) string {
	var (
		pe *core.ParseError
		se *core.StorageError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, core.ErrDuplicateFood):
		return ErrorTypeConflict
	case errors.Is(err, core.ErrUnknownUser), errors.Is(err, core.ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, core.ErrValidation):
		return ErrorTypeValidation
	case errors.As(err, &pe):
		return ErrorTypeParse
	case errors.As(err, &se):
		return ErrorTypeStorage
	default:
		return ErrorTypeInternal
	}
}

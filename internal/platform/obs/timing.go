package obs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type ctxKey string

const RequestIDKey ctxKey = "req_id"

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func RequestID(ctx context.Context) string {
	reqID, _ := ctx.Value(RequestIDKey).(string)
	return reqID
}

// Time logs the duration of an operation through the global zap logger.
// Use as: defer obs.Time(ctx, "op")(&err)
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()
	reqID := RequestID(ctx)

	return func(errp *error) {
		fields := []zap.Field{
			zap.String("req_id", reqID),
			zap.String("op", name),
			zap.Duration("dur", time.Since(start)),
		}

		if errp != nil && *errp != nil {
			zap.L().Warn("operation failed", append(fields, zap.Error(*errp))...)
			return
		}
		zap.L().Debug("operation done", fields...)
	}
}

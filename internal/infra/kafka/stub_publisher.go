package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/renthol/rental-service/internal/core/domain"
	"github.com/renthol/rental-service/internal/core/port"
	"github.com/renthol/rental-service/internal/infra/logger"
)

// StubRecorder logs activity entries instead of sending them to Kafka.
// Useful when no brokers are configured.
type StubRecorder struct {
	logger *zap.Logger
}

// NewStubRecorder constructs a development-friendly activity recorder.
func NewStubRecorder(log *zap.Logger) *StubRecorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubRecorder{logger: log}
}

// Record logs the entry with masked PII.
func (r *StubRecorder) Record(_ context.Context, entry domain.ActivityEntry) error {
	occurredAt := entry.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	fields := []zap.Field{
		zap.String("action", entry.Action),
		zap.String("status", string(entry.Status)),
		zap.String("email", logger.MaskEmail(entry.Email)),
		zap.String("ip", logger.MaskIP(entry.IP)),
		zap.Time("occurred_at", occurredAt.UTC()),
	}
	if entry.UserID != nil {
		fields = append(fields, zap.String("user_id", *entry.UserID))
	}
	if entry.Detail != "" {
		fields = append(fields, zap.String("detail", entry.Detail))
	}

	r.logger.Info("activity recorded", fields...)
	return nil
}

var _ port.ActivityRecorder = (*StubRecorder)(nil)

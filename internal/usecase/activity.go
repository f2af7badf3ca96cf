package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/renthol/rental-service/internal/core/domain"
	"github.com/renthol/rental-service/internal/core/port"
	"github.com/renthol/rental-service/internal/infra/logger"
)

// RequestMeta carries the caller context recorded on the audit trail.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// recordActivity publishes an audit entry. Publishing is best effort: a
// failure is logged and the triggering operation proceeds unaffected.
func recordActivity(ctx context.Context, recorder port.ActivityRecorder, log *zap.Logger, entry domain.ActivityEntry) {
	if recorder == nil {
		return
	}

	if entry.EventID == "" {
		entry.EventID = uuid.NewString()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	if err := recorder.Record(ctx, entry); err != nil {
		log.Warn("failed to record activity",
			zap.String("action", entry.Action),
			zap.String("email", logger.MaskEmail(entry.Email)),
			zap.Error(err),
		)
	}
}

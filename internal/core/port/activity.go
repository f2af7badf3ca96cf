package port

import (
	"context"

	"github.com/renthol/rental-service/internal/core/domain"
)

// ActivityRecorder publishes account activity entries to the audit trail.
// Recording failures must never fail the operation being audited; callers
// log and continue.
type ActivityRecorder interface {
	Record(ctx context.Context, entry domain.ActivityEntry) error
}

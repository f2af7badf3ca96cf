package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/renthol/rental-service/internal/core/domain"
	"github.com/renthol/rental-service/internal/core/port"
	"github.com/renthol/rental-service/internal/infra/config"
	"github.com/renthol/rental-service/internal/infra/logger"
)

const (
	schemaVersion     = "1.0"
	activityEventType = "account.activity"
)

// ActivityPublisher implements port.ActivityRecorder using Kafka.
type ActivityPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewActivityPublisher constructs a Kafka-backed activity recorder.
func NewActivityPublisher(producer *Producer, appCfg config.AppSettings, log *zap.Logger) *ActivityPublisher {
	return &ActivityPublisher{producer: producer, appCfg: appCfg, logger: log}
}

type activityEnvelope struct {
	EventID    string                `json:"event_id"`
	EventType  string                `json:"event_type"`
	UserID     string                `json:"user_id,omitempty"`
	Email      string                `json:"email,omitempty"`
	Action     string                `json:"action"`
	Status     domain.ActivityStatus `json:"status"`
	Detail     string                `json:"detail,omitempty"`
	IP         string                `json:"ip,omitempty"`
	UserAgent  string                `json:"user_agent,omitempty"`
	OccurredAt time.Time             `json:"occurred_at"`
	Version    string                `json:"version"`
	Metadata   map[string]string     `json:"metadata,omitempty"`
}

// Record publishes the activity entry to the audit topic. PII is masked
// before it leaves the service.
func (p *ActivityPublisher) Record(ctx context.Context, entry domain.ActivityEntry) error {
	occurredAt := entry.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	eventID := entry.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	envelope := activityEnvelope{
		EventID:    eventID,
		EventType:  activityEventType,
		Email:      logger.MaskEmail(entry.Email),
		Action:     entry.Action,
		Status:     entry.Status,
		Detail:     entry.Detail,
		IP:         logger.MaskIP(entry.IP),
		UserAgent:  entry.UserAgent,
		OccurredAt: occurredAt.UTC(),
		Version:    schemaVersion,
		Metadata: map[string]string{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}
	if entry.UserID != nil {
		envelope.UserID = *entry.UserID
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal activity envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(activityEventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ port.ActivityRecorder = (*ActivityPublisher)(nil)

package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/consultation-service/internal/domain"
)

// AlertPayload is the message delivered to a responder about a crisis alert.
type AlertPayload struct {
	Event         string           `json:"event"`
	AlertID       string           `json:"alert_id"`
	CaseID        *string          `json:"case_id,omitempty"`
	AlertType     domain.AlertType `json:"alert_type"`
	Severity      domain.RiskLevel `json:"severity"`
	DetectedFlags []string         `json:"detected_flags,omitempty"`
	Context       string           `json:"context,omitempty"`
}

// Notifier delivers an alert payload to one responder. Implementations must
// be safe for concurrent use; delivery is best-effort and callers swallow
// errors per recipient.
type Notifier interface {
	Notify(ctx context.Context, consultantID string, payload AlertPayload) error
}

// LogNotifier records deliveries to the structured log. Used as the fallback
// transport and in tests.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds the notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, consultantID string, payload AlertPayload) error {
	n.logger.Info("notify",
		zap.String("consultant_id", consultantID),
		zap.String("event", payload.Event),
		zap.String("alert_id", payload.AlertID),
		zap.String("severity", string(payload.Severity)))
	return nil
}

// RedisNotifier publishes alert payloads to a per-consultant channel so any
// delivery frontend (in-app, push gateway) can subscribe.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier builds the notifier.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Notify(ctx context.Context, consultantID string, payload AlertPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	channel := fmt.Sprintf("notify:consultant:%s", consultantID)
	return n.client.Publish(ctx, channel, body).Err()
}

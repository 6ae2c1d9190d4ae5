// Package events fans session lifecycle notifications out to external
// observers (dashboard, admin tools) over Redis pub/sub. Delivery is
// best-effort: this is an observability channel, failures are swallowed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	QRGenerated = "qr_generated"
	Connected   = "connected"
	Expired     = "expired"
)

type Publisher interface {
	Publish(ctx context.Context, tenantID, event string, payload map[string]interface{})
}

// Envelope is the wire form of one published event.
type Envelope struct {
	ID        string                 `json:"id"`
	TenantID  string                 `json:"tenant_id"`
	Event     string                 `json:"event"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	EmittedAt time.Time              `json:"emitted_at"`
}

// Topic returns the pub/sub channel for one tenant and event name.
func Topic(tenantID, event string) string {
	return fmt.Sprintf("tenant:%s:%s", tenantID, event)
}

type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisPublisher(redisURL string, logger *zap.Logger) (*RedisPublisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &RedisPublisher{client: client, logger: logger}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, tenantID, event string, payload map[string]interface{}) {
	env := Envelope{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Event:     event,
		Payload:   payload,
		EmittedAt: time.Now(),
	}

	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Warn("Failed to marshal event",
			zap.String("tenant_id", tenantID),
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}

	if err := p.client.Publish(ctx, Topic(tenantID, event), data).Err(); err != nil {
		p.logger.Warn("Failed to publish event",
			zap.String("tenant_id", tenantID),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

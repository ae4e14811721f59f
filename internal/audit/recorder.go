// Package audit persists every published lifecycle event into an append-only
// trail, so support staff can reconstruct what happened to a cart or order
// without trawling broker retention.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/omnisoho/fitshop/internal/redisx"
	"github.com/omnisoho/fitshop/internal/shop"
)

type Recorder struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
	Log   *zap.Logger
}

// HandleEvent is installed as the consumer handler. Dedup is two-layered:
// a redis probe on event_id short-circuits the common redelivery, and the
// primary key on order_events makes the insert idempotent regardless.
func (r *Recorder) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env shop.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// malformed message: log and commit, a retry cannot fix it
		r.Log.Warn("unparseable event", zap.String("topic", m.Topic), zap.Error(err))
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "audit", env.EventID)
	if seen, _ := redisx.Exists(ctx, r.Redis, dkey); seen {
		return nil
	}

	tag, err := r.DB.Exec(ctx, `
		INSERT INTO order_events (event_id, event_type, topic, correlation_id, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING`,
		env.EventID, env.EventType, m.Topic, env.CorrelationID, env.OccurredAt, env.Payload)
	if err != nil {
		return err
	}
	_ = r.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	if tag.RowsAffected() == 1 {
		r.Log.Info("event recorded",
			zap.String("event_id", env.EventID),
			zap.String("event_type", env.EventType),
			zap.String("correlation_id", env.CorrelationID))
	}
	return nil
}

package redisx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ScreeningsPubSub broadcasts seat-map changes so other instances can drop
// their cached projections.
type ScreeningsPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewScreeningsPubSub(rdb *redis.Client) *ScreeningsPubSub {
	return &ScreeningsPubSub{
		rdb:     rdb,
		channel: ChannelScreeningsChanged(),
	}
}

type screeningChangedMsg struct {
	Type        string    `json:"type"`
	ScreeningID uuid.UUID `json:"screening_id"`
	TsUnix      int64     `json:"ts_unix"`
}

func (p *ScreeningsPubSub) PublishScreeningChanged(ctx context.Context, screeningID uuid.UUID) error {
	msg := screeningChangedMsg{
		Type:        "screening_changed",
		ScreeningID: screeningID,
		TsUnix:      time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *ScreeningsPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, screeningID uuid.UUID)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev screeningChangedMsg
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil &&
				ev.ScreeningID != uuid.Nil {
				handler(ctx, ev.ScreeningID)
			}
		}
	}
}

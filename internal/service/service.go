// Package service implements the lifecycle engine's business logic on top of
// the domain store and ledger interfaces.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/vaultline/artkey/internal/domain"
)

// Event channels on the signal bus.
const (
	ChannelEpoch      = "events:epoch"
	ChannelAuction    = "events:auction"
	ChannelVote       = "events:vote"
	ChannelSettlement = "events:settlement"
)

// Event is the envelope published on the signal bus and relayed to WebSocket
// subscribers.
type Event struct {
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// publishEvent marshals and publishes an event; failures are logged, never
// returned, because notification is best-effort alongside the mutation.
func publishEvent(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, channel, eventType string, data any) {
	if bus == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		logger.WarnContext(ctx, "event marshal failed",
			slog.String("type", eventType), slog.String("error", err.Error()))
		return
	}
	payload, err := json.Marshal(Event{Type: eventType, At: time.Now().UTC(), Data: raw})
	if err != nil {
		return
	}
	if err := bus.Publish(ctx, channel, payload); err != nil {
		logger.WarnContext(ctx, "event publish failed",
			slog.String("type", eventType), slog.String("error", err.Error()))
	}
	if err := bus.StreamAppend(ctx, channel, payload); err != nil {
		logger.WarnContext(ctx, "event stream append failed",
			slog.String("type", eventType), slog.String("error", err.Error()))
	}
}

// ensureLive rejects mutations while the engine is paused.
func ensureLive(ctx context.Context, state domain.StateStore) error {
	st, err := state.Get(ctx)
	if err != nil {
		return err
	}
	if st.Paused {
		return domain.ErrPaused
	}
	return nil
}

package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vaultline/artkey/internal/domain"
	"github.com/vaultline/artkey/internal/service"
)

const (
	defaultEventCount = 50
	maxEventCount     = 500
)

// eventTopics maps URL topic names onto bus stream keys. Only lifecycle
// streams are readable; arbitrary stream access stays off the wire.
var eventTopics = map[string]string{
	"epoch":      service.ChannelEpoch,
	"auction":    service.ChannelAuction,
	"vote":       service.ChannelVote,
	"settlement": service.ChannelSettlement,
}

// EventsHandler serves the durable event streams so clients that missed
// pub/sub delivery (or connected late) can catch up by cursor.
type EventsHandler struct {
	bus domain.SignalBus
}

func NewEventsHandler(bus domain.SignalBus) *EventsHandler {
	return &EventsHandler{bus: bus}
}

type eventEntry struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// List returns stream entries after the `after` cursor.
// GET /api/events/{topic}?after=<id>&count=<n>
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	stream, ok := eventTopics[r.PathValue("topic")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown event topic")
		return
	}

	count := defaultEventCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "count must be a positive integer")
			return
		}
		if n > maxEventCount {
			n = maxEventCount
		}
		count = n
	}

	msgs, err := h.bus.StreamRead(r.Context(), stream, r.URL.Query().Get("after"), count)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	entries := make([]eventEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, eventEntry{ID: m.ID, Payload: json.RawMessage(m.Payload)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": entries})
}

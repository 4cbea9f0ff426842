package relay

import (
	"encoding/json"
	"log/slog"

	"github.com/dgnsrekt/tabdeck/internal/tabs"
)

// feedEvent is the wire shape of one tab change on the feed.
type feedEvent struct {
	Kind      string     `json:"kind"`
	Incognito bool       `json:"incognito"`
	TabID     tabs.TabID `json:"tab_id,omitempty"`
	Field     string     `json:"field,omitempty"`
	Index     int        `json:"index"`
	Other     int        `json:"other,omitempty"`
}

// PublishChange translates a store change into a feed event. Safe to call
// from the shell's run loop; publishing never blocks.
func PublishChange(b *Broker, c tabs.Change) {
	topic := TopicTabs
	if c.Incognito {
		topic = TopicIncognito
	}
	payload, err := json.Marshal(feedEvent{
		Kind:      string(c.Kind),
		Incognito: c.Incognito,
		TabID:     c.ID,
		Field:     string(c.Field),
		Index:     c.Index,
		Other:     c.Other,
	})
	if err != nil {
		slog.Warn("feed event marshal failed", "kind", c.Kind, "error", err)
		return
	}
	b.Publish(Event{Topic: topic, Payload: payload})
}

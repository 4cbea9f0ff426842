package relay

import (
	"encoding/json"
	"testing"

	"github.com/dgnsrekt/tabdeck/internal/tabs"
)

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker()
	id1, ch1 := b.Subscribe()
	id2, ch2 := b.Subscribe()
	defer b.Unsubscribe(id1)
	defer b.Unsubscribe(id2)

	b.Publish(Event{Topic: TopicTabs, Payload: json.RawMessage(`{"kind":"appended"}`)})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			if evt.Topic != TopicTabs {
				t.Fatalf("subscriber %d topic = %q; want %q", i, evt.Topic, TopicTabs)
			}
		default:
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestBrokerDropsWhenSubscriberFull(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	for i := 0; i < subscriberBufSize+10; i++ {
		b.Publish(Event{Topic: TopicTabs, Payload: json.RawMessage(`{}`)})
	}
	if got := len(ch); got != subscriberBufSize {
		t.Fatalf("buffered = %d; want %d (overflow dropped, not blocking)", got, subscriberBufSize)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe()
	b.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Fatal("channel open after Unsubscribe")
	}
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("ClientCount() = %d; want 0", n)
	}
}

func TestPublishChangeTopics(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	PublishChange(b, tabs.Change{Kind: tabs.ChangeAppended, ID: "t1", Index: 0})
	PublishChange(b, tabs.Change{Kind: tabs.ChangeSelected, Incognito: true, ID: "t2", Index: 1})

	first := <-ch
	if first.Topic != TopicTabs {
		t.Fatalf("first topic = %q; want %q", first.Topic, TopicTabs)
	}
	var evt struct {
		Kind  string `json:"kind"`
		TabID string `json:"tab_id"`
	}
	if err := json.Unmarshal(first.Payload, &evt); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if evt.Kind != "appended" || evt.TabID != "t1" {
		t.Fatalf("payload = %s", first.Payload)
	}

	second := <-ch
	if second.Topic != TopicIncognito {
		t.Fatalf("second topic = %q; want %q", second.Topic, TopicIncognito)
	}
}

package app

import "testing"

func TestHubReplayFromSequence(t *testing.T) {
	h := NewNotificationHub(8)
	h.Publish("a", 1)
	h.Publish("b", 2)
	h.Publish("c", 3)

	replay, _, cancel := h.Subscribe(1)
	defer cancel()
	if len(replay) != 2 || replay[0].Method != "b" || replay[1].Method != "c" {
		t.Fatalf("unexpected replay: %+v", replay)
	}
}

func TestHubBoundedHistory(t *testing.T) {
	h := NewNotificationHub(2)
	h.Publish("a", nil)
	h.Publish("b", nil)
	h.Publish("c", nil)

	if h.BacklogSize() != 2 {
		t.Fatalf("backlog = %d", h.BacklogSize())
	}
	events := h.EventsSince(0)
	if len(events) != 2 || events[0].Method != "b" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestHubLiveDelivery(t *testing.T) {
	h := NewNotificationHub(8)
	_, ch, cancel := h.Subscribe(0)
	defer cancel()

	published := h.Publish("score_received", map[string]uint64{"project_id": 7})
	got := <-ch
	if got.Seq != published.Seq || got.Method != "score_received" {
		t.Fatalf("unexpected delivery: %+v", got)
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := NewNotificationHub(1024)
	_, ch, cancel := h.Subscribe(0)
	defer cancel()

	// Fill the subscriber buffer and one more; the hub must not block.
	for i := 0; i < 200; i++ {
		h.Publish("tick", i)
	}
	// The channel was closed on overflow.
	open := true
	for open {
		_, open = <-ch
	}
}

func TestHubSequencesMonotonic(t *testing.T) {
	h := NewNotificationHub(8)
	first := h.Publish("a", nil)
	second := h.Publish("b", nil)
	if second.Seq != first.Seq+1 {
		t.Fatalf("sequences not monotonic: %d then %d", first.Seq, second.Seq)
	}
}

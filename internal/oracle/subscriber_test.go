package oracle

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/chain"
	"github.com/AbhaySingh6921/carbon-SIH-Project/pkg/models"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
)

type stubSubscription struct{ errc chan error }

func (s *stubSubscription) Unsubscribe()      {}
func (s *stubSubscription) Err() <-chan error { return s.errc }

// stubOracle delivers pre-decoded events keyed by log index and answers
// authoritative reads from a mutable score table.
type stubOracle struct {
	mu         sync.Mutex
	events     map[uint64]chain.ScoreReceived
	authScores map[uint64]uint64
	readErr    error
	reads      int
	sink       chan<- types.Log
	subErr     chan error
	watchCount int
	requests   []uint64
}

func newStubOracle() *stubOracle {
	return &stubOracle{
		events:     make(map[uint64]chain.ScoreReceived),
		authScores: make(map[uint64]uint64),
	}
}

func (o *stubOracle) SendRequest(_ context.Context, projectID uint64, _, _ string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, projectID)
	return nil
}

func (o *stubOracle) ProjectScore(_ context.Context, projectID uint64) (uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reads++
	if o.readErr != nil {
		return 0, o.readErr
	}
	return o.authScores[projectID], nil
}

func (o *stubOracle) WatchScoreReceived(_ context.Context, sink chan<- types.Log) (ethereum.Subscription, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.watchCount++
	o.sink = sink
	o.subErr = make(chan error, 1)
	return &stubSubscription{errc: o.subErr}, nil
}

func (o *stubOracle) DecodeScoreReceived(lg types.Log) (chain.ScoreReceived, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ev, ok := o.events[uint64(lg.Index)]
	if !ok {
		return chain.ScoreReceived{}, errors.New("unknown log")
	}
	return ev, nil
}

func (o *stubOracle) deliver(t *testing.T, index uint64, projectID, payloadScore uint64) {
	t.Helper()
	o.mu.Lock()
	var req [32]byte
	req[0] = byte(index)
	o.events[index] = chain.ScoreReceived{
		RequestId: req,
		Score:     new(big.Int).SetUint64(payloadScore),
		ProjectId: new(big.Int).SetUint64(projectID),
	}
	sink := o.sink
	o.mu.Unlock()
	select {
	case sink <- types.Log{Index: uint(index)}:
	case <-time.After(time.Second):
		t.Fatal("sink delivery timed out")
	}
}

func startSubscriber(t *testing.T, o *stubOracle) (*Subscriber, chan models.ScoreEvent, func()) {
	t.Helper()
	s := NewSubscriber(o, nil)
	s.backoffMin = time.Millisecond
	s.backoffMax = 5 * time.Millisecond

	observed := make(chan models.ScoreEvent, 16)
	unsub := s.Subscribe(func(ev models.ScoreEvent) { observed <- ev })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	waitFor(t, func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.sink != nil
	})
	return s, observed, func() {
		unsub()
		cancel()
		<-done
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func recvEvent(t *testing.T, ch chan models.ScoreEvent) models.ScoreEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no score event observed")
		return models.ScoreEvent{}
	}
}

func TestScoreComesFromAuthoritativeRead(t *testing.T) {
	o := newStubOracle()
	o.authScores[7] = 87
	_, observed, stop := startSubscriber(t, o)
	defer stop()

	// The event payload carries a different value than the contract.
	o.deliver(t, 1, 7, 42)

	ev := recvEvent(t, observed)
	if ev.ProjectID != 7 || ev.Score != 87 {
		t.Fatalf("expected authoritative score 87, got %+v", ev)
	}
}

func TestStaleDeliveryCannotRegressScore(t *testing.T) {
	o := newStubOracle()
	o.authScores[7] = 91
	s, observed, stop := startSubscriber(t, o)
	defer stop()

	// A fresh and then a stale delivery for the same project: both trigger
	// a re-read, so the stale payload never lands.
	o.deliver(t, 1, 7, 91)
	recvEvent(t, observed)
	o.deliver(t, 2, 7, 34)
	recvEvent(t, observed)

	got, ok := s.Score(7)
	if !ok || got.Score != 91 {
		t.Fatalf("stale delivery regressed the score: %+v", got)
	}
}

func TestReadFailureDropsDelivery(t *testing.T) {
	o := newStubOracle()
	o.readErr = errors.New("rpc down")
	s, observed, stop := startSubscriber(t, o)
	defer stop()

	o.deliver(t, 1, 3, 55)
	waitFor(t, func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.reads >= 1
	})

	if _, ok := s.Score(3); ok {
		t.Fatal("a payload without a confirming read must not be stored")
	}

	// Once the RPC recovers, the next delivery lands normally.
	o.mu.Lock()
	o.readErr = nil
	o.authScores[3] = 77
	o.mu.Unlock()
	o.deliver(t, 2, 3, 55)

	ev := recvEvent(t, observed)
	if ev.Score != 77 {
		t.Fatalf("expected authoritative score 77, got %+v", ev)
	}
	select {
	case extra := <-observed:
		t.Fatalf("dropped delivery must not notify listeners: %+v", extra)
	default:
	}
}

func TestReadFailureKeepsStoredScore(t *testing.T) {
	o := newStubOracle()
	o.authScores[7] = 91
	s, observed, stop := startSubscriber(t, o)
	defer stop()

	o.deliver(t, 1, 7, 91)
	recvEvent(t, observed)

	// A duplicate of an earlier event arrives while the RPC is down; its
	// payload must not replace the value a read already established.
	o.mu.Lock()
	o.readErr = errors.New("rpc down")
	o.mu.Unlock()
	o.deliver(t, 2, 7, 34)
	waitFor(t, func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.reads >= 2
	})

	// Deliveries are handled in order, so receiving the next event proves
	// the failed one was fully processed.
	o.mu.Lock()
	o.readErr = nil
	o.mu.Unlock()
	o.deliver(t, 3, 7, 91)
	recvEvent(t, observed)

	got, ok := s.Score(7)
	if !ok || got.Score != 91 {
		t.Fatalf("failed read let an event payload overwrite the score: %+v", got)
	}
}

func TestResubscribesAfterSubscriptionError(t *testing.T) {
	o := newStubOracle()
	o.authScores[1] = 70
	s, observed, stop := startSubscriber(t, o)
	defer stop()

	o.mu.Lock()
	o.subErr <- errors.New("websocket closed")
	o.mu.Unlock()

	waitFor(t, func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.watchCount >= 2
	})

	o.deliver(t, 1, 1, 70)
	recvEvent(t, observed)
	if _, ok := s.Score(1); !ok {
		t.Fatal("events after resubscribe must still be observed")
	}
}

func TestScoresSortedByProject(t *testing.T) {
	o := newStubOracle()
	o.authScores[9] = 60
	o.authScores[2] = 80
	s, observed, stop := startSubscriber(t, o)
	defer stop()

	o.deliver(t, 1, 9, 60)
	recvEvent(t, observed)
	o.deliver(t, 2, 2, 80)
	recvEvent(t, observed)

	all := s.Scores()
	if len(all) != 2 || all[0].ProjectID != 2 || all[1].ProjectID != 9 {
		t.Fatalf("scores not ordered by project: %+v", all)
	}
}

// Package oracle tracks survival-score deliveries from the weather oracle
// contract. The event stream only wakes us up; the score we keep always
// comes from an authoritative contract read.
package oracle

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/chain"
	"github.com/AbhaySingh6921/carbon-SIH-Project/pkg/models"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	resubscribeBackoffMin = time.Second
	resubscribeBackoffMax = 30 * time.Second
)

// Contract is the oracle surface the subscriber needs; *chain.OracleClient
// satisfies it.
type Contract interface {
	SendRequest(ctx context.Context, projectID uint64, latitude, longitude string) error
	ProjectScore(ctx context.Context, projectID uint64) (uint64, error)
	WatchScoreReceived(ctx context.Context, sink chan<- types.Log) (ethereum.Subscription, error)
	DecodeScoreReceived(lg types.Log) (chain.ScoreReceived, error)
}

// Subscriber consumes ScoreReceived events on a single goroutine, re-reads
// the contract for the authoritative score, and fans the result out to
// listeners. Events are processed strictly in delivery order; because each
// stored score comes from a fresh read, a late event cannot overwrite a
// newer score with an older one.
type Subscriber struct {
	mu      sync.RWMutex
	oracle  Contract
	scores  map[uint64]models.ScoreEvent
	subs    map[int]func(models.ScoreEvent)
	nextSub int
	log     *slog.Logger

	backoffMin time.Duration
	backoffMax time.Duration
}

func NewSubscriber(oracle Contract, log *slog.Logger) *Subscriber {
	if log == nil {
		log = slog.Default()
	}
	return &Subscriber{
		oracle:     oracle,
		scores:     make(map[uint64]models.ScoreEvent),
		subs:       make(map[int]func(models.ScoreEvent)),
		log:        log.With("component", "oracle"),
		backoffMin: resubscribeBackoffMin,
		backoffMax: resubscribeBackoffMax,
	}
}

// RequestScore asks the oracle to evaluate a project at the given
// coordinates. The answer arrives later as a ScoreReceived event.
func (s *Subscriber) RequestScore(ctx context.Context, projectID uint64, latitude, longitude string) error {
	return s.oracle.SendRequest(ctx, projectID, latitude, longitude)
}

// Score returns the last authoritative score observed for a project.
func (s *Subscriber) Score(projectID uint64) (models.ScoreEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.scores[projectID]
	return ev, ok
}

// Scores returns every observed score ordered by project ID.
func (s *Subscriber) Scores() []models.ScoreEvent {
	s.mu.RLock()
	out := make([]models.ScoreEvent, 0, len(s.scores))
	for _, ev := range s.scores {
		out = append(out, ev)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out
}

// Subscribe registers a listener for every newly observed score. Listeners
// run on the event loop goroutine and must not block.
func (s *Subscriber) Subscribe(fn func(models.ScoreEvent)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Run blocks consuming events until ctx is canceled. A dropped subscription
// is re-established with backoff; scores accumulated so far survive the
// gap, and the authoritative re-read covers anything missed once the next
// event arrives.
func (s *Subscriber) Run(ctx context.Context) error {
	backoff := s.backoffMin
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.consume(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		s.log.Warn("score subscription lost, retrying", "backoff", backoff.String(), "error", err.Error())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.backoffMax {
			backoff = s.backoffMax
		}
	}
}

func (s *Subscriber) consume(ctx context.Context) error {
	sink := make(chan types.Log, 16)
	sub, err := s.oracle.WatchScoreReceived(ctx, sink)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()
	s.log.Info("score subscription established")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				return errors.New("subscription closed")
			}
			return err
		case lg := <-sink:
			s.handleLog(ctx, lg)
		}
	}
}

// handleLog processes one delivery to completion before the next is read.
func (s *Subscriber) handleLog(ctx context.Context, lg types.Log) {
	ev, err := s.oracle.DecodeScoreReceived(lg)
	if err != nil {
		s.log.Warn("undecodable score event", "tx", lg.TxHash.Hex(), "error", err.Error())
		return
	}
	projectID := ev.ProjectId.Uint64()
	score, err := s.oracle.ProjectScore(ctx, projectID)
	if err != nil {
		// The payload is only a wake-up signal; deliveries may arrive out
		// of order or duplicated, and only the re-read establishes which
		// value is current. Without it the delivery is dropped; the next
		// event for this project reads again.
		s.log.Warn("authoritative score read failed, dropping delivery",
			"project_id", projectID, "error", err.Error())
		return
	}

	observed := models.ScoreEvent{
		RequestID:  ev.RequestIDHex(),
		ProjectID:  projectID,
		Score:      score,
		ObservedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.scores[projectID] = observed
	fns := make([]func(models.ScoreEvent), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	s.log.Info("survival score observed", "project_id", projectID, "score", score, "request_id", observed.RequestID)
	for _, fn := range fns {
		fn(observed)
	}
}

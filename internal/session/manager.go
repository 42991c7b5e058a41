// Package session owns the wallet-session lifecycle: establishment, role
// resolution, teardown, and reaction to wallet-originated identity and
// network changes.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/chain"
	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/wallet"
	"github.com/AbhaySingh6921/carbon-SIH-Project/pkg/models"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

// ErrWrongNetwork rejects connects while the wallet reports a different
// network than the one the contract addresses are configured for.
var ErrWrongNetwork = errors.New("wallet network does not match configured chain")

// Config carries the network-specific material a session is built from.
// It is immutable after NewManager.
type Config struct {
	ChainID         uint64
	Contracts       map[string]common.Address
	Admins          AdminSet
	ConfirmInterval time.Duration
	RequestsPerSec  float64
	Burst           int
}

// Session bundles one connected identity with the signing gateways bound to
// it. It is immutable after construction; a changed identity means a new
// Session, never a mutated one.
type Session struct {
	info      models.SessionInfo
	gateways  map[string]*chain.Gateway
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Session) Info() models.SessionInfo { return s.info }

// Done is closed when the session is invalidated. Gateways built for this
// session abort in-flight confirmation waits on it.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Gateway(name string) (*chain.Gateway, bool) {
	gw, ok := s.gateways[name]
	return gw, ok
}

func (s *Session) Registry() *chain.RegistryClient {
	return &chain.RegistryClient{GW: s.gateways[chain.ContractRegistry]}
}

func (s *Session) Reputation() *chain.ReputationClient {
	return &chain.ReputationClient{GW: s.gateways[chain.ContractReputation]}
}

func (s *Session) Credit() *chain.CreditClient {
	return &chain.CreditClient{GW: s.gateways[chain.ContractCarbonCredit]}
}

func (s *Session) Verification() *chain.VerificationClient {
	return &chain.VerificationClient{GW: s.gateways[chain.ContractVerification]}
}

func (s *Session) NGOs() *chain.NGOClient {
	return &chain.NGOClient{GW: s.gateways[chain.ContractNGOManager]}
}

func (s *Session) Oracle() *chain.OracleClient {
	return &chain.OracleClient{GW: s.gateways[chain.ContractOracle]}
}

func (s *Session) invalidate() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Manager holds the single current session and serializes its replacement.
// Reads return copies; a session is swapped atomically, so observers see
// either the old complete state or the new one, never a mix.
type Manager struct {
	mu           sync.RWMutex
	current      *Session
	startedGen   uint64
	installedGen uint64
	netMismatch  bool

	wallet  wallet.Provider
	backend chain.Backend
	cfg     Config
	marker  *ReconnectMarker
	limiter *rate.Limiter
	log     *slog.Logger

	onChange func(models.SessionInfo)
	onReset  func()

	// replaced in tests to skip real gateway construction
	buildSession func(ctx context.Context, acct wallet.Account, done chan struct{}) (*Session, error)
}

func NewManager(provider wallet.Provider, backend chain.Backend, cfg Config, marker *ReconnectMarker, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSec > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), burst)
	}
	m := &Manager{
		wallet:  provider,
		backend: backend,
		cfg:     cfg,
		marker:  marker,
		limiter: limiter,
		log:     log.With("component", "session"),
	}
	m.buildSession = m.defaultBuildSession
	return m
}

// SetOnChange registers the listener invoked with the new session snapshot
// after every install or teardown. Must be set before Start.
func (m *Manager) SetOnChange(fn func(models.SessionInfo)) { m.onChange = fn }

// SetOnReset registers the listener invoked on a network change, after the
// current session is torn down. Must be set before Start.
func (m *Manager) SetOnReset(fn func()) { m.onReset = fn }

// Start wires wallet notifications and, when a previous run left the
// connected marker behind, attempts one silent reconnect. The returned
// function detaches from the wallet.
func (m *Manager) Start(ctx context.Context) func() {
	unsubscribe := m.wallet.Subscribe(func(ev wallet.Event) {
		m.HandleWalletEvent(ctx, ev)
	})
	if m.marker.Get() {
		if _, err := m.Connect(ctx, false); err != nil {
			m.log.Info("silent reconnect declined, starting anonymous", "error", err.Error())
		}
	}
	return unsubscribe
}

// Connect establishes a session for the wallet's active identity. Concurrent
// calls race benignly: every completion that is not already superseded
// installs, and the stale loser is invalidated instead of the winner. A
// completion overtaken by a disconnect or reset is discarded the same way.
func (m *Manager) Connect(ctx context.Context, prompt bool) (models.SessionInfo, error) {
	m.mu.Lock()
	if m.netMismatch {
		m.mu.Unlock()
		return models.AnonymousSession(), ErrWrongNetwork
	}
	m.startedGen++
	gen := m.startedGen
	m.mu.Unlock()

	acct, err := m.wallet.RequestAuthorization(ctx, prompt)
	if err != nil {
		return models.AnonymousSession(), err
	}
	done := make(chan struct{})
	sess, err := m.buildSession(ctx, acct, done)
	if err != nil {
		return models.AnonymousSession(), err
	}

	m.mu.Lock()
	if m.installedGen >= gen {
		// A newer connect, disconnect or reset already finished; this
		// result is stale.
		m.mu.Unlock()
		sess.invalidate()
		return m.Info(), nil
	}
	old := m.current
	m.current = sess
	m.installedGen = gen
	m.mu.Unlock()

	if old != nil {
		old.invalidate()
	}
	if err := m.marker.Set(true); err != nil {
		m.log.Warn("reconnect marker write failed", "error", err.Error())
	}
	m.log.Info("session established",
		"address", sess.info.Address,
		"role", string(sess.info.Role),
		"chain_id", sess.info.ChainID)
	m.notify(sess.info)
	return sess.info, nil
}

// Disconnect tears the session down and returns to the anonymous state.
// Idempotent. Any connect still in flight is superseded: its completion is
// discarded instead of resurrecting the session.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	old := m.current
	m.current = nil
	m.installedGen = m.startedGen
	m.mu.Unlock()

	if err := m.marker.Set(false); err != nil {
		m.log.Warn("reconnect marker clear failed", "error", err.Error())
	}
	if old == nil {
		return
	}
	old.invalidate()
	m.log.Info("session closed", "address", old.info.Address)
	m.notify(models.AnonymousSession())
}

// Current returns the live session, or nil when anonymous.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Info returns the session snapshot without exposing the session itself.
func (m *Manager) Info() models.SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return models.AnonymousSession()
	}
	return m.current.info
}

// HandleWalletEvent reacts to wallet-originated notifications. Identity
// changes re-establish the session silently; an empty identity or a failed
// silent attempt falls back to anonymous rather than surfacing an error
// nobody asked for. Network changes invalidate everything and request a
// full re-initialization, since contract addresses are per network;
// connects are refused while the wallet stays on the wrong network.
func (m *Manager) HandleWalletEvent(ctx context.Context, ev wallet.Event) {
	switch ev.Kind {
	case wallet.IdentityChanged:
		if ev.Address == "" {
			m.Disconnect()
			return
		}
		if _, err := m.Connect(ctx, false); err != nil {
			if errors.Is(err, wallet.ErrNoWallet) || errors.Is(err, wallet.ErrUserRejected) {
				m.log.Info("identity change without authorization, going anonymous", "error", err.Error())
			} else {
				m.log.Error("session re-establishment failed", "error", err.Error())
			}
			m.Disconnect()
		}
	case wallet.NetworkChanged:
		m.log.Info("network changed, resetting", "chain_id", ev.ChainID)
		m.markNetwork(ev.ChainID)
		m.Reset()
	}
}

// Reset invalidates the current session and notifies the reset listener.
// The reconnect marker is intentionally left alone: after re-initialization
// the previously connected identity reconnects silently.
func (m *Manager) Reset() {
	m.mu.Lock()
	old := m.current
	m.current = nil
	m.installedGen = m.startedGen
	m.mu.Unlock()

	if old != nil {
		old.invalidate()
	}
	m.notify(models.AnonymousSession())
	if m.onReset != nil {
		m.onReset()
	}
}

// markNetwork records whether the wallet-reported network matches the one
// the contract addresses were configured for. While it does not, connects
// are refused rather than built against addresses that belong to another
// network; switching back clears the refusal.
func (m *Manager) markNetwork(chainID uint64) {
	m.mu.Lock()
	m.netMismatch = chainID != 0 && chainID != m.cfg.ChainID
	m.mu.Unlock()
}

func (m *Manager) notify(info models.SessionInfo) {
	if m.onChange != nil {
		m.onChange(info)
	}
}

func (m *Manager) defaultBuildSession(ctx context.Context, acct wallet.Account, done chan struct{}) (*Session, error) {
	gateways := make(map[string]*chain.Gateway, len(m.cfg.Contracts))
	for _, name := range chain.KnownContracts {
		addr, ok := m.cfg.Contracts[name]
		if !ok {
			return nil, &ContractConfigError{Contract: name}
		}
		contractABI, err := chain.ContractABI(name)
		if err != nil {
			return nil, err
		}
		gateways[name] = chain.NewGateway(name, addr, contractABI, m.backend, chain.Options{
			Signer:          acct,
			ChainID:         m.cfg.ChainID,
			Done:            done,
			Logger:          m.log,
			Limiter:         m.limiter,
			ConfirmInterval: m.cfg.ConfirmInterval,
		})
	}
	sess := &Session{gateways: gateways, done: done}

	owner, err := sess.Verification().Owner(ctx)
	if err != nil {
		return nil, err
	}
	role, err := ResolveRole(ctx, acct.Address(), m.cfg.Admins, sess.NGOs())
	if err != nil {
		return nil, err
	}
	sess.info = models.SessionInfo{
		Address:      acct.Address().Hex(),
		Role:         role,
		OwnerAddress: owner.Hex(),
		ChainID:      m.cfg.ChainID,
		ConnectedAt:  time.Now().UTC(),
	}
	return sess, nil
}

// ContractConfigError reports a contract the configuration does not map to
// an address on the active network.
type ContractConfigError struct {
	Contract string
}

func (e *ContractConfigError) Error() string {
	return "no address configured for contract " + e.Contract
}

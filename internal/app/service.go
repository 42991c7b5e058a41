// Package app holds the daemon service: the operation surface the RPC
// layer exposes, composed from the session manager, contract clients,
// workflow orchestrator and oracle feed.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/workflow"
	"github.com/AbhaySingh6921/carbon-SIH-Project/pkg/models"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNotConnected rejects operations that need a signing session.
	ErrNotConnected = errors.New("no wallet session")
	// ErrUnauthorized rejects operations the session's role does not cover.
	ErrUnauthorized = errors.New("operation not permitted for role")
	// ErrNotOwner rejects owner-only operations from any other identity.
	ErrNotOwner = errors.New("session identity is not the contract owner")
	// ErrInvalidAddress rejects malformed address parameters.
	ErrInvalidAddress = errors.New("invalid address")
)

const (
	EventSessionChanged   = "session_changed"
	EventWorkflowProgress = "workflow_progress"
	EventScoreReceived    = "score_received"
	EventNetworkChanged   = "network_changed"
)

// WorkflowProgress is the payload published for every submission step.
type WorkflowProgress struct {
	Step  int    `json:"step"`
	Total int    `json:"total"`
	Label string `json:"label"`
}

// SubmitReceipt reports what a completed submission produced.
type SubmitReceipt struct {
	ContentRef string `json:"content_ref"`
	Staked     string `json:"staked"`
}

type ServiceConfig struct {
	Sessions     SessionControl
	Signing      func() (Contracts, models.SessionInfo, bool)
	Reads        Contracts
	Pinner       workflow.ContentPinner
	Orchestrator *workflow.Orchestrator
	Feed         ScoreFeed
	Hub          *NotificationHub
	Metrics      *ServiceMetricsState
	// StakeSpender is the reputation contract address the credit token
	// approval is granted to.
	StakeSpender common.Address
	Logger       *slog.Logger
}

type Service struct {
	sessions     SessionControl
	signing      func() (Contracts, models.SessionInfo, bool)
	reads        Contracts
	pinner       workflow.ContentPinner
	orchestrator *workflow.Orchestrator
	feed         ScoreFeed
	hub          *NotificationHub
	metrics      *ServiceMetricsState
	stakeSpender common.Address
	log          *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = DefaultLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewServiceMetricsState()
	}
	hub := cfg.Hub
	if hub == nil {
		hub = NewNotificationHub(256)
	}
	return &Service{
		sessions:     cfg.Sessions,
		signing:      cfg.Signing,
		reads:        cfg.Reads,
		pinner:       cfg.Pinner,
		orchestrator: cfg.Orchestrator,
		feed:         cfg.Feed,
		hub:          hub,
		metrics:      metrics,
		stakeSpender: cfg.StakeSpender,
		log:          logger.With("component", "service"),
	}
}

func DefaultLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func (s *Service) Hub() *NotificationHub { return s.hub }

func (s *Service) finishOp(name string, started time.Time, err error) {
	s.metrics.RecordOp(name, started)
	if err != nil {
		s.metrics.RecordOpError(name)
	}
}

// Connect establishes a wallet session, prompting the operator when prompt
// is set.
func (s *Service) Connect(ctx context.Context, prompt bool) (info models.SessionInfo, err error) {
	started := time.Now()
	defer func() { s.finishOp("wallet_connect", started, err) }()
	info, err = s.sessions.Connect(ctx, prompt)
	if err != nil {
		s.metrics.RecordError("wallet")
	}
	return info, err
}

func (s *Service) Disconnect() {
	defer s.finishOp("wallet_disconnect", time.Now(), nil)
	s.sessions.Disconnect()
}

func (s *Service) Session() models.SessionInfo {
	return s.sessions.Info()
}

func (s *Service) requireSession() (Contracts, models.SessionInfo, error) {
	contracts, info, ok := s.signing()
	if !ok {
		return Contracts{}, info, ErrNotConnected
	}
	return contracts, info, nil
}

func (s *Service) requireRole(roles ...models.Role) (Contracts, models.SessionInfo, error) {
	contracts, info, err := s.requireSession()
	if err != nil {
		return Contracts{}, info, err
	}
	for _, role := range roles {
		if info.Role == role {
			return contracts, info, nil
		}
	}
	return Contracts{}, info, fmt.Errorf("%w: %s", ErrUnauthorized, info.Role)
}

// SubmitProject runs the four-step submission for the connected identity.
// A failed run reports the failed step; completed steps keep their effects
// and a retry picks up the pinned content and granted allowance.
func (s *Service) SubmitProject(ctx context.Context, sub workflow.Submission) (receipt SubmitReceipt, err error) {
	started := time.Now()
	defer func() { s.finishOp("project_submit", started, err) }()
	if err = sub.Validate(); err != nil {
		return SubmitReceipt{}, err
	}
	contracts, info, err := s.requireSession()
	if err != nil {
		return SubmitReceipt{}, err
	}

	deps := workflow.SubmissionDeps{
		Pinner:   s.pinner,
		Stakes:   contracts.Reputation,
		Credit:   contracts.Credit,
		Staking:  contracts.Reputation,
		Registry: contracts.Registry,
		Owner:    common.HexToAddress(info.Address),
		Spender:  s.stakeSpender,
	}
	var result workflow.SubmissionResult
	key := workflow.WorkflowSubmit + ":" + info.Address
	err = s.orchestrator.Run(ctx, workflow.WorkflowSubmit, key,
		workflow.SubmissionSteps(deps, sub, &result),
		func(step, total int, label string) {
			s.hub.Publish(EventWorkflowProgress, WorkflowProgress{Step: step, Total: total, Label: label})
		})
	if err != nil {
		s.metrics.RecordError("chain")
		return SubmitReceipt{}, err
	}
	receipt = SubmitReceipt{ContentRef: result.ContentRef}
	if result.Staked != nil {
		receipt.Staked = result.Staked.String()
	}
	return receipt, nil
}

// Plantations lists every registered project. Registry IDs are 1-based.
func (s *Service) Plantations(ctx context.Context) (out []models.Plantation, err error) {
	started := time.Now()
	defer func() { s.finishOp("project_list", started, err) }()
	total, err := s.reads.Registry.TotalPlantations(ctx)
	if err != nil {
		s.metrics.RecordError("chain")
		return nil, err
	}
	out = make([]models.Plantation, 0, total)
	for id := uint64(1); id <= total; id++ {
		p, err := s.reads.Registry.GetPlantation(ctx, id)
		if err != nil {
			s.metrics.RecordError("chain")
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Service) Plantation(ctx context.Context, id uint64) (p models.Plantation, err error) {
	started := time.Now()
	defer func() { s.finishOp("project_get", started, err) }()
	p, err = s.reads.Registry.GetPlantation(ctx, id)
	if err != nil {
		s.metrics.RecordError("chain")
	}
	return p, err
}

// MyPlantations lists the connected identity's own projects.
func (s *Service) MyPlantations(ctx context.Context) (out []models.Plantation, err error) {
	started := time.Now()
	defer func() { s.finishOp("project_mine", started, err) }()
	_, info, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	ids, err := s.reads.Registry.PlantationIDsByUploader(ctx, common.HexToAddress(info.Address))
	if err != nil {
		s.metrics.RecordError("chain")
		return nil, err
	}
	out = make([]models.Plantation, 0, len(ids))
	for _, id := range ids {
		p, err := s.reads.Registry.GetPlantation(ctx, id)
		if err != nil {
			s.metrics.RecordError("chain")
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Service) NGOs(ctx context.Context) (out []models.NGO, err error) {
	started := time.Now()
	defer func() { s.finishOp("ngo_list", started, err) }()
	count, err := s.reads.NGOs.Count(ctx)
	if err != nil {
		s.metrics.RecordError("chain")
		return nil, err
	}
	out = make([]models.NGO, 0, count)
	for i := uint64(0); i < count; i++ {
		addr, err := s.reads.NGOs.AddressAt(ctx, i)
		if err != nil {
			s.metrics.RecordError("chain")
			return nil, err
		}
		ngo, err := s.reads.NGOs.Get(ctx, addr)
		if err != nil {
			s.metrics.RecordError("chain")
			return nil, err
		}
		out = append(out, ngo)
	}
	return out, nil
}

func (s *Service) NGO(ctx context.Context, address string) (ngo models.NGO, err error) {
	started := time.Now()
	defer func() { s.finishOp("ngo_get", started, err) }()
	if !common.IsHexAddress(address) {
		return models.NGO{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	ngo, err = s.reads.NGOs.Get(ctx, common.HexToAddress(address))
	if err != nil {
		s.metrics.RecordError("chain")
	}
	return ngo, err
}

// WhitelistNGO registers and whitelists an NGO. Admin only.
func (s *Service) WhitelistNGO(ctx context.Context, address, name, country string) (err error) {
	started := time.Now()
	defer func() { s.finishOp("ngo_whitelist", started, err) }()
	if !common.IsHexAddress(address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	contracts, _, err := s.requireRole(models.RoleAdmin)
	if err != nil {
		return err
	}
	if err = contracts.NGOs.Whitelist(ctx, common.HexToAddress(address), name, country); err != nil {
		s.metrics.RecordError("chain")
		return err
	}
	return nil
}

// SetNGOStatus moves an NGO between pending, whitelisted and blacklisted.
// Admin only.
func (s *Service) SetNGOStatus(ctx context.Context, address string, status models.NGOStatus) (err error) {
	started := time.Now()
	defer func() { s.finishOp("ngo_set_status", started, err) }()
	if !common.IsHexAddress(address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	contracts, _, err := s.requireRole(models.RoleAdmin)
	if err != nil {
		return err
	}
	if err = contracts.NGOs.SetStatus(ctx, common.HexToAddress(address), status); err != nil {
		s.metrics.RecordError("chain")
		return err
	}
	return nil
}

// VerifyPlantation records the admin verdict for a submitted project.
func (s *Service) VerifyPlantation(ctx context.Context, id uint64, approved bool) (err error) {
	started := time.Now()
	defer func() { s.finishOp("verify_admin", started, err) }()
	contracts, _, err := s.requireRole(models.RoleAdmin)
	if err != nil {
		return err
	}
	if err = contracts.Verification.SubmitAdminVerification(ctx, id, approved); err != nil {
		s.metrics.RecordError("chain")
		return err
	}
	return nil
}

// TransferAdmin rotates the verification contract's admin address. Only the
// contract owner may call it; the mismatch is rejected here before any
// transaction, and the contract's own owner check backs it up.
func (s *Service) TransferAdmin(ctx context.Context, newAdmin string) (err error) {
	started := time.Now()
	defer func() { s.finishOp("owner_set_admin", started, err) }()
	if !common.IsHexAddress(newAdmin) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, newAdmin)
	}
	contracts, info, err := s.requireSession()
	if err != nil {
		return err
	}
	if common.HexToAddress(info.Address) != common.HexToAddress(info.OwnerAddress) {
		return fmt.Errorf("%w: owner is %s", ErrNotOwner, info.OwnerAddress)
	}
	if err = contracts.Verification.SetAdminAddress(ctx, common.HexToAddress(newAdmin)); err != nil {
		s.metrics.RecordError("chain")
		return err
	}
	return nil
}

// Reputation reads the reputation, stake and credit balance of an address.
func (s *Service) Reputation(ctx context.Context, address string) (rep models.Reputation, err error) {
	started := time.Now()
	defer func() { s.finishOp("reputation_get", started, err) }()
	if !common.IsHexAddress(address) {
		return models.Reputation{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	addr := common.HexToAddress(address)
	score, err := s.reads.Reputation.ReputationScore(ctx, addr)
	if err != nil {
		s.metrics.RecordError("chain")
		return models.Reputation{}, err
	}
	staked, err := s.reads.Reputation.StakedAmount(ctx, addr)
	if err != nil {
		s.metrics.RecordError("chain")
		return models.Reputation{}, err
	}
	balance, err := s.reads.Credit.BalanceOf(ctx, addr)
	if err != nil {
		s.metrics.RecordError("chain")
		return models.Reputation{}, err
	}
	return models.Reputation{
		Address:       addr.Hex(),
		Score:         score.Uint64(),
		StakedAmount:  staked.String(),
		CreditBalance: balance.String(),
	}, nil
}

// RequestScore asks the oracle for a survival score using the project's own
// registered coordinates. Admin only; the gateway's pre-flight simulation
// enforces the contract-side authorization before anything is sent.
func (s *Service) RequestScore(ctx context.Context, projectID uint64) (err error) {
	started := time.Now()
	defer func() { s.finishOp("oracle_request_score", started, err) }()
	contracts, _, err := s.requireRole(models.RoleAdmin)
	if err != nil {
		return err
	}
	p, err := s.reads.Registry.GetPlantation(ctx, projectID)
	if err != nil {
		s.metrics.RecordError("chain")
		return err
	}
	if err = contracts.Oracle.SendRequest(ctx, projectID, p.Latitude, p.Longitude); err != nil {
		s.metrics.RecordError("chain")
		return err
	}
	return nil
}

// Score returns the last authoritative survival score observed for a
// project; the contract read is the fallback when no event was seen yet.
func (s *Service) Score(ctx context.Context, projectID uint64) (ev models.ScoreEvent, err error) {
	started := time.Now()
	defer func() { s.finishOp("oracle_score", started, err) }()
	if ev, ok := s.feed.Score(projectID); ok {
		return ev, nil
	}
	score, err := s.reads.Oracle.ProjectScore(ctx, projectID)
	if err != nil {
		s.metrics.RecordError("chain")
		return models.ScoreEvent{}, err
	}
	return models.ScoreEvent{ProjectID: projectID, Score: score, ObservedAt: time.Now().UTC()}, nil
}

func (s *Service) Scores() []models.ScoreEvent {
	return s.feed.Scores()
}

// Events returns buffered notifications newer than fromSeq.
func (s *Service) Events(fromSeq int64) []NotificationEvent {
	return s.hub.EventsSince(fromSeq)
}

func (s *Service) Metrics() models.MetricsSnapshot {
	return s.metrics.Snapshot()
}

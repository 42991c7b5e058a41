package app

import (
	"context"
	"math/big"

	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/chain"
	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/session"
	"github.com/AbhaySingh6921/carbon-SIH-Project/pkg/models"
	"github.com/ethereum/go-ethereum/common"
)

// Consumer-side views of the contract clients. The service never cares
// which gateway serves a call, only that the operation is available.

type ProjectRegistry interface {
	RegisterPlantation(ctx context.Context, species string, treeCount uint64, contentRef, description, latitude, longitude string) error
	GetPlantation(ctx context.Context, id uint64) (models.Plantation, error)
	TotalPlantations(ctx context.Context) (uint64, error)
	PlantationIDsByUploader(ctx context.Context, uploader common.Address) ([]uint64, error)
}

type ReputationContract interface {
	MinimumStake(ctx context.Context) (*big.Int, error)
	StakeTokens(ctx context.Context, amount *big.Int) error
	ReputationScore(ctx context.Context, account common.Address) (*big.Int, error)
	StakedAmount(ctx context.Context, account common.Address) (*big.Int, error)
}

type CreditContract interface {
	Approve(ctx context.Context, spender common.Address, amount *big.Int) error
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
}

type VerificationContract interface {
	Owner(ctx context.Context) (common.Address, error)
	SubmitAdminVerification(ctx context.Context, id uint64, approved bool) error
	SetAdminAddress(ctx context.Context, newAdmin common.Address) error
}

type NGORegistry interface {
	Count(ctx context.Context) (uint64, error)
	AddressAt(ctx context.Context, index uint64) (common.Address, error)
	Get(ctx context.Context, account common.Address) (models.NGO, error)
	Whitelist(ctx context.Context, account common.Address, name, country string) error
	SetStatus(ctx context.Context, account common.Address, status models.NGOStatus) error
}

type OracleContract interface {
	SendRequest(ctx context.Context, projectID uint64, latitude, longitude string) error
	ProjectScore(ctx context.Context, projectID uint64) (uint64, error)
}

// Contracts bundles one client per deployed contract, either the anonymous
// read-only set or the signing set of a live session.
type Contracts struct {
	Registry     ProjectRegistry
	Reputation   ReputationContract
	Credit       CreditContract
	Verification VerificationContract
	NGOs         NGORegistry
	Oracle       OracleContract
}

// SessionControl is the slice of the session manager the service drives.
type SessionControl interface {
	Connect(ctx context.Context, prompt bool) (models.SessionInfo, error)
	Disconnect()
	Info() models.SessionInfo
}

// ScoreFeed is the oracle subscriber surface: observed scores only; score
// requests go through the signing oracle client.
type ScoreFeed interface {
	Score(projectID uint64) (models.ScoreEvent, bool)
	Scores() []models.ScoreEvent
}

// ReadContracts adapts a read-only client set into the service's view.
func ReadContracts(cs *chain.ClientSet) Contracts {
	return Contracts{
		Registry:     cs.Registry,
		Reputation:   cs.Reputation,
		Credit:       cs.Credit,
		Verification: cs.Verification,
		NGOs:         cs.NGOs,
		Oracle:       cs.Oracle,
	}
}

// SigningFromManager yields the signing contract set of the current
// session, per call, so a replaced session is picked up immediately.
func SigningFromManager(mgr *session.Manager) func() (Contracts, models.SessionInfo, bool) {
	return func() (Contracts, models.SessionInfo, bool) {
		s := mgr.Current()
		if s == nil {
			return Contracts{}, models.AnonymousSession(), false
		}
		return Contracts{
			Registry:     s.Registry(),
			Reputation:   s.Reputation(),
			Credit:       s.Credit(),
			Verification: s.Verification(),
			NGOs:         s.NGOs(),
			Oracle:       s.Oracle(),
		}, s.Info(), true
	}
}

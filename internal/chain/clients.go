package chain

import (
	"context"
	"math/big"

	"github.com/AbhaySingh6921/carbon-SIH-Project/pkg/models"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Typed clients over the generic gateways. One client per deployed
// contract; the gateway serializes the actual RPC traffic.

type RegistryClient struct{ GW *Gateway }

type plantationRecord struct {
	Id          *big.Int
	Uploader    common.Address
	Species     string
	TreeCount   *big.Int
	IpfsHash    string
	Description string
	Latitude    string
	Longitude   string
	Status      uint8
}

func (r plantationRecord) toModel() models.Plantation {
	status := models.PlantationStatus(r.Status)
	return models.Plantation{
		ID:          r.Id.Uint64(),
		Uploader:    r.Uploader.Hex(),
		Species:     r.Species,
		TreeCount:   r.TreeCount.Uint64(),
		ContentRef:  r.IpfsHash,
		Status:      status,
		StatusLabel: status.String(),
		Description: r.Description,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
	}
}

func (c *RegistryClient) RegisterPlantation(ctx context.Context, species string, treeCount uint64, contentRef, description, latitude, longitude string) error {
	_, err := c.GW.Transact(ctx, "registerPlantation", species, new(big.Int).SetUint64(treeCount), contentRef, description, latitude, longitude)
	return err
}

func (c *RegistryClient) GetPlantation(ctx context.Context, id uint64) (models.Plantation, error) {
	var rec plantationRecord
	if err := c.GW.Call(ctx, &rec, "getPlantation", new(big.Int).SetUint64(id)); err != nil {
		return models.Plantation{}, err
	}
	return rec.toModel(), nil
}

func (c *RegistryClient) PlantationAt(ctx context.Context, index uint64) (models.Plantation, error) {
	var rec plantationRecord
	if err := c.GW.Call(ctx, &rec, "plantations", new(big.Int).SetUint64(index)); err != nil {
		return models.Plantation{}, err
	}
	return rec.toModel(), nil
}

func (c *RegistryClient) TotalPlantations(ctx context.Context) (uint64, error) {
	var total *big.Int
	if err := c.GW.Call(ctx, &total, "totalPlantations"); err != nil {
		return 0, err
	}
	return total.Uint64(), nil
}

func (c *RegistryClient) PlantationIDsByUploader(ctx context.Context, uploader common.Address) ([]uint64, error) {
	var raw []*big.Int
	if err := c.GW.Call(ctx, &raw, "getPlantationsByUploader", uploader); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, id.Uint64())
	}
	return ids, nil
}

type ReputationClient struct{ GW *Gateway }

func (c *ReputationClient) MinimumStake(ctx context.Context) (*big.Int, error) {
	var amount *big.Int
	if err := c.GW.Call(ctx, &amount, "minimumStake"); err != nil {
		return nil, err
	}
	return amount, nil
}

func (c *ReputationClient) StakeTokens(ctx context.Context, amount *big.Int) error {
	_, err := c.GW.Transact(ctx, "stakeTokens", amount)
	return err
}

func (c *ReputationClient) ReputationScore(ctx context.Context, account common.Address) (*big.Int, error) {
	var score *big.Int
	if err := c.GW.Call(ctx, &score, "reputationScore", account); err != nil {
		return nil, err
	}
	return score, nil
}

func (c *ReputationClient) StakedAmount(ctx context.Context, account common.Address) (*big.Int, error) {
	var staked *big.Int
	if err := c.GW.Call(ctx, &staked, "stakedAmount", account); err != nil {
		return nil, err
	}
	return staked, nil
}

type CreditClient struct{ GW *Gateway }

func (c *CreditClient) Approve(ctx context.Context, spender common.Address, amount *big.Int) error {
	_, err := c.GW.Transact(ctx, "approve", spender, amount)
	return err
}

func (c *CreditClient) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	var remaining *big.Int
	if err := c.GW.Call(ctx, &remaining, "allowance", owner, spender); err != nil {
		return nil, err
	}
	return remaining, nil
}

func (c *CreditClient) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	var balance *big.Int
	if err := c.GW.Call(ctx, &balance, "balanceOf", account); err != nil {
		return nil, err
	}
	return balance, nil
}

type VerificationClient struct{ GW *Gateway }

func (c *VerificationClient) Owner(ctx context.Context) (common.Address, error) {
	var owner common.Address
	if err := c.GW.Call(ctx, &owner, "owner"); err != nil {
		return common.Address{}, err
	}
	return owner, nil
}

func (c *VerificationClient) SubmitAdminVerification(ctx context.Context, id uint64, approved bool) error {
	_, err := c.GW.Transact(ctx, "submitAdminVerification", new(big.Int).SetUint64(id), approved)
	return err
}

func (c *VerificationClient) SetAdminAddress(ctx context.Context, newAdmin common.Address) error {
	_, err := c.GW.Transact(ctx, "setAdminAddress", newAdmin)
	return err
}

type NGOClient struct{ GW *Gateway }

type ngoRecord struct {
	Wallet  common.Address
	Name    string
	Country string
	Status  uint8
}

func (c *NGOClient) IsWhitelisted(ctx context.Context, account common.Address) (bool, error) {
	var whitelisted bool
	if err := c.GW.Call(ctx, &whitelisted, "isWhitelisted", account); err != nil {
		return false, err
	}
	return whitelisted, nil
}

func (c *NGOClient) Count(ctx context.Context) (uint64, error) {
	var count *big.Int
	if err := c.GW.Call(ctx, &count, "getNGOCount"); err != nil {
		return 0, err
	}
	return count.Uint64(), nil
}

func (c *NGOClient) AddressAt(ctx context.Context, index uint64) (common.Address, error) {
	var addr common.Address
	if err := c.GW.Call(ctx, &addr, "ngoList", new(big.Int).SetUint64(index)); err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

func (c *NGOClient) Get(ctx context.Context, account common.Address) (models.NGO, error) {
	var rec ngoRecord
	if err := c.GW.Call(ctx, &rec, "ngos", account); err != nil {
		return models.NGO{}, err
	}
	status := models.NGOStatus(rec.Status)
	return models.NGO{
		WalletAddress: rec.Wallet.Hex(),
		Name:          rec.Name,
		Country:       rec.Country,
		Status:        status,
		StatusLabel:   status.String(),
	}, nil
}

func (c *NGOClient) Whitelist(ctx context.Context, account common.Address, name, country string) error {
	_, err := c.GW.Transact(ctx, "whitelistNGO", account, name, country)
	return err
}

func (c *NGOClient) SetStatus(ctx context.Context, account common.Address, status models.NGOStatus) error {
	_, err := c.GW.Transact(ctx, "setNGOStatus", account, uint8(status))
	return err
}

type OracleClient struct{ GW *Gateway }

// ScoreReceived is the decoded oracle delivery. The score in it is a
// wake-up value only; callers re-read getProjectScore for the truth.
type ScoreReceived struct {
	RequestId [32]byte
	Score     *big.Int
	ProjectId *big.Int
}

func (s ScoreReceived) RequestIDHex() string {
	return hexutil.Encode(s.RequestId[:])
}

func (c *OracleClient) SendRequest(ctx context.Context, projectID uint64, latitude, longitude string) error {
	_, err := c.GW.Transact(ctx, "sendRequest", new(big.Int).SetUint64(projectID), []string{latitude, longitude})
	return err
}

func (c *OracleClient) ProjectScore(ctx context.Context, projectID uint64) (uint64, error) {
	var score *big.Int
	if err := c.GW.Call(ctx, &score, "getProjectScore", new(big.Int).SetUint64(projectID)); err != nil {
		return 0, err
	}
	return score.Uint64(), nil
}

func (c *OracleClient) WatchScoreReceived(ctx context.Context, sink chan<- types.Log) (ethereum.Subscription, error) {
	return c.GW.WatchLogs(ctx, "ScoreReceived", sink)
}

func (c *OracleClient) DecodeScoreReceived(lg types.Log) (ScoreReceived, error) {
	var ev ScoreReceived
	if err := c.GW.UnpackLog(&ev, "ScoreReceived", lg); err != nil {
		return ScoreReceived{}, err
	}
	return ev, nil
}

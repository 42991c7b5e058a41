package workflow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// WorkflowSubmit is the submission workflow name used for metrics and
// mutual-exclusion keys.
const WorkflowSubmit = "submit_project"

// Narrow views over the session clients; the workflow does not care which
// contract serves them.

type ContentPinner interface {
	Pin(ctx context.Context, filename string, data []byte) (string, error)
}

type StakeReader interface {
	MinimumStake(ctx context.Context) (*big.Int, error)
}

type CreditToken interface {
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, spender common.Address, amount *big.Int) error
}

type Staker interface {
	StakeTokens(ctx context.Context, amount *big.Int) error
}

type ProjectRegistrar interface {
	RegisterPlantation(ctx context.Context, species string, treeCount uint64, contentRef, description, latitude, longitude string) error
}

// Submission is the operator's input to the four-step project submission.
type Submission struct {
	Species     string
	TreeCount   uint64
	Description string
	Latitude    string
	Longitude   string
	FileName    string
	FileData    []byte
}

// ValidationError rejects a submission before any step runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid submission: %s %s", e.Field, e.Reason)
}

func (s Submission) Validate() error {
	if strings.TrimSpace(s.Species) == "" {
		return &ValidationError{Field: "species", Reason: "is required"}
	}
	if s.TreeCount == 0 {
		return &ValidationError{Field: "tree_count", Reason: "must be positive"}
	}
	if err := checkCoordinate(s.Latitude, 90); err != nil {
		return &ValidationError{Field: "latitude", Reason: err.Error()}
	}
	if err := checkCoordinate(s.Longitude, 180); err != nil {
		return &ValidationError{Field: "longitude", Reason: err.Error()}
	}
	if len(s.FileData) == 0 {
		return &ValidationError{Field: "file", Reason: "is required"}
	}
	return nil
}

func checkCoordinate(raw string, bound float64) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return errors.New("is not a number")
	}
	if v < -bound || v > bound {
		return fmt.Errorf("must be within ±%.0f", bound)
	}
	return nil
}

// SubmissionDeps binds the steps to a session's clients. Spender is the
// staking contract address; Owner is the signing identity.
type SubmissionDeps struct {
	Pinner   ContentPinner
	Stakes   StakeReader
	Credit   CreditToken
	Staking  Staker
	Registry ProjectRegistrar
	Owner    common.Address
	Spender  common.Address
}

// SubmissionResult accumulates step outputs across a run. A failed run keeps
// what completed: the pinned content ref stays valid and is reused verbatim
// when the run is retried.
type SubmissionResult struct {
	ContentRef string
	Staked     *big.Int
}

// SubmissionSteps builds the four-step flow: pin evidence, ensure the token
// allowance, stake, register. Steps 2 and 3 are idempotent on retry: an
// allowance already covering the minimum stake is not re-approved, and
// pinning identical bytes yields the identical content ref.
func SubmissionSteps(deps SubmissionDeps, sub Submission, res *SubmissionResult) []Step {
	return []Step{
		{
			Label: "upload evidence",
			Run: func(ctx context.Context) error {
				ref, err := deps.Pinner.Pin(ctx, sub.FileName, sub.FileData)
				if err != nil {
					return err
				}
				res.ContentRef = ref
				return nil
			},
		},
		{
			Label: "approve stake allowance",
			Run: func(ctx context.Context) error {
				minimum, err := deps.Stakes.MinimumStake(ctx)
				if err != nil {
					return err
				}
				res.Staked = minimum
				current, err := deps.Credit.Allowance(ctx, deps.Owner, deps.Spender)
				if err != nil {
					return err
				}
				if current.Cmp(minimum) >= 0 {
					return nil
				}
				return deps.Credit.Approve(ctx, deps.Spender, minimum)
			},
		},
		{
			Label: "stake tokens",
			Run: func(ctx context.Context) error {
				if res.Staked == nil {
					minimum, err := deps.Stakes.MinimumStake(ctx)
					if err != nil {
						return err
					}
					res.Staked = minimum
				}
				return deps.Staking.StakeTokens(ctx, res.Staked)
			},
		},
		{
			Label: "register plantation",
			Run: func(ctx context.Context) error {
				return deps.Registry.RegisterPlantation(ctx,
					sub.Species, sub.TreeCount, res.ContentRef,
					sub.Description, sub.Latitude, sub.Longitude)
			},
		},
	}
}

package workflow

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// submissionStub implements every submission dependency and records the call
// sequence.
type submissionStub struct {
	calls []string

	pinRef      string
	pinErr      error
	minimum     *big.Int
	allowance   *big.Int
	approveErr  error
	stakeErr    error
	registerErr error

	registered    Submission
	registeredRef string
}

func (s *submissionStub) Pin(_ context.Context, _ string, _ []byte) (string, error) {
	s.calls = append(s.calls, "pin")
	if s.pinErr != nil {
		return "", s.pinErr
	}
	return s.pinRef, nil
}

func (s *submissionStub) MinimumStake(context.Context) (*big.Int, error) {
	s.calls = append(s.calls, "minimumStake")
	return new(big.Int).Set(s.minimum), nil
}

func (s *submissionStub) Allowance(context.Context, common.Address, common.Address) (*big.Int, error) {
	s.calls = append(s.calls, "allowance")
	return new(big.Int).Set(s.allowance), nil
}

func (s *submissionStub) Approve(_ context.Context, _ common.Address, amount *big.Int) error {
	s.calls = append(s.calls, "approve")
	if s.approveErr != nil {
		return s.approveErr
	}
	s.allowance = new(big.Int).Set(amount)
	return nil
}

func (s *submissionStub) StakeTokens(_ context.Context, _ *big.Int) error {
	s.calls = append(s.calls, "stake")
	return s.stakeErr
}

func (s *submissionStub) RegisterPlantation(_ context.Context, species string, treeCount uint64, contentRef, description, latitude, longitude string) error {
	s.calls = append(s.calls, "register")
	if s.registerErr != nil {
		return s.registerErr
	}
	s.registered = Submission{
		Species:     species,
		TreeCount:   treeCount,
		Description: description,
		Latitude:    latitude,
		Longitude:   longitude,
	}
	s.registeredRef = contentRef
	return nil
}

func mangroveSubmission() Submission {
	return Submission{
		Species:     "Rhizophora mucronata",
		TreeCount:   5000,
		Description: "Mangrove restoration, Sundarbans east block",
		Latitude:    "21.9497",
		Longitude:   "89.1833",
		FileName:    "survey.jpg",
		FileData:    []byte("drone survey bytes"),
	}
}

func newSubmissionStub() *submissionStub {
	return &submissionStub{
		pinRef:    "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
		minimum:   big.NewInt(100),
		allowance: big.NewInt(0),
	}
}

func runSubmission(t *testing.T, stub *submissionStub, sub Submission, res *SubmissionResult) error {
	t.Helper()
	deps := SubmissionDeps{
		Pinner:   stub,
		Stakes:   stub,
		Credit:   stub,
		Staking:  stub,
		Registry: stub,
		Owner:    common.HexToAddress("0xaaa1"),
		Spender:  common.HexToAddress("0xbbb2"),
	}
	o := NewOrchestrator(nil)
	return o.Run(context.Background(), WorkflowSubmit, "k", SubmissionSteps(deps, sub, res), nil)
}

func TestSubmissionHappyPath(t *testing.T) {
	stub := newSubmissionStub()
	var res SubmissionResult
	if err := runSubmission(t, stub, mangroveSubmission(), &res); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{"pin", "minimumStake", "allowance", "approve", "stake", "register"}
	if len(stub.calls) != len(want) {
		t.Fatalf("calls = %v", stub.calls)
	}
	for i := range want {
		if stub.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", stub.calls, want)
		}
	}
	if res.ContentRef != stub.pinRef || stub.registeredRef != stub.pinRef {
		t.Fatalf("content ref must flow from pin to register, got %q", stub.registeredRef)
	}
	if stub.registered.Species != "Rhizophora mucronata" || stub.registered.TreeCount != 5000 {
		t.Fatalf("registered fields mangled: %+v", stub.registered)
	}
}

func TestSubmissionSkipsApproveWhenAllowanceCovers(t *testing.T) {
	stub := newSubmissionStub()
	stub.allowance = big.NewInt(500)
	var res SubmissionResult
	if err := runSubmission(t, stub, mangroveSubmission(), &res); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, call := range stub.calls {
		if call == "approve" {
			t.Fatal("a covering allowance must not be re-approved")
		}
	}
}

func TestSubmissionFailureKeepsEarlierEffects(t *testing.T) {
	stub := newSubmissionStub()
	stub.stakeErr = errors.New("insufficient balance")
	var res SubmissionResult
	err := runSubmission(t, stub, mangroveSubmission(), &res)

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got %v", err)
	}
	if stepErr.Step != 3 || stepErr.Label != "stake tokens" {
		t.Fatalf("wrong failure attribution: %+v", stepErr)
	}
	for _, call := range stub.calls {
		if call == "register" {
			t.Fatal("registration must not run after a stake failure")
		}
	}
	// The pinned content survives the failed run for the retry.
	if res.ContentRef != stub.pinRef {
		t.Fatalf("content ref lost: %q", res.ContentRef)
	}
}

func TestSubmissionRetryDoesNotReapprove(t *testing.T) {
	stub := newSubmissionStub()
	stub.stakeErr = errors.New("nonce too low")
	var res SubmissionResult
	if err := runSubmission(t, stub, mangroveSubmission(), &res); err == nil {
		t.Fatal("first run should fail at stake")
	}

	stub.stakeErr = nil
	stub.calls = nil
	res = SubmissionResult{}
	if err := runSubmission(t, stub, mangroveSubmission(), &res); err != nil {
		t.Fatalf("retry: %v", err)
	}
	for _, call := range stub.calls {
		if call == "approve" {
			t.Fatal("retry must reuse the allowance granted by the first run")
		}
	}
}

func TestSubmissionValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Submission)
		field  string
	}{
		{"ok", func(*Submission) {}, ""},
		{"missing species", func(s *Submission) { s.Species = "  " }, "species"},
		{"zero trees", func(s *Submission) { s.TreeCount = 0 }, "tree_count"},
		{"bad latitude", func(s *Submission) { s.Latitude = "north" }, "latitude"},
		{"latitude out of range", func(s *Submission) { s.Latitude = "91.2" }, "latitude"},
		{"longitude out of range", func(s *Submission) { s.Longitude = "-240" }, "longitude"},
		{"missing file", func(s *Submission) { s.FileData = nil }, "file"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := mangroveSubmission()
			tc.mutate(&sub)
			err := sub.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field {
				t.Fatalf("expected validation error on %s, got %v", tc.field, err)
			}
		})
	}
}

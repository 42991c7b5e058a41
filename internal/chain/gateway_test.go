package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type testSigner struct {
	addr common.Address
	sign func(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

func (s *testSigner) Address() common.Address { return s.addr }
func (s *testSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return s.sign(tx, chainID)
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	return &testSigner{
		addr: addr,
		sign: func(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
			return types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
		},
	}
}

type revertError struct {
	msg  string
	data string
}

func (e *revertError) Error() string          { return e.msg }
func (e *revertError) ErrorData() interface{} { return e.data }

// encodeRevert builds the ABI encoding of Error(string).
func encodeRevert(t *testing.T, reason string) string {
	t.Helper()
	typ := mustABI(`[{"type":"function","name":"Error","inputs":[{"name":"reason","type":"string"}],"outputs":[]}]`)
	packed, err := typ.Pack("Error", reason)
	if err != nil {
		t.Fatalf("pack revert: %v", err)
	}
	return hexutil.Encode(packed)
}

type stubBackend struct {
	mu       sync.Mutex
	callFn   func(msg ethereum.CallMsg) ([]byte, error)
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	subErr   error
}

func (b *stubBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	return b.callFn(msg)
}

func (b *stubBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (b *stubBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *stubBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (b *stubBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	if b.receipts == nil {
		b.receipts = make(map[common.Hash]*types.Receipt)
	}
	b.receipts[tx.Hash()] = &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: tx.Hash()}
	return nil
}

func (b *stubBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (b *stubBackend) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, b.subErr
}

func (b *stubBackend) sentCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sent)
}

func packOutput(t *testing.T, name, method string, values ...any) []byte {
	t.Helper()
	parsed, err := ContractABI(name)
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("pack outputs for %s: %v", method, err)
	}
	return out
}

func newGateway(t *testing.T, name string, backend Backend, opts Options) *Gateway {
	t.Helper()
	parsed, err := ContractABI(name)
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	opts.ChainID = 11155111
	opts.ConfirmInterval = 1
	return NewGateway(name, common.HexToAddress("0x5Bd7094F1Dcfd1EE844260fe3ED1A427c201B85b"), parsed, backend, opts)
}

func TestCallDecodesSingleOutput(t *testing.T) {
	backend := &stubBackend{callFn: func(ethereum.CallMsg) ([]byte, error) {
		return packOutput(t, ContractReputation, "minimumStake", big.NewInt(100)), nil
	}}
	gw := newGateway(t, ContractReputation, backend, Options{})

	var amount *big.Int
	if err := gw.Call(context.Background(), &amount, "minimumStake"); err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if amount.Int64() != 100 {
		t.Fatalf("unexpected minimum stake: %s", amount)
	}
}

func TestCallDecodesPlantationRecord(t *testing.T) {
	uploader := common.HexToAddress("0xA4ef2885D0A00F21D0Ac59d1b9178cDD92e2e17a")
	backend := &stubBackend{callFn: func(ethereum.CallMsg) ([]byte, error) {
		return packOutput(t, ContractRegistry, "getPlantation",
			big.NewInt(3), uploader, "Rhizophora", big.NewInt(5000),
			"QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
			"Coastal mangrove restoration", "63.1466", "-21.9426", uint8(0)), nil
	}}
	client := &RegistryClient{GW: newGateway(t, ContractRegistry, backend, Options{})}

	p, err := client.GetPlantation(context.Background(), 3)
	if err != nil {
		t.Fatalf("getPlantation failed: %v", err)
	}
	if p.ID != 3 || p.Species != "Rhizophora" || p.TreeCount != 5000 {
		t.Fatalf("unexpected plantation: %#v", p)
	}
	if p.StatusLabel != "Submitted" {
		t.Fatalf("unexpected status label: %q", p.StatusLabel)
	}
	if p.Uploader != uploader.Hex() {
		t.Fatalf("unexpected uploader: %q", p.Uploader)
	}
}

func TestCallWrapsBackendFailure(t *testing.T) {
	backend := &stubBackend{callFn: func(ethereum.CallMsg) ([]byte, error) {
		return nil, errors.New("connection refused")
	}}
	gw := newGateway(t, ContractReputation, backend, Options{})

	var amount *big.Int
	err := gw.Call(context.Background(), &amount, "minimumStake")
	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected ReadError, got %v", err)
	}
	if readErr.Contract != ContractReputation || readErr.Method != "minimumStake" {
		t.Fatalf("unexpected error context: %#v", readErr)
	}
}

func TestTransactRevertNeverSends(t *testing.T) {
	backend := &stubBackend{callFn: func(msg ethereum.CallMsg) ([]byte, error) {
		if msg.From != (common.Address{}) {
			return nil, &revertError{
				msg:  "execution reverted",
				data: encodeRevert(t, "Only owner can set admin"),
			}
		}
		return nil, errors.New("unexpected call")
	}}
	client := &VerificationClient{GW: newGateway(t, ContractVerification, backend, Options{Signer: newTestSigner(t)})}

	err := client.SetAdminAddress(context.Background(), common.HexToAddress("0x1"))
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected WriteError, got %v", err)
	}
	if writeErr.Reason != "Only owner can set admin" {
		t.Fatalf("revert reason not preserved: %q", writeErr.Reason)
	}
	if backend.sentCount() != 0 {
		t.Fatal("transaction must not be sent after a reverting pre-flight")
	}
}

func TestTransactWaitsForReceipt(t *testing.T) {
	backend := &stubBackend{callFn: func(ethereum.CallMsg) ([]byte, error) {
		return packOutput(t, ContractCarbonCredit, "approve", true), nil
	}}
	gw := newGateway(t, ContractCarbonCredit, backend, Options{Signer: newTestSigner(t)})

	receipt, err := gw.Transact(context.Background(), "approve",
		common.HexToAddress("0xFf48c1572322f0FdD1427b3F17287DD5bbF2052e"), big.NewInt(100))
	if err != nil {
		t.Fatalf("transact failed: %v", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		t.Fatalf("unexpected receipt status: %d", receipt.Status)
	}
	if backend.sentCount() != 1 {
		t.Fatalf("expected exactly one sent transaction, got %d", backend.sentCount())
	}
}

func TestTransactReadOnlyGateway(t *testing.T) {
	backend := &stubBackend{callFn: func(ethereum.CallMsg) ([]byte, error) { return nil, nil }}
	gw := newGateway(t, ContractCarbonCredit, backend, Options{})

	_, err := gw.Transact(context.Background(), "approve", common.HexToAddress("0x1"), big.NewInt(1))
	if !errors.Is(err, ErrReadOnlyGateway) {
		t.Fatalf("expected ErrReadOnlyGateway, got %v", err)
	}
}

func TestTransactAfterInvalidationFailsImmediately(t *testing.T) {
	done := make(chan struct{})
	close(done)
	backend := &stubBackend{callFn: func(ethereum.CallMsg) ([]byte, error) { return nil, nil }}
	gw := newGateway(t, ContractReputation, backend, Options{Signer: newTestSigner(t), Done: done})

	_, err := gw.Transact(context.Background(), "stakeTokens", big.NewInt(100))
	if !errors.Is(err, ErrSessionInvalidated) {
		t.Fatalf("expected ErrSessionInvalidated, got %v", err)
	}
	if backend.sentCount() != 0 {
		t.Fatal("no transaction may be sent for an invalidated session")
	}
}

func TestRevertReasonFromMessageOnly(t *testing.T) {
	reason := RevertReason(errors.New("execution reverted: Insufficient stake"))
	if reason != "Insufficient stake" {
		t.Fatalf("unexpected reason: %q", reason)
	}
	if got := RevertReason(errors.New("connection refused")); got != "" {
		t.Fatalf("expected empty reason, got %q", got)
	}
}

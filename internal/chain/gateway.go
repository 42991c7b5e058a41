// Package chain holds the contract gateways: typed adapters that translate
// logical operations into calls against one deployed contract each, over a
// shared RPC connection.
package chain

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/time/rate"
)

const defaultConfirmInterval = 2 * time.Second

// Options configure a gateway beyond its contract binding. A nil Signer
// makes the gateway read-only (queries issued before any session exists).
type Options struct {
	Signer          TxSigner
	ChainID         uint64
	Done            <-chan struct{}
	Logger          *slog.Logger
	Limiter         *rate.Limiter
	ConfirmInterval time.Duration
}

type Gateway struct {
	name            string
	addr            common.Address
	abi             abi.ABI
	backend         Backend
	signer          TxSigner
	chainID         *big.Int
	done            <-chan struct{}
	limiter         *rate.Limiter
	confirmInterval time.Duration
	log             *slog.Logger
}

func NewGateway(name string, addr common.Address, contractABI abi.ABI, backend Backend, opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := opts.ConfirmInterval
	if interval <= 0 {
		interval = defaultConfirmInterval
	}
	return &Gateway{
		name:            name,
		addr:            addr,
		abi:             contractABI,
		backend:         backend,
		signer:          opts.Signer,
		chainID:         new(big.Int).SetUint64(opts.ChainID),
		done:            opts.Done,
		limiter:         opts.Limiter,
		confirmInterval: interval,
		log:             logger.With("contract", name),
	}
}

func (g *Gateway) Name() string            { return g.name }
func (g *Gateway) Address() common.Address { return g.addr }

// SignerAddress returns the bound identity, or false for read-only gateways.
func (g *Gateway) SignerAddress() (common.Address, bool) {
	if g.signer == nil {
		return common.Address{}, false
	}
	return g.signer.Address(), true
}

// Call executes a read and decodes the outputs into out (a pointer to the
// value for single-output methods, a struct with matching field names for
// multi-output ones).
func (g *Gateway) Call(ctx context.Context, out any, method string, args ...any) error {
	if err := g.pace(ctx); err != nil {
		return &ReadError{Contract: g.name, Method: method, Err: err}
	}
	input, err := g.abi.Pack(method, args...)
	if err != nil {
		return &ReadError{Contract: g.name, Method: method, Err: err}
	}
	msg := ethereum.CallMsg{To: &g.addr, Data: input}
	if g.signer != nil {
		msg.From = g.signer.Address()
	}
	raw, err := g.backend.CallContract(ctx, msg, nil)
	if err != nil {
		readsTotal.WithLabelValues(g.name, method, "error").Inc()
		return &ReadError{Contract: g.name, Method: method, Err: err}
	}
	if len(raw) == 0 {
		readsTotal.WithLabelValues(g.name, method, "error").Inc()
		return &ReadError{Contract: g.name, Method: method, Err: errors.New("empty call result")}
	}
	if err := g.abi.UnpackIntoInterface(out, method, raw); err != nil {
		readsTotal.WithLabelValues(g.name, method, "error").Inc()
		return &ReadError{Contract: g.name, Method: method, Err: err}
	}
	readsTotal.WithLabelValues(g.name, method, "ok").Inc()
	return nil
}

// Transact submits a write and blocks until the transaction is mined. The
// call is simulated from the signer address first: a revert surfaces here
// with its reason, and nothing is sent, so a failed write is never reported
// as a success that later unwound.
func (g *Gateway) Transact(ctx context.Context, method string, args ...any) (*types.Receipt, error) {
	if g.signer == nil {
		return nil, &WriteError{Contract: g.name, Method: method, Err: ErrReadOnlyGateway}
	}
	if err := g.live(); err != nil {
		return nil, &WriteError{Contract: g.name, Method: method, Err: err}
	}
	if err := g.pace(ctx); err != nil {
		return nil, &WriteError{Contract: g.name, Method: method, Err: err}
	}
	input, err := g.abi.Pack(method, args...)
	if err != nil {
		return nil, &WriteError{Contract: g.name, Method: method, Err: err}
	}

	from := g.signer.Address()
	msg := ethereum.CallMsg{From: from, To: &g.addr, Data: input}
	if _, err := g.backend.CallContract(ctx, msg, nil); err != nil {
		revertsTotal.WithLabelValues(g.name, method).Inc()
		return nil, &WriteError{Contract: g.name, Method: method, Reason: RevertReason(err), Err: err}
	}

	gas, err := g.backend.EstimateGas(ctx, msg)
	if err != nil {
		return nil, &WriteError{Contract: g.name, Method: method, Reason: RevertReason(err), Err: err}
	}
	nonce, err := g.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, &WriteError{Contract: g.name, Method: method, Err: err}
	}
	gasPrice, err := g.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, &WriteError{Contract: g.name, Method: method, Err: err}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &g.addr,
		Gas:      gas + gas/4,
		GasPrice: gasPrice,
		Data:     input,
	})
	signed, err := g.signer.SignTx(tx, g.chainID)
	if err != nil {
		return nil, &WriteError{Contract: g.name, Method: method, Err: err}
	}
	if err := g.backend.SendTransaction(ctx, signed); err != nil {
		writesTotal.WithLabelValues(g.name, method, "error").Inc()
		return nil, &WriteError{Contract: g.name, Method: method, Reason: RevertReason(err), Err: err}
	}

	g.log.Info("transaction sent", "method", method, "tx", signed.Hash().Hex())
	receipt, err := g.waitMined(ctx, signed.Hash())
	if err != nil {
		writesTotal.WithLabelValues(g.name, method, "error").Inc()
		return nil, &WriteError{Contract: g.name, Method: method, Err: err}
	}
	if receipt.Status == types.ReceiptStatusFailed {
		writesTotal.WithLabelValues(g.name, method, "reverted").Inc()
		return nil, &WriteError{Contract: g.name, Method: method, Err: errors.New("transaction reverted on chain")}
	}
	writesTotal.WithLabelValues(g.name, method, "ok").Inc()
	return receipt, nil
}

// WatchLogs subscribes to one event type on this contract. Callers must
// call Unsubscribe on the returned subscription when their interest ends.
func (g *Gateway) WatchLogs(ctx context.Context, event string, sink chan<- types.Log) (ethereum.Subscription, error) {
	ev, ok := g.abi.Events[event]
	if !ok {
		return nil, &ReadError{Contract: g.name, Method: event, Err: errors.New("unknown event")}
	}
	q := ethereum.FilterQuery{
		Addresses: []common.Address{g.addr},
		Topics:    [][]common.Hash{{ev.ID}},
	}
	sub, err := g.backend.SubscribeFilterLogs(ctx, q, sink)
	if err != nil {
		return nil, &ReadError{Contract: g.name, Method: event, Err: err}
	}
	return sub, nil
}

// UnpackLog decodes a delivered log's data section into out.
func (g *Gateway) UnpackLog(out any, event string, lg types.Log) error {
	if err := g.abi.UnpackIntoInterface(out, event, lg.Data); err != nil {
		return &ReadError{Contract: g.name, Method: event, Err: err}
	}
	return nil
}

// waitMined polls for the receipt. There is no timeout of our own: a
// transaction that has not confirmed yet is still pending, not failed.
func (g *Gateway) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(g.confirmInterval)
	defer ticker.Stop()
	for {
		receipt, err := g.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			g.log.Debug("receipt poll failed", "tx", hash.Hex(), "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-g.done:
			return nil, ErrSessionInvalidated
		case <-ticker.C:
		}
	}
}

func (g *Gateway) live() error {
	select {
	case <-g.done:
		return ErrSessionInvalidated
	default:
		return nil
	}
}

func (g *Gateway) pace(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}

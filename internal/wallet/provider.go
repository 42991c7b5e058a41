// Package wallet owns the local keystore identity the daemon signs with
// and notifies listeners when the active identity or network changes.
package wallet

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrNoWallet means no keystore is reachable at all.
	ErrNoWallet = errors.New("no wallet keystore available")
	// ErrUserRejected means authorization was declined (or the passphrase
	// did not unlock the keystore).
	ErrUserRejected = errors.New("wallet authorization rejected")
)

type EventKind int

const (
	IdentityChanged EventKind = iota
	NetworkChanged
)

// Event is the typed notification pushed to subscribers. For
// IdentityChanged an empty Address means no identity remains.
type Event struct {
	Kind    EventKind
	Address string
	ChainID uint64
}

// Account exposes the signing surface of one unlocked identity.
type Account interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// AuthorizeFunc supplies the keystore passphrase. prompt=false is a silent
// attempt (startup reconnect, identity switch); implementations must not
// interact with the operator in that case.
type AuthorizeFunc func(ctx context.Context, prompt bool) (string, error)

type Provider interface {
	// RequestAuthorization unlocks the keystore if needed and returns the
	// active account. Fails with ErrNoWallet or ErrUserRejected.
	RequestAuthorization(ctx context.Context, prompt bool) (Account, error)
	CurrentAccount() (Account, bool)
	ChainID() uint64
	Subscribe(fn func(Event)) (unsubscribe func())
}

package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/securestore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrNoSuchAccount   = errors.New("no such account index")
)

const keystoreVersion = 1

type keystoreFile struct {
	Version  int    `json:"version"`
	Mnemonic string `json:"mnemonic"`
	Accounts int    `json:"accounts"`
}

type localAccount struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func (a *localAccount) Address() common.Address { return a.addr }

func (a *localAccount) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), a.key)
}

// KeyringProvider is the daemon-side wallet: a bip39 seed encrypted at rest,
// unlocked with a passphrase obtained through the authorize hook.
type KeyringProvider struct {
	mu        sync.RWMutex
	path      string
	authorize AuthorizeFunc
	chainID   uint64
	accounts  []*localAccount
	active    int
	unlocked  bool
	subs      map[int]func(Event)
	nextSub   int
	log       *slog.Logger
}

func NewKeyringProvider(path string, chainID uint64, authorize AuthorizeFunc, log *slog.Logger) *KeyringProvider {
	if log == nil {
		log = slog.Default()
	}
	return &KeyringProvider{
		path:      strings.TrimSpace(path),
		authorize: authorize,
		chainID:   chainID,
		subs:      make(map[int]func(Event)),
		log:       log,
	}
}

// CreateKeystore writes a fresh keystore with a new mnemonic and returns the
// mnemonic for the operator to back up.
func CreateKeystore(path, passphrase string, accounts int) (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", err
	}
	if err := writeKeystore(path, passphrase, mnemonic, accounts); err != nil {
		return "", err
	}
	return mnemonic, nil
}

// ImportKeystore writes a keystore from an existing mnemonic.
func ImportKeystore(path, passphrase, mnemonic string, accounts int) error {
	mnemonic = strings.TrimSpace(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return ErrInvalidMnemonic
	}
	return writeKeystore(path, passphrase, mnemonic, accounts)
}

func writeKeystore(path, passphrase, mnemonic string, accounts int) error {
	if accounts < 1 {
		accounts = 1
	}
	return securestore.WriteEncryptedJSON(path, passphrase, keystoreFile{
		Version:  keystoreVersion,
		Mnemonic: mnemonic,
		Accounts: accounts,
	})
}

func (p *KeyringProvider) RequestAuthorization(ctx context.Context, prompt bool) (Account, error) {
	p.mu.RLock()
	if p.unlocked {
		acct := p.accounts[p.active]
		p.mu.RUnlock()
		return acct, nil
	}
	p.mu.RUnlock()

	if p.path == "" {
		return nil, ErrNoWallet
	}
	if _, err := os.Stat(p.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoWallet
		}
		return nil, fmt.Errorf("keystore inaccessible: %w", err)
	}
	if p.authorize == nil {
		return nil, ErrUserRejected
	}
	passphrase, err := p.authorize(ctx, prompt)
	if err != nil || strings.TrimSpace(passphrase) == "" {
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUserRejected, err)
		}
		return nil, ErrUserRejected
	}

	raw, err := securestore.ReadDecryptedFile(p.path, passphrase)
	if err != nil {
		if errors.Is(err, securestore.ErrAuthFailed) {
			return nil, ErrUserRejected
		}
		return nil, fmt.Errorf("keystore unreadable: %w", err)
	}
	var stored keystoreFile
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("keystore payload invalid: %w", err)
	}
	if stored.Version != keystoreVersion || !bip39.IsMnemonicValid(stored.Mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	accounts, err := deriveAccounts(stored.Mnemonic, stored.Accounts)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.accounts = accounts
	p.active = 0
	p.unlocked = true
	acct := p.accounts[0]
	p.mu.Unlock()

	p.log.Info("keystore unlocked", "address", acct.addr.Hex(), "accounts", len(accounts))
	return acct, nil
}

func (p *KeyringProvider) CurrentAccount() (Account, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.unlocked {
		return nil, false
	}
	return p.accounts[p.active], true
}

func (p *KeyringProvider) Accounts() []common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]common.Address, 0, len(p.accounts))
	for _, a := range p.accounts {
		out = append(out, a.addr)
	}
	return out
}

// SwitchAccount changes the active identity and notifies subscribers, the
// same externally-delivered notification a browser wallet emits on account
// switch.
func (p *KeyringProvider) SwitchAccount(index int) error {
	p.mu.Lock()
	if !p.unlocked || index < 0 || index >= len(p.accounts) {
		p.mu.Unlock()
		return ErrNoSuchAccount
	}
	p.active = index
	addr := p.accounts[index].addr
	p.mu.Unlock()

	p.emit(Event{Kind: IdentityChanged, Address: addr.Hex()})
	return nil
}

// Lock forgets the unlocked keys and notifies subscribers that no identity
// remains.
func (p *KeyringProvider) Lock() {
	p.mu.Lock()
	if !p.unlocked {
		p.mu.Unlock()
		return
	}
	p.unlocked = false
	p.accounts = nil
	p.active = 0
	p.mu.Unlock()

	p.emit(Event{Kind: IdentityChanged})
}

func (p *KeyringProvider) ChainID() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.chainID
}

// SetChainID emits a network-changed notification. Contract addresses are
// network-specific, so listeners treat this as a full reset.
func (p *KeyringProvider) SetChainID(chainID uint64) {
	p.mu.Lock()
	if p.chainID == chainID {
		p.mu.Unlock()
		return
	}
	p.chainID = chainID
	p.mu.Unlock()

	p.emit(Event{Kind: NetworkChanged, ChainID: chainID})
}

func (p *KeyringProvider) Subscribe(fn func(Event)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *KeyringProvider) emit(ev Event) {
	p.mu.RLock()
	fns := make([]func(Event), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func deriveAccounts(mnemonic string, count int) ([]*localAccount, error) {
	if count < 1 {
		count = 1
	}
	seed := bip39.NewSeed(mnemonic, "")
	accounts := make([]*localAccount, 0, count)
	for i := 0; i < count; i++ {
		key, err := deriveAccountKey(seed, byte(i))
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, &localAccount{
			key:  key,
			addr: crypto.PubkeyToAddress(key.PublicKey),
		})
	}
	return accounts, nil
}

func deriveAccountKey(seed []byte, index byte) (*ecdsa.PrivateKey, error) {
	material := crypto.Keccak256(seed, []byte{index})
	// Re-hash on the vanishingly rare scalar outside the curve order.
	for attempt := 0; attempt < 8; attempt++ {
		key, err := crypto.ToECDSA(material)
		if err == nil {
			return key, nil
		}
		material = crypto.Keccak256(material)
	}
	return nil, errors.New("account key derivation failed")
}

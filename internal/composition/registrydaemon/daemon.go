// Package registrydaemon wires configuration, chain connections, the
// wallet keyring and the daemon service into a runnable process.
package registrydaemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"

	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/api"
	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/app"
	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/bootstrap/chainconfig"
	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/chain"
	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/oracle"
	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/platform/privacylog"
	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/session"
	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/storage/ipfscontent"
	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/wallet"
	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/workflow"
	"github.com/AbhaySingh6921/carbon-SIH-Project/pkg/models"
)

const (
	passphraseEnv = "CARBON_WALLET_PASSPHRASE"
	rpcTokenEnv   = "CARBON_RPC_TOKEN"

	keystoreFileName = "keystore.json"
)

// Options are the command-line overrides applied on top of the loaded
// configuration file.
type Options struct {
	ConfigPath string
	DataDir    string
	APIAddr    string
}

// Daemon owns the long-running pieces: the session manager, the oracle
// subscriber and the RPC server.
type Daemon struct {
	mgr *session.Manager
	sub *oracle.Subscriber
	srv *api.Server
	log *slog.Logger
}

// New loads configuration, dials the chain and assembles the full service
// stack. The returned daemon is inert until Run is called.
func New(ctx context.Context, opts Options) (*Daemon, error) {
	cfg := loadConfig(opts)
	addrs, err := cfg.ContractAddresses()
	if err != nil {
		return nil, err
	}
	if cfg.Network.RPCURL == "" {
		return nil, errors.New("network.rpcUrl is not configured")
	}

	log := slog.New(privacylog.WrapHandler(slog.NewJSONHandler(os.Stdout, nil)))

	backend, err := chain.Dial(ctx, cfg.Network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	// Log subscriptions need a websocket endpoint; reads and sends work
	// over plain HTTP.
	watchBackend := backend
	if cfg.Network.WSURL != "" {
		watchBackend, err = chain.Dial(ctx, cfg.Network.WSURL)
		if err != nil {
			return nil, fmt.Errorf("dial chain ws: %w", err)
		}
	}

	var limiter *rate.Limiter
	if cfg.Network.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Network.RequestsPerSec), cfg.Network.Burst)
	}
	readOpts := chain.Options{
		ChainID:         cfg.Network.ChainID,
		Logger:          log,
		Limiter:         limiter,
		ConfirmInterval: cfg.Network.ConfirmInterval,
	}
	reads, err := chain.NewClientSet(backend, addrs, readOpts)
	if err != nil {
		return nil, err
	}
	watches, err := chain.NewClientSet(watchBackend, addrs, readOpts)
	if err != nil {
		return nil, err
	}

	provider := wallet.NewKeyringProvider(keystorePath(cfg), cfg.Network.ChainID, passphraseFromEnv(), log)
	marker := session.NewReconnectMarker(cfg.DataDir)
	mgr := session.NewManager(provider, backend, session.Config{
		ChainID:         cfg.Network.ChainID,
		Contracts:       addrs,
		Admins:          session.NewAdminSet(cfg.Admins),
		ConfirmInterval: cfg.Network.ConfirmInterval,
		RequestsPerSec:  cfg.Network.RequestsPerSec,
		Burst:           cfg.Network.Burst,
	}, marker, log)

	hub := app.NewNotificationHub(256)
	mgr.SetOnChange(func(info models.SessionInfo) {
		hub.Publish(app.EventSessionChanged, info)
	})
	mgr.SetOnReset(func() {
		hub.Publish(app.EventNetworkChanged, mgr.Info())
	})

	sub := oracle.NewSubscriber(watches.Oracle, log)
	sub.Subscribe(func(ev models.ScoreEvent) {
		hub.Publish(app.EventScoreReceived, ev)
	})

	svc := app.NewService(app.ServiceConfig{
		Sessions:     mgr,
		Signing:      app.SigningFromManager(mgr),
		Reads:        app.ReadContracts(reads),
		Pinner:       ipfscontent.NewClient(cfg.Storage.Endpoint, cfg.Storage.Token, log),
		Orchestrator: workflow.NewOrchestrator(log),
		Feed:         sub,
		Hub:          hub,
		StakeSpender: addrs[chain.ContractReputation],
		Logger:       log,
	})

	srv := api.NewServer(cfg.API.Addr, os.Getenv(rpcTokenEnv), svc, log)
	return &Daemon{mgr: mgr, sub: sub, srv: srv, log: log}, nil
}

// Run serves until ctx is canceled. Cancellation is a clean shutdown, not
// an error.
func (d *Daemon) Run(ctx context.Context) error {
	unsubscribe := d.mgr.Start(ctx)
	defer unsubscribe()

	go func() {
		if err := d.sub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Error("score subscriber stopped", "error", err)
		}
	}()

	err := d.srv.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// InitKeystore creates the keystore at the configured path and returns the
// generated mnemonic for the operator to back up. A non-empty mnemonic
// imports an existing seed instead; the returned string is then empty.
func InitKeystore(opts Options, mnemonic string) (string, error) {
	cfg := loadConfig(opts)
	pass, err := passphraseFromEnv()(context.Background(), true)
	if err != nil {
		return "", err
	}
	path := keystorePath(cfg)
	if mnemonic != "" {
		return "", wallet.ImportKeystore(path, pass, mnemonic, cfg.Wallet.Accounts)
	}
	return wallet.CreateKeystore(path, pass, cfg.Wallet.Accounts)
}

func loadConfig(opts Options) chainconfig.Config {
	cfg := chainconfig.LoadFromPath(opts.ConfigPath)
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.APIAddr != "" {
		cfg.API.Addr = opts.APIAddr
	}
	return cfg
}

func keystorePath(cfg chainconfig.Config) string {
	if cfg.Wallet.KeystorePath != "" {
		return cfg.Wallet.KeystorePath
	}
	return filepath.Join(cfg.DataDir, keystoreFileName)
}

func passphraseFromEnv() wallet.AuthorizeFunc {
	return func(ctx context.Context, prompt bool) (string, error) {
		pass := strings.TrimSpace(os.Getenv(passphraseEnv))
		if pass == "" {
			return "", fmt.Errorf("%s is not set", passphraseEnv)
		}
		return pass, nil
	}
}

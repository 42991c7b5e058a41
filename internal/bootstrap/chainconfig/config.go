// Package chainconfig loads the daemon configuration: network endpoints,
// deployed contract addresses, the admin allowlist, and the ambient service
// settings. File values override defaults, environment overrides both.
package chainconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Network   NetworkConfig
	Contracts map[string]string
	Admins    []string
	Wallet    WalletConfig
	Storage   StorageConfig
	API       APIConfig
	DataDir   string
}

type NetworkConfig struct {
	RPCURL          string
	WSURL           string
	ChainID         uint64
	ConfirmInterval time.Duration
	RequestsPerSec  float64
	Burst           int
}

type WalletConfig struct {
	KeystorePath string
	Accounts     int
}

type StorageConfig struct {
	Endpoint string
	Token    string
}

type APIConfig struct {
	Addr string
}

func DefaultConfig() Config {
	return Config{
		Network: NetworkConfig{
			ChainID:         11155111,
			ConfirmInterval: 2 * time.Second,
			RequestsPerSec:  10,
			Burst:           5,
		},
		Contracts: map[string]string{},
		Wallet:    WalletConfig{Accounts: 1},
		Storage:   StorageConfig{Endpoint: "https://api.pinata.cloud"},
		API:       APIConfig{Addr: "127.0.0.1:8799"},
		DataDir:   defaultDataDir(),
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".carbon-registry"
	}
	return home + "/.carbon-registry"
}

type fileConfig struct {
	Network   fileNetworkConfig `yaml:"network"`
	Contracts map[string]string `yaml:"contracts"`
	Admins    []string          `yaml:"admins"`
	Wallet    fileWalletConfig  `yaml:"wallet"`
	Storage   fileStorageConfig `yaml:"storage"`
	API       fileAPIConfig     `yaml:"api"`
	DataDir   string            `yaml:"dataDir"`
}

type fileNetworkConfig struct {
	RPCURL          string        `yaml:"rpcUrl"`
	WSURL           string        `yaml:"wsUrl"`
	ChainID         uint64        `yaml:"chainId"`
	ConfirmInterval time.Duration `yaml:"confirmInterval"`
	RequestsPerSec  float64       `yaml:"requestsPerSec"`
	Burst           int           `yaml:"burst"`
}

type fileWalletConfig struct {
	KeystorePath string `yaml:"keystorePath"`
	Accounts     int    `yaml:"accounts"`
}

type fileStorageConfig struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
}

type fileAPIConfig struct {
	Addr string `yaml:"addr"`
}

func LoadFromPath(configPath string) Config {
	cfg := DefaultConfig()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"configs/config.yaml",
			"config.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}

		merged := cfg
		Merge(&merged, parsed)
		ApplyEnvOverrides(&merged)
		return merged
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

func Merge(dst *Config, src fileConfig) {
	if src.Network.RPCURL != "" {
		dst.Network.RPCURL = src.Network.RPCURL
	}
	if src.Network.WSURL != "" {
		dst.Network.WSURL = src.Network.WSURL
	}
	if src.Network.ChainID != 0 {
		dst.Network.ChainID = src.Network.ChainID
	}
	if src.Network.ConfirmInterval != 0 {
		dst.Network.ConfirmInterval = src.Network.ConfirmInterval
	}
	if src.Network.RequestsPerSec != 0 {
		dst.Network.RequestsPerSec = src.Network.RequestsPerSec
	}
	if src.Network.Burst != 0 {
		dst.Network.Burst = src.Network.Burst
	}
	if len(src.Contracts) > 0 {
		merged := make(map[string]string, len(dst.Contracts)+len(src.Contracts))
		for name, addr := range dst.Contracts {
			merged[name] = addr
		}
		for name, addr := range src.Contracts {
			merged[name] = addr
		}
		dst.Contracts = merged
	}
	if src.Admins != nil {
		dst.Admins = src.Admins
	}
	if src.Wallet.KeystorePath != "" {
		dst.Wallet.KeystorePath = src.Wallet.KeystorePath
	}
	if src.Wallet.Accounts != 0 {
		dst.Wallet.Accounts = src.Wallet.Accounts
	}
	if src.Storage.Endpoint != "" {
		dst.Storage.Endpoint = src.Storage.Endpoint
	}
	if src.Storage.Token != "" {
		dst.Storage.Token = src.Storage.Token
	}
	if src.API.Addr != "" {
		dst.API.Addr = src.API.Addr
	}
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("CARBON_RPC_URL")); v != "" {
		cfg.Network.RPCURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CARBON_WS_URL")); v != "" {
		cfg.Network.WSURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CARBON_CHAIN_ID")); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Network.ChainID = id
		}
	}
	if v := strings.TrimSpace(os.Getenv("CARBON_KEYSTORE_PATH")); v != "" {
		cfg.Wallet.KeystorePath = v
	}
	if v := strings.TrimSpace(os.Getenv("CARBON_STORAGE_TOKEN")); v != "" {
		cfg.Storage.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("CARBON_API_ADDR")); v != "" {
		cfg.API.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("CARBON_DATA_DIR")); v != "" {
		cfg.DataDir = v
	}
}

// ContractAddresses parses and validates the configured address for every
// known contract. Missing or malformed entries fail startup rather than a
// later call.
func (c Config) ContractAddresses() (map[string]common.Address, error) {
	out := make(map[string]common.Address, len(chain.KnownContracts))
	for _, name := range chain.KnownContracts {
		raw, ok := c.Contracts[name]
		if !ok || strings.TrimSpace(raw) == "" {
			return nil, fmt.Errorf("contract %q has no configured address", name)
		}
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("contract %q address %q is not a valid address", name, raw)
		}
		out[name] = common.HexToAddress(raw)
	}
	return out, nil
}

package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract names used as gateway keys throughout the daemon.
const (
	ContractCarbonCredit = "carbonCredit"
	ContractRegistry     = "mrvRegistry"
	ContractReputation   = "stakeReputation"
	ContractVerification = "verification"
	ContractNGOManager   = "ngoManager"
	ContractOracle       = "weatherSurvival"
)

// KnownContracts lists every deployed contract a session binds a gateway to.
var KnownContracts = []string{
	ContractCarbonCredit,
	ContractRegistry,
	ContractReputation,
	ContractVerification,
	ContractNGOManager,
	ContractOracle,
}

const carbonCreditABIJSON = `[
  {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const registryABIJSON = `[
  {"type":"function","name":"registerPlantation","stateMutability":"nonpayable","inputs":[{"name":"species","type":"string"},{"name":"treeCount","type":"uint256"},{"name":"ipfsHash","type":"string"},{"name":"description","type":"string"},{"name":"latitude","type":"string"},{"name":"longitude","type":"string"}],"outputs":[]},
  {"type":"function","name":"getPlantation","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"name":"id","type":"uint256"},{"name":"uploader","type":"address"},{"name":"species","type":"string"},{"name":"treeCount","type":"uint256"},{"name":"ipfsHash","type":"string"},{"name":"description","type":"string"},{"name":"latitude","type":"string"},{"name":"longitude","type":"string"},{"name":"status","type":"uint8"}]},
  {"type":"function","name":"plantations","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"id","type":"uint256"},{"name":"uploader","type":"address"},{"name":"species","type":"string"},{"name":"treeCount","type":"uint256"},{"name":"ipfsHash","type":"string"},{"name":"description","type":"string"},{"name":"latitude","type":"string"},{"name":"longitude","type":"string"},{"name":"status","type":"uint8"}]},
  {"type":"function","name":"totalPlantations","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getPlantationsByUploader","stateMutability":"view","inputs":[{"name":"uploader","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]}
]`

const reputationABIJSON = `[
  {"type":"function","name":"minimumStake","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"stakeTokens","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"reputationScore","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"stakedAmount","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const verificationABIJSON = `[
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"submitAdminVerification","stateMutability":"nonpayable","inputs":[{"name":"id","type":"uint256"},{"name":"approved","type":"bool"}],"outputs":[]},
  {"type":"function","name":"setAdminAddress","stateMutability":"nonpayable","inputs":[{"name":"newAdmin","type":"address"}],"outputs":[]}
]`

const ngoManagerABIJSON = `[
  {"type":"function","name":"isWhitelisted","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getNGOCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"ngoList","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"ngos","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"wallet","type":"address"},{"name":"name","type":"string"},{"name":"country","type":"string"},{"name":"status","type":"uint8"}]},
  {"type":"function","name":"whitelistNGO","stateMutability":"nonpayable","inputs":[{"name":"ngo","type":"address"},{"name":"name","type":"string"},{"name":"country","type":"string"}],"outputs":[]},
  {"type":"function","name":"setNGOStatus","stateMutability":"nonpayable","inputs":[{"name":"ngo","type":"address"},{"name":"status","type":"uint8"}],"outputs":[]}
]`

const oracleABIJSON = `[
  {"type":"function","name":"sendRequest","stateMutability":"nonpayable","inputs":[{"name":"projectId","type":"uint256"},{"name":"args","type":"string[]"}],"outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"getProjectScore","stateMutability":"view","inputs":[{"name":"projectId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"ScoreReceived","inputs":[{"name":"requestId","type":"bytes32","indexed":false},{"name":"score","type":"uint256","indexed":false},{"name":"projectId","type":"uint256","indexed":false}],"anonymous":false}
]`

var contractABIs = map[string]abi.ABI{
	ContractCarbonCredit: mustABI(carbonCreditABIJSON),
	ContractRegistry:     mustABI(registryABIJSON),
	ContractReputation:   mustABI(reputationABIJSON),
	ContractVerification: mustABI(verificationABIJSON),
	ContractNGOManager:   mustABI(ngoManagerABIJSON),
	ContractOracle:       mustABI(oracleABIJSON),
}

// ContractABI returns the parsed call surface for a known contract name.
func ContractABI(name string) (abi.ABI, error) {
	parsed, ok := contractABIs[name]
	if !ok {
		return abi.ABI{}, fmt.Errorf("unknown contract %q", name)
	}
	return parsed, nil
}

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

package chain

import "github.com/ethereum/go-ethereum/common"

// ClientSet bundles one typed client per deployed contract. Built with a
// nil signer it serves the anonymous read paths; sessions build their own
// signing set.
type ClientSet struct {
	Registry     *RegistryClient
	Reputation   *ReputationClient
	Credit       *CreditClient
	Verification *VerificationClient
	NGOs         *NGOClient
	Oracle       *OracleClient
}

func NewClientSet(backend Backend, addrs map[string]common.Address, opts Options) (*ClientSet, error) {
	gateways := make(map[string]*Gateway, len(KnownContracts))
	for _, name := range KnownContracts {
		addr, ok := addrs[name]
		if !ok {
			return nil, &ReadError{Contract: name, Method: "init", Err: ErrMissingAddress}
		}
		contractABI, err := ContractABI(name)
		if err != nil {
			return nil, err
		}
		gateways[name] = NewGateway(name, addr, contractABI, backend, opts)
	}
	return &ClientSet{
		Registry:     &RegistryClient{GW: gateways[ContractRegistry]},
		Reputation:   &ReputationClient{GW: gateways[ContractReputation]},
		Credit:       &CreditClient{GW: gateways[ContractCarbonCredit]},
		Verification: &VerificationClient{GW: gateways[ContractVerification]},
		NGOs:         &NGOClient{GW: gateways[ContractNGOManager]},
		Oracle:       &OracleClient{GW: gateways[ContractOracle]},
	}, nil
}

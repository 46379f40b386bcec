package contracts

import (
	"fmt"

	"github.com/lmittmann/w3"
)

const (
	constructorEncodingTemplateConstant = "encode %s constructor arguments: %w"
	selectorLengthConstant              = 4
)

// Contract describes a deployable contract: its artifact name, constructor and gas budget.
// A zero GasLimit defers to estimation.
type Contract struct {
	Name        string
	Constructor *w3.Func
	GasLimit    uint64
}

// EncodeConstructor ABI-encodes constructor arguments for appending to the contract bytecode.
func (contract Contract) EncodeConstructor(arguments ...any) ([]byte, error) {
	if contract.Constructor == nil {
		return nil, nil
	}
	encoded, encodeError := contract.Constructor.EncodeArgs(arguments...)
	if encodeError != nil {
		return nil, fmt.Errorf(constructorEncodingTemplateConstant, contract.Name, encodeError)
	}
	return encoded[selectorLengthConstant:], nil
}

func newContract(name string, constructorArguments string, gasLimit uint64) Contract {
	return Contract{
		Name:        name,
		Constructor: w3.MustNewFunc(fmt.Sprintf("%s(%s)", name, constructorArguments), ""),
		GasLimit:    gasLimit,
	}
}

// Legacy contracts, deployed only on the development network.
var (
	LegacyRegistry           = newContract("ENSRegistry", "", 0)
	AuctionRegistrar         = newContract("HashRegistrar", "address,bytes32,uint256", 0)
	LegacyBaseRegistrar      = newContract("OldBaseRegistrarImplementation", "address,address,bytes32,uint256", 0)
	LegacySubdomainRegistrar = newContract("EthRegistrarSubdomainRegistrar", "address", 0)
)

// Replacement contracts.
var (
	Registry               = newContract("ENSRegistryWithFallback", "address", 0)
	PublicResolver         = newContract("PublicResolver", "address", 0)
	OwnedResolver          = newContract("OwnedResolver", "", 0)
	BaseRegistrar          = newContract("BaseRegistrarImplementation", "address,bytes32", 0)
	SubdomainRegistrar     = newContract("ENSMigrationSubdomainRegistrar", "address", 4_000_000)
	RegistrarMigration     = newContract("RegistrarMigration", "address,address,address,address", 3_000_000)
	SimplePriceOracle      = newContract("SimplePriceOracle", "uint256", 0)
	RegistrarController    = newContract("ETHRegistrarController", "address,address,uint256,uint256", 0)
	TestRegistrar          = newContract("TestRegistrar", "address,bytes32", 0)
	DefaultReverseResolver = newContract("DefaultReverseResolver", "address", 1_000_000)
	ReverseRegistrar       = newContract("ReverseRegistrar", "address,address", 1_000_000)
	DNSRegistrar           = newContract("DNSRegistrar", "address,address", 0)
	Root                   = newContract("Root", "address", 0)
)

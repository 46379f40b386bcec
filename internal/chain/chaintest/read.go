package chaintest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/temirov/ensmigrate/internal/contracts"
)

func (simulated *Chain) read(target invocation) ([]any, error) {
	state := target.state
	function := target.call.Function
	arguments := target.call.Arguments
	operation := target.operation()

	switch function {
	case contracts.FuncOwner:
		if !state.isRegistry() {
			return nil, unsupported(state, function)
		}
		node, nodeError := hashArgument(arguments, 0, operation)
		if nodeError != nil {
			return nil, nodeError
		}
		return []any{simulated.registryOwner(target.target, node)}, nil
	case contracts.FuncContractOwner:
		if !state.isOwnable() {
			return nil, unsupported(state, function)
		}
		return []any{state.owner}, nil
	case contracts.FuncControllers:
		if state.name != contracts.Root.Name && !state.isPermanentRegistrar() {
			return nil, unsupported(state, function)
		}
		controller, controllerError := addressArgument(arguments, 0, operation)
		if controllerError != nil {
			return nil, controllerError
		}
		return []any{state.controllers[controller]}, nil
	case contracts.FuncNameExpires:
		if !state.isPermanentRegistrar() {
			return nil, unsupported(state, function)
		}
		identifier, identifierError := integerArgument(arguments, 0, operation)
		if identifierError != nil {
			return nil, identifierError
		}
		return []any{new(big.Int).SetUint64(state.expiries[common.BigToHash(identifier)])}, nil
	case contracts.FuncOracle:
		if state.name != contracts.DNSRegistrar.Name {
			return nil, unsupported(state, function)
		}
		return []any{state.oracle}, nil
	case contracts.FuncShaBid:
		if state.name != contracts.AuctionRegistrar.Name {
			return nil, unsupported(state, function)
		}
		label, labelError := hashArgument(arguments, 0, operation)
		if labelError != nil {
			return nil, labelError
		}
		owner, ownerError := addressArgument(arguments, 1, operation)
		if ownerError != nil {
			return nil, ownerError
		}
		value, valueError := integerArgument(arguments, 2, operation)
		if valueError != nil {
			return nil, valueError
		}
		salt, saltError := hashArgument(arguments, 3, operation)
		if saltError != nil {
			return nil, saltError
		}
		return []any{sealBid(label, owner, value, salt)}, nil
	case contracts.FuncEntries:
		if state.name != contracts.AuctionRegistrar.Name {
			return nil, unsupported(state, function)
		}
		label, labelError := hashArgument(arguments, 0, operation)
		if labelError != nil {
			return nil, labelError
		}
		mode := state.auctionMode(label, simulated.timestamp)
		entry, exists := state.auctions[label]
		if !exists {
			return []any{mode, common.Address{}, new(big.Int), new(big.Int), new(big.Int)}, nil
		}
		return []any{
			mode,
			entry.deed,
			new(big.Int).SetUint64(entry.registrationDate),
			new(big.Int).Set(entry.highestBid),
			new(big.Int).Set(entry.highestBid),
		}, nil
	case contracts.FuncLegacyRegistrar, contracts.FuncOldRegistrar, contracts.FuncNewRegistrar:
		if state.name != contracts.RegistrarMigration.Name {
			return nil, unsupported(state, function)
		}
		switch function {
		case contracts.FuncOldRegistrar:
			return []any{state.oldRegistrar}, nil
		case contracts.FuncNewRegistrar:
			return []any{state.newRegistrar}, nil
		}
		oldRegistrar, exists := simulated.contracts[state.oldRegistrar]
		if !exists {
			return []any{common.Address{}}, nil
		}
		return []any{oldRegistrar.previousRegistrar}, nil
	default:
		return nil, unsupported(state, function)
	}
}

// NodeOwner reads node ownership from the registry at registryAddress, following fallbacks.
func (simulated *Chain) NodeOwner(registryAddress common.Address, node common.Hash) common.Address {
	simulated.mutex.Lock()
	defer simulated.mutex.Unlock()
	return simulated.registryOwner(registryAddress, node)
}

// Resolver returns the resolver recorded for node in the registry at registryAddress.
func (simulated *Chain) Resolver(registryAddress common.Address, node common.Hash) common.Address {
	simulated.mutex.Lock()
	defer simulated.mutex.Unlock()
	registry, exists := simulated.contracts[registryAddress]
	if !exists {
		return common.Address{}
	}
	record, recorded := registry.records[node]
	if !recorded {
		return common.Address{}
	}
	return record.resolver
}

// ResolvedAddress returns the address record a resolver holds for node.
func (simulated *Chain) ResolvedAddress(resolverAddress common.Address, node common.Hash) common.Address {
	simulated.mutex.Lock()
	defer simulated.mutex.Unlock()
	resolver, exists := simulated.contracts[resolverAddress]
	if !exists {
		return common.Address{}
	}
	return resolver.addresses[node]
}

// InterfaceImplementer returns the implementer a resolver publishes for node and interfaceIdentifier.
func (simulated *Chain) InterfaceImplementer(resolverAddress common.Address, node common.Hash, interfaceIdentifier [4]byte) common.Address {
	simulated.mutex.Lock()
	defer simulated.mutex.Unlock()
	resolver, exists := simulated.contracts[resolverAddress]
	if !exists {
		return common.Address{}
	}
	return resolver.interfaces[node][interfaceIdentifier]
}

// ContractOwner returns the Ownable owner of the contract at address.
func (simulated *Chain) ContractOwner(address common.Address) common.Address {
	simulated.mutex.Lock()
	defer simulated.mutex.Unlock()
	state, exists := simulated.contracts[address]
	if !exists {
		return common.Address{}
	}
	return state.owner
}

// IsController reports whether controller is enabled on the registrar or root at address.
func (simulated *Chain) IsController(address common.Address, controller common.Address) bool {
	simulated.mutex.Lock()
	defer simulated.mutex.Unlock()
	state, exists := simulated.contracts[address]
	if !exists {
		return false
	}
	return state.controllers[controller]
}

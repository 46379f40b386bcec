package chaintest

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/temirov/ensmigrate/internal/contracts"
)

const (
	secondsPerDayConstant             = 24 * 60 * 60
	gracePeriodConstant               = 90 * secondsPerDayConstant
	totalAuctionLengthConstant        = 5 * secondsPerDayConstant
	revealPeriodConstant              = 2 * secondsPerDayConstant
	migrationLockPeriodConstant       = 28 * secondsPerDayConstant
	minimumBidWeiConstant             = 10_000_000_000_000_000
	notAuthorisedReasonConstant       = "not authorised"
	notOwnerReasonConstant            = "caller is not the owner"
	notControllerReasonConstant       = "caller is not a controller"
	registrarNotLiveReasonConstant    = "registrar does not own its base node"
	nameUnavailableReasonConstant     = "name is not available"
	auctionNotOpenReasonConstant      = "auction is not open"
	bidTooLowReasonConstant           = "bid is below the minimum"
	bidUnknownReasonConstant          = "no sealed bid matches"
	notRevealPeriodReasonConstant     = "auction is not in its reveal period"
	auctionNotOwnedReasonConstant     = "auction has no owner"
	notWinnerReasonConstant           = "caller is not the winning bidder"
	transferNotAcceptedReasonConstant = "registrar does not accept transfers"
	transferPeriodOverReasonConstant  = "transfer period has ended"
	migrationLockReasonConstant       = "registration is within the migration lock period"
	nameExpiredReasonConstant         = "name has expired"
	notRegistryReasonConstant         = "target is not a registry"
	unknownRegistrarReasonConstant    = "registrar is not simulated"
)

type registryRecord struct {
	owner    common.Address
	resolver common.Address
}

type auctionEntry struct {
	registrationDate uint64
	bidder           common.Address
	highestBid       *big.Int
	deed             common.Address
}

type sealedBid struct {
	bidder common.Address
	seal   common.Hash
}

type contractState struct {
	name               string
	owner              common.Address
	registry           common.Address
	fallback           common.Address
	hasFallback        bool
	baseNode           common.Hash
	previousRegistrar  common.Address
	transferPeriodEnds uint64
	oracle             common.Address
	oldRegistrar       common.Address
	newRegistrar       common.Address
	records            map[common.Hash]*registryRecord
	controllers        map[common.Address]bool
	expiries           map[common.Hash]uint64
	tokenOwners        map[common.Hash]common.Address
	addresses          map[common.Hash]common.Address
	interfaces         map[common.Hash]map[[4]byte]common.Address
	auctions           map[common.Hash]*auctionEntry
	sealedBids         map[sealedBid]*big.Int
}

func newContractState(name string, owner common.Address) *contractState {
	return &contractState{
		name:        name,
		owner:       owner,
		records:     map[common.Hash]*registryRecord{},
		controllers: map[common.Address]bool{},
		expiries:    map[common.Hash]uint64{},
		tokenOwners: map[common.Hash]common.Address{},
		addresses:   map[common.Hash]common.Address{},
		interfaces:  map[common.Hash]map[[4]byte]common.Address{},
		auctions:    map[common.Hash]*auctionEntry{},
		sealedBids:  map[sealedBid]*big.Int{},
	}
}

func (state *contractState) isRegistry() bool {
	return state.name == contracts.LegacyRegistry.Name || state.name == contracts.Registry.Name
}

func (state *contractState) isPermanentRegistrar() bool {
	return state.name == contracts.BaseRegistrar.Name || state.name == contracts.LegacyBaseRegistrar.Name
}

func (state *contractState) isOwnable() bool {
	switch state.name {
	case contracts.BaseRegistrar.Name,
		contracts.LegacyBaseRegistrar.Name,
		contracts.OwnedResolver.Name,
		contracts.RegistrarController.Name,
		contracts.SimplePriceOracle.Name,
		contracts.Root.Name:
		return true
	default:
		return false
	}
}

func (simulated *Chain) construct(name string, sender common.Address, arguments []any) (*contractState, error) {
	state := newContractState(name, sender)
	var constructError error
	switch name {
	case contracts.LegacyRegistry.Name:
		state.records[common.Hash{}] = &registryRecord{owner: sender}
	case contracts.Registry.Name:
		state.fallback, constructError = addressArgument(arguments, 0, name)
		state.hasFallback = true
		state.records[common.Hash{}] = &registryRecord{owner: sender}
	case contracts.AuctionRegistrar.Name:
		state.registry, constructError = addressArgument(arguments, 0, name)
		if constructError == nil {
			state.baseNode, constructError = hashArgument(arguments, 1, name)
		}
	case contracts.LegacyBaseRegistrar.Name:
		state.registry, constructError = addressArgument(arguments, 0, name)
		if constructError == nil {
			state.previousRegistrar, constructError = addressArgument(arguments, 1, name)
		}
		if constructError == nil {
			state.baseNode, constructError = hashArgument(arguments, 2, name)
		}
		if constructError == nil {
			var transferPeriodEnds *big.Int
			transferPeriodEnds, constructError = integerArgument(arguments, 3, name)
			if constructError == nil {
				state.transferPeriodEnds = transferPeriodEnds.Uint64()
			}
		}
	case contracts.BaseRegistrar.Name, contracts.TestRegistrar.Name:
		state.registry, constructError = addressArgument(arguments, 0, name)
		if constructError == nil {
			state.baseNode, constructError = hashArgument(arguments, 1, name)
		}
	case contracts.LegacySubdomainRegistrar.Name,
		contracts.SubdomainRegistrar.Name,
		contracts.PublicResolver.Name,
		contracts.DefaultReverseResolver.Name,
		contracts.ReverseRegistrar.Name,
		contracts.Root.Name:
		state.registry, constructError = addressArgument(arguments, 0, name)
	case contracts.DNSRegistrar.Name:
		state.oracle, constructError = addressArgument(arguments, 0, name)
		if constructError == nil {
			state.registry, constructError = addressArgument(arguments, 1, name)
		}
	case contracts.RegistrarMigration.Name:
		state.oldRegistrar, constructError = addressArgument(arguments, 0, name)
		if constructError == nil {
			state.newRegistrar, constructError = addressArgument(arguments, 1, name)
		}
	case contracts.OwnedResolver.Name, contracts.SimplePriceOracle.Name, contracts.RegistrarController.Name:
	default:
		return nil, fmt.Errorf(unknownContractTemplateConstant, name)
	}
	if constructError != nil {
		return nil, constructError
	}
	return state, nil
}

// registryOwner resolves node ownership, consulting the legacy registry for nodes the
// fallback registry has no record of.
func (simulated *Chain) registryOwner(registryAddress common.Address, node common.Hash) common.Address {
	registry, exists := simulated.contracts[registryAddress]
	if !exists || !registry.isRegistry() {
		return common.Address{}
	}
	if record, recorded := registry.records[node]; recorded {
		return record.owner
	}
	if registry.hasFallback {
		return simulated.registryOwner(registry.fallback, node)
	}
	return common.Address{}
}

func (simulated *Chain) registryFor(registryAddress common.Address) (*contractState, error) {
	registry, exists := simulated.contracts[registryAddress]
	if !exists || !registry.isRegistry() {
		return nil, revert(notRegistryReasonConstant)
	}
	return registry, nil
}

// authorise applies registry write authorization, which only consults local records.
func authorise(registry *contractState, node common.Hash, sender common.Address) error {
	record, recorded := registry.records[node]
	if !recorded || record.owner != sender {
		return revert(notAuthorisedReasonConstant)
	}
	return nil
}

func (simulated *Chain) setSubnodeOwner(registryAddress common.Address, sender common.Address, node common.Hash, label common.Hash, owner common.Address) error {
	registry, registryError := simulated.registryFor(registryAddress)
	if registryError != nil {
		return registryError
	}
	if authoriseError := authorise(registry, node, sender); authoriseError != nil {
		return authoriseError
	}
	subnode := subnodeOf(node, label)
	record, recorded := registry.records[subnode]
	if !recorded {
		record = &registryRecord{}
		registry.records[subnode] = record
	}
	record.owner = owner
	return nil
}

func (simulated *Chain) registerName(registrarAddress common.Address, registrar *contractState, label common.Hash, owner common.Address, expiry uint64) error {
	if simulated.registryOwner(registrar.registry, registrar.baseNode) != registrarAddress {
		return revert(registrarNotLiveReasonConstant)
	}
	if setError := simulated.setSubnodeOwner(registrar.registry, registrarAddress, registrar.baseNode, label, owner); setError != nil {
		return setError
	}
	registrar.expiries[label] = expiry
	registrar.tokenOwners[label] = owner
	return nil
}

func (state *contractState) auctionMode(label common.Hash, now uint64) uint8 {
	entry, exists := state.auctions[label]
	if !exists {
		return contracts.AuctionModeOpen
	}
	if now < entry.registrationDate {
		if now < entry.registrationDate-revealPeriodConstant {
			return contracts.AuctionModeAuction
		}
		return contracts.AuctionModeReveal
	}
	if entry.highestBid == nil || entry.highestBid.Sign() == 0 {
		return contracts.AuctionModeOpen
	}
	return contracts.AuctionModeOwned
}

func sealBid(label common.Hash, owner common.Address, value *big.Int, salt common.Hash) common.Hash {
	return crypto.Keccak256Hash(label.Bytes(), owner.Bytes(), common.BigToHash(value).Bytes(), salt.Bytes())
}

func deedAddress(label common.Hash, owner common.Address) common.Address {
	return common.BytesToAddress(crypto.Keccak256(label.Bytes(), owner.Bytes()))
}

func subnodeOf(node common.Hash, label common.Hash) common.Hash {
	return crypto.Keccak256Hash(node.Bytes(), label.Bytes())
}

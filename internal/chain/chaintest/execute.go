package chaintest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/temirov/ensmigrate/internal/chain"
	"github.com/temirov/ensmigrate/internal/contracts"
)

type invocation struct {
	sender common.Address
	target common.Address
	state  *contractState
	call   chain.Call
}

func (target invocation) operation() string {
	return target.call.Function.Signature
}

func (simulated *Chain) execute(target invocation) error {
	state := target.state
	function := target.call.Function
	arguments := target.call.Arguments
	operation := target.operation()

	switch {
	case state.isRegistry():
		return simulated.executeRegistry(target)
	case state.name == contracts.AuctionRegistrar.Name:
		return simulated.executeAuction(target)
	case state.name == contracts.RegistrarMigration.Name:
		return simulated.executeMigration(target)
	}

	switch function {
	case contracts.FuncTransferOwnership:
		if !state.isOwnable() {
			return unsupported(state, function)
		}
		if state.owner != target.sender {
			return revert(notOwnerReasonConstant)
		}
		newOwner, argumentError := addressArgument(arguments, 0, operation)
		if argumentError != nil {
			return argumentError
		}
		state.owner = newOwner
		return nil
	case contracts.FuncAddController, contracts.FuncRemoveController:
		if !state.isPermanentRegistrar() {
			return unsupported(state, function)
		}
		if state.owner != target.sender {
			return revert(notOwnerReasonConstant)
		}
		controller, argumentError := addressArgument(arguments, 0, operation)
		if argumentError != nil {
			return argumentError
		}
		state.controllers[controller] = function == contracts.FuncAddController
		return nil
	case contracts.FuncRegister:
		if !state.isPermanentRegistrar() {
			return unsupported(state, function)
		}
		if !state.controllers[target.sender] {
			return revert(notControllerReasonConstant)
		}
		identifier, identifierError := integerArgument(arguments, 0, operation)
		if identifierError != nil {
			return identifierError
		}
		owner, ownerError := addressArgument(arguments, 1, operation)
		if ownerError != nil {
			return ownerError
		}
		duration, durationError := integerArgument(arguments, 2, operation)
		if durationError != nil {
			return durationError
		}
		label := common.BigToHash(identifier)
		if expiry, registered := state.expiries[label]; registered && expiry+gracePeriodConstant >= simulated.timestamp {
			return revert(nameUnavailableReasonConstant)
		}
		return simulated.registerName(target.target, state, label, owner, simulated.timestamp+duration.Uint64())
	case contracts.FuncSetAddr, contracts.FuncSetInterface:
		return simulated.executeResolver(target)
	case contracts.FuncRootSetSubnodeOwner:
		if state.name != contracts.Root.Name {
			return unsupported(state, function)
		}
		if !state.controllers[target.sender] {
			return revert(notControllerReasonConstant)
		}
		label, labelError := hashArgument(arguments, 0, operation)
		if labelError != nil {
			return labelError
		}
		owner, ownerError := addressArgument(arguments, 1, operation)
		if ownerError != nil {
			return ownerError
		}
		return simulated.setSubnodeOwner(state.registry, target.target, common.Hash{}, label, owner)
	case contracts.FuncSetController:
		if state.name != contracts.Root.Name {
			return unsupported(state, function)
		}
		if state.owner != target.sender {
			return revert(notOwnerReasonConstant)
		}
		controller, controllerError := addressArgument(arguments, 0, operation)
		if controllerError != nil {
			return controllerError
		}
		enabled, enabledError := boolArgument(arguments, 1, operation)
		if enabledError != nil {
			return enabledError
		}
		state.controllers[controller] = enabled
		return nil
	default:
		return unsupported(state, function)
	}
}

func (simulated *Chain) executeRegistry(target invocation) error {
	state := target.state
	arguments := target.call.Arguments
	operation := target.operation()

	node, nodeError := hashArgument(arguments, 0, operation)
	if nodeError != nil {
		return nodeError
	}

	switch target.call.Function {
	case contracts.FuncSetSubnodeOwner, contracts.FuncSetSubnodeRecord:
		label, labelError := hashArgument(arguments, 1, operation)
		if labelError != nil {
			return labelError
		}
		owner, ownerError := addressArgument(arguments, 2, operation)
		if ownerError != nil {
			return ownerError
		}
		if setError := simulated.setSubnodeOwner(target.target, target.sender, node, label, owner); setError != nil {
			return setError
		}
		if target.call.Function == contracts.FuncSetSubnodeRecord {
			resolver, resolverError := addressArgument(arguments, 3, operation)
			if resolverError != nil {
				return resolverError
			}
			state.records[subnodeOf(node, label)].resolver = resolver
		}
		return nil
	case contracts.FuncSetResolver:
		if authoriseError := authorise(state, node, target.sender); authoriseError != nil {
			return authoriseError
		}
		resolver, resolverError := addressArgument(arguments, 1, operation)
		if resolverError != nil {
			return resolverError
		}
		state.records[node].resolver = resolver
		return nil
	case contracts.FuncSetOwner:
		if authoriseError := authorise(state, node, target.sender); authoriseError != nil {
			return authoriseError
		}
		owner, ownerError := addressArgument(arguments, 1, operation)
		if ownerError != nil {
			return ownerError
		}
		state.records[node].owner = owner
		return nil
	default:
		return unsupported(state, target.call.Function)
	}
}

func (simulated *Chain) executeResolver(target invocation) error {
	state := target.state
	arguments := target.call.Arguments
	operation := target.operation()

	node, nodeError := hashArgument(arguments, 0, operation)
	if nodeError != nil {
		return nodeError
	}
	switch state.name {
	case contracts.OwnedResolver.Name:
		if state.owner != target.sender {
			return revert(notOwnerReasonConstant)
		}
	case contracts.PublicResolver.Name:
		if simulated.registryOwner(state.registry, node) != target.sender {
			return revert(notAuthorisedReasonConstant)
		}
	default:
		return unsupported(state, target.call.Function)
	}

	if target.call.Function == contracts.FuncSetAddr {
		address, addressError := addressArgument(arguments, 1, operation)
		if addressError != nil {
			return addressError
		}
		state.addresses[node] = address
		return nil
	}

	interfaceIdentifier, interfaceError := interfaceArgument(arguments, 1, operation)
	if interfaceError != nil {
		return interfaceError
	}
	implementer, implementerError := addressArgument(arguments, 2, operation)
	if implementerError != nil {
		return implementerError
	}
	if state.interfaces[node] == nil {
		state.interfaces[node] = map[[4]byte]common.Address{}
	}
	state.interfaces[node][interfaceIdentifier] = implementer
	return nil
}

func (simulated *Chain) executeAuction(target invocation) error {
	state := target.state
	arguments := target.call.Arguments
	operation := target.operation()
	now := simulated.timestamp

	switch target.call.Function {
	case contracts.FuncStartAuctions:
		labels, labelsError := hashListArgument(arguments, 0, operation)
		if labelsError != nil {
			return labelsError
		}
		for _, label := range labels {
			if state.auctionMode(label, now) != contracts.AuctionModeOpen {
				return revert(auctionNotOpenReasonConstant)
			}
		}
		for _, label := range labels {
			state.auctions[label] = &auctionEntry{registrationDate: now + totalAuctionLengthConstant, highestBid: new(big.Int)}
		}
		return nil
	case contracts.FuncNewBid:
		seal, sealError := hashArgument(arguments, 0, operation)
		if sealError != nil {
			return sealError
		}
		if target.call.Value == nil || target.call.Value.Cmp(big.NewInt(minimumBidWeiConstant)) < 0 {
			return revert(bidTooLowReasonConstant)
		}
		state.sealedBids[sealedBid{bidder: target.sender, seal: seal}] = new(big.Int).Set(target.call.Value)
		return nil
	case contracts.FuncUnsealBid:
		label, labelError := hashArgument(arguments, 0, operation)
		if labelError != nil {
			return labelError
		}
		value, valueError := integerArgument(arguments, 1, operation)
		if valueError != nil {
			return valueError
		}
		salt, saltError := hashArgument(arguments, 2, operation)
		if saltError != nil {
			return saltError
		}
		key := sealedBid{bidder: target.sender, seal: sealBid(label, target.sender, value, salt)}
		deposit, exists := state.sealedBids[key]
		if !exists {
			return revert(bidUnknownReasonConstant)
		}
		if state.auctionMode(label, now) != contracts.AuctionModeReveal {
			return revert(notRevealPeriodReasonConstant)
		}
		delete(state.sealedBids, key)
		entry := state.auctions[label]
		if value.Cmp(deposit) <= 0 && value.Cmp(entry.highestBid) > 0 {
			entry.highestBid = new(big.Int).Set(value)
			entry.bidder = target.sender
			entry.deed = deedAddress(label, target.sender)
		}
		return nil
	case contracts.FuncFinalizeAuction:
		label, labelError := hashArgument(arguments, 0, operation)
		if labelError != nil {
			return labelError
		}
		if state.auctionMode(label, now) != contracts.AuctionModeOwned {
			return revert(auctionNotOwnedReasonConstant)
		}
		if state.auctions[label].bidder != target.sender {
			return revert(notWinnerReasonConstant)
		}
		return simulated.setSubnodeOwner(state.registry, target.target, state.baseNode, label, target.sender)
	case contracts.FuncTransferRegistrars:
		label, labelError := hashArgument(arguments, 0, operation)
		if labelError != nil {
			return labelError
		}
		if state.auctionMode(label, now) != contracts.AuctionModeOwned {
			return revert(auctionNotOwnedReasonConstant)
		}
		entry := state.auctions[label]
		if entry.bidder != target.sender {
			return revert(notWinnerReasonConstant)
		}
		successorAddress := simulated.registryOwner(state.registry, state.baseNode)
		successor, exists := simulated.contracts[successorAddress]
		if !exists || successor.name != contracts.LegacyBaseRegistrar.Name || successor.previousRegistrar != target.target {
			return revert(transferNotAcceptedReasonConstant)
		}
		if now >= successor.transferPeriodEnds {
			return revert(transferPeriodOverReasonConstant)
		}
		if entry.registrationDate+migrationLockPeriodConstant > now {
			return revert(migrationLockReasonConstant)
		}
		if registerError := simulated.registerName(successorAddress, successor, label, entry.bidder, successor.transferPeriodEnds); registerError != nil {
			return registerError
		}
		entry.highestBid = new(big.Int)
		entry.bidder = common.Address{}
		entry.deed = common.Address{}
		return nil
	default:
		return unsupported(state, target.call.Function)
	}
}

func (simulated *Chain) executeMigration(target invocation) error {
	state := target.state
	arguments := target.call.Arguments
	operation := target.operation()
	now := simulated.timestamp

	newRegistrar, exists := simulated.contracts[state.newRegistrar]
	if !exists {
		return revert(unknownRegistrarReasonConstant)
	}
	oldRegistrar, exists := simulated.contracts[state.oldRegistrar]
	if !exists {
		return revert(unknownRegistrarReasonConstant)
	}
	if !newRegistrar.controllers[target.target] {
		return revert(notControllerReasonConstant)
	}

	type migration struct {
		label  common.Hash
		owner  common.Address
		expiry uint64
	}
	var migrations []migration
	settle := func() {}

	switch target.call.Function {
	case contracts.FuncMigrateAll:
		identifiers, identifiersError := integerListArgument(arguments, 0, operation)
		if identifiersError != nil {
			return identifiersError
		}
		for _, identifier := range identifiers {
			label := common.BigToHash(identifier)
			expiry := oldRegistrar.expiries[label]
			if expiry <= now {
				return revert(nameExpiredReasonConstant)
			}
			migrations = append(migrations, migration{label: label, owner: oldRegistrar.tokenOwners[label], expiry: expiry})
		}
	case contracts.FuncMigrateAllLegacy:
		labels, labelsError := hashListArgument(arguments, 0, operation)
		if labelsError != nil {
			return labelsError
		}
		legacyRegistrar, exists := simulated.contracts[oldRegistrar.previousRegistrar]
		if !exists {
			return revert(unknownRegistrarReasonConstant)
		}
		for _, label := range labels {
			if legacyRegistrar.auctionMode(label, now) != contracts.AuctionModeOwned {
				return revert(auctionNotOwnedReasonConstant)
			}
			migrations = append(migrations, migration{label: label, owner: legacyRegistrar.auctions[label].bidder, expiry: oldRegistrar.transferPeriodEnds})
		}
		settle = func() {
			for _, label := range labels {
				entry := legacyRegistrar.auctions[label]
				entry.highestBid = new(big.Int)
				entry.bidder = common.Address{}
				entry.deed = common.Address{}
			}
		}
	default:
		return unsupported(state, target.call.Function)
	}

	for _, pending := range migrations {
		if registerError := simulated.registerName(state.newRegistrar, newRegistrar, pending.label, pending.owner, pending.expiry); registerError != nil {
			return registerError
		}
	}
	settle()
	return nil
}

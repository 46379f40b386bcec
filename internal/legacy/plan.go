package legacy

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/temirov/ensmigrate/internal/chain"
	"github.com/temirov/ensmigrate/internal/contracts"
	"github.com/temirov/ensmigrate/internal/namehash"
	"github.com/temirov/ensmigrate/internal/networks"
	"github.com/temirov/ensmigrate/internal/plan"
)

const (
	planNameConstant                 = "deploy-legacy"
	simulateAuctionsStepNameConstant = "simulate-auctions"
	developmentOnlyMessageConstant   = "the legacy deployment only runs on the development network"
	auctionRegistrarLaunchTimestamp  = 1493895600
	transferPeriodSeconds            = 365 * secondsPerDay
	migrationLockSeconds             = 28*secondsPerDay + 1
	permanentRegistrationSeconds     = 86400
	migratedAuctionNameConstant      = "migratename"
)

// ErrDevelopmentOnly reports a legacy deployment requested for a network other than
// development.
var ErrDevelopmentOnly = errors.New(developmentOnlyMessageConstant)

// Names seeded into the legacy registrars.
var (
	AuctionNames   = []string{"oldname", migratedAuctionNameConstant, "nonfinalname"}
	FinalisedNames = []string{"oldname", migratedAuctionNameConstant}
	PermanentNames = []string{"name", "name2"}
)

// BuildPlan returns the legacy deployment for profile. It fails with ErrDevelopmentOnly
// on any network but development.
func BuildPlan(profile networks.Profile, simulator *Simulator) (plan.Plan, error) {
	if !profile.Network.IsDevelopment() {
		return plan.Plan{}, ErrDevelopmentOnly
	}
	if simulator == nil || !simulator.Available() {
		return plan.Plan{}, ErrTimeAdvanceUnavailable
	}

	registry := contracts.LegacyRegistry.Name
	auctionRegistrar := contracts.AuctionRegistrar.Name
	permanentRegistrar := contracts.LegacyBaseRegistrar.Name

	steps := []plan.Step{
		plan.Deploy("deploy-legacy-registry", contracts.LegacyRegistry, chain.RoleOwner, nil, nil),
		plan.Deploy("deploy-auction-registrar", contracts.AuctionRegistrar, chain.RoleOwner, []string{registry},
			func(executionContext context.Context, scope plan.Scope) ([]any, error) {
				registryAddress, referenceError := scope.Reference(registry)
				if referenceError != nil {
					return nil, referenceError
				}
				return []any{registryAddress, namehash.EthNode, big.NewInt(auctionRegistrarLaunchTimestamp)}, nil
			}),
		assignEth("assign-eth-to-auction-registrar", auctionRegistrar),
		{
			Name:     simulateAuctionsStepNameConstant,
			Kind:     plan.KindCall,
			Role:     chain.RoleOwner,
			Requires: []string{auctionRegistrar},
			Action: func(executionContext context.Context, scope plan.Scope) (common.Address, error) {
				registrarAddress, referenceError := scope.Reference(auctionRegistrar)
				if referenceError != nil {
					return common.Address{}, referenceError
				}
				return common.Address{}, simulator.Register(executionContext, registrarAddress, AuctionNames, FinalisedNames)
			},
		},
		plan.Deploy("deploy-permanent-registrar", contracts.LegacyBaseRegistrar, chain.RoleOwner, []string{registry, auctionRegistrar},
			func(executionContext context.Context, scope plan.Scope) ([]any, error) {
				addresses, referenceError := plan.References(registry, auctionRegistrar)(executionContext, scope)
				if referenceError != nil {
					return nil, referenceError
				}
				latestTimestamp, timestampError := simulator.LatestTimestamp(executionContext)
				if timestampError != nil {
					return nil, timestampError
				}
				transferPeriodEnds := new(big.Int).SetUint64(latestTimestamp + transferPeriodSeconds)
				return append(addresses, namehash.EthNode, transferPeriodEnds), nil
			}),
		{
			Name: "advance-past-migration-lock",
			Kind: plan.KindCall,
			Role: chain.RoleOwner,
			Action: func(executionContext context.Context, scope plan.Scope) (common.Address, error) {
				return common.Address{}, simulator.AdvanceTime(executionContext, migrationLockSeconds)
			},
		},
		plan.Invoke("grant-owner-controller", chain.RoleOwner, permanentRegistrar, contracts.FuncAddController, nil,
			func(_ context.Context, scope plan.Scope) ([]any, error) {
				return []any{scope.Account(chain.RoleOwner)}, nil
			}),
		assignEth("assign-eth-to-permanent-registrar", permanentRegistrar),
		{
			Name:     "register-permanent-names",
			Kind:     plan.KindCall,
			Role:     chain.RoleOwner,
			Requires: []string{permanentRegistrar},
			Action: func(executionContext context.Context, scope plan.Scope) (common.Address, error) {
				registrarAddress, referenceError := scope.Reference(permanentRegistrar)
				if referenceError != nil {
					return common.Address{}, referenceError
				}
				owner := scope.Account(chain.RoleOwner)
				return common.Address{}, chain.Batch(executionContext, simulator.concurrency, PermanentNames, func(batchContext context.Context, name string) error {
					label := namehash.LabelHash(name)
					_, transactError := scope.Client.Transact(batchContext, chain.RoleOwner, chain.Call{
						Target:    registrarAddress,
						Function:  contracts.FuncRegister,
						Arguments: []any{new(big.Int).SetBytes(label.Bytes()), owner, big.NewInt(permanentRegistrationSeconds)},
					})
					return transactError
				})
			},
		},
		plan.Invoke("transfer-migrated-auction-name", chain.RoleOwner, auctionRegistrar, contracts.FuncTransferRegistrars, nil,
			plan.Arguments(namehash.LabelHash(migratedAuctionNameConstant))),
		plan.Deploy("deploy-legacy-subdomain-registrar", contracts.LegacySubdomainRegistrar, chain.RoleOwner, []string{registry}, plan.References(registry)),
	}

	return plan.Plan{
		Name:    planNameConstant,
		Network: profile.Network,
		Profile: profile,
		Steps:   steps,
	}, nil
}

func assignEth(name string, registrar string) plan.Step {
	return plan.Invoke(name, chain.RoleOwner, contracts.LegacyRegistry.Name, contracts.FuncSetSubnodeOwner, []string{registrar},
		func(executionContext context.Context, scope plan.Scope) ([]any, error) {
			registrarAddress, referenceError := scope.Reference(registrar)
			if referenceError != nil {
				return nil, referenceError
			}
			return []any{namehash.Root, namehash.EthLabel, registrarAddress}, nil
		})
}

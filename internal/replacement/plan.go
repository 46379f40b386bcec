package replacement

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/temirov/ensmigrate/internal/chain"
	"github.com/temirov/ensmigrate/internal/contracts"
	"github.com/temirov/ensmigrate/internal/migrationerrors"
	"github.com/temirov/ensmigrate/internal/namehash"
	"github.com/temirov/ensmigrate/internal/networks"
	"github.com/temirov/ensmigrate/internal/plan"
)

// References supplied as inputs or observed from the legacy registry.
const (
	LegacyRegistryReference           = "LegacyRegistry"
	LegacySubdomainRegistrarReference = "LegacySubdomainRegistrar"
	LegacyRegistrarReference          = "LegacyRegistrar"
	LegacyXyzRegistrarReference       = "LegacyXyzRegistrar"
	DNSSECOracleReference             = "DNSSECOracle"
	PriceOracleReference              = "PriceOracle"
)

const (
	planNameConstant                  = "deploy-replacement"
	migratedLabelConstant             = "migrated"
	migratedNameConstant              = "migrated.eth"
	migratedRegistrationPeriodSeconds = 31536000
	simplePriceOracleRentPrice        = 1
	missingOracleDetailConstant       = "legacy xyz registrar reports no oracle"
)

// BuildPlan returns the ordered replacement deployment for profile. The plan itself is
// static; network conditions and observed legacy state decide which steps run.
func BuildPlan(profile networks.Profile, inputs map[string]common.Address) plan.Plan {
	registry := contracts.Registry.Name
	ownedResolver := contracts.OwnedResolver.Name
	baseRegistrar := contracts.BaseRegistrar.Name
	controller := contracts.RegistrarController.Name
	root := contracts.Root.Name

	migratedNode := namehash.Hash(migratedNameConstant)
	ownerAddressArguments := func(_ context.Context, scope plan.Scope) ([]any, error) {
		return []any{scope.OwnerAddress()}, nil
	}

	steps := []plan.Step{
		plan.Observe("observe-legacy-registrar", LegacyRegistrarReference, []string{LegacyRegistryReference}, observeOwner(LegacyRegistryReference, namehash.EthNode)),

		plan.Deploy("deploy-registry", contracts.Registry, chain.RoleDeployer, []string{LegacyRegistryReference}, plan.References(LegacyRegistryReference)),
		plan.Deploy("deploy-public-resolver", contracts.PublicResolver, chain.RoleDeployer, []string{registry}, plan.References(registry)),
		plan.Deploy("deploy-owned-resolver", contracts.OwnedResolver, chain.RoleOwner, nil, nil),
		plan.Deploy("deploy-base-registrar", contracts.BaseRegistrar, chain.RoleDeployer, []string{registry},
			withValues(plan.References(registry), namehash.EthNode)),
		plan.Invoke("assign-eth-record", chain.RoleDeployer, registry, contracts.FuncSetSubnodeRecord, []string{baseRegistrar, ownedResolver},
			func(executionContext context.Context, scope plan.Scope) ([]any, error) {
				addresses, referenceError := plan.References(baseRegistrar, ownedResolver)(executionContext, scope)
				if referenceError != nil {
					return nil, referenceError
				}
				return []any{namehash.Root, namehash.EthLabel, addresses[0], addresses[1], uint64(0)}, nil
			}),

		plan.Invoke("grant-deployer-controller", chain.RoleDeployer, baseRegistrar, contracts.FuncAddController, nil, accountArguments(chain.RoleDeployer)),
		plan.Invoke("register-migrated", chain.RoleDeployer, baseRegistrar, contracts.FuncRegister, nil,
			func(_ context.Context, scope plan.Scope) ([]any, error) {
				return []any{
					labelIdentifier(namehash.LabelHash(migratedLabelConstant)),
					scope.Account(chain.RoleOwner),
					big.NewInt(migratedRegistrationPeriodSeconds),
				}, nil
			}),
		plan.Invoke("set-migrated-resolver", chain.RoleOwner, registry, contracts.FuncSetResolver, []string{ownedResolver},
			prefixed(plan.References(ownedResolver), migratedNode)),
		plan.Invoke("set-migrated-address", chain.RoleOwner, ownedResolver, contracts.FuncSetAddr, nil,
			prefixed(ownerAddressArguments, migratedNode)),
		plan.Invoke("revoke-deployer-controller", chain.RoleDeployer, baseRegistrar, contracts.FuncRemoveController, nil, accountArguments(chain.RoleDeployer)),

		plan.Deploy("deploy-subdomain-registrar", contracts.SubdomainRegistrar, chain.RoleDeployer, []string{registry}, plan.References(registry)),
		plan.Deploy("deploy-registrar-migration", contracts.RegistrarMigration, chain.RoleDeployer,
			[]string{LegacyRegistrarReference, baseRegistrar, LegacySubdomainRegistrarReference, contracts.SubdomainRegistrar.Name},
			plan.References(LegacyRegistrarReference, baseRegistrar, LegacySubdomainRegistrarReference, contracts.SubdomainRegistrar.Name)),
		plan.Invoke("grant-migration-controller", chain.RoleDeployer, baseRegistrar, contracts.FuncAddController, []string{contracts.RegistrarMigration.Name},
			plan.References(contracts.RegistrarMigration.Name)),

		plan.Deploy("deploy-price-oracle", contracts.SimplePriceOracle, chain.RoleOwner, nil, plan.Arguments(big.NewInt(simplePriceOracleRentPrice))).
			Producing(PriceOracleReference).
			When(func(facts plan.Facts) bool {
				return !facts.Has(PriceOracleReference) && !facts.Network.IsProduction()
			}),
		plan.Deploy("deploy-registrar-controller", contracts.RegistrarController, chain.RoleDeployer, []string{baseRegistrar, PriceOracleReference},
			func(executionContext context.Context, scope plan.Scope) ([]any, error) {
				addresses, referenceError := plan.References(baseRegistrar, PriceOracleReference)(executionContext, scope)
				if referenceError != nil {
					return nil, referenceError
				}
				return append(addresses,
					big.NewInt(int64(scope.Profile.MinimumCommitmentAge.Seconds())),
					big.NewInt(int64(scope.Profile.MaximumCommitmentAge.Seconds())),
				), nil
			}),

		plan.Invoke("set-eth-address", chain.RoleOwner, ownedResolver, contracts.FuncSetAddr, []string{baseRegistrar},
			prefixed(plan.References(baseRegistrar), namehash.EthNode)),
		plan.Invoke("set-eth-legacy-erc721-interface", chain.RoleOwner, ownedResolver, contracts.FuncSetInterface, []string{baseRegistrar},
			prefixed(plan.References(baseRegistrar), namehash.EthNode, contracts.InterfaceLegacyERC721)),
		plan.Invoke("set-eth-erc721-interface", chain.RoleOwner, ownedResolver, contracts.FuncSetInterface, []string{baseRegistrar},
			prefixed(plan.References(baseRegistrar), namehash.EthNode, contracts.InterfaceERC721)),
		plan.Invoke("set-eth-controller-interface", chain.RoleOwner, ownedResolver, contracts.FuncSetInterface, []string{controller},
			prefixed(plan.References(controller), namehash.EthNode, contracts.InterfaceRegistrarController)),

		plan.Deploy("deploy-test-registrar", contracts.TestRegistrar, chain.RoleOwner, []string{registry},
			withValues(plan.References(registry), namehash.TestNode)).
			When(notProduction),
		plan.Invoke("assign-test", chain.RoleDeployer, registry, contracts.FuncSetSubnodeOwner, []string{contracts.TestRegistrar.Name},
			prefixed(plan.References(contracts.TestRegistrar.Name), namehash.Root, namehash.TestLabel)).
			When(notProduction),

		plan.Deploy("deploy-reverse-resolver", contracts.DefaultReverseResolver, chain.RoleDeployer, []string{registry}, plan.References(registry)).
			When(notLocal),
		plan.Deploy("deploy-reverse-registrar", contracts.ReverseRegistrar, chain.RoleDeployer, []string{registry, contracts.DefaultReverseResolver.Name},
			plan.References(registry, contracts.DefaultReverseResolver.Name)).
			When(notLocal),
		plan.Invoke("assign-reverse", chain.RoleDeployer, registry, contracts.FuncSetSubnodeOwner, nil,
			prefixed(accountArguments(chain.RoleDeployer), namehash.Root, namehash.ReverseLabel)).
			When(notLocal),
		plan.Invoke("assign-addr-reverse", chain.RoleDeployer, registry, contracts.FuncSetSubnodeOwner, []string{contracts.ReverseRegistrar.Name},
			prefixed(plan.References(contracts.ReverseRegistrar.Name), namehash.ReverseNode, namehash.AddrLabel)).
			When(notLocal),
		plan.Invoke("release-reverse", chain.RoleDeployer, registry, contracts.FuncSetOwner, nil,
			plan.Arguments(namehash.ReverseNode, common.Address{})).
			When(notLocal),

		plan.Observe("observe-legacy-xyz-registrar", LegacyXyzRegistrarReference, []string{LegacyRegistryReference}, observeOwner(LegacyRegistryReference, namehash.XyzNode)).
			When(notLocal),
		plan.Observe("observe-dnssec-oracle", DNSSECOracleReference, []string{LegacyXyzRegistrarReference}, observeOracle).
			When(hasLegacyXyzRegistrar),
		plan.Deploy("deploy-dns-registrar", contracts.DNSRegistrar, chain.RoleDeployer, []string{DNSSECOracleReference, registry},
			plan.References(DNSSECOracleReference, registry)).
			When(hasLegacyXyzRegistrar),
		plan.Invoke("assign-xyz", chain.RoleDeployer, registry, contracts.FuncSetSubnodeOwner, []string{contracts.DNSRegistrar.Name},
			prefixed(plan.References(contracts.DNSRegistrar.Name), namehash.Root, namehash.XyzLabel)).
			When(hasLegacyXyzRegistrar),

		plan.Deploy("deploy-root", contracts.Root, chain.RoleDeployer, []string{registry}, plan.References(registry)).
			When(notLocal),
		plan.Invoke("assign-root", chain.RoleDeployer, registry, contracts.FuncSetOwner, []string{root},
			prefixed(plan.References(root), namehash.Root)).
			When(notLocal),
		plan.Invoke("grant-root-controller", chain.RoleDeployer, root, contracts.FuncSetController, nil,
			func(_ context.Context, scope plan.Scope) ([]any, error) {
				return []any{scope.OwnerAddress(), true}, nil
			}).
			When(notLocal),
		plan.Invoke("transfer-root", chain.RoleDeployer, root, contracts.FuncTransferOwnership, nil, ownerAddressArguments).
			When(notLocal),

		plan.Invoke("transfer-base-registrar", chain.RoleDeployer, baseRegistrar, contracts.FuncTransferOwnership, nil, ownerAddressArguments),
		plan.Invoke("transfer-registrar-controller", chain.RoleDeployer, controller, contracts.FuncTransferOwnership, nil, ownerAddressArguments),
	}

	return plan.Plan{
		Name:    planNameConstant,
		Network: profile.Network,
		Profile: profile,
		Inputs:  inputs,
		Steps:   steps,
	}
}

func notProduction(facts plan.Facts) bool {
	return !facts.Network.IsProduction()
}

func notLocal(facts plan.Facts) bool {
	return !facts.Network.IsLocal()
}

func hasLegacyXyzRegistrar(facts plan.Facts) bool {
	return !facts.Network.IsLocal() && facts.Has(LegacyXyzRegistrarReference)
}

// observeOwner reads the owner of node from the registry behind reference.
func observeOwner(reference string, node namehash.Node) plan.Action {
	return func(executionContext context.Context, scope plan.Scope) (common.Address, error) {
		registryAddress, referenceError := scope.Reference(reference)
		if referenceError != nil {
			return common.Address{}, referenceError
		}
		var owner common.Address
		call := chain.Call{Target: registryAddress, Function: contracts.FuncOwner, Arguments: []any{node}}
		if viewError := scope.Client.View(executionContext, call, &owner); viewError != nil {
			return common.Address{}, migrationerrors.CallFailedError{Step: scope.Step(), Method: call.Label(), Target: registryAddress.Hex(), Cause: viewError}
		}
		return owner, nil
	}
}

func observeOracle(executionContext context.Context, scope plan.Scope) (common.Address, error) {
	registrarAddress, referenceError := scope.Reference(LegacyXyzRegistrarReference)
	if referenceError != nil {
		return common.Address{}, referenceError
	}
	var oracle common.Address
	call := chain.Call{Target: registrarAddress, Function: contracts.FuncOracle}
	if viewError := scope.Client.View(executionContext, call, &oracle); viewError != nil {
		return common.Address{}, migrationerrors.CallFailedError{Step: scope.Step(), Method: call.Label(), Target: registrarAddress.Hex(), Cause: viewError}
	}
	if oracle == (common.Address{}) {
		return common.Address{}, migrationerrors.MisconfiguredBranchError{
			Step:       scope.Step(),
			Dependency: DNSSECOracleReference,
			Network:    scope.Network.String(),
			Detail:     missingOracleDetailConstant,
		}
	}
	return oracle, nil
}

func accountArguments(role chain.Role) plan.ArgumentsFunc {
	return func(_ context.Context, scope plan.Scope) ([]any, error) {
		return []any{scope.Account(role)}, nil
	}
}

// prefixed places fixed leading values ahead of the computed arguments.
func prefixed(arguments plan.ArgumentsFunc, leading ...any) plan.ArgumentsFunc {
	return func(executionContext context.Context, scope plan.Scope) ([]any, error) {
		computed, argumentsError := arguments(executionContext, scope)
		if argumentsError != nil {
			return nil, argumentsError
		}
		return append(append([]any{}, leading...), computed...), nil
	}
}

// withValues appends fixed trailing values to the computed arguments.
func withValues(arguments plan.ArgumentsFunc, trailing ...any) plan.ArgumentsFunc {
	return func(executionContext context.Context, scope plan.Scope) ([]any, error) {
		computed, argumentsError := arguments(executionContext, scope)
		if argumentsError != nil {
			return nil, argumentsError
		}
		return append(computed, trailing...), nil
	}
}

func labelIdentifier(label common.Hash) *big.Int {
	return new(big.Int).SetBytes(label.Bytes())
}

package replacement_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/temirov/ensmigrate/internal/addressbook"
	"github.com/temirov/ensmigrate/internal/chain"
	"github.com/temirov/ensmigrate/internal/chain/chaintest"
	"github.com/temirov/ensmigrate/internal/contracts"
	"github.com/temirov/ensmigrate/internal/migrationerrors"
	"github.com/temirov/ensmigrate/internal/namehash"
	"github.com/temirov/ensmigrate/internal/networks"
	"github.com/temirov/ensmigrate/internal/plan"
	"github.com/temirov/ensmigrate/internal/replacement"
)

const (
	testLegacyEthOwnerConstant = "0x000000000000000000000000000000000000bEEF"
	testTargetAddressConstant  = "0x00000000000000000000000000000000000000A1"
	testOracleAddressConstant  = "0x00000000000000000000000000000000000000A2"
	testPriceOracleConstant    = "0x00000000000000000000000000000000000000A3"
)

var expectedStepOrder = []string{
	"observe-legacy-registrar",
	"deploy-registry",
	"deploy-public-resolver",
	"deploy-owned-resolver",
	"deploy-base-registrar",
	"assign-eth-record",
	"grant-deployer-controller",
	"register-migrated",
	"set-migrated-resolver",
	"set-migrated-address",
	"revoke-deployer-controller",
	"deploy-subdomain-registrar",
	"deploy-registrar-migration",
	"grant-migration-controller",
	"deploy-price-oracle",
	"deploy-registrar-controller",
	"set-eth-address",
	"set-eth-legacy-erc721-interface",
	"set-eth-erc721-interface",
	"set-eth-controller-interface",
	"deploy-test-registrar",
	"assign-test",
	"deploy-reverse-resolver",
	"deploy-reverse-registrar",
	"assign-reverse",
	"assign-addr-reverse",
	"release-reverse",
	"observe-legacy-xyz-registrar",
	"observe-dnssec-oracle",
	"deploy-dns-registrar",
	"assign-xyz",
	"deploy-root",
	"assign-root",
	"grant-root-controller",
	"transfer-root",
	"transfer-base-registrar",
	"transfer-registrar-controller",
}

type legacyFixture struct {
	registry           common.Address
	subdomainRegistrar common.Address
}

func deployLegacy(testInstance *testing.T, simulated *chaintest.Chain, withXyz bool) legacyFixture {
	testInstance.Helper()
	executionContext := context.Background()

	registryReceipt, registryError := simulated.Deploy(executionContext, chain.RoleOwner, chain.Deployment{Contract: contracts.LegacyRegistry})
	require.NoError(testInstance, registryError)
	registry := registryReceipt.ContractAddress

	_, assignError := simulated.Transact(executionContext, chain.RoleOwner, chain.Call{
		Target:    registry,
		Function:  contracts.FuncSetSubnodeOwner,
		Arguments: []any{namehash.Root, namehash.EthLabel, common.HexToAddress(testLegacyEthOwnerConstant)},
	})
	require.NoError(testInstance, assignError)

	subdomainReceipt, subdomainError := simulated.Deploy(executionContext, chain.RoleOwner, chain.Deployment{Contract: contracts.LegacySubdomainRegistrar, Arguments: []any{registry}})
	require.NoError(testInstance, subdomainError)

	if withXyz {
		dnsReceipt, dnsError := simulated.Deploy(executionContext, chain.RoleOwner, chain.Deployment{
			Contract:  contracts.DNSRegistrar,
			Arguments: []any{common.HexToAddress(testOracleAddressConstant), registry},
		})
		require.NoError(testInstance, dnsError)
		_, xyzError := simulated.Transact(executionContext, chain.RoleOwner, chain.Call{
			Target:    registry,
			Function:  contracts.FuncSetSubnodeOwner,
			Arguments: []any{namehash.Root, namehash.XyzLabel, dnsReceipt.ContractAddress},
		})
		require.NoError(testInstance, xyzError)
	}

	return legacyFixture{registry: registry, subdomainRegistrar: subdomainReceipt.ContractAddress}
}

func remoteProfile(network networks.Identifier, fixture legacyFixture) networks.Profile {
	return networks.Profile{
		Network:                  network,
		LegacyRegistry:           fixture.registry,
		HasLegacyRegistry:        true,
		LegacySubdomainRegistrar: fixture.subdomainRegistrar,
		MinimumCommitmentAge:     60e9,
		MaximumCommitmentAge:     86400e9,
	}
}

func TestBuildPlanIsStaticallyValidAndOrdered(testInstance *testing.T) {
	for _, network := range []networks.Identifier{networks.Development, networks.Ropsten, networks.Mainnet, networks.Mainnet.Fork()} {
		testInstance.Run(network.String(), func(testInstance *testing.T) {
			inputs := map[string]common.Address{
				replacement.LegacyRegistryReference:           common.HexToAddress("0x01"),
				replacement.LegacySubdomainRegistrarReference: common.Address{},
			}
			deploymentPlan := replacement.BuildPlan(networks.Profile{Network: network}, inputs)
			require.NoError(testInstance, deploymentPlan.Validate())
			require.Equal(testInstance, expectedStepOrder, deploymentPlan.StepNames())
		})
	}
}

func TestDevelopmentDeploymentSkipsRemoteOnlySteps(testInstance *testing.T) {
	executionContext := context.Background()
	simulated := chaintest.New()
	fixture := deployLegacy(testInstance, simulated, true)

	book, openError := addressbook.Open(testInstance.TempDir(), networks.Development.String())
	require.NoError(testInstance, openError)
	require.NoError(testInstance, book.Record(contracts.LegacyRegistry.Name, fixture.registry))
	require.NoError(testInstance, book.Record(contracts.LegacySubdomainRegistrar.Name, fixture.subdomainRegistrar))

	profile := networks.Profile{Network: networks.Development, MinimumCommitmentAge: 60e9, MaximumCommitmentAge: 86400e9}
	inputs, inputsError := replacement.ResolveInputs(profile, book)
	require.NoError(testInstance, inputsError)

	executor := plan.NewExecutor(plan.Dependencies{Client: simulated, Recorder: book, RunID: book.RunID()})
	report, executeError := executor.Execute(executionContext, replacement.BuildPlan(profile, inputs))
	require.NoError(testInstance, executeError)

	require.Equal(testInstance, []string{
		"deploy-reverse-resolver",
		"deploy-reverse-registrar",
		"assign-reverse",
		"assign-addr-reverse",
		"release-reverse",
		"observe-legacy-xyz-registrar",
		"observe-dnssec-oracle",
		"deploy-dns-registrar",
		"assign-xyz",
		"deploy-root",
		"assign-root",
		"grant-root-controller",
		"transfer-root",
	}, report.Skipped)
	require.Contains(testInstance, report.Executed, "deploy-price-oracle")
	require.Contains(testInstance, report.Executed, "deploy-test-registrar")

	registry := report.References[contracts.Registry.Name]
	baseRegistrar := report.References[contracts.BaseRegistrar.Name]
	ownedResolver := report.References[contracts.OwnedResolver.Name]
	registrarController := report.References[contracts.RegistrarController.Name]
	migration := report.References[contracts.RegistrarMigration.Name]

	require.Equal(testInstance, common.HexToAddress(testLegacyEthOwnerConstant), report.References[replacement.LegacyRegistrarReference])
	require.Equal(testInstance, baseRegistrar, simulated.NodeOwner(registry, namehash.EthNode))
	require.Equal(testInstance, ownedResolver, simulated.Resolver(registry, namehash.EthNode))
	require.Equal(testInstance, chaintest.DefaultOwner, simulated.NodeOwner(registry, namehash.Hash("migrated.eth")))
	require.Equal(testInstance, ownedResolver, simulated.Resolver(registry, namehash.Hash("migrated.eth")))
	require.Equal(testInstance, chaintest.DefaultOwner, simulated.ResolvedAddress(ownedResolver, namehash.Hash("migrated.eth")))
	require.Equal(testInstance, baseRegistrar, simulated.ResolvedAddress(ownedResolver, namehash.EthNode))
	require.Equal(testInstance, baseRegistrar, simulated.InterfaceImplementer(ownedResolver, namehash.EthNode, contracts.InterfaceLegacyERC721))
	require.Equal(testInstance, baseRegistrar, simulated.InterfaceImplementer(ownedResolver, namehash.EthNode, contracts.InterfaceERC721))
	require.Equal(testInstance, registrarController, simulated.InterfaceImplementer(ownedResolver, namehash.EthNode, contracts.InterfaceRegistrarController))
	require.Equal(testInstance, report.References[contracts.TestRegistrar.Name], simulated.NodeOwner(registry, namehash.TestNode))

	require.True(testInstance, simulated.IsController(baseRegistrar, migration))
	require.False(testInstance, simulated.IsController(baseRegistrar, chaintest.DefaultDeployer))
	require.Equal(testInstance, chaintest.DefaultOwner, simulated.ContractOwner(baseRegistrar))
	require.Equal(testInstance, chaintest.DefaultOwner, simulated.ContractOwner(registrarController))

	require.Equal(testInstance, chaintest.DefaultDeployer, simulated.NodeOwner(registry, namehash.Root))

	for _, artifact := range []string{
		contracts.Registry.Name,
		contracts.PublicResolver.Name,
		contracts.OwnedResolver.Name,
		contracts.BaseRegistrar.Name,
		contracts.SubdomainRegistrar.Name,
		contracts.RegistrarMigration.Name,
		contracts.SimplePriceOracle.Name,
		contracts.RegistrarController.Name,
		contracts.TestRegistrar.Name,
	} {
		recorded, found := book.Lookup(artifact)
		require.True(testInstance, found, artifact)
		require.NotEqual(testInstance, common.Address{}, recorded, artifact)
	}
	oracle, found := book.Lookup(contracts.SimplePriceOracle.Name)
	require.True(testInstance, found)
	require.Equal(testInstance, report.References[replacement.PriceOracleReference], oracle)
}

func TestRemoteDeploymentHandsOwnershipToTarget(testInstance *testing.T) {
	testCases := []struct {
		name            string
		withXyz         bool
		withPriceOracle bool
		expectedSkipped []string
	}{
		{
			name:            "with_dns_registrar",
			withXyz:         true,
			withPriceOracle: true,
			expectedSkipped: []string{"deploy-price-oracle"},
		},
		{
			name:            "without_xyz_owner",
			expectedSkipped: []string{"observe-dnssec-oracle", "deploy-dns-registrar", "assign-xyz"},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testInstance *testing.T) {
			simulated := chaintest.New()
			fixture := deployLegacy(testInstance, simulated, testCase.withXyz)

			profile := remoteProfile(networks.Ropsten, fixture)
			profile.TargetAddress = common.HexToAddress(testTargetAddressConstant)
			profile.HasTargetAddress = true
			if testCase.withPriceOracle {
				profile.LegacyPriceOracle = common.HexToAddress(testPriceOracleConstant)
				profile.HasLegacyPriceOracle = true
			}

			inputs, inputsError := replacement.ResolveInputs(profile, nil)
			require.NoError(testInstance, inputsError)

			report, executeError := plan.NewExecutor(plan.Dependencies{Client: simulated}).Execute(context.Background(), replacement.BuildPlan(profile, inputs))
			require.NoError(testInstance, executeError)
			require.Equal(testInstance, testCase.expectedSkipped, report.Skipped)

			target := common.HexToAddress(testTargetAddressConstant)
			registry := report.References[contracts.Registry.Name]
			root := report.References[contracts.Root.Name]
			ownedResolver := report.References[contracts.OwnedResolver.Name]

			require.Equal(testInstance, root, simulated.NodeOwner(registry, namehash.Root))
			require.Equal(testInstance, target, simulated.ContractOwner(root))
			require.True(testInstance, simulated.IsController(root, target))
			require.Equal(testInstance, target, simulated.ContractOwner(report.References[contracts.BaseRegistrar.Name]))
			require.Equal(testInstance, target, simulated.ContractOwner(report.References[contracts.RegistrarController.Name]))
			require.Equal(testInstance, target, simulated.ResolvedAddress(ownedResolver, namehash.Hash("migrated.eth")))
			require.Equal(testInstance, chaintest.DefaultOwner, simulated.NodeOwner(registry, namehash.Hash("migrated.eth")))

			require.Equal(testInstance, common.Address{}, simulated.NodeOwner(registry, namehash.ReverseNode))
			require.Equal(testInstance, report.References[contracts.ReverseRegistrar.Name], simulated.NodeOwner(registry, namehash.Subnode(namehash.ReverseNode, namehash.AddrLabel)))

			if testCase.withPriceOracle {
				require.Equal(testInstance, common.HexToAddress(testPriceOracleConstant), report.References[replacement.PriceOracleReference])
			}
			if testCase.withXyz {
				require.Equal(testInstance, common.HexToAddress(testOracleAddressConstant), report.References[replacement.DNSSECOracleReference])
				require.Equal(testInstance, report.References[contracts.DNSRegistrar.Name], simulated.NodeOwner(registry, namehash.XyzNode))
			} else {
				require.NotContains(testInstance, report.References, contracts.DNSRegistrar.Name)
			}
		})
	}
}

func TestProductionWithoutPriceOracleIsMisconfigured(testInstance *testing.T) {
	simulated := chaintest.New()
	fixture := deployLegacy(testInstance, simulated, false)
	profile := remoteProfile(networks.Mainnet, fixture)

	inputs, inputsError := replacement.ResolveInputs(profile, nil)
	require.NoError(testInstance, inputsError)

	report, executeError := plan.NewExecutor(plan.Dependencies{Client: simulated}).Execute(context.Background(), replacement.BuildPlan(profile, inputs))
	require.ErrorIs(testInstance, executeError, migrationerrors.ErrMisconfiguredBranch)

	var branchError migrationerrors.MisconfiguredBranchError
	require.ErrorAs(testInstance, executeError, &branchError)
	require.Equal(testInstance, "deploy-registrar-controller", branchError.Step)
	require.Equal(testInstance, replacement.PriceOracleReference, branchError.Dependency)
	require.Equal(testInstance, []string{"deploy-price-oracle"}, report.Skipped)
}

func TestMissingLegacyRegistrarIsMisconfigured(testInstance *testing.T) {
	executionContext := context.Background()
	simulated := chaintest.New()
	registryReceipt, registryError := simulated.Deploy(executionContext, chain.RoleOwner, chain.Deployment{Contract: contracts.LegacyRegistry})
	require.NoError(testInstance, registryError)

	profile := remoteProfile(networks.Goerli, legacyFixture{registry: registryReceipt.ContractAddress})
	inputs, inputsError := replacement.ResolveInputs(profile, nil)
	require.NoError(testInstance, inputsError)

	_, executeError := plan.NewExecutor(plan.Dependencies{Client: simulated}).Execute(executionContext, replacement.BuildPlan(profile, inputs))

	var branchError migrationerrors.MisconfiguredBranchError
	require.ErrorAs(testInstance, executeError, &branchError)
	require.Equal(testInstance, "deploy-registrar-migration", branchError.Step)
	require.Equal(testInstance, replacement.LegacyRegistrarReference, branchError.Dependency)
}

func TestResolveInputs(testInstance *testing.T) {
	registry := common.HexToAddress("0x0b")
	subdomainRegistrar := common.HexToAddress("0x0c")

	testCases := []struct {
		name               string
		profile            networks.Profile
		book               replacement.AddressLookup
		expectedInputs     map[string]common.Address
		expectedDependency string
	}{
		{
			name:    "development_reads_address_book",
			profile: networks.Profile{Network: networks.Development},
			book: mapLookup{
				contracts.LegacyRegistry.Name:           registry,
				contracts.LegacySubdomainRegistrar.Name: subdomainRegistrar,
			},
			expectedInputs: map[string]common.Address{
				replacement.LegacyRegistryReference:           registry,
				replacement.LegacySubdomainRegistrarReference: subdomainRegistrar,
			},
		},
		{
			name:               "development_without_legacy_deployment",
			profile:            networks.Profile{Network: networks.Development},
			book:               mapLookup{contracts.LegacyRegistry.Name: registry},
			expectedDependency: replacement.LegacySubdomainRegistrarReference,
		},
		{
			name:               "development_without_address_book",
			profile:            networks.Profile{Network: networks.Development},
			expectedDependency: replacement.LegacyRegistryReference,
		},
		{
			name: "remote_reads_tables",
			profile: networks.Profile{
				Network:              networks.Mainnet,
				LegacyRegistry:       registry,
				HasLegacyRegistry:    true,
				LegacyPriceOracle:    common.HexToAddress("0x0d"),
				HasLegacyPriceOracle: true,
			},
			expectedInputs: map[string]common.Address{
				replacement.LegacyRegistryReference:           registry,
				replacement.LegacySubdomainRegistrarReference: {},
				replacement.PriceOracleReference:              common.HexToAddress("0x0d"),
			},
		},
		{
			name:               "remote_without_registry",
			profile:            networks.Profile{Network: networks.Rinkeby},
			expectedDependency: replacement.LegacyRegistryReference,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testInstance *testing.T) {
			inputs, resolveError := replacement.ResolveInputs(testCase.profile, testCase.book)
			if len(testCase.expectedDependency) > 0 {
				var branchError migrationerrors.MisconfiguredBranchError
				require.ErrorAs(testInstance, resolveError, &branchError)
				require.Equal(testInstance, testCase.expectedDependency, branchError.Dependency)
				return
			}
			require.NoError(testInstance, resolveError)
			require.Equal(testInstance, testCase.expectedInputs, inputs)
		})
	}
}

type mapLookup map[string]common.Address

func (lookup mapLookup) Lookup(name string) (common.Address, bool) {
	address, exists := lookup[name]
	return address, exists
}

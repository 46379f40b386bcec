package replacement

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/temirov/ensmigrate/internal/contracts"
	"github.com/temirov/ensmigrate/internal/migrationerrors"
	"github.com/temirov/ensmigrate/internal/networks"
)

const (
	resolveInputsStepNameConstant     = "resolve-inputs"
	addressBookDetailTemplateConstant = "address book has no %s entry; run deploy-legacy first"
	networkTableDetailConstant        = "network table has no legacy registry"
)

// AddressLookup reads previously recorded artifacts.
type AddressLookup interface {
	Lookup(name string) (common.Address, bool)
}

// ResolveInputs gathers the externally supplied references of the plan. The local
// development network reads the legacy deployment from the address book; every other
// network reads the compiled-in tables.
func ResolveInputs(profile networks.Profile, book AddressLookup) (map[string]common.Address, error) {
	inputs := map[string]common.Address{}

	if profile.Network.IsDevelopment() {
		for _, recorded := range []struct {
			reference string
			artifact  string
		}{
			{reference: LegacyRegistryReference, artifact: contracts.LegacyRegistry.Name},
			{reference: LegacySubdomainRegistrarReference, artifact: contracts.LegacySubdomainRegistrar.Name},
		} {
			address, exists := lookup(book, recorded.artifact)
			if !exists {
				return nil, migrationerrors.MisconfiguredBranchError{
					Step:       resolveInputsStepNameConstant,
					Dependency: recorded.reference,
					Network:    profile.Network.String(),
					Detail:     fmt.Sprintf(addressBookDetailTemplateConstant, recorded.artifact),
				}
			}
			inputs[recorded.reference] = address
		}
	} else {
		if !profile.HasLegacyRegistry {
			return nil, migrationerrors.MisconfiguredBranchError{
				Step:       resolveInputsStepNameConstant,
				Dependency: LegacyRegistryReference,
				Network:    profile.Network.String(),
				Detail:     networkTableDetailConstant,
			}
		}
		inputs[LegacyRegistryReference] = profile.LegacyRegistry
		inputs[LegacySubdomainRegistrarReference] = profile.LegacySubdomainRegistrar
	}

	if profile.HasLegacyPriceOracle {
		inputs[PriceOracleReference] = profile.LegacyPriceOracle
	}
	return inputs, nil
}

func lookup(book AddressLookup, name string) (common.Address, bool) {
	if book == nil {
		return common.Address{}, false
	}
	return book.Lookup(name)
}

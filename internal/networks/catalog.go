package networks

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/temirov/ensmigrate/internal/migrationerrors"
)

const (
	// PlaceholderKey is a publicly known private key used when OWNER_KEY is not set. It is
	// suitable for local test networks only and is rejected by ValidateKeys elsewhere.
	PlaceholderKey = "4470af80c129a94bb4b76a24bf5136065f67fe4d10ef7b9876fde7ee10aad225"

	// OwnerKeyEnvironmentVariable names the environment variable holding the owner key.
	OwnerKeyEnvironmentVariable = "OWNER_KEY"
	// DeploymentKeyEnvironmentVariable names the environment variable holding the deployment key.
	DeploymentKeyEnvironmentVariable = "DEPLOYMENT_KEY"
	// TargetAddressEnvironmentVariable names the environment variable holding the final owner address.
	TargetAddressEnvironmentVariable = "TARGET_ADDRESS"

	defaultMinimumCommitmentAgeConstant = 60 * time.Second
	defaultMaximumCommitmentAgeConstant = 86400 * time.Second

	invalidTargetAddressTemplateConstant = "invalid %s value %q"
	placeholderKeyMessageConstant        = "placeholder key material is restricted to the development network"
	placeholderKeyTemplateConstant       = "%w: %s uses the placeholder %s"
)

// ErrPlaceholderKey reports placeholder key material on a non-development network.
var ErrPlaceholderKey = errors.New(placeholderKeyMessageConstant)

// EnvironmentOverrides carries values sourced from the process environment.
type EnvironmentOverrides struct {
	OwnerKey      string
	DeploymentKey string
	TargetAddress string
}

// EnvironmentLookup mirrors os.LookupEnv.
type EnvironmentLookup func(key string) (string, bool)

// OverridesFromEnvironment reads key material and the target address through lookup.
func OverridesFromEnvironment(lookup EnvironmentLookup) EnvironmentOverrides {
	if lookup == nil {
		return EnvironmentOverrides{}
	}
	read := func(key string) string {
		value, present := lookup(key)
		if !present {
			return ""
		}
		return strings.TrimSpace(value)
	}
	return EnvironmentOverrides{
		OwnerKey:      read(OwnerKeyEnvironmentVariable),
		DeploymentKey: read(DeploymentKeyEnvironmentVariable),
		TargetAddress: read(TargetAddressEnvironmentVariable),
	}
}

// Profile is the immutable configuration record of one network.
type Profile struct {
	Network                  Identifier
	LegacyRegistry           common.Address
	HasLegacyRegistry        bool
	LegacyPriceOracle        common.Address
	HasLegacyPriceOracle     bool
	LegacySubdomainRegistrar common.Address
	MinimumCommitmentAge     time.Duration
	MaximumCommitmentAge     time.Duration
	OwnerKey                 string
	DeploymentKey            string
	TargetAddress            common.Address
	HasTargetAddress         bool
}

// UsesPlaceholderKey reports whether either signing key is the development placeholder.
func (profile Profile) UsesPlaceholderKey() bool {
	return profile.OwnerKey == PlaceholderKey || profile.DeploymentKey == PlaceholderKey
}

// ValidateKeys rejects placeholder key material outside the development network.
func (profile Profile) ValidateKeys() error {
	if profile.Network.IsDevelopment() {
		return nil
	}
	if profile.OwnerKey == PlaceholderKey {
		return fmt.Errorf(placeholderKeyTemplateConstant, ErrPlaceholderKey, profile.Network, OwnerKeyEnvironmentVariable)
	}
	if profile.DeploymentKey == PlaceholderKey {
		return fmt.Errorf(placeholderKeyTemplateConstant, ErrPlaceholderKey, profile.Network, DeploymentKeyEnvironmentVariable)
	}
	return nil
}

// Catalog is the read-only set of profiles built once at startup.
type Catalog struct {
	profiles map[Identifier]Profile
}

// NewCatalog builds every profile from the compiled-in tables and the environment overrides.
func NewCatalog(overrides EnvironmentOverrides) (Catalog, error) {
	registries := WithForkAliases(legacyRegistryTable())
	priceOracles := WithForkAliases(legacyPriceOracleTable())
	subdomainRegistrars := WithForkAliases(legacySubdomainRegistrarTable())

	ownerKey := overrides.OwnerKey
	if len(ownerKey) == 0 {
		ownerKey = PlaceholderKey
	}
	deploymentKey := overrides.DeploymentKey
	if len(deploymentKey) == 0 {
		deploymentKey = ownerKey
	}

	var targetAddress common.Address
	hasTargetAddress := false
	if len(overrides.TargetAddress) > 0 {
		if !common.IsHexAddress(overrides.TargetAddress) {
			return Catalog{}, fmt.Errorf(invalidTargetAddressTemplateConstant, TargetAddressEnvironmentVariable, overrides.TargetAddress)
		}
		targetAddress = common.HexToAddress(overrides.TargetAddress)
		hasTargetAddress = true
	}

	identifiers := make(map[Identifier]struct{}, len(registries)+1)
	identifiers[Development] = struct{}{}
	for identifier := range registries {
		identifiers[identifier] = struct{}{}
	}

	profiles := make(map[Identifier]Profile, len(identifiers))
	for identifier := range identifiers {
		registry, hasRegistry := registries[identifier]
		priceOracle, hasPriceOracle := priceOracles[identifier]
		profiles[identifier] = Profile{
			Network:                  identifier,
			LegacyRegistry:           registry,
			HasLegacyRegistry:        hasRegistry,
			LegacyPriceOracle:        priceOracle,
			HasLegacyPriceOracle:     hasPriceOracle,
			LegacySubdomainRegistrar: subdomainRegistrars[identifier],
			MinimumCommitmentAge:     defaultMinimumCommitmentAgeConstant,
			MaximumCommitmentAge:     defaultMaximumCommitmentAgeConstant,
			OwnerKey:                 ownerKey,
			DeploymentKey:            deploymentKey,
			TargetAddress:            targetAddress,
			HasTargetAddress:         hasTargetAddress,
		}
	}

	return Catalog{profiles: profiles}, nil
}

// Resolve returns the profile of identifier or an UnknownNetworkError.
func (catalog Catalog) Resolve(identifier Identifier) (Profile, error) {
	profile, exists := catalog.profiles[Identifier(strings.TrimSpace(string(identifier)))]
	if !exists {
		return Profile{}, migrationerrors.UnknownNetworkError{Network: string(identifier), Known: catalog.identifierStrings()}
	}
	return profile, nil
}

// Identifiers lists every resolvable identifier in sorted order.
func (catalog Catalog) Identifiers() []Identifier {
	identifiers := make([]Identifier, 0, len(catalog.profiles))
	for identifier := range catalog.profiles {
		identifiers = append(identifiers, identifier)
	}
	sort.Slice(identifiers, func(left, right int) bool { return identifiers[left] < identifiers[right] })
	return identifiers
}

func (catalog Catalog) identifierStrings() []string {
	identifiers := catalog.Identifiers()
	values := make([]string, 0, len(identifiers))
	for _, identifier := range identifiers {
		values = append(values, string(identifier))
	}
	return values
}

package networks

import "strings"

const (
	mainnetPrefixConstant = "mainnet"
)

// Identifier selects a configuration profile.
type Identifier string

// Known network identifiers.
const (
	Development Identifier = "development"
	Mainnet     Identifier = "mainnet"
	MainnetTest Identifier = "mainnet-test"
	Test        Identifier = "test"
	Ropsten     Identifier = "ropsten"
	Goerli      Identifier = "goerli"
	Rinkeby     Identifier = "rinkeby"
)

// String returns the identifier text.
func (identifier Identifier) String() string {
	return string(identifier)
}

// Fork returns the alias identifier of a base network.
func (identifier Identifier) Fork() Identifier {
	return Identifier(string(identifier) + forkSuffixConstant)
}

// IsFork reports whether the identifier is a fork alias.
func (identifier Identifier) IsFork() bool {
	return strings.HasSuffix(string(identifier), forkSuffixConstant)
}

// IsDevelopment reports whether the identifier is the local development network, the only
// network where legacy contracts are deployed and time can be advanced administratively.
func (identifier Identifier) IsDevelopment() bool {
	return identifier == Development
}

// IsLocal reports whether later-stage infrastructure (reverse registrar, DNS registrar,
// root controller) is skipped.
func (identifier Identifier) IsLocal() bool {
	return identifier.IsDevelopment()
}

// IsProduction reports whether the identifier belongs to the mainnet family, including
// mainnet forks. Test-only contracts never deploy there.
func (identifier Identifier) IsProduction() bool {
	return strings.HasPrefix(string(identifier), mainnetPrefixConstant)
}

package networks

import (
	"github.com/ethereum/go-ethereum/common"
)

const (
	forkSuffixConstant = "-fork"
)

func legacyRegistryTable() map[Identifier]common.Address {
	return map[Identifier]common.Address{
		Mainnet:     common.HexToAddress("0x314159265dd8dbb310642f98f50c066173c1259b"),
		MainnetTest: common.HexToAddress("0x314159265dd8dbb310642f98f50c066173c1259b"),
		Test:        common.HexToAddress("0x112234455c3a32fd11230c42e7bccd4a84e02010"),
		Ropsten:     common.HexToAddress("0x112234455c3a32fd11230c42e7bccd4a84e02010"),
		Goerli:      common.HexToAddress("0x112234455c3a32fd11230c42e7bccd4a84e02010"),
		Rinkeby:     common.HexToAddress("0xe7410170f87102df0055eb195163a03b7f2bff4a"),
	}
}

func legacyPriceOracleTable() map[Identifier]common.Address {
	return map[Identifier]common.Address{
		Mainnet:     common.HexToAddress("0xb9d374d0fe3d8341155663fae31b7beae0ae233a"),
		MainnetTest: common.HexToAddress("0xb9d374d0fe3d8341155663fae31b7beae0ae233a"),
		Test:        common.HexToAddress("0x04cd12453859f6c21fa268bf9ab4d7f81a25d543"),
		Ropsten:     common.HexToAddress("0x04cd12453859f6c21fa268bf9ab4d7f81a25d543"),
		Rinkeby:     common.HexToAddress("0x856fe428783c85909f9e986d4c264f8142571193"),
		Goerli:      common.HexToAddress("0xe14174f6c7eb9bc03fbae5316d4fea72392a2e06"),
	}
}

// Networks without an entry perform no subdomain migration.
func legacySubdomainRegistrarTable() map[Identifier]common.Address {
	return map[Identifier]common.Address{
		Mainnet:     common.HexToAddress("0xc32659651d137a18b79925449722855aa327231d"),
		MainnetTest: common.HexToAddress("0xc32659651d137a18b79925449722855aa327231d"),
	}
}

// WithForkAliases returns a copy of table extended with a "<base>-fork" entry for every
// base identifier, each holding an exact copy of the base value. Existing fork entries
// are never re-aliased.
func WithForkAliases[Value any](table map[Identifier]Value) map[Identifier]Value {
	aliased := make(map[Identifier]Value, len(table)*2)
	for identifier, value := range table {
		aliased[identifier] = value
	}
	for identifier, value := range table {
		if identifier.IsFork() {
			continue
		}
		aliased[identifier.Fork()] = value
	}
	return aliased
}

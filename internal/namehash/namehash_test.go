package namehash_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/temirov/ensmigrate/internal/namehash"
)

func TestHashMatchesKnownVectors(testInstance *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected common.Hash
	}{
		{
			name:     "empty_name_is_root",
			input:    "",
			expected: common.Hash{},
		},
		{
			name:     "top_level_eth",
			input:    "eth",
			expected: common.HexToHash("0x93cdeb708b7545dc668eb9280176169d1c33cfd8ed6f04690a0bcc88a93fc4ae"),
		},
		{
			name:     "second_level_name",
			input:    "foo.eth",
			expected: common.HexToHash("0xde9b09fd7c5f901e23a3f19fecc54828e9c848539801e86591bd9801b019f84f"),
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, namehash.Hash(testCase.input))
		})
	}
}

func TestHashIsDeterministicAndDistinguishesNames(testInstance *testing.T) {
	names := []string{"eth", "migrated.eth", "oldname.eth", "nonfinalname.eth", "addr.reverse", "test", "xyz"}
	seen := make(map[common.Hash]string, len(names))

	for _, name := range names {
		first := namehash.Hash(name)
		second := namehash.Hash(name)
		require.Equal(testInstance, first, second)

		previous, duplicate := seen[first]
		require.Falsef(testInstance, duplicate, "%s collides with %s", name, previous)
		seen[first] = name
	}
}

func TestNameAndSubnodeAgreeWithHash(testInstance *testing.T) {
	require.Equal(testInstance, namehash.Hash("migrated.eth"), namehash.Name("migrated"))
	require.Equal(testInstance, namehash.Hash("addr.reverse"), namehash.Subnode(namehash.ReverseNode, namehash.AddrLabel))
	require.Equal(testInstance, namehash.EthNode, namehash.Subnode(namehash.Root, namehash.EthLabel))
	require.Equal(testInstance, namehash.Hash("Foo.ETH"), namehash.Hash("foo.eth"))
}

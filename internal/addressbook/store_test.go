package addressbook_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/temirov/ensmigrate/internal/addressbook"
)

const (
	testNetworkConstant          = "development"
	testOtherNetworkConstant     = "ropsten"
	testRegistryNameConstant     = "ENSRegistryWithFallback"
	testMigrationNameConstant    = "RegistrarMigration"
	testRegistryAddressConstant  = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testMigrationAddressConstant = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
)

func TestStoreRecordsAndReloads(testInstance *testing.T) {
	directory := testInstance.TempDir()

	store, openError := addressbook.Open(directory, testNetworkConstant)
	require.NoError(testInstance, openError)
	_, parseError := uuid.Parse(store.RunID())
	require.NoError(testInstance, parseError)

	_, found := store.Lookup(testRegistryNameConstant)
	require.False(testInstance, found)

	require.NoError(testInstance, store.Record(testRegistryNameConstant, common.HexToAddress(testRegistryAddressConstant)))
	require.NoError(testInstance, store.Record(testMigrationNameConstant, common.HexToAddress(testMigrationAddressConstant)))
	require.FileExists(testInstance, filepath.Join(directory, testNetworkConstant+".yaml"))

	reopened, reopenError := addressbook.Open(directory, testNetworkConstant)
	require.NoError(testInstance, reopenError)
	require.NotEqual(testInstance, store.RunID(), reopened.RunID())
	require.Equal(testInstance, []string{testRegistryNameConstant, testMigrationNameConstant}, reopened.Names())

	address, found := reopened.Lookup(testMigrationNameConstant)
	require.True(testInstance, found)
	require.Equal(testInstance, common.HexToAddress(testMigrationAddressConstant), address)

	entry, found := reopened.Entry(testRegistryNameConstant)
	require.True(testInstance, found)
	require.Equal(testInstance, store.RunID(), entry.RunID)
	require.False(testInstance, entry.RecordedAt.IsZero())
}

func TestStoreOverwritesEntries(testInstance *testing.T) {
	store, openError := addressbook.Open(testInstance.TempDir(), testNetworkConstant)
	require.NoError(testInstance, openError)

	require.NoError(testInstance, store.Record(testRegistryNameConstant, common.HexToAddress(testRegistryAddressConstant)))
	require.NoError(testInstance, store.Record(testRegistryNameConstant, common.HexToAddress(testMigrationAddressConstant)))

	address, found := store.Lookup(testRegistryNameConstant)
	require.True(testInstance, found)
	require.Equal(testInstance, common.HexToAddress(testMigrationAddressConstant), address)
	require.Error(testInstance, store.Record(" ", common.Address{}))
}

func TestOpenRejectsInvalidDocuments(testInstance *testing.T) {
	testCases := map[string]string{
		"malformed_yaml":   "contracts: [",
		"invalid_address":  "network: development\ncontracts:\n  ENSRegistry:\n    address: nope\n",
		"network_mismatch": "network: " + testOtherNetworkConstant + "\ncontracts: {}\n",
	}

	for name, contents := range testCases {
		testInstance.Run(name, func(testInstance *testing.T) {
			directory := testInstance.TempDir()
			require.NoError(testInstance, os.WriteFile(filepath.Join(directory, testNetworkConstant+".yaml"), []byte(contents), 0o600))
			_, openError := addressbook.Open(directory, testNetworkConstant)
			require.Error(testInstance, openError)
		})
	}

	_, emptyDirectoryError := addressbook.Open("", testNetworkConstant)
	require.Error(testInstance, emptyDirectoryError)
}

package chain_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/ensmigrate/internal/chain"
	"github.com/temirov/ensmigrate/internal/networks"
)

const (
	testSubtestTemplateConstant = "%d_%s"
	testContractNameConstant    = "OwnedResolver"
	testArtifactFileConstant    = "OwnedResolver.json"
	testArtifactPermissions     = 0o600
	testTargetAddressConstant   = "0x314159265dd8dbb310642f98f50c066173c1259b"
	testTransactionHashConstant = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"
	testRPCURLConstant          = "http://127.0.0.1:8545"
	testInvalidKeyConstant      = "not-a-key"
)

func TestDirectoryArtifactsBytecode(testInstance *testing.T) {
	testCases := []struct {
		name             string
		contents         string
		expectedBytecode []byte
		expectError      bool
	}{
		{name: "prefixed", contents: `{"contractName":"OwnedResolver","bytecode":"0x6080"}`, expectedBytecode: []byte{0x60, 0x80}},
		{name: "unprefixed", contents: `{"bytecode":"6001"}`, expectedBytecode: []byte{0x60, 0x01}},
		{name: "empty", contents: `{"bytecode":"0x"}`, expectError: true},
		{name: "unlinked", contents: `{"bytecode":"0x60__Library______"}`, expectError: true},
		{name: "malformed_json", contents: `{`, expectError: true},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			directory := testInstance.TempDir()
			writeError := os.WriteFile(filepath.Join(directory, testArtifactFileConstant), []byte(testCase.contents), testArtifactPermissions)
			require.NoError(testInstance, writeError)

			bytecode, bytecodeError := chain.DirectoryArtifacts{Directory: directory}.Bytecode(testContractNameConstant)
			if testCase.expectError {
				require.Error(testInstance, bytecodeError)
				require.Contains(testInstance, bytecodeError.Error(), testContractNameConstant)
				return
			}
			require.NoError(testInstance, bytecodeError)
			require.Equal(testInstance, testCase.expectedBytecode, bytecode)
		})
	}
}

func TestDirectoryArtifactsMissingFile(testInstance *testing.T) {
	_, missingError := chain.DirectoryArtifacts{Directory: testInstance.TempDir()}.Bytecode(testContractNameConstant)
	require.Error(testInstance, missingError)
	require.True(testInstance, errors.Is(missingError, os.ErrNotExist))

	_, unconfiguredError := chain.DirectoryArtifacts{}.Bytecode(testContractNameConstant)
	require.Error(testInstance, unconfiguredError)
}

func TestBatchRespectsLimitAndJoins(testInstance *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	var inFlight atomic.Int32
	var maximumInFlight atomic.Int32
	var processedMutex sync.Mutex
	processed := make([]int, 0, len(items))

	batchError := chain.Batch(context.Background(), 2, items, func(_ context.Context, item int) error {
		current := inFlight.Add(1)
		for {
			observed := maximumInFlight.Load()
			if current <= observed || maximumInFlight.CompareAndSwap(observed, current) {
				break
			}
		}
		processedMutex.Lock()
		processed = append(processed, item)
		processedMutex.Unlock()
		inFlight.Add(-1)
		return nil
	})

	require.NoError(testInstance, batchError)
	require.ElementsMatch(testInstance, items, processed)
	require.LessOrEqual(testInstance, maximumInFlight.Load(), int32(2))
}

func TestBatchReturnsFirstFailure(testInstance *testing.T) {
	expectedError := errors.New("reveal failed")
	batchError := chain.Batch(context.Background(), 0, []string{"alpha", "beta"}, func(_ context.Context, item string) error {
		if item == "beta" {
			return expectedError
		}
		return nil
	})
	require.ErrorIs(testInstance, batchError, expectedError)
}

func TestLoggingTransactionObserver(testInstance *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	transactionObserver := chain.NewLoggingTransactionObserver(zap.New(core))

	event := chain.TransactionEvent{
		Role:            chain.RoleDeployer,
		Operation:       "setOwner(bytes32,address)",
		Target:          common.HexToAddress(testTargetAddressConstant),
		TransactionHash: common.HexToHash(testTransactionHashConstant),
	}
	transactionObserver.TransactionSubmitted(event)
	transactionObserver.TransactionConfirmed(event, chain.Receipt{BlockNumber: 7, GasUsed: 21000})
	transactionObserver.TransactionFailed(event, chain.ErrTransactionReverted)

	entries := recorded.All()
	require.Len(testInstance, entries, 3)
	require.Equal(testInstance, zapcore.DebugLevel, entries[0].Level)
	require.Equal(testInstance, zapcore.InfoLevel, entries[1].Level)
	require.Equal(testInstance, zapcore.WarnLevel, entries[2].Level)

	confirmedFields := entries[1].ContextMap()
	require.Equal(testInstance, string(chain.RoleDeployer), confirmedFields["role"])
	require.Equal(testInstance, common.HexToHash(testTransactionHashConstant).Hex(), confirmedFields["tx_hash"])
	require.Equal(testInstance, uint64(7), confirmedFields["block"])

	require.NotPanics(testInstance, func() {
		chain.NewLoggingTransactionObserver(nil).TransactionSubmitted(event)
	})
}

func TestDialEthereumValidatesConfiguration(testInstance *testing.T) {
	artifacts := chain.DirectoryArtifacts{Directory: testInstance.TempDir()}
	testCases := []struct {
		name          string
		configuration chain.EthereumConfiguration
	}{
		{name: "missing_rpc_url", configuration: chain.EthereumConfiguration{OwnerKey: networks.PlaceholderKey, Artifacts: artifacts}},
		{name: "missing_artifacts", configuration: chain.EthereumConfiguration{RPCURL: testRPCURLConstant, OwnerKey: networks.PlaceholderKey}},
		{name: "invalid_owner_key", configuration: chain.EthereumConfiguration{RPCURL: testRPCURLConstant, OwnerKey: testInvalidKeyConstant, Artifacts: artifacts}},
		{name: "invalid_deployment_key", configuration: chain.EthereumConfiguration{RPCURL: testRPCURLConstant, OwnerKey: networks.PlaceholderKey, DeploymentKey: testInvalidKeyConstant, Artifacts: artifacts}},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			client, dialError := chain.DialEthereum(context.Background(), testCase.configuration)
			require.Error(testInstance, dialError)
			require.Nil(testInstance, client)
		})
	}
}

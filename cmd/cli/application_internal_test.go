package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/ensmigrate/cmd/cli/session"
	"github.com/temirov/ensmigrate/internal/chain/chaintest"
	"github.com/temirov/ensmigrate/internal/contracts"
	"github.com/temirov/ensmigrate/internal/migrationerrors"
	"github.com/temirov/ensmigrate/internal/networks"
)

const (
	testConfigurationTemplateConstant = "common:\n  log_level: error\ntools:\n  deploy:\n    address_book_directory: %s\n  simulator:\n    concurrency: 2\n"
)

type applicationFixture struct {
	simulated   *chaintest.Chain
	configPath  string
	connections int
}

func newApplicationFixture(testInstance *testing.T) *applicationFixture {
	testInstance.Helper()
	directory := testInstance.TempDir()
	configPath := filepath.Join(directory, "config.yaml")
	configuration := fmt.Sprintf(testConfigurationTemplateConstant, filepath.Join(directory, "deployments"))
	require.NoError(testInstance, os.WriteFile(configPath, []byte(configuration), 0o600))
	return &applicationFixture{simulated: chaintest.New(), configPath: configPath}
}

func (fixture *applicationFixture) execute(testInstance *testing.T, arguments ...string) (string, error) {
	testInstance.Helper()
	connector := func(context.Context, networks.Profile, session.NetworkConfiguration, session.StorageConfiguration, *zap.Logger) (session.Connection, error) {
		fixture.connections++
		return session.Connection{Client: fixture.simulated, Clock: fixture.simulated, TestNetwork: fixture.simulated}, nil
	}
	application := newApplication(connector, func(string) (string, bool) { return "", false })

	var output bytes.Buffer
	application.rootCommand.SetOut(&output)
	application.rootCommand.SetErr(&output)
	application.rootCommand.SetArgs(append([]string{"--config", fixture.configPath}, arguments...))
	executionError := application.Execute()
	return output.String(), executionError
}

func TestEmbeddedConfigurationDecodes(testInstance *testing.T) {
	application := newApplication(nil, func(string) (string, bool) { return "", false })
	application.rootCommand.SetArgs([]string{})
	application.rootCommand.SetOut(&bytes.Buffer{})

	require.NoError(testInstance, application.initializeConfiguration(application.rootCommand))

	development, found := application.configuration.Networks[networks.Development.String()]
	require.True(testInstance, found)
	require.Equal(testInstance, "http://127.0.0.1:8545", development.RPCURL)
	require.Equal(testInstance, uint64(1337), development.ChainID)
	require.Equal(testInstance, time.Minute, development.ConfirmationTimeout)
	require.Equal(testInstance, 500*time.Millisecond, development.PollInterval)

	mainnet := application.configuration.Networks[networks.Mainnet.String()]
	require.Empty(testInstance, mainnet.RPCURL)
	require.Equal(testInstance, uint64(1), mainnet.ChainID)

	require.Equal(testInstance, "deployments", application.configuration.Tools.Deploy.AddressBookDirectory)
	require.Equal(testInstance, 100, application.configuration.Tools.Names.BatchSize)
	require.Equal(testInstance, 10, application.configuration.Tools.Names.Concurrency)
	require.Equal(testInstance, "lastlabel.txt", application.configuration.Tools.Names.ResumeFile)
	require.False(testInstance, application.configuration.Tools.Activate.Strict)
}

func TestLogLevelFlagOverridesConfiguration(testInstance *testing.T) {
	fixture := newApplicationFixture(testInstance)
	application := newApplication(nil, func(string) (string, bool) { return "", false })
	application.rootCommand.SetOut(&bytes.Buffer{})
	application.rootCommand.SetArgs([]string{"--config", fixture.configPath, "--log-level", "debug"})

	require.NoError(testInstance, application.Execute())
	require.Equal(testInstance, "debug", application.configuration.Common.LogLevel)
	require.Equal(testInstance, fixture.configPath, application.configurationMetadata.ConfigFileUsed)
	require.Equal(testInstance, 2, application.configuration.Tools.Simulator.Concurrency)
}

func TestApplicationRunsPhasesInOrder(testInstance *testing.T) {
	fixture := newApplicationFixture(testInstance)

	legacyOutput, legacyError := fixture.execute(testInstance, "deploy-legacy")
	require.NoError(testInstance, legacyError)
	require.Contains(testInstance, legacyOutput, contracts.AuctionRegistrar.Name)

	replacementOutput, replacementError := fixture.execute(testInstance, "deploy-replacement", "--network", "development")
	require.NoError(testInstance, replacementError)
	require.Contains(testInstance, replacementOutput, contracts.RegistrarMigration.Name)

	activateOutput, activateError := fixture.execute(testInstance, "activate")
	require.NoError(testInstance, activateError)
	require.Contains(testInstance, activateOutput, "status: activated")
	require.Equal(testInstance, 3, fixture.connections)
}

func TestApplicationRejectsUnknownNetwork(testInstance *testing.T) {
	fixture := newApplicationFixture(testInstance)

	_, executionError := fixture.execute(testInstance, "activate", "--network", "kovan")
	require.Error(testInstance, executionError)
	require.Zero(testInstance, fixture.connections)
	require.Equal(testInstance, ExitCodeFailure, ExitCode(executionError))
}

func TestExitCode(testInstance *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "success", err: nil, expected: ExitCodeSuccess},
		{name: "generic_failure", err: errors.New("boom"), expected: ExitCodeFailure},
		{
			name:     "wrapped_not_authorized",
			err:      fmt.Errorf("activation aborted: %w", migrationerrors.NotAuthorizedError{Check: "root node owner"}),
			expected: ExitCodeNotAuthorized,
		},
		{
			name:     "misconfigured_branch",
			err:      migrationerrors.MisconfiguredBranchError{Step: "connect", Network: "goerli"},
			expected: ExitCodeFailure,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, ExitCode(testCase.err))
		})
	}
}

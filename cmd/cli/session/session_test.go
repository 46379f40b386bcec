package session_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/ensmigrate/cmd/cli/session"
	"github.com/temirov/ensmigrate/internal/chain/chaintest"
	"github.com/temirov/ensmigrate/internal/migrationerrors"
	"github.com/temirov/ensmigrate/internal/networks"
	"github.com/temirov/ensmigrate/internal/utils"
	pathutils "github.com/temirov/ensmigrate/internal/utils/path"
)

const (
	testOwnerKeyConstant = "8f2a55949038a9610f50fb23b5883af3b4ecb3c3bb792cbcefbd1542c692be63"
)

func environment(values map[string]string) networks.EnvironmentLookup {
	return func(key string) (string, bool) {
		value, present := values[key]
		return value, present
	}
}

func TestOpenerResolve(testInstance *testing.T) {
	testCases := []struct {
		name          string
		network       string
		environment   map[string]string
		expectedError error
	}{
		{name: "development_placeholder", network: "development", environment: map[string]string{}},
		{name: "remote_placeholder", network: "goerli", environment: map[string]string{}, expectedError: networks.ErrPlaceholderKey},
		{name: "remote_with_key", network: "goerli", environment: map[string]string{networks.OwnerKeyEnvironmentVariable: testOwnerKeyConstant}},
		{name: "unknown", network: "kovan", environment: map[string]string{}, expectedError: migrationerrors.ErrUnknownNetwork},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			opener := session.Opener{EnvironmentLookup: environment(testCase.environment)}
			profile, resolveError := opener.Resolve(testCase.network)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, resolveError, testCase.expectedError)
				return
			}
			require.NoError(testInstance, resolveError)
			require.Equal(testInstance, networks.Identifier(testCase.network), profile.Network)
		})
	}
}

func TestOpenerOpensAddressBookAndConnection(testInstance *testing.T) {
	simulated := chaintest.New()
	homeDirectory := testInstance.TempDir()
	observedCore, observedLogs := observer.New(zapcore.InfoLevel)
	released := false

	opener := session.Opener{
		LoggerProvider:    func() *zap.Logger { return zap.New(observedCore) },
		EnvironmentLookup: environment(map[string]string{}),
		StorageProvider: func() session.StorageConfiguration {
			return session.StorageConfiguration{AddressBookDirectory: "~/deployments"}
		},
		HomeExpander: pathutils.NewHomeExpanderWithProvider(func() (string, error) { return homeDirectory, nil }),
		Connector: func(executionContext context.Context, profile networks.Profile, network session.NetworkConfiguration, storage session.StorageConfiguration, logger *zap.Logger) (session.Connection, error) {
			require.Equal(testInstance, session.DefaultStorageConfiguration().ArtifactsDirectory, storage.ArtifactsDirectory)
			return session.Connection{Client: simulated, Clock: simulated, TestNetwork: simulated, Release: func() { released = true }}, nil
		},
	}

	configurationFile := filepath.Join(homeDirectory, "config.yaml")
	executionContext := utils.NewCommandContextAccessor().WithConfigurationFilePath(context.Background(), configurationFile)
	opened, openError := opener.Open(executionContext, "development")
	require.NoError(testInstance, openError)
	require.Equal(testInstance, filepath.Join(homeDirectory, "deployments", "development.yaml"), opened.Book.Path())
	require.Equal(testInstance, networks.Development, opened.Profile.Network)
	require.NotNil(testInstance, opened.TestNetwork)

	opened.Close()
	require.True(testInstance, released)

	openedLogs := observedLogs.FilterMessage("Session opened")
	require.Equal(testInstance, 1, openedLogs.Len())
	require.Equal(testInstance, configurationFile, openedLogs.All()[0].ContextMap()["config_file"])
	require.Equal(testInstance, 1, observedLogs.FilterMessage("Using the development placeholder signing key").Len())
}

func TestOpenerWrapsConnectionFailures(testInstance *testing.T) {
	connectFailure := errors.New("connection refused")
	opener := session.Opener{
		EnvironmentLookup: environment(map[string]string{}),
		StorageProvider: func() session.StorageConfiguration {
			return session.StorageConfiguration{AddressBookDirectory: testInstance.TempDir()}
		},
		Connector: func(context.Context, networks.Profile, session.NetworkConfiguration, session.StorageConfiguration, *zap.Logger) (session.Connection, error) {
			return session.Connection{}, connectFailure
		},
	}

	_, openError := opener.Open(context.Background(), "development")
	require.ErrorIs(testInstance, openError, connectFailure)
}

func TestDialConnectorRequiresEndpoint(testInstance *testing.T) {
	_, dialError := session.DialConnector(context.Background(), networks.Profile{Network: networks.Goerli}, session.NetworkConfiguration{}, session.DefaultStorageConfiguration(), nil)
	require.ErrorIs(testInstance, dialError, migrationerrors.ErrMisconfiguredBranch)

	var branchError migrationerrors.MisconfiguredBranchError
	require.ErrorAs(testInstance, dialError, &branchError)
	require.Equal(testInstance, "goerli", branchError.Network)
}

func TestOpenerListsNetworks(testInstance *testing.T) {
	names := session.Opener{}.Networks()
	require.Contains(testInstance, names, "development")
	require.Contains(testInstance, names, "mainnet")
	require.Contains(testInstance, names, "ropsten-fork")
}

package migrationerrors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ensmigrate/internal/migrationerrors"
)

func TestTaxonomyMatchesSentinels(testInstance *testing.T) {
	rootCause := errors.New("execution reverted")

	testCases := []struct {
		name     string
		failure  error
		sentinel error
		message  string
	}{
		{
			name:     "unknown_network",
			failure:  migrationerrors.UnknownNetworkError{Network: "kovan", Known: []string{"mainnet"}},
			sentinel: migrationerrors.ErrUnknownNetwork,
			message:  `unknown network: "kovan" is not registered`,
		},
		{
			name:     "deployment_failed",
			failure:  migrationerrors.DeploymentFailedError{Step: "deploy-registry", Contract: "ENSRegistryWithFallback", Cause: rootCause},
			sentinel: migrationerrors.ErrDeploymentFailed,
			message:  "step deploy-registry could not deploy ENSRegistryWithFallback",
		},
		{
			name:     "call_failed",
			failure:  migrationerrors.CallFailedError{Step: "grant-controller", Method: "addController(address)", Target: "0x01", Cause: rootCause},
			sentinel: migrationerrors.ErrCallFailed,
			message:  "could not invoke addController(address)",
		},
		{
			name:     "not_authorized",
			failure:  migrationerrors.NotAuthorizedError{Check: "root node owner", Account: "0x02", Observed: "0x03"},
			sentinel: migrationerrors.ErrNotAuthorized,
			message:  "not authorized: root node owner",
		},
		{
			name:     "misconfigured_branch",
			failure:  migrationerrors.MisconfiguredBranchError{Step: "assign-reverse", Dependency: "ReverseRegistrar", Network: "development"},
			sentinel: migrationerrors.ErrMisconfiguredBranch,
			message:  "requires ReverseRegistrar which is absent on network development",
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testInstance *testing.T) {
			wrapped := fmt.Errorf("phase aborted: %w", testCase.failure)
			require.ErrorIs(testInstance, wrapped, testCase.sentinel)
			require.Contains(testInstance, testCase.failure.Error(), testCase.message)
		})
	}
}

func TestDeploymentAndCallFailuresUnwrapCause(testInstance *testing.T) {
	rootCause := errors.New("receipt timeout")

	deploymentFailure := migrationerrors.DeploymentFailedError{Step: "deploy-root", Contract: "Root", Cause: rootCause}
	require.ErrorIs(testInstance, deploymentFailure, rootCause)

	callFailure := migrationerrors.CallFailedError{Step: "set-owner", Method: "setOwner(bytes32,address)", Target: "0x04", Cause: rootCause}
	require.ErrorIs(testInstance, callFailure, rootCause)
	require.NotErrorIs(testInstance, callFailure, migrationerrors.ErrDeploymentFailed)
}

package names_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/ensmigrate/cmd/cli/names"
	"github.com/temirov/ensmigrate/cmd/cli/session"
	"github.com/temirov/ensmigrate/internal/addressbook"
	"github.com/temirov/ensmigrate/internal/chain/chaintest"
	"github.com/temirov/ensmigrate/internal/legacy"
	"github.com/temirov/ensmigrate/internal/migrationerrors"
	"github.com/temirov/ensmigrate/internal/namehash"
	"github.com/temirov/ensmigrate/internal/networks"
	"github.com/temirov/ensmigrate/internal/plan"
	"github.com/temirov/ensmigrate/internal/replacement"
)

var migrationNames = []string{"name", "name2", "migratename", "oldname", "nonfinalname", "neverregistered"}

type namesFixture struct {
	simulated  *chaintest.Chain
	directory  string
	labelsPath string
	resumeFile string
}

func newNamesFixture(testInstance *testing.T, deploy bool) namesFixture {
	testInstance.Helper()
	fixture := namesFixture{simulated: chaintest.New(), directory: testInstance.TempDir()}

	var labels strings.Builder
	for _, name := range migrationNames {
		labels.WriteString(namehash.LabelHash(name).Hex())
		labels.WriteString("\n")
	}
	fixture.labelsPath = filepath.Join(fixture.directory, "labels.txt")
	require.NoError(testInstance, os.WriteFile(fixture.labelsPath, []byte(labels.String()), 0o600))
	fixture.resumeFile = filepath.Join(fixture.directory, "lastlabel.txt")

	if !deploy {
		return fixture
	}

	executionContext := context.Background()
	profile, resolveError := fixture.opener().Resolve(networks.Development.String())
	require.NoError(testInstance, resolveError)
	book, openError := addressbook.Open(fixture.directory, networks.Development.String())
	require.NoError(testInstance, openError)
	executor := plan.NewExecutor(plan.Dependencies{Client: fixture.simulated, Recorder: book})

	legacyPlan, legacyError := legacy.BuildPlan(profile, legacy.NewSimulator(fixture.simulated, fixture.simulated, profile.Network))
	require.NoError(testInstance, legacyError)
	_, legacyExecuteError := executor.Execute(executionContext, legacyPlan)
	require.NoError(testInstance, legacyExecuteError)

	inputs, inputsError := replacement.ResolveInputs(profile, book)
	require.NoError(testInstance, inputsError)
	_, replacementError := executor.Execute(executionContext, replacement.BuildPlan(profile, inputs))
	require.NoError(testInstance, replacementError)

	return fixture
}

func (fixture namesFixture) opener() session.Opener {
	return session.Opener{
		EnvironmentLookup: func(string) (string, bool) { return "", false },
		StorageProvider: func() session.StorageConfiguration {
			return session.StorageConfiguration{AddressBookDirectory: fixture.directory}
		},
		Connector: func(context.Context, networks.Profile, session.NetworkConfiguration, session.StorageConfiguration, *zap.Logger) (session.Connection, error) {
			return session.Connection{Client: fixture.simulated, Clock: fixture.simulated, TestNetwork: fixture.simulated}, nil
		},
	}
}

func (fixture namesFixture) run(testInstance *testing.T, configuration names.Configuration, arguments ...string) (string, error) {
	testInstance.Helper()
	builder := names.CommandBuilder{
		Sessions:              fixture.opener(),
		ConfigurationProvider: func() names.Configuration { return configuration },
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	return execute(command, arguments...)
}

func execute(command *cobra.Command, arguments ...string) (string, error) {
	var output bytes.Buffer
	command.SetOut(&output)
	command.SetErr(&output)
	command.SetArgs(arguments)
	executionError := command.ExecuteContext(context.Background())
	return output.String(), executionError
}

func TestMigrateNamesMigratesThenVerifies(testInstance *testing.T) {
	fixture := newNamesFixture(testInstance, true)
	configuration := names.Configuration{BatchSize: 2, ResumeFile: fixture.resumeFile}

	transactionsBefore := len(fixture.simulated.Transactions())
	migrateOutput, migrateError := fixture.run(testInstance, configuration, "--labels", fixture.labelsPath)
	require.NoError(testInstance, migrateError)
	require.Contains(testInstance, migrateOutput, fmt.Sprintf("%-12s migrated %d skipped %d", "permanent", 3, 0))
	require.Contains(testInstance, migrateOutput, fmt.Sprintf("%-12s migrated %d skipped %d", "legacy", 2, 0))
	require.Contains(testInstance, migrateOutput, fmt.Sprintf("%-12s migrated %d skipped %d", "unregistered", 0, 1))
	require.Contains(testInstance, migrateOutput, "transactions: 3")
	require.Len(testInstance, fixture.simulated.Transactions(), transactionsBefore+3)
	require.NoFileExists(testInstance, fixture.resumeFile)

	verifyOutput, verifyError := fixture.run(testInstance, configuration, "--labels", fixture.labelsPath, "--verify")
	require.NoError(testInstance, verifyError)
	require.Contains(testInstance, verifyOutput, namehash.LabelHash("neverregistered").Hex())
	require.Contains(testInstance, verifyOutput, "1 of 6 labels are not migrated")
}

func TestMigrateNamesDryRunSendsNothing(testInstance *testing.T) {
	fixture := newNamesFixture(testInstance, true)

	transactionsBefore := len(fixture.simulated.Transactions())
	output, executionError := fixture.run(testInstance, names.Configuration{}, "--labels", fixture.labelsPath, "--resume-file", fixture.resumeFile, "--dry-run")
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, output, "over 2 batches")
	require.Contains(testInstance, output, "transactions: 0")
	require.Len(testInstance, fixture.simulated.Transactions(), transactionsBefore)
}

func TestMigrateNamesResumesAfterStoredLabel(testInstance *testing.T) {
	fixture := newNamesFixture(testInstance, true)
	require.NoError(testInstance, os.WriteFile(fixture.resumeFile, []byte(namehash.LabelHash("migratename").Hex()+"\n"), 0o600))

	output, executionError := fixture.run(testInstance, names.Configuration{ResumeFile: fixture.resumeFile}, "--labels", fixture.labelsPath)
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, output, fmt.Sprintf("%-12s migrated %d skipped %d", "permanent", 0, 0))
	require.Contains(testInstance, output, fmt.Sprintf("%-12s migrated %d skipped %d", "legacy", 2, 0))
	require.NoFileExists(testInstance, fixture.resumeFile)
}

func TestMigrateNamesRejectsInvalidInvocations(testInstance *testing.T) {
	testCases := []struct {
		name          string
		deploy        bool
		arguments     func(fixture namesFixture) []string
		expectedError error
	}{
		{
			name:      "missing_labels",
			deploy:    false,
			arguments: func(namesFixture) []string { return nil },
		},
		{
			name:      "positional_argument",
			deploy:    false,
			arguments: func(fixture namesFixture) []string { return []string{"extra", "--labels", fixture.labelsPath} },
		},
		{
			name:          "not_deployed",
			deploy:        false,
			arguments:     func(fixture namesFixture) []string { return []string{"--labels", fixture.labelsPath} },
			expectedError: migrationerrors.ErrMisconfiguredBranch,
		},
		{
			name:          "unknown_network",
			deploy:        false,
			arguments:     func(fixture namesFixture) []string { return []string{"--labels", fixture.labelsPath, "--network", "kovan"} },
			expectedError: migrationerrors.ErrUnknownNetwork,
		},
		{
			name:      "missing_labels_file",
			deploy:    true,
			arguments: func(fixture namesFixture) []string { return []string{"--labels", filepath.Join(fixture.directory, "absent.txt")} },
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testInstance *testing.T) {
			fixture := newNamesFixture(testInstance, testCase.deploy)
			_, executionError := fixture.run(testInstance, names.Configuration{}, testCase.arguments(fixture)...)
			require.Error(testInstance, executionError)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, executionError, testCase.expectedError)
			}
		})
	}
}

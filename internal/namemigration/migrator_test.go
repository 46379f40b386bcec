package namemigration_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/temirov/ensmigrate/internal/addressbook"
	"github.com/temirov/ensmigrate/internal/chain/chaintest"
	"github.com/temirov/ensmigrate/internal/contracts"
	"github.com/temirov/ensmigrate/internal/legacy"
	"github.com/temirov/ensmigrate/internal/migrationerrors"
	"github.com/temirov/ensmigrate/internal/namehash"
	"github.com/temirov/ensmigrate/internal/namemigration"
	"github.com/temirov/ensmigrate/internal/networks"
	"github.com/temirov/ensmigrate/internal/plan"
	"github.com/temirov/ensmigrate/internal/replacement"
)

var orderedNames = []string{"name", "name2", "migratename", "oldname", "nonfinalname", "neverregistered"}

type deployment struct {
	simulated  *chaintest.Chain
	book       *addressbook.Store
	registrars namemigration.Registrars
}

func deployDevelopment(testInstance *testing.T) deployment {
	testInstance.Helper()
	executionContext := context.Background()
	simulated := chaintest.New()
	profile := networks.Profile{Network: networks.Development, MinimumCommitmentAge: 60e9, MaximumCommitmentAge: 86400e9}

	book, openError := addressbook.Open(testInstance.TempDir(), networks.Development.String())
	require.NoError(testInstance, openError)
	executor := plan.NewExecutor(plan.Dependencies{Client: simulated, Recorder: book})

	legacyPlan, legacyError := legacy.BuildPlan(profile, legacy.NewSimulator(simulated, simulated, networks.Development))
	require.NoError(testInstance, legacyError)
	_, legacyExecuteError := executor.Execute(executionContext, legacyPlan)
	require.NoError(testInstance, legacyExecuteError)

	inputs, inputsError := replacement.ResolveInputs(profile, book)
	require.NoError(testInstance, inputsError)
	_, replacementError := executor.Execute(executionContext, replacement.BuildPlan(profile, inputs))
	require.NoError(testInstance, replacementError)

	migration, found := book.Lookup(contracts.RegistrarMigration.Name)
	require.True(testInstance, found)
	registrars, discoverError := namemigration.DiscoverRegistrars(executionContext, simulated, migration)
	require.NoError(testInstance, discoverError)

	return deployment{simulated: simulated, book: book, registrars: registrars}
}

func labelsOf(names ...string) []common.Hash {
	labels := make([]common.Hash, 0, len(names))
	for _, name := range names {
		labels = append(labels, namehash.LabelHash(name))
	}
	return labels
}

func labelFile(names ...string) string {
	var builder strings.Builder
	for _, label := range labelsOf(names...) {
		builder.WriteString(label.Hex())
		builder.WriteString("\n")
	}
	return builder.String()
}

func TestReadLabels(testInstance *testing.T) {
	resumeAfter := namehash.LabelHash("name2")
	absentResume := namehash.LabelHash("absent")

	testCases := []struct {
		name          string
		input         string
		resumeAfter   *common.Hash
		expected      []common.Hash
		expectedError string
	}{
		{
			name:     "all_labels",
			input:    labelFile("name", "name2", "oldname"),
			expected: labelsOf("name", "name2", "oldname"),
		},
		{
			name:        "resume_skips_through_saved_label",
			input:       labelFile("name", "name2", "oldname"),
			resumeAfter: &resumeAfter,
			expected:    labelsOf("oldname"),
		},
		{
			name:     "blank_lines_and_missing_prefix",
			input:    "\n" + strings.TrimPrefix(namehash.LabelHash("name").Hex(), "0x") + "\n\n",
			expected: labelsOf("name"),
		},
		{
			name:          "resume_label_missing_from_file",
			input:         labelFile("name", "name2", "oldname"),
			resumeAfter:   &absentResume,
			expectedError: "does not appear in the labels file",
		},
		{
			name:          "short_label",
			input:         "0x1234\n",
			expectedError: "line 1: label hash must be 32 bytes",
		},
		{
			name:          "not_hex",
			input:         "nothex\n",
			expectedError: "line 1",
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testInstance *testing.T) {
			labels, readError := namemigration.ReadLabels(strings.NewReader(testCase.input), testCase.resumeAfter)
			if len(testCase.expectedError) > 0 {
				require.ErrorContains(testInstance, readError, testCase.expectedError)
				return
			}
			require.NoError(testInstance, readError)
			require.Equal(testInstance, testCase.expected, labels)
		})
	}
}

func TestDiscoverRegistrarsFollowsMigrationContract(testInstance *testing.T) {
	deployed := deployDevelopment(testInstance)

	auction, _ := deployed.book.Lookup(contracts.AuctionRegistrar.Name)
	old, _ := deployed.book.Lookup(contracts.LegacyBaseRegistrar.Name)
	replacementRegistrar, _ := deployed.book.Lookup(contracts.BaseRegistrar.Name)

	require.Equal(testInstance, auction, deployed.registrars.Auction)
	require.Equal(testInstance, old, deployed.registrars.Old)
	require.Equal(testInstance, replacementRegistrar, deployed.registrars.New)
}

func TestCategoriseAndMigrate(testInstance *testing.T) {
	executionContext := context.Background()
	deployed := deployDevelopment(testInstance)

	resumeFile := filepath.Join(testInstance.TempDir(), "lastlabel.txt")
	require.NoError(testInstance, os.WriteFile(resumeFile, []byte(namehash.LabelHash("stale").Hex()), 0o644))

	migrator := namemigration.NewMigrator(deployed.simulated, deployed.simulated, deployed.registrars, namemigration.Options{BatchSize: 2, Concurrency: 3, ResumeFile: resumeFile}, nil)
	labels := labelsOf(orderedNames...)

	entries, categoriseError := migrator.Categorise(executionContext, labels)
	require.NoError(testInstance, categoriseError)
	categories := make([]namemigration.Category, 0, len(entries))
	for entryIndex, entry := range entries {
		require.Equal(testInstance, labels[entryIndex], entry.Label)
		categories = append(categories, entry.Category)
	}
	require.Equal(testInstance, []namemigration.Category{
		namemigration.CategoryPermanent,
		namemigration.CategoryPermanent,
		namemigration.CategoryPermanent,
		namemigration.CategoryLegacy,
		namemigration.CategoryLegacy,
		namemigration.CategoryUnregistered,
	}, categories)

	summary, migrateError := migrator.Migrate(executionContext, labels)
	require.NoError(testInstance, migrateError)
	require.Equal(testInstance, 3, summary.Migrated[namemigration.CategoryPermanent])
	require.Equal(testInstance, 2, summary.Migrated[namemigration.CategoryLegacy])
	require.Equal(testInstance, 1, summary.Skipped[namemigration.CategoryUnregistered])
	require.Len(testInstance, summary.Transactions, 3)
	require.NoFileExists(testInstance, resumeFile)

	unmigrated, verifyError := migrator.Verify(executionContext, labels)
	require.NoError(testInstance, verifyError)
	require.Equal(testInstance, labelsOf("neverregistered"), unmigrated)

	rerun, rerunError := migrator.Migrate(executionContext, labels)
	require.NoError(testInstance, rerunError)
	require.Equal(testInstance, 5, rerun.Skipped[namemigration.CategoryMigrated])
	require.Empty(testInstance, rerun.Transactions)
}

func TestDryRunEstimatesWithoutMigrating(testInstance *testing.T) {
	executionContext := context.Background()
	deployed := deployDevelopment(testInstance)
	resumeFile := filepath.Join(testInstance.TempDir(), "lastlabel.txt")
	require.NoError(testInstance, os.WriteFile(resumeFile, []byte(namehash.LabelHash("name").Hex()+"\n"), 0o644))
	migrator := namemigration.NewMigrator(deployed.simulated, deployed.simulated, deployed.registrars, namemigration.Options{DryRun: true, ResumeFile: resumeFile}, nil)
	labels := labelsOf(orderedNames...)

	transactionsBefore := len(deployed.simulated.Transactions())
	summary, migrateError := migrator.Migrate(executionContext, labels)
	require.NoError(testInstance, migrateError)
	require.Len(testInstance, summary.GasEstimates, 2)
	require.Empty(testInstance, summary.Transactions)
	require.Len(testInstance, deployed.simulated.Transactions(), transactionsBefore)
	require.FileExists(testInstance, resumeFile)

	unmigrated, verifyError := migrator.Verify(executionContext, labels)
	require.NoError(testInstance, verifyError)
	require.Equal(testInstance, labels, unmigrated)
}

func TestFailedBatchSavesResumePoint(testInstance *testing.T) {
	executionContext := context.Background()
	deployed := deployDevelopment(testInstance)
	deployed.simulated.FailOn(contracts.FuncMigrateAllLegacy.Signature, errors.New("gas price too low"))

	resumeFile := filepath.Join(testInstance.TempDir(), "lastlabel.txt")
	migrator := namemigration.NewMigrator(deployed.simulated, deployed.simulated, deployed.registrars, namemigration.Options{ResumeFile: resumeFile}, nil)

	summary, migrateError := migrator.Migrate(executionContext, labelsOf(orderedNames...))
	require.ErrorIs(testInstance, migrateError, migrationerrors.ErrCallFailed)
	require.Equal(testInstance, 3, summary.Migrated[namemigration.CategoryPermanent])

	resumePoint, loadError := namemigration.LoadResumePoint(resumeFile)
	require.NoError(testInstance, loadError)
	require.NotNil(testInstance, resumePoint)
	require.Equal(testInstance, namehash.LabelHash("migratename"), *resumePoint)

	remaining, readError := namemigration.ReadLabels(strings.NewReader(labelFile(orderedNames...)), resumePoint)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, labelsOf("oldname", "nonfinalname", "neverregistered"), remaining)

	missing, missingError := namemigration.LoadResumePoint(filepath.Join(testInstance.TempDir(), "absent.txt"))
	require.NoError(testInstance, missingError)
	require.Nil(testInstance, missing)
}

func TestFailedBatchResumePointKeepsInterleavedPendingNames(testInstance *testing.T) {
	testCases := []struct {
		name           string
		order          []string
		expectedResume string
	}{
		{
			name:           "pending_name_after_settled_prefix",
			order:          []string{"name", "oldname", "name2", "migratename", "nonfinalname"},
			expectedResume: "name",
		},
		{
			name:  "pending_name_first",
			order: []string{"oldname", "name", "name2", "migratename", "nonfinalname"},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testInstance *testing.T) {
			executionContext := context.Background()
			deployed := deployDevelopment(testInstance)
			deployed.simulated.FailOn(contracts.FuncMigrateAllLegacy.Signature, errors.New("gas price too low"))

			resumeFile := filepath.Join(testInstance.TempDir(), "lastlabel.txt")
			migrator := namemigration.NewMigrator(deployed.simulated, deployed.simulated, deployed.registrars, namemigration.Options{BatchSize: 2, ResumeFile: resumeFile}, nil)
			labels := labelsOf(testCase.order...)

			summary, migrateError := migrator.Migrate(executionContext, labels)
			require.ErrorIs(testInstance, migrateError, migrationerrors.ErrCallFailed)
			require.Equal(testInstance, 2, summary.Migrated[namemigration.CategoryPermanent])

			resumePoint, loadError := namemigration.LoadResumePoint(resumeFile)
			require.NoError(testInstance, loadError)
			if len(testCase.expectedResume) == 0 {
				require.Nil(testInstance, resumePoint)
				require.NoFileExists(testInstance, resumeFile)
			} else {
				require.NotNil(testInstance, resumePoint)
				require.Equal(testInstance, namehash.LabelHash(testCase.expectedResume), *resumePoint)
			}

			remaining, readError := namemigration.ReadLabels(strings.NewReader(labelFile(testCase.order...)), resumePoint)
			require.NoError(testInstance, readError)

			unmigrated, verifyError := migrator.Verify(executionContext, labels)
			require.NoError(testInstance, verifyError)
			require.Contains(testInstance, unmigrated, namehash.LabelHash("oldname"))
			for _, label := range unmigrated {
				require.Contains(testInstance, remaining, label)
			}
		})
	}
}

package names

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/ensmigrate/cmd/cli/session"
	"github.com/temirov/ensmigrate/internal/contracts"
	"github.com/temirov/ensmigrate/internal/migrationerrors"
	"github.com/temirov/ensmigrate/internal/namemigration"
	"github.com/temirov/ensmigrate/internal/networks"
	flagutils "github.com/temirov/ensmigrate/internal/utils/flags"
	pathutils "github.com/temirov/ensmigrate/internal/utils/path"
)

const (
	commandUseConstant                    = "migrate-names"
	commandShortDescriptionConstant       = "Migrate legacy registrations to the replacement registrar"
	commandLongDescriptionConstant        = "migrate-names reads label hashes from a file, categorises each one by the registrar holding it and migrates permanent and auction registrations through the registrar migration contract in batches. Interrupted runs resume after the last migrated label."
	commandExecutionErrorTemplateConstant = "name migration failed: %w"
	unexpectedArgumentsMessageConstant    = "migrate-names does not accept positional arguments"
	missingLabelsMessageConstant          = "--labels is required"
	noSessionsMessageConstant             = "session opener is not configured"
	openLabelsErrorTemplateConstant       = "open labels file: %w"
	missingMigrationDetailConstant        = "address book has no RegistrarMigration entry; run deploy-replacement first"
	resumingMessageConstant               = "Resuming name migration"
	labelsLoadedMessageConstant           = "Labels loaded"
	summaryCategoryTemplateConstant       = "%-12s migrated %d skipped %d\n"
	summaryTransactionsTemplateConstant   = "transactions: %d\n"
	summaryGasTemplateConstant            = "estimated gas: %d over %d batches\n"
	unmigratedLineTemplateConstant        = "%s\n"
	verifySummaryTemplateConstant         = "%d of %d labels are not migrated\n"
	labelFieldConstant                    = "label"
	countFieldConstant                    = "count"
	labelsFieldConstant                   = "labels"
)

var (
	errUnexpectedArguments = errors.New(unexpectedArgumentsMessageConstant)
	errMissingLabels       = errors.New(missingLabelsMessageConstant)
	errNoSessions          = errors.New(noSessionsMessageConstant)
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// SessionOpener opens the session of a network.
type SessionOpener interface {
	Open(executionContext context.Context, network string) (*session.Session, error)
}

// CommandBuilder assembles the migrate-names command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	Sessions              SessionOpener
	ConfigurationProvider func() Configuration
	HomeExpander          *pathutils.HomeExpander
	DefaultNetwork        string
	Networks              []string
}

type commandOptions struct {
	network    string
	labelsPath string
	resumeFile string
	dryRun     bool
	verify     bool
}

// Build constructs the migrate-names command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	var dryRun, verify bool
	flagutils.BindNetworkFlag(command, builder.defaultNetwork(), builder.Networks)
	command.Flags().String(flagutils.LabelsFlagName, "", flagutils.LabelsFlagUsage)
	command.Flags().String(flagutils.ResumeFileFlagName, "", flagutils.ResumeFileFlagUsage)
	flagutils.AddToggleFlag(command.Flags(), &dryRun, flagutils.DryRunFlagName, false, flagutils.DryRunFlagUsage)
	flagutils.AddToggleFlag(command.Flags(), &verify, flagutils.VerifyFlagName, false, flagutils.VerifyFlagUsage)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}
	if builder.Sessions == nil {
		return errNoSessions
	}

	options, optionsError := builder.parseOptions(command)
	if optionsError != nil {
		return optionsError
	}
	configuration := builder.configuration()
	logger := builder.resolveLogger()

	opened, openError := builder.Sessions.Open(command.Context(), options.network)
	if openError != nil {
		return openError
	}
	defer opened.Close()

	migration, found := opened.Book.Lookup(contracts.RegistrarMigration.Name)
	if !found {
		return migrationerrors.MisconfiguredBranchError{
			Step:       commandUseConstant,
			Dependency: contracts.RegistrarMigration.Name,
			Network:    opened.Profile.Network.String(),
			Detail:     missingMigrationDetailConstant,
		}
	}

	registrars, discoverError := namemigration.DiscoverRegistrars(command.Context(), opened.Client, migration)
	if discoverError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, discoverError)
	}

	var resumePoint *common.Hash
	if !options.verify {
		loadedPoint, loadError := namemigration.LoadResumePoint(options.resumeFile)
		if loadError != nil {
			return fmt.Errorf(commandExecutionErrorTemplateConstant, loadError)
		}
		resumePoint = loadedPoint
	}
	if resumePoint != nil {
		logger.Info(resumingMessageConstant, zap.String(labelFieldConstant, resumePoint.Hex()))
	}

	labels, readError := readLabels(options.labelsPath, resumePoint)
	if readError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, readError)
	}
	logger.Info(labelsLoadedMessageConstant, zap.String(labelsFieldConstant, options.labelsPath), zap.Int(countFieldConstant, len(labels)))

	migrator := namemigration.NewMigrator(opened.Client, opened.Clock, registrars, namemigration.Options{
		BatchSize:   configuration.BatchSize,
		Concurrency: configuration.Concurrency,
		DryRun:      options.dryRun,
		ResumeFile:  options.resumeFile,
	}, logger)

	output := command.OutOrStdout()
	if options.verify {
		unmigrated, verifyError := migrator.Verify(command.Context(), labels)
		writeUnmigrated(output, unmigrated, len(labels))
		if verifyError != nil {
			return fmt.Errorf(commandExecutionErrorTemplateConstant, verifyError)
		}
		return nil
	}

	summary, migrateError := migrator.Migrate(command.Context(), labels)
	writeSummary(output, summary)
	if migrateError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, migrateError)
	}
	return nil
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command) (commandOptions, error) {
	expander := builder.HomeExpander
	if expander == nil {
		expander = pathutils.NewHomeExpander()
	}

	labelsValue, _ := command.Flags().GetString(flagutils.LabelsFlagName)
	labelsPath := expander.Expand(labelsValue)
	if len(labelsPath) == 0 {
		return commandOptions{}, errMissingLabels
	}

	resumeFileValue, _ := command.Flags().GetString(flagutils.ResumeFileFlagName)
	if len(strings.TrimSpace(resumeFileValue)) == 0 {
		resumeFileValue = builder.configuration().ResumeFile
	}

	dryRunValue, _ := command.Flags().GetBool(flagutils.DryRunFlagName)
	verifyValue, _ := command.Flags().GetBool(flagutils.VerifyFlagName)

	return commandOptions{
		network:    flagutils.SelectedNetwork(command, builder.defaultNetwork()),
		labelsPath: labelsPath,
		resumeFile: expander.Expand(resumeFileValue),
		dryRun:     dryRunValue,
		verify:     verifyValue,
	}, nil
}

func (builder *CommandBuilder) configuration() Configuration {
	if builder.ConfigurationProvider == nil {
		return DefaultConfiguration()
	}
	return builder.ConfigurationProvider().sanitize()
}

func (builder *CommandBuilder) defaultNetwork() string {
	if len(builder.DefaultNetwork) == 0 {
		return networks.Development.String()
	}
	return builder.DefaultNetwork
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func readLabels(path string, resumePoint *common.Hash) ([]common.Hash, error) {
	file, openError := os.Open(path)
	if openError != nil {
		return nil, fmt.Errorf(openLabelsErrorTemplateConstant, openError)
	}
	defer file.Close()
	return namemigration.ReadLabels(file, resumePoint)
}

func writeSummary(output io.Writer, summary namemigration.Summary) {
	for _, category := range []namemigration.Category{
		namemigration.CategoryMigrated,
		namemigration.CategoryPermanent,
		namemigration.CategoryLegacy,
		namemigration.CategoryUnregistered,
	} {
		fmt.Fprintf(output, summaryCategoryTemplateConstant, category, summary.Migrated[category], summary.Skipped[category])
	}
	fmt.Fprintf(output, summaryTransactionsTemplateConstant, len(summary.Transactions))
	if len(summary.GasEstimates) == 0 {
		return
	}
	var total uint64
	for _, estimate := range summary.GasEstimates {
		total += estimate
	}
	fmt.Fprintf(output, summaryGasTemplateConstant, total, len(summary.GasEstimates))
}

func writeUnmigrated(output io.Writer, unmigrated []common.Hash, total int) {
	for _, label := range unmigrated {
		fmt.Fprintf(output, unmigratedLineTemplateConstant, label.Hex())
	}
	fmt.Fprintf(output, verifySummaryTemplateConstant, len(unmigrated), total)
}

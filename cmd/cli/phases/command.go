package phases

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/ensmigrate/cmd/cli/session"
	"github.com/temirov/ensmigrate/internal/networks"
	"github.com/temirov/ensmigrate/internal/plan"
	flagutils "github.com/temirov/ensmigrate/internal/utils/flags"
)

const (
	unexpectedArgumentsTemplateConstant = "%s does not accept positional arguments"
	referenceLineTemplateConstant       = "%-32s %s\n"
	runIdentifierLineTemplateConstant   = "run %s: %d steps executed, %d skipped\n"
	noSessionsMessageConstant           = "session opener is not configured"
)

var errNoSessions = errors.New(noSessionsMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// SessionOpener resolves network profiles and opens their sessions.
type SessionOpener interface {
	Resolve(network string) (networks.Profile, error)
	OpenProfile(executionContext context.Context, profile networks.Profile) (*session.Session, error)
}

// Dependencies are shared by every phase command builder.
type Dependencies struct {
	LoggerProvider LoggerProvider
	Sessions       SessionOpener
	DefaultNetwork string
	Networks       []string
}

func (dependencies Dependencies) newCommand(use string, short string, long string, run func(command *cobra.Command, network string) error) *cobra.Command {
	command := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		RunE: func(command *cobra.Command, arguments []string) error {
			if len(arguments) > 0 {
				return fmt.Errorf(unexpectedArgumentsTemplateConstant, use)
			}
			if dependencies.Sessions == nil {
				return errNoSessions
			}
			return run(command, flagutils.SelectedNetwork(command, dependencies.defaultNetwork()))
		},
	}
	flagutils.BindNetworkFlag(command, dependencies.defaultNetwork(), dependencies.Networks)
	return command
}

func (dependencies Dependencies) defaultNetwork() string {
	if len(dependencies.DefaultNetwork) == 0 {
		return networks.Development.String()
	}
	return dependencies.DefaultNetwork
}

func (dependencies Dependencies) resolveLogger() *zap.Logger {
	if dependencies.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := dependencies.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func executePlan(executionContext context.Context, opened *session.Session, logger *zap.Logger, deploymentPlan plan.Plan) (plan.Report, error) {
	executor := plan.NewExecutor(plan.Dependencies{
		Client:   opened.Client,
		Recorder: opened.Book,
		Logger:   logger,
		RunID:    opened.Book.RunID(),
	})
	return executor.Execute(executionContext, deploymentPlan)
}

func writeReport(output io.Writer, report plan.Report) {
	fmt.Fprintf(output, runIdentifierLineTemplateConstant, report.RunID, len(report.Executed), len(report.Skipped))
	for _, name := range slices.Sorted(maps.Keys(report.References)) {
		address := report.References[name]
		if address == (common.Address{}) {
			continue
		}
		fmt.Fprintf(output, referenceLineTemplateConstant, name, address.Hex())
	}
}

package phases

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/ensmigrate/internal/activation"
)

const (
	activateUseConstant              = "activate"
	activateShortDescriptionConstant = "Hand the eth node to the registrar migration contract"
	activateLongDescriptionConstant  = "activate transfers ownership of the eth node in the legacy registry to the deployed registrar migration contract, directly or through the root controller. Unauthorized accounts are reported and skipped."
	activateErrorTemplateConstant    = "activation failed: %w"
	activateAbortedTemplateConstant  = "activation aborted: %w"
	activateStatusTemplateConstant   = "status: %s\n"
	activatePathTemplateConstant     = "path: %s\n"
	activateReasonTemplateConstant   = "reason: %v\n"
)

// ActivationConfiguration controls how an unauthorized activation is reported.
type ActivationConfiguration struct {
	Strict bool `mapstructure:"strict"`
}

// ActivateCommandBuilder assembles the activate command.
type ActivateCommandBuilder struct {
	Dependencies
	ConfigurationProvider func() ActivationConfiguration
}

// Build constructs the activate command.
func (builder *ActivateCommandBuilder) Build() (*cobra.Command, error) {
	return builder.newCommand(activateUseConstant, activateShortDescriptionConstant, activateLongDescriptionConstant, builder.run), nil
}

func (builder *ActivateCommandBuilder) run(command *cobra.Command, network string) error {
	logger := builder.resolveLogger()

	profile, resolveError := builder.Sessions.Resolve(network)
	if resolveError != nil {
		return resolveError
	}

	opened, openError := builder.Sessions.OpenProfile(command.Context(), profile)
	if openError != nil {
		return openError
	}
	defer opened.Close()

	outcome, activateError := activation.NewActivator(opened.Client, profile, opened.Book, logger).Activate(command.Context())
	if activateError != nil {
		return fmt.Errorf(activateErrorTemplateConstant, activateError)
	}

	output := command.OutOrStdout()
	fmt.Fprintf(output, activateStatusTemplateConstant, outcome.Status)
	if outcome.Path != activation.PathNone {
		fmt.Fprintf(output, activatePathTemplateConstant, outcome.Path)
	}
	if outcome.Status != activation.StatusAborted {
		return nil
	}
	fmt.Fprintf(output, activateReasonTemplateConstant, outcome.Reason)

	if builder.ConfigurationProvider != nil && builder.ConfigurationProvider().Strict {
		return fmt.Errorf(activateAbortedTemplateConstant, outcome.Reason)
	}
	return nil
}

package phases

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/ensmigrate/internal/replacement"
)

const (
	deployReplacementUseConstant              = "deploy-replacement"
	deployReplacementShortDescriptionConstant = "Deploy the replacement registry and registrars"
	deployReplacementLongDescriptionConstant  = "deploy-replacement deploys the fallback registry, resolvers, permanent registrar, registrar migration contract and supporting infrastructure, recording every address in the address book, then hands ownership to the owner address."
	deployReplacementErrorTemplateConstant    = "replacement deployment failed: %w"
)

// DeployReplacementCommandBuilder assembles the deploy-replacement command.
type DeployReplacementCommandBuilder struct {
	Dependencies
}

// Build constructs the deploy-replacement command.
func (builder *DeployReplacementCommandBuilder) Build() (*cobra.Command, error) {
	return builder.newCommand(deployReplacementUseConstant, deployReplacementShortDescriptionConstant, deployReplacementLongDescriptionConstant, builder.run), nil
}

func (builder *DeployReplacementCommandBuilder) run(command *cobra.Command, network string) error {
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

	inputs, inputsError := replacement.ResolveInputs(profile, opened.Book)
	if inputsError != nil {
		return fmt.Errorf(deployReplacementErrorTemplateConstant, inputsError)
	}

	report, executeError := executePlan(command.Context(), opened, logger, replacement.BuildPlan(profile, inputs))
	if executeError != nil {
		return fmt.Errorf(deployReplacementErrorTemplateConstant, executeError)
	}

	writeReport(command.OutOrStdout(), report)
	return nil
}

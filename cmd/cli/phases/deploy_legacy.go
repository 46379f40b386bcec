package phases

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/ensmigrate/internal/legacy"
)

const (
	deployLegacyUseConstant              = "deploy-legacy"
	deployLegacyShortDescriptionConstant = "Deploy and populate the legacy registry on the development network"
	deployLegacyLongDescriptionConstant  = "deploy-legacy deploys the legacy registry, auction registrar and permanent registrar on the development network and seeds them with auctioned and permanently registered names. Other networks are skipped."
	deployLegacyErrorTemplateConstant    = "legacy deployment failed: %w"
	deployLegacySkippedMessageConstant   = "Legacy deployment runs only on the development network; skipping"
	networkFieldConstant                 = "network"
)

// SimulatorConfiguration tunes the legacy workflow simulator.
type SimulatorConfiguration struct {
	Concurrency int `mapstructure:"concurrency"`
}

// DeployLegacyCommandBuilder assembles the deploy-legacy command.
type DeployLegacyCommandBuilder struct {
	Dependencies
	ConfigurationProvider func() SimulatorConfiguration
}

// Build constructs the deploy-legacy command.
func (builder *DeployLegacyCommandBuilder) Build() (*cobra.Command, error) {
	return builder.newCommand(deployLegacyUseConstant, deployLegacyShortDescriptionConstant, deployLegacyLongDescriptionConstant, builder.run), nil
}

func (builder *DeployLegacyCommandBuilder) run(command *cobra.Command, network string) error {
	logger := builder.resolveLogger()

	profile, resolveError := builder.Sessions.Resolve(network)
	if resolveError != nil {
		return resolveError
	}
	if !profile.Network.IsDevelopment() {
		logger.Info(deployLegacySkippedMessageConstant, zap.String(networkFieldConstant, profile.Network.String()))
		return nil
	}

	opened, openError := builder.Sessions.OpenProfile(command.Context(), profile)
	if openError != nil {
		return openError
	}
	defer opened.Close()

	simulatorOptions := []legacy.SimulatorOption{legacy.WithLogger(logger)}
	if builder.ConfigurationProvider != nil {
		simulatorOptions = append(simulatorOptions, legacy.WithConcurrency(builder.ConfigurationProvider().Concurrency))
	}
	simulator := legacy.NewSimulator(opened.Client, opened.TestNetwork, profile.Network, simulatorOptions...)

	legacyPlan, buildError := legacy.BuildPlan(profile, simulator)
	if buildError != nil {
		return fmt.Errorf(deployLegacyErrorTemplateConstant, buildError)
	}

	report, executeError := executePlan(command.Context(), opened, logger, legacyPlan)
	if executeError != nil {
		return fmt.Errorf(deployLegacyErrorTemplateConstant, executeError)
	}

	writeReport(command.OutOrStdout(), report)
	return nil
}

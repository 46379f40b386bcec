package flags

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/ensmigrate/internal/utils"
)

// Shared flag names and descriptions.
const (
	NetworkFlagName     = "network"
	NetworkFlagUsage    = "Target network."
	DryRunFlagName      = "dry-run"
	DryRunFlagUsage     = "Estimate gas for every transaction without sending it."
	LabelsFlagName      = "labels"
	LabelsFlagUsage     = "File of label hashes, one per line."
	ResumeFileFlagName  = "resume-file"
	ResumeFileFlagUsage = "File holding the last migrated label; overrides the configured path."
	VerifyFlagName      = "verify"
	VerifyFlagUsage     = "Report labels that are not yet migrated instead of migrating them."
)

// BindNetworkFlag attaches the --network flag to command and returns its value holder.
func BindNetworkFlag(command *cobra.Command, defaultNetwork string, networks []string) *string {
	value := defaultNetwork
	if command == nil {
		return &value
	}
	command.Flags().StringVar(&value, NetworkFlagName, defaultNetwork, FormatChoiceUsage(defaultNetwork, networks, NetworkFlagUsage))
	return &value
}

// NetworkValue returns the trimmed --network value of command, or fallback when unset.
func NetworkValue(command *cobra.Command, fallback string) string {
	if command == nil {
		return fallback
	}
	value, lookupError := command.Flags().GetString(NetworkFlagName)
	if lookupError != nil {
		return fallback
	}
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallback
	}
	return trimmed
}

// SelectedNetwork returns the network recorded in the command context by the root command,
// falling back to the --network flag of command.
func SelectedNetwork(command *cobra.Command, fallback string) string {
	if command != nil {
		if network, found := utils.NewCommandContextAccessor().Network(command.Context()); found && len(strings.TrimSpace(network)) > 0 {
			return strings.TrimSpace(network)
		}
	}
	return NetworkValue(command, fallback)
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/ensmigrate/cmd/cli/names"
	"github.com/temirov/ensmigrate/cmd/cli/phases"
	"github.com/temirov/ensmigrate/cmd/cli/session"
	"github.com/temirov/ensmigrate/internal/migrationerrors"
	"github.com/temirov/ensmigrate/internal/networks"
	"github.com/temirov/ensmigrate/internal/utils"
	flagutils "github.com/temirov/ensmigrate/internal/utils/flags"
	pathutils "github.com/temirov/ensmigrate/internal/utils/path"
)

const (
	applicationNameConstant                 = "ensmigrate"
	applicationShortDescriptionConstant     = "Deploy and activate the replacement name registry"
	applicationLongDescriptionConstant      = "ensmigrate deploys a replacement name registry next to the legacy one, activates the registrar migration and migrates existing registrations, one network at a time."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	environmentPrefixConstant               = "ENSMIGRATE"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	userConfigurationDirectoryNameConstant  = ".ensmigrate"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	rootCommandInfoMessageConstant          = "ensmigrate CLI executed"
	rootCommandDebugMessageConstant         = "ensmigrate CLI diagnostics"
	logFieldCommandNameConstant             = "command_name"
	logFieldArgumentCountConstant           = "argument_count"
	logFieldArgumentsConstant               = "arguments"
	loggerNotInitializedMessageConstant     = "logger not initialized"
	defaultConfigurationSearchPathConstant  = "."
	toolsConfigurationKeyConstant           = "tools"
	deployConfigurationKeyConstant          = toolsConfigurationKeyConstant + ".deploy"
	activateConfigurationKeyConstant        = toolsConfigurationKeyConstant + ".activate"
	simulatorConfigurationKeyConstant       = toolsConfigurationKeyConstant + ".simulator"
	namesConfigurationKeyConstant           = toolsConfigurationKeyConstant + ".names"
)

// Process exit codes.
const (
	ExitCodeSuccess       = 0
	ExitCodeFailure       = 1
	ExitCodeNotAuthorized = 3
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common   ApplicationCommonConfiguration          `mapstructure:"common"`
	Networks map[string]session.NetworkConfiguration `mapstructure:"networks"`
	Tools    ApplicationToolsConfiguration           `mapstructure:"tools"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ApplicationToolsConfiguration holds configuration for CLI subcommands grouped by tool family.
type ApplicationToolsConfiguration struct {
	Deploy    session.StorageConfiguration   `mapstructure:"deploy"`
	Activate  phases.ActivationConfiguration `mapstructure:"activate"`
	Simulator phases.SimulatorConfiguration  `mapstructure:"simulator"`
	Names     names.Configuration            `mapstructure:"names"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	commandContextAccessor utils.CommandContextAccessor
	sessions               session.Opener
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	return newApplication(session.Connector(nil), os.LookupEnv)
}

func newApplication(connector session.Connector, environmentLookup networks.EnvironmentLookup) *Application {
	homeExpander := pathutils.NewHomeExpander()
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		configurationSearchPaths(),
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
	}
	application.sessions = session.Opener{
		LoggerProvider:    application.loggerProvider,
		NetworksProvider:  func() map[string]session.NetworkConfiguration { return application.configuration.Networks },
		StorageProvider:   func() session.StorageConfiguration { return application.configuration.Tools.Deploy },
		EnvironmentLookup: environmentLookup,
		Connector:         connector,
		HomeExpander:      homeExpander,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", flagutils.FormatChoiceUsage(string(utils.LogLevelInfo), utils.LogLevels(), logLevelFlagUsageConstant))
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", flagutils.FormatChoiceUsage(string(utils.LogFormatStructured), utils.LogFormats(), logFormatFlagUsageConstant))

	phaseDependencies := phases.Dependencies{
		LoggerProvider: application.loggerProvider,
		Sessions:       application.sessions,
		DefaultNetwork: networks.Development.String(),
		Networks:       application.sessions.Networks(),
	}

	deployLegacyBuilder := phases.DeployLegacyCommandBuilder{
		Dependencies: phaseDependencies,
		ConfigurationProvider: func() phases.SimulatorConfiguration {
			return application.configuration.Tools.Simulator
		},
	}
	if deployLegacyCommand, buildError := deployLegacyBuilder.Build(); buildError == nil {
		cobraCommand.AddCommand(deployLegacyCommand)
	}

	deployReplacementBuilder := phases.DeployReplacementCommandBuilder{Dependencies: phaseDependencies}
	if deployReplacementCommand, buildError := deployReplacementBuilder.Build(); buildError == nil {
		cobraCommand.AddCommand(deployReplacementCommand)
	}

	activateBuilder := phases.ActivateCommandBuilder{
		Dependencies: phaseDependencies,
		ConfigurationProvider: func() phases.ActivationConfiguration {
			return application.configuration.Tools.Activate
		},
	}
	if activateCommand, buildError := activateBuilder.Build(); buildError == nil {
		cobraCommand.AddCommand(activateCommand)
	}

	namesBuilder := names.CommandBuilder{
		LoggerProvider: application.loggerProvider,
		Sessions:       application.sessions,
		ConfigurationProvider: func() names.Configuration {
			return application.configuration.Tools.Names
		},
		HomeExpander:   homeExpander,
		DefaultNetwork: networks.Development.String(),
		Networks:       application.sessions.Networks(),
	}
	if namesCommand, buildError := namesBuilder.Build(); buildError == nil {
		cobraCommand.AddCommand(namesCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil && executionError == nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

// ExitCode maps an execution error to the process exit code. Only an unauthorized
// activation surfaced by strict mode exits with ExitCodeNotAuthorized.
func ExitCode(executionError error) int {
	switch {
	case executionError == nil:
		return ExitCodeSuccess
	case errors.Is(executionError, migrationerrors.ErrNotAuthorized):
		return ExitCodeNotAuthorized
	default:
		return ExitCodeFailure
	}
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
	}
	for configurationKey, configurationValue := range toolDefaultValues() {
		defaultValues[configurationKey] = configurationValue
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(strings.TrimSpace(application.configuration.Common.LogLevel)),
		utils.LogFormat(strings.TrimSpace(application.configuration.Common.LogFormat)),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger

	application.logger.Info(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(
			command.Context(),
			application.configurationMetadata.ConfigFileUsed,
		)
		if networkFlag := command.Flags().Lookup(flagutils.NetworkFlagName); networkFlag != nil {
			updatedContext = application.commandContextAccessor.WithNetwork(updatedContext, flagutils.NetworkValue(command, networks.Development.String()))
		}
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

func toolDefaultValues() map[string]any {
	storage := session.DefaultStorageConfiguration()
	namesConfiguration := names.DefaultConfiguration()
	return map[string]any{
		deployConfigurationKeyConstant + ".address_book_directory": storage.AddressBookDirectory,
		deployConfigurationKeyConstant + ".artifacts_directory":    storage.ArtifactsDirectory,
		activateConfigurationKeyConstant + ".strict":               false,
		simulatorConfigurationKeyConstant + ".concurrency":         0,
		namesConfigurationKeyConstant + ".batch_size":              namesConfiguration.BatchSize,
		namesConfigurationKeyConstant + ".concurrency":             namesConfiguration.Concurrency,
		namesConfigurationKeyConstant + ".resume_file":             namesConfiguration.ResumeFile,
	}
}

func configurationSearchPaths() []string {
	searchPaths := []string{defaultConfigurationSearchPathConstant}
	if userConfigurationDirectory, directoryError := os.UserConfigDir(); directoryError == nil {
		searchPaths = append(searchPaths, filepath.Join(userConfigurationDirectory, userConfigurationDirectoryNameConstant))
	}
	return searchPaths
}

func (application *Application) loggerProvider() *zap.Logger {
	return application.logger
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Info(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)

	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.Strings(logFieldArgumentsConstant, arguments),
	)

	return command.Help()
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}

	syncError := application.logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	if rootCommand := command.Root(); rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet != nil && flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}

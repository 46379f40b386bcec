// Package cli constructs the ensmigrate command-line interface, wiring the Cobra
// command hierarchy, the Viper configuration loader with its embedded defaults and
// structured zap logging around the migration phase commands.
package cli

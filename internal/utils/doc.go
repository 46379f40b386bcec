// Package utils exposes reusable helpers consumed by the command-line layer.
//
// It houses the ConfigurationLoader and LoggerFactory abstractions that integrate
// Viper, environment variables and zap logging, plus the accessor for values
// carried in command contexts.
package utils

// Package migrationerrors defines the failure taxonomy shared by the migration
// phases. Configuration and authorization failures are reported as single-line
// diagnostics, while deployment and call failures abort the active run.
package migrationerrors

// Package phases provides the Cobra commands of the three migration phases: the
// development-only legacy deployment, the replacement deployment and the activation
// of the registrar migration.
package phases

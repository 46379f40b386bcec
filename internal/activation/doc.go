// Package activation hands the eth node of the legacy registry to the registrar
// migration contract.
//
// Activation is a separate phase from deployment. Every run re-reads the legacy
// registry, the migration contract and the current owners of the root and eth nodes,
// then picks the direct path (the owner account holds the root node), the delegated path
// (the owner account owns the root controller contract holding the root node) or aborts
// with a NotAuthorizedError naming the failed check. A run against an already activated
// registry changes nothing.
package activation

// Package replacement builds the plan that deploys the replacement registry stack next
// to an existing legacy registry.
//
// The plan observes the legacy registrar, places the fallback registry, resolvers and
// registrars, prepares the migration contract and the registration controller, and
// hands ownership of everything to the configured owner. Network rules decide which
// optional pieces apply: a fresh price oracle and the test registrar are limited to
// non-production networks; reverse registration, the DNS registrar and the root
// controller are skipped on the local development network.
package replacement

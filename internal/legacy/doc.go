// Package legacy recreates the pre-migration registry on the local development network.
//
// The Simulator drives the legacy auction registrar through its sealed-bid lifecycle,
// advancing chain time between phases; BuildPlan wraps it into the full legacy
// deployment with a permanent registrar, a migrated name and a subdomain registrar.
// Both refuse to run anywhere but the development network.
package legacy

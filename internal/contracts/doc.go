// Package contracts catalogs the registry contracts driven by the migration: the
// artifact name and constructor of every deployable contract, and the function
// bindings used to call or read them.
//
// Bindings are lmittmann/w3 functions. Callers compare bindings by identity, so each
// binding is declared exactly once here.
package contracts

// Package chain defines the chain client capability consumed by every migration
// component and implements it over go-ethereum.
//
// A Client deploys contracts, submits state-changing calls, reads view state and
// reports deployed code. Every mutating operation blocks until the transaction is
// confirmed or the confirmation timeout expires. Signing identities are addressed
// by Role rather than by key. TestNetwork adds the administrative time-advance
// primitive available on local development nodes.
package chain

// Package chaintest provides an in-memory chain that implements chain.Client and
// chain.TestNetwork for tests.
//
// The simulation covers the registry behavior the migration depends on: node
// ownership with authorization checks, the fallback registry, permanent registrars
// with controllers, the auction registrar lifecycle, the root controller, owned
// resolvers and the registrar migration contract. Constructor and call arguments
// are ABI-encoded before dispatch, so argument types that would not encode on a
// real node fail here too.
package chaintest

// Package plan models a deployment run as a declarative, ordered list of steps and
// executes it.
//
// Each step declares the references it requires, the reference it produces and an
// optional condition over the network and prior observations. Validate checks the
// dependency graph before any chain call is made; Executor runs the steps strictly in
// order, hands every action a Scope limited to its declared requirements and records
// each produced address as soon as it is confirmed.
package plan

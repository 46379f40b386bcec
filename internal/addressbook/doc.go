// Package addressbook persists deployed contract addresses per network so later runs
// (activation, name migration, re-runs of a deployment) can locate them by contract name.
//
// Each network is stored as one YAML document. Every Record call rewrites the document
// atomically, so an interrupted run leaves the addresses of every confirmed step behind.
package addressbook

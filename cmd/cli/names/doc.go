// Package names provides the migrate-names command that moves names registered in the
// legacy registrars to the replacement registrar in resumable batches.
package names

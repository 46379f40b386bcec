// Package namemigration moves second-level eth names from the legacy registrars into the
// replacement registrar through the registrar migration contract.
//
// Labels are read from a file of label hashes, categorised concurrently against the
// auction registrar, the legacy permanent registrar and the replacement registrar, and
// migrated in per-category batches. A resume file records the last label of the last
// successful batch so an interrupted run can continue where it stopped.
package namemigration

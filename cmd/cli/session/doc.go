// Package session resolves a network profile and opens the chain connection and
// address book that every command-line phase operates on.
package session

// Package prober performs read-only ownership queries against a live registry.
//
// Results are ownership assertions valid only at the moment they are read; the
// Prober never caches them and callers re-probe immediately before acting.
package prober

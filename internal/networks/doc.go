// Package networks resolves a network identifier into the immutable
// configuration profile used by every migration phase.
//
// The compiled-in tables list the legacy registry, price oracle and subdomain
// registrar for each public network. Fork aliases ("<network>-fork") are
// synthesized once, identically for every table, when a Catalog is built.
// Key material and the optional target address come from the process
// environment; when absent a development-only placeholder key is used and it is
// rejected for every other network.
package networks

// Package probe checks whether a remote node is reachable on the
// network, independent of what the coordination store says about it.
package probe

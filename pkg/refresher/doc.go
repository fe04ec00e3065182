// Package refresher reconciles the locally-observed truth of a node's
// services into the shared store: sampling each service's init-system
// status, advancing its restart bookkeeping, and reporting a
// heartbeat. It never repairs anything and never files alerts — that
// is pkg/fixer's job, run after the refresher in the same tick.
package refresher

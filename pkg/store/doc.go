/*
Package store implements the coordination store contract the agent's
components read and write every tick: nodes, their services, and the
shared cluster configuration.

The contract (one hierarchical, linearizable key-value store offering
atomic per-key read/write, recursive create/delete, and read-your-writes
within one client session) is expressed as the Store interface. BoltDB
(go.etcd.io/bbolt) is the embedded default implementation: a "nodes"
bucket keyed by node name, a "services" bucket holding one nested
sub-bucket per node name keyed by service name, and a single
"configuration" key holding the cluster-wide settings record.

Partial updates go through NodePatch/ServicePatch rather than whole-object
replacement, so callers only ever express the fields they mean to
change; BoltStore applies the diff and stamps UpdatedAt itself.
*/
package store

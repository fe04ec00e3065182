/*
Package types defines the core data structures shared across the
health-checker agent.

This package contains the domain model written and read through the
coordination store: nodes, services and the cluster-wide configuration
record. Every other package — store, refresher, fixer, switcher, agent —
builds on these types rather than defining its own copies.

# Core Types

Cluster Topology:
  - Node: one member of the two-site control plane, carrying its role,
    type, heartbeat and switch state.
  - NodeRole, NodeType, NodeStatus: enums constraining node fields.

Service Tracking:
  - Service: the reconciled state of one systemd-managed unit on one
    node.
  - ServiceStatus: enum constraining service status.
  - ServiceMapping: the fixed table of which services are necessary or
    unnecessary for each (node type, role) pair.

Cluster Configuration:
  - Configuration: the store-backed record refreshed every tick,
    holding DNS, GitHub and threshold settings.

All types here are serialized as JSON for storage in the coordination
store. Validation and state transitions live in the packages that own
the corresponding behavior (pkg/store, pkg/refresher, pkg/switcher),
not in this package.

# Thread Safety

Values of these types are plain data with no internal locking. Callers
obtain them from pkg/store, which synchronizes all reads and writes; a
Node or Service returned from the store is a private copy safe to read
without further synchronization, but must not be mutated in place and
handed back — go through a Patch instead.
*/
package types

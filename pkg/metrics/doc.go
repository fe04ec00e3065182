/*
Package metrics defines and registers the agent's Prometheus metrics.

All metrics are package-level variables registered at init() against
the default registry and exposed via Handler() for a /metrics HTTP
endpoint. Timer is a small convenience wrapper for recording component
and tick durations.

pkg/agent records TicksTotal and the tick and per-component duration
histograms (TickDuration, RefresherDuration, FixerDuration,
SwitcherDuration). The remaining collectors (NodesTotal, ServicesTotal,
IssuesCreatedTotal, SwitchesTotal, ServiceRestartsTotal,
DNSRewritesTotal, WebhookRotationsTotal, StoreErrorsTotal) are
registered and exported, but no component in this module sets or
increments them.
*/
package metrics

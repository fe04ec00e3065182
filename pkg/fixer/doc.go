// Package fixer acts on the state the refresher already reconciled:
// restarting services caught mid-restart, filing alerts for services
// and peer nodes that stay down, and debouncing those alerts with the
// alarmed/alarmed_at bookkeeping on Node and Service. It does not sample
// init-system status itself; it acts on the service status the
// refresher recorded, and pings peer nodes to tell a dead agent on a
// live host from an unreachable host.
package fixer

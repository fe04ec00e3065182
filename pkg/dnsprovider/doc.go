// Package dnsprovider rewrites the A records backing the status and
// log domains from the master's public IP to the slave's, as the last
// externally-visible step of a failover. It speaks the provider's REST
// API directly rather than an SDK: accounts, then zone records filtered
// by name, then a PATCH of the matched record's content.
package dnsprovider

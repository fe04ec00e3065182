// Package webhook rotates the GitHub App webhook URL to point at the
// new master's IP after a failover. GitHub App settings have no public
// REST endpoint for this, so the rotator drives the web UI directly: a
// credentialed login followed by a form submission against the app's
// settings page, both gated by per-page authenticity tokens scraped
// out of the HTML.
package webhook

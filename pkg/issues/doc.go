// Package issues files GitHub issues for conditions an operator needs
// to act on: a down service, a stalled healthchecker, an unreachable
// peer node, or a completed failover. Title and body formatting is
// deliberately plain text so the issue reads the same whether an
// operator opens it from email, the GitHub UI, or a terminal.
package issues

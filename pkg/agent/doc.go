// Package agent runs the Refresher, Fixer, and Switcher in strict
// order on a fixed interval for one named node. It owns the only
// ticker in the process: each component is stateless between ticks,
// reading and writing the shared store fresh every time it runs.
package agent

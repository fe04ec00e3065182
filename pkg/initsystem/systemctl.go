package initsystem

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// cronUnit is the unit that backs every timer pseudo-service.
const cronUnit = "cron"

// DefaultTimeout bounds a single systemctl invocation.
const DefaultTimeout = 10 * time.Second

// Controller drives systemctl for named units, redirecting
// timer-backed pseudo-services to the cron unit.
type Controller struct {
	// Timeout bounds each systemctl invocation. Defaults to
	// DefaultTimeout when zero.
	Timeout time.Duration

	// timerUnits is the set of pseudo-service names backed by the cron
	// unit (e.g. "zuul-timer-tasks").
	timerUnits map[string]bool

	// binary is the executable invoked; overridable in tests.
	binary string
}

// NewController builds a Controller. timerUnits should be
// types.TimerPseudoServices in production; tests can pass a smaller
// set.
func NewController(timerUnits map[string]bool) *Controller {
	return &Controller{timerUnits: timerUnits, binary: "systemctl"}
}

// ErrTimerUnitStartStop is returned for Start/Stop on a timer
// pseudo-service: the cron daemon always runs, starting or stopping it
// on behalf of a single timer job makes no sense during failover.
var ErrTimerUnitStartStop = fmt.Errorf("timer pseudo-services cannot be started or stopped individually")

func (c *Controller) unitFor(service string) string {
	if c.timerUnits[service] {
		return cronUnit
	}
	return service
}

func (c *Controller) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c *Controller) run(ctx context.Context, args ...string) (string, error) {
	execCtx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	cmd := exec.CommandContext(execCtx, c.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return stdout.String(), fmt.Errorf("systemctl %v: %w (stderr: %s)", args, err, stderr.String())
	}
	return stdout.String(), nil
}

// Status reports whether the unit backing service is active. A
// subprocess error here is an observation, not a fatal condition: a
// non-zero exit from systemctl status just means the unit is down.
func (c *Controller) Status(ctx context.Context, service string) (bool, error) {
	_, err := c.run(ctx, "status", c.unitFor(service))
	if err != nil {
		var exitErr *exec.ExitError
		if isExitError(err, &exitErr) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Restart restarts the unit backing service.
func (c *Controller) Restart(ctx context.Context, service string) error {
	_, err := c.run(ctx, "restart", c.unitFor(service))
	return err
}

// Start starts the unit backing service. Refused for timer
// pseudo-services.
func (c *Controller) Start(ctx context.Context, service string) error {
	if c.timerUnits[service] {
		return ErrTimerUnitStartStop
	}
	_, err := c.run(ctx, "start", service)
	return err
}

// Stop stops the unit backing service. Refused for timer
// pseudo-services.
func (c *Controller) Stop(ctx context.Context, service string) error {
	if c.timerUnits[service] {
		return ErrTimerUnitStartStop
	}
	_, err := c.run(ctx, "stop", service)
	return err
}

func isExitError(err error, target **exec.ExitError) bool {
	for u := err; u != nil; u = unwrap(u) {
		if ee, ok := u.(*exec.ExitError); ok {
			*target = ee
			return true
		}
	}
	return false
}

func unwrap(err error) error {
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return u.Unwrap()
	}
	return nil
}

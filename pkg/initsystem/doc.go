// Package initsystem wraps systemctl for the services the agent
// supervises. Timer-driven pseudo-services (see types.TimerPseudoServices)
// have no unit of their own; status and restart are redirected to the
// cron unit, and start/stop are refused since the timer always runs.
package initsystem

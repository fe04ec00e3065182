/*
Package log provides structured logging for the health-checker agent
using zerolog.

The package wraps a single global zerolog.Logger, configured once via
Init, with helper constructors for component- and entity-scoped child
loggers so every log line carries enough context to trace a tick
without threading a logger through every function signature.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	refresherLog := log.WithComponent("refresher")
	refresherLog.Info().Str("node_name", n.Name).Msg("heartbeat refreshed")

	log.WithNodeID(n.Name).Warn().Msg("peer heartbeat expired")

File output (Config.FilePath) appends to the given path; rotation is
left to logrotate, as with any other service log on these hosts. The
ha-healthchecker command sets up logging from its --log-level and
--log-json flags only: the cluster's logging_level and logging_path
settings are stored but are not applied to the logger.
*/
package log

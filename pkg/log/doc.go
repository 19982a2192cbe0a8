/*
Package log provides structured logging for the client's local data
engines using zerolog.

It wraps zerolog to give the vault, sync, queue, and cache engines
JSON-structured logging with component-specific child loggers,
configurable severity levels, and a handful of package-level helpers
for the common case of "just log a message" without threading a
logger instance through every call site.

# Usage

Initializing the logger, typically once from cmd/localcore's root
command before any engine is opened:

	import "github.com/localcore/client/pkg/log"

	// JSON output (production / on-device telemetry capture)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (local development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple logging:

	log.Info("vault opened")
	log.Debug("checking cache entry freshness")
	log.Warn("bandwidth estimator saw a zero-duration transfer")
	log.Error("failed to open backing store")
	log.Fatal("cannot start without a master key") // exits the process

Component loggers scope every subsequent field to one engine, which is
how pkg/vault and pkg/metrics tag their own output:

	vaultLog := log.WithComponent("vault")
	vaultLog.Debug().Int("count", len(keys)).Msg("cleaned up expired entries")

pkg/docsync additionally scopes its warnings to the owning node, since
a multi-device sync log is only useful once you know which replica
produced a given line:

	nodeLog := log.WithNodeID(cfg.NodeID)
	nodeLog.Warn().Msg("dropped a conflicting operation during merge")

# Log levels

Debug is for per-operation detail (cache lookups, compaction runs,
dequeue scans) that's useful while developing against the engines but
too noisy for a shipped client. Info covers lifecycle events (engine
opened/closed, wipe completed). Warn covers recoverable anomalies
(a malformed queue entry skipped, a quality gate rejecting a transfer).
Error covers operations that failed and returned an error to the
caller. Fatal is reserved for startup failures the process cannot
recover from.

# Security

Vault values and document field contents must never reach a log line.
Log structural facts about an operation (namespace, key, priority,
request ID) with typed fields (.Str, .Int), never the request body or
decrypted value itself.
*/
package log

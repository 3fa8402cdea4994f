package telemetry

import (
	"runtime"

	"github.com/asteroid-belt/matchbox/pkg/version"
)

// Event names
const (
	EventCLICommandExecuted = "cli_command_executed"
	EventCLIErrorOccurred   = "cli_error_occurred"
	EventRankCompleted      = "rank_completed"
	EventRateLimited        = "embedding_rate_limited"
	EventEmbeddingFailed    = "embedding_failed"
)

// baseProperties returns common properties for all events.
func baseProperties() map[string]interface{} {
	return map[string]interface{}{
		"os":        runtime.GOOS,
		"arch":      runtime.GOARCH,
		"version":   version.Short(),
		"dev_build": version.IsDevBuild(),
	}
}

// TrackCLICommandExecuted tracks a CLI command invocation.
func (c *posthogClient) TrackCLICommandExecuted(commandName string, hasFlags bool, durationMs int64) {
	props := baseProperties()
	props["command_name"] = commandName
	props["has_flags"] = hasFlags
	props["duration_ms"] = durationMs
	c.Track(EventCLICommandExecuted, props)
}

// TrackCLIError tracks a CLI error by coarse category. Error messages are
// never sent, only the classified type.
func (c *posthogClient) TrackCLIError(commandName, errorType string) {
	props := baseProperties()
	props["command_name"] = commandName
	props["error_type"] = errorType
	c.Track(EventCLIErrorOccurred, props)
}

// TrackRankCompleted tracks a completed ranking run. Only aggregate shape
// is reported; no profile or job content leaves the process.
func (c *posthogClient) TrackRankCompleted(jobCount, topK int, durationMs int64, cacheHitRate float64) {
	props := baseProperties()
	props["job_count"] = jobCount
	props["top_k"] = topK
	props["duration_ms"] = durationMs
	props["cache_hit_rate"] = cacheHitRate
	c.Track(EventRankCompleted, props)
}

// TrackRateLimited tracks the embedding provider throttling us.
func (c *posthogClient) TrackRateLimited(consecutive int, batchSize int) {
	props := baseProperties()
	props["consecutive_429s"] = consecutive
	props["batch_size"] = batchSize
	c.Track(EventRateLimited, props)
}

// TrackEmbeddingFailed tracks texts that exhausted their retries.
func (c *posthogClient) TrackEmbeddingFailed(failedCount, totalCount int) {
	props := baseProperties()
	props["failed_count"] = failedCount
	props["total_count"] = totalCount
	c.Track(EventEmbeddingFailed, props)
}

// --- noop implementations ---

func (c *noopClient) TrackCLICommandExecuted(commandName string, hasFlags bool, durationMs int64)   {}
func (c *noopClient) TrackCLIError(commandName, errorType string)                                   {}
func (c *noopClient) TrackRankCompleted(jobCount, topK int, durationMs int64, cacheHitRate float64) {}
func (c *noopClient) TrackRateLimited(consecutive int, batchSize int)                               {}
func (c *noopClient) TrackEmbeddingFailed(failedCount, totalCount int)                              {}

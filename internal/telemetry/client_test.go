package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_DisabledByEnvVar(t *testing.T) {
	t.Setenv("MATCHBOX_TELEMETRY_TRACKING_ENABLED", "false")

	client := New()
	_, ok := client.(*noopClient)
	assert.True(t, ok, "Should return noopClient when disabled")
}

func TestNew_DisabledWithoutAPIKey(t *testing.T) {
	originalKey := PostHogAPIKey
	PostHogAPIKey = ""
	defer func() { PostHogAPIKey = originalKey }()

	client := New()
	_, ok := client.(*noopClient)
	assert.True(t, ok, "Should return noopClient without API key")
}

func TestNoopClient_DoesNotPanic(t *testing.T) {
	client := &noopClient{}

	client.Track("test_event", map[string]interface{}{"key": "value"})
	client.TrackCLICommandExecuted("rank", true, 100)
	client.TrackCLIError("rank", "network_error")
	client.TrackRankCompleted(25, 5, 1800, 0.8)
	client.TrackRateLimited(3, 5)
	client.TrackEmbeddingFailed(2, 25)
	client.Close()

	assert.Empty(t, client.GetTrackingID())
}

func TestEventConstants(t *testing.T) {
	assert.Equal(t, "cli_command_executed", EventCLICommandExecuted)
	assert.Equal(t, "cli_error_occurred", EventCLIErrorOccurred)
	assert.Equal(t, "rank_completed", EventRankCompleted)
	assert.Equal(t, "embedding_rate_limited", EventRateLimited)
	assert.Equal(t, "embedding_failed", EventEmbeddingFailed)
}

func TestBaseProperties(t *testing.T) {
	props := baseProperties()

	assert.Contains(t, props, "os")
	assert.Contains(t, props, "arch")
	assert.Contains(t, props, "version")
}

package engineconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := LoadFromEnv()
	assert.Equal(t, 1024, cfg.QueueCapacity)
	assert.Equal(t, 30*time.Second, cfg.TaskTimeout)
	assert.Equal(t, 100, cfg.MaxAppendIterations)
	assert.Equal(t, 200, cfg.UndoStackCapacity)
	assert.Equal(t, 16, cfg.ShardCount)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("MODUFORGE_QUEUE_CAPACITY", "50")
	t.Setenv("MODUFORGE_TASK_TIMEOUT", "2s")
	t.Setenv("MODUFORGE_SHARD_COUNT", "4")

	cfg := LoadFromEnv()
	assert.Equal(t, 50, cfg.QueueCapacity)
	assert.Equal(t, 2*time.Second, cfg.TaskTimeout)
	assert.Equal(t, 4, cfg.ShardCount)
}

func TestLoadFromEnvDurationFallsBackToSeconds(t *testing.T) {
	t.Setenv("MODUFORGE_TASK_TIMEOUT", "15")
	cfg := LoadFromEnv()
	assert.Equal(t, 15*time.Second, cfg.TaskTimeout)
}

func TestValidateRejectsNonPositiveFields(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.QueueCapacity = 0
	require.Error(t, cfg.Validate())

	cfg = LoadFromEnv()
	cfg.ShardCount = -1
	require.Error(t, cfg.Validate())
}

func TestGetEnvIntIgnoresUnparsableValues(t *testing.T) {
	t.Setenv("MODUFORGE_QUEUE_CAPACITY", "not-a-number")
	cfg := LoadFromEnv()
	assert.Equal(t, 1024, cfg.QueueCapacity)
}

// Package engineconfig loads runtime tuning knobs for the editor and
// transaction engine: nested section structs, a LoadFromEnv()
// constructor with sensible defaults, and a Validate() pass that
// rejects impossible combinations.
package engineconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// EditorConfig tunes the transaction engine's queue, worker pool and
// undo history. All fields have defaults so LoadFromEnv can be called
// with no environment variables set.
type EditorConfig struct {
	// QueueCapacity bounds how many pending transactions the engine
	// will buffer before further dispatches are refused.
	QueueCapacity int
	// TaskTimeout bounds how long a single transaction's dispatch/apply
	// cycle may run before it is abandoned.
	TaskTimeout time.Duration
	// MaxAppendIterations bounds how many follow-up transactions the
	// append-transaction loop may apply for one commit.
	MaxAppendIterations int
	// UndoStackCapacity bounds how many items each user's undo manager
	// retains before evicting the oldest entry.
	UndoStackCapacity int
	// ShardCount is the number of independent document shards the
	// engine spreads work across.
	ShardCount int
}

// LoadFromEnv builds an EditorConfig from MODUFORGE_-prefixed
// environment variables, falling back to defaults where unset.
func LoadFromEnv() *EditorConfig {
	return &EditorConfig{
		QueueCapacity:       getEnvInt("MODUFORGE_QUEUE_CAPACITY", 1024),
		TaskTimeout:         getEnvDuration("MODUFORGE_TASK_TIMEOUT", 30*time.Second),
		MaxAppendIterations: getEnvInt("MODUFORGE_MAX_APPEND_ITERATIONS", 100),
		UndoStackCapacity:   getEnvInt("MODUFORGE_UNDO_STACK_CAPACITY", 200),
		ShardCount:          getEnvInt("MODUFORGE_SHARD_COUNT", 16),
	}
}

// Validate rejects configurations that would make the engine unusable.
func (c *EditorConfig) Validate() error {
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("engineconfig: queue capacity must be positive, got %d", c.QueueCapacity)
	}
	if c.TaskTimeout <= 0 {
		return fmt.Errorf("engineconfig: task timeout must be positive, got %s", c.TaskTimeout)
	}
	if c.MaxAppendIterations <= 0 {
		return fmt.Errorf("engineconfig: max append iterations must be positive, got %d", c.MaxAppendIterations)
	}
	if c.UndoStackCapacity <= 0 {
		return fmt.Errorf("engineconfig: undo stack capacity must be positive, got %d", c.UndoStackCapacity)
	}
	if c.ShardCount <= 0 {
		return fmt.Errorf("engineconfig: shard count must be positive, got %d", c.ShardCount)
	}
	return nil
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

package undo

import (
	"sync"
	"time"
)

// Statistics mirrors original_source's UndoStatistics, but fixes the
// named bug in its average_undo_latency update — the source computes
// `(avg + new) / 2`, which is not a true running mean once more than
// two samples have been recorded (spec §9 Design Note #4 calls this out
// explicitly and asks for a proper incremental mean; see also
// [[pkg/conflict/statistics]] for the same fix applied there).
type Statistics struct {
	mu                    sync.Mutex
	totalUndos            uint64
	totalRedos            uint64
	failedUndos           uint64
	averageUndoLatency    time.Duration
	positionAdjustedUndos uint64
}

func (s *Statistics) recordUndo(latency time.Duration, positionAdjusted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalUndos++
	delta := latency - s.averageUndoLatency
	s.averageUndoLatency += delta / time.Duration(s.totalUndos)
	if positionAdjusted {
		s.positionAdjustedUndos++
	}
}

func (s *Statistics) recordFailedUndo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedUndos++
}

func (s *Statistics) recordRedo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRedos++
}

// Snapshot is a point-in-time copy of Statistics.
type Snapshot struct {
	TotalUndos            uint64
	TotalRedos            uint64
	FailedUndos           uint64
	AverageUndoLatency    time.Duration
	PositionAdjustedUndos uint64
}

func (s *Statistics) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		TotalUndos:            s.totalUndos,
		TotalRedos:            s.totalRedos,
		FailedUndos:           s.failedUndos,
		AverageUndoLatency:    s.averageUndoLatency,
		PositionAdjustedUndos: s.positionAdjustedUndos,
	}
}

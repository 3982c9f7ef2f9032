package conflict

import (
	"sync"
	"time"
)

// Statistics tracks conflict counts and resolution latency. Unlike
// original_source's `average = total_time / total_conflicts` (which
// recomputes from a running total — not itself wrong, but
// original_source's sibling spec, the undo manager, names the same
// pattern implemented as `(avg + new)/2` a bug; we use a proper
// incremental (Welford) mean here throughout so both statistics
// surfaces behave consistently per spec §9 Design Note #4).
type Statistics struct {
	mu                    sync.Mutex
	totalConflicts        uint64
	conflictsByType       map[ConflictType]uint64
	averageResolutionTime time.Duration
	resolutions           uint64
}

func newStatistics() *Statistics {
	return &Statistics{conflictsByType: make(map[ConflictType]uint64)}
}

func (s *Statistics) recordConflict(t ConflictType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalConflicts++
	s.conflictsByType[t]++
}

// recordResolutionTime updates the running mean incrementally:
// mean += (sample - mean) / n, exact regardless of how many samples
// have been recorded, unlike a naive exponential-ish "(avg+new)/2".
func (s *Statistics) recordResolutionTime(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolutions++
	delta := d - s.averageResolutionTime
	s.averageResolutionTime += delta / time.Duration(s.resolutions)
}

// Snapshot is a point-in-time, immutable copy of Statistics for callers
// that want to report or export it without holding the resolver's lock.
type Snapshot struct {
	TotalConflicts        uint64
	ConflictsByType       map[ConflictType]uint64
	AverageResolutionTime time.Duration
}

func (s *Statistics) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	byType := make(map[ConflictType]uint64, len(s.conflictsByType))
	for k, v := range s.conflictsByType {
		byType[k] = v
	}
	return Snapshot{
		TotalConflicts:        s.totalConflicts,
		ConflictsByType:       byType,
		AverageResolutionTime: s.averageResolutionTime,
	}
}

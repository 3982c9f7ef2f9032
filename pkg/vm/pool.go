package vm

import "sync"

// Pooling follows the same shape as the teacher's object-pool package:
// a package-level Config toggling pooling on/off plus a sync.Pool per
// reusable scratch buffer. The VM allocates a fresh data stack and
// scope stack on every Run; pooling them avoids a slice allocation per
// expression evaluation, which matters since a single decision graph
// evaluation can run hundreds of small expressions.
type PoolConfig struct {
	Enabled bool
	MaxSize int
}

var poolConfig = PoolConfig{Enabled: true, MaxSize: 1000}

// Configure sets global VM pooling behavior. Call during initialization.
func Configure(cfg PoolConfig) { poolConfig = cfg }

var stackPool = sync.Pool{
	New: func() any { return make([]Variable, 0, 32) },
}

var scopePool = sync.Pool{
	New: func() any { return make([]scope, 0, 4) },
}

func getStack() []Variable {
	if !poolConfig.Enabled {
		return make([]Variable, 0, 32)
	}
	return stackPool.Get().([]Variable)[:0]
}

func putStack(s []Variable) {
	if !poolConfig.Enabled || cap(s) > poolConfig.MaxSize {
		return
	}
	for i := range s {
		s[i] = Variable{}
	}
	stackPool.Put(s[:0])
}

func getScopes() []scope {
	if !poolConfig.Enabled {
		return make([]scope, 0, 4)
	}
	return scopePool.Get().([]scope)[:0]
}

func putScopes(s []scope) {
	if !poolConfig.Enabled || cap(s) > poolConfig.MaxSize {
		return
	}
	for i := range s {
		s[i] = scope{}
	}
	scopePool.Put(s[:0])
}

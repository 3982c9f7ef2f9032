package conflict

import (
	"sync"
	"time"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/collab"
)

// Resolver dispatches a Context to its configured Strategy and records
// statistics, mirroring ModuForgeConflictResolver's fields one-to-one
// (strategies, custom_resolvers, user_priorities, conflict_stats).
type Resolver struct {
	mu              sync.RWMutex
	strategies      map[ConflictType]Strategy
	customResolvers map[string]CustomResolver
	userPriorities  map[string]uint32
	stats           *Statistics
}

// NewResolver returns a Resolver seeded with spec §4.7's default
// strategy table.
func NewResolver() *Resolver {
	return &Resolver{
		strategies: map[ConflictType]Strategy{
			NodeStructure:         {Kind: StrategyMerge},
			NodeAttributes:        {Kind: StrategyMerge},
			NodeMarks:             {Kind: StrategyMerge},
			PluginState:           {Kind: StrategyLastWriterWins},
			ConcurrentTransaction: {Kind: StrategyTimestampPriority},
		},
		customResolvers: make(map[string]CustomResolver),
		userPriorities:  make(map[string]uint32),
		stats:           newStatistics(),
	}
}

// SetStrategy overrides the configured strategy for a conflict kind.
func (r *Resolver) SetStrategy(t ConflictType, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[t] = s
}

// RegisterCustomResolver makes a CustomResolver available to
// Strategy{Kind: StrategyCustom, CustomName: resolver.Name()}.
func (r *Resolver) RegisterCustomResolver(cr CustomResolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customResolvers[cr.Name()] = cr
}

// SetUserPriority assigns an administrator weight used to break
// timestamp ties (spec §9 "User priority").
func (r *Resolver) SetUserPriority(userID string, priority uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userPriorities[userID] = priority
}

// Stats returns a point-in-time snapshot of recorded statistics.
func (r *Resolver) Stats() Snapshot { return r.stats.Snapshot() }

// Resolve is the main entry point: record the conflict, dispatch to the
// configured strategy, and record resolution latency.
func (r *Resolver) Resolve(ctx Context) (Resolution, error) {
	r.stats.recordConflict(ctx.Type)
	start := time.Now()

	r.mu.RLock()
	strategy, ok := r.strategies[ctx.Type]
	r.mu.RUnlock()
	if !ok {
		strategy = Strategy{Kind: StrategyLastWriterWins}
	}

	resolution, err := r.dispatch(ctx, strategy)
	if err != nil {
		return Resolution{}, err
	}

	r.stats.recordResolutionTime(time.Since(start))
	return resolution, nil
}

func (r *Resolver) dispatch(ctx Context, strategy Strategy) (Resolution, error) {
	switch strategy.Kind {
	case StrategyLastWriterWins:
		return r.resolveLastWriterWins(ctx), nil
	case StrategyMerge:
		return r.resolveMerge(ctx)
	case StrategyUserPriority:
		return r.resolveUserPriority(ctx, strategy.UserID), nil
	case StrategyTimestampPriority:
		return r.resolveTimestampPriority(ctx), nil
	case StrategyCustom:
		return r.resolveCustom(ctx, strategy.CustomName)
	default:
		return r.resolveLastWriterWins(ctx), nil
	}
}

func (r *Resolver) resolveLastWriterWins(ctx Context) Resolution {
	winner := ctx.LocalOperation
	if ctx.RemoteTimestamp > ctx.LocalTimestamp {
		winner = ctx.RemoteOperation
	}
	return Resolution{
		Type:        ResolutionLastWriterWins,
		Operations:  []collab.YrsOperation{winner},
		Explanation: "resolved using last writer wins strategy",
		Confidence:  0.8,
		Metadata:    map[string]any{},
	}
}

func (r *Resolver) resolveTimestampPriority(ctx Context) Resolution {
	winner, winnerUser := ctx.LocalOperation, ctx.LocalUser
	if ctx.RemoteTimestamp > ctx.LocalTimestamp {
		winner, winnerUser = ctx.RemoteOperation, ctx.RemoteUser
	}
	return Resolution{
		Type:        ResolutionTimestampWins,
		Operations:  []collab.YrsOperation{winner},
		Explanation: "resolved by timestamp priority, winner: " + winnerUser,
		Confidence:  0.75,
		Metadata:    map[string]any{},
	}
}

func (r *Resolver) resolveUserPriority(ctx Context, explicitUser string) Resolution {
	winner, winnerUser := ctx.LocalOperation, ctx.LocalUser
	switch {
	case explicitUser != "" && explicitUser == ctx.RemoteUser:
		winner, winnerUser = ctx.RemoteOperation, ctx.RemoteUser
	case explicitUser == "" || explicitUser == ctx.LocalUser:
		if higher, ok := r.higherPriorityUser(ctx.LocalUser, ctx.RemoteUser); ok && higher == ctx.RemoteUser {
			winner, winnerUser = ctx.RemoteOperation, ctx.RemoteUser
		}
	}
	return Resolution{
		Type:        ResolutionUserPriority,
		Operations:  []collab.YrsOperation{winner},
		Explanation: "resolved by user priority, winner: " + winnerUser,
		Confidence:  0.85,
		Metadata:    map[string]any{},
	}
}

func (r *Resolver) higherPriorityUser(a, b string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pa, pb := r.userPriorities[a], r.userPriorities[b]
	if pa == pb {
		return "", false
	}
	if pa > pb {
		return a, true
	}
	return b, true
}

func (r *Resolver) resolveCustom(ctx Context, name string) (Resolution, error) {
	r.mu.RLock()
	cr, ok := r.customResolvers[name]
	r.mu.RUnlock()
	if !ok {
		return Resolution{}, errStrategyNotFound(name)
	}
	res, err := cr.Resolve(ctx)
	if err != nil {
		return Resolution{}, errCustomResolver(err.Error())
	}
	return res, nil
}

func (r *Resolver) resolveMerge(ctx Context) (Resolution, error) {
	switch ctx.Type {
	case NodeStructure:
		return r.resolveNodeStructureConflict(ctx)
	case NodeAttributes:
		return r.resolveAttributeConflict(ctx)
	case NodeMarks:
		return r.resolveMarksConflict(ctx)
	default:
		return r.resolveTimestampPriority(ctx), nil
	}
}

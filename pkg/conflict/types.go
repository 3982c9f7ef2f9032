// Package conflict implements the conflict resolver: given two
// concurrent operations whose intent the CRDT layer alone cannot
// reconcile, it picks an outcome per a configurable per-kind strategy
// table (spec §4.7).
//
// Grounded on original_source/conflict_resolver_impl.rs's
// ModuForgeConflictResolver (y-prosemirror-derived strategy table and
// merge rules); translated from async trait-object dispatch to a plain
// Go struct with a strategy map and an interface for custom resolvers.
package conflict

import "github.com/Cassielxd/moduforge-rs-sub000/pkg/collab"

// ConflictType is the kind of overlapping state two concurrent
// operations touched (spec §4.7).
type ConflictType string

const (
	NodeStructure        ConflictType = "NodeStructure"
	NodeAttributes       ConflictType = "NodeAttributes"
	NodeMarks            ConflictType = "NodeMarks"
	PluginState          ConflictType = "PluginState"
	ConcurrentTransaction ConflictType = "ConcurrentTransaction"
)

// StrategyKind selects how a conflict of a given type is resolved.
type StrategyKind string

const (
	StrategyLastWriterWins    StrategyKind = "LastWriterWins"
	StrategyMerge             StrategyKind = "Merge"
	StrategyUserPriority      StrategyKind = "UserPriority"
	StrategyTimestampPriority StrategyKind = "TimestampPriority"
	StrategyCustom            StrategyKind = "Custom"
)

// Strategy is a ResolutionStrategy value: UserPriority carries the
// tie-breaking user id, Custom carries the registered resolver's name.
type Strategy struct {
	Kind       StrategyKind
	UserID     string
	CustomName string
}

// ResolutionType labels the outcome actually reached, which may differ
// from the configured Strategy (e.g. a Merge strategy over a
// delete/modify pair yields DeleteWins).
type ResolutionType string

const (
	ResolutionLastWriterWins ResolutionType = "LastWriterWins"
	ResolutionMerge          ResolutionType = "Merge"
	ResolutionDeleteWins     ResolutionType = "DeleteWins"
	ResolutionTimestampWins  ResolutionType = "TimestampWins"
	ResolutionUserPriority   ResolutionType = "UserPriorityWins"
	ResolutionCustom         ResolutionType = "Custom"
)

// Context carries both sides of a conflicting pair of operations (spec
// §4.7 ConflictContext).
type Context struct {
	Type            ConflictType
	LocalOperation  collab.YrsOperation
	RemoteOperation collab.YrsOperation
	LocalUser       string
	RemoteUser      string
	LocalTimestamp  int64
	RemoteTimestamp int64
	NodePath        []string
	Metadata        map[string]any
}

// Resolution is the outcome of resolving a Context (spec §4.7
// ConflictResolution): a replacement op sequence to apply in place of
// the two conflicting ops.
type Resolution struct {
	Type        ResolutionType
	Operations  []collab.YrsOperation
	Explanation string
	Confidence  float64
	Metadata    map[string]any
}

// Error is the ConflictError taxonomy (spec §4.7/§7, via
// original_source's ConflictError enum).
type Error struct {
	Kind    string
	Message string
}

func (e *Error) Error() string { return "conflict: " + e.Kind + ": " + e.Message }

func errInvalidDataType(msg string) error    { return &Error{Kind: "InvalidDataType", Message: msg} }
func errStrategyNotFound(name string) error  { return &Error{Kind: "StrategyNotFound", Message: name} }
func errCustomResolver(msg string) error     { return &Error{Kind: "CustomResolverError", Message: msg} }

// CustomResolver lets a host application register a named strategy the
// per-kind table can dispatch to via Strategy{Kind: StrategyCustom}.
type CustomResolver interface {
	Resolve(ctx Context) (Resolution, error)
	Name() string
}

package undo

import "github.com/Cassielxd/moduforge-rs-sub000/pkg/collab"

// complexityBase is the per-op-kind base complexity, mirroring
// calculate_complexity_score's match arms.
func complexityBase(op collab.YrsOperation) float64 {
	switch op.Kind {
	case collab.OpArrayInsert:
		n := dataLen(op.Data, "values")
		return 0.3 + float64(n)*0.1
	case collab.OpArrayDelete:
		n := intFieldOr(op.Data, "length", 1)
		return 0.4 + float64(n)*0.1
	case collab.OpMapSet:
		return 0.2
	case collab.OpMapDelete:
		return 0.3
	case collab.OpTextInsert:
		n := len(stringFieldOr(op.Data, "text"))
		return 0.2 + float64(n)*0.01
	case collab.OpTextDelete:
		n := intFieldOr(op.Data, "length", 0)
		return 0.3 + float64(n)*0.01
	default:
		return 0.5
	}
}

// ComplexityScore scores how risky undoing op is, clamped to [0, 1]
// (spec §4.8 step 4): the op kind's base complexity plus a small
// per-path-depth penalty, since a deeply-nested target is more likely
// to have shifted underneath a stale undo item.
func ComplexityScore(op collab.YrsOperation) float64 {
	score := complexityBase(op) + float64(len(op.TargetPath))*0.05
	if score > 1.0 {
		return 1.0
	}
	return score
}

func dataLen(data any, key string) int {
	m, ok := data.(map[string]any)
	if !ok {
		return 0
	}
	if arr, ok := m[key].([]any); ok {
		return len(arr)
	}
	return 0
}

func intFieldOr(data any, key string, fallback int) int {
	m, ok := data.(map[string]any)
	if !ok {
		return fallback
	}
	if v, ok := m[key].(int); ok {
		return v
	}
	return fallback
}

func stringFieldOr(data any, key string) string {
	m, ok := data.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

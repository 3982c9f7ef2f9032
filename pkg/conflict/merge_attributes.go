package conflict

import "github.com/Cassielxd/moduforge-rs-sub000/pkg/collab"

var textLikeAttrs = map[string]bool{"text": true, "content": true, "title": true}
var styleLikeAttrs = map[string]bool{"style": true, "styles": true, "class": true, "className": true}
var objectLikeAttrs = map[string]bool{"config": true, "options": true, "settings": true}
var numericLikeAttrs = map[string]bool{
	"count": true, "size": true, "level": true, "priority": true,
	"x": true, "y": true, "width": true, "height": true, "left": true, "top": true,
}

// resolveAttributeConflict merges MapSet/MapSet pairs: different keys
// merge trivially, the same key dispatches to the attribute-aware rule
// for its name (spec §4.7).
func (r *Resolver) resolveAttributeConflict(ctx Context) (Resolution, error) {
	if ctx.LocalOperation.Kind != collab.OpMapSet || ctx.RemoteOperation.Kind != collab.OpMapSet {
		return r.resolveTimestampPriority(ctx), nil
	}
	localKey := mapSetKey(ctx.LocalOperation)
	remoteKey := mapSetKey(ctx.RemoteOperation)

	if localKey != remoteKey {
		return Resolution{
			Type:        ResolutionMerge,
			Operations:  []collab.YrsOperation{ctx.LocalOperation, ctx.RemoteOperation},
			Explanation: "different attributes '" + localKey + "' and '" + remoteKey + "' merged trivially",
			Confidence:  0.98,
			Metadata:    map[string]any{},
		}, nil
	}
	return r.resolveSameAttributeConflict(ctx, localKey)
}

func mapSetKey(op collab.YrsOperation) string {
	if len(op.TargetPath) == 0 {
		return ""
	}
	return op.TargetPath[len(op.TargetPath)-1]
}

func (r *Resolver) resolveSameAttributeConflict(ctx Context, key string) (Resolution, error) {
	switch {
	case textLikeAttrs[key]:
		return r.mergeTextAttribute(ctx)
	case styleLikeAttrs[key]:
		return r.mergeObjectAttribute(ctx, "style_merge")
	case numericLikeAttrs[key]:
		res := r.resolveTimestampPriority(ctx)
		res.Explanation = "numeric attribute '" + key + "' resolved by timestamp priority: " + res.Explanation
		return res, nil
	case objectLikeAttrs[key]:
		return r.mergeObjectAttribute(ctx, "object_merge")
	default:
		if higher, ok := r.higherPriorityUser(ctx.LocalUser, ctx.RemoteUser); ok {
			return r.resolveUserPriority(ctx, higher), nil
		}
		return r.resolveTimestampPriority(ctx), nil
	}
}

func (r *Resolver) mergeTextAttribute(ctx Context) (Resolution, error) {
	localText, ok1 := ctx.LocalOperation.Data.(string)
	remoteText, ok2 := ctx.RemoteOperation.Data.(string)
	if !ok1 || !ok2 {
		return Resolution{}, errInvalidDataType("expected string values for text attribute merge")
	}

	merged := mergeText(localText, remoteText, ctx.LocalTimestamp, ctx.RemoteTimestamp)
	winnerTimestamp := ctx.LocalTimestamp
	if ctx.RemoteTimestamp > winnerTimestamp {
		winnerTimestamp = ctx.RemoteTimestamp
	}

	op := ctx.LocalOperation
	op.Data = merged
	op.Timestamp = winnerTimestamp

	return Resolution{
		Type:        ResolutionMerge,
		Operations:  []collab.YrsOperation{op},
		Explanation: "text attribute merged intelligently",
		Confidence:  0.85,
		Metadata: map[string]any{
			"merge_details": map[string]any{"local": localText, "remote": remoteText, "merged": merged},
		},
	}, nil
}

// mergeObjectAttribute deep-merges two map-valued attributes (style or
// config), remote wins on key collision (spec §4.7).
func (r *Resolver) mergeObjectAttribute(ctx Context, strategyName string) (Resolution, error) {
	localObj, ok1 := ctx.LocalOperation.Data.(map[string]any)
	remoteObj, ok2 := ctx.RemoteOperation.Data.(map[string]any)
	if !ok1 || !ok2 {
		return Resolution{}, errInvalidDataType("expected object values for style/config attribute merge")
	}

	merged := make(map[string]any, len(localObj)+len(remoteObj))
	for k, v := range localObj {
		merged[k] = v
	}
	for k, v := range remoteObj {
		merged[k] = v
	}

	op := ctx.LocalOperation
	op.Data = merged
	if ctx.RemoteTimestamp > ctx.LocalTimestamp {
		op.Timestamp = ctx.RemoteTimestamp
	}

	return Resolution{
		Type:        ResolutionMerge,
		Operations:  []collab.YrsOperation{op},
		Explanation: "object attributes merged, remote wins on key collision",
		Confidence:  0.9,
		Metadata:    map[string]any{"strategy": strategyName},
	}, nil
}

// resolveMarksConflict: marks are generalized attribute bags keyed by
// mark type rather than attribute name, so different mark types merge
// trivially and same-type mark attribute collisions fall back to the
// same deep-merge rule as style/config attributes.
func (r *Resolver) resolveMarksConflict(ctx Context) (Resolution, error) {
	localPath := mapSetKey(ctx.LocalOperation)
	remotePath := mapSetKey(ctx.RemoteOperation)
	if localPath != remotePath {
		return Resolution{
			Type:        ResolutionMerge,
			Operations:  []collab.YrsOperation{ctx.LocalOperation, ctx.RemoteOperation},
			Explanation: "different mark types merged trivially",
			Confidence:  0.95,
			Metadata:    map[string]any{},
		}, nil
	}
	return r.mergeObjectAttribute(ctx, "mark_merge")
}

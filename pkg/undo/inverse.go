package undo

import "github.com/Cassielxd/moduforge-rs-sub000/pkg/collab"

// GenerateInverse derives the inverse of a single YrsOperation
// (generate_inverse_operation's match over OpKind), for callers that
// only have the committed op and a snapshot of the pre-image data
// rather than an already-captured pkg/transform Step inverse.
//
// deletedValue supplies whatever was overwritten/removed by op (the
// original's get_original_map_value/get_deleted_values_from_tree,
// resolved by the caller against its own tree snapshot rather than by
// this package reaching back into one).
func GenerateInverse(op collab.YrsOperation, deletedValue any, timestamp int64) (collab.YrsOperation, error) {
	inverse := collab.YrsOperation{
		TargetPath: op.TargetPath,
		UserID:     op.UserID,
		Timestamp:  timestamp,
	}

	switch op.Kind {
	case collab.OpArrayInsert:
		data, _ := op.Data.(map[string]any)
		inverse.Kind = collab.OpArrayDelete
		inverse.Data = map[string]any{"index": data["index"], "length": dataLen(op.Data, "values")}

	case collab.OpArrayDelete:
		data, _ := op.Data.(map[string]any)
		inverse.Kind = collab.OpArrayInsert
		inverse.Data = map[string]any{"index": data["index"], "values": deletedValue}

	case collab.OpMapSet:
		if deletedValue == nil {
			inverse.Kind = collab.OpMapDelete
			inverse.Data = nil
		} else {
			inverse.Kind = collab.OpMapSet
			inverse.Data = deletedValue
		}

	case collab.OpMapDelete:
		if deletedValue == nil {
			return collab.YrsOperation{}, errCannotGenerateInverse("original value not found for map delete")
		}
		inverse.Kind = collab.OpMapSet
		inverse.Data = deletedValue

	case collab.OpTextInsert:
		data, _ := op.Data.(map[string]any)
		inverse.Kind = collab.OpTextDelete
		inverse.Data = map[string]any{"index": data["index"], "length": len(stringFieldOr(op.Data, "text"))}

	case collab.OpTextDelete:
		data, _ := op.Data.(map[string]any)
		text, _ := deletedValue.(string)
		inverse.Kind = collab.OpTextInsert
		inverse.Data = map[string]any{"index": data["index"], "text": text}

	case collab.OpCustom:
		return collab.YrsOperation{}, errCustomOperationNotSupported()

	default:
		return collab.YrsOperation{}, errCannotGenerateInverse("unknown op kind")
	}

	return inverse, nil
}

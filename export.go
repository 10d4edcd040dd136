package archetype

import (
	"fmt"

	"github.com/goliatone/go-archetype/internal/hydrate"
)

// Export returns a plain data view of node: objects and maps become
// map[string]any, lists []any, references the identity string of their
// target.
func (g *Graph) Export(node *Node) any {
	if node == nil {
		node = g.root
	}
	return exportNode(node)
}

func exportNode(n *Node) any {
	if n == nil {
		return nil
	}
	switch n.kind {
	case NodeObject:
		out := make(map[string]any, len(n.slots))
		for _, slot := range n.slots {
			out[slot.name] = exportSlot(slot)
		}
		return out
	case NodeMap:
		out := make(map[string]any, len(n.slots))
		for _, slot := range n.slots {
			out[fmt.Sprint(slot.key)] = exportSlot(slot)
		}
		return out
	default:
		out := make([]any, 0, len(n.slots))
		for _, slot := range n.slots {
			out = append(out, exportSlot(slot))
		}
		return out
	}
}

func exportSlot(slot *Slot) any {
	if slot.ref {
		if slot.child == nil {
			return nil
		}
		return slot.child.id.String()
	}
	if slot.child != nil {
		return exportNode(slot.child)
	}
	return slot.scalar
}

// DecodeOption configures Decode.
type DecodeOption[T any] = hydrate.DecoderOption[T]

// Decode hydrates the root of g into a T, matching members by their json
// names.
func Decode[T any](g *Graph, opts ...DecodeOption[T]) (T, error) {
	var zero T
	if g == nil {
		return zero, fmt.Errorf("archetype: graph is required")
	}
	payload, ok := exportNode(g.root).(map[string]any)
	if !ok {
		return zero, fmt.Errorf("archetype: root of %s is not an object", g.id)
	}
	ctx := hydrate.Context{Asset: g.id.String(), Type: g.root.typ.String()}
	if !g.baseID.IsZero() {
		ctx.Base = g.baseID.String()
	}
	return hydrate.NewDecoder(opts...).Decode(ctx, payload)
}

// DecodeContext identifies the asset being decoded to decoder hooks.
type DecodeContext = hydrate.Context

// DecodeWithPreHook rewrites the exported payload before decoding.
func DecodeWithPreHook[T any](hook func(DecodeContext, map[string]any) (map[string]any, error)) DecodeOption[T] {
	return hydrate.WithPreHook[T](hook)
}

// DecodeWithPostHook validates or adjusts the decoded value.
func DecodeWithPostHook[T any](hook func(DecodeContext, *T) error) DecodeOption[T] {
	return hydrate.WithPostHook[T](hook)
}

// DecodeStrict rejects members T does not declare.
func DecodeStrict[T any]() DecodeOption[T] {
	return hydrate.WithDisallowUnknownFields[T]()
}

package archetype

import (
	"fmt"
	"reflect"
	"strconv"
)

// Selector addresses one slot of a node: a member by Name, an item by Index,
// or an item by its stable id through ByItem.
type Selector interface {
	fmt.Stringer
	isSelector()
}

// Name selects an object member.
type Name string

func (Name) isSelector() {}

func (n Name) String() string { return string(n) }

type indexKind uint8

const (
	indexNone indexKind = iota
	indexSeq
	indexKey
)

// Index addresses a collection item either by position (Seq) or by key
// (Key). The zero Index is NoIndex.
type Index struct {
	kind indexKind
	seq  int
	key  any
}

// NoIndex is the empty index.
var NoIndex = Index{}

// Seq returns a positional index into a list.
func Seq(i int) Index {
	return Index{kind: indexSeq, seq: i}
}

// Key returns a key index into a map. Integer and float keys are normalised
// so Key(1) and Key(int64(1)) address the same entry.
func Key(k any) Index {
	return Index{kind: indexKey, key: normalizeScalar(k)}
}

func (Index) isSelector() {}

// IsEmpty reports whether i is NoIndex.
func (i Index) IsEmpty() bool { return i.kind == indexNone }

// IsSeq reports whether i is positional.
func (i Index) IsSeq() bool { return i.kind == indexSeq }

// IsKey reports whether i is a key index.
func (i Index) IsKey() bool { return i.kind == indexKey }

// Int returns the position of a sequence index.
func (i Index) Int() int { return i.seq }

// Value returns the key of a key index.
func (i Index) Value() any { return i.key }

// Equal reports whether both indices address the same item.
func (i Index) Equal(other Index) bool {
	if i.kind != other.kind {
		return false
	}
	switch i.kind {
	case indexSeq:
		return i.seq == other.seq
	case indexKey:
		return comparableKey(i.key) && comparableKey(other.key) && i.key == other.key
	default:
		return true
	}
}

// Compare orders sequence indices. Keys have no order; ok is false unless
// both indices are positional.
func (i Index) Compare(other Index) (cmp int, ok bool) {
	if i.kind != indexSeq || other.kind != indexSeq {
		return 0, false
	}
	switch {
	case i.seq < other.seq:
		return -1, true
	case i.seq > other.seq:
		return 1, true
	default:
		return 0, true
	}
}

func (i Index) validate() error {
	switch i.kind {
	case indexSeq:
		if i.seq < 0 {
			return fmt.Errorf("%w: negative position %d", ErrInvalidIndex, i.seq)
		}
	case indexKey:
		if !comparableKey(i.key) {
			return fmt.Errorf("%w: key of type %T is not comparable", ErrInvalidIndex, i.key)
		}
	default:
		return fmt.Errorf("%w: empty index", ErrInvalidIndex)
	}
	return nil
}

func (i Index) String() string {
	switch i.kind {
	case indexSeq:
		return "[" + strconv.Itoa(i.seq) + "]"
	case indexKey:
		if s, ok := i.key.(string); ok {
			return "[" + strconv.Quote(s) + "]"
		}
		return fmt.Sprintf("[%v]", i.key)
	default:
		return "[]"
	}
}

type itemSelector struct {
	id ItemID
}

// ByItem selects a collection item by its stable id.
func ByItem(id ItemID) Selector {
	return itemSelector{id: id}
}

func (itemSelector) isSelector() {}

func (s itemSelector) String() string { return "[#" + s.id.String() + "]" }

func comparableKey(k any) bool {
	if k == nil {
		return false
	}
	return reflect.TypeOf(k).Comparable()
}

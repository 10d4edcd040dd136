package archetype

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a Path: a member name, a stable item id, or an
// index.
type Segment struct {
	Member string
	Item   ItemID
	Index  Index
}

// Selector returns the selector addressing the segment.
func (s Segment) Selector() Selector {
	switch {
	case s.Member != "":
		return Name(s.Member)
	case !s.Item.IsZero():
		return ByItem(s.Item)
	default:
		return s.Index
	}
}

func (s Segment) String() string {
	switch {
	case s.Member != "":
		return s.Member
	case !s.Item.IsZero():
		return "[#" + s.Item.String() + "]"
	default:
		return s.Index.String()
	}
}

// Path addresses a slot from the root of a graph. Canonical paths use
// member names and item ids, so they do not move when items are reordered.
type Path []Segment

func (p Path) String() string {
	var sb strings.Builder
	for i, segment := range p {
		if segment.Member != "" && i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(segment.String())
	}
	return sb.String()
}

// Append returns a copy of p extended by segment.
func (p Path) Append(segment Segment) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, segment)
}

// Parent returns p without its last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// ParsePath parses paths like `stats.armor`, `tags[2]`, `tags[#<item id>]`
// and `loot["gold"]`.
func ParsePath(s string) (Path, error) {
	var path Path
	rest := strings.TrimSpace(s)
	for rest != "" {
		switch rest[0] {
		case '.':
			if len(path) == 0 {
				return nil, fmt.Errorf("archetype: path %q starts with '.'", s)
			}
			rest = rest[1:]
			continue
		case '[':
			end := closingBracket(rest)
			if end < 0 {
				return nil, fmt.Errorf("archetype: path %q has an unterminated index", s)
			}
			segment, err := parseIndexSegment(rest[1:end])
			if err != nil {
				return nil, fmt.Errorf("archetype: path %q: %w", s, err)
			}
			path = append(path, segment)
			rest = rest[end+1:]
		default:
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			name := rest[:end]
			if name == "" {
				return nil, fmt.Errorf("archetype: path %q has an empty member", s)
			}
			path = append(path, Segment{Member: name})
			rest = rest[end:]
		}
	}
	return path, nil
}

func closingBracket(s string) int {
	inQuote := false
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if inQuote {
				i++
			}
		case '"':
			inQuote = !inQuote
		case ']':
			if !inQuote {
				return i
			}
		}
	}
	return -1
}

func parseIndexSegment(body string) (Segment, error) {
	switch {
	case strings.HasPrefix(body, "#"):
		id, err := ParseItemID(body[1:])
		if err != nil {
			return Segment{}, err
		}
		return Segment{Item: id}, nil
	case strings.HasPrefix(body, `"`):
		key, err := strconv.Unquote(body)
		if err != nil {
			return Segment{}, fmt.Errorf("bad key %s: %w", body, err)
		}
		return Segment{Index: Key(key)}, nil
	default:
		n, err := strconv.Atoi(body)
		if err != nil {
			return Segment{}, fmt.Errorf("bad index [%s]", body)
		}
		return Segment{Index: Seq(n)}, nil
	}
}

// PathOf returns the canonical path of n and the root it was reached from.
func PathOf(n *Node) (Path, *Node) {
	var reversed Path
	current := n
	for current != nil && current.parent != nil {
		reversed = append(reversed, segmentOf(current.parent))
		current = current.parent.owner
	}
	path := make(Path, len(reversed))
	for i, segment := range reversed {
		path[len(reversed)-1-i] = segment
	}
	return path, current
}

// SlotPath returns the canonical path of slot.
func SlotPath(slot *Slot) Path {
	if slot == nil || slot.owner == nil {
		return nil
	}
	path, _ := PathOf(slot.owner)
	return path.Append(segmentOf(slot))
}

func segmentOf(slot *Slot) Segment {
	if slot.IsItem() {
		return Segment{Item: slot.item}
	}
	return Segment{Member: slot.name}
}

// Resolve walks p from root and returns the addressed slot. Positional
// segments on maps address integer keys.
func (p Path) Resolve(root *Node) (*Slot, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidIndex)
	}
	node := root
	var slot *Slot
	for i, segment := range p {
		if node == nil {
			return nil, fmt.Errorf("%w: %s is not a node", ErrInvalidIndex, p[:i])
		}
		sel := segment.Selector()
		if idx, ok := sel.(Index); ok && idx.IsSeq() && node.kind == NodeMap {
			sel = Key(int64(idx.seq))
		}
		next, err := node.Lookup(sel)
		if err != nil {
			return nil, err
		}
		slot = next
		node = nil
		if next.child != nil {
			node = next.child
		}
	}
	return slot, nil
}

// ResolveNode walks p from root and returns the addressed node. The empty
// path addresses root.
func (p Path) ResolveNode(root *Node) (*Node, error) {
	if len(p) == 0 {
		return root, nil
	}
	slot, err := p.Resolve(root)
	if err != nil {
		return nil, err
	}
	if slot.child == nil {
		return nil, fmt.Errorf("%w: %s holds no node", ErrInvalidIndex, p)
	}
	return slot.child, nil
}

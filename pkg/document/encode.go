package document

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	archetype "github.com/goliatone/go-archetype"
	"gopkg.in/yaml.v3"
)

// Marshal encodes g as a YAML document.
func Marshal(g *archetype.Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes g to w as a YAML document.
func Encode(w io.Writer, g *archetype.Graph) error {
	doc, err := FromGraph(g)
	if err != nil {
		return err
	}
	return doc.Encode(w)
}

// FromGraph captures the current state of g, including stored override
// states and deleted markers.
func FromGraph(g *archetype.Graph) (*Document, error) {
	if g == nil {
		return nil, fmt.Errorf("document: graph is required")
	}
	e := &encoder{g: g, types: map[string]int{}}
	root, err := e.node(g.Root(), archetype.Type{})
	if err != nil {
		return nil, err
	}
	return &Document{ID: g.ID(), Base: g.BaseID(), Types: e.decls, root: root}, nil
}

// Encode writes the document to w.
func (d *Document) Encode(w io.Writer) error {
	if d.root == nil {
		return fmt.Errorf("document: %s has no root", d.ID)
	}
	top := mapping()
	addPair(top, "id", str(d.ID.String()))
	if !d.Base.IsZero() {
		addPair(top, "base", str(d.Base.String()))
	}
	types := mapping()
	for _, decl := range d.Types {
		members := mapping()
		for _, member := range decl.Members {
			addPair(members, member.Name, str(member.String()))
		}
		addPair(types, decl.Name, members)
	}
	addPair(top, "types", types)
	addPair(top, "root", d.root)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(top); err != nil {
		return fmt.Errorf("document: encode %s: %w", d.ID, err)
	}
	return enc.Close()
}

type encoder struct {
	g     *archetype.Graph
	decls []TypeDecl
	types map[string]int
}

func (e *encoder) node(n *archetype.Node, decl archetype.Type) (*yaml.Node, error) {
	out := mapping()
	if n.Kind() == archetype.NodeObject {
		if err := e.declare(n); err != nil {
			return nil, err
		}
		addPair(out, keyType, str(n.Type().Name))
		addPair(out, keyID, str(n.ID().String()))
		for _, slot := range n.Children() {
			value, err := e.slot(slot)
			if err != nil {
				return nil, err
			}
			addPair(out, slot.Name()+marker(e.g.StoredOverride(slot)), value)
		}
		return out, nil
	}

	if !decl.Equal(n.Type()) {
		addPair(out, keyType, str(n.Type().String()))
	}
	if deleted := e.g.Deleted(n); len(deleted) > 0 {
		ids := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, id := range deleted {
			ids.Content = append(ids.Content, str(id.String()))
		}
		addPair(out, keyDeleted, ids)
	}
	for _, slot := range n.Children() {
		key := slot.ItemID().String() + marker(e.g.StoredOverride(slot))
		if n.Kind() == archetype.NodeMap {
			key += "~" + formatKey(slot.Key())
		}
		value, err := e.slot(slot)
		if err != nil {
			return nil, err
		}
		addPair(out, key, value)
	}
	return out, nil
}

func (e *encoder) slot(slot *archetype.Slot) (*yaml.Node, error) {
	if slot.IsReference() {
		if target := slot.Node(); target != nil {
			return str(target.ID().String()), nil
		}
		return null(), nil
	}
	if child := slot.Node(); child != nil {
		return e.node(child, slot.Type())
	}
	return scalar(slot.Value())
}

// declare records the member declarations of an object node. Every node of
// one type must declare the same members.
func (e *encoder) declare(n *archetype.Node) error {
	name := n.Type().Name
	if name == "" {
		return fmt.Errorf("document: object node %s has no type name", n.ID())
	}
	decl := TypeDecl{Name: name}
	for _, slot := range n.Children() {
		decl.Members = append(decl.Members, MemberDecl{
			Name:           slot.Name(),
			Type:           slot.Type(),
			Reference:      slot.IsReference(),
			NonOverridable: slot.NonOverridable(),
		})
	}
	idx, seen := e.types[name]
	if !seen {
		e.types[name] = len(e.decls)
		e.decls = append(e.decls, decl)
		return nil
	}
	existing := e.decls[idx]
	if len(existing.Members) != len(decl.Members) {
		return fmt.Errorf("document: type %s declared with different members", name)
	}
	for i := range existing.Members {
		if !existing.Members[i].equal(decl.Members[i]) {
			return fmt.Errorf("document: type %s declares member %q differently", name, decl.Members[i].Name)
		}
	}
	return nil
}

func scalar(v any) (*yaml.Node, error) {
	switch typed := v.(type) {
	case nil:
		return null(), nil
	case float64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatFloat(typed)}, nil
	case string:
		return str(typed), nil
	}
	out := &yaml.Node{}
	if err := out.Encode(v); err != nil {
		return nil, fmt.Errorf("document: encode %T: %w", v, err)
	}
	return out, nil
}

// formatFloat keeps a fraction or exponent so integral floats read back as
// floats.
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	case math.IsNaN(f):
		return ".nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func formatKey(key any) string {
	switch typed := key.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'g', -1, 64)
	default:
		return fmt.Sprint(typed)
	}
}

func mapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode}
}

func str(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func null() *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}

func addPair(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, str(key), value)
}

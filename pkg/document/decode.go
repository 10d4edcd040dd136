package document

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	archetype "github.com/goliatone/go-archetype"
	"gopkg.in/yaml.v3"
)

// Unmarshal parses a YAML document. Types and identities are validated; the
// node tree is built by Load.
func Unmarshal(data []byte) (*Document, error) {
	var top yaml.Node
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("document: parse: %w", err)
	}
	return fromNode(&top)
}

// Decode reads one document from r.
func Decode(r io.Reader) (*Document, error) {
	var top yaml.Node
	if err := yaml.NewDecoder(r).Decode(&top); err != nil {
		return nil, fmt.Errorf("document: parse: %w", err)
	}
	return fromNode(&top)
}

func fromNode(top *yaml.Node) (*Document, error) {
	if top.Kind == yaml.DocumentNode && len(top.Content) == 1 {
		top = top.Content[0]
	}
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("document: line %d: expected a mapping", top.Line)
	}
	doc := &Document{}
	for i := 0; i+1 < len(top.Content); i += 2 {
		key, value := top.Content[i], top.Content[i+1]
		switch key.Value {
		case "id":
			id, err := archetype.ParseAssetID(value.Value)
			if err != nil {
				return nil, fmt.Errorf("document: line %d: id: %w", value.Line, err)
			}
			doc.ID = id
		case "base":
			if isNull(value) {
				continue
			}
			id, err := archetype.ParseAssetID(value.Value)
			if err != nil {
				return nil, fmt.Errorf("document: line %d: base: %w", value.Line, err)
			}
			doc.Base = id
		case "types":
			types, err := parseTypes(value)
			if err != nil {
				return nil, err
			}
			doc.Types = types
		case "root":
			doc.root = value
		default:
			return nil, fmt.Errorf("document: line %d: unknown key %q", key.Line, key.Value)
		}
	}
	if doc.ID.IsZero() {
		return nil, fmt.Errorf("document: id is required")
	}
	if doc.root == nil {
		return nil, fmt.Errorf("document: %s has no root", doc.ID)
	}
	return doc, nil
}

func parseTypes(node *yaml.Node) ([]TypeDecl, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("document: line %d: types must be a mapping", node.Line)
	}
	var decls []TypeDecl
	seen := map[string]bool{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name, members := node.Content[i].Value, node.Content[i+1]
		if seen[name] {
			return nil, fmt.Errorf("document: line %d: type %s declared twice", node.Content[i].Line, name)
		}
		seen[name] = true
		if members.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("document: line %d: type %s must be a mapping", members.Line, name)
		}
		decl := TypeDecl{Name: name}
		for j := 0; j+1 < len(members.Content); j += 2 {
			member, err := parseMemberDecl(members.Content[j].Value, members.Content[j+1].Value)
			if err != nil {
				return nil, err
			}
			decl.Members = append(decl.Members, member)
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

// Load builds the graph of the document and restores its override states
// and deleted markers. When graphs is not nil the graph is registered there
// so its base resolves; refreshing is left to the caller.
func (d *Document) Load(graphs *archetype.GraphContainer, opts ...archetype.Option) (*archetype.Graph, error) {
	dec := &decoder{doc: d}
	root, err := dec.object(d.root, nil, archetype.Type{})
	if err != nil {
		return nil, err
	}
	if !d.Base.IsZero() {
		opts = append(opts, archetype.WithBaseAsset(d.Base))
	}
	g, err := archetype.NewGraph(d.ID, root, opts...)
	if err != nil {
		return nil, fmt.Errorf("document: load %s: %w", d.ID, err)
	}
	for _, rec := range dec.overrides {
		if err := g.RestoreOverride(rec.path, rec.state); err != nil {
			g.Close()
			return nil, fmt.Errorf("document: load %s: %w", d.ID, err)
		}
	}
	for _, rec := range dec.deleted {
		if err := g.RestoreDeleted(rec.path, rec.ids); err != nil {
			g.Close()
			return nil, fmt.Errorf("document: load %s: %w", d.ID, err)
		}
	}
	if graphs != nil {
		if err := graphs.Register(g); err != nil {
			g.Close()
			return nil, err
		}
	}
	return g, nil
}

type overrideRecord struct {
	path  archetype.Path
	state archetype.OverrideState
}

type deletedRecord struct {
	path archetype.Path
	ids  []archetype.ItemID
}

type decoder struct {
	doc       *Document
	overrides []overrideRecord
	deleted   []deletedRecord
}

func (d *decoder) object(node *yaml.Node, path archetype.Path, decl archetype.Type) (archetype.Description, error) {
	if node.Kind != yaml.MappingNode {
		return archetype.Description{}, fmt.Errorf("document: line %d: %s: expected an object", node.Line, label(path))
	}
	name := decl.Name
	values := map[string]*yaml.Node{}
	states := map[string]archetype.OverrideState{}
	var id archetype.Identity
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case keyType:
			name = value.Value
		case keyID:
			parsed, err := archetype.ParseIdentity(value.Value)
			if err != nil {
				return archetype.Description{}, fmt.Errorf("document: line %d: %s: %w", value.Line, label(path), err)
			}
			id = parsed
		default:
			member, state := splitMarker(key.Value)
			if _, dup := values[member]; dup {
				return archetype.Description{}, fmt.Errorf("document: line %d: %s: member %q repeated", key.Line, label(path), member)
			}
			values[member] = value
			states[member] = state
		}
	}
	typeDecl, ok := d.doc.Type(name)
	if !ok {
		return archetype.Description{}, fmt.Errorf("document: line %d: %s: unknown type %q", node.Line, label(path), name)
	}
	for member := range values {
		if !declares(typeDecl, member) {
			return archetype.Description{}, fmt.Errorf("document: line %d: %s: type %s has no member %q", values[member].Line, label(path), name, member)
		}
	}

	desc := archetype.Description{Type: archetype.ObjectType(name), ID: id}
	for _, member := range typeDecl.Members {
		memberPath := path.Append(archetype.Segment{Member: member.Name})
		if state := states[member.Name]; state != archetype.OverrideNone {
			d.overrides = append(d.overrides, overrideRecord{path: memberPath, state: state})
		}
		mv := archetype.MemberValue{
			Name:           member.Name,
			Type:           member.Type,
			NonOverridable: member.NonOverridable,
			Reference:      member.Reference,
		}
		value := values[member.Name]
		switch {
		case member.Reference:
			if value != nil && !isNull(value) {
				target, err := archetype.ParseIdentity(value.Value)
				if err != nil {
					return archetype.Description{}, fmt.Errorf("document: line %d: %s: %w", value.Line, label(memberPath), err)
				}
				mv.Value = target
			}
		default:
			v, err := d.value(value, memberPath, member.Type)
			if err != nil {
				return archetype.Description{}, err
			}
			mv.Value = v
		}
		desc.Members = append(desc.Members, mv)
	}
	return desc, nil
}

func (d *decoder) collection(node *yaml.Node, path archetype.Path, typ archetype.Type) (archetype.Description, error) {
	desc := archetype.Description{Type: typ}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case keyType:
			continue
		case keyDeleted:
			ids, err := parseItemIDs(value)
			if err != nil {
				return archetype.Description{}, fmt.Errorf("document: line %d: %s: %w", value.Line, label(path), err)
			}
			d.deleted = append(d.deleted, deletedRecord{path: path, ids: ids})
			continue
		}
		itemPart, keyPart, hasKey := strings.Cut(key.Value, "~")
		idText, state := splitMarker(itemPart)
		id, err := archetype.ParseItemID(idText)
		if err != nil {
			return archetype.Description{}, fmt.Errorf("document: line %d: %s: %w", key.Line, label(path), err)
		}
		item := archetype.ItemValue{ID: id}
		if typ.Kind == archetype.KindMap {
			if !hasKey {
				return archetype.Description{}, fmt.Errorf("document: line %d: %s: map entry %s has no key", key.Line, label(path), id)
			}
			parsed, err := parseKey(typ.KeyType(), keyPart)
			if err != nil {
				return archetype.Description{}, fmt.Errorf("document: line %d: %s: %w", key.Line, label(path), err)
			}
			item.Key = parsed
		}
		itemPath := path.Append(archetype.Segment{Item: id})
		if state != archetype.OverrideNone {
			d.overrides = append(d.overrides, overrideRecord{path: itemPath, state: state})
		}
		v, err := d.value(value, itemPath, typ.ElemType())
		if err != nil {
			return archetype.Description{}, err
		}
		item.Value = v
		desc.Items = append(desc.Items, item)
	}
	return desc, nil
}

// value decodes the node held by a slot declared as decl. Mappings carrying
// ~type override the declared type.
func (d *decoder) value(node *yaml.Node, path archetype.Path, decl archetype.Type) (any, error) {
	if node == nil || isNull(node) {
		return nil, nil
	}
	switch node.Kind {
	case yaml.MappingNode:
		typ := decl
		if explicit, ok := lookup(node, keyType); ok {
			parsed, err := archetype.ParseType(explicit.Value)
			if err != nil {
				return nil, fmt.Errorf("document: line %d: %s: %w", explicit.Line, label(path), err)
			}
			typ = parsed
		}
		switch typ.Kind {
		case archetype.KindObject:
			return d.object(node, path, typ)
		case archetype.KindList, archetype.KindMap:
			return d.collection(node, path, typ)
		default:
			return nil, fmt.Errorf("document: line %d: %s: mapping for %s needs %s", node.Line, label(path), typ, keyType)
		}
	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, fmt.Errorf("document: line %d: %s: %w", node.Line, label(path), err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("document: line %d: %s: unexpected yaml node", node.Line, label(path))
	}
}

func parseKey(keyType archetype.Type, s string) (any, error) {
	switch keyType.Name {
	case "int":
		return strconv.ParseInt(s, 10, 64)
	case "float":
		return strconv.ParseFloat(s, 64)
	case "bool":
		return strconv.ParseBool(s)
	default:
		return s, nil
	}
}

func parseItemIDs(node *yaml.Node) ([]archetype.ItemID, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%s must be a list of item ids", keyDeleted)
	}
	ids := make([]archetype.ItemID, 0, len(node.Content))
	for _, entry := range node.Content {
		id, err := archetype.ParseItemID(entry.Value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func lookup(node *yaml.Node, key string) (*yaml.Node, bool) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1], true
		}
	}
	return nil, false
}

func declares(decl TypeDecl, member string) bool {
	for _, m := range decl.Members {
		if m.Name == member {
			return true
		}
	}
	return false
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null"
}

func label(path archetype.Path) string {
	if len(path) == 0 {
		return "root"
	}
	return path.String()
}

// Package document reads and writes asset graphs as YAML documents.
//
// A document lists the declared object types and the root node of one
// asset. Override states are encoded as suffixes on member names and item
// keys: '*' marks a Sealed slot and '+' a New item. Collections are
// mappings keyed by stable item id, map entries add their key after a '~'.
//
//	id: 6f1c...
//	base: 2a9e...
//	types:
//	  Enemy:
//	    name: string
//	    health: int
//	    tags: list<string>
//	    target: ref Enemy
//	root:
//	  ~type: Enemy
//	  ~id: 91d0...
//	  name: Enemy
//	  health*: 50
//	  tags:
//	    ~deleted: [0c4e...]
//	    5b7a...: a
//	    e3f2...+: c
package document

import (
	"fmt"
	"strings"

	archetype "github.com/goliatone/go-archetype"
	"gopkg.in/yaml.v3"
)

const (
	keyType    = "~type"
	keyID      = "~id"
	keyDeleted = "~deleted"

	markerSealed = "*"
	markerNew    = "+"

	modRef        = "ref"
	modNoOverride = "nooverride"
)

// Document is one parsed or generated asset document.
type Document struct {
	ID    archetype.AssetID
	Base  archetype.AssetID
	Types []TypeDecl

	root *yaml.Node
}

// TypeDecl lists the members of an object type in declaration order.
type TypeDecl struct {
	Name    string
	Members []MemberDecl
}

// MemberDecl is one declared member.
type MemberDecl struct {
	Name           string
	Type           archetype.Type
	Reference      bool
	NonOverridable bool
}

// String returns the document form of the declaration, e.g. "ref Enemy".
func (m MemberDecl) String() string {
	var parts []string
	if m.NonOverridable {
		parts = append(parts, modNoOverride)
	}
	if m.Reference {
		parts = append(parts, modRef)
	}
	return strings.Join(append(parts, m.Type.String()), " ")
}

func (m MemberDecl) equal(other MemberDecl) bool {
	return m.Name == other.Name &&
		m.Reference == other.Reference &&
		m.NonOverridable == other.NonOverridable &&
		m.Type.Equal(other.Type)
}

func parseMemberDecl(name, s string) (MemberDecl, error) {
	decl := MemberDecl{Name: name}
	fields := strings.Fields(s)
	for len(fields) > 1 {
		switch fields[0] {
		case modRef:
			decl.Reference = true
		case modNoOverride:
			decl.NonOverridable = true
		default:
			return MemberDecl{}, fmt.Errorf("document: member %q: unknown modifier %q", name, fields[0])
		}
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return MemberDecl{}, fmt.Errorf("document: member %q has no type", name)
	}
	typ, err := archetype.ParseType(fields[0])
	if err != nil {
		return MemberDecl{}, fmt.Errorf("document: member %q: %w", name, err)
	}
	decl.Type = typ
	return decl, nil
}

// Type returns the declaration of the object type name.
func (d *Document) Type(name string) (TypeDecl, bool) {
	for _, decl := range d.Types {
		if decl.Name == name {
			return decl, true
		}
	}
	return TypeDecl{}, false
}

func splitMarker(key string) (string, archetype.OverrideState) {
	switch {
	case strings.HasSuffix(key, markerSealed):
		return strings.TrimSuffix(key, markerSealed), archetype.OverrideSealed
	case strings.HasSuffix(key, markerNew):
		return strings.TrimSuffix(key, markerNew), archetype.OverrideNew
	}
	return key, archetype.OverrideNone
}

func marker(state archetype.OverrideState) string {
	switch state {
	case archetype.OverrideSealed:
		return markerSealed
	case archetype.OverrideNew:
		return markerNew
	}
	return ""
}

package archetype

import (
	"fmt"
	"math"
	"strings"
)

// Kind classifies declared types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindScalar
	KindObject
	KindList
	KindMap
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindObject:
		return "object"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindAny:
		return "any"
	default:
		return "invalid"
	}
}

// Type is the declared type of a slot or node. Scalars are named string,
// int, float or bool. Objects carry their type name. Collections carry the
// element type, and maps the key type. A nil Elem or Key accepts anything.
type Type struct {
	Kind Kind
	Name string
	Elem *Type
	Key  *Type
}

var (
	StringType = Type{Kind: KindScalar, Name: "string"}
	IntType    = Type{Kind: KindScalar, Name: "int"}
	FloatType  = Type{Kind: KindScalar, Name: "float"}
	BoolType   = Type{Kind: KindScalar, Name: "bool"}
	AnyType    = Type{Kind: KindAny}
)

// ObjectType returns the declared type of an object named name.
func ObjectType(name string) Type {
	return Type{Kind: KindObject, Name: name}
}

// ListOf returns a list type of elem.
func ListOf(elem Type) Type {
	return Type{Kind: KindList, Elem: &elem}
}

// MapOf returns a map type keyed by key holding elem.
func MapOf(key, elem Type) Type {
	return Type{Kind: KindMap, Key: &key, Elem: &elem}
}

// IsZero reports whether t is the zero Type.
func (t Type) IsZero() bool { return t.Kind == KindInvalid }

// IsCollection reports whether t is a list or map type.
func (t Type) IsCollection() bool { return t.Kind == KindList || t.Kind == KindMap }

// ElemType returns the element type of a collection, AnyType when unset.
func (t Type) ElemType() Type {
	if t.Elem == nil {
		return AnyType
	}
	return *t.Elem
}

// KeyType returns the key type of a map, AnyType when unset.
func (t Type) KeyType() Type {
	if t.Key == nil {
		return AnyType
	}
	return *t.Key
}

// Equal reports structural equality.
func (t Type) Equal(other Type) bool {
	if t.Kind != other.Kind || t.Name != other.Name {
		return false
	}
	switch t.Kind {
	case KindList:
		return t.ElemType().Equal(other.ElemType())
	case KindMap:
		return t.KeyType().Equal(other.KeyType()) && t.ElemType().Equal(other.ElemType())
	}
	return true
}

// AssignableFrom reports whether a value of type v can be stored in a slot
// declared as t.
func (t Type) AssignableFrom(v Type) bool {
	if t.Kind == KindAny || t.Kind == KindInvalid {
		return true
	}
	if t.Kind != v.Kind {
		return false
	}
	switch t.Kind {
	case KindScalar:
		return t.Name == v.Name || (t.Name == "float" && v.Name == "int")
	case KindObject:
		return t.Name == "" || t.Name == v.Name
	case KindList:
		return t.ElemType().AssignableFrom(v.ElemType())
	case KindMap:
		return t.KeyType().AssignableFrom(v.KeyType()) && t.ElemType().AssignableFrom(v.ElemType())
	}
	return false
}

func (t Type) String() string {
	switch t.Kind {
	case KindScalar, KindObject:
		return t.Name
	case KindList:
		return "list<" + t.ElemType().String() + ">"
	case KindMap:
		return "map<" + t.KeyType().String() + "," + t.ElemType().String() + ">"
	case KindAny:
		return "any"
	default:
		return "invalid"
	}
}

// ParseType parses the textual form produced by Type.String.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return Type{}, fmt.Errorf("archetype: empty type")
	case "string":
		return StringType, nil
	case "int":
		return IntType, nil
	case "float":
		return FloatType, nil
	case "bool":
		return BoolType, nil
	case "any":
		return AnyType, nil
	}
	if inner, ok := genericArgs(s, "list"); ok {
		elem, err := ParseType(inner)
		if err != nil {
			return Type{}, err
		}
		return ListOf(elem), nil
	}
	if inner, ok := genericArgs(s, "map"); ok {
		key, elem, ok := splitTopLevel(inner)
		if !ok {
			return Type{}, fmt.Errorf("archetype: map type %q needs key and element", s)
		}
		keyType, err := ParseType(key)
		if err != nil {
			return Type{}, err
		}
		elemType, err := ParseType(elem)
		if err != nil {
			return Type{}, err
		}
		return MapOf(keyType, elemType), nil
	}
	if strings.ContainsAny(s, "<>, ") {
		return Type{}, fmt.Errorf("archetype: malformed type %q", s)
	}
	return ObjectType(s), nil
}

func genericArgs(s, name string) (string, bool) {
	if !strings.HasPrefix(s, name+"<") || !strings.HasSuffix(s, ">") {
		return "", false
	}
	return s[len(name)+1 : len(s)-1], true
}

func splitTopLevel(s string) (string, string, bool) {
	depth := 0
	for i, r := range s {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				return s[:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}

// scalarType infers the declared type of a normalised scalar value.
func scalarType(v any) (Type, bool) {
	switch v.(type) {
	case string:
		return StringType, true
	case int64:
		return IntType, true
	case float64:
		return FloatType, true
	case bool:
		return BoolType, true
	}
	return Type{}, false
}

// normalizeScalar widens Go numeric types to int64 and float64. Values of
// other types are returned unchanged.
func normalizeScalar(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n)
		}
		return float64(n)
	case float32:
		return float64(n)
	}
	return v
}

func isScalarValue(v any) bool {
	_, ok := scalarType(normalizeScalar(v))
	return ok
}

// coerceScalar checks that v fits a slot declared as decl and returns the
// stored form.
func coerceScalar(decl Type, v any) (any, error) {
	v = normalizeScalar(v)
	vt, ok := scalarType(v)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a scalar", ErrTypeMismatch, v)
	}
	if !decl.AssignableFrom(vt) {
		return nil, fmt.Errorf("%w: cannot assign %s to %s", ErrTypeMismatch, vt, decl)
	}
	if decl.Kind == KindScalar && decl.Name == "float" {
		if i, ok := v.(int64); ok {
			return float64(i), nil
		}
	}
	return v, nil
}

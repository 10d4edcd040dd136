package archetype

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/stoewer/go-strcase"
)

// ReflectDescriber enumerates Go structs, slices, arrays and maps.
//
// Exported struct fields become members named in lower camel case unless an
// `asset` tag overrides the name. Tag options:
//
//	asset:"-"              skip the field
//	asset:"hp,nooverride"  member always follows the base
//	asset:"target,ref"     member references a node owned elsewhere
type ReflectDescriber struct{}

var identifiableType = reflect.TypeOf((*Identifiable)(nil)).Elem()

// Describe implements Describer.
func (ReflectDescriber) Describe(value any) (Description, error) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return Description{}, fmt.Errorf("archetype: cannot describe nil")
	}
	var id Identity
	if identifiable, ok := value.(Identifiable); ok {
		id = identifiable.AssetIdentity()
	}
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Description{}, fmt.Errorf("archetype: cannot describe nil %s", rv.Type())
		}
		rv = rv.Elem()
	}
	if id.IsZero() && rv.CanAddr() && rv.Addr().Type().Implements(identifiableType) {
		id = rv.Addr().Interface().(Identifiable).AssetIdentity()
	}

	switch rv.Kind() {
	case reflect.Struct:
		return describeStruct(rv, id), nil
	case reflect.Slice, reflect.Array:
		desc := Description{Type: ListOf(declaredType(rv.Type().Elem()))}
		desc.Items = make([]ItemValue, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			desc.Items = append(desc.Items, ItemValue{Value: fieldValue(rv.Index(i))})
		}
		return desc, nil
	case reflect.Map:
		desc := Description{Type: MapOf(declaredType(rv.Type().Key()), declaredType(rv.Type().Elem()))}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		desc.Items = make([]ItemValue, 0, len(keys))
		for _, key := range keys {
			desc.Items = append(desc.Items, ItemValue{
				Key:   normalizeScalar(key.Interface()),
				Value: fieldValue(rv.MapIndex(key)),
			})
		}
		return desc, nil
	default:
		return Description{}, fmt.Errorf("archetype: %s is not an object or collection", rv.Type())
	}
}

func describeStruct(rv reflect.Value, id Identity) Description {
	rt := rv.Type()
	desc := Description{Type: ObjectType(rt.Name()), ID: id}
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, options := parseAssetTag(field)
		if name == "-" {
			continue
		}
		member := MemberValue{
			Name:  name,
			Type:  declaredType(field.Type),
			Value: fieldValue(rv.Field(i)),
		}
		for _, option := range options {
			switch option {
			case "nooverride":
				member.NonOverridable = true
			case "ref":
				member.Reference = true
			}
		}
		desc.Members = append(desc.Members, member)
	}
	return desc
}

func parseAssetTag(field reflect.StructField) (string, []string) {
	tag, ok := field.Tag.Lookup("asset")
	if !ok {
		return strcase.LowerCamelCase(field.Name), nil
	}
	parts := strings.Split(tag, ",")
	name := strings.TrimSpace(parts[0])
	if name == "" {
		name = strcase.LowerCamelCase(field.Name)
	}
	return name, parts[1:]
}

// fieldValue returns the value stored for a struct field or element. Nil
// pointers, maps, slices and interfaces become nil. Non-nil pointers are kept
// so the container can reuse their nodes when re-wrapped.
func fieldValue(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		if rv.Elem().Kind() != reflect.Struct {
			return fieldValue(rv.Elem())
		}
		return rv.Interface()
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return fieldValue(rv.Elem())
	case reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return nil
		}
	}
	if !rv.CanInterface() {
		return nil
	}
	return normalizeScalar(rv.Interface())
}

func declaredType(rt reflect.Type) Type {
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	switch rt.Kind() {
	case reflect.String:
		return StringType
	case reflect.Bool:
		return BoolType
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return IntType
	case reflect.Float32, reflect.Float64:
		return FloatType
	case reflect.Struct:
		return ObjectType(rt.Name())
	case reflect.Slice, reflect.Array:
		return ListOf(declaredType(rt.Elem()))
	case reflect.Map:
		return MapOf(declaredType(rt.Key()), declaredType(rt.Elem()))
	default:
		return AnyType
	}
}

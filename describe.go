package archetype

// Description is the capability enumeration of one value: its type, identity
// and members or items. Member and item values are scalars, nil, nested
// values the Describer understands, or Descriptions.
type Description struct {
	Type    Type
	ID      Identity
	Members []MemberValue
	Items   []ItemValue
}

// MemberValue describes one object member. Members flagged NonOverridable
// always follow the base. Reference members point at a node owned elsewhere
// in the same container; their Value is a *Node, an Identity, an
// Identifiable or a pointer that was wrapped before.
type MemberValue struct {
	Name           string
	Type           Type
	Value          any
	NonOverridable bool
	Reference      bool
}

// ItemValue describes one collection item. A zero ID gets a fresh item id
// when the node is built. Key is only used by maps.
type ItemValue struct {
	ID    ItemID
	Key   any
	Value any
}

// Describer enumerates the members or items of a value.
type Describer interface {
	Describe(value any) (Description, error)
}

// DescriberFunc adapts a function to Describer.
type DescriberFunc func(value any) (Description, error)

// Describe implements Describer.
func (f DescriberFunc) Describe(value any) (Description, error) {
	return f(value)
}

// Describable lets a type enumerate itself without reflection.
type Describable interface {
	DescribeAsset() (Description, error)
}

func describeValue(describer Describer, value any) (Description, error) {
	switch typed := value.(type) {
	case Description:
		return typed, nil
	case *Description:
		if typed != nil {
			return *typed, nil
		}
	case Describable:
		return typed.DescribeAsset()
	}
	if describer == nil {
		describer = ReflectDescriber{}
	}
	return describer.Describe(value)
}

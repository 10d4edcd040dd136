package archetype

import (
	"fmt"

	"github.com/google/uuid"
)

// AssetID identifies a persisted asset.
type AssetID uuid.UUID

// Identity identifies one object node for the lifetime of its asset.
type Identity uuid.UUID

// ItemID identifies one collection item independently of its position.
// Items inherited from a base keep the base item id.
type ItemID uuid.UUID

// Identifiable lets values supply their own node identity.
type Identifiable interface {
	AssetIdentity() Identity
}

// NewAssetID returns a random asset id.
func NewAssetID() AssetID { return AssetID(uuid.New()) }

// NewIdentity returns a random node identity.
func NewIdentity() Identity { return Identity(uuid.New()) }

// NewItemID returns a random item id.
func NewItemID() ItemID { return ItemID(uuid.New()) }

// ParseAssetID parses the canonical textual form of an asset id.
func ParseAssetID(s string) (AssetID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return AssetID{}, fmt.Errorf("archetype: parse asset id %q: %w", s, err)
	}
	return AssetID(id), nil
}

// ParseIdentity parses the canonical textual form of a node identity.
func ParseIdentity(s string) (Identity, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Identity{}, fmt.Errorf("archetype: parse identity %q: %w", s, err)
	}
	return Identity(id), nil
}

// ParseItemID parses the canonical textual form of an item id.
func ParseItemID(s string) (ItemID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ItemID{}, fmt.Errorf("archetype: parse item id %q: %w", s, err)
	}
	return ItemID(id), nil
}

func (id AssetID) String() string  { return uuid.UUID(id).String() }
func (id Identity) String() string { return uuid.UUID(id).String() }
func (id ItemID) String() string   { return uuid.UUID(id).String() }

// IsZero reports whether id is the nil uuid.
func (id AssetID) IsZero() bool { return id == AssetID{} }

// IsZero reports whether id is the nil uuid.
func (id Identity) IsZero() bool { return id == Identity{} }

// IsZero reports whether id is the nil uuid.
func (id ItemID) IsZero() bool { return id == ItemID{} }

// collectionIdentity derives the identity of a collection node from the slot
// that owns it, so collection identities are reproducible across rebuilds.
func collectionIdentity(owner Identity, slot *Slot) Identity {
	var name string
	if slot.name != "" {
		name = "member:" + slot.name
	} else {
		name = "item:" + slot.item.String()
	}
	return Identity(uuid.NewSHA1(uuid.UUID(owner), []byte(name)))
}

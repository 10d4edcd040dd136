// Package archetype maintains live property graphs for assets that may be
// derived from a base asset.
//
// A derived asset mirrors the structure of its base. Any member, list item or
// map entry can be overridden locally, and everything that is not overridden
// keeps following the base when the base changes:
//
//	base, _ := archetype.NewGraph(baseID, Enemy{Name: "Enemy", Health: 100})
//	derived, _ := archetype.Derive(derivedID, base)
//	_ = derived.Write(derived.Root(), archetype.Name("health"), 50) // sealed
//	_ = base.Write(base.Root(), archetype.Name("health"), 200)
//	report := derived.Refresh() // health stays 50
//
// Override state is tracked per slot (None, New, Sealed) and keyed by stable
// node identities and collection item ids, so it survives a rebuild of the
// graph from a persisted document (see pkg/document).
//
// Graphs are single owner and perform no locking. A GraphContainer registers
// graphs by asset id, resolves bases and serializes refreshes over base
// chains.
package archetype

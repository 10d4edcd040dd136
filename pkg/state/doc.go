// Package state persists asset documents and resolves assets together with
// their base chain.
//
// Responsibilities:
//   - Store only loads and saves the encoded document of one asset.
//   - Resolver loads an asset and every base it derives from, registers the
//     graphs with an archetype.GraphContainer and refreshes them base first.
//   - The archetype package remains persistence agnostic; documents are
//     produced by pkg/document.
//
// Data flow:
//
//	Store -> document.Unmarshal -> Document.Load -> GraphContainer.Refresh
//
// Concurrency control:
//
//	Stores compute Meta.ETag as the BLAKE3 digest of the saved bytes. A Save
//	carrying an ETag only succeeds while the stored ETag still matches.
package state

package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	archetype "github.com/goliatone/go-archetype"
	"github.com/goliatone/go-archetype/pkg/document"
)

// Resolved is a loaded asset together with the metadata of its stored
// document and the report of its first refresh.
type Resolved struct {
	Graph  *archetype.Graph
	Meta   Meta
	Report *archetype.SyncReport
}

// Resolver loads assets from a Store into a GraphContainer, base chain
// first, and saves them back.
type Resolver struct {
	Store   Store
	Graphs  *archetype.GraphContainer
	Options []archetype.Option
}

// NewResolver wires store and graphs. opts are passed to every loaded graph.
func NewResolver(store Store, graphs *archetype.GraphContainer, opts ...archetype.Option) *Resolver {
	return &Resolver{Store: store, Graphs: graphs, Options: opts}
}

// Resolve loads asset id and refreshes it against its bases. Bases already
// registered in Graphs are reused; id itself is always reloaded from the
// store. A base missing from the store ends the chain and is reported through
// the refresh report with archetype.ErrUnresolvedBase.
func (r *Resolver) Resolve(ctx context.Context, id archetype.AssetID) (*Resolved, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	docs, meta, err := r.chain(ctx, id)
	if err != nil {
		return nil, err
	}

	if existing, ok := r.Graphs.Graph(id); ok {
		r.Graphs.Unregister(id)
		existing.Close()
	}

	var graph *archetype.Graph
	for i := len(docs) - 1; i >= 0; i-- {
		doc := docs[i]
		if doc.ID != id {
			if _, ok := r.Graphs.Graph(doc.ID); ok {
				continue
			}
		}
		g, err := doc.Load(r.Graphs, r.Options...)
		if err != nil {
			return nil, fmt.Errorf("state: resolve %s: %w", id, err)
		}
		graph = g
	}

	report, err := r.Graphs.Refresh(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("state: refresh %s: %w", id, err)
	}
	return &Resolved{Graph: graph, Meta: meta, Report: report}, nil
}

// chain reads the documents of id and its bases, id first. Bases already
// registered are not read again; the walk stops at the first of them.
func (r *Resolver) chain(ctx context.Context, id archetype.AssetID) ([]*document.Document, Meta, error) {
	var (
		docs    []*document.Document
		meta    Meta
		visited = map[archetype.AssetID]bool{}
	)
	current := id
	for !current.IsZero() {
		if visited[current] {
			return nil, Meta{}, fmt.Errorf("state: resolve %s: %w: asset %s appears twice", id, archetype.ErrBaseCycle, current)
		}
		visited[current] = true

		if current != id {
			if g, ok := r.Graphs.Graph(current); ok {
				if visited[g.BaseID()] {
					return nil, Meta{}, fmt.Errorf("state: resolve %s: %w: asset %s appears twice", id, archetype.ErrBaseCycle, g.BaseID())
				}
				break
			}
		}

		data, stored, ok, err := r.Store.Load(ctx, current)
		if err != nil {
			return nil, Meta{}, err
		}
		if !ok {
			if current == id {
				return nil, Meta{}, fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			break
		}
		doc, err := document.Unmarshal(data)
		if err != nil {
			return nil, Meta{}, fmt.Errorf("state: decode %s: %w", current, err)
		}
		if doc.ID != current {
			return nil, Meta{}, fmt.Errorf("state: document stored under %s declares id %s", current, doc.ID)
		}
		if current == id {
			meta = stored
		}
		docs = append(docs, doc)
		current = doc.Base
	}
	return docs, meta, nil
}

// Save encodes g and stores it. A non-empty meta.ETag makes the save
// conditional on the stored document being unchanged.
func (r *Resolver) Save(ctx context.Context, g *archetype.Graph, meta Meta) (Meta, error) {
	if r.Store == nil {
		return Meta{}, errors.New("state: store is required")
	}
	if g == nil {
		return Meta{}, errors.New("state: graph is required")
	}
	data, err := document.Marshal(g)
	if err != nil {
		return Meta{}, fmt.Errorf("state: encode %s: %w", g.ID(), err)
	}
	return r.Store.Save(ctx, g.ID(), data, meta)
}

// Mutate resolves id, applies fn and saves the result under the ETag the
// document was loaded with. expected, when set, must match the stored ETag
// before fn runs.
func (r *Resolver) Mutate(ctx context.Context, id archetype.AssetID, expected Meta, fn func(*archetype.Graph) error) (Meta, error) {
	if fn == nil {
		return Meta{}, errors.New("state: mutate function is required")
	}
	resolved, err := r.Resolve(ctx, id)
	if err != nil {
		return Meta{}, err
	}
	if expected.ETag != "" && expected.ETag != resolved.Meta.ETag {
		return Meta{}, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected.ETag, resolved.Meta.ETag)
	}
	if err := fn(resolved.Graph); err != nil {
		return Meta{}, err
	}
	next := mergeMeta(resolved.Meta, expected)
	next.ETag = resolved.Meta.ETag
	next.UpdatedAt = time.Time{}
	return r.Save(ctx, resolved.Graph, next)
}

func (r *Resolver) validate() error {
	if r == nil || r.Store == nil {
		return errors.New("state: store is required")
	}
	if r.Graphs == nil {
		return errors.New("state: graph container is required")
	}
	return nil
}

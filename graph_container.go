package archetype

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// GraphContainer registers graphs by asset id and resolves their bases.
// Refreshes issued through the container are serialized, and every graph is
// refreshed after its base chain, so no refresh reads a base that is being
// refreshed at the same time.
type GraphContainer struct {
	mu        sync.RWMutex
	refreshMu sync.Mutex
	graphs    map[AssetID]*Graph
	logger    *slog.Logger
	metrics   MetricsRecorder
}

// NewGraphContainer constructs an empty container. WithLogger and
// WithMetrics apply.
func NewGraphContainer(opts ...Option) *GraphContainer {
	cfg := applyOptions(opts)
	return &GraphContainer{
		graphs:  map[AssetID]*Graph{},
		logger:  cfg.loggerOrDiscard(),
		metrics: cfg.metrics,
	}
}

// Register adds g. Its base is resolved through the container from then on.
func (c *GraphContainer) Register(g *Graph) error {
	if g == nil {
		return fmt.Errorf("archetype: graph is required")
	}
	c.mu.Lock()
	if existing, ok := c.graphs[g.id]; ok && existing != g {
		c.mu.Unlock()
		return fmt.Errorf("archetype: asset %s already registered", g.id)
	}
	c.graphs[g.id] = g
	count := len(c.graphs)
	c.mu.Unlock()

	g.registry = c
	g.link.reset()
	if c.metrics != nil {
		c.metrics.RecordGraphs(count)
	}
	c.logger.Debug("archetype: graph registered", "asset", g.id.String(), "base", g.baseID.String())
	return nil
}

// Unregister removes the graph of id. Graphs deriving from it fall back to
// degraded mode until a graph with the same id is registered again.
func (c *GraphContainer) Unregister(id AssetID) {
	c.mu.Lock()
	g, ok := c.graphs[id]
	delete(c.graphs, id)
	count := len(c.graphs)
	c.mu.Unlock()
	if !ok {
		return
	}
	if g.registry == c {
		g.registry = nil
	}
	if c.metrics != nil {
		c.metrics.RecordGraphs(count)
	}
}

// Graph returns the registered graph of id.
func (c *GraphContainer) Graph(id AssetID) (*Graph, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.graphs[id]
	return g, ok
}

// ResolveBase returns the base graph of asset id.
func (c *GraphContainer) ResolveBase(id AssetID) (*Graph, bool) {
	g, ok := c.Graph(id)
	if !ok || g.baseID.IsZero() {
		return nil, false
	}
	return c.Graph(g.baseID)
}

// IDs returns the registered asset ids in a stable order.
func (c *GraphContainer) IDs() []AssetID {
	c.mu.RLock()
	ids := make([]AssetID, 0, len(c.graphs))
	for id := range c.graphs {
		ids = append(ids, id)
	}
	c.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Chain returns the base chain of id ordered from the root base down to id.
func (c *GraphContainer) Chain(id AssetID) ([]*Graph, error) {
	var chain []*Graph
	visited := map[AssetID]bool{}
	current := id
	for {
		if visited[current] {
			return nil, fmt.Errorf("%w: asset %s appears twice in the chain of %s", ErrBaseCycle, current, id)
		}
		visited[current] = true
		g, ok := c.Graph(current)
		if !ok {
			if current == id {
				return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
			}
			break
		}
		chain = append(chain, g)
		if g.baseID.IsZero() {
			break
		}
		current = g.baseID
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Refresh refreshes the base chain of id, starting with the root base, and
// returns the report of id itself. A missing base ends the chain: the
// graph deriving from it reports ErrUnresolvedBase and stays usable.
func (c *GraphContainer) Refresh(ctx context.Context, id AssetID) (*SyncReport, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	chain, err := c.Chain(id)
	if err != nil {
		return nil, err
	}
	var report *SyncReport
	for _, g := range chain {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report = g.Refresh()
	}
	return report, nil
}

// RefreshAll refreshes every registered graph, bases before the assets
// deriving from them. Graphs caught in a cycle are reported with
// ErrBaseCycle and skipped.
func (c *GraphContainer) RefreshAll(ctx context.Context) (map[AssetID]*SyncReport, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	reports := map[AssetID]*SyncReport{}
	done := map[AssetID]bool{}
	for _, id := range c.IDs() {
		chain, err := c.Chain(id)
		if err != nil {
			reports[id] = &SyncReport{Asset: id, Errors: []error{&GraphError{Op: "refresh", Err: err}}}
			continue
		}
		for _, g := range chain {
			if done[g.id] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return reports, err
			}
			reports[g.id] = g.Refresh()
			done[g.id] = true
		}
	}
	return reports, nil
}

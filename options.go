package archetype

import (
	"io"
	"log/slog"
	"time"
)

// Option configures graphs, node containers and graph containers.
type Option func(*config)

type config struct {
	logger       *slog.Logger
	describer    Describer
	metrics      MetricsRecorder
	container    *NodeContainer
	baseID       AssetID
	baseGraph    *Graph
	evaluator    Evaluator
	programCache ProgramCache
	functions    *FunctionRegistry
	evalLogger   EvaluatorLogger
	activity     activityConfig
}

// MetricsRecorder receives graph and refresh measurements. pkg/metrics
// provides a Prometheus implementation.
type MetricsRecorder interface {
	RecordChange(change string, fromBase bool)
	RecordRefresh(asset AssetID, duration time.Duration, report *SyncReport)
	RecordGraphs(count int)
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg config) loggerOrDiscard() *slog.Logger {
	if cfg.logger != nil {
		return cfg.logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WithLogger sets the structured logger. Logging is discarded by default.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithDescriber replaces the reflection based capability enumerator.
func WithDescriber(describer Describer) Option {
	return func(cfg *config) {
		cfg.describer = describer
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(cfg *config) {
		cfg.metrics = metrics
	}
}

// WithNodeContainer builds the graph inside an existing container.
func WithNodeContainer(container *NodeContainer) Option {
	return func(cfg *config) {
		cfg.container = container
	}
}

// WithBaseAsset declares the base asset by id. The base graph is looked up
// through the GraphContainer the graph is registered with.
func WithBaseAsset(id AssetID) Option {
	return func(cfg *config) {
		cfg.baseID = id
	}
}

// WithBaseGraph links the graph to base directly, without a GraphContainer.
func WithBaseGraph(base *Graph) Option {
	return func(cfg *config) {
		cfg.baseGraph = base
		if base != nil {
			cfg.baseID = base.id
		}
	}
}

// WithEvaluator configures the query evaluator used by Select and Evaluate.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = e
	}
}

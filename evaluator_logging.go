package archetype

import (
	"context"
	"log/slog"
	"time"
)

// EvaluatorLogEvent describes one Select or Evaluate call. Matched is the
// number of fields Select returned.
type EvaluatorLogEvent struct {
	Op       string
	Engine   string
	Expr     string
	Asset    string
	Matched  int
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

// SlogEvaluatorLogger logs successful calls at debug level and failures at
// warn level.
func SlogEvaluatorLogger(logger *slog.Logger) EvaluatorLogger {
	if logger == nil {
		return noopEvaluatorLogger{}
	}
	return EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		attrs := []slog.Attr{
			slog.String("op", event.Op),
			slog.String("engine", event.Engine),
			slog.String("expr", event.Expr),
			slog.String("asset", event.Asset),
			slog.Duration("duration", event.Duration),
		}
		if event.Op == "select" {
			attrs = append(attrs, slog.Int("matched", event.Matched))
		}
		level, msg := slog.LevelDebug, "archetype: evaluation"
		if event.Err != nil {
			level, msg = slog.LevelWarn, "archetype: evaluation failed"
			attrs = append(attrs, slog.Any("error", event.Err))
		}
		logger.LogAttrs(context.Background(), level, msg, attrs...)
	})
}

// WithEvaluatorLogger reports every Select and Evaluate call to logger.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *config) {
		if logger == nil {
			logger = noopEvaluatorLogger{}
		}
		cfg.evalLogger = logger
	}
}

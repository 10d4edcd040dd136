//go:build !js_eval

package archetype

// NewJSEvaluator returns nil: the JavaScript engine is only compiled in
// with the js_eval build tag.
func NewJSEvaluator(...EngineOption) Evaluator {
	return nil
}

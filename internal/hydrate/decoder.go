// Package hydrate decodes exported asset data into typed Go values.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Context identifies the asset the payload was exported from.
type Context struct {
	Asset string
	Base  string
	Type  string
}

// Error reports the stage of Decode that failed.
type Error struct {
	Asset string
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("hydrate: %s for asset %q: %v", e.Stage, e.Asset, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// PreHook rewrites the payload before decoding. Returning nil keeps the
// payload it was given.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook validates or adjusts the decoded value.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces JSON decoding.
type CustomDecoder[T any] func(Context, map[string]any) (T, error)

// DecoderOption configures a Decoder.
type DecoderOption[T any] func(*Decoder[T])

// Decoder turns exported payloads into T. Members match struct fields the
// way encoding/json matches them, case-insensitively.
type Decoder[T any] struct {
	pre       []PreHook
	post      []PostHook[T]
	custom    CustomDecoder[T]
	strict    bool
	useNumber bool
}

func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.pre = append(d.pre, hook)
		}
	}
}

func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.post = append(d.post, hook)
		}
	}
}

// WithDisallowUnknownFields rejects members T does not declare.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) { d.strict = true }
}

// WithUseNumber decodes numbers into any-typed fields as json.Number.
func WithUseNumber[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) { d.useNumber = true }
}

func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) { d.custom = decoder }
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode runs the pre hooks on a copy of payload, decodes it and runs the
// post hooks. payload itself is never modified.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var zero T
	if payload == nil {
		return zero, &Error{Asset: ctx.Asset, Stage: "payload", Err: fmt.Errorf("payload is nil")}
	}
	current, _ := deepCopy(payload).(map[string]any)
	for _, hook := range d.pre {
		next, err := hook(ctx, current)
		if err != nil {
			return zero, &Error{Asset: ctx.Asset, Stage: "pre-hook", Err: err}
		}
		if next != nil {
			current = next
		}
	}

	result, err := d.decode(ctx, current)
	if err != nil {
		return zero, err
	}
	for _, hook := range d.post {
		if err := hook(ctx, &result); err != nil {
			return zero, &Error{Asset: ctx.Asset, Stage: "post-hook", Err: err}
		}
	}
	return result, nil
}

func (d *Decoder[T]) decode(ctx Context, payload map[string]any) (T, error) {
	var result T
	if d.custom != nil {
		out, err := d.custom(ctx, payload)
		if err != nil {
			return result, &Error{Asset: ctx.Asset, Stage: "custom decoder", Err: err}
		}
		return out, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return result, &Error{Asset: ctx.Asset, Stage: "marshal", Err: err}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if d.strict {
		dec.DisallowUnknownFields()
	}
	if d.useNumber {
		dec.UseNumber()
	}
	if err := dec.Decode(&result); err != nil {
		return result, &Error{Asset: ctx.Asset, Stage: "decode", Err: err}
	}
	return result, nil
}

// deepCopy copies the maps and slices of exported data. Scalars are shared.
func deepCopy(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, value := range typed {
			out[key] = deepCopy(value)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, value := range typed {
			out[i] = deepCopy(value)
		}
		return out
	default:
		return v
	}
}

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrUnknownOutput is returned when no callback targets the requested widget
	ErrUnknownOutput = errors.New("unknown output")
	// ErrBadInput is returned when an input value is missing or unparsable
	ErrBadInput = errors.New("bad input")
)

// Input names one property of a widget that feeds a callback
type Input struct {
	ID       string `json:"id"`
	Property string `json:"property"`
}

// Key is the "id.property" form used to look up values
func (i Input) Key() string {
	return i.ID + "." + i.Property
}

// Renderer is anything a callback can place into its output widget
type Renderer interface {
	Render(w io.Writer) error
}

// Request carries the input values of one dispatch
type Request struct {
	SessionID string
	Values    map[string]string
}

// Value returns the value supplied for id.property
func (r *Request) Value(id, property string) string {
	return r.Values[Input{ID: id, Property: property}.Key()]
}

// HandlerFunc computes the new content of an output widget
type HandlerFunc func(ctx context.Context, req *Request) (Renderer, error)

// Callback binds an output widget to the inputs that recompute it
type Callback struct {
	Output  string      `json:"output"`
	Inputs  []Input     `json:"inputs"`
	Handler HandlerFunc `json:"-"`
}

// Registry is the dispatch table of callbacks. It is filled once at startup
// and only read afterwards, so Dispatch is safe for concurrent use.
type Registry struct {
	order     []string
	callbacks map[string]Callback
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{callbacks: make(map[string]Callback)}
}

// Register adds a callback. Each output may be targeted by one callback only.
func (r *Registry) Register(cb Callback) error {
	if cb.Output == "" {
		return errors.New("callback output is required")
	}
	if cb.Handler == nil {
		return fmt.Errorf("callback %s: handler is required", cb.Output)
	}
	if _, dup := r.callbacks[cb.Output]; dup {
		return fmt.Errorf("callback %s: output already registered", cb.Output)
	}
	r.order = append(r.order, cb.Output)
	r.callbacks[cb.Output] = cb
	return nil
}

// Dependencies returns the callbacks in registration order
func (r *Registry) Dependencies() []Callback {
	out := make([]Callback, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.callbacks[id])
	}
	return out
}

// Dispatch runs the callback registered for output
func (r *Registry) Dispatch(ctx context.Context, output string, req *Request) (Renderer, error) {
	cb, ok := r.callbacks[output]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownOutput, output)
	}
	for _, in := range cb.Inputs {
		if _, ok := req.Values[in.Key()]; !ok {
			return nil, fmt.Errorf("%w: %s not supplied", ErrBadInput, in.Key())
		}
	}
	return cb.Handler(ctx, req)
}

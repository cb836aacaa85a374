package trace

import "context"

type tracerKey struct{}

type parentKey struct{}

// WithTracer returns ctx carrying t. Decoding code below the CLI never
// holds a tracer directly; it reads it back with FromContext.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, tracerKey{}, t)
}

// FromContext returns the tracer in ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx != nil {
		if t, ok := ctx.Value(tracerKey{}).(Tracer); ok {
			return t
		}
	}
	return Nop
}

// Parent is the innermost open span a context belongs to: the batch for a
// sentence decode, the sentence for its beam expansions.
type Parent struct {
	ID    uint64
	Scope Scope
}

// ParentOf returns the enclosing span recorded by Start; the zero Parent
// means events are roots.
func ParentOf(ctx context.Context) Parent {
	if ctx != nil {
		if p, ok := ctx.Value(parentKey{}).(Parent); ok {
			return p
		}
	}
	return Parent{}
}

func withParent(ctx context.Context, p Parent) context.Context {
	return context.WithValue(ctx, parentKey{}, p)
}

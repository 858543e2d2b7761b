package advisor

import (
	"cmp"
	"context"
	"slices"

	"github.com/pkg/errors"
)

// CallFunc is the terminal operation of a single-shot call.
type CallFunc func(ctx context.Context, req *Request) (*Result, error)

// StreamFunc is the terminal operation of a streamed call.
type StreamFunc func(ctx context.Context, req *Request) Stream

// Pipeline is an immutable, sorted advisor chain. It is safe for concurrent
// use as long as its advisors keep no request-scoped state.
type Pipeline struct {
	advisors []Advisor
}

// NewPipeline sorts advisors by order, breaking ties by name. Registration
// order never affects execution order. Names must be unique.
func NewPipeline(advisors ...Advisor) (*Pipeline, error) {
	sorted := slices.Clone(advisors)
	seen := make(map[string]bool, len(sorted))
	for _, a := range sorted {
		if a == nil {
			return nil, errors.New("advisor: nil advisor")
		}
		if seen[a.Name()] {
			return nil, errors.Errorf("advisor: duplicate advisor name %q", a.Name())
		}
		seen[a.Name()] = true
	}
	slices.SortStableFunc(sorted, func(a, b Advisor) int {
		if c := cmp.Compare(a.Order(), b.Order()); c != 0 {
			return c
		}
		return cmp.Compare(a.Name(), b.Name())
	})
	return &Pipeline{advisors: sorted}, nil
}

// Advisors returns the chain in execution order.
func (p *Pipeline) Advisors() []Advisor {
	return slices.Clone(p.advisors)
}

// Execute runs the chain around a single-shot terminal.
func (p *Pipeline) Execute(ctx context.Context, req *Request, terminal CallFunc) (*Result, error) {
	req = prepare(req, false)
	last := func(ctx context.Context, req *Request) Stream {
		return func(yield func(*Result, error) bool) {
			r, err := terminal(ctx, req)
			if err != nil {
				yield(nil, err)
				return
			}
			yield(r, nil)
		}
	}
	result, err := Collect(p.next(0, last)(ctx, req))
	if err != nil {
		return nil, Classify(ctx, err)
	}
	return result, nil
}

// ExecuteStream runs the chain around a streaming terminal. Nothing happens
// until the returned stream is ranged over, and every range starts a new
// run. Stopping early cancels the context handed to the terminal.
func (p *Pipeline) ExecuteStream(ctx context.Context, req *Request, terminal StreamFunc) Stream {
	return func(yield func(*Result, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		last := func(ctx context.Context, req *Request) Stream {
			return terminal(ctx, req)
		}
		for r, err := range p.next(0, last)(ctx, prepare(req, true)) {
			if err != nil {
				yield(nil, Classify(ctx, err))
				return
			}
			if err := ctx.Err(); err != nil {
				yield(nil, Classify(ctx, err))
				return
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

// next returns the handler that runs the chain from position i onwards.
func (p *Pipeline) next(i int, last Handler) Handler {
	return func(ctx context.Context, req *Request) Stream {
		if err := ctx.Err(); err != nil {
			return Fail(err)
		}
		j := i
		for j < len(p.advisors) && !CapabilityOf(p.advisors[j]).Supports(req.Streaming) {
			j++
		}
		if j == len(p.advisors) {
			return last(ctx, req)
		}
		return p.advisors[j].Advise(ctx, req, p.next(j+1, last))
	}
}

func prepare(req *Request, streaming bool) *Request {
	c := *req
	c.Streaming = streaming
	if c.Params == nil {
		c.Params = NewParams()
	}
	return &c
}

// Package advisor runs an ordered chain of interceptors around a chat model
// call. The same chain serves single-shot and streamed calls: every advisor
// sees a lazy Stream, and a single-shot call is a stream with one result.
package advisor

import (
	"context"
	"iter"
)

// Capability tells the pipeline which call paths an advisor takes part in.
type Capability int

const (
	CapabilityBoth Capability = iota
	CapabilityCall
	CapabilityStream
)

func (c Capability) String() string {
	switch c {
	case CapabilityCall:
		return "call"
	case CapabilityStream:
		return "stream"
	default:
		return "both"
	}
}

// Supports reports whether the capability covers the given path.
func (c Capability) Supports(streaming bool) bool {
	switch c {
	case CapabilityCall:
		return !streaming
	case CapabilityStream:
		return streaming
	default:
		return true
	}
}

// Usage holds token counters reported by the model. Any field may be zero
// when the provider does not report it.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Request is the value threaded through the chain. Advisors never mutate a
// Request in place; they derive a copy with the With* helpers. Params is
// shared by every copy made during one invocation.
type Request struct {
	UserText       string
	SystemText     string
	ConversationID string
	Streaming      bool
	Params         *Params
}

// WithSystemText returns a copy of r carrying a new system prompt.
func (r *Request) WithSystemText(text string) *Request {
	c := *r
	c.SystemText = text
	return &c
}

// WithUserText returns a copy of r carrying a new user message.
func (r *Request) WithUserText(text string) *Request {
	c := *r
	c.UserText = text
	return &c
}

// Result is one model answer, or one fragment of a streamed answer.
type Result struct {
	Text           string
	Usage          *Usage
	ShortCircuited bool
}

// Stream is a lazy sequence of results. A stream ends either normally or
// with a single (nil, err) element.
type Stream = iter.Seq2[*Result, error]

// Handler invokes the remainder of the chain.
type Handler func(ctx context.Context, req *Request) Stream

// Advisor intercepts a request on its way to the model and the results on
// their way back. Lower Order runs earlier on the way in and later on the
// way out. Advise may call next with req or a derived copy, wrap the
// returned stream, or return its own stream without calling next.
//
// Advisors are shared by concurrent requests. Request-scoped state belongs
// in req.Params, never in advisor fields.
type Advisor interface {
	Name() string
	Order() int
	Advise(ctx context.Context, req *Request, next Handler) Stream
}

// CapabilityAdvisor is implemented by advisors that only take part in one
// call path. Advisors without it run on both.
type CapabilityAdvisor interface {
	Advisor
	Capability() Capability
}

// CapabilityOf returns the capability tag of a.
func CapabilityOf(a Advisor) Capability {
	if c, ok := a.(CapabilityAdvisor); ok {
		return c.Capability()
	}
	return CapabilityBoth
}

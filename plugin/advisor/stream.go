package advisor

import "strings"

// Just returns a stream with one result. Advisors use it to short-circuit.
func Just(r *Result) Stream {
	return func(yield func(*Result, error) bool) {
		yield(r, nil)
	}
}

// Fail returns a stream that only carries err.
func Fail(err error) Stream {
	return func(yield func(*Result, error) bool) {
		yield(nil, err)
	}
}

// Observe calls fn for every result s produces, before passing it on.
func Observe(s Stream, fn func(*Result)) Stream {
	return func(yield func(*Result, error) bool) {
		for r, err := range s {
			if err == nil && r != nil {
				fn(r)
			}
			if !yield(r, err) {
				return
			}
		}
	}
}

// Collect drains s into a single result. Fragment texts are concatenated
// and usage counters summed.
func Collect(s Stream) (*Result, error) {
	var (
		text  strings.Builder
		out   = &Result{}
		count int
	)
	for r, err := range s {
		if err != nil {
			return nil, err
		}
		if r == nil {
			continue
		}
		count++
		if count == 1 {
			*out = *r
			text.WriteString(r.Text)
			continue
		}
		text.WriteString(r.Text)
		out.ShortCircuited = out.ShortCircuited || r.ShortCircuited
		out.Usage = addUsage(out.Usage, r.Usage)
	}
	out.Text = text.String()
	return out, nil
}

func addUsage(a, b *Usage) *Usage {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return &Usage{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
	}
}

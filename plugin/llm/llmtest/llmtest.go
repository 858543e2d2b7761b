// Package llmtest provides a scripted langchaingo model for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// Reply is one scripted model answer.
type Reply struct {
	Text      string
	ToolCalls []llms.ToolCall
	Err       error
	// Delay is waited before answering, honoring context cancellation.
	Delay time.Duration
}

// Model answers from Replies in order, repeating the last one. When Respond
// is set it is used instead.
type Model struct {
	Replies []Reply
	Respond func(messages []llms.MessageContent) Reply

	mu    sync.Mutex
	calls [][]llms.MessageContent
	// Fragments counts streamed chunks delivered to the caller.
	fragments int
}

var _ llms.Model = (*Model)(nil)

// NewModel returns a model that answers every call with text.
func NewModel(text string) *Model {
	return &Model{Replies: []Reply{{Text: text}}}
}

func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}

	m.mu.Lock()
	idx := len(m.calls)
	m.calls = append(m.calls, messages)
	m.mu.Unlock()

	reply := m.reply(idx, messages)
	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if reply.Err != nil {
		return nil, reply.Err
	}

	if opts.StreamingFunc != nil && len(reply.ToolCalls) == 0 {
		for _, chunk := range strings.SplitAfter(reply.Text, " ") {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := opts.StreamingFunc(ctx, []byte(chunk)); err != nil {
				return nil, err
			}
			m.mu.Lock()
			m.fragments++
			m.mu.Unlock()
		}
	}

	completion := len(strings.Fields(reply.Text))
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content:   reply.Text,
			ToolCalls: reply.ToolCalls,
			GenerationInfo: map[string]any{
				"PromptTokens":     10,
				"CompletionTokens": completion,
				"TotalTokens":      10 + completion,
			},
		}},
	}, nil
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *Model) reply(idx int, messages []llms.MessageContent) Reply {
	if m.Respond != nil {
		return m.Respond(messages)
	}
	if len(m.Replies) == 0 {
		return Reply{Text: "ok"}
	}
	if idx >= len(m.Replies) {
		idx = len(m.Replies) - 1
	}
	return m.Replies[idx]
}

// Calls returns the message lists of every call so far.
func (m *Model) Calls() [][]llms.MessageContent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]llms.MessageContent(nil), m.calls...)
}

// Fragments returns how many streamed chunks were accepted by the caller.
func (m *Model) Fragments() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fragments
}

// TextOf concatenates the text parts of a message.
func TextOf(mc llms.MessageContent) string {
	var sb strings.Builder
	for _, p := range mc.Parts {
		if t, ok := p.(llms.TextContent); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

// ToolCall builds a function tool call.
func ToolCall(id, name, arguments string) llms.ToolCall {
	return llms.ToolCall{
		ID:   id,
		Type: "function",
		FunctionCall: &llms.FunctionCall{
			Name:      name,
			Arguments: arguments,
		},
	}
}

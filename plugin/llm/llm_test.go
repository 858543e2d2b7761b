package llm_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/goleak"

	"github.com/usememos/supportbot/plugin/llm"
	"github.com/usememos/supportbot/plugin/llm/llmtest"
)

type echoTool struct {
	inputs []string
}

func (t *echoTool) Name() string        { return "echo" }
func (t *echoTool) Description() string { return "Echo the input." }
func (t *echoTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (t *echoTool) Call(_ context.Context, input string) (string, error) {
	t.inputs = append(t.inputs, input)
	return "echoed " + input, nil
}

func TestInvokeBuildsMessages(t *testing.T) {
	model := llmtest.NewModel("hello there")
	client := llm.NewClient(model)

	resp, err := client.Invoke(context.Background(), &llm.Request{
		System:  "be nice",
		History: []llm.Turn{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
		User:    "how are you",
	})
	require.NoError(t, err)
	require.Equal(t, "hello there", resp.Text)
	require.NotNil(t, resp.Usage)
	require.Equal(t, 10, resp.Usage.PromptTokens)
	require.Equal(t, 2, resp.Usage.CompletionTokens)
	require.Equal(t, 12, resp.Usage.TotalTokens)

	calls := model.Calls()
	require.Len(t, calls, 1)
	msgs := calls[0]
	require.Len(t, msgs, 4)
	require.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	require.Equal(t, "be nice", llmtest.TextOf(msgs[0]))
	require.Equal(t, llms.ChatMessageTypeHuman, msgs[1].Role)
	require.Equal(t, llms.ChatMessageTypeAI, msgs[2].Role)
	require.Equal(t, "how are you", llmtest.TextOf(msgs[3]))
}

func TestInvokeRunsTools(t *testing.T) {
	model := &llmtest.Model{Replies: []llmtest.Reply{
		{ToolCalls: []llms.ToolCall{
			llmtest.ToolCall("call-1", "echo", `{"x":1}`),
			llmtest.ToolCall("call-1", "echo", `{"x":1}`),
		}},
		{Text: "done"},
	}}
	tool := &echoTool{}
	client := llm.NewClient(model)

	resp, err := client.Invoke(context.Background(), &llm.Request{User: "go", Tools: []llm.Tool{tool}})
	require.NoError(t, err)
	require.Equal(t, "done", resp.Text)
	require.Equal(t, []string{`{"x":1}`}, tool.inputs)
	// Usage of both rounds is summed.
	require.Equal(t, 20, resp.Usage.PromptTokens)

	calls := model.Calls()
	require.Len(t, calls, 2)
	last := calls[1][len(calls[1])-1]
	require.Equal(t, llms.ChatMessageTypeTool, last.Role)
	toolResp, ok := last.Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	require.Equal(t, "echoed {\"x\":1}", toolResp.Content)
}

func TestInvokeStopsAfterMaxRounds(t *testing.T) {
	model := &llmtest.Model{Replies: []llmtest.Reply{
		{ToolCalls: []llms.ToolCall{llmtest.ToolCall("call", "missing", "{}")}},
	}}
	_, err := llm.NewClient(model).Invoke(context.Background(), &llm.Request{User: "loop", Tools: []llm.Tool{&echoTool{}}})
	require.ErrorIs(t, err, llm.ErrTooManyRounds)
}

func TestInvokeModelError(t *testing.T) {
	boom := errors.New("boom")
	model := &llmtest.Model{Replies: []llmtest.Reply{{Err: boom}}}
	_, err := llm.NewClient(model).Invoke(context.Background(), &llm.Request{User: "x"})
	require.ErrorIs(t, err, boom)
}

func TestStreamFragments(t *testing.T) {
	model := llmtest.NewModel("one two three")
	client := llm.NewClient(model)

	var texts []string
	var sawUsage bool
	for r, err := range client.Stream(context.Background(), &llm.Request{User: "count"}) {
		require.NoError(t, err)
		if r.Text != "" {
			texts = append(texts, r.Text)
		}
		sawUsage = sawUsage || r.Usage != nil
	}
	require.Equal(t, []string{"one ", "two ", "three"}, texts)
	require.True(t, sawUsage)
}

func TestStreamIsLazy(t *testing.T) {
	model := llmtest.NewModel("lazy")
	stream := llm.NewClient(model).Stream(context.Background(), &llm.Request{User: "x"})
	require.Empty(t, model.Calls())
	for range stream {
	}
	require.Len(t, model.Calls(), 1)
}

func TestStreamStopsOnBreak(t *testing.T) {
	defer goleak.VerifyNone(t)

	model := llmtest.NewModel(strings.Repeat("word ", 50))
	got := 0
	for _, err := range llm.NewClient(model).Stream(context.Background(), &llm.Request{User: "x"}) {
		require.NoError(t, err)
		got++
		if got == 3 {
			break
		}
	}
	require.Equal(t, 3, got)
	// The third chunk was handed over before the consumer stopped.
	require.Equal(t, 2, model.Fragments())
}

func TestStreamWithToolsReplaysAnswer(t *testing.T) {
	model := &llmtest.Model{Replies: []llmtest.Reply{
		{ToolCalls: []llms.ToolCall{llmtest.ToolCall("c", "echo", "{}")}},
		{Text: "ticket created"},
	}}
	var sb strings.Builder
	for r, err := range llm.NewClient(model).Stream(context.Background(), &llm.Request{User: "x", Tools: []llm.Tool{&echoTool{}}}) {
		require.NoError(t, err)
		sb.WriteString(r.Text)
	}
	require.Equal(t, "ticket created", sb.String())
}

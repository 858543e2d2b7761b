// Package llm drives a chat model through langchaingo, including the
// function-calling loop for tools the model may invoke.
package llm

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/tools"

	"github.com/usememos/supportbot/plugin/advisor"
)

// maxAgentRounds caps the number of tool-use iterations per request.
const maxAgentRounds = 6

// ErrTooManyRounds is returned when the model keeps calling tools.
var ErrTooManyRounds = errors.New("model exceeded tool rounds")

// Tool is a langchaingo tool that also describes its JSON arguments.
type Tool interface {
	tools.Tool
	Parameters() map[string]any
}

// Turn is one prior message of the conversation.
type Turn struct {
	Role    string
	Content string
}

type Request struct {
	System  string
	History []Turn
	User    string
	Tools   []Tool
}

type Response struct {
	Text  string
	Usage *advisor.Usage
}

// Client wraps a langchaingo model.
type Client struct {
	model llms.Model
}

func NewClient(model llms.Model) *Client {
	return &Client{model: model}
}

// NewOpenRouter returns a client for an OpenAI-compatible endpoint such as
// OpenRouter.
func NewOpenRouter(baseURL, apiKey, model string) (*Client, error) {
	m, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(apiKey),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create openrouter client")
	}
	return NewClient(m), nil
}

// Invoke runs the request to completion and returns the final answer.
func (c *Client) Invoke(ctx context.Context, req *Request) (*Response, error) {
	var text string
	var usage *advisor.Usage
	for fragment, err := range c.run(ctx, req, false) {
		if err != nil {
			return nil, err
		}
		text += fragment.Text
		usage = addUsage(usage, fragment.Usage)
	}
	return &Response{Text: text, Usage: usage}, nil
}

// Stream returns the answer as fragments in the order the model produced
// them. The model is not called until the sequence is ranged over, and
// breaking out of the loop stops the model stream.
//
// Providers stream tool-call deltas through the same callback as text, so
// with tools attached the rounds run unstreamed and the final answer is
// replayed word by word.
func (c *Client) Stream(ctx context.Context, req *Request) iter.Seq2[*Response, error] {
	if len(req.Tools) == 0 {
		return c.run(ctx, req, true)
	}
	return func(yield func(*Response, error) bool) {
		for r, err := range c.run(ctx, req, false) {
			if err != nil {
				yield(nil, err)
				return
			}
			if r.Text == "" {
				if !yield(r, nil) {
					return
				}
				continue
			}
			words := strings.SplitAfter(r.Text, " ")
			for i, w := range words {
				fragment := &Response{Text: w}
				if i == len(words)-1 {
					fragment.Usage = r.Usage
				}
				if !yield(fragment, nil) {
					return
				}
			}
		}
	}
}

var errStopped = errors.New("consumer stopped")

func (c *Client) run(ctx context.Context, req *Request, streaming bool) iter.Seq2[*Response, error] {
	return func(yield func(*Response, error) bool) {
		messages := buildMessages(req)
		registry := map[string]Tool{}
		var opts []llms.CallOption
		if len(req.Tools) > 0 {
			defs := make([]llms.Tool, 0, len(req.Tools))
			for _, t := range req.Tools {
				registry[t.Name()] = t
				defs = append(defs, buildToolDef(t))
			}
			opts = append(opts, llms.WithTools(defs))
		}

		for round := 0; round < maxAgentRounds; round++ {
			stopped := false
			callOpts := opts
			if streaming {
				callOpts = append(callOpts[:len(callOpts):len(callOpts)], llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
					if len(chunk) == 0 {
						return nil
					}
					if !yield(&Response{Text: string(chunk)}, nil) {
						stopped = true
						return errStopped
					}
					return nil
				}))
			}

			resp, err := c.model.GenerateContent(ctx, messages, callOpts...)
			if stopped {
				return
			}
			if err != nil {
				yield(nil, errors.Wrap(err, "model call failed"))
				return
			}
			if len(resp.Choices) == 0 {
				yield(nil, errors.New("empty response from model"))
				return
			}
			choice := resp.Choices[0]
			usage := usageOf(choice.GenerationInfo)

			// No tool calls means this is the final text answer.
			if len(choice.ToolCalls) == 0 {
				slog.Info("[AGENT FINISH]", "rounds", round+1, "length", len(choice.Content))
				if streaming {
					// Text already went out through the streaming func.
					if usage != nil {
						yield(&Response{Usage: usage}, nil)
					}
					return
				}
				yield(&Response{Text: choice.Content, Usage: usage}, nil)
				return
			}
			if usage != nil && !yield(&Response{Usage: usage}, nil) {
				return
			}

			messages = append(messages, assistantToolCallMessage(choice))
			// Some models repeat the same tool_call_id in one response.
			seenCallIDs := make(map[string]bool)
			for _, tc := range choice.ToolCalls {
				if seenCallIDs[tc.ID] || tc.FunctionCall == nil {
					continue
				}
				seenCallIDs[tc.ID] = true
				name, input := tc.FunctionCall.Name, tc.FunctionCall.Arguments
				slog.Info("[AGENT TOOL CALL]", "tool", name, "input", input)

				var result string
				if t, ok := registry[name]; ok {
					result, err = t.Call(ctx, input)
					if err != nil {
						result = "Error: " + err.Error()
					}
				} else {
					result = "Unknown tool: " + name
				}
				slog.Info("[AGENT TOOL RESULT]", "tool", name, "result", result)

				messages = append(messages, llms.MessageContent{
					Role: llms.ChatMessageTypeTool,
					Parts: []llms.ContentPart{llms.ToolCallResponse{
						ToolCallID: tc.ID,
						Name:       name,
						Content:    result,
					}},
				})
			}
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
		}
		yield(nil, ErrTooManyRounds)
	}
}

func buildMessages(req *Request) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	for _, t := range req.History {
		switch t.Role {
		case "user":
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, t.Content))
		case "assistant":
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, t.Content))
		case "system":
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, t.Content))
		}
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.User))
	return messages
}

func assistantToolCallMessage(choice *llms.ContentChoice) llms.MessageContent {
	msg := llms.MessageContent{Role: llms.ChatMessageTypeAI}
	if choice.Content != "" {
		msg.Parts = append(msg.Parts, llms.TextContent{Text: choice.Content})
	}
	for _, tc := range choice.ToolCalls {
		msg.Parts = append(msg.Parts, tc)
	}
	return msg
}

// buildToolDef constructs an OpenAI-compatible tool definition.
func buildToolDef(t Tool) llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}

func usageOf(info map[string]any) *advisor.Usage {
	if info == nil {
		return nil
	}
	u := &advisor.Usage{
		PromptTokens:     intOf(info["PromptTokens"]),
		CompletionTokens: intOf(info["CompletionTokens"]),
		TotalTokens:      intOf(info["TotalTokens"]),
	}
	if *u == (advisor.Usage{}) {
		return nil
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

func intOf(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	default:
		return 0
	}
}

func addUsage(a, b *advisor.Usage) *advisor.Usage {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return &advisor.Usage{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
	}
}

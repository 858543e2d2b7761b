package supportbot

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/usememos/supportbot/internal/profile"
	"github.com/usememos/supportbot/plugin/advisor"
	"github.com/usememos/supportbot/plugin/chatmemory"
	"github.com/usememos/supportbot/plugin/llm"
	"github.com/usememos/supportbot/store"
)

const anonymousConversation = "anonymous"

type ChatRequest struct {
	Message    string `json:"message"`
	CustomerID string `json:"customerId,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
}

type ChatResponse struct {
	Message        string         `json:"message"`
	ConversationID string         `json:"conversationId"`
	Sentiment      Sentiment      `json:"sentiment,omitempty"`
	TicketCreated  bool           `json:"ticketCreated"`
	TicketUID      string         `json:"ticketId,omitempty"`
	EscalationNote string         `json:"escalationNote,omitempty"`
	Usage          *advisor.Usage `json:"usage,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Service is the entry point of every support chat exchange.
type Service struct {
	profile   *profile.Profile
	store     *store.Store
	knowledge *KnowledgeBase
	desk      *TicketDesk
	memory    *chatmemory.Window
	client    *llm.Client
	pipeline  *advisor.Pipeline
}

func NewService(profile *profile.Profile, store *store.Store, knowledge *KnowledgeBase, memory *chatmemory.Window, client *llm.Client) (*Service, error) {
	s := &Service{
		profile:   profile,
		store:     store,
		knowledge: knowledge,
		desk:      NewTicketDesk(store),
		memory:    memory,
		client:    client,
	}
	advisors := []advisor.Advisor{
		NewSafetyAdvisor(),
		NewCustomerContextAdvisor(store),
		NewSentimentAdvisor(),
		NewResponseFormattingAdvisor(),
	}
	// Rule and tool escalation would both open a ticket for one message.
	if !s.toolMode() {
		advisors = append(advisors, NewEscalationAdvisor(s.desk))
	}
	pipeline, err := advisor.NewPipeline(advisors...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build advisor pipeline")
	}
	s.pipeline = pipeline
	return s, nil
}

func (s *Service) Desk() *TicketDesk {
	return s.desk
}

func (s *Service) Knowledge() *KnowledgeBase {
	return s.knowledge
}

// Advisors returns the configured chain in execution order.
func (s *Service) Advisors() []advisor.Advisor {
	return s.pipeline.Advisors()
}

// Chat runs one exchange and returns the complete answer.
func (s *Service) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.Wrap(ErrValidation, "message cannot be empty")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	areq, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	result, err := s.pipeline.Execute(ctx, areq, s.callModel)
	if err != nil {
		slog.Error("[SUPPORT CHAT] exchange failed", "conversation", areq.ConversationID, "error", err)
		return nil, err
	}
	resp := s.buildResponse(areq, result.Text, result.Usage)
	s.recordSession(ctx, areq, resp)
	return resp, nil
}

// ChatStream is a streamed exchange. Fragments runs the exchange each time
// it is ranged over; the accessors describe the latest complete run.
type ChatStream struct {
	ConversationID string
	Fragments      advisor.Stream

	mu       sync.Mutex
	response *ChatResponse
}

// Response returns the assembled answer once Fragments was fully drained
// without error, or nil.
func (cs *ChatStream) Response() *ChatResponse {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.response
}

func (cs *ChatStream) Sentiment() Sentiment {
	if r := cs.Response(); r != nil {
		return r.Sentiment
	}
	return ""
}

func (cs *ChatStream) TicketUID() string {
	if r := cs.Response(); r != nil {
		return r.TicketUID
	}
	return ""
}

// ChatStream validates req and returns the lazy exchange. Nothing is
// retrieved or sent to the model until Fragments is ranged over.
func (s *Service) ChatStream(ctx context.Context, req *ChatRequest) (*ChatStream, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.Wrap(ErrValidation, "message cannot be empty")
	}
	cs := &ChatStream{ConversationID: resolveConversationID(req)}
	cs.Fragments = func(yield func(*advisor.Result, error) bool) {
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()

		areq, err := s.prepare(ctx, req)
		if err != nil {
			yield(nil, err)
			return
		}
		var (
			text  strings.Builder
			usage *advisor.Usage
		)
		for r, err := range s.pipeline.ExecuteStream(ctx, areq, s.streamModel) {
			if err != nil {
				slog.Error("[SUPPORT CHAT] stream failed", "conversation", areq.ConversationID, "error", err)
				yield(nil, err)
				return
			}
			text.WriteString(r.Text)
			usage = sumUsage(usage, r.Usage)
			if !yield(r, nil) {
				return
			}
		}
		resp := s.buildResponse(areq, text.String(), usage)
		s.recordSession(ctx, areq, resp)
		cs.mu.Lock()
		cs.response = resp
		cs.mu.Unlock()
	}
	return cs, nil
}

// EndSession clears the conversation's memory window and marks its session
// ended.
func (s *Service) EndSession(ctx context.Context, conversationID string) error {
	if err := s.memory.Clear(ctx, conversationID); err != nil {
		return errors.Wrap(err, "failed to clear conversation memory")
	}
	if err := s.store.EndConversationSession(ctx, conversationID); err != nil {
		return errors.Wrap(err, "failed to end conversation session")
	}
	slog.Info("[SUPPORT CHAT] session ended", "conversation", conversationID)
	return nil
}

// History returns the memory window of a conversation, oldest first.
func (s *Service) History(ctx context.Context, conversationID string) ([]chatmemory.Entry, error) {
	return s.memory.Load(ctx, conversationID)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.profile.RequestTimeout > 0 {
		return context.WithTimeout(ctx, s.profile.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// prepare fetches the knowledge context and builds the request handed to
// the advisor chain.
func (s *Service) prepare(ctx context.Context, req *ChatRequest) (*advisor.Request, error) {
	conversationID := resolveConversationID(req)
	knowledge, err := s.knowledge.Context(ctx, req.Message, s.topK())
	if err != nil {
		return nil, advisor.Classify(ctx, err)
	}
	category := Categorize(req.Message)

	params := advisor.NewParams()
	params.Set(advisor.ParamConversationID, conversationID)
	if customerID, ok := parseCustomerID(req.CustomerID); ok {
		params.Set(advisor.ParamCustomerID, customerID)
	}
	return &advisor.Request{
		UserText:       req.Message,
		SystemText:     buildSystemPrompt(category, knowledge, s.toolMode()),
		ConversationID: conversationID,
		Params:         params,
	}, nil
}

func (s *Service) callModel(ctx context.Context, req *advisor.Request) (*advisor.Result, error) {
	llmReq, err := s.modelRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Invoke(ctx, llmReq)
	if err != nil {
		return nil, err
	}
	if err := s.remember(ctx, req, resp.Text); err != nil {
		return nil, err
	}
	return &advisor.Result{Text: resp.Text, Usage: resp.Usage}, nil
}

func (s *Service) streamModel(ctx context.Context, req *advisor.Request) advisor.Stream {
	return func(yield func(*advisor.Result, error) bool) {
		llmReq, err := s.modelRequest(ctx, req)
		if err != nil {
			yield(nil, err)
			return
		}
		var text strings.Builder
		for r, err := range s.client.Stream(ctx, llmReq) {
			if err != nil {
				yield(nil, err)
				return
			}
			text.WriteString(r.Text)
			if !yield(&advisor.Result{Text: r.Text, Usage: r.Usage}, nil) {
				return
			}
		}
		if err := s.remember(ctx, req, text.String()); err != nil {
			yield(nil, err)
		}
	}
}

func (s *Service) modelRequest(ctx context.Context, req *advisor.Request) (*llm.Request, error) {
	history, err := s.memory.Load(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	turns := make([]llm.Turn, 0, len(history))
	for _, e := range history {
		turns = append(turns, llm.Turn{Role: e.Role, Content: e.Content})
	}
	llmReq := &llm.Request{
		System:  req.SystemText,
		History: turns,
		User:    req.UserText,
	}
	if s.toolMode() {
		llmReq.Tools = []llm.Tool{NewCreateTicketTool(s.desk, req.Params)}
	}
	return llmReq, nil
}

// remember appends the exchange to the memory window unless the deadline
// already passed.
func (s *Service) remember(ctx context.Context, req *advisor.Request, answer string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.memory.Append(ctx, req.ConversationID,
		chatmemory.Entry{Role: chatmemory.RoleUser, Content: req.UserText},
		chatmemory.Entry{Role: chatmemory.RoleAssistant, Content: answer},
	)
}

func (s *Service) buildResponse(req *advisor.Request, text string, usage *advisor.Usage) *ChatResponse {
	resp := &ChatResponse{
		Message:        text,
		ConversationID: req.ConversationID,
		TicketUID:      req.Params.String(paramTicketUID),
		EscalationNote: req.Params.String(paramEscalationNote),
		Usage:          usage,
		Timestamp:      time.Now(),
	}
	if v, ok := req.Params.Get(paramSentiment); ok {
		resp.Sentiment, _ = v.(Sentiment)
	}
	resp.TicketCreated = resp.TicketUID != ""
	return resp
}

// recordSession keeps the session row and the customer's activity current.
// Failures are logged, the answer has already been produced.
func (s *Service) recordSession(ctx context.Context, req *advisor.Request, resp *ChatResponse) {
	customerID, _ := req.Params.Int32(advisor.ParamCustomerID)
	if _, err := s.store.UpsertConversationSession(ctx, &store.UpsertConversationSession{
		ConversationID: req.ConversationID,
		CustomerID:     customerID,
		LastSentiment:  string(resp.Sentiment),
		MessageDelta:   2,
		TicketUID:      resp.TicketUID,
	}); err != nil {
		slog.Warn("failed to record conversation session", "conversation", req.ConversationID, "err", err)
	}
	if customerID != 0 {
		now := time.Now().Unix()
		if _, err := s.store.UpdateCustomer(ctx, &store.UpdateCustomer{ID: customerID, LastActiveTs: &now}); err != nil {
			slog.Warn("failed to update customer activity", "customer", customerID, "err", err)
		}
	}
}

func (s *Service) toolMode() bool {
	return s.profile.EscalationMode == profile.EscalationTool
}

func (s *Service) topK() int {
	if s.profile.RetrievalTopK > 0 {
		return s.profile.RetrievalTopK
	}
	return 3
}

// resolveConversationID prefers the session token, then the customer, then
// the shared anonymous conversation.
func resolveConversationID(req *ChatRequest) string {
	if req.SessionID != "" {
		return req.SessionID
	}
	if req.CustomerID != "" {
		return "customer-" + req.CustomerID
	}
	return anonymousConversation
}

func parseCustomerID(raw string) (int32, bool) {
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(id), true
}

func sumUsage(a, b *advisor.Usage) *advisor.Usage {
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

package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/usememos/supportbot/internal/profile"
	"github.com/usememos/supportbot/plugin/chatmemory"
	"github.com/usememos/supportbot/plugin/llm"
	"github.com/usememos/supportbot/plugin/llm/llmtest"
	"github.com/usememos/supportbot/plugin/vectorstore"
	"github.com/usememos/supportbot/server/supportbot"
	"github.com/usememos/supportbot/store"
	teststore "github.com/usememos/supportbot/store/test"
)

type testServer struct {
	echo    *echo.Echo
	store   *store.Store
	profile *profile.Profile
}

func newTestServer(t *testing.T, model *llmtest.Model) *testServer {
	t.Helper()
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	require.NoError(t, ts.SeedSampleData(ctx))

	vs, err := vectorstore.NewInMemory(vectorstore.NewHashEmbeddingFunc(256))
	require.NoError(t, err)
	_, err = supportbot.LoadCorpus(ctx, vs)
	require.NoError(t, err)

	p := &profile.Profile{
		OpenRouterAPIKey: "test-key",
		EscalationMode:   profile.EscalationRule,
		RetrievalTopK:    3,
		RequestTimeout:   5 * time.Second,
	}
	memory := chatmemory.NewWindow(chatmemory.NewInMemoryRepository(), 20)
	service, err := supportbot.NewService(p, ts, supportbot.NewKnowledgeBase(vs), memory, llm.NewClient(model))
	require.NoError(t, err)

	e := echo.New()
	NewAPIV1Service(p, ts, service).RegisterRoutes(e)
	return &testServer{echo: e, store: ts, profile: p}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) customerID(t *testing.T, email string) int32 {
	t.Helper()
	customer, err := s.store.GetCustomer(context.Background(), &store.FindCustomer{Email: &email})
	require.NoError(t, err)
	require.NotNil(t, customer)
	return customer.ID
}

func TestSupportChat(t *testing.T) {
	s := newTestServer(t, llmtest.NewModel("You can export from the project menu."))
	id := s.customerID(t, "john@acme.com")

	rec := s.do(t, http.MethodPost, "/api/v1/support/chat",
		fmt.Sprintf(`{"message":"How do I export a project?","customerId":"%d"}`, id))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[supportbot.ChatResponse](t, rec)
	require.Equal(t, "You can export from the project menu.", resp.Message)
	require.Equal(t, fmt.Sprintf("customer-%d", id), resp.ConversationID)
	require.Equal(t, supportbot.SentimentNeutral, resp.Sentiment)

	rec = s.do(t, http.MethodGet, "/api/v1/support/sessions/"+resp.ConversationID+"/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	messages := decode[[]messageResponse](t, rec)
	require.Len(t, messages, 2)
	require.Equal(t, "user", messages[0].Role)

	rec = s.do(t, http.MethodGet, "/api/v1/support/sessions/"+resp.ConversationID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	session := decode[sessionResponse](t, rec)
	require.Equal(t, id, session.CustomerID)
	require.Equal(t, int32(2), session.MessageCount)

	rec = s.do(t, http.MethodDelete, "/api/v1/support/sessions/"+resp.ConversationID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/v1/support/sessions/"+resp.ConversationID+"/messages", "")
	require.Empty(t, decode[[]messageResponse](t, rec))
}

func TestSupportChatErrors(t *testing.T) {
	s := newTestServer(t, &llmtest.Model{Replies: []llmtest.Reply{{Err: errors.New("connection refused")}}})

	rec := s.do(t, http.MethodPost, "/api/v1/support/chat", `{"message":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/support/chat", `{"message":"hello"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "temporarily unavailable")
	require.NotContains(t, rec.Body.String(), "connection refused")
}

func TestSupportChatStream(t *testing.T) {
	s := newTestServer(t, llmtest.NewModel("Clear your browser cache and reload."))

	rec := s.do(t, http.MethodPost, "/api/v1/support/chat/stream", `{"message":"The board is slow","sessionId":"sse-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var (
		tokens strings.Builder
		done   *supportbot.ChatResponse
	)
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var event struct {
			Type    string                   `json:"type"`
			Content string                   `json:"content"`
			Payload *supportbot.ChatResponse `json:"payload"`
		}
		require.NoError(t, json.Unmarshal([]byte(data), &event))
		switch event.Type {
		case "token":
			tokens.WriteString(event.Content)
		case "done":
			done = event.Payload
		default:
			t.Fatalf("unexpected event %q", event.Type)
		}
	}
	require.Equal(t, "Clear your browser cache and reload.", tokens.String())
	require.NotNil(t, done)
	require.Equal(t, tokens.String(), done.Message)
	require.Equal(t, "sse-1", done.ConversationID)
}

func TestSupportChatStreamError(t *testing.T) {
	s := newTestServer(t, &llmtest.Model{Replies: []llmtest.Reply{{Err: errors.New("boom")}}})

	rec := s.do(t, http.MethodPost, "/api/v1/support/chat/stream", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"type":"error"`)
	require.NotContains(t, rec.Body.String(), `"type":"done"`)
}

func TestSupportChatNotConfigured(t *testing.T) {
	s := newTestServer(t, llmtest.NewModel("ok"))
	s.profile.OpenRouterAPIKey = ""

	rec := s.do(t, http.MethodPost, "/api/v1/support/chat", `{"message":"hello"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/v1/support/chat/stream", `{"message":"hello"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCreateSupportSession(t *testing.T) {
	s := newTestServer(t, llmtest.NewModel("ok"))
	rec := s.do(t, http.MethodPost, "/api/v1/support/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decode[sessionResponse](t, rec)
	require.NotEmpty(t, first.SessionID)

	second := decode[sessionResponse](t, s.do(t, http.MethodPost, "/api/v1/support/sessions", ""))
	require.NotEqual(t, first.SessionID, second.SessionID)

	rec = s.do(t, http.MethodGet, "/api/v1/support/sessions/"+first.SessionID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCustomerRoutes(t *testing.T) {
	s := newTestServer(t, llmtest.NewModel("ok"))

	rec := s.do(t, http.MethodGet, "/api/v1/customers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]customerResponse](t, rec), 5)

	rec = s.do(t, http.MethodGet, "/api/v1/customers?plan=premium", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]customerResponse](t, rec), 2)

	rec = s.do(t, http.MethodPost, "/api/v1/customers", `{"name":"Dana Lee","email":"dana@example.com","plan":"enterprise"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[customerResponse](t, rec)
	require.Equal(t, "ENTERPRISE", created.Plan)

	rec = s.do(t, http.MethodPost, "/api/v1/customers", `{"name":"Dana Lee","email":"dana@example.com"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/customers/%d/plan", created.ID), `{"plan":"FREE"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "FREE", decode[customerResponse](t, rec).Plan)

	rec = s.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/customers/%d/plan", created.ID), `{"plan":"GOLD"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/customers/9999", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/v1/customers/abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTicketRoutes(t *testing.T) {
	s := newTestServer(t, llmtest.NewModel("ok"))
	id := s.customerID(t, "alex@startup.io")

	rec := s.do(t, http.MethodPost, "/api/v1/tickets",
		fmt.Sprintf(`{"customerId":%d,"subject":"Login loop","description":"Keeps redirecting","priority":"high"}`, id))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ticket := decode[ticketResponse](t, rec)
	require.Equal(t, "HIGH", ticket.Priority)
	require.Equal(t, "OPEN", ticket.Status)

	rec = s.do(t, http.MethodPost, "/api/v1/tickets", fmt.Sprintf(`{"customerId":%d,"subject":""}`, id))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/v1/tickets", `{"customerId":9999,"subject":"Help"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/tickets/"+ticket.UID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/v1/tickets/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/v1/tickets/"+ticket.UID, `{"status":"in_progress","priority":"critical"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[ticketResponse](t, rec)
	require.Equal(t, "IN_PROGRESS", updated.Status)
	require.Equal(t, "CRITICAL", updated.Priority)

	rec = s.do(t, http.MethodPatch, "/api/v1/tickets/"+ticket.UID, `{"status":"done"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/customers/%d/tickets?active=true", id), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]ticketResponse](t, rec), 1)

	rec = s.do(t, http.MethodPost, "/api/v1/tickets/"+ticket.UID+"/close", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "CLOSED", decode[ticketResponse](t, rec).Status)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/customers/%d/tickets?active=true", id), "")
	require.Empty(t, decode[[]ticketResponse](t, rec))
}

func TestEscalatedTickets(t *testing.T) {
	s := newTestServer(t, llmtest.NewModel("A human will follow up."))
	id := s.customerID(t, "sarah@techstart.io")

	rec := s.do(t, http.MethodPost, "/api/v1/support/chat",
		fmt.Sprintf(`{"message":"Let me talk to your manager","customerId":"%d"}`, id))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[supportbot.ChatResponse](t, rec)
	require.True(t, resp.TicketCreated)

	rec = s.do(t, http.MethodGet, "/api/v1/tickets/escalated", "")
	require.Equal(t, http.StatusOK, rec.Code)
	escalated := decode[[]ticketResponse](t, rec)
	require.Len(t, escalated, 1)
	require.Equal(t, resp.TicketUID, escalated[0].UID)
	require.Equal(t, "HIGH", escalated[0].Priority)
}

func TestSearchKnowledge(t *testing.T) {
	s := newTestServer(t, llmtest.NewModel("ok"))

	rec := s.do(t, http.MethodGet, "/api/v1/support/knowledge?q=refund+invoice&category=billing&limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	results := decode[[]knowledgeResponse](t, rec)
	require.Len(t, results, 2)
	for _, r := range results {
		require.Equal(t, supportbot.CategoryBilling, r.Category)
		require.NotEmpty(t, r.Content)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/support/knowledge?q=export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]knowledgeResponse](t, rec), 3)

	rec = s.do(t, http.MethodGet, "/api/v1/support/knowledge", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/v1/support/knowledge?q=x&category=legal", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/v1/support/knowledge?q=x&limit=0", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

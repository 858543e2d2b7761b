package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/usememos/supportbot/server/supportbot"
	"github.com/usememos/supportbot/store"
)

type sessionResponse struct {
	SessionID     string `json:"sessionId"`
	CustomerID    int32  `json:"customerId,omitempty"`
	LastSentiment string `json:"lastSentiment,omitempty"`
	MessageCount  int32  `json:"messageCount"`
	TicketUID     string `json:"ticketId,omitempty"`
	Ended         bool   `json:"ended"`
	CreatedTs     int64  `json:"createdTs,omitempty"`
	UpdatedTs     int64  `json:"updatedTs,omitempty"`
}

type knowledgeResponse struct {
	ID       string  `json:"id"`
	Content  string  `json:"content"`
	Category string  `json:"category"`
	Score    float32 `json:"score"`
}

// maxKnowledgeLimit caps the chunks one knowledge search returns.
const maxKnowledgeLimit = 20

type messageResponse struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedTs int64  `json:"createdTs"`
}

func (s *APIV1Service) registerSupportRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/support")
	g.POST("/chat", s.handleSupportChat)
	g.POST("/chat/stream", s.handleSupportChatStream)
	g.POST("/sessions", s.createSupportSession)
	g.GET("/sessions/:id", s.getSupportSession)
	g.DELETE("/sessions/:id", s.endSupportSession)
	g.GET("/sessions/:id/messages", s.listSupportMessages)
	g.GET("/knowledge", s.searchKnowledge)
}

func (s *APIV1Service) handleSupportChat(c *echo.Context) error {
	if s.Profile.OpenRouterAPIKey == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "support chat is not configured (missing OpenRouter API key)")
	}
	var req supportbot.ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	resp, err := s.Service.Chat(c.Request().Context(), &req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// handleSupportChatStream answers over server-sent events: one token event
// per fragment, then a done event carrying the full response, or an error
// event if the exchange fails midway.
func (s *APIV1Service) handleSupportChatStream(c *echo.Context) error {
	if s.Profile.OpenRouterAPIKey == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "support chat is not configured (missing OpenRouter API key)")
	}
	var req supportbot.ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	stream, err := s.Service.ChatStream(c.Request().Context(), &req)
	if err != nil {
		return toHTTPError(err)
	}

	rw := c.Response()
	rw.Header().Set("Content-Type", "text/event-stream")
	rw.Header().Set("Cache-Control", "no-cache")
	rw.Header().Set("Connection", "keep-alive")
	rw.Header().Set("X-Accel-Buffering", "no")
	rw.WriteHeader(http.StatusOK)

	emit := func(eventType, payload string) {
		data, _ := json.Marshal(map[string]string{"type": eventType, "content": payload})
		fmt.Fprintf(rw, "data: %s\n\n", data)
		if f, ok := rw.(http.Flusher); ok {
			f.Flush()
		}
	}
	emitJSON := func(eventType string, obj any) {
		inner, _ := json.Marshal(obj)
		data, _ := json.Marshal(map[string]json.RawMessage{
			"type":    json.RawMessage(`"` + eventType + `"`),
			"payload": inner,
		})
		fmt.Fprintf(rw, "data: %s\n\n", data)
		if f, ok := rw.(http.Flusher); ok {
			f.Flush()
		}
	}

	for r, err := range stream.Fragments {
		if err != nil {
			slog.Error("support stream failed", "conversation", stream.ConversationID, "err", err)
			emit("error", failureMessage(err))
			return nil
		}
		if r.Text != "" {
			emit("token", r.Text)
		}
	}
	emitJSON("done", stream.Response())
	return nil
}

// createSupportSession hands out a fresh conversation token.
func (s *APIV1Service) createSupportSession(c *echo.Context) error {
	return c.JSON(http.StatusCreated, sessionResponse{SessionID: uuid.New().String()})
}

func (s *APIV1Service) getSupportSession(c *echo.Context) error {
	id := c.Param("id")
	session, err := s.Store.GetConversationSession(c.Request().Context(), &store.FindConversationSession{ConversationID: &id})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if session == nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, sessionResponse{
		SessionID:     session.ConversationID,
		CustomerID:    session.CustomerID,
		LastSentiment: session.LastSentiment,
		MessageCount:  session.MessageCount,
		TicketUID:     session.TicketUID,
		Ended:         session.Ended,
		CreatedTs:     session.CreatedTs,
		UpdatedTs:     session.UpdatedTs,
	})
}

func (s *APIV1Service) endSupportSession(c *echo.Context) error {
	if err := s.Service.EndSession(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIV1Service) listSupportMessages(c *echo.Context) error {
	entries, err := s.Service.History(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]messageResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, messageResponse{
			Role:      e.Role,
			Content:   e.Content,
			CreatedTs: e.CreatedTs,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *APIV1Service) searchKnowledge(c *echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	category := c.QueryParam("category")
	switch category {
	case "", supportbot.CategoryBilling, supportbot.CategoryTroubleshooting, supportbot.CategoryFAQ:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown category")
	}
	limit := 3
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxKnowledgeLimit)
	}

	results, err := s.Service.Knowledge().SearchByCategory(c.Request().Context(), query, category, limit)
	if err != nil {
		return toHTTPError(err)
	}
	resp := make([]knowledgeResponse, 0, len(results))
	for _, r := range results {
		resp = append(resp, knowledgeResponse{ID: r.ID, Content: r.Content, Category: r.Category, Score: r.Score})
	}
	return c.JSON(http.StatusOK, resp)
}

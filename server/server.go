package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	chromem "github.com/philippgille/chromem-go"
	"github.com/pkg/errors"

	"github.com/usememos/supportbot/internal/profile"
	"github.com/usememos/supportbot/plugin/chatmemory"
	"github.com/usememos/supportbot/plugin/llm"
	"github.com/usememos/supportbot/plugin/vectorstore"
	apiv1 "github.com/usememos/supportbot/server/router/api/v1"
	"github.com/usememos/supportbot/server/supportbot"
	"github.com/usememos/supportbot/store"
)

// hashEmbeddingDims sizes the local embedding used without an embedding model.
const hashEmbeddingDims = 256

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	httpServer *http.Server
}

func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	s := &Server{
		Profile: profile,
		Store:   store,
	}

	if profile.SeedSampleData {
		if err := store.SeedSampleData(ctx); err != nil {
			return nil, errors.Wrap(err, "failed to seed sample data")
		}
	}

	vs, err := vectorstore.New(profile.Data, embeddingFunc(profile))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open vector store")
	}
	if _, err := supportbot.LoadCorpus(ctx, vs); err != nil {
		return nil, err
	}

	var client *llm.Client
	if profile.OpenRouterAPIKey != "" {
		client, err = llm.NewOpenRouter(profile.OpenRouterURL, profile.OpenRouterAPIKey, profile.AIModel)
		if err != nil {
			return nil, err
		}
	} else {
		slog.Warn("OpenRouter API key is not set, support chat is disabled")
	}

	service, err := supportbot.NewService(profile, store, supportbot.NewKnowledgeBase(vs), newMemory(profile, store), client)
	if err != nil {
		return nil, err
	}

	echoServer := echo.New()
	echoServer.Use(middleware.Recover())
	apiv1.NewAPIV1Service(profile, store, service).RegisterRoutes(echoServer)
	s.echoServer = echoServer
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", profile.Addr, profile.Port),
		Handler:           echoServer,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start http server", "error", err)
		}
	}()
	slog.Info("server started", "addr", listener.Addr().String(), "mode", s.Profile.Mode)
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown http server", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
	slog.Info("server stopped properly")
}

// embeddingFunc embeds through OpenRouter when an embedding model is
// configured and falls back to the local hash embedding otherwise.
func embeddingFunc(profile *profile.Profile) chromem.EmbeddingFunc {
	if profile.EmbeddingModel == "" || profile.OpenRouterAPIKey == "" {
		return vectorstore.NewHashEmbeddingFunc(hashEmbeddingDims)
	}
	return chromem.NewEmbeddingFuncOpenAICompat(profile.OpenRouterURL, profile.OpenRouterAPIKey, profile.EmbeddingModel, nil)
}

func newMemory(p *profile.Profile, s *store.Store) *chatmemory.Window {
	if p.MemoryBackend == profile.MemoryBackendMemory {
		return chatmemory.NewWindow(chatmemory.NewInMemoryRepository(), p.MemoryMaxMessages)
	}
	return chatmemory.NewWindow(chatmemory.NewStoreRepository(s), p.MemoryMaxMessages)
}

// Package api provides the HTTP surface of the turnpike chat server: the
// streaming chat endpoint plus read endpoints over archived turns,
// artifacts, and the tool catalog.
package api

import (
	"net"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/turnpike-ai/turnpike/pkg/llm/provider"
	"github.com/turnpike-ai/turnpike/pkg/storage"
	"github.com/turnpike-ai/turnpike/pkg/tools"
	"github.com/turnpike-ai/turnpike/pkg/worker"
)

// Server is the HTTP server mediating chat turns between clients, the
// language-model provider, and the tool services.
type Server struct {
	config     Config
	provider   provider.Provider
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
	storer     storage.Driver
	workerPool *worker.Pool
	logger     *zap.Logger
	app        *fiber.App
}

// NewServer creates a new chat API server. The storer and worker pool are
// injected so they can be shared with other components and drained during
// shutdown by the caller that owns them.
func NewServer(
	config Config,
	prov provider.Provider,
	registry *tools.Registry,
	storer storage.Driver,
	pool *worker.Pool,
	logger *zap.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	s := &Server{
		config:     config,
		provider:   prov,
		registry:   registry,
		dispatcher: tools.NewDispatcher(registry, config.ToolTimeout, logger),
		storer:     storer,
		workerPool: pool,
		logger:     logger,
		app:        app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/v1/chat", s.handleChat)
	app.Get("/v1/tools", s.handleListTools)
	app.Get("/v1/turns/:id", s.handleGetTurn)
	app.Get("/v1/turns/:id/artifacts", s.handleTurnArtifacts)
	app.Get("/v1/sessions/:id/turns", s.handleSessionTurns)

	return s
}

// Run starts the server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting chat server",
		zap.String("listen", s.config.ListenAddr),
		zap.String("provider", s.config.ProviderName),
		zap.String("model", s.config.Model),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting chat server",
		zap.String("listen", listener.Addr().String()),
		zap.String("provider", s.config.ProviderName),
	)
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

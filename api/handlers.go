package api

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/turnpike-ai/turnpike/pkg/artifact"
	"github.com/turnpike-ai/turnpike/pkg/llm"
	"github.com/turnpike-ai/turnpike/pkg/storage"
	"github.com/turnpike-ai/turnpike/pkg/stream"
	"github.com/turnpike-ai/turnpike/pkg/worker"
)

// ErrorResponse is the JSON body returned by non-streaming error paths.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ChatRequest is the inbound body of POST /v1/chat.
type ChatRequest struct {
	Messages      []ChatMessage `json:"messages"`
	SessionID     string        `json:"sessionId"`
	SelectedTools []string      `json:"selectedTools"`

	// Model overrides the server's configured default for this turn.
	Model string `json:"model,omitempty"`
}

// ChatMessage is one prior message of the conversation being continued.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnSummary is the listing shape returned for a session's turns.
type TurnSummary struct {
	ID            string    `json:"id"`
	FinishReason  string    `json:"finish_reason"`
	Usage         llm.Usage `json:"usage"`
	ArtifactCount int       `json:"artifact_count"`
	Truncated     bool      `json:"truncated"`
	CreatedAt     time.Time `json:"created_at"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleChat runs one turn and streams wire frames back over a chunked
// text/plain body.
func (s *Server) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()

	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if len(req.Messages) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "messages are required"})
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	model := req.Model
	if model == "" {
		model = s.config.Model
	}

	messages := make([]llm.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, llm.NewTextMessage(msg.Role, msg.Content))
	}

	turn := &llm.Turn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Messages:  messages,
		Tools:     s.registry.Defs(req.SelectedTools),
	}

	orch := stream.New(stream.Config{
		Provider:      s.provider,
		Dispatcher:    s.dispatcher,
		Model:         model,
		MaxToolRounds: s.config.MaxToolRounds,
		Logger:        s.logger,
	})

	s.logger.Info("turn started",
		zap.String("turn_id", turn.ID),
		zap.String("session_id", sessionID),
		zap.String("model", model),
		zap.Int("message_count", len(messages)),
		zap.Int("tool_count", len(turn.Tools)),
	)

	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	// Use io.Pipe + SetBodyStream instead of SetBodyStreamWriter: pw.Write
	// blocks until fasthttp's chunked writer consumes the data, which gives
	// direct backpressure and true per-frame streaming to the client.
	pr, pw := io.Pipe()
	go s.runTurn(orch, turn, model, pw, startTime)

	// Unknown size (-1) triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// runTurn drives the orchestrator against the pipe writer, then classifies
// artifacts and enqueues the archive job off the hot path.
func (s *Server) runTurn(orch *stream.Orchestrator, turn *llm.Turn, model string, pw *io.PipeWriter, startTime time.Time) {
	defer pw.Close()

	outcome, err := orch.Run(context.Background(), turn, pw)
	if err != nil {
		// The client went away mid-stream. The turn is still archived,
		// marked truncated so the partial transcript is not mistaken
		// for a completed one.
		s.logger.Warn("client transport closed mid-turn",
			zap.String("turn_id", turn.ID),
			zap.Error(err),
		)
	}
	if outcome == nil {
		return
	}
	completedAt := time.Now()

	artifacts := artifact.Classify(turn.ID, outcome.Transcript)

	transcript := turn.Messages
	if outcome.Transcript != "" {
		transcript = append(transcript, llm.NewTextMessage("assistant", outcome.Transcript))
	}

	record := &storage.TurnRecord{
		ID:           turn.ID,
		SessionID:    turn.SessionID,
		Model:        model,
		FinishReason: outcome.FinishReason,
		Usage:        outcome.Usage,
		Transcript:   transcript,
		Artifacts:    artifacts,
		Truncated:    outcome.Truncated,
		CreatedAt:    completedAt,
	}

	s.workerPool.Enqueue(worker.Job{
		Provider:    s.config.ProviderName,
		Record:      record,
		StartedAt:   startTime,
		CompletedAt: completedAt,
	})

	s.logger.Info("turn completed",
		zap.String("turn_id", turn.ID),
		zap.String("state", outcome.State.String()),
		zap.String("finish_reason", outcome.FinishReason),
		zap.Int("artifact_count", len(artifacts)),
		zap.Duration("elapsed", completedAt.Sub(startTime)),
	)
}

// handleListTools returns the tool catalog currently offered to providers.
func (s *Server) handleListTools(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"tools": s.registry.Defs(nil),
	})
}

// handleGetTurn returns one archived turn record.
func (s *Server) handleGetTurn(c *fiber.Ctx) error {
	record, err := s.storer.Get(c.Context(), c.Params("id"))
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
		}
		s.logger.Error("failed to load turn", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load turn"})
	}

	return c.JSON(record)
}

// handleTurnArtifacts returns the artifacts classified for one turn.
func (s *Server) handleTurnArtifacts(c *fiber.Ctx) error {
	record, err := s.storer.Get(c.Context(), c.Params("id"))
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
		}
		s.logger.Error("failed to load turn", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load turn"})
	}

	return c.JSON(fiber.Map{
		"turn_id":   record.ID,
		"artifacts": record.Artifacts,
	})
}

// handleSessionTurns lists a session's archived turns, oldest first.
func (s *Server) handleSessionTurns(c *fiber.Ctx) error {
	records, err := s.storer.BySession(c.Context(), c.Params("id"))
	if err != nil {
		s.logger.Error("failed to list session turns", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list turns"})
	}

	summaries := make([]TurnSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, TurnSummary{
			ID:            record.ID,
			FinishReason:  record.FinishReason,
			Usage:         record.Usage,
			ArtifactCount: len(record.Artifacts),
			Truncated:     record.Truncated,
			CreatedAt:     record.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"session_id": c.Params("id"),
		"turns":      summaries,
	})
}

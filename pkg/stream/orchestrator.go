package stream

import (
	"context"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/turnpike-ai/turnpike/pkg/llm"
	"github.com/turnpike-ai/turnpike/pkg/llm/provider"
	"github.com/turnpike-ai/turnpike/pkg/tools"
)

// State is the orchestrator's position in the turn lifecycle.
type State int

const (
	StateStreaming State = iota
	StateExecutingTools
	StateFinished
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateExecutingTools:
		return "executing_tools"
	case StateFinished:
		return "finished"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// ToolDispatcher executes a batch of complete tool calls, returning exactly
// one result per call in call order. allowed limits the callable tool names
// for this turn; nil means all registered tools.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, calls []llm.ToolCall, allowed map[string]struct{}) []llm.ToolResult
}

// Config carries the orchestrator's collaborators and policy knobs.
type Config struct {
	Provider   provider.Provider
	Dispatcher ToolDispatcher

	// Model is the model name placed on every provider request.
	Model string

	// MaxToolRounds bounds the number of STREAMING -> EXECUTING_TOOLS
	// transitions per turn, preventing infinite tool-call loops.
	// Zero means the default of one round.
	MaxToolRounds int

	Logger *zap.Logger
}

// Outcome summarizes a completed turn: the full assistant text (including
// re-injected tool results), the terminal finish reason, and usage totals.
// Truncated marks turns cut short by a client transport failure, so an
// archived partial transcript is never mistaken for a completed one.
type Outcome struct {
	Transcript   string
	FinishReason string
	Usage        llm.Usage
	State        State
	Truncated    bool
}

// Orchestrator drives one turn: provider deltas flow through the content
// buffer to the wire encoder; tool-call fragments accumulate until a
// tool_calls completion signal triggers a dispatch round. One Orchestrator
// serves one Turn and is not reused.
type Orchestrator struct {
	provider      provider.Provider
	dispatcher    ToolDispatcher
	model         string
	maxToolRounds int
	logger        *zap.Logger

	state State
}

// New creates an orchestrator for a single turn.
func New(config Config) *Orchestrator {
	rounds := config.MaxToolRounds
	if rounds <= 0 {
		rounds = 1
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		provider:      config.Provider,
		dispatcher:    config.Dispatcher,
		model:         config.Model,
		maxToolRounds: rounds,
		logger:        logger,
		state:         StateStreaming,
	}
}

// State returns the orchestrator's current lifecycle state.
func (o *Orchestrator) State() State {
	return o.state
}

// Run executes the turn, writing wire frames to w. The terminal frame is
// emitted exactly once and strictly last in every path, including provider
// errors (surfaced as a content frame immediately before it). The returned
// error is non-nil only when the client transport failed mid-stream; wire
// contract violations are never propagated as transport failures.
func (o *Orchestrator) Run(ctx context.Context, turn *llm.Turn, w io.Writer) (*Outcome, error) {
	enc := NewWireEncoder(w)
	buf := &ContentBuffer{}
	acc := tools.NewAccumulator(o.logger)

	var transcript strings.Builder
	var usage llm.Usage

	allowed := allowedNames(turn)
	req := &llm.ChatRequest{
		Model:    o.model,
		Messages: turn.Messages,
		Tools:    turn.Tools,
	}

	finish := llm.FinishStop
	round := 0

	for {
		o.state = StateStreaming

		roundFinish, err := o.streamRound(ctx, req, enc, buf, acc, &transcript, &usage)
		if enc.Err() != nil {
			// Client transport closed: tear down without further emissions.
			o.state = StateFinished
			out := o.outcome(&transcript, finish, usage)
			out.Truncated = true
			return out, enc.Err()
		}
		if err != nil {
			return o.failTurn(enc, buf, &transcript, usage, err)
		}
		finish = roundFinish

		if finish != llm.FinishToolCalls {
			break
		}
		calls := acc.Drain()
		if len(calls) == 0 {
			// A tool_calls signal with no complete call ends the turn.
			break
		}

		o.state = StateExecutingTools
		o.logger.Debug("executing tool round",
			zap.Int("round", round+1),
			zap.Int("calls", len(calls)),
		)
		results := o.dispatcher.Dispatch(ctx, calls, allowed)

		injected := joinResults(results)
		if injected != "" {
			transcript.WriteString(injected)
			enc.Content(buf.Write(injected))
		}

		round++
		if round >= o.maxToolRounds {
			// Round budget exhausted: force FINISHED with the tool_calls
			// reason from the last completion signal.
			break
		}

		req = followUpRequest(req, calls, results)
	}

	enc.Content(buf.Flush())
	enc.Finish(finish, usage)
	o.state = StateFinished

	out := o.outcome(&transcript, finish, usage)
	out.Truncated = enc.Err() != nil
	return out, enc.Err()
}

// streamRound consumes one provider stream to exhaustion, forwarding text
// through the buffer and collecting tool-call fragments. Returns the round's
// finish reason ("stop" when the provider never signalled one).
func (o *Orchestrator) streamRound(
	ctx context.Context,
	req *llm.ChatRequest,
	enc *WireEncoder,
	buf *ContentBuffer,
	acc *tools.Accumulator,
	transcript *strings.Builder,
	usage *llm.Usage,
) (string, error) {
	st, err := o.provider.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	defer st.Close()

	finish := ""
	for {
		delta, err := st.Next()
		if err != nil {
			return "", err
		}
		if delta == nil {
			break
		}

		if delta.Usage != nil {
			usage.Add(*delta.Usage)
		}
		if delta.ContentText != "" {
			transcript.WriteString(delta.ContentText)
			enc.Content(buf.Write(delta.ContentText))
		}
		for _, frag := range delta.ToolCalls {
			acc.Ingest(frag)
		}
		if delta.FinishReason != "" {
			finish = delta.FinishReason
		}

		if enc.Err() != nil {
			// No point reading further deltas for a closed client.
			return finish, nil
		}
	}

	if finish == "" {
		finish = llm.FinishStop
	}
	return finish, nil
}

// failTurn surfaces an unrecoverable provider error as readable text followed
// by the terminal frame, so the client transport is never left hanging.
func (o *Orchestrator) failTurn(
	enc *WireEncoder,
	buf *ContentBuffer,
	transcript *strings.Builder,
	usage llm.Usage,
	err error,
) (*Outcome, error) {
	o.logger.Error("provider stream failed", zap.Error(err))

	enc.Content(buf.Flush())

	errText := "Error: " + err.Error()
	if transcript.Len() > 0 {
		errText = "\n\n" + errText
	}
	transcript.WriteString(errText)
	enc.Content(errText)
	enc.Finish(llm.FinishStop, usage)

	o.state = StateErrored
	out := o.outcome(transcript, llm.FinishStop, usage)
	out.Truncated = enc.Err() != nil
	return out, enc.Err()
}

func (o *Orchestrator) outcome(transcript *strings.Builder, finish string, usage llm.Usage) *Outcome {
	return &Outcome{
		Transcript:   transcript.String(),
		FinishReason: finish,
		Usage:        usage,
		State:        o.state,
	}
}

// allowedNames derives the per-turn callable tool set from the turn's tool
// definitions. An empty definition list means no restriction.
func allowedNames(turn *llm.Turn) map[string]struct{} {
	if len(turn.Tools) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(turn.Tools))
	for _, def := range turn.Tools {
		allowed[def.Name] = struct{}{}
	}
	return allowed
}

// joinResults concatenates result content blocks in call order, separated by
// a blank line. Error results are reported inline like any other text.
func joinResults(results []llm.ToolResult) string {
	parts := make([]string, 0, len(results))
	for _, result := range results {
		if text := result.Text(); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// followUpRequest extends the conversation with the assistant's tool calls
// and their results, so the next round streams with full context.
func followUpRequest(req *llm.ChatRequest, calls []llm.ToolCall, results []llm.ToolResult) *llm.ChatRequest {
	assistant := llm.Message{Role: "assistant"}
	for _, call := range calls {
		assistant.Content = append(assistant.Content, llm.ContentBlock{
			Type:      "tool_use",
			ToolUseID: call.ID,
			ToolName:  call.Name,
			ToolInput: call.Arguments,
		})
	}

	toolMsg := llm.Message{Role: "tool"}
	for i, result := range results {
		toolMsg.Content = append(toolMsg.Content, llm.ContentBlock{
			Type:         "tool_result",
			ToolResultID: calls[i].ID,
			ToolOutput:   result.Text(),
			IsError:      result.IsError,
		})
	}

	messages := make([]llm.Message, 0, len(req.Messages)+2)
	messages = append(messages, req.Messages...)
	messages = append(messages, assistant, toolMsg)

	next := *req
	next.Messages = messages
	return &next
}

// Package tools contains the tool-call plumbing for one turn: fragment
// accumulation, the process-wide name->service registry, and the concurrent
// dispatcher that executes a round of calls.
package tools

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/turnpike-ai/turnpike/pkg/llm"
)

// pendingCall accumulates the fragments observed for one call id.
type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// Accumulator merges partial tool-call fragments, keyed by call id, into
// complete records. Entries are append-only within a round; Drain validates,
// returns the complete calls in first-seen order, and clears all state.
type Accumulator struct {
	records map[string]*pendingCall
	order   []string
	logger  *zap.Logger
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator(logger *zap.Logger) *Accumulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accumulator{
		records: make(map[string]*pendingCall),
		logger:  logger,
	}
}

// Ingest merges one fragment into the record for its id, concatenating
// partial argument text. Fragments with no id cannot be keyed and are
// dropped with a warning; this is never fatal.
func (a *Accumulator) Ingest(frag llm.ToolCallFragment) {
	if frag.ID == "" {
		a.logger.Warn("dropping tool-call fragment without id",
			zap.String("name", frag.Name),
		)
		return
	}

	rec, ok := a.records[frag.ID]
	if !ok {
		rec = &pendingCall{id: frag.ID}
		a.records[frag.ID] = rec
		a.order = append(a.order, frag.ID)
	}

	if frag.Name != "" {
		rec.name = frag.Name
	}
	rec.args.WriteString(frag.ArgumentsDelta)
}

// Drain returns every record whose id, name and arguments are all valid,
// in first-seen order, and clears the accumulator. Records failing
// validation are dropped with a warning and never reach the dispatcher.
// Empty argument text counts as the empty object.
func (a *Accumulator) Drain() []llm.ToolCall {
	var calls []llm.ToolCall
	for _, id := range a.order {
		rec := a.records[id]

		if rec.name == "" {
			a.logger.Warn("dropping tool call without name", zap.String("id", rec.id))
			continue
		}

		argsText := rec.args.String()
		if strings.TrimSpace(argsText) == "" {
			argsText = "{}"
		}

		var args map[string]any
		if err := json.Unmarshal([]byte(argsText), &args); err != nil || args == nil {
			a.logger.Warn("dropping tool call with malformed arguments",
				zap.String("id", rec.id),
				zap.String("name", rec.name),
				zap.Error(err),
			)
			continue
		}

		calls = append(calls, llm.ToolCall{ID: rec.id, Name: rec.name, Arguments: args})
	}

	a.records = make(map[string]*pendingCall)
	a.order = nil

	return calls
}

// Pending reports the number of partially accumulated records.
func (a *Accumulator) Pending() int {
	return len(a.records)
}

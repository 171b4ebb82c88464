package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/turnpike-ai/turnpike/pkg/llm"
)

// defaultCallTimeout bounds a single tool execution.
const defaultCallTimeout = 30 * time.Second

// Resolver is the slice of the registry the dispatcher needs.
type Resolver interface {
	Resolve(name string) (Service, bool)
}

// Dispatcher executes a round of tool calls concurrently. Every call always
// produces a result at its original index; failures of any kind degrade to
// IsError results so one bad call never loses its siblings.
type Dispatcher struct {
	resolver    Resolver
	callTimeout time.Duration
	logger      *zap.Logger
}

// NewDispatcher creates a dispatcher backed by the given resolver. A zero
// timeout selects the default.
func NewDispatcher(resolver Resolver, callTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		resolver:    resolver,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// Dispatch runs every call in its own goroutine and blocks until all have
// completed. The returned slice is positionally aligned with calls. Names
// outside the allowed set fail closed; a nil allowed set permits everything
// the resolver knows.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []llm.ToolCall, allowed map[string]struct{}) []llm.ToolResult {
	results := make([]llm.ToolResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			results[i] = d.execute(ctx, call, allowed)
		}(i, call)
	}
	wg.Wait()

	return results
}

func (d *Dispatcher) execute(ctx context.Context, call llm.ToolCall, allowed map[string]struct{}) llm.ToolResult {
	if allowed != nil {
		if _, ok := allowed[call.Name]; !ok {
			d.logger.Warn("rejecting tool call outside allowed set",
				zap.String("tool", call.Name),
				zap.String("call_id", call.ID),
			)
			return llm.ErrorResult(fmt.Sprintf("tool %q is not available for this turn", call.Name))
		}
	}

	svc, ok := d.resolver.Resolve(call.Name)
	if !ok {
		return llm.ErrorResult(fmt.Sprintf("unknown tool %q", call.Name))
	}

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	start := time.Now()
	result, err := svc.Call(callCtx, call.Name, call.Arguments)
	elapsed := time.Since(start)

	if err != nil {
		d.logger.Warn("tool call failed",
			zap.String("tool", call.Name),
			zap.String("service", svc.Name()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		if callCtx.Err() == context.DeadlineExceeded {
			return llm.ErrorResult(fmt.Sprintf("tool %q timed out after %s", call.Name, d.callTimeout))
		}
		return llm.ErrorResult(fmt.Sprintf("tool %q failed: %v", call.Name, err))
	}

	d.logger.Debug("tool call completed",
		zap.String("tool", call.Name),
		zap.String("service", svc.Name()),
		zap.Duration("elapsed", elapsed),
		zap.Bool("is_error", result.IsError),
	)
	return result
}

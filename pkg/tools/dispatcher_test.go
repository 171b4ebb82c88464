package tools

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/turnpike-ai/turnpike/pkg/llm"
)

// stubService answers calls from a canned function.
type stubService struct {
	name string
	call func(ctx context.Context, name string, args map[string]any) (llm.ToolResult, error)
}

func (s *stubService) Name() string { return s.name }

func (s *stubService) Tools(_ context.Context) ([]llm.ToolDef, error) { return nil, nil }

func (s *stubService) Call(ctx context.Context, name string, args map[string]any) (llm.ToolResult, error) {
	return s.call(ctx, name, args)
}

func (s *stubService) Close() error { return nil }

// stubResolver maps tool names to stub services.
type stubResolver map[string]Service

func (r stubResolver) Resolve(name string) (Service, bool) {
	svc, ok := r[name]
	return svc, ok
}

func okService(text string) *stubService {
	return &stubService{
		name: "stub",
		call: func(_ context.Context, _ string, _ map[string]any) (llm.ToolResult, error) {
			return llm.ToolResult{Content: []llm.ContentBlock{{Type: "text", Text: text}}}, nil
		},
	}
}

var _ = Describe("Dispatcher", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("produces exactly one result per call, in call order", func() {
		resolver := stubResolver{
			"alpha": okService("A"),
			"beta":  okService("B"),
			"gamma": okService("C"),
		}
		d := NewDispatcher(resolver, time.Second, nil)

		results := d.Dispatch(ctx, []llm.ToolCall{
			{ID: "1", Name: "alpha", Arguments: map[string]any{}},
			{ID: "2", Name: "beta", Arguments: map[string]any{}},
			{ID: "3", Name: "gamma", Arguments: map[string]any{}},
		}, nil)

		Expect(results).To(HaveLen(3))
		Expect(results[0].Text()).To(Equal("A"))
		Expect(results[1].Text()).To(Equal("B"))
		Expect(results[2].Text()).To(Equal("C"))
	})

	It("degrades a failing call to an error result without losing siblings", func() {
		resolver := stubResolver{
			"good": okService("fine"),
			"bad": &stubService{
				name: "stub",
				call: func(_ context.Context, _ string, _ map[string]any) (llm.ToolResult, error) {
					return llm.ToolResult{}, errors.New("boom")
				},
			},
		}
		d := NewDispatcher(resolver, time.Second, nil)

		results := d.Dispatch(ctx, []llm.ToolCall{
			{ID: "1", Name: "good", Arguments: map[string]any{}},
			{ID: "2", Name: "bad", Arguments: map[string]any{}},
		}, nil)

		Expect(results).To(HaveLen(2))
		Expect(results[0].IsError).To(BeFalse())
		Expect(results[1].IsError).To(BeTrue())
		Expect(results[1].Text()).To(ContainSubstring("boom"))
	})

	It("fails closed for unknown tool names", func() {
		d := NewDispatcher(stubResolver{}, time.Second, nil)

		results := d.Dispatch(ctx, []llm.ToolCall{
			{ID: "1", Name: "ghost", Arguments: map[string]any{}},
		}, nil)

		Expect(results).To(HaveLen(1))
		Expect(results[0].IsError).To(BeTrue())
		Expect(results[0].Text()).To(ContainSubstring("ghost"))
	})

	It("rejects calls outside the allowed set", func() {
		resolver := stubResolver{"secret": okService("leak")}
		d := NewDispatcher(resolver, time.Second, nil)

		results := d.Dispatch(ctx, []llm.ToolCall{
			{ID: "1", Name: "secret", Arguments: map[string]any{}},
		}, map[string]struct{}{"public": {}})

		Expect(results).To(HaveLen(1))
		Expect(results[0].IsError).To(BeTrue())
		Expect(results[0].Text()).NotTo(ContainSubstring("leak"))
	})

	It("runs the round concurrently", func() {
		var mu sync.Mutex
		inFlight, peak := 0, 0

		slow := &stubService{
			name: "stub",
			call: func(_ context.Context, _ string, _ map[string]any) (llm.ToolResult, error) {
				mu.Lock()
				inFlight++
				if inFlight > peak {
					peak = inFlight
				}
				mu.Unlock()

				time.Sleep(50 * time.Millisecond)

				mu.Lock()
				inFlight--
				mu.Unlock()
				return llm.ToolResult{Content: []llm.ContentBlock{{Type: "text", Text: "ok"}}}, nil
			},
		}
		resolver := stubResolver{"slow": slow}
		d := NewDispatcher(resolver, time.Second, nil)

		calls := make([]llm.ToolCall, 4)
		for i := range calls {
			calls[i] = llm.ToolCall{ID: "c", Name: "slow", Arguments: map[string]any{}}
		}

		results := d.Dispatch(ctx, calls, nil)
		Expect(results).To(HaveLen(4))

		mu.Lock()
		defer mu.Unlock()
		Expect(peak).To(BeNumerically(">", 1))
	})

	It("converts a timed-out call into an error result", func() {
		hung := &stubService{
			name: "stub",
			call: func(ctx context.Context, _ string, _ map[string]any) (llm.ToolResult, error) {
				<-ctx.Done()
				return llm.ToolResult{}, ctx.Err()
			},
		}
		resolver := stubResolver{"hang": hung}
		d := NewDispatcher(resolver, 20*time.Millisecond, nil)

		results := d.Dispatch(ctx, []llm.ToolCall{
			{ID: "1", Name: "hang", Arguments: map[string]any{}},
		}, nil)

		Expect(results).To(HaveLen(1))
		Expect(results[0].IsError).To(BeTrue())
		Expect(results[0].Text()).To(ContainSubstring("timed out"))
	})
})

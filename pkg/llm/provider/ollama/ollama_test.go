package ollama

import (
	"context"
	"io"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/turnpike-ai/turnpike/pkg/llm"
)

// roundTripperFunc lets a test stand in for the Ollama server.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// ndjsonClient returns an HTTP client whose every response body is the given
// NDJSON lines.
func ndjsonClient(lines ...string) *http.Client {
	return &http.Client{
		Transport: roundTripperFunc(func(_ *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(strings.Join(lines, "\n") + "\n")),
				Header:     make(http.Header),
			}, nil
		}),
	}
}

func drain(st llm.Stream) []*llm.Delta {
	var deltas []*llm.Delta
	for {
		delta, err := st.Next()
		Expect(err).NotTo(HaveOccurred())
		if delta == nil {
			return deltas
		}
		deltas = append(deltas, delta)
	}
}

var _ = Describe("Stream", func() {
	open := func(client *http.Client) llm.Stream {
		c := New(Config{BaseURL: "http://localhost:11434", HTTPClient: client})
		st, err := c.Stream(context.Background(), &llm.ChatRequest{
			Model:    "llama3.2",
			Messages: []llm.Message{llm.NewTextMessage("user", "hi")},
		})
		Expect(err).NotTo(HaveOccurred())
		return st
	}

	It("converts content chunks and the done chunk", func() {
		st := open(ndjsonClient(
			`{"message":{"role":"assistant","content":"Hello "},"done":false}`,
			`{"message":{"role":"assistant","content":"there"},"done":false}`,
			`{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":5,"eval_count":2}`,
		))
		defer st.Close()

		deltas := drain(st)
		Expect(deltas).To(HaveLen(3))
		Expect(deltas[0].ContentText).To(Equal("Hello "))
		Expect(deltas[1].ContentText).To(Equal("there"))
		Expect(deltas[2].FinishReason).To(Equal(llm.FinishStop))
		Expect(deltas[2].Usage).To(Equal(&llm.Usage{PromptTokens: 5, CompletionTokens: 2}))
	})

	It("maps the length done reason", func() {
		st := open(ndjsonClient(
			`{"message":{"role":"assistant","content":"truncated"},"done":true,"done_reason":"length"}`,
		))
		defer st.Close()

		deltas := drain(st)
		Expect(deltas).To(HaveLen(1))
		Expect(deltas[0].FinishReason).To(Equal(llm.FinishLength))
	})

	It("finishes tool_calls when the calls and the done chunk arrive separately", func() {
		st := open(ndjsonClient(
			`{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"time.now","arguments":{"timezone":"UTC"}}}]},"done":false}`,
			`{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":9,"eval_count":4}`,
		))
		defer st.Close()

		deltas := drain(st)
		Expect(deltas).To(HaveLen(2))

		Expect(deltas[0].ToolCalls).To(HaveLen(1))
		Expect(deltas[0].ToolCalls[0].Name).To(Equal("time.now"))
		Expect(deltas[0].ToolCalls[0].ArgumentsDelta).To(MatchJSON(`{"timezone":"UTC"}`))
		Expect(deltas[0].FinishReason).To(BeEmpty())

		Expect(deltas[1].FinishReason).To(Equal(llm.FinishToolCalls))
	})

	It("finishes tool_calls when the final chunk itself carries the calls", func() {
		st := open(ndjsonClient(
			`{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"echo","arguments":{"text":"hi"}}}]},"done":true,"done_reason":"stop"}`,
		))
		defer st.Close()

		deltas := drain(st)
		Expect(deltas).To(HaveLen(1))
		Expect(deltas[0].ToolCalls).To(HaveLen(1))
		Expect(deltas[0].FinishReason).To(Equal(llm.FinishToolCalls))
	})

	It("assigns distinct synthetic ids across a round's calls", func() {
		st := open(ndjsonClient(
			`{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"a","arguments":{}}},{"function":{"name":"b","arguments":{}}}]},"done":false}`,
			`{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}`,
		))
		defer st.Close()

		deltas := drain(st)
		Expect(deltas[0].ToolCalls).To(HaveLen(2))
		Expect(deltas[0].ToolCalls[0].ID).NotTo(Equal(deltas[0].ToolCalls[1].ID))
	})
})

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/turnpike-ai/turnpike/pkg/artifact"
	"github.com/turnpike-ai/turnpike/pkg/llm"
	"github.com/turnpike-ai/turnpike/pkg/storage"
	"github.com/turnpike-ai/turnpike/pkg/storage/inmemory"
	"github.com/turnpike-ai/turnpike/pkg/tools"
	"github.com/turnpike-ai/turnpike/pkg/worker"
)

// scriptedStream replays a fixed delta sequence.
type scriptedStream struct {
	deltas []*llm.Delta
	i      int
}

func (s *scriptedStream) Next() (*llm.Delta, error) {
	if s.i >= len(s.deltas) {
		return nil, nil
	}
	d := s.deltas[s.i]
	s.i++
	return d, nil
}

func (s *scriptedStream) Close() error { return nil }

type scriptedProvider struct {
	deltas []*llm.Delta
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Stream(_ context.Context, _ *llm.ChatRequest) (llm.Stream, error) {
	return &scriptedStream{deltas: p.deltas}, nil
}

var _ = Describe("Handlers", func() {
	var (
		server   *Server
		storer   *inmemory.Driver
		registry *tools.Registry
		pool     *worker.Pool
	)

	BeforeEach(func() {
		logger := zap.NewNop()
		storer = inmemory.NewDriver()

		var err error
		registry, err = tools.NewRegistry(context.Background(), "", logger)
		Expect(err).NotTo(HaveOccurred())

		pool, err = worker.NewPool(&worker.Config{Driver: storer, Logger: logger})
		Expect(err).NotTo(HaveOccurred())

		provider := &scriptedProvider{deltas: []*llm.Delta{
			{ContentText: "Hello "},
			{ContentText: "world"},
			{FinishReason: llm.FinishStop, Usage: &llm.Usage{PromptTokens: 3, CompletionTokens: 7}},
		}}

		server = NewServer(Config{
			ListenAddr:    ":0",
			ProviderName:  "scripted",
			Model:         "test-model",
			MaxToolRounds: 1,
			ToolTimeout:   time.Second,
		}, provider, registry, storer, pool, logger)
	})

	AfterEach(func() {
		pool.Close()
		Expect(registry.Close()).To(Succeed())
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			req, err := http.NewRequest(http.MethodGet, "/ping", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(`"pong"`))
		})
	})

	Describe("POST /v1/chat", func() {
		chatRequest := func(body []byte) *http.Request {
			req, err := http.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")
			return req
		}

		It("rejects a malformed body", func() {
			resp, err := server.app.Test(chatRequest([]byte("not json")))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects an empty message list", func() {
			resp, err := server.app.Test(chatRequest([]byte(`{"messages":[]}`)))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("streams content frames followed by the finish frame", func() {
			body, err := json.Marshal(ChatRequest{
				Messages:  []ChatMessage{{Role: "user", Content: "hi"}},
				SessionID: "s-chat",
			})
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(chatRequest(body), 5000)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/plain; charset=utf-8"))

			frames, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(frames)).To(Equal(
				"0:\"Hello \"\n" +
					"0:\"world\"\n" +
					`e:{"finishReason":"stop","usage":{"promptTokens":3,"completionTokens":7}}` + "\n",
			))
		})

		It("archives the completed turn under its session", func() {
			body, err := json.Marshal(ChatRequest{
				Messages:  []ChatMessage{{Role: "user", Content: "hi"}},
				SessionID: "s-archive",
			})
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(chatRequest(body), 5000)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			_, err = io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() int {
				records, err := storer.BySession(context.Background(), "s-archive")
				if err != nil {
					return 0
				}
				return len(records)
			}).Should(Equal(1))

			records, err := storer.BySession(context.Background(), "s-archive")
			Expect(err).NotTo(HaveOccurred())
			record := records[0]
			Expect(record.FinishReason).To(Equal(llm.FinishStop))
			Expect(record.Model).To(Equal("test-model"))
			Expect(record.Transcript).To(HaveLen(2))
			Expect(record.Transcript[1].Role).To(Equal("assistant"))
		})
	})

	Describe("GET /v1/tools", func() {
		It("lists the builtin tool catalog", func() {
			req, err := http.NewRequest(http.MethodGet, "/v1/tools", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var parsed struct {
				Tools []llm.ToolDef `json:"tools"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&parsed)).To(Succeed())

			names := make([]string, 0, len(parsed.Tools))
			for _, def := range parsed.Tools {
				names = append(names, def.Name)
			}
			Expect(names).To(ContainElements("time.now", "echo"))
		})
	})

	Describe("GET /v1/turns/:id", func() {
		It("returns 404 for an unknown turn", func() {
			req, err := http.NewRequest(http.MethodGet, "/v1/turns/nope", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("returns an archived turn", func() {
			record := &storage.TurnRecord{
				ID:           "t1",
				SessionID:    "s1",
				FinishReason: llm.FinishStop,
				CreatedAt:    time.Now(),
			}
			Expect(storer.Put(context.Background(), record)).To(Succeed())

			req, err := http.NewRequest(http.MethodGet, "/v1/turns/t1", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var got storage.TurnRecord
			Expect(json.NewDecoder(resp.Body).Decode(&got)).To(Succeed())
			Expect(got.ID).To(Equal("t1"))
			Expect(got.SessionID).To(Equal("s1"))
		})
	})

	Describe("GET /v1/turns/:id/artifacts", func() {
		It("returns the turn's classified artifacts", func() {
			record := &storage.TurnRecord{
				ID:        "t2",
				SessionID: "s1",
				Artifacts: []artifact.Artifact{{
					ID:      "a1",
					Type:    artifact.TypeCode,
					Content: "print('hi')",
				}},
				CreatedAt: time.Now(),
			}
			Expect(storer.Put(context.Background(), record)).To(Succeed())

			req, err := http.NewRequest(http.MethodGet, "/v1/turns/t2/artifacts", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var parsed struct {
				TurnID    string              `json:"turn_id"`
				Artifacts []artifact.Artifact `json:"artifacts"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&parsed)).To(Succeed())
			Expect(parsed.TurnID).To(Equal("t2"))
			Expect(parsed.Artifacts).To(HaveLen(1))
			Expect(parsed.Artifacts[0].Type).To(Equal(artifact.TypeCode))
		})
	})

	Describe("GET /v1/sessions/:id/turns", func() {
		It("lists session turns oldest first", func() {
			base := time.Now()
			for i, id := range []string{"t1", "t2"} {
				record := &storage.TurnRecord{
					ID:           id,
					SessionID:    "s1",
					FinishReason: llm.FinishStop,
					CreatedAt:    base.Add(time.Duration(i) * time.Minute),
				}
				Expect(storer.Put(context.Background(), record)).To(Succeed())
			}

			req, err := http.NewRequest(http.MethodGet, "/v1/sessions/s1/turns", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var parsed struct {
				SessionID string        `json:"session_id"`
				Turns     []TurnSummary `json:"turns"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&parsed)).To(Succeed())
			Expect(parsed.SessionID).To(Equal("s1"))
			Expect(parsed.Turns).To(HaveLen(2))
			Expect(parsed.Turns[0].ID).To(Equal("t1"))
			Expect(parsed.Turns[1].ID).To(Equal("t2"))
		})
	})
})

package inmemory_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/turnpike-ai/turnpike/pkg/llm"
	"github.com/turnpike-ai/turnpike/pkg/storage"
	"github.com/turnpike-ai/turnpike/pkg/storage/inmemory"
)

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		driver *inmemory.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
	})

	record := func(id, session string, at time.Time) *storage.TurnRecord {
		return &storage.TurnRecord{
			ID:           id,
			SessionID:    session,
			Model:        "llama3.2",
			FinishReason: "stop",
			Usage:        llm.Usage{PromptTokens: 3, CompletionTokens: 7},
			Transcript:   []llm.Message{llm.NewTextMessage("user", "hi")},
			CreatedAt:    at,
		}
	}

	It("round-trips a record", func() {
		in := record("t1", "s1", time.Now())
		in.Truncated = true
		Expect(driver.Put(ctx, in)).To(Succeed())

		out, err := driver.Get(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.SessionID).To(Equal("s1"))
		Expect(out.Usage.CompletionTokens).To(Equal(7))
		Expect(out.Truncated).To(BeTrue())
	})

	It("returns NotFoundError for an unknown id", func() {
		_, err := driver.Get(ctx, "missing")

		var notFound storage.NotFoundError
		Expect(errors.As(err, &notFound)).To(BeTrue())
		Expect(notFound.ID).To(Equal("missing"))
	})

	It("rejects nil records and records without ids", func() {
		Expect(driver.Put(ctx, nil)).To(HaveOccurred())
		Expect(driver.Put(ctx, &storage.TurnRecord{SessionID: "s1"})).To(HaveOccurred())
	})

	It("replaces a record stored under the same id", func() {
		Expect(driver.Put(ctx, record("t1", "s1", time.Now()))).To(Succeed())

		updated := record("t1", "s1", time.Now())
		updated.FinishReason = "tool_calls"
		Expect(driver.Put(ctx, updated)).To(Succeed())

		out, err := driver.Get(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.FinishReason).To(Equal("tool_calls"))
	})

	It("does not expose its internal records to callers", func() {
		in := record("t1", "s1", time.Now())
		Expect(driver.Put(ctx, in)).To(Succeed())
		in.Model = "mutated after put"

		out, err := driver.Get(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Model).To(Equal("llama3.2"))

		out.Model = "mutated after get"
		again, err := driver.Get(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Model).To(Equal("llama3.2"))
	})

	It("lists a session's turns oldest first", func() {
		base := time.Now()
		Expect(driver.Put(ctx, record("t2", "s1", base.Add(time.Minute)))).To(Succeed())
		Expect(driver.Put(ctx, record("t1", "s1", base))).To(Succeed())
		Expect(driver.Put(ctx, record("t3", "s2", base))).To(Succeed())

		records, err := driver.BySession(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
		Expect(records[0].ID).To(Equal("t1"))
		Expect(records[1].ID).To(Equal("t2"))
	})

	It("returns no records for an unknown session", func() {
		records, err := driver.BySession(ctx, "nobody")
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(BeEmpty())
	})
})

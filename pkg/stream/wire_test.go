package stream

import (
	"bytes"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/turnpike-ai/turnpike/pkg/llm"
)

// failAfterWriter fails every Write once n bytes have been accepted.
type failAfterWriter struct {
	n   int
	buf bytes.Buffer
}

func (w *failAfterWriter) Write(p []byte) (int, error) {
	if w.buf.Len() >= w.n {
		return 0, errors.New("connection reset by peer")
	}
	return w.buf.Write(p)
}

var _ = Describe("WireEncoder", func() {
	var (
		sink *bytes.Buffer
		enc  *WireEncoder
	)

	BeforeEach(func() {
		sink = &bytes.Buffer{}
		enc = NewWireEncoder(sink)
	})

	It("emits content frames as JSON-encoded strings", func() {
		enc.Content(`say "hi"` + "\n")
		Expect(sink.String()).To(Equal(`0:"say \"hi\"\n"` + "\n"))
	})

	It("skips empty content", func() {
		enc.Content("")
		Expect(sink.Len()).To(BeZero())
	})

	It("emits the terminal frame with reason and usage", func() {
		enc.Finish(llm.FinishStop, llm.Usage{PromptTokens: 3, CompletionTokens: 7})
		Expect(sink.String()).To(Equal(
			`e:{"finishReason":"stop","usage":{"promptTokens":3,"completionTokens":7}}` + "\n",
		))
	})

	It("emits exactly one terminal frame, strictly last", func() {
		enc.Content("hello ")
		enc.Finish(llm.FinishStop, llm.Usage{})
		enc.Finish(llm.FinishToolCalls, llm.Usage{})
		enc.Content("late")

		lines := strings.Split(strings.TrimRight(sink.String(), "\n"), "\n")
		Expect(lines).To(HaveLen(2))
		Expect(lines[0]).To(HavePrefix("0:"))
		Expect(lines[1]).To(HavePrefix("e:"))
		Expect(enc.Finished()).To(BeTrue())
	})

	Context("when the sink fails", func() {
		It("turns every later emission into a no-op", func() {
			failing := &failAfterWriter{n: 1}
			enc := NewWireEncoder(failing)

			enc.Content("first ")
			Expect(enc.Err()).To(BeNil())

			enc.Content("second ")
			Expect(enc.Err()).To(HaveOccurred())

			before := failing.buf.String()
			enc.Content("third ")
			enc.Finish(llm.FinishStop, llm.Usage{})
			Expect(failing.buf.String()).To(Equal(before))
		})
	})
})

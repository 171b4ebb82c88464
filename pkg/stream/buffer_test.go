package stream

import (
	"strings"
	"unicode"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// emitAll feeds every delta through the buffer and returns the emitted
// frames plus the final flush.
func emitAll(buf *ContentBuffer, deltas []string) []string {
	var frames []string
	for _, delta := range deltas {
		if out := buf.Write(delta); out != "" {
			frames = append(frames, out)
		}
	}
	if out := buf.Flush(); out != "" {
		frames = append(frames, out)
	}
	return frames
}

var _ = Describe("ContentBuffer", func() {
	var buf *ContentBuffer

	BeforeEach(func() {
		buf = &ContentBuffer{}
	})

	It("releases held text at word boundaries", func() {
		frames := emitAll(buf, []string{"Here ", "is ", "your answer."})
		Expect(frames).To(Equal([]string{"Here is ", "your answer."}))
	})

	It("never splits a word across frames", func() {
		frames := emitAll(buf, []string{"Hel", "lo wor", "ld"})
		Expect(frames).To(Equal([]string{"Hello ", "world"}))
	})

	It("reproduces the input exactly when frames are concatenated", func() {
		deltas := []string{"The quick ", "brown", " fox jum", "ps over\nthe ", "lazy", " ", "dog."}
		frames := emitAll(buf, deltas)
		Expect(strings.Join(frames, "")).To(Equal(strings.Join(deltas, "")))
	})

	It("only ends a frame mid-word at end of stream", func() {
		deltas := []string{"str", "eam", "ing to", "kens arr", "ive in pie", "ces"}
		frames := emitAll(buf, deltas)
		for _, frame := range frames[:len(frames)-1] {
			last := []rune(frame)
			Expect(unicode.IsSpace(last[len(last)-1])).To(BeTrue(),
				"frame %q should end at a word boundary", frame)
		}
		Expect(strings.Join(frames, "")).To(Equal(strings.Join(deltas, "")))
	})

	It("ignores empty deltas", func() {
		Expect(buf.Write("")).To(Equal(""))
		Expect(buf.Write("hello ")).To(Equal(""))
		Expect(buf.Write("")).To(Equal(""))
		Expect(buf.Flush()).To(Equal("hello "))
	})

	It("flushes a trailing partial word", func() {
		Expect(buf.Write("incompl")).To(Equal(""))
		Expect(buf.Flush()).To(Equal("incompl"))
	})

	It("handles multi-byte runes around boundaries", func() {
		deltas := []string{"héllo ", "wörld", "!"}
		frames := emitAll(buf, deltas)
		Expect(strings.Join(frames, "")).To(Equal("héllo wörld!"))
		Expect(frames[0]).To(Equal("héllo "))
	})

	It("is empty after Flush", func() {
		buf.Write("some text")
		buf.Flush()
		Expect(buf.Flush()).To(Equal(""))
	})
})

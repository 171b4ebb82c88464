package tools

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Builtin service", func() {
	var (
		svc Service
		ctx context.Context
	)

	BeforeEach(func() {
		svc = NewBuiltinService()
		ctx = context.Background()
	})

	It("lists its tools with object schemas", func() {
		defs, err := svc.Tools(ctx)
		Expect(err).NotTo(HaveOccurred())

		names := make([]string, 0, len(defs))
		for _, def := range defs {
			names = append(names, def.Name)
			Expect(def.InputSchema).To(HaveKeyWithValue("type", "object"))
		}
		Expect(names).To(ContainElements("time.now", "echo"))
	})

	It("echoes its text argument", func() {
		result, err := svc.Call(ctx, "echo", map[string]any{"text": "ping"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeFalse())
		Expect(result.Text()).To(Equal("ping"))
	})

	It("reports a missing echo argument as a tool error", func() {
		result, err := svc.Call(ctx, "echo", map[string]any{})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeTrue())
	})

	It("returns the current time in RFC 3339", func() {
		result, err := svc.Call(ctx, "time.now", map[string]any{})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeFalse())

		_, parseErr := time.Parse(time.RFC3339, result.Text())
		Expect(parseErr).NotTo(HaveOccurred())
	})

	It("reports an unknown timezone as a tool error", func() {
		result, err := svc.Call(ctx, "time.now", map[string]any{"timezone": "Nowhere/Void"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeTrue())
	})

	It("errors on unknown tool names", func() {
		_, err := svc.Call(ctx, "nope", map[string]any{})
		Expect(err).To(HaveOccurred())
	})
})

package tools

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	writeToml := func(content string) string {
		path := filepath.Join(dir, "tools.toml")
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	It("returns defaults when no path is given", func() {
		cfg, err := LoadConfig("")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Builtin.Enabled).To(BeTrue())
		Expect(cfg.MCP).To(BeEmpty())
	})

	It("returns defaults when the file does not exist", func() {
		cfg, err := LoadConfig(filepath.Join(dir, "missing.toml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Builtin.Enabled).To(BeTrue())
	})

	It("parses builtin and mcp sections", func() {
		path := writeToml(`
[builtin]
enabled = false

[[mcp]]
name = "search"
endpoint = "http://localhost:9001/mcp"

[[mcp]]
name = "files"
endpoint = "http://localhost:9002/mcp"
`)
		cfg, err := LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Builtin.Enabled).To(BeFalse())
		Expect(cfg.MCP).To(HaveLen(2))
		Expect(cfg.MCP[0].Name).To(Equal("search"))
		Expect(cfg.MCP[1].Endpoint).To(Equal("http://localhost:9002/mcp"))
	})

	It("rejects an mcp server without a name", func() {
		path := writeToml(`
[[mcp]]
endpoint = "http://localhost:9001/mcp"
`)
		_, err := LoadConfig(path)
		Expect(err).To(MatchError(ContainSubstring("name is required")))
	})

	It("rejects duplicate mcp server names", func() {
		path := writeToml(`
[[mcp]]
name = "twin"
endpoint = "http://localhost:9001/mcp"

[[mcp]]
name = "twin"
endpoint = "http://localhost:9002/mcp"
`)
		_, err := LoadConfig(path)
		Expect(err).To(MatchError(ContainSubstring("duplicate")))
	})

	It("rejects the reserved builtin name", func() {
		path := writeToml(`
[[mcp]]
name = "builtin"
endpoint = "http://localhost:9001/mcp"
`)
		_, err := LoadConfig(path)
		Expect(err).To(MatchError(ContainSubstring("reserved")))
	})
})

package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/turnpike-ai/turnpike/pkg/config"
)

var _ = Describe("Configer", func() {
	var (
		dir    string
		cfger  *config.Configer
		target string
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()

		var err error
		cfger, err = config.NewConfiger(dir)
		Expect(err).NotTo(HaveOccurred())
		target = cfger.GetTarget()
		Expect(target).To(Equal(filepath.Join(dir, "config.toml")))
	})

	It("loads defaults when no config file exists", func() {
		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.Listen).To(Equal(":8080"))
		Expect(cfg.Provider.Name).To(Equal("ollama"))
		Expect(cfg.Chat.MaxToolRounds).To(Equal(uint(1)))
		Expect(cfg.Storage.Driver).To(Equal("memory"))
		Expect(cfg.EventStream.Topic).To(Equal("turnpike.turns"))
	})

	It("fills unset fields with defaults when loading a partial file", func() {
		partial := "[provider]\nmodel = \"qwen2.5\"\n"
		Expect(os.WriteFile(target, []byte(partial), 0o600)).To(Succeed())

		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Provider.Model).To(Equal("qwen2.5"))
		Expect(cfg.Provider.Upstream).To(Equal("http://localhost:11434"))
		Expect(cfg.Server.Listen).To(Equal(":8080"))
	})

	It("round-trips a config through SaveConfig and LoadConfig", func() {
		cfg := config.NewDefaultConfig()
		cfg.Server.Listen = ":9999"
		cfg.Storage.Driver = "sqlite"
		Expect(cfger.SaveConfig(cfg)).To(Succeed())

		loaded, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Server.Listen).To(Equal(":9999"))
		Expect(loaded.Storage.Driver).To(Equal("sqlite"))
	})

	It("sets and gets values by dotted key", func() {
		Expect(cfger.SetConfigValue("provider.model", "mistral")).To(Succeed())
		Expect(cfger.SetConfigValue("tools.watch", "false")).To(Succeed())

		value, err := cfger.GetConfigValue("provider.model")
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("mistral"))

		value, err = cfger.GetConfigValue("tools.watch")
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("false"))
	})

	It("rejects unknown keys", func() {
		Expect(cfger.SetConfigValue("provider.api_key", "sk-nope")).To(HaveOccurred())

		_, err := cfger.GetConfigValue("no.such.key")
		Expect(err).To(MatchError(ContainSubstring("unknown config key")))
	})

	It("rejects malformed values for typed keys", func() {
		Expect(cfger.SetConfigValue("server.debug", "maybe")).To(HaveOccurred())
		Expect(cfger.SetConfigValue("chat.max_tool_rounds", "-1")).To(HaveOccurred())
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("accepts the current version", func() {
		cfg, err := config.ParseConfigTOML([]byte("version = 0\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Version).To(Equal(config.CurrentV))
	})

	It("rejects unsupported versions", func() {
		_, err := config.ParseConfigTOML([]byte("version = 7\n"))
		Expect(err).To(MatchError(ContainSubstring("unsupported config version")))
	})

	It("rejects malformed TOML", func() {
		_, err := config.ParseConfigTOML([]byte("not toml ["))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ValidConfigKeys", func() {
	It("covers every key the get and set paths accept", func() {
		keys := config.ValidConfigKeys()
		Expect(keys).NotTo(BeEmpty())
		for _, key := range keys {
			Expect(config.IsValidConfigKey(key)).To(BeTrue(), key)
		}
		Expect(keys).To(ContainElements("server.listen", "storage.driver", "event_stream.topic"))
	})
})

// Package servecmder provides the serve command for running the chat server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/turnpike-ai/turnpike/api"
	"github.com/turnpike-ai/turnpike/pkg/config"
	"github.com/turnpike-ai/turnpike/pkg/eventstream"
	eventkafka "github.com/turnpike-ai/turnpike/pkg/eventstream/kafka"
	"github.com/turnpike-ai/turnpike/pkg/eventstream/nop"
	"github.com/turnpike-ai/turnpike/pkg/llm/provider"
	"github.com/turnpike-ai/turnpike/pkg/logger"
	"github.com/turnpike-ai/turnpike/pkg/storage"
	"github.com/turnpike-ai/turnpike/pkg/storage/inmemory"
	"github.com/turnpike-ai/turnpike/pkg/storage/postgres"
	"github.com/turnpike-ai/turnpike/pkg/storage/sqlite"
	"github.com/turnpike-ai/turnpike/pkg/tools"
	"github.com/turnpike-ai/turnpike/pkg/worker"
)

type ServeCommander struct {
	listen        string
	providerType  string
	upstream      string
	model         string
	maxToolRounds uint
	storageDriver string
	sqlitePath    string
	postgresDSN   string
	toolsConfig   string
	debug         bool

	v      *viper.Viper
	logger *zap.Logger
}

const serveLongDesc string = `Run the Turnpike chat server.

The server exposes a streaming chat endpoint backed by the configured
language-model provider and tool services, plus read endpoints over
archived turns and artifacts.

Configuration precedence: flags, then TURNPIKE_* environment variables,
then config.toml in the .turnpike/ directory, then built-in defaults.`

const serveShortDesc string = "Run the Turnpike chat server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, config.ServeFlags, []string{
				config.FlagListen,
				config.FlagProvider,
				config.FlagUpstream,
				config.FlagModel,
				config.FlagMaxToolRounds,
				config.FlagStorageDriver,
				config.FlagSQLite,
				config.FlagPostgres,
				config.FlagToolsConfig,
			})

			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.ServeFlags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagProvider, &cmder.providerType)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagModel, &cmder.model)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagMaxToolRounds, &cmder.maxToolRounds)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagToolsConfig, &cmder.toolsConfig)

	return cmd
}

func (c *ServeCommander) run() error {
	c.logger = logger.NewLogger(c.debug || c.v.GetBool("server.debug"))
	defer c.logger.Sync()

	ctx := context.Background()

	// Create shared storer
	storer, err := c.createStorer(ctx)
	if err != nil {
		return err
	}
	defer storer.Close()

	// Create the language-model provider
	prov, err := provider.New(c.v.GetString("provider.name"), provider.Config{
		BaseURL: c.v.GetString("provider.upstream"),
		APIKey:  c.v.GetString("provider.api_key"),
	})
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}

	// Build the tool registry and start watching its config
	registry, err := tools.NewRegistry(ctx, c.v.GetString("tools.config_path"), c.logger)
	if err != nil {
		return fmt.Errorf("creating tool registry: %w", err)
	}
	defer registry.Close()

	if c.v.GetBool("tools.watch") {
		if err := registry.Watch(); err != nil {
			return fmt.Errorf("watching tools config: %w", err)
		}
	}

	// Event publisher, nop unless Kafka is enabled
	publisher, err := c.createPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	// Archive worker pool
	pool, err := worker.NewPool(&worker.Config{
		Driver:    storer,
		Publisher: publisher,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}

	apiConfig := api.Config{
		ListenAddr:    c.v.GetString("server.listen"),
		ProviderName:  c.v.GetString("provider.name"),
		Model:         c.v.GetString("provider.model"),
		MaxToolRounds: c.v.GetInt("chat.max_tool_rounds"),
		ToolTimeout:   time.Duration(c.v.GetUint("chat.tool_timeout_secs")) * time.Second,
	}
	server := api.NewServer(apiConfig, prov, registry, storer, pool, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		pool.Close()
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		if err := server.Shutdown(); err != nil {
			c.logger.Warn("server shutdown", zap.Error(err))
		}
		// Drain in-flight archive jobs after the server has stopped
		// accepting turns.
		pool.Close()
		return nil
	}
}

func (c *ServeCommander) createStorer(ctx context.Context) (storage.Driver, error) {
	switch driver := c.v.GetString("storage.driver"); driver {
	case "sqlite":
		path := c.v.GetString("storage.sqlite_path")
		if path == "" {
			path = ":memory:"
		}
		storer, err := sqlite.NewDriver(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storer: %w", err)
		}
		c.logger.Info("using SQLite storage", zap.String("path", path))
		return storer, nil

	case "postgres":
		dsn := c.v.GetString("storage.postgres_dsn")
		if dsn == "" {
			return nil, fmt.Errorf("storage.postgres_dsn is required for the postgres driver")
		}
		storer, err := postgres.NewDriver(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storer: %w", err)
		}
		c.logger.Info("using PostgreSQL storage")
		return storer, nil

	case "", "memory":
		c.logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %q (memory, sqlite, postgres)", driver)
	}
}

func (c *ServeCommander) createPublisher() (eventstream.Publisher, error) {
	if !c.v.GetBool("event_stream.enabled") {
		return nop.NewPublisher(), nil
	}

	publisher, err := eventkafka.NewPublisher(eventkafka.Config{
		Brokers: c.v.GetStringSlice("event_stream.brokers"),
		Topic:   c.v.GetString("event_stream.topic"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	c.logger.Info("event streaming enabled",
		zap.Strings("brokers", c.v.GetStringSlice("event_stream.brokers")),
		zap.String("topic", c.v.GetString("event_stream.topic")),
	)
	return publisher, nil
}

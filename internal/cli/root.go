package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/server"
)

const serviceName = "orbit-backend"

// flags are command line overrides for the environment configuration.
type flags struct {
	port         string
	host         string
	storeDriver  string
	storePath    string
	storeDSN     string
	aiProvider   string
	engine       string
	templatesDir string
	logLevel     string
	dev          bool
	headless     bool
}

// NewRootCommand creates the root command for the Orbit backend.
func NewRootCommand(info VersionInfo) *cobra.Command {
	var f flags
	var showVersion bool

	rootCmd := &cobra.Command{
		Use:   "orbit-server",
		Short: "Orbit browser backend",
		Long: `Orbit serves the browser shell: accounts, sessions and tabs, automation
workflows and AI assistance over HTTP and WebSocket.

Configuration comes from the environment; flags override it.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(cmd, info)
				return nil
			}
			return serve(cmd, &f, info)
		},
	}

	f.bind(rootCmd)
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "print version information and exit")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, &f, info)
		},
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(NewVersionCommand(info))
	rootCmd.AddCommand(NewTemplatesCommand())
	return rootCmd
}

// bind registers the overrides as persistent flags of cmd.
func (f *flags) bind(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.port, "port", "p", "", "HTTP port (PORT)")
	pf.StringVar(&f.host, "host", "", "listen address (HOST)")
	pf.StringVar(&f.storeDriver, "store-driver", "", "document store: memory, badger or postgres (STORE_DRIVER)")
	pf.StringVar(&f.storePath, "store-path", "", "badger data directory (STORE_PATH)")
	pf.StringVar(&f.storeDSN, "store-dsn", "", "postgres connection string (STORE_DSN)")
	pf.StringVar(&f.aiProvider, "ai-provider", "", "AI provider: openai or disabled (AI_PROVIDER)")
	pf.StringVar(&f.engine, "engine", "", "playback engine: static or playwright (AUTOMATION_ENGINE)")
	pf.StringVar(&f.templatesDir, "templates-dir", "", "extra workflow templates (AUTOMATION_TEMPLATES_DIR)")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error (LOG_LEVEL)")
	pf.BoolVar(&f.dev, "dev", false, "development mode: colored debug logs (LOG_DEV)")
	pf.BoolVar(&f.headless, "headless", true, "run the browser headless (AUTOMATION_HEADLESS)")
}

// loadConfig reads the environment and applies flags that were set.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, f, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, f *flags, cfg *config.Config) {
	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}

	if changed("port") {
		cfg.Server.Port = f.port
	}
	if changed("host") {
		cfg.Server.Host = f.host
	}
	if changed("store-driver") {
		cfg.Store.Driver = f.storeDriver
	}
	if changed("store-path") {
		cfg.Store.Path = f.storePath
	}
	if changed("store-dsn") {
		cfg.Store.DSN = f.storeDSN
	}
	if changed("ai-provider") {
		cfg.AI.Provider = f.aiProvider
	}
	if changed("engine") {
		cfg.Automation.Engine = f.engine
	}
	if changed("templates-dir") {
		cfg.Automation.TemplatesDir = f.templatesDir
	}
	if changed("headless") {
		cfg.Automation.Headless = f.headless
	}
	if changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if changed("dev") {
		cfg.Logging.Development = f.dev
		if f.dev && !changed("log-level") {
			cfg.Logging.Level = "debug"
		}
	}
}

func serve(cmd *cobra.Command, f *flags, info VersionInfo) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging, logging.Options{Service: serviceName, Version: info.Version})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to create server", zap.Error(err))
		_ = logger.Sync()
		return err
	}

	logger.Info("Starting Orbit backend",
		zap.String("addr", cfg.Server.Address()),
		zap.String("store", cfg.Store.Driver),
		zap.String("engine", cfg.Automation.Engine),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	runErr := srv.Run(ctx)
	if runErr != nil {
		logger.Error("Server stopped", zap.Error(runErr))
	}
	return errors.Join(runErr, srv.Close())
}

// Execute runs the root command with a background context.
func Execute(info VersionInfo) error {
	return NewRootCommand(info).ExecuteContext(context.Background())
}

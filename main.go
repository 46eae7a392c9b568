package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"contract-hooks/internal/config"
	"contract-hooks/internal/hooks"
	"contract-hooks/internal/logger"
	"contract-hooks/internal/orchestrator"
	"contract-hooks/internal/parser"
)

var (
	// Global flags
	configPath string
	envFile    string
	debug      bool

	cfg *config.Config
	log *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "contract-hooks",
	Short: "Contract-test hooks engine driven by an OpenAPI document",
	Long: `contract-hooks prepares contract-test transactions before they are sent:
it injects auth tokens, synthesizes request bodies from the contract schema,
and rewrites targets so negative-outcome transactions provoke the expected status.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath, envFile)
		if err != nil {
			return err
		}
		if debug {
			cfg.Logging.Debug = true
		}
		log, err = logger.New(logger.Options{Debug: cfg.Logging.Debug, Dir: cfg.Logging.Dir})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

// serveCmd runs the hooks worker
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hooks worker the contract-test runner connects to",
	RunE:  runServe,
}

// inspectCmd lists the endpoints of the contract
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List contract endpoints and whether they require auth",
	RunE:  runInspect,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default: ./.env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(replayCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadRegistry reads the contract named in the config. Failure is fatal for every command.
func loadRegistry() (*parser.Registry, error) {
	doc, err := parser.LoadFile(cfg.Environment.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load contract %s: %w", cfg.Environment.SchemaPath, err)
	}
	registry := parser.Build(doc, parser.BuildOptions{
		AutoDiscovery: cfg.Features.AutoDiscovery,
		Logger:        log,
	})
	log.Info("contract loaded",
		zap.String("path", cfg.Environment.SchemaPath),
		zap.Int("endpoints", len(registry.Endpoints())),
		zap.Int("protected", len(registry.Protected())))
	return registry, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch := orchestrator.FromConfig(cfg, registry, log)
	server := hooks.NewServer(cfg.WorkerAddr(), orch, log)
	return server.ListenAndServe(ctx)
}

func runInspect(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATH\tAUTH\tSUMMARY")
	for _, endpoint := range registry.Endpoints() {
		auth := "-"
		if endpoint.RequiresAuth {
			auth = "required"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", endpoint.Method, endpoint.PathTemplate, auth, endpoint.Summary)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	login, register := orchestrator.AuthEndpoints(cfg, registry)
	fmt.Fprintf(cmd.OutOrStdout(), "\nlogin: %s\nregister: %s\n", login, register)
	return nil
}

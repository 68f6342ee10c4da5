// Package cli wires the service together behind cobra commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentfund/baseline/internal/auth"
	"github.com/agentfund/baseline/internal/baseline"
	"github.com/agentfund/baseline/internal/chain"
	"github.com/agentfund/baseline/internal/config"
	"github.com/agentfund/baseline/internal/server"
	"github.com/agentfund/baseline/internal/storage"
	"github.com/agentfund/baseline/internal/tools"
	"github.com/agentfund/baseline/internal/voting"
)

var (
	configPath string
	dataDir    string
)

// Execute runs the root command.
func Execute() {
	root := &cobra.Command{
		Use:   "baseline",
		Short: "Agent baseline verification and fund allocation service",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for the sqlite database (overrides config)")

	root.AddCommand(serveCmd(), allocateCmd(), resetCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// core holds the wired-up service components.
type core struct {
	store   *storage.Store
	manager *baseline.Manager
	ledger  *voting.Ledger
	gate    *auth.Gate
	cfg     config.Config
	logger  *zap.Logger
}

// buildCore opens the store, hydrates every registry from its persisted
// snapshot, and constructs the core components.
func buildCore() (*core, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := storage.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	ledger := voting.NewLedger(store, logger)
	ballots, err := store.LoadBallots()
	if err != nil {
		store.Close()
		return nil, err
	}
	ledger.Hydrate(ballots)

	manager := baseline.NewManager(store, ledger, cfg.Baseline.PassThreshold, logger)
	sessions, err := store.LoadSessions()
	if err != nil {
		store.Close()
		return nil, err
	}
	manager.Hydrate(sessions)

	gate := auth.NewGate(store, logger)
	bindings, err := store.LoadBindings()
	if err != nil {
		store.Close()
		return nil, err
	}
	gate.Hydrate(bindings)

	return &core{
		store:   store,
		manager: manager,
		ledger:  ledger,
		gate:    gate,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

func (c *core) close() {
	c.store.Close()
	c.logger.Sync()
}

func serveCmd() *cobra.Command {
	var transport, addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the baseline protocol over HTTP or MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore()
			if err != nil {
				return err
			}
			defer c.close()

			if addr != "" {
				c.cfg.Addr = addr
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			switch transport {
			case "stdio":
				c.logger.Info("baseline MCP server starting (stdio)")
				srv := tools.NewMCPServer(c.manager, c.ledger, c.cfg)
				return srv.Run(ctx, &mcp.StdioTransport{})
			case "http":
				return serveHTTP(ctx, c)
			default:
				return fmt.Errorf("unknown transport %q (use http or stdio)", transport)
			}
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "http", "Transport mode: http or stdio")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	return cmd
}

func serveHTTP(ctx context.Context, c *core) error {
	srv := server.New(c.manager, c.ledger, c.gate, c.cfg, c.logger)

	mux := http.NewServeMux()
	mux.Handle("/", srv.Handler())

	// The MCP tool surface is also reachable over streamable HTTP.
	mcpSrv := tools.NewMCPServer(c.manager, c.ledger, c.cfg)
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return mcpSrv
	}, nil))

	httpServer := &http.Server{
		Addr:         c.cfg.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("baseline HTTP server listening", zap.String("addr", c.cfg.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func allocateCmd() *cobra.Command {
	var pool float64
	var minVotes, topN int
	var execute bool

	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Compute the pool allocation from the current vote ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore()
			if err != nil {
				return err
			}
			defer c.close()

			if pool <= 0 {
				pool = c.cfg.Pool.Amount
			}
			if minVotes < 1 {
				minVotes = c.cfg.Pool.MinVotes
			}
			if topN <= 0 {
				topN = c.cfg.Pool.TopN
			}

			allocations, err := voting.CalculateAllocations(c.ledger.Results(), pool, voting.AllocateOptions{
				MinVotes: minVotes,
				TopN:     topN,
			})
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(allocations, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))

			if execute {
				// Recipient wallet resolution is outside this service;
				// the treasury collaborator receives the project id.
				treasury := chain.NewNoopTreasury(c.logger)
				for _, a := range allocations {
					sig, err := treasury.Transfer(cmd.Context(), a.ProjectID, a.Allocation)
					if err != nil {
						return fmt.Errorf("transfer to %s: %w", a.ProjectID, err)
					}
					fmt.Printf("%s -> %.4f SOL (%s)\n", a.ProjectID, a.Allocation, sig)
				}
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&pool, "pool", 0, "Pool amount in SOL (0 uses config)")
	cmd.Flags().IntVar(&minVotes, "min-votes", 0, "Minimum votes for eligibility (0 uses config)")
	cmd.Flags().IntVar(&topN, "top-n", 0, "Keep only the N largest allocations (0 uses config)")
	cmd.Flags().BoolVar(&execute, "execute", false, "Execute transfers through the treasury collaborator")
	return cmd
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear all recorded ballots (maintenance only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore()
			if err != nil {
				return err
			}
			defer c.close()

			if err := c.ledger.Reset(); err != nil {
				return err
			}
			fmt.Println("vote ledger cleared")
			return nil
		},
	}
}

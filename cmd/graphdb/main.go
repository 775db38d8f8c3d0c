// Package main provides the graphdb CLI entry point.
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/config"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/db"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/logging"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/persistence"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/plan"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/tenancy"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "graphdb",
		Short: "graphdb - embeddable property-graph database",
		Long: `graphdb is an embeddable property-graph database: a Cypher-subset
query language over a node/edge store, durable through a write-ahead log,
with per-tenant isolation and CALL...YIELD procedures.`,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (overrides GRAPHDB_* env vars where set)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("graphdb v%s\n", version)
		},
	})

	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive Cypher shell against a local data directory",
		RunE:  runShell,
	}
	shellCmd.Flags().String("data-dir", "", "Data directory (empty = in-memory, no durability)")
	shellCmd.Flags().String("tenant", tenancy.DefaultTenantID, "Tenant to query")
	rootCmd.AddCommand(shellCmd)

	explainCmd := &cobra.Command{
		Use:   "explain [query]",
		Short: "Print the operator tree a query would run without executing it",
		Args:  cobra.ExactArgs(1),
		RunE:  runExplain,
	}
	explainCmd.Flags().String("data-dir", "", "Data directory (empty = in-memory)")
	explainCmd.Flags().String("tenant", tenancy.DefaultTenantID, "Tenant to query")
	rootCmd.AddCommand(explainCmd)

	checkpointCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Flush a tenant's KV store and WAL and append a checkpoint marker",
		RunE:  runCheckpoint,
	}
	checkpointCmd.Flags().String("data-dir", "", "Data directory")
	checkpointCmd.Flags().String("tenant", tenancy.DefaultTenantID, "Tenant to checkpoint")
	rootCmd.AddCommand(checkpointCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start a network-facing graphdb server (not yet implemented)",
		RunE:  runServe,
	}
	serveCmd.Flags().String("data-dir", "./data", "Data directory")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openDB loads --config (or GRAPHDB_* environment settings when --config is
// unset) for WAL tuning and logging, and opens a DB rooted at the command's
// --data-dir flag (an empty flag means in-memory, no durability).
func openDB(cmd *cobra.Command) (*db.DB, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFromFileOrEnv(configPath)
	if err != nil {
		return nil, err
	}

	dataDir, _ := cmd.Flags().GetString("data-dir")
	cfg.Persistence.DataDir = dataDir
	if dataDir != "" {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger := logging.New(cfg.Logging.Level)
	if cfg.Logging.Format == "json" {
		logger = logging.NewJSON(cfg.Logging.Level)
	}
	return db.Open(db.Options{
		DataDir: dataDir,
		WAL:     walConfigFrom(cfg.Persistence),
		Logger:  logger,
	})
}

func walConfigFrom(p config.PersistenceConfig) persistence.WALConfig {
	interval := p.SyncInterval
	if p.SyncMode == "never" {
		interval = 0
	}
	return persistence.WALConfig{
		SyncMode:          p.SyncMode == "always",
		BatchSyncInterval: interval,
		MaxSegmentBytes:   p.SegmentMaxBytes,
	}
}

func runShell(cmd *cobra.Command, args []string) error {
	tenant, _ := cmd.Flags().GetString("tenant")
	d, err := openDB(cmd)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer d.Close()

	fmt.Println("graphdb interactive shell. Type 'exit' or Ctrl+D to quit.")
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		d.Close()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("graphdb> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		rows, err := d.Execute(tenant, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		printRows(rows)
	}
	return scanner.Err()
}

// printRows renders each row's bindings sorted by key, so output is stable
// across runs even though plan.Row is a map.
func printRows(rows []plan.Row) {
	for _, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, formatBinding(row[k])))
		}
		fmt.Println(strings.Join(parts, ", "))
	}
	fmt.Printf("(%d rows)\n", len(rows))
}

func formatBinding(b plan.Binding) string {
	switch b.Kind {
	case plan.BindNode:
		return fmt.Sprintf("(%d:%v)", b.Node.ID, b.Node.Labels)
	case plan.BindEdge:
		return fmt.Sprintf("[%d:%s]", b.Edge.ID, b.Edge.Type)
	default:
		return b.Value.String()
	}
}

func runExplain(cmd *cobra.Command, args []string) error {
	tenant, _ := cmd.Flags().GetString("tenant")
	d, err := openDB(cmd)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer d.Close()

	out, err := d.Explain(tenant, args[0])
	if err != nil {
		return fmt.Errorf("explain: %w", err)
	}
	fmt.Println(out)
	return nil
}

func runCheckpoint(cmd *cobra.Command, args []string) error {
	tenant, _ := cmd.Flags().GetString("tenant")
	d, err := openDB(cmd)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer d.Close()

	seq, err := d.Checkpoint(tenant)
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	fmt.Printf("checkpointed tenant %q at sequence %d\n", tenant, seq)
	return nil
}

// runServe is a placeholder for a future Bolt/HTTP transport; wiring a
// network listener onto pkg/db is out of scope for the embedded engine
// this CLI otherwise exercises.
func runServe(cmd *cobra.Command, args []string) error {
	return fmt.Errorf("serve: network transport not implemented; use graphdb shell or embed pkg/db directly")
}

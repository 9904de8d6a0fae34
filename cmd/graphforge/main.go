// Package main provides the GraphForge CLI entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/graphforge/graphforge/pkg/config"
	"github.com/graphforge/graphforge/pkg/engine"
	"github.com/graphforge/graphforge/pkg/server"
	"github.com/graphforge/graphforge/pkg/value"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "graphforge",
		Short: "GraphForge - an embeddable property-graph database speaking openCypher",
		Long: `GraphForge is a Cypher query engine and property-graph store
written in Go, embeddable as a library or run as a standalone HTTP server.

It parses a practical subset of openCypher, plans and optimizes it against
live graph statistics, and executes it over a pluggable store (in-memory or
Badger-backed on disk).`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("graphforge v%s\n", version)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the GraphForge HTTP query server",
		RunE:  runServe,
	}
	serveCmd.Flags().String("data-dir", "", "Data directory for persistent storage (empty = in-memory)")
	serveCmd.Flags().Int("port", 0, "HTTP port (0 = use GRAPHFORGE_SERVER_PORT or default)")
	rootCmd.AddCommand(serveCmd)

	queryCmd := &cobra.Command{
		Use:   "query [cypher]",
		Short: "Run a single Cypher query against a data directory and print the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}
	queryCmd.Flags().String("data-dir", "", "Data directory for persistent storage (empty = in-memory)")
	rootCmd.AddCommand(queryCmd)

	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive Cypher shell",
		RunE:  runShell,
	}
	shellCmd.Flags().String("data-dir", "", "Data directory for persistent storage (empty = in-memory)")
	rootCmd.AddCommand(shellCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	port, _ := cmd.Flags().GetInt("port")

	cfg := config.LoadFromEnv()
	if port != 0 {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Engine.ApplyRuntimeMemory()

	fmt.Printf("Starting GraphForge v%s\n", version)
	fmt.Printf("  Data directory: %s\n", dataDirLabel(dataDir))
	fmt.Printf("  HTTP API:       http://%s:%d\n", cfg.Server.Address, cfg.Server.Port)

	engCfg := engine.ConfigFromEnv(cfg)
	engCfg.DataDir = dataDir
	eng, err := engine.Open(engCfg)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	srvCfg := server.DefaultConfig()
	srvCfg.Address = cfg.Server.Address
	srvCfg.Port = cfg.Server.Port
	srvCfg.ReadTimeout = cfg.Server.ReadTimeout
	srvCfg.WriteTimeout = cfg.Server.WriteTimeout

	srv, err := server.New(eng, srvCfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	fmt.Println()
	fmt.Println("Ready. Endpoints:")
	fmt.Printf("  POST http://%s/query\n", srv.Addr())
	fmt.Printf("  GET  http://%s/health\n", srv.Addr())
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}

func runQuery(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")

	eng, err := engine.Open(engineConfigFor(dataDir))
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	result, err := eng.Execute(context.Background(), args[0], nil)
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

func runShell(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")

	eng, err := engine.Open(engineConfigFor(dataDir))
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	fmt.Printf("GraphForge shell (%s). Type 'exit' or Ctrl+D to quit.\n", dataDirLabel(dataDir))
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("cypher> ")
		if !scanner.Scan() {
			fmt.Println()
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		result, err := eng.Execute(context.Background(), line, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		printResult(result)
	}
}

func printResult(result *engine.Result) {
	if len(result.Columns) == 0 {
		fmt.Printf("(%d row(s))\n", len(result.Rows))
		return
	}
	fmt.Println(strings.Join(result.Columns, " | "))
	for _, row := range result.Rows {
		cells := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			v, _ := row.Get(col)
			cells[i] = value.Stringify(v)
		}
		fmt.Println(strings.Join(cells, " | "))
	}
	fmt.Printf("(%d row(s))\n", len(result.Rows))
}

func engineConfigFor(dataDir string) engine.Config {
	cfg := engine.DefaultConfig()
	cfg.DataDir = dataDir
	return cfg
}

func dataDirLabel(dataDir string) string {
	if dataDir == "" {
		return "in-memory"
	}
	return dataDir
}

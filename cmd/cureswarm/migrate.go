package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/LahousseBram/CureSwarm/config"
	"github.com/LahousseBram/CureSwarm/internal/database"
	"github.com/LahousseBram/CureSwarm/internal/seed"
	"github.com/LahousseBram/CureSwarm/internal/store"
	"go.uber.org/zap"
)

// =============================================================================
// Database Migration Commands
// =============================================================================

// runMigrate handles the migrate command and its subcommands
func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage()
		os.Exit(1)
	}

	subcommand := args[0]
	subargs := args[1:]

	switch subcommand {
	case "up":
		runMigrateUp(subargs)
	case "status":
		runMigrateStatus(subargs)
	case "help", "-h", "--help":
		printMigrateUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown migrate subcommand: %s\n", subcommand)
		printMigrateUsage()
		os.Exit(1)
	}
}

// printMigrateUsage prints the usage information for migrate command
func printMigrateUsage() {
	fmt.Println(`Database Migration Commands

Usage:
  cureswarm migrate <subcommand> [options]

Subcommands:
  up        Create tables and load the seed catalog
  status    Show migration and seed status
  help      Show this help message

Options:
  --config <path>     Path to configuration file (YAML)

Examples:
  cureswarm migrate up
  cureswarm migrate up --config /etc/cureswarm/config.yaml
  cureswarm migrate status`)
}

// openStore loads config and opens a migrated-or-not store for migrate commands
func openStore(args []string) (*config.Config, *store.Store, *zap.Logger, func()) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)

	pool, err := database.Open(cfg.Database, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}

	cleanup := func() {
		pool.Close()
		logger.Sync()
	}
	return cfg, store.New(pool, logger), logger, cleanup
}

// runMigrateUp creates all tables and applies the seed catalog
func runMigrateUp(args []string) {
	cfg, st, logger, cleanup := openStore(args)
	defer cleanup()

	if err := st.Migrate(); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Tables migrated")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	catalog, err := seed.Load(cfg.Catalog.MissionPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load mission catalog: %v\n", err)
		os.Exit(1)
	}
	if err := seed.Apply(ctx, st, catalog, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to apply seed catalog: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Seed catalog applied: mission %q, %d divisions, %d tasks\n",
		catalog.Mission.ID, len(catalog.Divisions), len(catalog.Tasks))
}

// runMigrateStatus reports whether the mission catalog has been seeded
func runMigrateStatus(args []string) {
	_, st, _, cleanup := openStore(args)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	missions, err := st.CountMissions(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query missions: %v\n", err)
		os.Exit(1)
	}

	if missions == 0 {
		fmt.Println("Status: not seeded (run 'cureswarm migrate up')")
		return
	}

	stats, err := st.GetStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query stats: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Status: seeded (%d mission(s))\n", missions)
	fmt.Printf("  Tasks:    %d total, %d pending, %d assigned, %d completed\n",
		stats.TasksTotal, stats.TasksPending, stats.TasksAssigned, stats.TasksCompleted)
	fmt.Printf("  Findings: %d total, %d passed QC\n", stats.Findings, stats.FindingsPassed)
	fmt.Printf("  Agents:   %d registered\n", stats.Agents)
}

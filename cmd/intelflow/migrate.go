package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/BaSui01/intelflow/config"
	"github.com/BaSui01/intelflow/internal/migration"
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
	case "down":
		runMigrateDown(subargs)
	case "steps":
		runMigrateSteps(subargs)
	case "status":
		runMigrateStatus(subargs)
	case "version":
		runMigrateVersion(subargs)
	case "goto":
		runMigrateGoto(subargs)
	case "force":
		runMigrateForce(subargs)
	case "reset":
		runMigrateReset(subargs)
	case "info":
		runMigrateInfo(subargs)
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
  intelflow migrate <subcommand> [options]

Subcommands:
  up        Apply all pending migrations
  down      Rollback the last migration
  steps     Apply (positive) or rollback (negative) N migrations
  status    Show migration status
  version   Show current migration version
  goto      Migrate to a specific version
  force     Force set migration version (use with caution)
  reset     Rollback all migrations
  info      Show migrator configuration
  help      Show this help message

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  intelflow migrate up
  intelflow migrate up --config /etc/intelflow/config.yaml
  intelflow migrate down
  intelflow migrate steps -2
  intelflow migrate status
  intelflow migrate goto 1
  intelflow migrate force 0
  intelflow migrate reset`)
}

// createMigrator creates a migrator from command line flags
func createMigrator(fs *flag.FlagSet, args []string) (*migration.DefaultMigrator, error) {
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// If db-type and db-url are provided, use them directly
	if *dbType != "" && *dbURL != "" {
		return migration.NewMigratorFromURL(*dbType, *dbURL)
	}

	// Otherwise, load from config
	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Override database type if specified
	if *dbType != "" {
		cfg.Database.Driver = *dbType
	}

	return migration.NewMigratorFromDatabaseConfig(cfg.Database)
}

// runWithMigrator creates a migrator from flags and runs fn with a CLI bound to it
func runWithMigrator(name string, args []string, failMsg string, fn func(ctx context.Context, cli *migration.CLI) error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	migrator, err := createMigrator(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	if err := fn(context.Background(), migration.NewCLI(migrator)); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", failMsg, err)
		os.Exit(1)
	}
}

// runMigrateUp applies all pending migrations
func runMigrateUp(args []string) {
	runWithMigrator("migrate up", args, "Migration failed", func(ctx context.Context, cli *migration.CLI) error {
		return cli.RunUp(ctx)
	})
}

// runMigrateDown rolls back the last migration, or all with --all
func runMigrateDown(args []string) {
	fs := flag.NewFlagSet("migrate down", flag.ExitOnError)
	all := fs.Bool("all", false, "Rollback all migrations")

	migrator, err := createMigrator(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator)
	ctx := context.Background()

	if *all {
		if err := cli.RunDownAll(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Migration rollback failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := cli.RunDown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Migration rollback failed: %v\n", err)
		os.Exit(1)
	}
}

// runMigrateSteps applies or rolls back a given number of migrations
func runMigrateSteps(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: intelflow migrate steps <n>\n")
		os.Exit(1)
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n == 0 {
		fmt.Fprintf(os.Stderr, "Invalid step count: %s\n", args[0])
		os.Exit(1)
	}

	runWithMigrator("migrate steps", args[1:], "Migration failed", func(ctx context.Context, cli *migration.CLI) error {
		return cli.RunSteps(ctx, n)
	})
}

// runMigrateStatus shows the status of all migrations
func runMigrateStatus(args []string) {
	runWithMigrator("migrate status", args, "Failed to get status", func(ctx context.Context, cli *migration.CLI) error {
		return cli.RunStatus(ctx)
	})
}

// runMigrateVersion shows the current migration version
func runMigrateVersion(args []string) {
	runWithMigrator("migrate version", args, "Failed to get version", func(ctx context.Context, cli *migration.CLI) error {
		return cli.RunVersion(ctx)
	})
}

// runMigrateGoto migrates to a specific version
func runMigrateGoto(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: intelflow migrate goto <version>\n")
		os.Exit(1)
	}

	version, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid version number: %s\n", args[0])
		os.Exit(1)
	}

	runWithMigrator("migrate goto", args[1:], "Migration failed", func(ctx context.Context, cli *migration.CLI) error {
		return cli.RunGoto(ctx, uint(version))
	})
}

// runMigrateForce forces the migration version
func runMigrateForce(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: intelflow migrate force <version>\n")
		os.Exit(1)
	}

	version, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid version number: %s\n", args[0])
		os.Exit(1)
	}

	runWithMigrator("migrate force", args[1:], "Force failed", func(ctx context.Context, cli *migration.CLI) error {
		return cli.RunForce(ctx, int(version))
	})
}

// runMigrateReset rolls back all migrations
func runMigrateReset(args []string) {
	runWithMigrator("migrate reset", args, "Reset failed", func(ctx context.Context, cli *migration.CLI) error {
		return cli.RunDownAll(ctx)
	})
}

// runMigrateInfo shows the migrator configuration
func runMigrateInfo(args []string) {
	runWithMigrator("migrate info", args, "Failed to get info", func(ctx context.Context, cli *migration.CLI) error {
		return cli.RunInfo(ctx)
	})
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

type invocation struct {
	env     string
	dir     string
	name    string
	version string
	force   bool
	out     func(format string, args ...any)
}

type command struct {
	needsDB     bool
	destructive bool
	run         func(ctx context.Context, db *sql.DB, inv invocation) error
}

var commands = map[string]command{
	"create": {
		run: func(_ context.Context, _ *sql.DB, inv invocation) error {
			if inv.name == "" {
				return fmt.Errorf("missing -name for create")
			}
			path, err := migrate.CreateSQLMigration(inv.dir, inv.name)
			if err != nil {
				return fmt.Errorf("create migration: %w", err)
			}
			inv.out("created migration: %s\n", path)
			return nil
		},
	},
	"validate": {
		run: func(_ context.Context, _ *sql.DB, inv invocation) error {
			if err := migrate.ValidateDir(inv.dir); err != nil {
				return fmt.Errorf("migration validation failed: %w", err)
			}
			inv.out("migration validation passed\n")
			return nil
		},
	},
	"up":     gooseCommand("up", false),
	"status": gooseCommand("status", false),
	"down":   gooseCommand("down", true),
	"redo":   gooseCommand("redo", true),
	"reset":  gooseCommand("reset", true),
	"version": {
		needsDB: true,
		run: func(ctx context.Context, db *sql.DB, inv invocation) error {
			if inv.version == "" {
				return fmt.Errorf("missing -version for version command")
			}
			return migrate.MigrateToVersion(ctx, db, inv.dir, inv.version)
		},
	},
}

func gooseCommand(name string, destructive bool) command {
	return command{
		needsDB:     true,
		destructive: destructive,
		run: func(ctx context.Context, db *sql.DB, inv invocation) error {
			return migrate.Run(ctx, db, inv.dir, name)
		},
	}
}

// lookupCommand resolves name and refuses destructive commands in production
// unless -force was passed.
func lookupCommand(name string, inv invocation) (command, error) {
	cmd, ok := commands[name]
	if !ok {
		return command{}, fmt.Errorf("unknown -cmd value %q (expected one of %s)", name, strings.Join(commandNames(), "|"))
	}
	if cmd.destructive && isProduction(inv.env) && !inv.force {
		return command{}, fmt.Errorf("%s is destructive; pass -force to run it in %s", name, inv.env)
	}
	return cmd, nil
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isProduction(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "prod", "production":
		return true
	default:
		return false
	}
}

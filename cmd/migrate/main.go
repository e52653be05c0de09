package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/samirrijal/fuelroute/internal/pkg/config"
)

// Applied in order on "up" and in reverse on "down". Each has a
// matching <name>.down.sql.
var migrations = []string{
	"001_catalogue",
}

const dir = "migrations"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|status>")
	}

	_ = godotenv.Load()

	cfg, err := config.Load("fuelroute-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		log.Fatalf("create schema_migrations: %v", err)
	}

	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		log.Fatalf("read schema_migrations: %v", err)
	}

	switch os.Args[1] {
	case "up":
		for _, name := range migrations {
			if applied[name] {
				continue
			}
			apply(ctx, pool, name, name+".sql", `INSERT INTO schema_migrations (name) VALUES ($1)`)
		}
		log.Println("all migrations applied")
	case "down":
		for i := len(migrations) - 1; i >= 0; i-- {
			name := migrations[i]
			if !applied[name] {
				continue
			}
			apply(ctx, pool, name, name+".down.sql", `DELETE FROM schema_migrations WHERE name = $1`)
		}
		log.Println("all migrations rolled back")
	case "status":
		for _, name := range migrations {
			state := "pending"
			if applied[name] {
				state = "applied"
			}
			fmt.Printf("%-8s %s\n", state, name)
		}
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func appliedMigrations(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(names))
	for _, n := range names {
		applied[n] = true
	}
	return applied, nil
}

// apply runs one file and records the change in a single transaction.
func apply(ctx context.Context, pool *pgxpool.Pool, name, file, record string) {
	data, err := os.ReadFile(filepath.Join(dir, file))
	if err != nil {
		log.Fatalf("read %s: %v", file, err)
	}

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, strings.TrimSpace(string(data))); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, record, name)
		return err
	})
	if err != nil {
		log.Fatalf("exec %s: %v", file, err)
	}

	fmt.Printf("OK  %s\n", file)
}

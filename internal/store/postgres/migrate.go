package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/uptrace/bun"
)

const (
	gooseUpMarker   = "-- +goose Up"
	gooseDownMarker = "-- +goose Down"
)

// Migrate applies the Up section of every *.sql file in fsys, in name order, skipping
// files already recorded in schema_migrations. Each file and its schema_migrations row
// commit in one transaction. It returns the names it applied.
func Migrate(ctx context.Context, db *bun.DB, fsys fs.FS) ([]string, error) {
	if _, err := db.NewRaw(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`).Exec(ctx); err != nil {
		return nil, err
	}

	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	var applied []string
	for _, name := range names {
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return applied, err
		}
		upSQL, err := extractGooseUp(string(b))
		if err != nil {
			return applied, fmt.Errorf("%s: %w", name, err)
		}

		var ran bool
		err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			var err error
			ran, err = applyMigration(ctx, tx, name, splitSQLStatements(upSQL))
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("%s: %w", name, err)
		}
		if ran {
			applied = append(applied, name)
		}
	}
	return applied, nil
}

// applyMigration runs stmts and records name unless name is already recorded. The
// schema_migrations is locked for the rest of tx so concurrent runners serialize.
func applyMigration(ctx context.Context, db bun.IDB, name string, stmts []string) (bool, error) {
	if _, err := db.NewRaw("LOCK TABLE schema_migrations IN EXCLUSIVE MODE").Exec(ctx); err != nil {
		return false, err
	}
	var done bool
	if err := db.NewRaw("SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = ?)", name).Scan(ctx, &done); err != nil {
		return false, err
	}
	if done {
		return false, nil
	}
	for _, stmt := range stmts {
		if _, err := db.NewRaw(stmt).Exec(ctx); err != nil {
			return false, err
		}
	}
	if _, err := db.NewRaw("INSERT INTO schema_migrations (name) VALUES (?)", name).Exec(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func extractGooseUp(sql string) (string, error) {
	upIdx := strings.Index(sql, gooseUpMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := strings.TrimLeft(sql[upIdx+len(gooseUpMarker):], "\r\n")

	downIdx := strings.Index(afterUp, gooseDownMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), nil
}

// splitSQLStatements splits on semicolons. Migrations must not use dollar-quoted bodies.
func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

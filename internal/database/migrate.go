package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// Statements splits the embedded schema into individual statements; the
// DSN does not enable multiStatements.
func Statements() []string {
	var out []string
	for _, part := range strings.Split(schemaSQL, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if t := strings.TrimSpace(line); t == "" || strings.HasPrefix(t, "--") {
				continue
			}
			lines = append(lines, line)
		}
		if stmt := strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Migrate creates every table that does not exist yet. It is safe to run
// repeatedly.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	stmts := Statements()
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return i, fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return len(stmts), nil
}

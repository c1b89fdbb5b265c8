package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// querier is satisfied by both *sql.DB and *sql.Tx so that plain and *Tx
// methods share one implementation.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page int
	Size int
}

// NewPage clamps page to >= 1 and size to 1..MaxPageSize (default 10).
func NewPage(page, size int) Page {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Page: page, Size: size}
}

func (p Page) Limit() int  { return p.Size }
func (p Page) Offset() int { return (p.Page - 1) * p.Size }

// Pages is ceil(total/size).
func (p Page) Pages(total int) int {
	if p.Size <= 0 || total <= 0 {
		return 0
	}
	return (total + p.Size - 1) / p.Size
}

// notFound turns sql.ErrNoRows into the entity sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

// affectedOrNotFound checks the result of an UPDATE/DELETE by id. The DSN
// sets clientFoundRows so unchanged rows still count as matched.
func affectedOrNotFound(res sql.Result, err error, sentinel error) error {
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel
	}
	return nil
}

// placeholders returns "?,?,?" for n values.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func uint64Args(ids []uint64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func collectIDs(rows *sql.Rows) ([]uint64, error) {
	defer rows.Close()
	var out []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

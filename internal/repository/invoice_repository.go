package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/dorm-management/internal/model"
)

const invoiceColumns = `id, created_date, due_date, total_amount`

// InvoiceDetails is an invoice with its priced line items.
type InvoiceDetails struct {
	model.Invoice
	LineItems []model.LineItem `json:"service_usages"`
}

type InvoiceRepo struct{ db *sql.DB }

func NewInvoiceRepo(db *sql.DB) *InvoiceRepo { return &InvoiceRepo{db: db} }

func scanInvoice(row interface{ Scan(...any) error }, inv *model.Invoice) error {
	return row.Scan(&inv.ID, &inv.CreatedDate, &inv.DueDate, &inv.TotalAmount)
}

// CreateTx inserts the invoice with a zero total; the recalculator fills
// it in within the same transaction.
func (r *InvoiceRepo) CreateTx(ctx context.Context, tx *sql.Tx, inv *model.Invoice) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO invoices (created_date, due_date, total_amount) VALUES (?, ?, 0)`,
		inv.CreatedDate, inv.DueDate)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	inv.ID = uint64(id)
	inv.TotalAmount = 0
	return nil
}

func getInvoice(ctx context.Context, q querier, query string, id uint64) (*model.Invoice, error) {
	var inv model.Invoice
	if err := scanInvoice(q.QueryRowContext(ctx, query, id), &inv); err != nil {
		return nil, notFound(err, ErrInvoiceNotFound)
	}
	return &inv, nil
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id uint64) (*model.Invoice, error) {
	return getInvoice(ctx, r.db, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
}

// LockTx reads the invoice FOR UPDATE so concurrent recalculations of the
// same invoice apply one after the other.
func (r *InvoiceRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Invoice, error) {
	return getInvoice(ctx, tx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ? FOR UPDATE`, id)
}

func (r *InvoiceRepo) UpdateTx(ctx context.Context, tx *sql.Tx, inv *model.Invoice) error {
	res, err := tx.ExecContext(ctx, `UPDATE invoices SET created_date = ?, due_date = ? WHERE id = ?`,
		inv.CreatedDate, inv.DueDate, inv.ID)
	return affectedOrNotFound(res, err, ErrInvoiceNotFound)
}

func (r *InvoiceRepo) SetTotalTx(ctx context.Context, tx *sql.Tx, id uint64, total model.Money) error {
	res, err := tx.ExecContext(ctx, `UPDATE invoices SET total_amount = ? WHERE id = ?`, total, id)
	return affectedOrNotFound(res, err, ErrInvoiceNotFound)
}

func (r *InvoiceRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
	return affectedOrNotFound(res, err, ErrInvoiceNotFound)
}

func (r *InvoiceRepo) ListIDs(ctx context.Context) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM invoices ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

// List returns a page of invoices, most recent first.
func (r *InvoiceRepo) List(ctx context.Context, p Page) ([]model.Invoice, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices ORDER BY created_date DESC, id DESC LIMIT ? OFFSET ?`,
		p.Limit(), p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.Invoice, 0, p.Size)
	for rows.Next() {
		var inv model.Invoice
		if err := scanInvoice(rows, &inv); err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

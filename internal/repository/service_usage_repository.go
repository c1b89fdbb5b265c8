package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/dorm-management/internal/model"
)

const usageColumns = `id, contract_id, service_id, invoice_id, quantity, usage_month, usage_year`

// UsageFilter narrows List. Zero values mean "any"; Unbilled selects
// usages not linked to an invoice.
type UsageFilter struct {
	ContractID uint64
	InvoiceID  uint64
	Unbilled   bool
}

type ServiceUsageRepo struct{ db *sql.DB }

func NewServiceUsageRepo(db *sql.DB) *ServiceUsageRepo { return &ServiceUsageRepo{db: db} }

func scanUsage(row interface{ Scan(...any) error }, u *model.ServiceUsage) error {
	var inv sql.NullInt64
	if err := row.Scan(&u.ID, &u.ContractID, &u.ServiceID, &inv, &u.Quantity, &u.UsageMonth, &u.UsageYear); err != nil {
		return err
	}
	u.InvoiceID = nil
	if inv.Valid {
		id := uint64(inv.Int64)
		u.InvoiceID = &id
	}
	return nil
}

func (r *ServiceUsageRepo) CreateTx(ctx context.Context, tx *sql.Tx, u *model.ServiceUsage) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO service_usages (contract_id, service_id, invoice_id, quantity, usage_month, usage_year)
         VALUES (?, ?, ?, ?, ?, ?)`,
		u.ContractID, u.ServiceID, u.InvoiceID, u.Quantity, u.UsageMonth, u.UsageYear)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

func getUsage(ctx context.Context, q querier, query string, id uint64) (*model.ServiceUsage, error) {
	var u model.ServiceUsage
	if err := scanUsage(q.QueryRowContext(ctx, query, id), &u); err != nil {
		return nil, notFound(err, ErrUsageNotFound)
	}
	return &u, nil
}

func (r *ServiceUsageRepo) GetByID(ctx context.Context, id uint64) (*model.ServiceUsage, error) {
	return getUsage(ctx, r.db, `SELECT `+usageColumns+` FROM service_usages WHERE id = ?`, id)
}

func (r *ServiceUsageRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.ServiceUsage, error) {
	return getUsage(ctx, tx, `SELECT `+usageColumns+` FROM service_usages WHERE id = ? FOR UPDATE`, id)
}

func (r *ServiceUsageRepo) UpdateTx(ctx context.Context, tx *sql.Tx, u *model.ServiceUsage) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE service_usages SET contract_id = ?, service_id = ?, invoice_id = ?, quantity = ?, usage_month = ?, usage_year = ?
         WHERE id = ?`,
		u.ContractID, u.ServiceID, u.InvoiceID, u.Quantity, u.UsageMonth, u.UsageYear, u.ID)
	return affectedOrNotFound(res, err, ErrUsageNotFound)
}

func (r *ServiceUsageRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM service_usages WHERE id = ?`, id)
	return affectedOrNotFound(res, err, ErrUsageNotFound)
}

// ListByContractTx returns the usages recorded against a contract.
func (r *ServiceUsageRepo) ListByContractTx(ctx context.Context, tx *sql.Tx, contractID uint64) ([]model.ServiceUsage, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+usageColumns+` FROM service_usages WHERE contract_id = ? ORDER BY id FOR UPDATE`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ServiceUsage
	for rows.Next() {
		var u model.ServiceUsage
		if err := scanUsage(rows, &u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *ServiceUsageRepo) DeleteByContractTx(ctx context.Context, tx *sql.Tx, contractID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM service_usages WHERE contract_id = ?`, contractID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetInvoiceTx links (or with nil unlinks) the given usages to an invoice.
func (r *ServiceUsageRepo) SetInvoiceTx(ctx context.Context, tx *sql.Tx, usageIDs []uint64, invoiceID *uint64) error {
	if len(usageIDs) == 0 {
		return nil
	}
	args := append([]any{invoiceID}, uint64Args(usageIDs)...)
	_, err := tx.ExecContext(ctx,
		`UPDATE service_usages SET invoice_id = ? WHERE id IN (`+placeholders(len(usageIDs))+`)`, args...)
	return err
}

// DetachInvoiceTx unlinks every usage of an invoice.
func (r *ServiceUsageRepo) DetachInvoiceTx(ctx context.Context, tx *sql.Tx, invoiceID uint64) error {
	_, err := tx.ExecContext(ctx, `UPDATE service_usages SET invoice_id = NULL WHERE invoice_id = ?`, invoiceID)
	return err
}

// UsageIDsByInvoiceTx returns the ids of usages currently billed on an invoice.
func (r *ServiceUsageRepo) UsageIDsByInvoiceTx(ctx context.Context, tx *sql.Tx, invoiceID uint64) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM service_usages WHERE invoice_id = ? ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

// InvoiceIDsByServiceTx returns the invoices that bill at least one usage
// of the service.
func (r *ServiceUsageRepo) InvoiceIDsByServiceTx(ctx context.Context, tx *sql.Tx, serviceID uint64) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT DISTINCT invoice_id FROM service_usages WHERE service_id = ? AND invoice_id IS NOT NULL ORDER BY invoice_id`,
		serviceID)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

const lineItemSelect = `SELECT su.id, su.contract_id, su.service_id, s.name, s.unit_price, su.quantity, su.usage_month, su.usage_year
FROM service_usages su JOIN services s ON s.id = su.service_id`

func lineItems(ctx context.Context, q querier, where string, arg uint64) ([]model.LineItem, error) {
	rows, err := q.QueryContext(ctx, lineItemSelect+where+` ORDER BY su.id`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.LineItem{}
	for rows.Next() {
		var li model.LineItem
		if err := rows.Scan(&li.UsageID, &li.ContractID, &li.ServiceID, &li.ServiceName, &li.UnitPrice,
			&li.Quantity, &li.UsageMonth, &li.UsageYear); err != nil {
			return nil, err
		}
		li.Amount = li.UnitPrice.Mul(li.Quantity)
		out = append(out, li)
	}
	return out, rows.Err()
}

// LineItemsTx returns the priced usages linked to an invoice.
func (r *ServiceUsageRepo) LineItemsTx(ctx context.Context, tx *sql.Tx, invoiceID uint64) ([]model.LineItem, error) {
	return lineItems(ctx, tx, ` WHERE su.invoice_id = ?`, invoiceID)
}

func (r *ServiceUsageRepo) LineItemsByInvoice(ctx context.Context, invoiceID uint64) ([]model.LineItem, error) {
	return lineItems(ctx, r.db, ` WHERE su.invoice_id = ?`, invoiceID)
}

func (r *ServiceUsageRepo) LineItemsByContract(ctx context.Context, contractID uint64) ([]model.LineItem, error) {
	return lineItems(ctx, r.db, ` WHERE su.contract_id = ?`, contractID)
}

func (r *ServiceUsageRepo) List(ctx context.Context, f UsageFilter, p Page) ([]model.ServiceUsage, int, error) {
	where := ` WHERE 1=1`
	var args []any
	if f.ContractID != 0 {
		where += ` AND contract_id = ?`
		args = append(args, f.ContractID)
	}
	if f.InvoiceID != 0 {
		where += ` AND invoice_id = ?`
		args = append(args, f.InvoiceID)
	} else if f.Unbilled {
		where += ` AND invoice_id IS NULL`
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM service_usages`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+usageColumns+` FROM service_usages`+where+` ORDER BY usage_year DESC, usage_month DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, p.Limit(), p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.ServiceUsage, 0, p.Size)
	for rows.Next() {
		var u model.ServiceUsage
		if err := scanUsage(rows, &u); err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/dorm-management/internal/model"
)

// ServiceRepo stores the billable services catalog (electricity, laundry...).
type ServiceRepo struct{ db *sql.DB }

func NewServiceRepo(db *sql.DB) *ServiceRepo { return &ServiceRepo{db: db} }

func (r *ServiceRepo) Create(ctx context.Context, s *model.Service) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO services (name, unit_price) VALUES (?, ?)`, s.Name, s.UnitPrice)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

func getService(ctx context.Context, q querier, query string, id uint64) (*model.Service, error) {
	var s model.Service
	if err := q.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Name, &s.UnitPrice); err != nil {
		return nil, notFound(err, ErrServiceNotFound)
	}
	return &s, nil
}

func (r *ServiceRepo) GetByID(ctx context.Context, id uint64) (*model.Service, error) {
	return getService(ctx, r.db, `SELECT id, name, unit_price FROM services WHERE id = ?`, id)
}

func (r *ServiceRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Service, error) {
	return getService(ctx, tx, `SELECT id, name, unit_price FROM services WHERE id = ?`, id)
}

func (r *ServiceRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Service, error) {
	return getService(ctx, tx, `SELECT id, name, unit_price FROM services WHERE id = ? FOR UPDATE`, id)
}

func (r *ServiceRepo) List(ctx context.Context, p Page) ([]model.Service, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM services`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, unit_price FROM services ORDER BY id LIMIT ? OFFSET ?`, p.Limit(), p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.Service, 0, p.Size)
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.UnitPrice); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *ServiceRepo) UpdateTx(ctx context.Context, tx *sql.Tx, s *model.Service) error {
	res, err := tx.ExecContext(ctx, `UPDATE services SET name = ?, unit_price = ? WHERE id = ?`,
		s.Name, s.UnitPrice, s.ID)
	return affectedOrNotFound(res, err, ErrServiceNotFound)
}

func (r *ServiceRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE id = ?`, id)
	return affectedOrNotFound(res, err, ErrServiceNotFound)
}

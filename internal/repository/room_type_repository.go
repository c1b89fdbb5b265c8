package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/dorm-management/internal/model"
)

type RoomTypeRepo struct{ db *sql.DB }

func NewRoomTypeRepo(db *sql.DB) *RoomTypeRepo { return &RoomTypeRepo{db: db} }

func (r *RoomTypeRepo) Create(ctx context.Context, t *model.RoomType) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO room_types (name, rent_price) VALUES (?, ?)`, t.Name, t.RentPrice)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

func (r *RoomTypeRepo) GetByID(ctx context.Context, id uint64) (*model.RoomType, error) {
	var t model.RoomType
	err := r.db.QueryRowContext(ctx, `SELECT id, name, rent_price FROM room_types WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.RentPrice)
	if err != nil {
		return nil, notFound(err, ErrRoomTypeNotFound)
	}
	return &t, nil
}

func (r *RoomTypeRepo) List(ctx context.Context, p Page) ([]model.RoomType, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM room_types`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, rent_price FROM room_types ORDER BY id LIMIT ? OFFSET ?`, p.Limit(), p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.RoomType, 0, p.Size)
	for rows.Next() {
		var t model.RoomType
		if err := rows.Scan(&t.ID, &t.Name, &t.RentPrice); err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (r *RoomTypeRepo) Update(ctx context.Context, t *model.RoomType) error {
	res, err := r.db.ExecContext(ctx, `UPDATE room_types SET name = ?, rent_price = ? WHERE id = ?`,
		t.Name, t.RentPrice, t.ID)
	return affectedOrNotFound(res, err, ErrRoomTypeNotFound)
}

func (r *RoomTypeRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM room_types WHERE id = ?`, id)
	return affectedOrNotFound(res, err, ErrRoomTypeNotFound)
}

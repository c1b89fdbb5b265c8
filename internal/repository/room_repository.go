package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/dorm-management/internal/database"
	"github.com/iliyamo/dorm-management/internal/model"
)

const roomColumns = `id, room_type_id, room_number, max_occupancy, status`

// RoomListItem is a room joined with its type for list views.
type RoomListItem struct {
	model.Room
	RoomTypeName string      `json:"room_type_name"`
	RentPrice    model.Money `json:"rent_price"`
}

// RoomFilter narrows List. Zero values mean "any".
type RoomFilter struct {
	Number     string           // room number prefix
	Status     model.RoomStatus // persisted status
	RoomTypeID uint64
}

// RoomActiveCount pairs a room with its number of contracts active on the
// day passed to ListWithActiveCount.
type RoomActiveCount struct {
	RoomListItem
	Active int
}

type RoomRepo struct{ db *sql.DB }

func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

func scanRoom(row interface{ Scan(...any) error }, rm *model.Room) error {
	return row.Scan(&rm.ID, &rm.RoomTypeID, &rm.RoomNumber, &rm.MaxOccupancy, &rm.Status)
}

// roomWriteErr maps a missing room type (FK 1452) onto ErrRoomTypeNotFound.
func roomWriteErr(err error) error {
	if database.IsForeignKeyViolation(err) && !database.IsRowReferenced(err) {
		return ErrRoomTypeNotFound
	}
	return translate(err)
}

// CreateTx inserts the room with the given status and sets its ID.
func (r *RoomRepo) CreateTx(ctx context.Context, tx *sql.Tx, rm *model.Room) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO rooms (room_type_id, room_number, max_occupancy, status) VALUES (?, ?, ?, ?)`,
		rm.RoomTypeID, rm.RoomNumber, rm.MaxOccupancy, rm.Status)
	if err != nil {
		return roomWriteErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rm.ID = uint64(id)
	return nil
}

func getRoom(ctx context.Context, q querier, query string, id uint64) (*model.Room, error) {
	var rm model.Room
	if err := scanRoom(q.QueryRowContext(ctx, query, id), &rm); err != nil {
		return nil, notFound(err, ErrRoomNotFound)
	}
	return &rm, nil
}

func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (*model.Room, error) {
	return getRoom(ctx, r.db, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
}

func (r *RoomRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Room, error) {
	return getRoom(ctx, tx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
}

// LockTx reads the room with SELECT ... FOR UPDATE. Every capacity check
// and status write for a room happens under this lock.
func (r *RoomRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Room, error) {
	return getRoom(ctx, tx, `SELECT `+roomColumns+` FROM rooms WHERE id = ? FOR UPDATE`, id)
}

// UpdateTx writes the client-editable columns. Status is left alone; it is
// refreshed separately by SetStatusTx.
func (r *RoomRepo) UpdateTx(ctx context.Context, tx *sql.Tx, rm *model.Room) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE rooms SET room_type_id = ?, room_number = ?, max_occupancy = ? WHERE id = ?`,
		rm.RoomTypeID, rm.RoomNumber, rm.MaxOccupancy, rm.ID)
	if err != nil {
		return roomWriteErr(err)
	}
	return affectedOrNotFound(res, nil, ErrRoomNotFound)
}

func (r *RoomRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.RoomStatus) error {
	res, err := tx.ExecContext(ctx, `UPDATE rooms SET status = ? WHERE id = ?`, status, id)
	return affectedOrNotFound(res, err, ErrRoomNotFound)
}

// Delete removes a room that no contract references; otherwise ErrInUse.
func (r *RoomRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	return affectedOrNotFound(res, err, ErrRoomNotFound)
}

// ListIDs returns every room id in ascending order.
func (r *RoomRepo) ListIDs(ctx context.Context) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM rooms ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

const roomListSelect = `SELECT r.id, r.room_type_id, r.room_number, r.max_occupancy, r.status, t.name, t.rent_price
FROM rooms r JOIN room_types t ON t.id = r.room_type_id`

func scanRoomListItem(row interface{ Scan(...any) error }, it *RoomListItem) error {
	return row.Scan(&it.ID, &it.RoomTypeID, &it.RoomNumber, &it.MaxOccupancy, &it.Status, &it.RoomTypeName, &it.RentPrice)
}

func (f RoomFilter) where() (string, []any) {
	clause := ` WHERE 1=1`
	var args []any
	if f.Number != "" {
		clause += ` AND r.room_number LIKE ?`
		args = append(args, escapeLike(f.Number)+"%")
	}
	if f.Status != "" {
		clause += ` AND r.status = ?`
		args = append(args, f.Status)
	}
	if f.RoomTypeID != 0 {
		clause += ` AND r.room_type_id = ?`
		args = append(args, f.RoomTypeID)
	}
	return clause, args
}

// List returns a page of rooms ordered by room number.
func (r *RoomRepo) List(ctx context.Context, f RoomFilter, p Page) ([]RoomListItem, int, error) {
	where, args := f.where()
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms r`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx, roomListSelect+where+` ORDER BY r.room_number LIMIT ? OFFSET ?`,
		append(args, p.Limit(), p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]RoomListItem, 0, p.Size)
	for rows.Next() {
		var it RoomListItem
		if err := scanRoomListItem(rows, &it); err != nil {
			return nil, 0, err
		}
		out = append(out, it)
	}
	return out, total, rows.Err()
}

// GetListItem returns one room joined with its type.
func (r *RoomRepo) GetListItem(ctx context.Context, id uint64) (*RoomListItem, error) {
	var it RoomListItem
	if err := scanRoomListItem(r.db.QueryRowContext(ctx, roomListSelect+` WHERE r.id = ?`, id), &it); err != nil {
		return nil, notFound(err, ErrRoomNotFound)
	}
	return &it, nil
}

// ListWithActiveCount returns every room with its count of contracts whose
// range contains day, evaluated live rather than from the stored status.
func (r *RoomRepo) ListWithActiveCount(ctx context.Context, day model.Date) ([]RoomActiveCount, error) {
	const q = `SELECT r.id, r.room_type_id, r.room_number, r.max_occupancy, r.status, t.name, t.rent_price,
       (SELECT COUNT(*) FROM contracts c WHERE c.room_id = r.id AND c.start_date <= ? AND c.end_date >= ?) AS active
FROM rooms r JOIN room_types t ON t.id = r.room_type_id
ORDER BY r.room_number`
	rows, err := r.db.QueryContext(ctx, q, day, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RoomActiveCount
	for rows.Next() {
		var it RoomActiveCount
		if err := rows.Scan(&it.ID, &it.RoomTypeID, &it.RoomNumber, &it.MaxOccupancy, &it.Status,
			&it.RoomTypeName, &it.RentPrice, &it.Active); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

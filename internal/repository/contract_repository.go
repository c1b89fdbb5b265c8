package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/dorm-management/internal/database"
	"github.com/iliyamo/dorm-management/internal/model"
)

const contractColumns = `id, student_id, room_id, start_date, end_date`

// ContractListItem is a contract with the room number and student name
// joined in.
type ContractListItem struct {
	model.Contract
	RoomNumber  string `json:"room_number"`
	StudentName string `json:"student_name"`
}

// ContractFilter narrows List. Zero values mean "any".
type ContractFilter struct {
	StudentID uint64
	RoomID    uint64
}

// ContractDetails is the joined view behind GET /v1/contracts/:id/details.
type ContractDetails struct {
	model.Contract
	StudentName  string           `json:"student_name"`
	RoomNumber   string           `json:"room_number"`
	RoomTypeName string           `json:"room_type_name"`
	RentPrice    model.Money      `json:"rent_price"`
	Usages       []model.LineItem `json:"service_usages"`
}

// Resident is a student housed in a room through a contract.
type Resident struct {
	ContractID uint64     `json:"contract_id"`
	StudentID  uint64     `json:"student_id"`
	FullName   string     `json:"full_name"`
	StartDate  model.Date `json:"start_date"`
	EndDate    model.Date `json:"end_date"`
}

type ContractRepo struct{ db *sql.DB }

func NewContractRepo(db *sql.DB) *ContractRepo { return &ContractRepo{db: db} }

func scanContract(row interface{ Scan(...any) error }, c *model.Contract) error {
	return row.Scan(&c.ID, &c.StudentID, &c.RoomID, &c.StartDate, &c.EndDate)
}

func contractWriteErr(err error) error {
	if database.IsForeignKeyViolation(err) && !database.IsRowReferenced(err) {
		// the admission guard locks both parents first, so this only
		// happens when a caller skips it
		return ErrNotFound
	}
	return translate(err)
}

func (r *ContractRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Contract) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO contracts (student_id, room_id, start_date, end_date) VALUES (?, ?, ?, ?)`,
		c.StudentID, c.RoomID, c.StartDate, c.EndDate)
	if err != nil {
		return contractWriteErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

func getContract(ctx context.Context, q querier, query string, id uint64) (*model.Contract, error) {
	var c model.Contract
	if err := scanContract(q.QueryRowContext(ctx, query, id), &c); err != nil {
		return nil, notFound(err, ErrContractNotFound)
	}
	return &c, nil
}

func (r *ContractRepo) GetByID(ctx context.Context, id uint64) (*model.Contract, error) {
	return getContract(ctx, r.db, `SELECT `+contractColumns+` FROM contracts WHERE id = ?`, id)
}

func (r *ContractRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Contract, error) {
	return getContract(ctx, tx, `SELECT `+contractColumns+` FROM contracts WHERE id = ?`, id)
}

func (r *ContractRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Contract, error) {
	return getContract(ctx, tx, `SELECT `+contractColumns+` FROM contracts WHERE id = ? FOR UPDATE`, id)
}

func (r *ContractRepo) UpdateTx(ctx context.Context, tx *sql.Tx, c *model.Contract) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE contracts SET student_id = ?, room_id = ?, start_date = ?, end_date = ? WHERE id = ?`,
		c.StudentID, c.RoomID, c.StartDate, c.EndDate, c.ID)
	if err != nil {
		return contractWriteErr(err)
	}
	return affectedOrNotFound(res, nil, ErrContractNotFound)
}

func (r *ContractRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM contracts WHERE id = ?`, id)
	return affectedOrNotFound(res, err, ErrContractNotFound)
}

func listContracts(ctx context.Context, q querier, query string, args ...any) ([]model.Contract, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Contract
	for rows.Next() {
		var c model.Contract
		if err := scanContract(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListByRoomTx returns the room's contracts that have not ended before
// from. Contracts that ended earlier can never be active on from or later.
// It is a locking read and sees the latest committed rows.
func (r *ContractRepo) ListByRoomTx(ctx context.Context, tx *sql.Tx, roomID uint64, from model.Date) ([]model.Contract, error) {
	return listContracts(ctx, tx,
		`SELECT `+contractColumns+` FROM contracts WHERE room_id = ? AND end_date >= ? ORDER BY id FOR SHARE`, roomID, from)
}

// ListByStudentTx returns every contract of the student.
func (r *ContractRepo) ListByStudentTx(ctx context.Context, tx *sql.Tx, studentID uint64) ([]model.Contract, error) {
	return listContracts(ctx, tx,
		`SELECT `+contractColumns+` FROM contracts WHERE student_id = ? ORDER BY start_date, id FOR SHARE`, studentID)
}

// List returns a page of contracts, newest first, with room number and
// student name.
func (r *ContractRepo) List(ctx context.Context, f ContractFilter, p Page) ([]ContractListItem, int, error) {
	where := ` WHERE 1=1`
	var args []any
	if f.StudentID != 0 {
		where += ` AND c.student_id = ?`
		args = append(args, f.StudentID)
	}
	if f.RoomID != 0 {
		where += ` AND c.room_id = ?`
		args = append(args, f.RoomID)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contracts c`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	const sel = `SELECT c.id, c.student_id, c.room_id, c.start_date, c.end_date, r.room_number, s.full_name
FROM contracts c
JOIN rooms r ON r.id = c.room_id
JOIN students s ON s.id = c.student_id`
	rows, err := r.db.QueryContext(ctx, sel+where+` ORDER BY c.id DESC LIMIT ? OFFSET ?`,
		append(args, p.Limit(), p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]ContractListItem, 0, p.Size)
	for rows.Next() {
		var it ContractListItem
		if err := rows.Scan(&it.ID, &it.StudentID, &it.RoomID, &it.StartDate, &it.EndDate, &it.RoomNumber, &it.StudentName); err != nil {
			return nil, 0, err
		}
		out = append(out, it)
	}
	return out, total, rows.Err()
}

// Details loads the contract with student, room and room type. Usages are
// filled in by the caller.
func (r *ContractRepo) Details(ctx context.Context, id uint64) (*ContractDetails, error) {
	const q = `SELECT c.id, c.student_id, c.room_id, c.start_date, c.end_date,
       s.full_name, r.room_number, t.name, t.rent_price
FROM contracts c
JOIN students s ON s.id = c.student_id
JOIN rooms r ON r.id = c.room_id
JOIN room_types t ON t.id = r.room_type_id
WHERE c.id = ?`
	var d ContractDetails
	err := r.db.QueryRowContext(ctx, q, id).Scan(&d.ID, &d.StudentID, &d.RoomID, &d.StartDate, &d.EndDate,
		&d.StudentName, &d.RoomNumber, &d.RoomTypeName, &d.RentPrice)
	if err != nil {
		return nil, notFound(err, ErrContractNotFound)
	}
	return &d, nil
}

// Residents lists the students of a room. With activeOn set only
// contracts containing that day are returned.
func (r *ContractRepo) Residents(ctx context.Context, roomID uint64, activeOn *model.Date) ([]Resident, error) {
	q := `SELECT c.id, s.id, s.full_name, c.start_date, c.end_date
FROM contracts c JOIN students s ON s.id = c.student_id
WHERE c.room_id = ?`
	args := []any{roomID}
	if activeOn != nil {
		q += ` AND c.start_date <= ? AND c.end_date >= ?`
		args = append(args, *activeOn, *activeOn)
	}
	q += ` ORDER BY c.start_date DESC, c.id DESC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Resident{}
	for rows.Next() {
		var res Resident
		if err := rows.Scan(&res.ContractID, &res.StudentID, &res.FullName, &res.StartDate, &res.EndDate); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

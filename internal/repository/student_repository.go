package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/dorm-management/internal/model"
)

const studentColumns = `id, full_name, gender, phone_number`

type StudentRepo struct{ db *sql.DB }

func NewStudentRepo(db *sql.DB) *StudentRepo { return &StudentRepo{db: db} }

func scanStudent(row interface{ Scan(...any) error }, s *model.Student) error {
	return row.Scan(&s.ID, &s.FullName, &s.Gender, &s.PhoneNumber)
}

// Create inserts the student and sets its ID.
func (r *StudentRepo) Create(ctx context.Context, s *model.Student) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO students (full_name, gender, phone_number) VALUES (?, ?, ?)`,
		s.FullName, s.Gender, s.PhoneNumber)
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

func (r *StudentRepo) GetByID(ctx context.Context, id uint64) (*model.Student, error) {
	var s model.Student
	err := scanStudent(r.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = ?`, id), &s)
	if err != nil {
		return nil, notFound(err, ErrStudentNotFound)
	}
	return &s, nil
}

// LockTx reads the student with a row lock. Admissions for the same
// student serialise on it.
func (r *StudentRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Student, error) {
	var s model.Student
	err := scanStudent(tx.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = ? FOR UPDATE`, id), &s)
	if err != nil {
		return nil, notFound(err, ErrStudentNotFound)
	}
	return &s, nil
}

// List returns a page of students ordered by id. q filters by a substring
// of the full name.
func (r *StudentRepo) List(ctx context.Context, q string, p Page) ([]model.Student, int, error) {
	where := ""
	var args []any
	if q != "" {
		where = ` WHERE full_name LIKE ?`
		args = append(args, "%"+escapeLike(q)+"%")
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+studentColumns+` FROM students`+where+` ORDER BY id LIMIT ? OFFSET ?`,
		append(args, p.Limit(), p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.Student, 0, p.Size)
	for rows.Next() {
		var s model.Student
		if err := scanStudent(rows, &s); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *StudentRepo) Update(ctx context.Context, s *model.Student) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE students SET full_name = ?, gender = ?, phone_number = ? WHERE id = ?`,
		s.FullName, s.Gender, s.PhoneNumber, s.ID)
	return affectedOrNotFound(res, err, ErrStudentNotFound)
}

// Delete removes a student without contracts; otherwise ErrInUse.
func (r *StudentRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, id)
	return affectedOrNotFound(res, err, ErrStudentNotFound)
}

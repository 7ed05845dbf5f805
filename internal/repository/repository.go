// Package repository implements the registration store on PostgreSQL.
// It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/course-registration/internal/model"
	"github.com/Shivanand-hulikatti/course-registration/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store handles persistence for students, courses and registrations.
type Store struct {
	pool *pgxpool.Pool
	db   querier
	inTx bool
}

// NewStore constructs a Store backed by the pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

var _ service.Store = (*Store)(nil)

// Atomic runs fn inside a single transaction.
//
// Inside the transaction the student row is read with SELECT … FOR UPDATE.
// Two concurrent operations for the same student therefore queue on that
// row lock: the second one only reads registrations after the first has
// committed, so the duplicate check and the ongoing-course count always see
// the other's insert. The unique index on (student_id, course_id) is the
// last line behind that.
func (s *Store) Atomic(ctx context.Context, fn func(service.Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(&Store{pool: s.pool, db: tx, inTx: true}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// FindStudentByEmail returns the student or nil. Inside Atomic the row is locked.
func (s *Store) FindStudentByEmail(ctx context.Context, email string) (*model.Student, error) {
	query := `SELECT id, email, first_name, last_name FROM students WHERE email = $1`
	if s.inTx {
		query += ` FOR UPDATE`
	}

	var st model.Student
	err := s.db.QueryRow(ctx, query, email).Scan(&st.ID, &st.Email, &st.FirstName, &st.LastName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &st, nil
}

// FindCourseByID returns the course or nil.
func (s *Store) FindCourseByID(ctx context.Context, id int64) (*model.Course, error) {
	var c model.Course
	err := s.db.QueryRow(ctx,
		`SELECT id, name, start_time, end_time, price FROM courses WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.StartTime, &c.EndTime, &c.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	c.StartTime = c.StartTime.UTC()
	c.EndTime = c.EndTime.UTC()
	return &c, nil
}

// FindRegistration returns the registration for the student and course, or nil.
func (s *Store) FindRegistration(ctx context.Context, studentID, courseID int64) (*model.Registration, error) {
	var r model.Registration
	err := s.db.QueryRow(ctx,
		`SELECT id::text, student_id, course_id, price, registered_date
		 FROM registrations
		 WHERE student_id = $1 AND course_id = $2`,
		studentID, courseID,
	).Scan(&r.ID, &r.StudentID, &r.CourseID, &r.Price, &r.RegisteredDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	r.RegisteredDate = r.RegisteredDate.UTC()
	return &r, nil
}

// CountOngoingRegistrations counts the student's registrations whose course
// started strictly before startBefore and ends strictly after endAfter.
func (s *Store) CountOngoingRegistrations(ctx context.Context, studentID int64, startBefore, endAfter time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM registrations r
		 JOIN courses c ON c.id = r.course_id
		 WHERE r.student_id = $1 AND c.start_time < $2 AND c.end_time > $3`,
		studentID, startBefore, endAfter,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ongoing registrations: %w", err)
	}
	return n, nil
}

// FindUpcomingRegistrations returns the student's registrations for courses
// starting after the given time, ordered by course start.
func (s *Store) FindUpcomingRegistrations(ctx context.Context, studentID int64, after time.Time) ([]model.Registration, error) {
	rows, err := s.db.Query(ctx,
		`SELECT r.id::text, r.student_id, r.course_id, r.price, r.registered_date,
		        c.id, c.name, c.start_time, c.end_time, c.price
		 FROM registrations r
		 JOIN courses c ON c.id = r.course_id
		 WHERE r.student_id = $1 AND c.start_time > $2
		 ORDER BY c.start_time ASC, r.registered_date ASC`,
		studentID, after,
	)
	if err != nil {
		return nil, fmt.Errorf("list upcoming registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		var (
			r model.Registration
			c model.Course
		)
		if err := rows.Scan(
			&r.ID, &r.StudentID, &r.CourseID, &r.Price, &r.RegisteredDate,
			&c.ID, &c.Name, &c.StartTime, &c.EndTime, &c.Price,
		); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		r.RegisteredDate = r.RegisteredDate.UTC()
		c.StartTime = c.StartTime.UTC()
		c.EndTime = c.EndTime.UTC()
		r.Course = &c
		regs = append(regs, r)
	}
	return regs, rows.Err()
}

// SaveRegistration inserts a registration. A duplicate (student, course)
// pair is reported as an InvalidOperation.
func (s *Store) SaveRegistration(ctx context.Context, reg model.Registration) (*model.Registration, error) {
	_, err := s.db.Exec(ctx,
		`INSERT INTO registrations (id, student_id, course_id, price, registered_date)
		 VALUES ($1::uuid, $2, $3, $4, $5)`,
		reg.ID, reg.StudentID, reg.CourseID, reg.Price, reg.RegisteredDate,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, model.InvalidOperation(model.ReasonAlreadyRegistered)
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}
	reg.Course = nil
	return &reg, nil
}

// DeleteRegistration removes the registration by id.
func (s *Store) DeleteRegistration(ctx context.Context, reg model.Registration) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM registrations WHERE id = $1::uuid`, reg.ID)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFound("Registration")
	}
	return nil
}

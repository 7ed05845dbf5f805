// Package sqlite provides a SQLite-backed registration store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/course-registration/internal/database"
	"github.com/Shivanand-hulikatti/course-registration/internal/model"
	"github.com/Shivanand-hulikatti/course-registration/internal/service"
	"go.uber.org/zap"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists registration state in SQLite.
type Store struct {
	sqlDB *sql.DB
	db    querier
	inTx  bool
}

var _ service.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store at path and applies the embedded migrations.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection: SQLite allows a single writer, and transactions
	// queue here instead of failing with SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := database.Migrate(ctx, sqlDB, database.SQLite, logger); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, db: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Atomic runs fn inside one transaction.
func (s *Store) Atomic(ctx context.Context, fn func(service.Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&Store{sqlDB: s.sqlDB, db: tx, inTx: true}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// FindStudentByEmail returns the student or nil.
func (s *Store) FindStudentByEmail(ctx context.Context, email string) (*model.Student, error) {
	var st model.Student
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, first_name, last_name FROM students WHERE email = ?`,
		email,
	).Scan(&st.ID, &st.Email, &st.FirstName, &st.LastName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &st, nil
}

// FindCourseByID returns the course or nil.
func (s *Store) FindCourseByID(ctx context.Context, id int64) (*model.Course, error) {
	var (
		c          model.Course
		start, end int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, start_time, end_time, price FROM courses WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.Name, &start, &end, &c.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	c.StartTime = fromMillis(start)
	c.EndTime = fromMillis(end)
	return &c, nil
}

// FindRegistration returns the registration for the pair, or nil.
func (s *Store) FindRegistration(ctx context.Context, studentID, courseID int64) (*model.Registration, error) {
	var (
		r          model.Registration
		registered int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, student_id, course_id, price, registered_date
		 FROM registrations
		 WHERE student_id = ? AND course_id = ?`,
		studentID, courseID,
	).Scan(&r.ID, &r.StudentID, &r.CourseID, &r.Price, &registered)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	r.RegisteredDate = fromMillis(registered)
	return &r, nil
}

// CountOngoingRegistrations counts registrations whose course started
// strictly before startBefore and ends strictly after endAfter.
func (s *Store) CountOngoingRegistrations(ctx context.Context, studentID int64, startBefore, endAfter time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM registrations r
		 JOIN courses c ON c.id = r.course_id
		 WHERE r.student_id = ? AND c.start_time < ? AND c.end_time > ?`,
		studentID, toMillis(startBefore), toMillis(endAfter),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ongoing registrations: %w", err)
	}
	return n, nil
}

// FindUpcomingRegistrations returns the student's registrations for courses
// starting after the given time, ordered by course start.
func (s *Store) FindUpcomingRegistrations(ctx context.Context, studentID int64, after time.Time) ([]model.Registration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.student_id, r.course_id, r.price, r.registered_date,
		        c.id, c.name, c.start_time, c.end_time, c.price
		 FROM registrations r
		 JOIN courses c ON c.id = r.course_id
		 WHERE r.student_id = ? AND c.start_time > ?
		 ORDER BY c.start_time ASC, r.registered_date ASC`,
		studentID, toMillis(after),
	)
	if err != nil {
		return nil, fmt.Errorf("list upcoming registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		var (
			r                      model.Registration
			c                      model.Course
			registered, start, end int64
		)
		if err := rows.Scan(
			&r.ID, &r.StudentID, &r.CourseID, &r.Price, &registered,
			&c.ID, &c.Name, &start, &end, &c.Price,
		); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		r.RegisteredDate = fromMillis(registered)
		c.StartTime = fromMillis(start)
		c.EndTime = fromMillis(end)
		r.Course = &c
		regs = append(regs, r)
	}
	return regs, rows.Err()
}

// SaveRegistration inserts a registration. A duplicate (student, course)
// pair is reported as an InvalidOperation.
func (s *Store) SaveRegistration(ctx context.Context, reg model.Registration) (*model.Registration, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registrations (id, student_id, course_id, price, registered_date)
		 VALUES (?, ?, ?, ?, ?)`,
		reg.ID, reg.StudentID, reg.CourseID, reg.Price, toMillis(reg.RegisteredDate),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.InvalidOperation(model.ReasonAlreadyRegistered)
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}
	reg.Course = nil
	reg.RegisteredDate = fromMillis(toMillis(reg.RegisteredDate))
	return &reg, nil
}

// DeleteRegistration removes the registration by id.
func (s *Store) DeleteRegistration(ctx context.Context, reg model.Registration) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = ?`, reg.ID)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if n == 0 {
		return model.NotFound("Registration")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY
}

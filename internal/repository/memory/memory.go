// Package memory implements an in-memory store for tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/course-registration/internal/model"
	"github.com/Shivanand-hulikatti/course-registration/internal/service"
)

// DB implements an in-memory database storage.
type DB struct {
	// txMu serialises Atomic callers; mu guards the maps.
	txMu sync.Mutex
	mu   sync.Mutex

	students      map[int64]model.Student
	courses       map[int64]model.Course
	registrations []model.Registration

	studentIDCounter int64
	courseIDCounter  int64
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		students: make(map[int64]model.Student),
		courses:  make(map[int64]model.Course),
	}
}

var _ service.Store = (*DB)(nil)

// --- Seeding ---

// AddStudent stores a student, assigning an ID when none is set.
func (db *DB) AddStudent(s model.Student) model.Student {
	db.mu.Lock()
	defer db.mu.Unlock()

	if s.ID == 0 {
		db.studentIDCounter++
		s.ID = db.studentIDCounter
	} else if s.ID > db.studentIDCounter {
		db.studentIDCounter = s.ID
	}
	db.students[s.ID] = s
	return s
}

// AddCourse stores a course, assigning an ID when none is set.
func (db *DB) AddCourse(c model.Course) model.Course {
	db.mu.Lock()
	defer db.mu.Unlock()

	if c.ID == 0 {
		db.courseIDCounter++
		c.ID = db.courseIDCounter
	} else if c.ID > db.courseIDCounter {
		db.courseIDCounter = c.ID
	}
	c.StartTime = c.StartTime.UTC()
	c.EndTime = c.EndTime.UTC()
	db.courses[c.ID] = c
	return c
}

// Registrations returns a copy of all stored registrations.
func (db *DB) Registrations() []model.Registration {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]model.Registration, len(db.registrations))
	copy(out, db.registrations)
	return out
}

// --- service.Store ---

// FindStudentByEmail returns the student with the given email, or nil.
func (db *DB) FindStudentByEmail(ctx context.Context, email string) (*model.Student, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, s := range db.students {
		if s.Email == email {
			found := s
			return &found, nil
		}
	}
	return nil, nil
}

// FindCourseByID returns the course with the given id, or nil.
func (db *DB) FindCourseByID(ctx context.Context, id int64) (*model.Course, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.courses[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// FindRegistration returns the registration for the pair, or nil.
func (db *DB) FindRegistration(ctx context.Context, studentID, courseID int64) (*model.Registration, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, r := range db.registrations {
		if r.StudentID == studentID && r.CourseID == courseID {
			found := r
			return &found, nil
		}
	}
	return nil, nil
}

// CountOngoingRegistrations counts registrations whose course started before
// startBefore and ends after endAfter.
func (db *DB) CountOngoingRegistrations(ctx context.Context, studentID int64, startBefore, endAfter time.Time) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	n := 0
	for _, r := range db.registrations {
		if r.StudentID != studentID {
			continue
		}
		c, ok := db.courses[r.CourseID]
		if !ok {
			continue
		}
		if c.StartTime.Before(startBefore) && c.EndTime.After(endAfter) {
			n++
		}
	}
	return n, nil
}

// FindUpcomingRegistrations lists registrations, in insertion order, whose
// course starts after the given time.
func (db *DB) FindUpcomingRegistrations(ctx context.Context, studentID int64, after time.Time) ([]model.Registration, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var result []model.Registration
	for _, r := range db.registrations {
		if r.StudentID != studentID {
			continue
		}
		c, ok := db.courses[r.CourseID]
		if !ok || !c.StartTime.After(after) {
			continue
		}
		r.Course = &c
		result = append(result, r)
	}
	return result, nil
}

// SaveRegistration appends a registration. A second registration for the
// same student and course is rejected.
func (db *DB) SaveRegistration(ctx context.Context, reg model.Registration) (*model.Registration, error) {
	if reg.ID == "" {
		return nil, errors.New("registration id is required")
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	for _, r := range db.registrations {
		if r.StudentID == reg.StudentID && r.CourseID == reg.CourseID {
			return nil, model.InvalidOperation(model.ReasonAlreadyRegistered)
		}
	}
	reg.Course = nil
	reg.RegisteredDate = reg.RegisteredDate.UTC()
	db.registrations = append(db.registrations, reg)
	return &reg, nil
}

// DeleteRegistration removes the registration with the given id.
func (db *DB) DeleteRegistration(ctx context.Context, reg model.Registration) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i, r := range db.registrations {
		if r.ID == reg.ID {
			db.registrations = append(db.registrations[:i], db.registrations[i+1:]...)
			return nil
		}
	}
	return model.NotFound("Registration")
}

// Atomic runs fn with exclusive access to the store. Registration changes
// made by fn are rolled back when it returns an error.
func (db *DB) Atomic(ctx context.Context, fn func(service.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	snapshot := db.Registrations()
	if err := fn(db); err != nil {
		db.mu.Lock()
		db.registrations = snapshot
		db.mu.Unlock()
		return err
	}
	return nil
}

package service

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/course-registration/internal/model"
)

// Store is the data-access layer the registration engine runs against.
// Lookups return (nil, nil) when the row does not exist.
type Store interface {
	FindStudentByEmail(ctx context.Context, email string) (*model.Student, error)
	FindCourseByID(ctx context.Context, id int64) (*model.Course, error)
	FindRegistration(ctx context.Context, studentID, courseID int64) (*model.Registration, error)

	// CountOngoingRegistrations counts the student's registrations whose
	// course started strictly before startBefore and ends strictly after endAfter.
	CountOngoingRegistrations(ctx context.Context, studentID int64, startBefore, endAfter time.Time) (int, error)

	// FindUpcomingRegistrations returns the student's registrations whose
	// course starts strictly after the given time, with Course populated.
	FindUpcomingRegistrations(ctx context.Context, studentID int64, after time.Time) ([]model.Registration, error)

	SaveRegistration(ctx context.Context, reg model.Registration) (*model.Registration, error)
	DeleteRegistration(ctx context.Context, reg model.Registration) error

	// Atomic runs fn inside one transaction. Every store call made through
	// the Store passed to fn is committed together, or not at all when fn
	// returns an error.
	Atomic(ctx context.Context, fn func(Store) error) error
}

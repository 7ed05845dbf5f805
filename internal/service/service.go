// Package service implements the registration rules: eligibility, pricing
// and cancellation, validated against persisted state.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/course-registration/internal/clock"
	"github.com/Shivanand-hulikatti/course-registration/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DiscountThreshold is the number of ongoing courses from which the
// discounted price applies.
const DiscountThreshold = 2

// RegistrationService orchestrates course registration and cancellation.
type RegistrationService struct {
	store  Store
	clock  clock.Clock
	logger *zap.Logger
	newID  func() string
}

// NewRegistrationService constructs a RegistrationService with its dependencies.
func NewRegistrationService(store Store, clk clock.Clock, logger *zap.Logger) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		store:  store,
		clock:  clk,
		logger: logger,
		newID:  func() string { return uuid.New().String() },
	}
}

// Register enrolls the student identified by email in the course and returns
// every course the student is registered for that has not started yet,
// including this one.
func (s *RegistrationService) Register(ctx context.Context, email string, courseID int64) ([]model.Course, error) {
	now := s.clock.Now()
	email = normalizeEmail(email)

	var (
		saved    *model.Registration
		upcoming []model.Course
	)
	err := s.store.Atomic(ctx, func(tx Store) error {
		student, course, err := s.lookup(ctx, tx, email, courseID)
		if err != nil {
			return err
		}
		if course.HasStarted(now) {
			return model.InvalidOperation(model.ReasonCourseStarted)
		}

		existing, err := tx.FindRegistration(ctx, student.ID, course.ID)
		if err != nil {
			return fmt.Errorf("find registration: %w", err)
		}
		if existing != nil {
			return model.InvalidOperation(model.ReasonAlreadyRegistered)
		}

		ongoing, err := tx.CountOngoingRegistrations(ctx, student.ID, now, now)
		if err != nil {
			return fmt.Errorf("count ongoing registrations: %w", err)
		}

		saved, err = tx.SaveRegistration(ctx, model.Registration{
			ID:             s.newID(),
			StudentID:      student.ID,
			CourseID:       course.ID,
			Price:          PriceFor(course.Price, ongoing),
			RegisteredDate: now,
		})
		if err != nil {
			return fmt.Errorf("save registration: %w", err)
		}

		upcoming, err = upcomingCourses(ctx, tx, student.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Course registered",
		zap.String("registration_id", saved.ID),
		zap.String("email", email),
		zap.Int64("course_id", courseID),
		zap.Int64("price", saved.Price),
	)
	return upcoming, nil
}

// Unregister removes the student's registration for a course that has not
// started yet.
func (s *RegistrationService) Unregister(ctx context.Context, courseID int64, email string) error {
	now := s.clock.Now()
	email = normalizeEmail(email)

	var removed model.Registration
	err := s.store.Atomic(ctx, func(tx Store) error {
		student, course, err := s.lookup(ctx, tx, email, courseID)
		if err != nil {
			return err
		}
		if course.HasStarted(now) {
			return model.InvalidOperation(model.ReasonCourseStarted)
		}

		reg, err := tx.FindRegistration(ctx, student.ID, course.ID)
		if err != nil {
			return fmt.Errorf("find registration: %w", err)
		}
		if reg == nil {
			return model.NotFound("Registration")
		}

		if err := tx.DeleteRegistration(ctx, *reg); err != nil {
			return fmt.Errorf("delete registration: %w", err)
		}
		removed = *reg
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Course unregistered",
		zap.String("registration_id", removed.ID),
		zap.String("email", email),
		zap.Int64("course_id", courseID),
	)
	return nil
}

// UpcomingCourses returns the courses the student is registered for that
// have not started yet.
func (s *RegistrationService) UpcomingCourses(ctx context.Context, email string) ([]model.Course, error) {
	now := s.clock.Now()

	student, err := s.store.FindStudentByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("find student: %w", err)
	}
	if student == nil {
		return nil, model.NotFound("Student")
	}
	return upcomingCourses(ctx, s.store, student.ID, now)
}

// lookup resolves the student and course, student first.
func (s *RegistrationService) lookup(ctx context.Context, st Store, email string, courseID int64) (*model.Student, *model.Course, error) {
	student, err := st.FindStudentByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("find student: %w", err)
	}
	if student == nil {
		return nil, nil, model.NotFound("Student")
	}

	course, err := st.FindCourseByID(ctx, courseID)
	if err != nil {
		return nil, nil, fmt.Errorf("find course: %w", err)
	}
	if course == nil {
		return nil, nil, model.NotFound("Course")
	}
	return student, course, nil
}

func upcomingCourses(ctx context.Context, st Store, studentID int64, now time.Time) ([]model.Course, error) {
	regs, err := st.FindUpcomingRegistrations(ctx, studentID, now)
	if err != nil {
		return nil, fmt.Errorf("find upcoming registrations: %w", err)
	}

	courses := make([]model.Course, 0, len(regs))
	for _, reg := range regs {
		if reg.Course == nil {
			c, err := st.FindCourseByID(ctx, reg.CourseID)
			if err != nil {
				return nil, fmt.Errorf("find course: %w", err)
			}
			if c == nil {
				continue
			}
			reg.Course = c
		}
		courses = append(courses, *reg.Course)
	}
	return courses, nil
}

// PriceFor returns the price charged for a course given how many courses the
// student is currently attending: 75% of list price, truncated toward zero, from
// DiscountThreshold ongoing courses on; full price otherwise.
func PriceFor(listPrice int64, ongoing int) int64 {
	if ongoing < DiscountThreshold {
		return listPrice
	}
	// p*3/4 truncated toward zero, without overflowing p*3.
	return listPrice/4*3 + listPrice%4*3/4
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

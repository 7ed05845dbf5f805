package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/course-registration/internal/model"
	"github.com/Shivanand-hulikatti/course-registration/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC)

func seed(t *testing.T) (*DB, model.Student) {
	t.Helper()
	db := New()
	s := db.AddStudent(model.Student{Email: "test@example.com", FirstName: "Test", LastName: "User"})
	return db, s
}

func register(t *testing.T, db *DB, id string, studentID, courseID int64) {
	t.Helper()
	_, err := db.SaveRegistration(context.Background(), model.Registration{
		ID: id, StudentID: studentID, CourseID: courseID, Price: 100, RegisteredDate: now,
	})
	require.NoError(t, err)
}

func TestFindStudentByEmail(t *testing.T) {
	ctx := context.Background()
	db, s := seed(t)

	got, err := db.FindStudentByEmail(ctx, "test@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.ID, got.ID)

	missing, err := db.FindStudentByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCountOngoingRegistrations_Boundaries(t *testing.T) {
	ctx := context.Background()
	db, s := seed(t)

	inside := db.AddCourse(model.Course{Name: "inside", StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour)})
	startsNow := db.AddCourse(model.Course{Name: "starts now", StartTime: now, EndTime: now.Add(time.Hour)})
	endsNow := db.AddCourse(model.Course{Name: "ends now", StartTime: now.Add(-time.Hour), EndTime: now})
	future := db.AddCourse(model.Course{Name: "future", StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour)})

	register(t, db, "r1", s.ID, inside.ID)
	register(t, db, "r2", s.ID, startsNow.ID)
	register(t, db, "r3", s.ID, endsNow.ID)
	register(t, db, "r4", s.ID, future.ID)

	n, err := db.CountOngoingRegistrations(ctx, s.ID, now, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFindUpcomingRegistrations(t *testing.T) {
	ctx := context.Background()
	db, s := seed(t)
	other := db.AddStudent(model.Student{Email: "other@example.com"})

	startsNow := db.AddCourse(model.Course{Name: "starts now", StartTime: now, EndTime: now.Add(time.Hour)})
	first := db.AddCourse(model.Course{Name: "first", StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour)})
	second := db.AddCourse(model.Course{Name: "second", StartTime: now.Add(48 * time.Hour), EndTime: now.Add(50 * time.Hour)})

	register(t, db, "r1", s.ID, startsNow.ID)
	register(t, db, "r2", s.ID, first.ID)
	register(t, db, "r3", s.ID, second.ID)
	register(t, db, "r4", other.ID, first.ID)

	regs, err := db.FindUpcomingRegistrations(ctx, s.ID, now)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "first", regs[0].Course.Name)
	assert.Equal(t, "second", regs[1].Course.Name)
}

func TestSaveRegistration_RejectsDuplicatePair(t *testing.T) {
	ctx := context.Background()
	db, s := seed(t)
	c := db.AddCourse(model.Course{Name: "c", StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour)})

	register(t, db, "r1", s.ID, c.ID)
	_, err := db.SaveRegistration(ctx, model.Registration{ID: "r2", StudentID: s.ID, CourseID: c.ID})
	assert.ErrorIs(t, err, model.ErrInvalidOperation)
	assert.Len(t, db.Registrations(), 1)
}

func TestDeleteRegistration(t *testing.T) {
	ctx := context.Background()
	db, s := seed(t)
	c := db.AddCourse(model.Course{Name: "c", StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour)})
	register(t, db, "r1", s.ID, c.ID)

	require.NoError(t, db.DeleteRegistration(ctx, model.Registration{ID: "r1"}))
	assert.Empty(t, db.Registrations())

	assert.ErrorIs(t, db.DeleteRegistration(ctx, model.Registration{ID: "r1"}), model.ErrNotFound)
}

func TestAtomic_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db, s := seed(t)
	c := db.AddCourse(model.Course{Name: "c", StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour)})

	boom := errors.New("boom")
	err := db.Atomic(ctx, func(tx service.Store) error {
		if _, err := tx.SaveRegistration(ctx, model.Registration{ID: "r1", StudentID: s.ID, CourseID: c.ID}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, db.Registrations())

	err = db.Atomic(ctx, func(tx service.Store) error {
		_, err := tx.SaveRegistration(ctx, model.Registration{ID: "r1", StudentID: s.ID, CourseID: c.ID})
		return err
	})
	require.NoError(t, err)
	assert.Len(t, db.Registrations(), 1)
}

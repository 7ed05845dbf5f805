package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/course-registration/internal/clock"
	"github.com/Shivanand-hulikatti/course-registration/internal/model"
	"github.com/Shivanand-hulikatti/course-registration/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "registration.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func insertStudent(t *testing.T, s *Store, email string) int64 {
	t.Helper()
	res, err := s.sqlDB.Exec(`INSERT INTO students (email, first_name, last_name) VALUES (?, 'Test', 'User')`, email)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func insertCourse(t *testing.T, s *Store, name string, start, end time.Time, price int64) int64 {
	t.Helper()
	res, err := s.sqlDB.Exec(
		`INSERT INTO courses (name, start_time, end_time, price) VALUES (?, ?, ?, ?)`,
		name, toMillis(start), toMillis(end), price,
	)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func insertRegistration(t *testing.T, s *Store, id string, studentID, courseID int64) {
	t.Helper()
	_, err := s.SaveRegistration(context.Background(), model.Registration{
		ID: id, StudentID: studentID, CourseID: courseID, Price: 100, RegisteredDate: now,
	})
	require.NoError(t, err)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ", zap.NewNop())
	assert.Error(t, err)
}

func TestLookups(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	studentID := insertStudent(t, s, "test@example.com")
	courseID := insertCourse(t, s, "Future Course", now.Add(24*time.Hour), now.Add(48*time.Hour), 1000)

	st, err := s.FindStudentByEmail(ctx, "test@example.com")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, studentID, st.ID)

	missing, err := s.FindStudentByEmail(ctx, "unknown@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	c, err := s.FindCourseByID(ctx, courseID)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Future Course", c.Name)
	assert.True(t, c.StartTime.Equal(now.Add(24*time.Hour)))
	assert.Equal(t, int64(1000), c.Price)

	none, err := s.FindCourseByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRegistrationLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	studentID := insertStudent(t, s, "test@example.com")
	courseID := insertCourse(t, s, "Future Course", now.Add(time.Hour), now.Add(2*time.Hour), 1000)

	insertRegistration(t, s, "reg-1", studentID, courseID)

	reg, err := s.FindRegistration(ctx, studentID, courseID)
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.Equal(t, "reg-1", reg.ID)
	assert.True(t, reg.RegisteredDate.Equal(now))

	_, err = s.SaveRegistration(ctx, model.Registration{ID: "reg-2", StudentID: studentID, CourseID: courseID, RegisteredDate: now})
	require.ErrorIs(t, err, model.ErrInvalidOperation)

	require.NoError(t, s.DeleteRegistration(ctx, *reg))
	gone, err := s.FindRegistration(ctx, studentID, courseID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	assert.ErrorIs(t, s.DeleteRegistration(ctx, *reg), model.ErrNotFound)
}

func TestCountOngoingRegistrations_StrictBounds(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	studentID := insertStudent(t, s, "test@example.com")

	inside := insertCourse(t, s, "inside", now.Add(-time.Hour), now.Add(time.Hour), 1)
	startsNow := insertCourse(t, s, "starts now", now, now.Add(time.Hour), 1)
	endsNow := insertCourse(t, s, "ends now", now.Add(-time.Hour), now, 1)
	upcoming := insertCourse(t, s, "upcoming", now.Add(time.Hour), now.Add(2*time.Hour), 1)

	insertRegistration(t, s, "r1", studentID, inside)
	insertRegistration(t, s, "r2", studentID, startsNow)
	insertRegistration(t, s, "r3", studentID, endsNow)
	insertRegistration(t, s, "r4", studentID, upcoming)

	n, err := s.CountOngoingRegistrations(ctx, studentID, now, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFindUpcomingRegistrations_OrderedByStart(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	studentID := insertStudent(t, s, "test@example.com")
	otherID := insertStudent(t, s, "other@example.com")

	later := insertCourse(t, s, "later", now.Add(48*time.Hour), now.Add(50*time.Hour), 1)
	sooner := insertCourse(t, s, "sooner", now.Add(time.Hour), now.Add(2*time.Hour), 1)
	startsNow := insertCourse(t, s, "starts now", now, now.Add(time.Hour), 1)

	insertRegistration(t, s, "r1", studentID, later)
	insertRegistration(t, s, "r2", studentID, sooner)
	insertRegistration(t, s, "r3", studentID, startsNow)
	insertRegistration(t, s, "r4", otherID, sooner)

	regs, err := s.FindUpcomingRegistrations(ctx, studentID, now)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "sooner", regs[0].Course.Name)
	assert.Equal(t, "later", regs[1].Course.Name)
}

func TestAtomic_RollsBack(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	studentID := insertStudent(t, s, "test@example.com")
	courseID := insertCourse(t, s, "c", now.Add(time.Hour), now.Add(2*time.Hour), 1)

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(tx service.Store) error {
		if _, err := tx.SaveRegistration(ctx, model.Registration{ID: "r1", StudentID: studentID, CourseID: courseID, RegisteredDate: now}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	reg, err := s.FindRegistration(ctx, studentID, courseID)
	require.NoError(t, err)
	assert.Nil(t, reg)
}

func TestRegistrationService_EndToEnd(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	insertStudent(t, s, "test@example.com")
	for i := 0; i < 2; i++ {
		ongoing := insertCourse(t, s, "ongoing", now.Add(-time.Hour), now.Add(time.Hour), 100)
		st, err := s.FindStudentByEmail(ctx, "test@example.com")
		require.NoError(t, err)
		insertRegistration(t, s, "ongoing-"+string(rune('a'+i)), st.ID, ongoing)
	}
	courseID := insertCourse(t, s, "Discounted", now.Add(24*time.Hour), now.Add(48*time.Hour), 1000)

	svc := service.NewRegistrationService(s, clock.NewFixed(now), zap.NewNop())

	courses, err := svc.Register(ctx, "test@example.com", courseID)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, courseID, courses[0].ID)

	st, err := s.FindStudentByEmail(ctx, "test@example.com")
	require.NoError(t, err)
	reg, err := s.FindRegistration(ctx, st.ID, courseID)
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.Equal(t, int64(750), reg.Price)

	_, err = svc.Register(ctx, "test@example.com", courseID)
	require.ErrorIs(t, err, model.ErrInvalidOperation)

	require.NoError(t, svc.Unregister(ctx, courseID, "test@example.com"))
	err = svc.Unregister(ctx, courseID, "test@example.com")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

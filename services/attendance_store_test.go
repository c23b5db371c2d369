package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"musicschool_go/database/testdb"
	"musicschool_go/models"
)

// seedSchedule stores a Monday piano lesson priced at 600 with a 50% teacher.
func seedSchedule(t *testing.T, db *gorm.DB) models.LessonSchedule {
	t.Helper()
	teacher := models.Teacher{FirstName: "Anna", LastName: "Keller", CommissionRate: 50, IsActive: true}
	student := models.Student{FirstName: "Mia", LastName: "Schmidt", Status: models.StudentActive}
	room := models.Classroom{Name: "Room A", IsActive: true}
	piano := models.LessonType{Name: "Piano", DefaultPrice: 600, IsActive: true}
	require.NoError(t, db.Create(&teacher).Error)
	require.NoError(t, db.Create(&student).Error)
	require.NoError(t, db.Create(&room).Error)
	require.NoError(t, db.Create(&piano).Error)

	schedule := models.LessonSchedule{
		StudentID: student.ID, TeacherID: teacher.ID, LessonTypeID: piano.ID, ClassroomID: room.ID,
		DayOfWeek: "MONDAY", StartTime: "16:00", EndTime: "16:45", IsActive: true,
	}
	require.NoError(t, db.Create(&schedule).Error)
	return schedule
}

func countAttendances(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Unscoped().Model(&models.LessonAttendance{}).Count(&n).Error)
	return n
}

func TestGormStoreSetStatusRoundTrip(t *testing.T) {
	db := testdb.Open(t)
	schedule := seedSchedule(t, db)
	store := NewGormAttendanceStore(db)
	svc := NewAttendanceService(store)
	ctx := context.Background()
	const day = "2024-03-11"

	change, err := svc.SetStatus(ctx, schedule.ID, day, models.AttendanceCompleted, "")
	require.NoError(t, err)
	assert.True(t, change.Created)

	got, err := store.FindAttendance(ctx, schedule.ID, day)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, change.Attendance.ID, got.ID)
	assert.Equal(t, models.AttendanceCompleted, got.Status)
	assert.Equal(t, 600.0, got.LessonPrice)
	assert.Equal(t, 300.0, got.TeacherCommission)
	assert.Equal(t, 300.0, got.SchoolShare)
	assert.Equal(t, DefaultAttendanceNote, got.Notes)

	change, err = svc.SetStatus(ctx, schedule.ID, day, models.AttendanceAbsent, "sick")
	require.NoError(t, err)
	assert.False(t, change.Created)
	assert.Equal(t, models.AttendanceCompleted, change.PreviousStatus)

	got, err = store.FindAttendance(ctx, schedule.ID, day)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceAbsent, got.Status)
	assert.Equal(t, "sick", got.Notes)
	assert.Equal(t, int64(1), countAttendances(t, db))
}

func TestGormStoreMarkAfterSoftDelete(t *testing.T) {
	db := testdb.Open(t)
	schedule := seedSchedule(t, db)
	store := NewGormAttendanceStore(db)
	svc := NewAttendanceService(store)
	ctx := context.Background()
	const day = "2024-03-11"

	first, err := svc.SetStatus(ctx, schedule.ID, day, models.AttendanceCompleted, "")
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.LessonAttendance{}).Where("id = ?", first.Attendance.ID).Update("is_paid", true).Error)
	require.NoError(t, db.Delete(&models.LessonAttendance{}, first.Attendance.ID).Error)

	change, err := svc.SetStatus(ctx, schedule.ID, day, models.AttendanceAbsent, "")
	require.NoError(t, err)
	assert.True(t, change.Created)
	assert.Equal(t, first.Attendance.ID, change.Attendance.ID)

	var got models.LessonAttendance
	require.NoError(t, db.First(&got, first.Attendance.ID).Error, "record is visible again")
	assert.Equal(t, models.AttendanceAbsent, got.Status)
	assert.False(t, got.IsPaid)
	assert.Equal(t, 600.0, got.LessonPrice)
	assert.Equal(t, int64(1), countAttendances(t, db))
}

func TestGormStoreCreateReportsTakenKey(t *testing.T) {
	db := testdb.Open(t)
	schedule := seedSchedule(t, db)
	store := NewGormAttendanceStore(db)
	ctx := context.Background()

	a := models.LessonAttendance{LessonScheduleID: schedule.ID, LessonDate: "2024-03-11", Status: models.AttendanceCompleted}
	require.NoError(t, store.CreateAttendance(ctx, &a))

	dup := models.LessonAttendance{LessonScheduleID: schedule.ID, LessonDate: "2024-03-11", Status: models.AttendanceAbsent}
	assert.ErrorIs(t, store.CreateAttendance(ctx, &dup), ErrAttendanceExists)
}

// barrierStore holds the first two lookups until both have run, so both
// writers see no record and both try to insert.
type barrierStore struct {
	*GormAttendanceStore
	arrived sync.WaitGroup
	calls   int32
}

func (b *barrierStore) FindAttendance(ctx context.Context, scheduleID uint, date string) (*models.LessonAttendance, error) {
	a, err := b.GormAttendanceStore.FindAttendance(ctx, scheduleID, date)
	if atomic.AddInt32(&b.calls, 1) <= 2 {
		b.arrived.Done()
		b.arrived.Wait()
	}
	return a, err
}

func TestGormStoreConcurrentFirstMarks(t *testing.T) {
	db := testdb.Open(t)
	schedule := seedSchedule(t, db)
	store := &barrierStore{GormAttendanceStore: NewGormAttendanceStore(db)}
	store.arrived.Add(2)
	svc := NewAttendanceService(store)

	statuses := []string{models.AttendanceCompleted, models.AttendanceAbsent}
	errs := make([]error, len(statuses))
	var wg sync.WaitGroup
	for i, status := range statuses {
		wg.Add(1)
		go func(i int, status string) {
			defer wg.Done()
			_, errs[i] = svc.SetStatus(context.Background(), schedule.ID, "2024-03-11", status, "")
		}(i, status)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(1), countAttendances(t, db))
	got, err := store.GormAttendanceStore.FindAttendance(context.Background(), schedule.ID, "2024-03-11")
	require.NoError(t, err)
	assert.Contains(t, statuses, got.Status)
}

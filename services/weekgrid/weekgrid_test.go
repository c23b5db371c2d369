package weekgrid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicschool_go/models"
)

func schedule(id, student, teacher, lessonType, classroom uint, day, start string) models.LessonSchedule {
	return models.LessonSchedule{
		BaseModel:    models.BaseModel{ID: id},
		StudentID:    student,
		TeacherID:    teacher,
		LessonTypeID: lessonType,
		ClassroomID:  classroom,
		DayOfWeek:    day,
		StartTime:    start,
		IsActive:     true,
	}
}

func student(id uint, status string) models.Student {
	return models.Student{BaseModel: models.BaseModel{ID: id}, FirstName: "Student", LastName: string(rune('A' + id)), Status: status}
}

func fixture() Input {
	return Input{
		Students: []models.Student{
			student(1, models.StudentActive),
			student(2, models.StudentActive),
			student(3, models.StudentInactive),
		},
		Teachers: []models.Teacher{
			{BaseModel: models.BaseModel{ID: 10}, FirstName: "Ayse", LastName: "Kaya", Color: "#123456"},
			{BaseModel: models.BaseModel{ID: 11}, FirstName: "Mehmet", LastName: "Demir"},
		},
		Classrooms: []models.Classroom{
			{BaseModel: models.BaseModel{ID: 100}, Name: "Piano Room", IsActive: true},
			{BaseModel: models.BaseModel{ID: 101}, Name: "Guitar Room", IsActive: true},
		},
		LessonTypes: []models.LessonType{
			{BaseModel: models.BaseModel{ID: 20}, Name: "Piano"},
			{BaseModel: models.BaseModel{ID: 21}, Name: "Guitar"},
		},
		Schedules: []models.LessonSchedule{
			schedule(1, 1, 10, 20, 100, "MONDAY", "10:00"),
			schedule(2, 2, 11, 21, 101, "WEDNESDAY", "14:00:00"),
			schedule(3, 3, 10, 20, 100, "TUESDAY", "10:00"),
		},
		Reference: time.Date(2024, 3, 14, 15, 30, 0, 0, time.UTC), // Thursday
		Slots:     HourSlots(9, 21),
	}
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		name string
		ref  time.Time
		want string
	}{
		{"monday", time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC), "2024-03-11"},
		{"thursday", time.Date(2024, 3, 14, 23, 59, 0, 0, time.UTC), "2024-03-11"},
		{"sunday", time.Date(2024, 3, 17, 12, 0, 0, 0, time.UTC), "2024-03-11"},
		{"across month", time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC), "2024-02-26"},
		{"across year", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "2024-12-30"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := WeekStart(tc.ref)
			assert.Equal(t, tc.want, got.Format(DateLayout))
			assert.Equal(t, time.Monday, got.Weekday())
			assert.Zero(t, got.Hour())
		})
	}
}

func TestWeekDates(t *testing.T) {
	dates := WeekDates(WeekStart(time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)))
	require.Len(t, dates, 7)
	assert.Equal(t, "2024-03-11", dates[0].Format(DateLayout))
	assert.Equal(t, "2024-03-17", dates[6].Format(DateLayout))
	assert.Equal(t, time.Sunday, dates[6].Weekday())
}

func TestHourSlots(t *testing.T) {
	assert.Equal(t, []string{"09:00", "10:00", "11:00"}, HourSlots(9, 12))
	assert.Empty(t, HourSlots(12, 12))
	assert.Len(t, HourSlots(9, 21), 12)
}

func TestNormalizeClock(t *testing.T) {
	tests := map[string]string{
		"09:00":                     "09:00",
		"9:05":                      "09:05",
		"14:30:00":                  "14:30",
		"2024-03-11T16:00:00+03:00": "16:00",
		"2024-03-11 08:45:00":       "08:45",
	}
	for in, want := range tests {
		got, ok := NormalizeClock(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "noon", "24:00", "25:00", "10:75", "7:5"} {
		_, ok := NormalizeClock(bad)
		assert.False(t, ok, bad)
	}
}

func TestResolvePlacesScheduleAtItsCoordinate(t *testing.T) {
	g := Resolve(fixture())

	assert.Equal(t, "2024-03-11", g.WeekStart)
	require.Len(t, g.Days, 7)
	assert.Equal(t, DayColumn{Day: "WEDNESDAY", Date: "2024-03-13"}, g.Days[2])

	cell, ok := g.Cell("MONDAY", 100, "10:00")
	require.True(t, ok)
	assert.Equal(t, uint(1), cell.Schedule.ID)
	assert.Equal(t, "2024-03-11", cell.Date)
	assert.Equal(t, "Ayse Kaya", cell.TeacherName)
	assert.Equal(t, "#123456", cell.TeacherColor)
	assert.Equal(t, "Piano", cell.LessonTypeName)

	// seconds are truncated before matching
	cell, ok = g.Cell("WEDNESDAY", 101, "14:00")
	require.True(t, ok)
	assert.Equal(t, uint(2), cell.Schedule.ID)
	assert.Equal(t, "2024-03-13", cell.Date)

	_, ok = g.Cell("MONDAY", 101, "10:00")
	assert.False(t, ok)
	_, ok = g.Cell("FRIDAY", 100, "10:00")
	assert.False(t, ok)
}

func TestResolveHidesInactiveStudents(t *testing.T) {
	in := fixture()
	in.Filter = Filter{TeacherID: 10}
	g := Resolve(in)

	_, ok := g.Cell("TUESDAY", 100, "10:00")
	assert.False(t, ok, "schedule of an inactive student must never be shown")
	for _, c := range g.Cells {
		assert.NotEqual(t, uint(3), c.Schedule.StudentID)
	}
}

func TestResolveAttachesAttendanceForDisplayedDate(t *testing.T) {
	in := fixture()
	in.Attendances = []models.LessonAttendance{
		{LessonScheduleID: 1, LessonDate: "2024-03-04", Status: models.AttendanceAbsent},
		{LessonScheduleID: 1, LessonDate: "2024-03-11", Status: models.AttendanceCompleted},
	}
	g := Resolve(in)

	cell, ok := g.Cell("MONDAY", 100, "10:00")
	require.True(t, ok)
	require.NotNil(t, cell.Attendance)
	assert.True(t, cell.Marked)
	assert.Equal(t, models.AttendanceCompleted, cell.Status)
	assert.Equal(t, "#4caf50", cell.Display.Color)

	cell, ok = g.Cell("WEDNESDAY", 101, "14:00")
	require.True(t, ok)
	assert.Nil(t, cell.Attendance)
	assert.False(t, cell.Marked)
	assert.Equal(t, models.AttendanceScheduled, cell.Status)
	assert.Equal(t, "Not marked", cell.Display.Label)
}

func TestResolveFirstMatchWinsAndReportsConflict(t *testing.T) {
	in := fixture()
	in.Schedules = append(in.Schedules, schedule(9, 2, 11, 21, 100, "MONDAY", "10:00"))
	g := Resolve(in)

	cell, ok := g.Cell("MONDAY", 100, "10:00")
	require.True(t, ok)
	assert.Equal(t, uint(1), cell.Schedule.ID)
	require.Len(t, g.Conflicts, 1)
	assert.Equal(t, Conflict{Day: "MONDAY", ClassroomID: 100, Slot: "10:00", ShownScheduleID: 1, HiddenScheduleID: 9}, g.Conflicts[0])
}

func TestResolveUnplacedAndPlaceholders(t *testing.T) {
	in := fixture()
	off := schedule(7, 1, 99, 98, 555, "FRIDAY", "10:30")
	late := schedule(8, 1, 10, 20, 100, "FRIDAY", "22:00")
	orphan := schedule(6, 2, 99, 98, 555, "SATURDAY", "11:00")
	in.Schedules = append(in.Schedules, off, late, orphan)
	g := Resolve(in)

	assert.ElementsMatch(t, []uint{7, 8}, g.Unplaced)

	cell, ok := g.Cell("SATURDAY", 555, "11:00")
	require.True(t, ok)
	assert.Equal(t, UnknownTeacher, cell.TeacherName)
	assert.Equal(t, UnknownLessonType, cell.LessonTypeName)

	last := g.Classrooms[len(g.Classrooms)-1]
	assert.Equal(t, Room{ID: 555, Name: UnknownClassroom}, last)
}

func TestFilterSchedulesIsConjunctive(t *testing.T) {
	students := map[uint]models.Student{
		1: student(1, models.StudentActive),
		2: student(2, models.StudentActive),
		3: student(3, models.StudentFrozen),
	}
	schedules := []models.LessonSchedule{
		schedule(1, 1, 10, 20, 100, "MONDAY", "10:00"),
		schedule(2, 1, 11, 20, 100, "MONDAY", "11:00"),
		schedule(3, 2, 10, 21, 101, "TUESDAY", "10:00"),
		schedule(4, 2, 10, 20, 101, "MONDAY", "12:00"),
		schedule(5, 3, 10, 20, 101, "MONDAY", "13:00"),
		schedule(6, 4, 10, 20, 101, "MONDAY", "14:00"),
	}
	inactive := schedule(7, 1, 10, 20, 100, "MONDAY", "15:00")
	inactive.IsActive = false
	schedules = append(schedules, inactive)

	tests := []struct {
		name   string
		filter Filter
		want   []uint
	}{
		{"no filter", Filter{}, []uint{1, 2, 3, 4}},
		{"teacher", Filter{TeacherID: 10}, []uint{1, 3, 4}},
		{"teacher and lesson type", Filter{TeacherID: 10, LessonTypeID: 20}, []uint{1, 4}},
		{"teacher, lesson type and day", Filter{TeacherID: 10, LessonTypeID: 20, Day: "monday"}, []uint{1, 4}},
		{"student and day", Filter{StudentID: 2, Day: "TUESDAY"}, []uint{3}},
		{"nothing matches", Filter{StudentID: 1, TeacherID: 10, Day: "TUESDAY"}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FilterSchedules(schedules, students, tc.filter)
			var ids []uint
			for _, s := range got {
				ids = append(ids, s.ID)
				assert.Equal(t, models.StudentActive, students[s.StudentID].Status)
				if tc.filter.TeacherID != 0 {
					assert.Equal(t, tc.filter.TeacherID, s.TeacherID)
				}
				if tc.filter.StudentID != 0 {
					assert.Equal(t, tc.filter.StudentID, s.StudentID)
				}
				if tc.filter.LessonTypeID != 0 {
					assert.Equal(t, tc.filter.LessonTypeID, s.LessonTypeID)
				}
			}
			assert.Equal(t, tc.want, ids)
		})
	}
}

func TestFilterSchedulesFallsBackToPreloadedStudent(t *testing.T) {
	s := schedule(1, 42, 10, 20, 100, "MONDAY", "10:00")
	active := student(42, models.StudentActive)
	s.Student = &active

	got := FilterSchedules([]models.LessonSchedule{s}, nil, Filter{})
	assert.Len(t, got, 1)
}

func TestPresentationFor(t *testing.T) {
	for _, status := range models.AttendanceStatuses {
		p := PresentationFor(&models.LessonAttendance{Status: status})
		assert.NotEmpty(t, p.Color, status)
		assert.NotEmpty(t, p.Icon, status)
	}
	assert.Equal(t, "help", PresentationFor(&models.LessonAttendance{Status: "WHATEVER"}).Icon)
}

func TestCellLookupAfterDecode(t *testing.T) {
	g := Resolve(fixture())
	decoded := &Grid{Cells: g.Cells}
	cell, ok := decoded.Cell("MONDAY", 100, "10:00")
	require.True(t, ok)
	assert.Equal(t, uint(1), cell.Schedule.ID)
}

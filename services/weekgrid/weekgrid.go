// Package weekgrid builds the weekly lesson calendar: one column per classroom,
// one row per hour slot, one block per day, each cell resolved to at most one
// recurring schedule and that schedule's attendance for the displayed date.
package weekgrid

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"musicschool_go/models"
)

// DateLayout is the attendance lesson_date format.
const DateLayout = "2006-01-02"

// Placeholder labels for references that cannot be resolved.
const (
	UnknownTeacher    = "Unknown Teacher"
	UnknownStudent    = "Unknown Student"
	UnknownClassroom  = "Unknown Classroom"
	UnknownLessonType = "Unknown Lesson Type"
)

// Filter narrows the schedules shown. Zero values are unset; set fields are ANDed.
type Filter struct {
	TeacherID    uint   `json:"teacher_id,omitempty"`
	StudentID    uint   `json:"student_id,omitempty"`
	LessonTypeID uint   `json:"lesson_type_id,omitempty"`
	Day          string `json:"day,omitempty"`
}

// Input is everything the resolver reads. Reference may be any date inside the
// week to display.
type Input struct {
	Schedules   []models.LessonSchedule
	Attendances []models.LessonAttendance
	Students    []models.Student
	Teachers    []models.Teacher
	Classrooms  []models.Classroom
	LessonTypes []models.LessonType
	Reference   time.Time
	Filter      Filter
	Slots       []string
}

// Presentation is the display treatment of an attendance status.
type Presentation struct {
	Color string `json:"color"`
	Icon  string `json:"icon"`
	Label string `json:"label"`
}

// Cell is a resolved grid coordinate holding a schedule.
type Cell struct {
	Day            string                   `json:"day"`
	Date           string                   `json:"date"`
	ClassroomID    uint                     `json:"classroom_id"`
	Slot           string                   `json:"slot"`
	Schedule       models.LessonSchedule    `json:"schedule"`
	Attendance     *models.LessonAttendance `json:"attendance"`
	Status         string                   `json:"status"`
	Marked         bool                     `json:"marked"`
	TeacherName    string                   `json:"teacher_name"`
	TeacherColor   string                   `json:"teacher_color,omitempty"`
	StudentName    string                   `json:"student_name"`
	LessonTypeName string                   `json:"lesson_type_name"`
	Display        Presentation             `json:"display"`
}

// DayColumn pairs a weekday with its calendar date in the displayed week.
type DayColumn struct {
	Day  string `json:"day"`
	Date string `json:"date"`
}

// Room is a classroom column of the grid.
type Room struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Conflict reports a schedule hidden because an earlier one already occupies
// the same coordinate.
type Conflict struct {
	Day              string `json:"day"`
	ClassroomID      uint   `json:"classroom_id"`
	Slot             string `json:"slot"`
	ShownScheduleID  uint   `json:"shown_schedule_id"`
	HiddenScheduleID uint   `json:"hidden_schedule_id"`
}

// Grid is the resolved view-model for one week.
type Grid struct {
	WeekStart  string      `json:"week_start"`
	Days       []DayColumn `json:"days"`
	Slots      []string    `json:"slots"`
	Classrooms []Room      `json:"classrooms"`
	Cells      []Cell      `json:"cells"`
	Conflicts  []Conflict  `json:"conflicts"`
	Unplaced   []uint      `json:"unplaced"`

	index map[cellKey]int
}

type cellKey struct {
	day       string
	classroom uint
	slot      string
}

// Cell returns the schedule resolved at a coordinate, or false when empty.
func (g *Grid) Cell(day string, classroomID uint, slot string) (Cell, bool) {
	if g == nil {
		return Cell{}, false
	}
	if g.index == nil {
		// grids decoded from JSON carry no index
		g.index = make(map[cellKey]int, len(g.Cells))
		for i, c := range g.Cells {
			g.index[cellKey{c.Day, c.ClassroomID, c.Slot}] = i
		}
	}
	i, ok := g.index[cellKey{day, classroomID, slot}]
	if !ok {
		return Cell{}, false
	}
	return g.Cells[i], true
}

// WeekStart returns local midnight of the Monday on or before ref.
func WeekStart(ref time.Time) time.Time {
	offset := (int(ref.Weekday()) + 6) % 7
	y, m, d := ref.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, ref.Location())
}

// WeekDates returns the seven dates Monday..Sunday starting at start.
func WeekDates(start time.Time) []time.Time {
	dates := make([]time.Time, 7)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

// HourSlots returns "HH:00" labels for startHour <= h < endHour.
func HourSlots(startHour, endHour int) []string {
	if endHour <= startHour {
		return nil
	}
	slots := make([]string, 0, endHour-startHour)
	for h := startHour; h < endHour; h++ {
		slots = append(slots, fmt.Sprintf("%02d:00", h))
	}
	return slots
}

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})`)

// NormalizeClock truncates a wall-clock value such as "9:00" or "09:00:00"
// to "HH:mm".
func NormalizeClock(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if i := strings.IndexAny(value, "T "); i >= 0 && strings.Count(value, "-") >= 2 {
		value = value[i+1:]
	}
	m := clockPattern.FindStringSubmatch(value)
	if m == nil {
		return "", false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	minute, err := strconv.Atoi(m[2])
	if err != nil || hour > 23 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// FilterSchedules keeps active schedules of ACTIVE students that satisfy
// every set field of f. Students missing from the lookup count as inactive
// unless the schedule carries a preloaded student.
func FilterSchedules(schedules []models.LessonSchedule, students map[uint]models.Student, f Filter) []models.LessonSchedule {
	out := make([]models.LessonSchedule, 0, len(schedules))
	for _, s := range schedules {
		if !s.IsActive {
			continue
		}
		st, ok := students[s.StudentID]
		if !ok && s.Student != nil {
			st, ok = *s.Student, true
		}
		if !ok || st.Status != models.StudentActive {
			continue
		}
		if f.TeacherID != 0 && s.TeacherID != f.TeacherID {
			continue
		}
		if f.StudentID != 0 && s.StudentID != f.StudentID {
			continue
		}
		if f.LessonTypeID != 0 && s.LessonTypeID != f.LessonTypeID {
			continue
		}
		if f.Day != "" && !strings.EqualFold(s.DayOfWeek, f.Day) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// FindAttendance returns the record for (scheduleID, date), if any.
func FindAttendance(records []models.LessonAttendance, scheduleID uint, date string) *models.LessonAttendance {
	for i := range records {
		if records[i].LessonScheduleID == scheduleID && records[i].LessonDate == date {
			return &records[i]
		}
	}
	return nil
}

var presentations = map[string]Presentation{
	models.AttendanceScheduled:   {Color: "#2196f3", Icon: "schedule", Label: "Scheduled"},
	models.AttendanceCompleted:   {Color: "#4caf50", Icon: "check_circle", Label: "Completed"},
	models.AttendanceCancelled:   {Color: "#9e9e9e", Icon: "cancel", Label: "Cancelled"},
	models.AttendanceAbsent:      {Color: "#f44336", Icon: "person_off", Label: "Absent"},
	models.AttendanceRescheduled: {Color: "#ff9800", Icon: "update", Label: "Rescheduled"},
}

// PresentationFor maps a status to its display. A nil record is shown as
// scheduled but not yet marked.
func PresentationFor(a *models.LessonAttendance) Presentation {
	if a == nil {
		p := presentations[models.AttendanceScheduled]
		p.Label = "Not marked"
		return p
	}
	if p, ok := presentations[a.Status]; ok {
		return p
	}
	return Presentation{Color: "#607d8b", Icon: "help", Label: a.Status}
}

// Resolve builds the grid for the week containing in.Reference.
func Resolve(in Input) *Grid {
	start := WeekStart(in.Reference)
	dates := WeekDates(start)

	students := make(map[uint]models.Student, len(in.Students))
	for _, s := range in.Students {
		students[s.ID] = s
	}
	teachers := make(map[uint]models.Teacher, len(in.Teachers))
	for _, t := range in.Teachers {
		teachers[t.ID] = t
	}
	lessonTypes := make(map[uint]models.LessonType, len(in.LessonTypes))
	for _, lt := range in.LessonTypes {
		lessonTypes[lt.ID] = lt
	}
	classrooms := make(map[uint]models.Classroom, len(in.Classrooms))
	for _, c := range in.Classrooms {
		classrooms[c.ID] = c
	}

	slotSet := make(map[string]struct{}, len(in.Slots))
	for _, s := range in.Slots {
		slotSet[s] = struct{}{}
	}

	g := &Grid{
		WeekStart: start.Format(DateLayout),
		Slots:     append([]string(nil), in.Slots...),
		Cells:     []Cell{},
		Conflicts: []Conflict{},
		Unplaced:  []uint{},
		index:     make(map[cellKey]int),
	}
	for i, d := range dates {
		g.Days = append(g.Days, DayColumn{Day: models.DaysOfWeek[i], Date: d.Format(DateLayout)})
	}

	for _, s := range FilterSchedules(in.Schedules, students, in.Filter) {
		dayIdx := models.DayIndex(strings.ToUpper(s.DayOfWeek))
		slot, ok := NormalizeClock(s.StartTime)
		if _, inGrid := slotSet[slot]; dayIdx < 0 || !ok || !inGrid {
			g.Unplaced = append(g.Unplaced, s.ID)
			continue
		}
		day := models.DaysOfWeek[dayIdx]
		key := cellKey{day, s.ClassroomID, slot}
		if existing, taken := g.index[key]; taken {
			g.Conflicts = append(g.Conflicts, Conflict{
				Day:              day,
				ClassroomID:      s.ClassroomID,
				Slot:             slot,
				ShownScheduleID:  g.Cells[existing].Schedule.ID,
				HiddenScheduleID: s.ID,
			})
			continue
		}

		date := dates[dayIdx].Format(DateLayout)
		att := FindAttendance(in.Attendances, s.ID, date)
		cell := Cell{
			Day:            day,
			Date:           date,
			ClassroomID:    s.ClassroomID,
			Slot:           slot,
			Schedule:       s,
			Attendance:     att,
			Status:         models.AttendanceScheduled,
			Marked:         att != nil,
			TeacherName:    UnknownTeacher,
			StudentName:    UnknownStudent,
			LessonTypeName: UnknownLessonType,
			Display:        PresentationFor(att),
		}
		if att != nil {
			cell.Status = att.Status
		}
		if t, ok := teachers[s.TeacherID]; ok {
			cell.TeacherName, cell.TeacherColor = t.FullName(), t.Color
		} else if s.Teacher != nil {
			cell.TeacherName, cell.TeacherColor = s.Teacher.FullName(), s.Teacher.Color
		}
		if st, ok := students[s.StudentID]; ok {
			cell.StudentName = st.FullName()
		} else if s.Student != nil {
			cell.StudentName = s.Student.FullName()
		}
		if lt, ok := lessonTypes[s.LessonTypeID]; ok {
			cell.LessonTypeName = lt.Name
		} else if s.LessonType != nil {
			cell.LessonTypeName = s.LessonType.Name
		}
		if _, ok := classrooms[s.ClassroomID]; !ok && s.Classroom != nil {
			classrooms[s.ClassroomID] = *s.Classroom
		}

		g.index[key] = len(g.Cells)
		g.Cells = append(g.Cells, cell)
	}

	g.Classrooms = columns(in.Classrooms, classrooms, g.Cells)
	return g
}

// columns lists active classrooms in input order, then any classroom that only
// appears through a placed schedule, labelled with a placeholder when unknown.
func columns(ordered []models.Classroom, known map[uint]models.Classroom, cells []Cell) []Room {
	rooms := []Room{}
	seen := make(map[uint]bool)
	for _, c := range ordered {
		if !c.IsActive || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		rooms = append(rooms, Room{ID: c.ID, Name: c.Name, Color: c.Color})
	}
	var extra []Room
	for _, cell := range cells {
		if seen[cell.ClassroomID] {
			continue
		}
		seen[cell.ClassroomID] = true
		r := Room{ID: cell.ClassroomID, Name: UnknownClassroom}
		if c, ok := known[cell.ClassroomID]; ok {
			r.Name, r.Color = c.Name, c.Color
		}
		extra = append(extra, r)
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].ID < extra[j].ID })
	return append(rooms, extra...)
}

package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"musicschool_go/models"
	"musicschool_go/services/weekgrid"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Reminder is one lesson reminder ready to send.
type Reminder struct {
	ScheduleID uint   `json:"lesson_schedule_id"`
	StudentID  uint   `json:"student_id"`
	Recipient  string `json:"recipient"`
	Text       string `json:"text"`
}

// BuildReminders picks the active schedules that fall on date's weekday and
// whose active student has a LINE id. Relations must be preloaded.
func BuildReminders(schedules []models.LessonSchedule, date time.Time) []Reminder {
	day := strings.ToUpper(date.Weekday().String())

	matched := make([]models.LessonSchedule, 0, len(schedules))
	for _, s := range schedules {
		if !s.IsActive || !strings.EqualFold(s.DayOfWeek, day) {
			continue
		}
		if s.Student == nil || s.Student.Status != models.StudentActive || s.Student.LineID == "" {
			continue
		}
		matched = append(matched, s)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := clock(matched[i].StartTime), clock(matched[j].StartTime)
		if a != b {
			return a < b
		}
		return matched[i].ID < matched[j].ID
	})

	out := make([]Reminder, 0, len(matched))
	for _, s := range matched {
		out = append(out, Reminder{
			ScheduleID: s.ID,
			StudentID:  s.StudentID,
			Recipient:  s.Student.LineID,
			Text:       reminderText(s, date),
		})
	}
	return out
}

func clock(v string) string {
	if c, ok := weekgrid.NormalizeClock(v); ok {
		return c
	}
	return v
}

func reminderText(s models.LessonSchedule, date time.Time) string {
	lesson := "Your"
	if s.LessonType != nil && s.LessonType.Name != "" {
		lesson = "Your " + s.LessonType.Name
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s! %s lesson is on %s at %s",
		s.Student.FirstName, lesson, date.Format("Monday 02 Jan"), clock(s.StartTime))
	if s.Teacher != nil {
		fmt.Fprintf(&b, " with %s", s.Teacher.FullName())
	}
	if s.Classroom != nil && s.Classroom.Name != "" {
		fmt.Fprintf(&b, " in %s", s.Classroom.Name)
	}
	b.WriteString(".")
	return b.String()
}

// ReminderService sends next-day lesson reminders.
type ReminderService struct {
	db        *gorm.DB
	messaging *MessagingService
	loc       *time.Location
}

func NewReminderService(db *gorm.DB, messaging *MessagingService, loc *time.Location) *ReminderService {
	if loc == nil {
		loc = time.Local
	}
	return &ReminderService{db: db, messaging: messaging, loc: loc}
}

// SendForDate sends reminders for lessons on date and returns how many were delivered.
func (r *ReminderService) SendForDate(ctx context.Context, date time.Time) (int, error) {
	if !r.messaging.Enabled() {
		return 0, ErrMessagingDisabled
	}

	var schedules []models.LessonSchedule
	err := r.db.WithContext(ctx).
		Preload("Student").Preload("Teacher").Preload("LessonType").Preload("Classroom").
		Where("is_active = ? AND day_of_week = ?", true, strings.ToUpper(date.Weekday().String())).
		Find(&schedules).Error
	if err != nil {
		return 0, fmt.Errorf("load schedules: %w", err)
	}

	sent := 0
	for _, rem := range BuildReminders(schedules, date) {
		studentID := rem.StudentID
		if _, err := r.messaging.Send(ctx, SendRequest{StudentID: &studentID, Recipient: rem.Recipient, Message: rem.Text}); err != nil {
			logrus.WithError(err).WithField("lesson_schedule_id", rem.ScheduleID).Warn("Reminder not delivered")
			continue
		}
		sent++
	}
	logrus.WithFields(logrus.Fields{"date": date.Format(weekgrid.DateLayout), "sent": sent}).Info("Lesson reminders processed")
	return sent, nil
}

// SendTomorrow is the cron entry point.
func (r *ReminderService) SendTomorrow() {
	tomorrow := time.Now().In(r.loc).AddDate(0, 0, 1)
	if _, err := r.SendForDate(context.Background(), tomorrow); err != nil {
		logrus.WithError(err).Warn("Daily reminders skipped")
	}
}

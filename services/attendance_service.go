package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"musicschool_go/models"
	"musicschool_go/services/finance"

	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidStatus    = errors.New("invalid attendance status")
	ErrInvalidDate      = errors.New("lesson_date must be in yyyy-MM-dd format")
	ErrScheduleNotFound = errors.New("lesson schedule not found")
	// ErrAttendanceExists is returned by CreateAttendance when the
	// (schedule, date) key is already taken.
	ErrAttendanceExists = errors.New("attendance already recorded for this lesson date")
)

// DefaultAttendanceNote is stored on records created without an explicit note.
const DefaultAttendanceNote = "Marked from weekly schedule"

// AttendanceStore is the persistence the attendance upsert needs.
type AttendanceStore interface {
	// FindSchedule returns the schedule with its teacher preloaded, or ErrScheduleNotFound.
	FindSchedule(ctx context.Context, id uint) (*models.LessonSchedule, error)
	// FindAttendance returns nil, nil when no record exists for the key.
	// Soft-deleted records are returned with DeletedAt set.
	FindAttendance(ctx context.Context, scheduleID uint, date string) (*models.LessonAttendance, error)
	ResolvePrice(ctx context.Context, lessonTypeID, teacherID uint) (float64, error)
	// CreateAttendance returns ErrAttendanceExists when the key is taken.
	CreateAttendance(ctx context.Context, a *models.LessonAttendance) error
	// UpdateAttendance applies to soft-deleted records as well.
	UpdateAttendance(ctx context.Context, a *models.LessonAttendance, updates map[string]interface{}) error
}

// Broadcaster pushes a message to every connected console.
type Broadcaster interface {
	Broadcast(message interface{})
}

// AttendanceChange describes the outcome of SetStatus.
type AttendanceChange struct {
	Attendance     models.LessonAttendance `json:"attendance"`
	Created        bool                    `json:"created"`
	PreviousStatus string                  `json:"previous_status,omitempty"`
}

// AttendanceService sets attendance status for one (schedule, date) pair.
type AttendanceService struct {
	store AttendanceStore
	hub   Broadcaster
}

func NewAttendanceService(store AttendanceStore) *AttendanceService {
	return &AttendanceService{store: store}
}

// SetBroadcaster wires live updates; nil disables them.
func (s *AttendanceService) SetBroadcaster(b Broadcaster) {
	s.hub = b
}

// SetStatus creates the record for (scheduleID, date) when missing, otherwise
// overwrites its status. A soft-deleted record is restored as if created anew.
// Concurrent writers are not detected; the last one wins.
func (s *AttendanceService) SetStatus(ctx context.Context, scheduleID uint, date, status, notes string) (*AttendanceChange, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if !models.IsValidAttendanceStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, ErrInvalidDate
	}

	change, err := s.write(ctx, scheduleID, date, status, notes, true)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"lesson_schedule_id": scheduleID,
		"lesson_date":        date,
		"status":             status,
		"created":            change.Created,
	}).Info("Attendance status set")

	if s.hub != nil {
		s.hub.Broadcast(map[string]interface{}{
			"type": "attendance.updated",
			"data": change,
		})
	}
	return change, nil
}

// write picks create, restore or update for the current state of the key.
// When a concurrent writer inserts the record between the lookup and the
// insert, the lookup is repeated once and the record is overwritten.
func (s *AttendanceService) write(ctx context.Context, scheduleID uint, date, status, notes string, retry bool) (*AttendanceChange, error) {
	existing, err := s.store.FindAttendance(ctx, scheduleID, date)
	if err != nil {
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	switch {
	case existing == nil:
		change, err := s.create(ctx, scheduleID, date, status, notes)
		if retry && errors.Is(err, ErrAttendanceExists) {
			return s.write(ctx, scheduleID, date, status, notes, false)
		}
		return change, err
	case existing.DeletedAt.Valid:
		return s.restore(ctx, existing, status, notes)
	default:
		return s.update(ctx, existing, status, notes)
	}
}

// priced builds a fresh record with the price and commission split resolved.
func (s *AttendanceService) priced(ctx context.Context, scheduleID uint, date, status, notes string) (models.LessonAttendance, error) {
	schedule, err := s.store.FindSchedule(ctx, scheduleID)
	if err != nil {
		return models.LessonAttendance{}, err
	}

	price, err := s.store.ResolvePrice(ctx, schedule.LessonTypeID, schedule.TeacherID)
	if err != nil {
		return models.LessonAttendance{}, fmt.Errorf("resolve lesson price: %w", err)
	}
	var rate float64
	if schedule.Teacher != nil {
		rate = schedule.Teacher.CommissionRate
	}
	commission, share := finance.Commission(price, rate)

	if strings.TrimSpace(notes) == "" {
		notes = DefaultAttendanceNote
	}
	return models.LessonAttendance{
		LessonScheduleID:  scheduleID,
		LessonDate:        date,
		Status:            status,
		LessonPrice:       finance.Round2(price),
		TeacherCommission: commission,
		SchoolShare:       share,
		Notes:             notes,
	}, nil
}

func (s *AttendanceService) create(ctx context.Context, scheduleID uint, date, status, notes string) (*AttendanceChange, error) {
	a, err := s.priced(ctx, scheduleID, date, status, notes)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateAttendance(ctx, &a); err != nil {
		return nil, fmt.Errorf("create attendance: %w", err)
	}
	return &AttendanceChange{Attendance: a, Created: true}, nil
}

// restore revives a soft-deleted record with freshly resolved money fields.
func (s *AttendanceService) restore(ctx context.Context, old *models.LessonAttendance, status, notes string) (*AttendanceChange, error) {
	a, err := s.priced(ctx, old.LessonScheduleID, old.LessonDate, status, notes)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"status":             a.Status,
		"notes":              a.Notes,
		"is_paid":            false,
		"lesson_price":       a.LessonPrice,
		"teacher_commission": a.TeacherCommission,
		"school_share":       a.SchoolShare,
		"deleted_at":         nil,
	}
	if err := s.store.UpdateAttendance(ctx, old, updates); err != nil {
		return nil, fmt.Errorf("restore attendance: %w", err)
	}
	a.ID = old.ID
	a.CreatedAt = old.CreatedAt
	a.UpdatedAt = old.UpdatedAt
	return &AttendanceChange{Attendance: a, Created: true}, nil
}

func (s *AttendanceService) update(ctx context.Context, a *models.LessonAttendance, status, notes string) (*AttendanceChange, error) {
	previous := a.Status
	updates := map[string]interface{}{"status": status}
	if strings.TrimSpace(notes) != "" {
		updates["notes"] = notes
	}
	if err := s.store.UpdateAttendance(ctx, a, updates); err != nil {
		return nil, fmt.Errorf("update attendance: %w", err)
	}
	a.Status = status
	if n, ok := updates["notes"].(string); ok {
		a.Notes = n
	}
	return &AttendanceChange{Attendance: *a, PreviousStatus: previous}, nil
}

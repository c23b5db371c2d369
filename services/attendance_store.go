package services

import (
	"context"
	"errors"

	"musicschool_go/models"

	"gorm.io/gorm"
)

// GormAttendanceStore is the MySQL-backed AttendanceStore.
type GormAttendanceStore struct {
	db *gorm.DB
}

func NewGormAttendanceStore(db *gorm.DB) *GormAttendanceStore {
	return &GormAttendanceStore{db: db}
}

func (s *GormAttendanceStore) FindSchedule(ctx context.Context, id uint) (*models.LessonSchedule, error) {
	var schedule models.LessonSchedule
	err := s.db.WithContext(ctx).Preload("Teacher").First(&schedule, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (s *GormAttendanceStore) FindAttendance(ctx context.Context, scheduleID uint, date string) (*models.LessonAttendance, error) {
	var a models.LessonAttendance
	// The unique key covers soft-deleted rows too.
	err := s.db.WithContext(ctx).Unscoped().
		Where("lesson_schedule_id = ? AND lesson_date = ?", scheduleID, date).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *GormAttendanceStore) ResolvePrice(ctx context.Context, lessonTypeID, teacherID uint) (float64, error) {
	return ResolveLessonPrice(s.db.WithContext(ctx), lessonTypeID, teacherID)
}

// CreateAttendance needs a connection opened with TranslateError so that a
// key collision surfaces as gorm.ErrDuplicatedKey.
func (s *GormAttendanceStore) CreateAttendance(ctx context.Context, a *models.LessonAttendance) error {
	err := s.db.WithContext(ctx).Create(a).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAttendanceExists
	}
	return err
}

func (s *GormAttendanceStore) UpdateAttendance(ctx context.Context, a *models.LessonAttendance, updates map[string]interface{}) error {
	return s.db.WithContext(ctx).Unscoped().Model(a).Updates(updates).Error
}

// ResolveLessonPrice picks the active teacher-specific pricing, then the
// lesson-type pricing, then the lesson type's default price.
func ResolveLessonPrice(db *gorm.DB, lessonTypeID, teacherID uint) (float64, error) {
	var pricing models.LessonPricing
	if teacherID != 0 {
		err := db.Where("lesson_type_id = ? AND teacher_id = ? AND is_active = ?", lessonTypeID, teacherID, true).
			Order("updated_at DESC").First(&pricing).Error
		if err == nil {
			return pricing.PricePerLesson, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
	}

	err := db.Where("lesson_type_id = ? AND teacher_id IS NULL AND is_active = ?", lessonTypeID, true).
		Order("updated_at DESC").First(&pricing).Error
	if err == nil {
		return pricing.PricePerLesson, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	var lt models.LessonType
	err = db.First(&lt, lessonTypeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return lt.DefaultPrice, nil
}

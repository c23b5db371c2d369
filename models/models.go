package models

import (
	"database/sql/driver"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (b *BaseModel) GetBase() BaseModel { return *b }

// SetBase restores identity and timestamps after a request body was decoded over a record.
func (b *BaseModel) SetBase(base BaseModel) { *b = base }

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = append((*j)[0:0], v...)
	}
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// User is a console operator account
type User struct {
	BaseModel
	Username  string `json:"username" gorm:"size:100;not null;uniqueIndex"`
	Password  string `json:"-" gorm:"size:255;not null"`
	Email     string `json:"email" gorm:"size:255"`
	Role      string `json:"role" gorm:"size:50;not null;default:'staff'"`    // owner, admin, staff, teacher
	Status    string `json:"status" gorm:"size:50;not null;default:'active'"` // active, inactive
	TeacherID *uint  `json:"teacher_id"`
}

// Teacher model
type Teacher struct {
	BaseModel
	FirstName      string  `json:"first_name" gorm:"size:100;not null" validate:"required,max=100"`
	LastName       string  `json:"last_name" gorm:"size:100;not null" validate:"required,max=100"`
	Email          string  `json:"email" gorm:"size:255" validate:"omitempty,email"`
	Phone          string  `json:"phone" gorm:"size:30"`
	LineID         string  `json:"line_id" gorm:"size:100"`
	Specialization string  `json:"specialization" gorm:"size:255"`
	Color          string  `json:"color" gorm:"size:20"`
	CommissionRate float64 `json:"commission_rate" validate:"gte=0,lte=100"` // percent of the lesson price
	IsActive       bool    `json:"is_active" gorm:"default:true"`
}

// FullName joins first and last name.
func (t Teacher) FullName() string {
	return joinName(t.FirstName, t.LastName)
}

// Student model
type Student struct {
	BaseModel
	FirstName   string     `json:"first_name" gorm:"size:100;not null" validate:"required,max=100"`
	LastName    string     `json:"last_name" gorm:"size:100;not null" validate:"required,max=100"`
	Email       string     `json:"email" gorm:"size:255" validate:"omitempty,email"`
	Phone       string     `json:"phone" gorm:"size:30"`
	LineID      string     `json:"line_id" gorm:"size:100"`
	BirthDate   *time.Time `json:"birth_date"`
	ParentName  string     `json:"parent_name" gorm:"size:200"`
	ParentPhone string     `json:"parent_phone" gorm:"size:30"`
	Status      string     `json:"status" gorm:"size:20;not null;default:'ACTIVE';index" validate:"omitempty,oneof=ACTIVE INACTIVE FROZEN GRADUATED"` // ACTIVE, INACTIVE, FROZEN, GRADUATED
	Notes       string     `json:"notes" gorm:"type:text"`
}

// FullName joins first and last name.
func (s Student) FullName() string {
	return joinName(s.FirstName, s.LastName)
}

// Student statuses
const (
	StudentActive    = "ACTIVE"
	StudentInactive  = "INACTIVE"
	StudentFrozen    = "FROZEN"
	StudentGraduated = "GRADUATED"
)

// Classroom is a physical room lessons are pinned to
type Classroom struct {
	BaseModel
	Name     string `json:"name" gorm:"size:100;not null;uniqueIndex" validate:"required,max=100"`
	Capacity int    `json:"capacity" gorm:"default:1" validate:"gte=0"`
	Color    string `json:"color" gorm:"size:20"`
	IsActive bool   `json:"is_active" gorm:"default:true"`
}

// LessonType is a category of lesson with a default duration and price
type LessonType struct {
	BaseModel
	Name            string  `json:"name" gorm:"size:100;not null;uniqueIndex" validate:"required,max=100"`
	DurationMinutes int     `json:"duration_minutes" gorm:"default:45" validate:"gte=0"`
	DefaultPrice    float64 `json:"default_price" validate:"gte=0"`
	Color           string  `json:"color" gorm:"size:20"`
	IsActive        bool    `json:"is_active" gorm:"default:true"`
}

// LessonSchedule is a recurring weekly lesson slot
type LessonSchedule struct {
	BaseModel
	StudentID    uint   `json:"student_id" gorm:"not null;index" validate:"required"`
	TeacherID    uint   `json:"teacher_id" gorm:"not null;index" validate:"required"`
	LessonTypeID uint   `json:"lesson_type_id" gorm:"not null" validate:"required"`
	ClassroomID  uint   `json:"classroom_id" gorm:"not null;index" validate:"required"`
	DayOfWeek    string `json:"day_of_week" gorm:"size:10;not null" validate:"required,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY SUNDAY"`
	StartTime    string `json:"start_time" gorm:"size:8;not null" validate:"required"` // HH:mm
	EndTime      string `json:"end_time" gorm:"size:8"`
	IsActive     bool   `json:"is_active" gorm:"default:true"`
	Notes        string `json:"notes" gorm:"type:text"`

	// Relationships
	Student    *Student    `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Teacher    *Teacher    `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
	LessonType *LessonType `json:"lesson_type,omitempty" gorm:"foreignKey:LessonTypeID"`
	Classroom  *Classroom  `json:"classroom,omitempty" gorm:"foreignKey:ClassroomID"`
}

// Days of week in display order
var DaysOfWeek = []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

// IsValidDay reports whether day is one of DaysOfWeek.
func IsValidDay(day string) bool {
	return DayIndex(day) >= 0
}

// DayIndex returns the Monday-based index of day, or -1.
func DayIndex(day string) int {
	for i, d := range DaysOfWeek {
		if d == day {
			return i
		}
	}
	return -1
}

// LessonAttendance is the per-date realization of a schedule
type LessonAttendance struct {
	BaseModel
	LessonScheduleID  uint    `json:"lesson_schedule_id" gorm:"not null;uniqueIndex:idx_attendance_schedule_date"`
	LessonDate        string  `json:"lesson_date" gorm:"size:10;not null;uniqueIndex:idx_attendance_schedule_date"` // yyyy-MM-dd
	Status            string  `json:"status" gorm:"size:20;not null;default:'SCHEDULED'"`
	IsPaid            bool    `json:"is_paid" gorm:"default:false"`
	LessonPrice       float64 `json:"lesson_price"`
	TeacherCommission float64 `json:"teacher_commission"`
	SchoolShare       float64 `json:"school_share"`
	Notes             string  `json:"notes" gorm:"type:text"`

	// Relationships
	LessonSchedule *LessonSchedule `json:"lesson_schedule,omitempty" gorm:"foreignKey:LessonScheduleID"`
}

// Attendance statuses
const (
	AttendanceScheduled   = "SCHEDULED"
	AttendanceCompleted   = "COMPLETED"
	AttendanceCancelled   = "CANCELLED"
	AttendanceAbsent      = "ABSENT"
	AttendanceRescheduled = "RESCHEDULED"
)

// AttendanceStatuses lists every valid attendance status.
var AttendanceStatuses = []string{AttendanceScheduled, AttendanceCompleted, AttendanceCancelled, AttendanceAbsent, AttendanceRescheduled}

// IsValidAttendanceStatus reports whether status is a known attendance status.
func IsValidAttendanceStatus(status string) bool {
	for _, s := range AttendanceStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// LessonPricing is the per-lesson price of a lesson type, optionally per teacher
type LessonPricing struct {
	BaseModel
	LessonTypeID   uint    `json:"lesson_type_id" gorm:"not null;index" validate:"required"`
	TeacherID      *uint   `json:"teacher_id" gorm:"index"`
	PricePerLesson float64 `json:"price_per_lesson" gorm:"not null" validate:"gte=0"`
	IsActive       bool    `json:"is_active" gorm:"default:true"`

	LessonType *LessonType `json:"lesson_type,omitempty" gorm:"foreignKey:LessonTypeID"`
	Teacher    *Teacher    `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
}

// Pricing is a lesson package offered to students
type Pricing struct {
	BaseModel
	Name            string  `json:"name" gorm:"size:150;not null" validate:"required"`
	LessonTypeID    *uint   `json:"lesson_type_id"`
	LessonCount     int     `json:"lesson_count" gorm:"not null" validate:"gt=0"`
	Price           float64 `json:"price" gorm:"not null" validate:"gte=0"`
	DiscountPercent float64 `json:"discount_percent" validate:"gte=0,lte=100"`
	IsActive        bool    `json:"is_active" gorm:"default:true"`
}

// LessonPayment is money received from a student for lessons
type LessonPayment struct {
	BaseModel
	StudentID        uint      `json:"student_id" gorm:"not null;index"`
	LessonScheduleID *uint     `json:"lesson_schedule_id"`
	Amount           float64   `json:"amount" gorm:"not null"`
	DiscountPercent  float64   `json:"discount_percent"`
	NetAmount        float64   `json:"net_amount"`
	PaymentDate      time.Time `json:"payment_date" gorm:"index"`
	PaymentMethod    string    `json:"payment_method" gorm:"size:20;default:'CASH'"` // CASH, CARD, TRANSFER
	Notes            string    `json:"notes" gorm:"type:text"`

	Student *Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

// Product is an item sold at the school (books, strings, accessories)
type Product struct {
	BaseModel
	Name     string  `json:"name" gorm:"size:200;not null" validate:"required"`
	SKU      string  `json:"sku" gorm:"size:100;uniqueIndex"`
	Price    float64 `json:"price" gorm:"not null" validate:"gte=0"`
	TaxRate  float64 `json:"tax_rate" validate:"gte=0,lte=100"`
	Stock    int     `json:"stock" validate:"gte=0"`
	IsActive bool    `json:"is_active" gorm:"default:true"`
}

// Sale records a product sale
type Sale struct {
	BaseModel
	ProductID       uint      `json:"product_id" gorm:"not null;index"`
	StudentID       *uint     `json:"student_id"`
	Quantity        int       `json:"quantity" gorm:"not null"`
	UnitPrice       float64   `json:"unit_price"`
	DiscountPercent float64   `json:"discount_percent"`
	TaxRate         float64   `json:"tax_rate"`
	Subtotal        float64   `json:"subtotal"`
	TaxAmount       float64   `json:"tax_amount"`
	Total           float64   `json:"total"`
	SaleDate        time.Time `json:"sale_date" gorm:"index"`
	Notes           string    `json:"notes" gorm:"type:text"`

	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Student *Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

// FinancialTransaction is an income or expense entry
type FinancialTransaction struct {
	BaseModel
	Type            string    `json:"type" gorm:"size:10;not null;index" validate:"required,oneof=INCOME EXPENSE"`
	Category        string    `json:"category" gorm:"size:100;not null" validate:"required"`
	Amount          float64   `json:"amount" gorm:"not null" validate:"gte=0"`
	TransactionDate time.Time `json:"transaction_date" gorm:"index"`
	Description     string    `json:"description" gorm:"type:text"`
	ReferenceType   string    `json:"reference_type" gorm:"size:50"`
	ReferenceID     *uint     `json:"reference_id"`
}

// Transaction types
const (
	TransactionIncome  = "INCOME"
	TransactionExpense = "EXPENSE"
)

// Transaction categories written by the system
const (
	CategoryLessonPayment = "LESSON_PAYMENT"
	CategoryProductSale   = "PRODUCT_SALE"
)

// TeacherNote is a free-form note attached to a teacher
type TeacherNote struct {
	BaseModel
	TeacherID uint   `json:"teacher_id" gorm:"not null;index" validate:"required"`
	Title     string `json:"title" gorm:"size:200"`
	Content   string `json:"content" gorm:"type:text;not null" validate:"required"`
	AuthorID  uint   `json:"author_id"`
}

// StudentNote is a free-form note attached to a student
type StudentNote struct {
	BaseModel
	StudentID uint   `json:"student_id" gorm:"not null;index" validate:"required"`
	Title     string `json:"title" gorm:"size:200"`
	Content   string `json:"content" gorm:"type:text;not null" validate:"required"`
	AuthorID  uint   `json:"author_id"`
}

// SmsMessage is a text message to or from a student and its delivery state
type SmsMessage struct {
	BaseModel
	Direction string     `json:"direction" gorm:"size:10;not null;default:'OUTBOUND';index"` // OUTBOUND, INBOUND
	StudentID *uint      `json:"student_id"`
	Recipient string     `json:"recipient" gorm:"size:100;not null"`
	Message   string     `json:"message" gorm:"type:text;not null"`
	Status    string     `json:"status" gorm:"size:20;not null;default:'PENDING'"` // PENDING, SENT, FAILED, RECEIVED
	SentAt    *time.Time `json:"sent_at"`
	Error     string     `json:"error" gorm:"type:text"`
}

// SMS statuses
const (
	SmsPending  = "PENDING"
	SmsSent     = "SENT"
	SmsFailed   = "FAILED"
	SmsReceived = "RECEIVED"

	SmsOutbound = "OUTBOUND"
	SmsInbound  = "INBOUND"
)

// ActivityLog tracks mutations made through the API
type ActivityLog struct {
	BaseModel
	UserID     uint   `json:"user_id"`
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID uint   `json:"resource_id"`
	Details    JSON   `json:"details" gorm:"type:json"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`
	UserAgent  string `json:"user_agent" gorm:"size:500"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// LogArchive tracks activity log batches moved to S3
type LogArchive struct {
	BaseModel
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	S3Key       string    `json:"s3_key" gorm:"size:500;not null"`
	StartDate   time.Time `json:"start_date" gorm:"not null"`
	EndDate     time.Time `json:"end_date" gorm:"not null"`
	RecordCount int       `json:"record_count" gorm:"not null"`
	FileSize    int64     `json:"file_size" gorm:"not null"`
	Status      string    `json:"status" gorm:"size:50;not null;default:'pending'"` // pending, completed, failed
	Error       string    `json:"error" gorm:"type:text"`
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

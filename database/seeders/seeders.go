package seeders

import (
	"musicschool_go/database"
	"musicschool_go/models"
	"musicschool_go/utils"

	"github.com/sirupsen/logrus"
)

// SeedAll fills an empty database with a small working school.
// Each table is skipped when it already has rows.
func SeedAll() {
	logrus.Info("Starting database seeding...")

	SeedUsers()
	seed("lesson types", lessonTypes())
	seed("classrooms", classrooms())
	seed("teachers", teachers())
	seed("students", students())
	seed("lesson pricings", lessonPricings())
	seed("products", products())
	seed("lesson schedules", lessonSchedules())

	logrus.Info("Database seeding completed")
}

// seed inserts rows when their table is empty.
func seed[T any](name string, rows []T) {
	var count int64
	database.DB.Model(new(T)).Count(&count)
	if count > 0 {
		logrus.WithField("table", name).Info("Already seeded, skipping")
		return
	}
	for i := range rows {
		if err := database.DB.Create(&rows[i]).Error; err != nil {
			logrus.WithError(err).WithField("table", name).Error("Seeding row failed")
		}
	}
	logrus.WithFields(logrus.Fields{"table": name, "rows": len(rows)}).Info("Seeded")
}

// SeedUsers creates the console accounts. The default password must be
// changed after first login.
func SeedUsers() {
	hashed, err := utils.HashPassword("password123")
	if err != nil {
		logrus.WithError(err).Error("Cannot hash seed password")
		return
	}
	seed("users", []models.User{
		{Username: "owner", Password: hashed, Email: "owner@musicschool.local", Role: utils.RoleOwner, Status: "active"},
		{Username: "admin", Password: hashed, Email: "admin@musicschool.local", Role: utils.RoleAdmin, Status: "active"},
		{Username: "frontdesk", Password: hashed, Role: utils.RoleStaff, Status: "active"},
	})
}

func lessonTypes() []models.LessonType {
	return []models.LessonType{
		{BaseModel: models.BaseModel{ID: 1}, Name: "Piano", DurationMinutes: 45, DefaultPrice: 600, Color: "#4F46E5", IsActive: true},
		{BaseModel: models.BaseModel{ID: 2}, Name: "Guitar", DurationMinutes: 45, DefaultPrice: 500, Color: "#059669", IsActive: true},
		{BaseModel: models.BaseModel{ID: 3}, Name: "Violin", DurationMinutes: 60, DefaultPrice: 700, Color: "#D97706", IsActive: true},
		{BaseModel: models.BaseModel{ID: 4}, Name: "Voice", DurationMinutes: 45, DefaultPrice: 550, Color: "#DB2777", IsActive: true},
	}
}

func classrooms() []models.Classroom {
	return []models.Classroom{
		{BaseModel: models.BaseModel{ID: 1}, Name: "Room A", Capacity: 2, IsActive: true},
		{BaseModel: models.BaseModel{ID: 2}, Name: "Room B", Capacity: 2, IsActive: true},
		{BaseModel: models.BaseModel{ID: 3}, Name: "Studio", Capacity: 6, IsActive: true},
	}
}

func teachers() []models.Teacher {
	return []models.Teacher{
		{BaseModel: models.BaseModel{ID: 1}, FirstName: "Anna", LastName: "Keller", Specialization: "Piano", CommissionRate: 50, Color: "#4F46E5", IsActive: true},
		{BaseModel: models.BaseModel{ID: 2}, FirstName: "Marco", LastName: "Rossi", Specialization: "Guitar", CommissionRate: 45, Color: "#059669", IsActive: true},
		{BaseModel: models.BaseModel{ID: 3}, FirstName: "Lena", LastName: "Vogel", Specialization: "Violin, Voice", CommissionRate: 55, Color: "#D97706", IsActive: true},
	}
}

func students() []models.Student {
	return []models.Student{
		{BaseModel: models.BaseModel{ID: 1}, FirstName: "Mia", LastName: "Schmidt", ParentName: "Julia Schmidt", Status: models.StudentActive},
		{BaseModel: models.BaseModel{ID: 2}, FirstName: "Noah", LastName: "Weber", Status: models.StudentActive},
		{BaseModel: models.BaseModel{ID: 3}, FirstName: "Emma", LastName: "Fischer", ParentName: "Tom Fischer", Status: models.StudentActive},
		{BaseModel: models.BaseModel{ID: 4}, FirstName: "Liam", LastName: "Wagner", Status: models.StudentFrozen},
	}
}

func lessonPricings() []models.LessonPricing {
	anna := uint(1)
	return []models.LessonPricing{
		{LessonTypeID: 1, PricePerLesson: 600, IsActive: true},
		{LessonTypeID: 1, TeacherID: &anna, PricePerLesson: 650, IsActive: true},
		{LessonTypeID: 2, PricePerLesson: 500, IsActive: true},
		{LessonTypeID: 3, PricePerLesson: 700, IsActive: true},
		{LessonTypeID: 4, PricePerLesson: 550, IsActive: true},
	}
}

func products() []models.Product {
	return []models.Product{
		{Name: "Guitar strings (set)", SKU: "STR-GTR-01", Price: 250, TaxRate: 7, Stock: 20, IsActive: true},
		{Name: "Piano method book 1", SKU: "BK-PNO-01", Price: 420, TaxRate: 7, Stock: 8, IsActive: true},
		{Name: "Violin rosin", SKU: "ACC-VLN-01", Price: 180, TaxRate: 7, Stock: 2, IsActive: true},
	}
}

func lessonSchedules() []models.LessonSchedule {
	return []models.LessonSchedule{
		{StudentID: 1, TeacherID: 1, LessonTypeID: 1, ClassroomID: 1, DayOfWeek: "MONDAY", StartTime: "16:00", EndTime: "16:45", IsActive: true},
		{StudentID: 2, TeacherID: 2, LessonTypeID: 2, ClassroomID: 2, DayOfWeek: "MONDAY", StartTime: "17:00", EndTime: "17:45", IsActive: true},
		{StudentID: 3, TeacherID: 3, LessonTypeID: 3, ClassroomID: 1, DayOfWeek: "WEDNESDAY", StartTime: "15:00", EndTime: "16:00", IsActive: true},
		{StudentID: 1, TeacherID: 3, LessonTypeID: 4, ClassroomID: 3, DayOfWeek: "SATURDAY", StartTime: "10:00", EndTime: "10:45", IsActive: true},
	}
}

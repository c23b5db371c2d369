package routes

import (
	"musicschool_go/controllers"
	"musicschool_go/handlers"
	"musicschool_go/middleware"
	"musicschool_go/services"
	"musicschool_go/services/websocket"
	"musicschool_go/storage"

	"github.com/gofiber/fiber/v2"
)

// Deps carries the long-lived services the controllers are built from.
// Store may be nil when S3 is not configured; LineWebhook may be nil in tests.
type Deps struct {
	Hub         *websocket.Hub
	Attendance  *services.AttendanceService
	Messaging   *services.MessagingService
	Health      *services.HealthService
	LogArchive  *services.LogArchiveService
	Store       storage.ObjectStore
	LineWebhook *handlers.LineWebhookHandler
}

// crudController is satisfied by every Resource-backed controller. Mounting
// through the interface keeps overridden Create/Update/Delete methods in play.
type crudController interface {
	List(c *fiber.Ctx) error
	Get(c *fiber.Ctx) error
	Create(c *fiber.Ctx) error
	Update(c *fiber.Ctx) error
	Delete(c *fiber.Ctx) error
}

// mountCRUD registers the five standard routes. Reads are open to any
// authenticated user; mutations pass through guard.
func mountCRUD(r fiber.Router, ctl crudController, guard fiber.Handler) {
	r.Get("/", ctl.List)
	r.Get("/:id", ctl.Get)
	r.Post("/", guard, ctl.Create)
	r.Put("/:id", guard, ctl.Update)
	r.Delete("/:id", guard, ctl.Delete)
}

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, deps Deps) {
	var broadcaster services.Broadcaster
	if deps.Hub != nil {
		broadcaster = deps.Hub
	}

	authController := &controllers.AuthController{}
	userController := &controllers.UserController{}
	teacherController := controllers.NewTeacherController()
	studentController := controllers.NewStudentController()
	classroomController := controllers.NewClassroomController()
	lessonTypeController := controllers.NewLessonTypeController()
	scheduleController := controllers.NewLessonScheduleController(broadcaster)
	attendanceController := controllers.NewAttendanceController(deps.Attendance)
	lessonPricingController := controllers.NewLessonPricingController()
	pricingController := controllers.NewPricingController()
	paymentController := controllers.NewLessonPaymentController()
	productController := controllers.NewProductController()
	saleController := controllers.NewSaleController()
	financeController := controllers.NewFinancialTransactionController(deps.Store)
	teacherNoteController := controllers.NewTeacherNoteController()
	studentNoteController := controllers.NewStudentNoteController()
	smsController := controllers.NewSmsController(deps.Messaging)
	dashboardController := &controllers.DashboardController{}
	healthController := controllers.NewHealthController(deps.Health)
	logController := controllers.NewLogController(deps.LogArchive)
	wsController := controllers.NewWebSocketController(deps.Hub)

	staff := middleware.RequireStaffOrAbove()
	admin := middleware.RequireOwnerOrAdmin()

	api := app.Group("/api")

	// Public routes
	api.Get("/health", healthController.GetHealthStatus)
	api.Post("/auth/login", authController.Login)
	if deps.LineWebhook != nil {
		api.Post("/line/webhook", deps.LineWebhook.Handle)
	}

	protected := api.Group("/", middleware.JWTMiddleware())

	auth := protected.Group("/auth")
	auth.Post("/logout", authController.Logout)
	auth.Get("/profile", authController.Profile)
	auth.Put("/password", authController.ChangePassword)
	auth.Post("/register", admin, authController.Register)

	users := protected.Group("/users", admin)
	users.Get("/", userController.GetUsers)
	users.Get("/:id", userController.GetUser)
	users.Post("/", authController.Register)
	users.Put("/:id", userController.UpdateUser)
	users.Delete("/:id", userController.DeleteUser)

	teachers := protected.Group("/teachers")
	teachers.Get("/active", teacherController.GetActiveTeachers)
	mountCRUD(teachers, teacherController, staff)

	students := protected.Group("/students")
	students.Get("/status/:status", studentController.GetStudentsByStatus)
	students.Patch("/:id/status", staff, studentController.UpdateStudentStatus)
	mountCRUD(students, studentController, staff)

	classrooms := protected.Group("/classrooms")
	classrooms.Get("/active", classroomController.GetActiveClassrooms)
	mountCRUD(classrooms, classroomController, staff)

	lessonTypes := protected.Group("/lesson-types")
	lessonTypes.Get("/active", lessonTypeController.GetActiveLessonTypes)
	mountCRUD(lessonTypes, lessonTypeController, staff)

	schedules := protected.Group("/lesson-schedules")
	schedules.Get("/weekly-grid", scheduleController.GetWeeklyGrid)
	schedules.Get("/teacher/:teacher_id", scheduleController.GetSchedulesByTeacher)
	schedules.Get("/student/:student_id", scheduleController.GetSchedulesByStudent)
	schedules.Get("/day/:day", scheduleController.GetSchedulesByDay)
	mountCRUD(schedules, scheduleController, staff)

	// Teachers mark attendance from the grid, so /mark has no staff guard.
	attendances := protected.Group("/lesson_attendances")
	attendances.Put("/mark", attendanceController.MarkAttendance)
	attendances.Get("/by-date-range", attendanceController.GetAttendancesByDateRange)
	attendances.Get("/status/:status", attendanceController.GetAttendancesByStatus)
	attendances.Get("/stats", attendanceController.GetAttendanceStats)
	attendances.Patch("/:id/paid", staff, attendanceController.MarkPaid)
	mountCRUD(attendances, attendanceController, staff)

	payments := protected.Group("/lesson-payments")
	payments.Get("/student/:student_id", paymentController.GetPaymentsByStudent)
	payments.Get("/total", paymentController.GetPaymentsTotal)
	mountCRUD(payments, paymentController, staff)

	lessonPricings := protected.Group("/lesson-pricings")
	lessonPricings.Get("/resolve", lessonPricingController.ResolvePrice)
	mountCRUD(lessonPricings, lessonPricingController, staff)

	mountCRUD(protected.Group("/pricing"), pricingController, staff)

	products := protected.Group("/products")
	products.Patch("/:id/stock", staff, productController.UpdateStock)
	mountCRUD(products, productController, staff)

	sales := protected.Group("/sales")
	sales.Get("/total", saleController.GetSalesTotal)
	mountCRUD(sales, saleController, staff)

	finance := protected.Group("/financial-transactions")
	finance.Get("/summary", financeController.GetSummary)
	finance.Get("/by-category", financeController.GetByCategory)
	finance.Get("/by-day", financeController.GetByDay)
	finance.Get("/export", staff, financeController.Export)
	finance.Post("/import", staff, financeController.Import)
	mountCRUD(finance, financeController, staff)

	mountCRUD(protected.Group("/teacher-notes"), teacherNoteController, staff)
	mountCRUD(protected.Group("/student-notes"), studentNoteController, staff)

	sms := protected.Group("/sms")
	sms.Post("/send", staff, smsController.SendSms)
	sms.Get("/", smsController.List)
	sms.Get("/:id", smsController.Get)

	protected.Get("/dashboard/summary", dashboardController.GetSummary)

	logs := protected.Group("/logs", admin)
	logs.Get("/", logController.GetLogs)
	logs.Get("/stats", logController.GetLogStats)
	logs.Post("/flush", logController.FlushLogs)
	logs.Post("/archive", logController.ArchiveLogs)
	logs.Get("/archives", logController.GetArchives)
	logs.Get("/archives/:id/download", logController.DownloadArchive)

	protected.Get("/ws/stats", admin, wsController.GetWebSocketStats)

	// Browsers cannot set headers on the upgrade request, so the token
	// travels as ?token= and JWTMiddleware runs after the upgrade check.
	app.Get("/ws", wsController.RequireUpgrade, middleware.JWTMiddleware(), wsController.WebSocketHandler())
}

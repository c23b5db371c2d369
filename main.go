package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"musicschool_go/config"
	"musicschool_go/database"
	"musicschool_go/database/seeders"
	"musicschool_go/handlers"
	"musicschool_go/middleware"
	"musicschool_go/routes"
	"musicschool_go/services"
	"musicschool_go/services/websocket"
	"musicschool_go/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

const version = "1.0.0"

func main() {
	config.LoadConfig()
	setupLogging(config.AppConfig)

	if err := database.Connect(); err != nil {
		logrus.WithError(err).Fatal("Database unavailable")
	}
	defer database.Close()

	if config.AppConfig.SeedData {
		seeders.SeedAll()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)

	var store storage.ObjectStore
	if s3, err := storage.NewStorageService(ctx, config.AppConfig); err == nil {
		store = s3
		logrus.WithField("bucket", config.AppConfig.S3BucketName).Info("S3 storage enabled")
	} else {
		logrus.WithError(err).Warn("S3 storage disabled")
	}

	var sender services.MessageSender
	if line, err := services.NewLineSender(config.AppConfig.LineChannelSecret, config.AppConfig.LineChannelToken); err == nil {
		sender = line
		logrus.Info("LINE messaging enabled")
	} else {
		logrus.WithError(err).Warn("LINE messaging disabled")
	}
	messaging := services.NewMessagingService(services.NewGormSmsStore(database.DB), sender)
	messaging.SetBroadcaster(wsHub)

	attendance := services.NewAttendanceService(services.NewGormAttendanceStore(database.DB))
	attendance.SetBroadcaster(wsHub)

	logArchive := services.NewLogArchiveService(database.DB, database.GetRedisClient(), store)

	loc := config.AppConfig.Location()
	scheduler := services.NewScheduler(loc)
	reminders := services.NewReminderService(database.DB, messaging, loc)
	if err := scheduler.Add("reminders.daily", config.AppConfig.ReminderCron, reminders.SendTomorrow); err != nil {
		logrus.WithError(err).Error("Lesson reminders not scheduled")
	}
	if err := logArchive.RegisterJobs(scheduler, 30); err != nil {
		logrus.WithError(err).Error("Log maintenance not scheduled")
	}
	scheduler.Start()

	health := services.NewHealthService("Music School API", version)
	health.RegisterDefaults()
	health.Register(services.StaticProbe("s3", store != nil, map[string]interface{}{"bucket": config.AppConfig.S3BucketName}))
	health.Register(services.StaticProbe("line", messaging.Enabled(), nil))

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    int(config.AppConfig.MaxFileSize),
	})

	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.LogActivityMiddleware())

	routes.SetupRoutes(app, routes.Deps{
		Hub:         wsHub,
		Attendance:  attendance,
		Messaging:   messaging,
		Health:      health,
		LogArchive:  logArchive,
		LineWebhook: handlers.NewLineWebhookHandler(config.AppConfig.LineChannelSecret, messaging),
		Store:       store,
	})

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  "Route not found",
			"path":   c.Path(),
			"method": c.Method(),
		})
	})

	go func() {
		logrus.WithFields(logrus.Fields{
			"port":    config.AppConfig.Port,
			"env":     config.AppConfig.AppEnv,
			"version": version,
		}).Info("Server starting")
		if err := app.Listen(":" + config.AppConfig.Port); err != nil {
			logrus.WithError(err).Error("Server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	if n, err := logArchive.FlushCachedLogs(shutdownCtx, 0); err == nil && n > 0 {
		logrus.WithField("flushed", n).Info("Queued activity logs flushed")
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Server shutdown incomplete")
	}
}

// setupLogging configures logrus from LOG_LEVEL and LOG_FILE
func setupLogging(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.AppEnv == "development" || cfg.LogFile == "" {
		logrus.SetOutput(os.Stdout)
		return
	}
	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		logrus.WithError(err).Warn("Could not open log file, logging to stdout")
		return
	}
	logrus.SetOutput(file)
}

// customErrorHandler handles application errors
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	logrus.WithFields(logrus.Fields{
		"error":  err.Error(),
		"path":   c.Path(),
		"method": c.Method(),
		"ip":     c.IP(),
		"status": code,
	}).Error("Request error")

	return c.Status(code).JSON(fiber.Map{
		"error":  message,
		"code":   code,
		"path":   c.Path(),
		"method": c.Method(),
	})
}

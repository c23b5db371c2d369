package database

import (
	"context"
	"fmt"
	"time"

	"musicschool_go/config"
	"musicschool_go/models"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB
var RedisClient *redis.Client

// Connect opens MySQL and Redis. Redis is optional.
func Connect() error {
	if err := connectDatabase(); err != nil {
		return err
	}
	connectRedis()
	return nil
}

func connectDatabase() error {
	cfg := config.AppConfig
	gormLogger := logger.Default.LogMode(logger.Silent)
	if cfg.AppEnv == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	var err error
	for attempt := 1; attempt <= 8; attempt++ {
		DB, err = gorm.Open(mysql.Open(cfg.GetDSN()), &gorm.Config{Logger: gormLogger, TranslateError: true})
		if err == nil {
			break
		}
		logrus.WithError(err).WithField("attempt", attempt).Warn("Database connect attempt failed")
		time.Sleep(time.Duration(attempt*attempt) * 300 * time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database after retries: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(55 * time.Minute)

	logrus.Info("Database connected successfully")

	if cfg.SkipMigrate {
		logrus.Info("SKIP_MIGRATE set, skipping auto migration")
		return nil
	}
	return AutoMigrate(DB)
}

// Models lists every table the API owns, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Teacher{},
		&models.Student{},
		&models.Classroom{},
		&models.LessonType{},
		&models.LessonSchedule{},
		&models.LessonAttendance{},
		&models.LessonPricing{},
		&models.Pricing{},
		&models.LessonPayment{},
		&models.Product{},
		&models.Sale{},
		&models.FinancialTransaction{},
		&models.TeacherNote{},
		&models.StudentNote{},
		&models.SmsMessage{},
		&models.ActivityLog{},
		&models.LogArchive{},
	}
}

// AutoMigrate creates or updates every table.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	logrus.Info("Database migration completed successfully")
	return nil
}

func connectRedis() {
	cfg := config.AppConfig
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := RedisClient.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).Warn("Redis connection failed, continuing without Redis")
		RedisClient = nil
		return
	}
	logrus.Info("Redis connected successfully")
}

// GetRedisClient returns nil when Redis is unavailable.
func GetRedisClient() *redis.Client {
	return RedisClient
}

// Ping checks the database connection.
func Ping(ctx context.Context) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Close() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			logrus.WithError(err).Warn("Error closing Redis connection")
		}
	}
	if DB == nil {
		return
	}
	sqlDB, err := DB.DB()
	if err != nil {
		logrus.WithError(err).Warn("Error getting database instance")
		return
	}
	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Warn("Error closing database connection")
		return
	}
	logrus.Info("Database connection closed")
}

package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bimuz/bimuz-api/config"
	"github.com/bimuz/bimuz-api/model"
)

// Storage is the persistence surface the rest of the app depends on.
type Storage interface {
	Init() error
	Close() error
	HealthCheck() error
	GetDB() *gorm.DB
}

type GORMStore struct {
	db *gorm.DB
}

func StartGORM() (*GORMStore, error) {
	env, err := config.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	sslMode := env.DB_SSL_MODE
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		env.DB_HOST, env.DB_USER_NAME, env.DB_PASSWORD, env.DB_NAME, env.DB_PORT, sslMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Connected to PostgreSQL via GORM")
	return &GORMStore{db: db}, nil
}

// Init migrates the schema and seeds bootstrap data.
func (s *GORMStore) Init() error {
	if err := s.db.AutoMigrate(
		&model.User{},
		&model.Student{},
		&model.Employee{},
		&model.Group{},
		&model.Invoice{},
		&model.EmployeeSalary{},
		&model.MentorPayment{},
		&model.CronJobLog{},
		&model.JWTTokenBlacklist{},
		&model.StaffAuditLog{},
	); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	if err := SeedDirector(s.db); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	log.Println("Database schema migrated")
	return nil
}

func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GORMStore) HealthCheck() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (s *GORMStore) GetDB() *gorm.DB {
	return s.db
}

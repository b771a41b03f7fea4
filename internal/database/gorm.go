package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"skillport/internal/common"
	"skillport/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GormDB struct {
	DB *gorm.DB
}

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	LogLevel string
}

func NewGormConnection(config Config) (*GormDB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(config.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &GormDB{DB: db}, nil
}

// NewFromSQL wraps an existing *sql.DB, e.g. a sqlmock connection.
func NewFromSQL(sqlDB *sql.DB) (*GormDB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm on existing connection: %w", err)
	}
	return &GormDB{DB: db}, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func (db *GormDB) AutoMigrate() error {
	if err := db.createCustomTypes(); err != nil {
		return fmt.Errorf("failed to create custom types: %w", err)
	}

	err := db.DB.AutoMigrate(
		&models.User{},
		&models.Contest{},
		&models.Problem{},
		&models.Participant{},
		&models.Submission{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}

	return nil
}

func (db *GormDB) WithContext(ctx context.Context) *gorm.DB {
	return db.DB.WithContext(ctx)
}

func (db *GormDB) Transaction(ctx context.Context, fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error {
	return db.DB.WithContext(ctx).Transaction(fc, opts...)
}

func (db *GormDB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (db *GormDB) createCustomTypes() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}

	_, err = sqlDB.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`)
	if err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	err = db.createEnumType("contest_status", []string{
		string(models.ContestStatusUpcoming),
		string(models.ContestStatusActive),
		string(models.ContestStatusCompleted),
		string(models.ContestStatusCancelled),
	})
	if err != nil {
		return fmt.Errorf("failed to create contest_status type: %w", err)
	}

	err = db.createEnumType("submission_verdict", []string{
		string(models.VerdictPending),
		string(models.VerdictAccepted),
		string(models.VerdictRejected),
	})
	if err != nil {
		return fmt.Errorf("failed to create submission_verdict type: %w", err)
	}

	return nil
}

func (db *GormDB) createEnumType(typeName string, values []string) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}

	var exists bool
	checkQuery := `SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = $1)`
	err = sqlDB.QueryRow(checkQuery, typeName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check if type %s exists: %w", typeName, err)
	}
	if exists {
		return nil
	}

	quoted := make([]string, len(values))
	for i, value := range values {
		quoted[i] = "'" + value + "'"
	}

	createQuery := fmt.Sprintf(`CREATE TYPE %s AS ENUM (%s)`, typeName, strings.Join(quoted, ", "))
	if _, err = sqlDB.Exec(createQuery); err != nil {
		return fmt.Errorf("failed to create type %s: %w", typeName, err)
	}

	return nil
}

func (db *GormDB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// classify maps a store error onto the domain taxonomy: not-found and conflict
// errors keep their identity, everything else is transient.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrConflict):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", common.ErrNotFound, err)
	case common.IsConflict(err):
		return fmt.Errorf("%w: %v", common.ErrConflict, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", common.ErrTransient, err)
	}
}

package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Samocology/noap-backend/internal/model"
)

// NewMySQL returns a connected GORM DB instance. Driver errors are translated
// so duplicate-key violations surface as gorm.ErrDuplicatedKey.
func NewMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the identity tables, including the unique email indices.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Role{},
		&model.Admin{},
		&model.School{},
		&model.Member{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

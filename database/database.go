package database

import (
	"fmt"

	config "github.com/Logan-Myn/dancehub-v3-sub000/configs"
	"github.com/Logan-Myn/dancehub-v3-sub000/logger"
	"github.com/Logan-Myn/dancehub-v3-sub000/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens the Postgres pool that backs communities, lessons,
// availability and bookings.
func Connect(cfg config.DatabaseConfig, log logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		DisableNestedTransaction:                 true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("database connected", nil)
	return db, nil
}

func Migrate(db *gorm.DB, log logger.Logger) error {
	err := db.AutoMigrate(
		&models.Community{},
		&models.CommunityMember{},
		&models.PrivateLesson{},
		&models.AvailabilitySlot{},
		&models.LessonBooking{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Info("database migration successful", nil)
	return nil
}

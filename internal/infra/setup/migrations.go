package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Slink21Taken/InspiraShare/internal/domain"
)

// MigrateDB 迁移凭证表结构。
// room_credentials 表只有 varchar/text 列，AutoMigrate 可以完整处理。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	if err := db.AutoMigrate(&domain.RoomCredential{}); err != nil {
		logrus.Errorf("Failed to auto-migrate room_credentials table: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}

package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mokcj0825/board-hill/internal/domain"
)

// MigrateDB 迁移 rooms 与 seats 表。
// seats.room_id 带 ON DELETE CASCADE 外键，删除房间时一并删除座位。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}
	if err := db.Set("gorm:table_options", "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4").
		AutoMigrate(&domain.Room{}, &domain.Seat{}); err != nil {
		logrus.Errorf("Failed to auto-migrate tables: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	// 旧库可能缺少外键约束
	m := db.Migrator()
	if !m.HasConstraint(&domain.Room{}, "Seats") {
		if err := m.CreateConstraint(&domain.Room{}, "Seats"); err != nil {
			return fmt.Errorf("failed to create seats foreign key: %w", err)
		}
		logrus.Info("Seats foreign key created")
	}

	logrus.Info("Database migration completed successfully")
	return nil
}

package database

import (
	"log"

	"github.com/stagefront/seatpack-sync/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewPostgresDB(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Performance{}, &models.SeatPack{}); err != nil {
		log.Fatalf("failed to auto-migrate: %v", err)
	}

	// Partial unique index: at most one ACTIVE pack per structural signature
	// and performance. Inactive history rows may repeat the signature.
	db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_seat_pack_active_signature
		ON seat_packs (performance_id, zone_id, row_label, start_seat_number, end_seat_number)
		WHERE pack_status = 'active'
	`)

	return db
}

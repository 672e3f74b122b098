package repository

import (
	"context"
	"errors"

	"github.com/stagefront/seatpack-sync/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PerformanceRepository interface {
	FindByID(ctx context.Context, performanceID string) (*models.Performance, error)
	Upsert(ctx context.Context, performance *models.Performance) error
}

type performanceRepository struct {
	db *gorm.DB
}

func NewPerformanceRepository(db *gorm.DB) PerformanceRepository {
	return &performanceRepository{db: db}
}

func (r *performanceRepository) FindByID(ctx context.Context, performanceID string) (*models.Performance, error) {
	var perf models.Performance
	err := r.db.WithContext(ctx).
		Where("internal_performance_id = ?", performanceID).
		First(&perf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &perf, nil
}

// Upsert inserts or refreshes the performance context delivered alongside a
// scrape-completion message.
func (r *performanceRepository) Upsert(ctx context.Context, performance *models.Performance) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "internal_performance_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"event_name", "venue_name", "source_website", "pos_enabled", "performance_date", "updated_at",
		}),
	}).Create(performance).Error
}

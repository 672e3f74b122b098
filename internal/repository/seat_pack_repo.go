package repository

import (
	"context"
	"errors"
	"time"

	"github.com/stagefront/seatpack-sync/internal/models"
	"gorm.io/gorm"
)

type SeatPackRepository interface {
	// Transaction runs fn inside one storage transaction. Everything the
	// executor writes during a pass goes through the tx handle it receives.
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error

	Create(ctx context.Context, tx *gorm.DB, pack *models.SeatPack) error
	ExistsByID(ctx context.Context, tx *gorm.DB, packID string) (bool, error)
	CountByPerformance(ctx context.Context, tx *gorm.DB, performanceID string) (int64, error)
	FindActiveByID(ctx context.Context, tx *gorm.DB, packID string) (*models.SeatPack, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, packID string, fields map[string]any) error

	FindActiveByPerformance(ctx context.Context, performanceID string) ([]models.SeatPack, error)
	FindManuallyDelisted(ctx context.Context, performanceID string) ([]models.SeatPack, error)
	HasActivePacks(ctx context.Context, performanceID string) (bool, error)

	// FindPendingForPush returns active packs never confirmed on the vendor.
	FindPendingForPush(ctx context.Context, performanceID string) ([]models.SeatPack, error)
	// FindOwedPOSDeletes returns delisted packs whose vendor listing may
	// still exist.
	FindOwedPOSDeletes(ctx context.Context, performanceID string) ([]models.SeatPack, error)

	MarkListed(ctx context.Context, packID, inventoryID string) error
	MarkDelistConfirmed(ctx context.Context, packID string) error
	CountByPOSStatus(ctx context.Context, performanceID string) (map[models.POSStatus]int64, error)

	// FindPerformancesWithUnsettledPOS lists performances holding packs the
	// sweep still has work for: pending pushes or owed vendor deletes.
	FindPerformancesWithUnsettledPOS(ctx context.Context) ([]string, error)
}

type seatPackRepository struct {
	db *gorm.DB
}

func NewSeatPackRepository(db *gorm.DB) SeatPackRepository {
	return &seatPackRepository{db: db}
}

func (r *seatPackRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *seatPackRepository) Create(ctx context.Context, tx *gorm.DB, pack *models.SeatPack) error {
	if err := tx.WithContext(ctx).Create(pack).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateID
		}
		return err
	}
	return nil
}

func (r *seatPackRepository) ExistsByID(ctx context.Context, tx *gorm.DB, packID string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.SeatPack{}).
		Where("internal_pack_id = ?", packID).
		Count(&count).Error
	return count > 0, err
}

func (r *seatPackRepository) CountByPerformance(ctx context.Context, tx *gorm.DB, performanceID string) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.SeatPack{}).
		Where("performance_id = ?", performanceID).
		Count(&count).Error
	return count, err
}

func (r *seatPackRepository) FindActiveByID(ctx context.Context, tx *gorm.DB, packID string) (*models.SeatPack, error) {
	var pack models.SeatPack
	err := tx.WithContext(ctx).
		Where("internal_pack_id = ? AND pack_status = ?", packID, models.PackActive).
		First(&pack).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &pack, nil
}

func (r *seatPackRepository) UpdateFields(ctx context.Context, tx *gorm.DB, packID string, fields map[string]any) error {
	fields["updated_at"] = time.Now()
	res := tx.WithContext(ctx).
		Model(&models.SeatPack{}).
		Where("internal_pack_id = ?", packID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *seatPackRepository) FindActiveByPerformance(ctx context.Context, performanceID string) ([]models.SeatPack, error) {
	var packs []models.SeatPack
	err := r.db.WithContext(ctx).
		Where("performance_id = ? AND pack_status = ?", performanceID, models.PackActive).
		Order("internal_pack_id ASC").
		Find(&packs).Error
	return packs, err
}

func (r *seatPackRepository) FindManuallyDelisted(ctx context.Context, performanceID string) ([]models.SeatPack, error) {
	var packs []models.SeatPack
	err := r.db.WithContext(ctx).
		Where("performance_id = ? AND manually_delisted = ?", performanceID, true).
		Order("internal_pack_id ASC").
		Find(&packs).Error
	return packs, err
}

func (r *seatPackRepository) HasActivePacks(ctx context.Context, performanceID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SeatPack{}).
		Where("performance_id = ? AND pack_status = ?", performanceID, models.PackActive).
		Count(&count).Error
	return count > 0, err
}

func (r *seatPackRepository) FindPendingForPush(ctx context.Context, performanceID string) ([]models.SeatPack, error) {
	var packs []models.SeatPack
	err := r.db.WithContext(ctx).
		Where("performance_id = ? AND pack_status = ? AND pos_status = ?",
			performanceID, models.PackActive, models.POSPending).
		Order("created_at ASC, internal_pack_id ASC").
		Find(&packs).Error
	return packs, err
}

func (r *seatPackRepository) FindOwedPOSDeletes(ctx context.Context, performanceID string) ([]models.SeatPack, error) {
	var packs []models.SeatPack
	err := r.db.WithContext(ctx).
		Where("performance_id = ? AND pack_status = ? AND pos_synced = ? AND pos_inventory_id <> ''",
			performanceID, models.PackInactive, false).
		Order("updated_at ASC").
		Find(&packs).Error
	return packs, err
}

func (r *seatPackRepository) MarkListed(ctx context.Context, packID, inventoryID string) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.SeatPack{}).
		Where("internal_pack_id = ?", packID).
		Updates(map[string]any{
			"pos_status":       models.POSSynced,
			"pos_inventory_id": inventoryID,
			"pos_synced":       true,
			"pos_synced_at":    now,
			"updated_at":       now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *seatPackRepository) MarkDelistConfirmed(ctx context.Context, packID string) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.SeatPack{}).
		Where("internal_pack_id = ?", packID).
		Updates(map[string]any{
			"pos_synced":    true,
			"pos_synced_at": now,
			"updated_at":    now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *seatPackRepository) FindPerformancesWithUnsettledPOS(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.SeatPack{}).
		Distinct("performance_id").
		Where("(pack_status = ? AND pos_status = ?) OR (pack_status = ? AND pos_synced = ? AND pos_inventory_id <> '')",
			models.PackActive, models.POSPending,
			models.PackInactive, false).
		Order("performance_id ASC").
		Pluck("performance_id", &ids).Error
	return ids, err
}

func (r *seatPackRepository) CountByPOSStatus(ctx context.Context, performanceID string) (map[models.POSStatus]int64, error) {
	type row struct {
		POSStatus models.POSStatus
		Count     int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.SeatPack{}).
		Select("pos_status, count(*) as count").
		Where("performance_id = ?", performanceID).
		Group("pos_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[models.POSStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.POSStatus] = r.Count
	}
	return counts, nil
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stagefront/seatpack-sync/internal/dto"
	"github.com/stagefront/seatpack-sync/internal/models"
	"github.com/stagefront/seatpack-sync/internal/repository"
	"github.com/stagefront/seatpack-sync/internal/service"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

// --- Mock PerformanceRepository ---

type mockPerfRepo struct {
	findByIDFn func(ctx context.Context, performanceID string) (*models.Performance, error)
}

func (m *mockPerfRepo) FindByID(ctx context.Context, performanceID string) (*models.Performance, error) {
	return m.findByIDFn(ctx, performanceID)
}
func (m *mockPerfRepo) Upsert(ctx context.Context, perf *models.Performance) error { return nil }

// --- Mock SeatPackRepository ---

type mockPackRepo struct {
	countByPOSStatusFn func(ctx context.Context, performanceID string) (map[models.POSStatus]int64, error)
	hasActiveFn        func(ctx context.Context, performanceID string) (bool, error)
}

func (m *mockPackRepo) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
func (m *mockPackRepo) Create(ctx context.Context, tx *gorm.DB, pack *models.SeatPack) error {
	return nil
}
func (m *mockPackRepo) ExistsByID(ctx context.Context, tx *gorm.DB, packID string) (bool, error) {
	return false, nil
}
func (m *mockPackRepo) CountByPerformance(ctx context.Context, tx *gorm.DB, performanceID string) (int64, error) {
	return 0, nil
}
func (m *mockPackRepo) FindActiveByID(ctx context.Context, tx *gorm.DB, packID string) (*models.SeatPack, error) {
	return nil, repository.ErrNotFound
}
func (m *mockPackRepo) UpdateFields(ctx context.Context, tx *gorm.DB, packID string, fields map[string]any) error {
	return nil
}
func (m *mockPackRepo) FindActiveByPerformance(ctx context.Context, performanceID string) ([]models.SeatPack, error) {
	return nil, nil
}
func (m *mockPackRepo) FindManuallyDelisted(ctx context.Context, performanceID string) ([]models.SeatPack, error) {
	return nil, nil
}
func (m *mockPackRepo) HasActivePacks(ctx context.Context, performanceID string) (bool, error) {
	if m.hasActiveFn != nil {
		return m.hasActiveFn(ctx, performanceID)
	}
	return false, nil
}
func (m *mockPackRepo) FindPendingForPush(ctx context.Context, performanceID string) ([]models.SeatPack, error) {
	return nil, nil
}
func (m *mockPackRepo) FindOwedPOSDeletes(ctx context.Context, performanceID string) ([]models.SeatPack, error) {
	return nil, nil
}
func (m *mockPackRepo) MarkListed(ctx context.Context, packID, inventoryID string) error { return nil }
func (m *mockPackRepo) MarkDelistConfirmed(ctx context.Context, packID string) error     { return nil }
func (m *mockPackRepo) CountByPOSStatus(ctx context.Context, performanceID string) (map[models.POSStatus]int64, error) {
	if m.countByPOSStatusFn != nil {
		return m.countByPOSStatusFn(ctx, performanceID)
	}
	return nil, nil
}
func (m *mockPackRepo) FindPerformancesWithUnsettledPOS(ctx context.Context) ([]string, error) {
	return nil, nil
}

// --- Mock InventoryPusher ---

type mockPusher struct {
	sweepFn func(ctx context.Context, performanceID string) (*service.SweepResult, error)
}

func (m *mockPusher) CreateBulkInventory(ctx context.Context, packs []models.SeatPack, perf *models.Performance) *service.BulkInventoryResult {
	return &service.BulkInventoryResult{}
}
func (m *mockPusher) DelistSeatPacks(ctx context.Context, packs []models.SeatPack) *service.DelistResult {
	return &service.DelistResult{}
}
func (m *mockPusher) SyncPendingPacks(ctx context.Context, performanceID string) (*service.SweepResult, error) {
	return m.sweepFn(ctx, performanceID)
}

// --- Tests ---

func TestGetSyncStatus_Handler_Success(t *testing.T) {
	perfRepo := &mockPerfRepo{
		findByIDFn: func(ctx context.Context, performanceID string) (*models.Performance, error) {
			return &models.Performance{InternalPerformanceID: performanceID, POSEnabled: true}, nil
		},
	}
	packRepo := &mockPackRepo{
		countByPOSStatusFn: func(ctx context.Context, performanceID string) (map[models.POSStatus]int64, error) {
			return map[models.POSStatus]int64{
				models.POSSynced:  12,
				models.POSPending: 3,
			}, nil
		},
		hasActiveFn: func(ctx context.Context, performanceID string) (bool, error) {
			return true, nil
		},
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/performances/PERF-1/sync-status", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("PERF-1")

	h := NewStatusHandler(perfRepo, packRepo, nil)
	err := h.GetSyncStatus(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp dto.SyncStatusResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PERF-1", resp.PerformanceID)
	assert.True(t, resp.POSEnabled)
	assert.True(t, resp.HasActivePacks)
	assert.Equal(t, int64(12), resp.POSStatusCount[models.POSSynced])
	assert.Equal(t, int64(3), resp.POSStatusCount[models.POSPending])
}

func TestGetSyncStatus_Handler_NotFound(t *testing.T) {
	perfRepo := &mockPerfRepo{
		findByIDFn: func(ctx context.Context, performanceID string) (*models.Performance, error) {
			return nil, repository.ErrNotFound
		},
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/performances/PERF-X/sync-status", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("PERF-X")

	h := NewStatusHandler(perfRepo, &mockPackRepo{}, nil)
	err := h.GetSyncStatus(c)

	he, ok := err.(*echo.HTTPError)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, he.Code)
}

func TestTriggerSweep_Handler_Success(t *testing.T) {
	pusher := &mockPusher{
		sweepFn: func(ctx context.Context, performanceID string) (*service.SweepResult, error) {
			return &service.SweepResult{Pushed: 2, Deleted: 1}, nil
		},
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/performances/PERF-1/sweep", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("PERF-1")

	h := NewStatusHandler(&mockPerfRepo{}, &mockPackRepo{}, pusher)
	err := h.TriggerSweep(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp dto.SweepResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Pushed)
	assert.Equal(t, 1, resp.Deleted)
}

func TestTriggerSweep_Handler_NotFound(t *testing.T) {
	pusher := &mockPusher{
		sweepFn: func(ctx context.Context, performanceID string) (*service.SweepResult, error) {
			return nil, repository.ErrNotFound
		},
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/performances/PERF-X/sweep", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("PERF-X")

	h := NewStatusHandler(&mockPerfRepo{}, &mockPackRepo{}, pusher)
	err := h.TriggerSweep(c)

	he, ok := err.(*echo.HTTPError)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, he.Code)
}

func TestHealth_Handler(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewStatusHandler(nil, nil, nil)
	err := h.Health(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

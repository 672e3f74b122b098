package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stagefront/seatpack-sync/internal/dto"
	"github.com/stagefront/seatpack-sync/internal/repository"
	"github.com/stagefront/seatpack-sync/internal/service"
)

// StatusHandler exposes read-only sync visibility plus a manual sweep
// trigger. All writes flow through the queue consumer, not HTTP.
type StatusHandler struct {
	perfRepo repository.PerformanceRepository
	packRepo repository.SeatPackRepository
	pusher   service.InventoryPusher
}

func NewStatusHandler(perfRepo repository.PerformanceRepository, packRepo repository.SeatPackRepository, pusher service.InventoryPusher) *StatusHandler {
	return &StatusHandler{perfRepo: perfRepo, packRepo: packRepo, pusher: pusher}
}

func (h *StatusHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	performances := e.Group("/api/v1/performances")
	performances.GET("/:id/sync-status", h.GetSyncStatus)
	performances.POST("/:id/sweep", h.TriggerSweep)
}

func (h *StatusHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *StatusHandler) GetSyncStatus(c echo.Context) error {
	performanceID := c.Param("id")
	ctx := c.Request().Context()

	perf, err := h.perfRepo.FindByID(ctx, performanceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "performance not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	counts, err := h.packRepo.CountByPOSStatus(ctx, performanceID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	hasActive, err := h.packRepo.HasActivePacks(ctx, performanceID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, dto.SyncStatusResponse{
		PerformanceID:  perf.InternalPerformanceID,
		POSEnabled:     perf.POSEnabled,
		HasActivePacks: hasActive,
		POSStatusCount: counts,
	})
}

// TriggerSweep runs one pending-pack sweep for the performance, outside the
// periodic schedule. Useful after a vendor outage clears.
func (h *StatusHandler) TriggerSweep(c echo.Context) error {
	performanceID := c.Param("id")

	result, err := h.pusher.SyncPendingPacks(c.Request().Context(), performanceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "performance not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, dto.SweepResponse{
		PerformanceID: performanceID,
		Pushed:        result.Pushed,
		Deleted:       result.Deleted,
		Failed:        result.Failed,
		Errors:        result.Errors,
	})
}

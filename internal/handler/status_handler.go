package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/untis-notifier/internal/apperr"
	"github.com/stemsi/untis-notifier/internal/response"
	"github.com/stemsi/untis-notifier/internal/service"
)

// StatusHandler exposes the scheduled loop's progress.
type StatusHandler struct {
	tracker *service.StatusTracker
	now     func() time.Time
}

func NewStatusHandler(tracker *service.StatusTracker) *StatusHandler {
	return &StatusHandler{tracker: tracker, now: time.Now}
}

type statusBody struct {
	service.StatusSnapshot
	Uptime string `json:"uptime"`
	// Healthy is false when the last cycle failed.
	Healthy bool `json:"healthy"`
}

// Status godoc
// GET /api/v1/status
func (h *StatusHandler) Status(c *gin.Context) {
	if h.tracker == nil {
		response.Fail(c, http.StatusServiceUnavailable, apperr.ErrInternal)
		return
	}

	snap := h.tracker.Snapshot()
	response.Success(c, http.StatusOK, statusBody{
		StatusSnapshot: snap,
		Uptime:         formatDuration(h.now().Sub(snap.StartedAt)),
		Healthy:        snap.LastRun == nil || snap.LastRun.Error == "",
	})
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

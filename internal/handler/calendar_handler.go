package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/untis-notifier/internal/apperr"
	"github.com/stemsi/untis-notifier/internal/response"
	"github.com/stemsi/untis-notifier/internal/service"
)

// CalendarHandler serves the cancellations of the last fetch as iCalendar.
type CalendarHandler struct {
	calendar *service.CalendarService
	log      zerolog.Logger
	now      func() time.Time
}

func NewCalendarHandler(calendar *service.CalendarService, log zerolog.Logger) *CalendarHandler {
	return &CalendarHandler{
		calendar: calendar,
		log:      log.With().Str("component", "calendar_handler").Logger(),
		now:      time.Now,
	}
}

// Cancellations godoc
// GET /api/v1/cancellations.ics
func (h *CalendarHandler) Cancellations(c *gin.Context) {
	feed, err := h.calendar.Feed(h.now())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build calendar feed")
		code := apperr.CodeOf(err)
		status := http.StatusInternalServerError
		if code == apperr.ErrStorage {
			// Nothing fetched yet.
			status = http.StatusServiceUnavailable
		}
		response.Fail(c, status, code)
		return
	}

	c.Header("Content-Disposition", `inline; filename="cancellations.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(feed))
}

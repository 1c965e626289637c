package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/untis-notifier/internal/config"
	"github.com/stemsi/untis-notifier/internal/handler"
	"github.com/stemsi/untis-notifier/internal/model"
	"github.com/stemsi/untis-notifier/internal/repository"
	"github.com/stemsi/untis-notifier/internal/service"
)

func newTestRouter(tracker *service.StatusTracker) http.Handler {
	cfg := &config.Config{GinMode: "test"}
	return SetupRouter(&Handlers{Status: handler.NewStatusHandler(tracker)}, cfg)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(service.NewStatusTracker(time.Now()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}
}

func TestStatusReportsLastRun(t *testing.T) {
	tracker := service.NewStatusTracker(time.Now().Add(-2 * time.Hour))
	tracker.Record(service.RunReport{RunID: "run-1", Error: "TRANSPORT_ERROR: down", ErrorCode: "TRANSPORT_ERROR"})
	tracker.SetNextWake(time.Now().Add(time.Hour))

	r := newTestRouter(tracker)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body struct {
		Data struct {
			Cycles  int    `json:"cycles"`
			Healthy bool   `json:"healthy"`
			Uptime  string `json:"uptime"`
			LastRun struct {
				RunID string `json:"run_id"`
			} `json:"last_run"`
			NextWake *time.Time `json:"next_wake"`
		} `json:"data"`
		Metadata struct {
			RequestID string `json:"request_id"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Cycles != 1 || body.Data.Healthy || body.Data.LastRun.RunID != "run-1" || body.Data.NextWake == nil {
		t.Errorf("data = %+v", body.Data)
	}
	if !strings.HasPrefix(body.Data.Uptime, "2h") {
		t.Errorf("uptime = %q", body.Data.Uptime)
	}
	if body.Metadata.RequestID != "abc-123" {
		t.Errorf("request id = %q", body.Metadata.RequestID)
	}
}

func TestRequestIDRejectsGarbage(t *testing.T) {
	r := newTestRouter(service.NewStatusTracker(time.Now()))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 200))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("X-Request-ID = %q, want a fresh uuid", got)
	}
}

func newCalendarRouter(t *testing.T, cache *repository.CacheRepository) http.Handler {
	t.Helper()
	cfg := &config.Config{GinMode: "test"}
	calendar := service.NewCalendarService(cache, 500, time.UTC)
	return SetupRouter(&Handlers{
		Status:   handler.NewStatusHandler(service.NewStatusTracker(time.Now())),
		Calendar: handler.NewCalendarHandler(calendar, zerolog.Nop()),
	}, cfg)
}

func TestCancellationsFeed(t *testing.T) {
	cache := repository.NewCacheRepository(t.TempDir())
	if err := cache.SaveSubjects([]model.Subject{{ID: 10, Name: "M"}}); err != nil {
		t.Fatal(err)
	}
	if err := cache.SaveTimetable([]model.TimetableEntry{{
		ID: 1, Date: 20261021, StartTime: 750, EndTime: 835,
		Classes:  []model.ElementRef{{ID: 500}},
		Subjects: []model.ElementRef{{ID: 10}},
		Code:     model.CodeCancelled,
	}}); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	newCalendarRouter(t, cache).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/cancellations.ics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "SUMMARY:M entfällt") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestCancellationsFeedBeforeFirstFetch(t *testing.T) {
	cache := repository.NewCacheRepository(t.TempDir())

	w := httptest.NewRecorder()
	newCalendarRouter(t, cache).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/cancellations.ics", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), "STORAGE_ERROR") {
		t.Errorf("body = %s", w.Body.String())
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/untis-notifier/internal/apperr"
	"github.com/stemsi/untis-notifier/internal/model"
	"github.com/stemsi/untis-notifier/internal/repository"
	"github.com/stemsi/untis-notifier/internal/untis"
)

const (
	authOK      = `{"jsonrpc":"2.0","id":"x","result":{"sessionId":"S1"}}`
	subjectsOK  = `{"jsonrpc":"2.0","id":"x","result":[{"id":5,"name":"MA1"},{"id":6,"name":"DE2"}]}`
	timetableOK = `{"jsonrpc":"2.0","id":"x","result":[
		{"id":1,"date":20261021,"startTime":750,"endTime":835,"kl":[{"id":661}],"su":[{"id":5}],"code":"cancelled"},
		{"id":2,"date":20261021,"startTime":840,"endTime":925,"kl":[{"id":661}],"su":[{"id":6}]}]}`
	logoutOK = `{"jsonrpc":"2.0","id":"x","result":null}`
)

type rpcStub struct {
	mu        sync.Mutex
	methods   []string
	responses map[string]string
}

func (s *rpcStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string `json:"method"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	s.methods = append(s.methods, req.Method)
	body, ok := s.responses[req.Method]
	s.mu.Unlock()

	if !ok {
		http.Error(w, "down", http.StatusBadGateway)
		return
	}
	_, _ = w.Write([]byte(body))
}

func (s *rpcStub) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.methods...)
}

type fakeNotifier struct {
	err   error
	sent  []string
	chats []string
}

func (n *fakeNotifier) SendMessage(_ context.Context, chatID, text string) error {
	n.chats = append(n.chats, chatID)
	n.sent = append(n.sent, text)
	return n.err
}

type fakeLocker struct {
	acquireErr error
	acquired   int
	released   int
}

func (l *fakeLocker) Acquire(context.Context, string, string, time.Duration) error {
	if l.acquireErr != nil {
		return l.acquireErr
	}
	l.acquired++
	return nil
}

func (l *fakeLocker) Release(context.Context, string, string) error {
	l.released++
	return nil
}

type pipelineFixture struct {
	stub     *rpcStub
	cache    *repository.CacheRepository
	dir      string
	notifier *fakeNotifier
	svc      *PipelineService
}

func newPipelineFixture(t *testing.T, responses map[string]string, locker RunLocker, opts PipelineOptions) *pipelineFixture {
	t.Helper()

	stub := &rpcStub{responses: responses}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cache := repository.NewCacheRepository(dir)
	if err := cache.SaveTeachers(model.TeacherLookup{"MA1": "Mr. Smith", "DE2": "Frau Weber"}); err != nil {
		t.Fatal(err)
	}

	client := untis.NewClient(untis.Options{
		BaseURL:    srv.URL,
		Username:   "u",
		Password:   "p",
		ClientName: "CLIENT",
		ClassID:    classID,
		Timeout:    2 * time.Second,
	}, zerolog.Nop())

	notifier := &fakeNotifier{}
	opts.ClassID = classID
	if opts.ChatID == "" {
		opts.ChatID = "42"
	}
	composer := NewComposerService(cache, classID, zerolog.Nop())
	svc := NewPipelineService(client, cache, composer, notifier, locker, opts, zerolog.Nop())

	return &pipelineFixture{stub: stub, cache: cache, dir: dir, notifier: notifier, svc: svc}
}

func fullResponses() map[string]string {
	return map[string]string{
		"authenticate": authOK,
		"getSubjects":  subjectsOK,
		"getTimetable": timetableOK,
		"logout":       logoutOK,
	}
}

var wednesdayMorning = time.Date(2026, 10, 21, 7, 5, 0, 0, time.Local)

func TestRunOnceDelivers(t *testing.T) {
	f := newPipelineFixture(t, fullResponses(), nil, PipelineOptions{})

	report, err := f.svc.RunOnce(context.Background(), wednesdayMorning)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	want := "Heute entfällt:\nMA1 in der 1. Stunde bei Mr. Smith\n"
	if len(f.notifier.sent) != 1 || f.notifier.sent[0] != want {
		t.Fatalf("sent = %q", f.notifier.sent)
	}
	if f.notifier.chats[0] != "42" {
		t.Errorf("chat = %q", f.notifier.chats[0])
	}
	if !report.Delivered || report.Mode != model.ModeToday || report.Lines != 1 || report.NewCancellations != 1 {
		t.Errorf("report = %+v", report)
	}

	wantOrder := []string{"authenticate", "getSubjects", "getTimetable", "logout"}
	got := f.stub.called()
	if len(got) != len(wantOrder) {
		t.Fatalf("calls = %v", got)
	}
	for i := range wantOrder {
		if got[i] != wantOrder[i] {
			t.Errorf("call %d = %s, want %s", i, got[i], wantOrder[i])
		}
	}

	entries, err := f.cache.LoadTimetable()
	if err != nil || len(entries) != 2 {
		t.Errorf("cached timetable = %d entries, %v", len(entries), err)
	}

	// A second run sees the same cancellation as already known.
	report, err = f.svc.RunOnce(context.Background(), wednesdayMorning)
	if err != nil || report.NewCancellations != 0 {
		t.Errorf("second run: new = %d, err = %v", report.NewCancellations, err)
	}
}

func TestRunOnceOutsideWindowDoesNotNotify(t *testing.T) {
	f := newPipelineFixture(t, fullResponses(), nil, PipelineOptions{})

	saturday := time.Date(2026, 10, 24, 10, 0, 0, 0, time.Local)
	report, err := f.svc.RunOnce(context.Background(), saturday)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(f.notifier.sent) != 0 || report.Skipped == "" || report.Mode != model.ModeNone {
		t.Errorf("sent = %q, report = %+v", f.notifier.sent, report)
	}
	// Fetch and persist still happen.
	if _, err := os.Stat(filepath.Join(f.dir, "subjects.json")); err != nil {
		t.Errorf("subjects.json not written: %v", err)
	}
}

func TestRunOnceSkipEmptyDigest(t *testing.T) {
	responses := fullResponses()
	responses["getTimetable"] = `{"jsonrpc":"2.0","id":"x","result":[]}`

	f := newPipelineFixture(t, responses, nil, PipelineOptions{SkipEmptyDigest: true})
	report, err := f.svc.RunOnce(context.Background(), wednesdayMorning)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(f.notifier.sent) != 0 || report.Skipped != "no cancellations" {
		t.Errorf("sent = %q, report = %+v", f.notifier.sent, report)
	}

	g := newPipelineFixture(t, responses, nil, PipelineOptions{})
	if _, err := g.svc.RunOnce(context.Background(), wednesdayMorning); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(g.notifier.sent) != 1 || g.notifier.sent[0] != "Heute entfällt:\n" {
		t.Errorf("header-only digest = %q", g.notifier.sent)
	}
}

func TestRunOnceFetchFailureKeepsCache(t *testing.T) {
	responses := fullResponses()
	delete(responses, "getTimetable")

	f := newPipelineFixture(t, responses, nil, PipelineOptions{})
	if err := f.cache.SaveSubjects([]model.Subject{{ID: 1, Name: "OLD"}}); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.RunOnce(context.Background(), wednesdayMorning)
	if !apperr.Is(err, apperr.ErrTransport) {
		t.Fatalf("want TRANSPORT_ERROR, got %v", err)
	}

	subjects, err := f.cache.LoadSubjects()
	if err != nil || len(subjects) != 1 || subjects[0].Name != "OLD" {
		t.Errorf("cache overwritten: %+v, %v", subjects, err)
	}
	if len(f.notifier.sent) != 0 {
		t.Error("notified after failed fetch")
	}
	calls := f.stub.called()
	if calls[len(calls)-1] != "logout" {
		t.Errorf("session not closed, calls = %v", calls)
	}
}

func TestRunOnceAuthFailure(t *testing.T) {
	responses := fullResponses()
	responses["authenticate"] = `{"jsonrpc":"2.0","id":"x","result":{}}`

	f := newPipelineFixture(t, responses, nil, PipelineOptions{})
	report, err := f.svc.RunOnce(context.Background(), wednesdayMorning)
	if !apperr.Is(err, apperr.ErrAuth) {
		t.Fatalf("want AUTH_ERROR, got %v", err)
	}
	if report.ErrorCode != string(apperr.ErrAuth) || report.Error == "" {
		t.Errorf("report = %+v", report)
	}
}

func TestRunOnceLogoutFailureIsAdvisory(t *testing.T) {
	responses := fullResponses()
	delete(responses, "logout")

	f := newPipelineFixture(t, responses, nil, PipelineOptions{})
	if _, err := f.svc.RunOnce(context.Background(), wednesdayMorning); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(f.notifier.sent) != 1 {
		t.Errorf("sent = %q", f.notifier.sent)
	}
}

func TestRunOnceDeliveryFailureIsReported(t *testing.T) {
	f := newPipelineFixture(t, fullResponses(), nil, PipelineOptions{})
	f.notifier.err = apperr.New(apperr.ErrDelivery, "test", errors.New("chat not found"))

	report, err := f.svc.RunOnce(context.Background(), wednesdayMorning)
	if !apperr.Is(err, apperr.ErrDelivery) {
		t.Fatalf("want DELIVERY_ERROR, got %v", err)
	}
	if report.Delivered || report.Lines != 1 {
		t.Errorf("report = %+v", report)
	}
	if _, err := f.cache.LoadTimetable(); err != nil {
		t.Errorf("cache discarded: %v", err)
	}
}

func TestRunOnceRunLock(t *testing.T) {
	locker := &fakeLocker{}
	f := newPipelineFixture(t, fullResponses(), locker, PipelineOptions{LockKey: "k", LockTTL: time.Minute})
	if _, err := f.svc.RunOnce(context.Background(), wednesdayMorning); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if locker.acquired != 1 || locker.released != 1 {
		t.Errorf("acquired = %d, released = %d", locker.acquired, locker.released)
	}

	held := &fakeLocker{acquireErr: apperr.New(apperr.ErrLocked, "test", nil)}
	g := newPipelineFixture(t, fullResponses(), held, PipelineOptions{LockKey: "k", LockTTL: time.Minute})
	if _, err := g.svc.RunOnce(context.Background(), wednesdayMorning); !apperr.Is(err, apperr.ErrLocked) {
		t.Fatalf("want RUN_LOCKED, got %v", err)
	}
	if len(g.stub.called()) != 0 {
		t.Errorf("fetched while locked: %v", g.stub.called())
	}
}

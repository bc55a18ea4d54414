package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/craftsleuth/sleuth/internal/poller"
	"github.com/craftsleuth/sleuth/internal/storage"
)

type fakeCycles struct {
	report poller.Report
	n      int
}

func (f fakeCycles) Last() (poller.Report, int) { return f.report, f.n }

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func setupHandler(t *testing.T, cycles Cycles) (http.Handler, *storage.Store) {
	t.Helper()
	store, err := storage.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	h := NewHandler(Deps{
		Store:  store,
		Cycles: cycles,
		Now:    func() time.Time { return testNow },
	})
	return h, store
}

func TestHealth(t *testing.T) {
	h, _ := setupHandler(t, fakeCycles{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != `{"status":"ok"}` {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestListSubmissions(t *testing.T) {
	h, store := setupHandler(t, fakeCycles{})
	ctx := context.Background()

	sub := storage.Submission{
		Username:  "steve",
		Title:     "Creeper help",
		Text:      "body",
		PostID:    "abc",
		CreatedAt: testNow.Add(-3 * time.Hour),
		EditedAt:  testNow.Add(-3 * time.Hour),
	}
	if err := store.SaveSubmission(ctx, &sub); err != nil {
		t.Fatalf("SaveSubmission: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/submissions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var views []SubmissionView
	if err := json.NewDecoder(rec.Body).Decode(&views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("got %d submissions, want 1", len(views))
	}
	if views[0].PostID != "abc" || views[0].Username != "steve" {
		t.Errorf("view = %+v", views[0])
	}
	if views[0].Age != "3 hours ago" {
		t.Errorf("Age = %q, want %q", views[0].Age, "3 hours ago")
	}
}

func TestListSubmissions_Empty(t *testing.T) {
	h, _ := setupHandler(t, fakeCycles{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/submissions", nil))
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want empty array", got)
	}
}

func TestGetSubmission_NotFound(t *testing.T) {
	h, _ := setupHandler(t, fakeCycles{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/submissions/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCycle(t *testing.T) {
	report := poller.Report{CycleID: "c-1", StartedAt: testNow.Add(-2 * time.Minute), Tracked: 4}
	h, _ := setupHandler(t, fakeCycles{report: report, n: 3})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cycle", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var view cycleView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Cycles != 3 || view.Last.CycleID != "c-1" || view.Last.Tracked != 4 {
		t.Errorf("view = %+v", view)
	}
	if view.LastSeen != "2 minutes ago" {
		t.Errorf("LastSeen = %q", view.LastSeen)
	}
}

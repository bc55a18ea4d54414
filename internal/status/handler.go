// Package status serves a small read-only HTTP view of the bot: liveness,
// the last reconciliation cycle, and the tracked submissions.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/craftsleuth/sleuth/internal/poller"
	"github.com/craftsleuth/sleuth/internal/storage"
)

// Store is the read side of the submission repository.
type Store interface {
	ListSubmissions(ctx context.Context) ([]storage.Submission, error)
	GetSubmission(ctx context.Context, postID string) (storage.Submission, error)
}

// Cycles reports reconciliation progress.
type Cycles interface {
	Last() (poller.Report, int)
}

type Deps struct {
	Store  Store
	Cycles Cycles
	// Now is the clock used for relative ages. Defaults to time.Now.
	Now func() time.Time
}

// SubmissionView is one tracked submission as served over HTTP.
type SubmissionView struct {
	ID             int64     `json:"id"`
	PostID         string    `json:"post_id"`
	Username       string    `json:"username"`
	Title          string    `json:"title"`
	DeletionMethod string    `json:"deletion_method,omitempty"`
	Edited         bool      `json:"edited"`
	CreatedAt      time.Time `json:"created_at"`
	EditedAt       time.Time `json:"edited_at"`
	Age            string    `json:"age"`
}

type cycleView struct {
	Cycles   int           `json:"cycles"`
	Last     poller.Report `json:"last"`
	LastSeen string        `json:"last_seen,omitempty"`
}

func NewHandler(deps Deps) http.Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/cycle", handleCycle(deps))
	r.Get("/submissions", handleListSubmissions(deps))
	r.Get("/submissions/{postID}", handleGetSubmission(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleCycle(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		last, n := deps.Cycles.Last()
		view := cycleView{Cycles: n, Last: last}
		if n > 0 {
			view.LastSeen = humanize.RelTime(last.StartedAt, deps.Now(), "ago", "from now")
		}
		writeJSON(w, view)
	}
}

func handleListSubmissions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subs, err := deps.Store.ListSubmissions(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "store_error", "failed to list submissions: %v", err)
			return
		}

		now := deps.Now()
		views := make([]SubmissionView, 0, len(subs))
		for _, s := range subs {
			views = append(views, newSubmissionView(s, now))
		}
		writeJSON(w, views)
	}
}

func handleGetSubmission(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID := chi.URLParam(r, "postID")

		sub, err := deps.Store.GetSubmission(r.Context(), postID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "submission %s is not tracked", postID)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "store_error", "failed to get submission: %v", err)
			return
		}
		writeJSON(w, newSubmissionView(sub, deps.Now()))
	}
}

func newSubmissionView(s storage.Submission, now time.Time) SubmissionView {
	return SubmissionView{
		ID:             s.ID,
		PostID:         s.PostID,
		Username:       s.Username,
		Title:          s.Title,
		DeletionMethod: s.DeletionMethod.String,
		Edited:         s.LastEdit.Valid,
		CreatedAt:      s.CreatedAt,
		EditedAt:       s.EditedAt,
		Age:            humanize.RelTime(s.CreatedAt, now, "ago", "from now"),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// Package poller drives reconciliation cycles: intake of new posts, a
// re-check of every tracked submission, then deferred deletion.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/craftsleuth/sleuth/internal/reddit"
	"github.com/craftsleuth/sleuth/internal/storage"
	"github.com/craftsleuth/sleuth/internal/tracker"
)

// Platform is the remote content source.
type Platform interface {
	NewPosts(ctx context.Context, community string, limit int) ([]tracker.Post, error)
	Post(ctx context.Context, id string) (tracker.Post, error)
}

// Store is the read side of the submission repository.
type Store interface {
	TrackedPostIDs(ctx context.Context) (map[string]struct{}, error)
	ListSubmissions(ctx context.Context) ([]storage.Submission, error)
}

// Config controls one Loop.
type Config struct {
	Community string
	// MaxPosts bounds how many new posts are fetched per cycle.
	MaxPosts int
	// Interval is slept between cycles. Defaults to 5 minutes.
	Interval time.Duration
	// RateLimitBackoff is waited after a rate-limit response. Defaults to 60s.
	RateLimitBackoff time.Duration
}

// Report summarizes one cycle.
type Report struct {
	CycleID     string        `json:"cycle_id"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Fetched     int           `json:"fetched"`
	Tracked     int           `json:"tracked"`
	Checked     int           `json:"checked"`
	Skipped     int           `json:"skipped"`
	Resolved    int           `json:"resolved"`
	RateLimited int           `json:"rate_limited"`
}

// Loop runs reconciliation cycles until its context is cancelled or a cycle
// fails.
type Loop struct {
	cfg      Config
	platform Platform
	store    Store
	tracker  *tracker.Tracker
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error

	mu     sync.Mutex
	last   Report
	cycles int
}

// New creates a Loop with the given dependencies.
func New(cfg Config, platform Platform, store Store, t *tracker.Tracker) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.RateLimitBackoff <= 0 {
		cfg.RateLimitBackoff = 60 * time.Second
	}
	return &Loop{
		cfg:      cfg,
		platform: platform,
		store:    store,
		tracker:  t,
		logger:   slog.Default(),
		sleep:    tracker.Sleep,
	}
}

// Run repeats RunOnce, sleeping the configured interval between cycles. It
// returns nil when ctx is cancelled and the first cycle error otherwise.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		if _, err := l.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := l.sleep(ctx, l.cfg.Interval); err != nil {
			return nil
		}
	}
}

// RunOnce performs a single reconciliation cycle.
func (l *Loop) RunOnce(ctx context.Context) (Report, error) {
	rep := Report{CycleID: uuid.New().String(), StartedAt: time.Now()}
	log := l.logger.With("cycle_id", rep.CycleID)
	log.Debug("cycle started", "community", l.cfg.Community)

	tracked, err := l.store.TrackedPostIDs(ctx)
	if err != nil {
		return rep, fmt.Errorf("loading tracked ids: %w", err)
	}

	if err := l.intake(ctx, log, tracked, &rep); err != nil {
		return rep, err
	}

	subs, err := l.store.ListSubmissions(ctx)
	if err != nil {
		return rep, fmt.Errorf("listing submissions: %w", err)
	}

	var resolved []string
	for _, sub := range subs {
		post, err := l.platform.Post(ctx, sub.PostID)
		switch {
		case errors.Is(err, reddit.ErrRateLimited):
			rep.RateLimited++
			rep.Skipped++
			log.Warn("rate limited, skipping post", "post_id", sub.PostID, "backoff", l.cfg.RateLimitBackoff)
			if err := l.sleep(ctx, l.cfg.RateLimitBackoff); err != nil {
				return rep, err
			}
			continue
		case errors.Is(err, reddit.ErrNotFound):
			rep.Skipped++
			log.Warn("tracked post not found on platform", "post_id", sub.PostID)
			continue
		case err != nil:
			return rep, fmt.Errorf("fetching post %s: %w", sub.PostID, err)
		}

		rep.Checked++
		outcome, err := l.tracker.Reconcile(ctx, sub, post)
		if errors.Is(err, reddit.ErrRateLimited) {
			rep.RateLimited++
			rep.Skipped++
			log.Warn("rate limited sending notification, skipping post", "post_id", sub.PostID, "backoff", l.cfg.RateLimitBackoff)
			if err := l.sleep(ctx, l.cfg.RateLimitBackoff); err != nil {
				return rep, err
			}
			continue
		}
		if err != nil {
			return rep, err
		}
		if outcome.Resolved() {
			resolved = append(resolved, sub.PostID)
		}
	}

	if err := l.tracker.Retire(ctx, resolved); err != nil {
		return rep, err
	}
	rep.Resolved = len(resolved)
	rep.Duration = time.Since(rep.StartedAt)

	l.mu.Lock()
	l.last = rep
	l.cycles++
	l.mu.Unlock()

	log.Info("cycle finished",
		"fetched", rep.Fetched,
		"tracked", rep.Tracked,
		"checked", rep.Checked,
		"resolved", rep.Resolved,
		"skipped", rep.Skipped,
		"duration", rep.Duration.Round(time.Millisecond),
	)
	return rep, nil
}

// intake fetches the newest posts, retrying once after a rate limit.
func (l *Loop) intake(ctx context.Context, log *slog.Logger, tracked map[string]struct{}, rep *Report) error {
	posts, err := l.platform.NewPosts(ctx, l.cfg.Community, l.cfg.MaxPosts)
	if errors.Is(err, reddit.ErrRateLimited) {
		rep.RateLimited++
		log.Warn("rate limited fetching new posts, retrying", "backoff", l.cfg.RateLimitBackoff)
		if err := l.sleep(ctx, l.cfg.RateLimitBackoff); err != nil {
			return err
		}
		posts, err = l.platform.NewPosts(ctx, l.cfg.Community, l.cfg.MaxPosts)
		if errors.Is(err, reddit.ErrRateLimited) {
			rep.RateLimited++
			log.Warn("still rate limited, skipping intake this cycle")
			return nil
		}
	}
	if err != nil {
		return fmt.Errorf("fetching new posts: %w", err)
	}

	rep.Fetched = len(posts)
	for _, post := range posts {
		ok, err := l.tracker.Intake(ctx, post, tracked)
		if err != nil {
			return err
		}
		if ok {
			rep.Tracked++
		}
	}
	return nil
}

// Last returns the report of the most recent successful cycle and the number
// of cycles completed.
func (l *Loop) Last() (Report, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last, l.cycles
}

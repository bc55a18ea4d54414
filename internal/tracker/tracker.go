// Package tracker holds the lifecycle policy of a tracked submission: when a
// remote post starts being tracked, when its edits are recorded, and when it
// is resolved with or without a moderator notification.
package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/craftsleuth/sleuth/internal/storage"
)

// Post is the view of a remote submission the tracker needs.
type Post interface {
	ID() string
	// Author returns the author name and false when the account is gone.
	Author() (string, bool)
	Title() string
	Body() string
	Flair() string
	// RemovalCategory is empty while the post is live.
	RemovalCategory() string
}

// Notifier tells moderators about posts that went away.
type Notifier interface {
	PostRemoved(ctx context.Context, sub storage.Submission, method string) error
	AccountDeleted(ctx context.Context, sub storage.Submission) error
}

// Repository persists submissions.
type Repository interface {
	SaveSubmission(ctx context.Context, sub *storage.Submission) error
	EditSubmission(ctx context.Context, sub storage.Submission) error
	DeleteSubmission(ctx context.Context, postID string) error
}

// Outcome describes what Reconcile decided for one submission.
type Outcome int

const (
	// Kept means the submission stays tracked.
	Kept Outcome = iota
	// Expired means it aged out or got an excluded flair.
	Expired
	// AccountGone means the author account no longer exists.
	AccountGone
	// Removed means a removal was observed for the first time.
	Removed
)

func (o Outcome) String() string {
	switch o {
	case Kept:
		return "kept"
	case Expired:
		return "expired"
	case AccountGone:
		return "account_gone"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Resolved reports whether the submission should be dropped this cycle.
func (o Outcome) Resolved() bool { return o != Kept }

// Tracker applies the lifecycle rules to individual submissions.
type Tracker struct {
	repo     Repository
	notifier Notifier
	policy   Policy
	logger   *slog.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithSleep overrides how the post-notification cooldown is waited.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(t *Tracker) { t.sleep = sleep }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// New creates a Tracker.
func New(repo Repository, notifier Notifier, policy Policy, opts ...Option) *Tracker {
	t := &Tracker{
		repo:     repo,
		notifier: notifier,
		policy:   policy,
		logger:   slog.Default(),
		now:      time.Now,
		sleep:    Sleep,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Policy returns the tracker's policy.
func (t *Tracker) Policy() Policy { return t.policy }

// Intake starts tracking post when it is eligible. tracked holds the remote
// ids already in the repository; a newly saved id is added to it so the same
// post is not saved twice in one cycle. It reports whether a record was
// created.
func (t *Tracker) Intake(ctx context.Context, post Post, tracked map[string]struct{}) (bool, error) {
	author, ok := post.Author()
	if !ok {
		return false, nil
	}
	id := post.ID()
	if _, seen := tracked[id]; seen {
		return false, nil
	}
	if t.policy.Excluded(post.Flair()) || post.RemovalCategory() != "" {
		return false, nil
	}

	now := t.now()
	sub := storage.Submission{
		Username:  author,
		Title:     post.Title(),
		Text:      post.Body(),
		PostID:    id,
		CreatedAt: now,
		EditedAt:  now,
	}
	if err := t.repo.SaveSubmission(ctx, &sub); err != nil {
		return false, fmt.Errorf("tracking post %s: %w", id, err)
	}
	tracked[id] = struct{}{}
	t.logger.Debug("tracking post", "post_id", id, "author", author)
	return true, nil
}

// Reconcile compares a tracked submission against the current remote state
// of its post. Notification failures are returned before anything about the
// removal is persisted; the caller decides whether they are fatal. A resolved submission is not deleted here; see
// Retire.
func (t *Tracker) Reconcile(ctx context.Context, sub storage.Submission, post Post) (Outcome, error) {
	now := t.now()
	outcome := Kept
	method := ClassifyRemoval(post.RemovalCategory())
	_, authorPresent := post.Author()

	switch {
	case t.policy.AgedOut(sub.CreatedAt, now) || t.policy.Excluded(post.Flair()):
		outcome = Expired

	case !authorPresent:
		outcome = AccountGone
		if !t.policy.Ignored(method) {
			if err := t.notifier.AccountDeleted(ctx, sub); err != nil {
				return outcome, err
			}
		}

	case method != "" && !sub.DeletionMethod.Valid:
		outcome = Removed
		sub.DeletionMethod = sql.NullString{String: method, Valid: true}
		sub.EditedAt = now
		notify := !t.policy.Ignored(method)
		// Recorded only after delivery; a failed send is retried next cycle.
		if notify {
			if err := t.notifier.PostRemoved(ctx, sub, method); err != nil {
				return outcome, err
			}
		}
		if err := t.repo.EditSubmission(ctx, sub); err != nil {
			return outcome, fmt.Errorf("recording removal of %s: %w", sub.PostID, err)
		}
		if notify {
			if err := t.sleep(ctx, t.policy.Cooldown); err != nil {
				return outcome, err
			}
		}
	}

	if !sub.DeletionMethod.Valid && post.Body() != sub.CurrentBody() {
		sub.LastEdit = sql.NullString{String: post.Body(), Valid: true}
		sub.EditedAt = now
		if err := t.repo.EditSubmission(ctx, sub); err != nil {
			return outcome, fmt.Errorf("recording edit of %s: %w", sub.PostID, err)
		}
		t.logger.Debug("post edited", "post_id", sub.PostID)
	}

	if outcome.Resolved() {
		t.logger.Info("submission resolved", "post_id", sub.PostID, "outcome", outcome.String(), "method", method)
	}
	return outcome, nil
}

// Retire deletes every resolved post id from the repository.
func (t *Tracker) Retire(ctx context.Context, postIDs []string) error {
	for _, id := range postIDs {
		if err := t.repo.DeleteSubmission(ctx, id); err != nil {
			return fmt.Errorf("retiring post %s: %w", id, err)
		}
	}
	return nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

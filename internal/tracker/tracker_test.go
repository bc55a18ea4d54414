package tracker

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftsleuth/sleuth/internal/storage"
)

type fakePost struct {
	id, author, title, body, flair, category string
	authorGone                               bool
}

func (p fakePost) ID() string { return p.id }
func (p fakePost) Author() (string, bool) { return p.author, !p.authorGone }
func (p fakePost) Title() string { return p.title }
func (p fakePost) Body() string { return p.body }
func (p fakePost) Flair() string { return p.flair }
func (p fakePost) RemovalCategory() string { return p.category }

type fakeRepo struct {
	saved   []storage.Submission
	edited  []storage.Submission
	deleted []string
	nextID  int64
	saveErr error
}

func (r *fakeRepo) SaveSubmission(_ context.Context, sub *storage.Submission) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.nextID++
	sub.ID = r.nextID
	r.saved = append(r.saved, *sub)
	return nil
}

func (r *fakeRepo) EditSubmission(_ context.Context, sub storage.Submission) error {
	r.edited = append(r.edited, sub)
	return nil
}

func (r *fakeRepo) DeleteSubmission(_ context.Context, postID string) error {
	r.deleted = append(r.deleted, postID)
	return nil
}

type fakeNotifier struct {
	removed  []string
	accounts []string
	err      error
}

func (n *fakeNotifier) PostRemoved(_ context.Context, sub storage.Submission, method string) error {
	if n.err != nil {
		return n.err
	}
	n.removed = append(n.removed, sub.PostID+":"+method)
	return nil
}

func (n *fakeNotifier) AccountDeleted(_ context.Context, sub storage.Submission) error {
	if n.err != nil {
		return n.err
	}
	n.accounts = append(n.accounts, sub.PostID)
	return nil
}

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local)

type harness struct {
	repo     *fakeRepo
	notifier *fakeNotifier
	slept    []time.Duration
	tracker  *Tracker
}

func newHarness(policy Policy) *harness {
	h := &harness{repo: &fakeRepo{}, notifier: &fakeNotifier{}}
	h.tracker = New(h.repo, h.notifier, policy,
		WithClock(func() time.Time { return fixedNow }),
		WithSleep(func(_ context.Context, d time.Duration) error {
			h.slept = append(h.slept, d)
			return nil
		}),
	)
	return h
}

func trackedSub(postID string, created time.Time) storage.Submission {
	return storage.Submission{
		ID:        1,
		Username:  "steve",
		Title:     "Creeper help",
		Text:      "original body",
		PostID:    postID,
		CreatedAt: created,
		EditedAt:  created,
	}
}

func livePost(id string) fakePost {
	return fakePost{id: id, author: "steve", title: "Creeper help", body: "original body"}
}

func TestClassifyRemoval(t *testing.T) {
	tests := map[string]string{
		"":          "",
		"author":    MethodDeletedByOP,
		"moderator": MethodRemovedByMod,
		"deleted":   MethodDeletedByUser,
		"reddit":    MethodUnknown,
		"anti_evil": MethodUnknown,
	}
	for category, want := range tests {
		assert.Equal(t, want, ClassifyRemoval(category), "category %q", category)
	}
}

func TestPolicy_ExcludedIsCaseInsensitive(t *testing.T) {
	p := DefaultPolicy()
	assert.True(t, p.Excluded("Solved"))
	assert.True(t, p.Excluded("SOLVED"))
	assert.True(t, p.Excluded("abandoned"))
	assert.False(t, p.Excluded("Question"))
	assert.False(t, p.Excluded(""))
}

func TestPolicy_AgedOutUsesWholeDays(t *testing.T) {
	p := Policy{MaxAgeDays: 3}
	now := time.Date(2025, 6, 15, 0, 5, 0, 0, time.Local)

	assert.False(t, p.AgedOut(now.AddDate(0, 0, -3), now))
	// Late on the fourth day back still counts as four calendar days.
	assert.True(t, p.AgedOut(time.Date(2025, 6, 11, 23, 59, 0, 0, time.Local), now))
}

func TestIntake_SavesEligiblePost(t *testing.T) {
	h := newHarness(DefaultPolicy())
	tracked := map[string]struct{}{}

	ok, err := h.tracker.Intake(context.Background(), livePost("p1"), tracked)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, h.repo.saved, 1)
	got := h.repo.saved[0]
	assert.Equal(t, "p1", got.PostID)
	assert.Equal(t, "steve", got.Username)
	assert.Equal(t, fixedNow, got.CreatedAt)
	assert.Equal(t, fixedNow, got.EditedAt)
	assert.False(t, got.DeletionMethod.Valid)
	assert.False(t, got.LastEdit.Valid)
	assert.Contains(t, tracked, "p1")
}

func TestIntake_Skips(t *testing.T) {
	tests := []struct {
		name    string
		post    fakePost
		tracked map[string]struct{}
	}{
		{"author gone", fakePost{id: "p1", authorGone: true}, map[string]struct{}{}},
		{"already tracked", livePost("p1"), map[string]struct{}{"p1": {}}},
		{"excluded flair", fakePost{id: "p1", author: "steve", flair: "solved"}, map[string]struct{}{}},
		{"already removed", fakePost{id: "p1", author: "steve", category: "moderator"}, map[string]struct{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(DefaultPolicy())
			ok, err := h.tracker.Intake(context.Background(), tt.post, tt.tracked)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Empty(t, h.repo.saved)
		})
	}
}

func TestIntake_DedupWithinCycle(t *testing.T) {
	h := newHarness(DefaultPolicy())
	tracked := map[string]struct{}{}

	for range 2 {
		_, err := h.tracker.Intake(context.Background(), livePost("p1"), tracked)
		require.NoError(t, err)
	}
	assert.Len(t, h.repo.saved, 1)
}

func TestIntake_SaveError(t *testing.T) {
	h := newHarness(DefaultPolicy())
	h.repo.saveErr = errors.New("disk full")
	tracked := map[string]struct{}{}

	_, err := h.tracker.Intake(context.Background(), livePost("p1"), tracked)
	require.Error(t, err)
	assert.NotContains(t, tracked, "p1")
}

func TestReconcile_AgedOutIsSilent(t *testing.T) {
	policy := DefaultPolicy()
	h := newHarness(policy)
	sub := trackedSub("old", fixedNow.AddDate(0, 0, -(policy.MaxAgeDays + 1)))

	outcome, err := h.tracker.Reconcile(context.Background(), sub, livePost("old"))
	require.NoError(t, err)
	assert.Equal(t, Expired, outcome)
	assert.True(t, outcome.Resolved())
	assert.Empty(t, h.notifier.removed)
	assert.Empty(t, h.notifier.accounts)
}

func TestReconcile_ExcludedFlairIsSilent(t *testing.T) {
	h := newHarness(DefaultPolicy())
	post := livePost("p1")
	post.flair = "Solved"

	outcome, err := h.tracker.Reconcile(context.Background(), trackedSub("p1", fixedNow), post)
	require.NoError(t, err)
	assert.Equal(t, Expired, outcome)
	assert.Empty(t, h.notifier.removed)
}

func TestReconcile_AccountDeletedNotifiesOnce(t *testing.T) {
	h := newHarness(DefaultPolicy())
	sub := trackedSub("p1", fixedNow)
	sub.DeletionMethod = sql.NullString{String: MethodDeletedByOP, Valid: true}
	post := fakePost{id: "p1", authorGone: true, body: "[deleted]"}

	outcome, err := h.tracker.Reconcile(context.Background(), sub, post)
	require.NoError(t, err)
	assert.Equal(t, AccountGone, outcome)
	assert.Equal(t, []string{"p1"}, h.notifier.accounts)
	assert.Empty(t, h.notifier.removed)
}

func TestReconcile_AccountDeletedIgnoredMethod(t *testing.T) {
	h := newHarness(DefaultPolicy())
	post := fakePost{id: "p1", authorGone: true, category: "moderator", body: "original body"}

	outcome, err := h.tracker.Reconcile(context.Background(), trackedSub("p1", fixedNow), post)
	require.NoError(t, err)
	assert.Equal(t, AccountGone, outcome)
	assert.Empty(t, h.notifier.accounts)
}

func TestReconcile_RemovedNotifiesAndCoolsDown(t *testing.T) {
	h := newHarness(DefaultPolicy())
	post := livePost("p1")
	post.category = "author"
	sub := trackedSub("p1", fixedNow.Add(-time.Hour))

	outcome, err := h.tracker.Reconcile(context.Background(), sub, post)
	require.NoError(t, err)
	assert.Equal(t, Removed, outcome)

	require.Len(t, h.repo.edited, 1)
	edited := h.repo.edited[0]
	assert.Equal(t, MethodDeletedByOP, edited.DeletionMethod.String)
	assert.Equal(t, fixedNow, edited.EditedAt)
	assert.Equal(t, sub.ID, edited.ID)

	assert.Equal(t, []string{"p1:" + MethodDeletedByOP}, h.notifier.removed)
	assert.Equal(t, []time.Duration{5 * time.Second}, h.slept)
}

func TestReconcile_IgnoredRemovalStillRecorded(t *testing.T) {
	h := newHarness(DefaultPolicy())
	post := livePost("p1")
	post.category = "moderator"

	outcome, err := h.tracker.Reconcile(context.Background(), trackedSub("p1", fixedNow), post)
	require.NoError(t, err)
	assert.True(t, outcome.Resolved())

	require.Len(t, h.repo.edited, 1)
	assert.Equal(t, MethodRemovedByMod, h.repo.edited[0].DeletionMethod.String)
	assert.Empty(t, h.notifier.removed)
	assert.Empty(t, h.slept)
}

func TestReconcile_KnownMethodNotNotifiedAgain(t *testing.T) {
	h := newHarness(DefaultPolicy())
	sub := trackedSub("p1", fixedNow)
	sub.DeletionMethod = sql.NullString{String: MethodDeletedByOP, Valid: true}
	post := livePost("p1")
	post.category = "author"

	outcome, err := h.tracker.Reconcile(context.Background(), sub, post)
	require.NoError(t, err)
	assert.Equal(t, Kept, outcome)
	assert.Empty(t, h.notifier.removed)
	assert.Empty(t, h.repo.edited)
}

func TestReconcile_EditRecorded(t *testing.T) {
	h := newHarness(DefaultPolicy())
	post := livePost("p1")
	post.body = "updated body"

	outcome, err := h.tracker.Reconcile(context.Background(), trackedSub("p1", fixedNow.Add(-time.Hour)), post)
	require.NoError(t, err)
	assert.Equal(t, Kept, outcome)

	require.Len(t, h.repo.edited, 1)
	assert.Equal(t, "updated body", h.repo.edited[0].LastEdit.String)
	assert.Equal(t, fixedNow, h.repo.edited[0].EditedAt)
	assert.Equal(t, "original body", h.repo.edited[0].Text)
}

func TestReconcile_UnchangedEditNotRewritten(t *testing.T) {
	h := newHarness(DefaultPolicy())
	sub := trackedSub("p1", fixedNow)
	sub.LastEdit = sql.NullString{String: "updated body", Valid: true}
	post := livePost("p1")
	post.body = "updated body"

	_, err := h.tracker.Reconcile(context.Background(), sub, post)
	require.NoError(t, err)
	assert.Empty(t, h.repo.edited)
}

func TestReconcile_NotifierErrorPropagates(t *testing.T) {
	h := newHarness(DefaultPolicy())
	h.notifier.err = errors.New("transport down")
	post := livePost("p1")
	post.category = "deleted"

	_, err := h.tracker.Reconcile(context.Background(), trackedSub("p1", fixedNow), post)
	require.Error(t, err)
	// Nothing is recorded, so the next cycle notifies again.
	assert.Empty(t, h.repo.edited)
	assert.Empty(t, h.slept)
}

func TestRetire(t *testing.T) {
	h := newHarness(DefaultPolicy())
	require.NoError(t, h.tracker.Retire(context.Background(), []string{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, h.repo.deleted)
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), 0))
}

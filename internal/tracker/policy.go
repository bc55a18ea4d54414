package tracker

import (
	"time"

	"golang.org/x/text/cases"
)

// Deletion methods derived from the platform's removal category.
const (
	MethodDeletedByOP   = "Deleted by OP"
	MethodRemovedByMod  = "Removed by mod"
	MethodDeletedByUser = "Deleted by user"
	MethodUnknown       = "Unknown deletion method"
)

// ClassifyRemoval maps a removal category to a deletion method. An empty
// category means the post is not removed and yields "".
func ClassifyRemoval(category string) string {
	switch category {
	case "":
		return ""
	case "author":
		return MethodDeletedByOP
	case "moderator":
		return MethodRemovedByMod
	case "deleted":
		return MethodDeletedByUser
	default:
		return MethodUnknown
	}
}

// Policy holds the tunables of the tracker.
type Policy struct {
	// MaxAgeDays retires posts older than this many whole days.
	MaxAgeDays int
	// ExcludedFlairs are never tracked. Compared case-insensitively.
	ExcludedFlairs []string
	// IgnoreMethods are deletion methods that do not trigger notifications.
	IgnoreMethods []string
	// Cooldown is waited after each removal notification.
	Cooldown time.Duration
}

// DefaultPolicy mirrors the defaults of the configuration file.
func DefaultPolicy() Policy {
	return Policy{
		MaxAgeDays:     180,
		ExcludedFlairs: []string{"Solved", "Abandoned"},
		IgnoreMethods:  []string{MethodRemovedByMod},
		Cooldown:       5 * time.Second,
	}
}

var folder = cases.Fold()

// Excluded reports whether a flair label takes a post out of tracking.
func (p Policy) Excluded(flair string) bool {
	if flair == "" {
		return false
	}
	f := folder.String(flair)
	for _, ex := range p.ExcludedFlairs {
		if folder.String(ex) == f {
			return true
		}
	}
	return false
}

// Ignored reports whether method is on the ignore list. The empty method
// is never ignored.
func (p Policy) Ignored(method string) bool {
	if method == "" {
		return false
	}
	for _, m := range p.IgnoreMethods {
		if m == method {
			return true
		}
	}
	return false
}

// AgedOut reports whether more than MaxAgeDays calendar days separate
// created from now.
func (p Policy) AgedOut(created, now time.Time) bool {
	return daysBetween(created, now) > p.MaxAgeDays
}

func daysBetween(from, to time.Time) int {
	y1, m1, d1 := from.In(to.Location()).Date()
	y2, m2, d2 := to.Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

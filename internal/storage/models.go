package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/craftsleuth/sleuth/internal/rowstore"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = rowstore.ErrNotFound

// TimestampLayout is how record_created and record_edited are written.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// Submission is one tracked post.
type Submission struct {
	ID             int64
	Username       string
	Title          string
	Text           string
	PostID         string
	DeletionMethod sql.NullString // NULL until the post is seen removed
	LastEdit       sql.NullString // last observed body that differed from Text
	CreatedAt      time.Time
	EditedAt       time.Time
}

// CurrentBody is the most recent body text recorded for the post.
func (s Submission) CurrentBody() string {
	if s.LastEdit.Valid {
		return s.LastEdit.String
	}
	return s.Text
}

const submissionsTable = "deleted_posts"

var submissionSchema = rowstore.MustSchema(
	rowstore.Column{Name: "username", Type: rowstore.Text},
	rowstore.Column{Name: "title", Type: rowstore.Text},
	rowstore.Column{Name: "text", Type: rowstore.Text},
	rowstore.Column{Name: "post_id", Type: rowstore.Text},
	rowstore.Column{Name: "deletion_method", Type: rowstore.Text},
	rowstore.Column{Name: "post_last_edit", Type: rowstore.Text},
	rowstore.Column{Name: "record_created", Type: rowstore.Text},
	rowstore.Column{Name: "record_edited", Type: rowstore.Text},
)

func (s Submission) record() rowstore.Record {
	rec := rowstore.NewRecord(
		rowstore.F("username", s.Username),
		rowstore.F("title", s.Title),
		rowstore.F("text", s.Text),
		rowstore.F("post_id", s.PostID),
		rowstore.F("deletion_method", nullable(s.DeletionMethod)),
		rowstore.F("post_last_edit", nullable(s.LastEdit)),
		rowstore.F("record_created", FormatTimestamp(s.CreatedAt)),
		rowstore.F("record_edited", FormatTimestamp(s.EditedAt)),
	)
	if s.ID != 0 {
		rec.Set(rowstore.IdentityColumn, s.ID)
	}
	return rec
}

func submissionFromRecord(rec rowstore.Record) (Submission, error) {
	id, _ := rec.ID()
	sub := Submission{
		ID:             id,
		Username:       rec.Text("username"),
		Title:          rec.Text("title"),
		Text:           rec.Text("text"),
		PostID:         rec.Text("post_id"),
		DeletionMethod: nullString(rec, "deletion_method"),
		LastEdit:       nullString(rec, "post_last_edit"),
	}
	var err error
	if sub.CreatedAt, err = ParseTimestamp(rec.Text("record_created")); err != nil {
		return Submission{}, fmt.Errorf("parsing record_created for post %s: %w", sub.PostID, err)
	}
	if sub.EditedAt, err = ParseTimestamp(rec.Text("record_edited")); err != nil {
		return Submission{}, fmt.Errorf("parsing record_edited for post %s: %w", sub.PostID, err)
	}
	return sub, nil
}

func nullable(ns sql.NullString) any {
	if !ns.Valid {
		return nil
	}
	return ns.String
}

func nullString(rec rowstore.Record, col string) sql.NullString {
	v, _ := rec.Get(col)
	s, ok := v.(string)
	return sql.NullString{String: s, Valid: ok}
}

// FormatTimestamp renders t in local time with microseconds.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

// ParseTimestamp accepts TimestampLayout with or without the fraction, and
// RFC 3339.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02 15:04:05.999999", s, time.Local); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/craftsleuth/sleuth/internal/rowstore"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DBFileName is the backing file inside the data directory.
const DBFileName = ".deleted_posts.sqlite"

// Store wraps the submissions table and its SQLite file.
type Store struct {
	db    *rowstore.DB
	posts *rowstore.Table
}

// DBPath returns the database file for dataDir.
func DBPath(dataDir string) string {
	if dataDir == ":memory:" {
		return dataDir
	}
	return filepath.Join(dataDir, DBFileName)
}

// Open opens (or creates) the submissions database in dataDir, creates the
// table if needed and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(ctx context.Context, dataDir string) (*Store, error) {
	db, err := rowstore.Open(DBPath(dataDir))
	if err != nil {
		return nil, err
	}

	posts, err := rowstore.NewTable(db, submissionsTable, submissionSchema)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := posts.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, posts: posts}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Remove deletes the database file (and its WAL side files) in dataDir.
// It returns an error wrapping os.ErrNotExist when there is no database.
func Remove(dataDir string) error {
	path := DBPath(dataDir)
	if err := os.Remove(path); err != nil {
		return err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

// migrate applies embedded SQL migrations that haven't been run yet.
func (s *Store) migrate(ctx context.Context) error {
	db := s.db.SQL()
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *Store) AppliedMigrations(ctx context.Context) ([]int, error) {
	rows, err := s.db.SQL().QueryContext(ctx, "SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Submissions ---

// SaveSubmission inserts sub and sets its ID.
func (s *Store) SaveSubmission(ctx context.Context, sub *Submission) error {
	sub.ID = 0
	id, err := s.posts.Save(ctx, sub.record())
	if err != nil {
		return fmt.Errorf("saving post %s: %w", sub.PostID, err)
	}
	sub.ID = id
	return nil
}

// EditSubmission rewrites every column of the stored row with sub's ID.
func (s *Store) EditSubmission(ctx context.Context, sub Submission) error {
	if err := s.posts.Edit(ctx, sub.record()); err != nil {
		return fmt.Errorf("editing post %s: %w", sub.PostID, err)
	}
	return nil
}

// DeleteSubmission removes every row tracking postID.
func (s *Store) DeleteSubmission(ctx context.Context, postID string) error {
	if _, err := s.posts.Delete(ctx, rowstore.Eq("post_id", postID)); err != nil {
		return fmt.Errorf("deleting post %s: %w", postID, err)
	}
	return nil
}

// GetSubmission returns the tracked row for postID, or ErrNotFound.
func (s *Store) GetSubmission(ctx context.Context, postID string) (Submission, error) {
	rec, err := s.posts.Get(ctx, rowstore.Eq("post_id", postID))
	if err != nil {
		return Submission{}, err
	}
	return submissionFromRecord(rec)
}

// ListSubmissions returns every tracked post in insertion order.
func (s *Store) ListSubmissions(ctx context.Context) ([]Submission, error) {
	return collect(s.posts.FetchAll(ctx))
}

// SubmissionsByAuthor returns the tracked posts of one user.
func (s *Store) SubmissionsByAuthor(ctx context.Context, username string) ([]Submission, error) {
	return collect(s.posts.Filter(ctx, rowstore.Eq("username", username)))
}

// TrackedPostIDs returns the set of post ids currently tracked.
func (s *Store) TrackedPostIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	for rec, err := range s.posts.FetchAll(ctx) {
		if err != nil {
			return nil, err
		}
		ids[rec.Text("post_id")] = struct{}{}
	}
	return ids, nil
}

// collect drains rows fully before returning so callers can write to the
// store while working through the result.
func collect(rows rowstore.Rows) ([]Submission, error) {
	recs, err := rowstore.Collect(rows)
	if err != nil {
		return nil, err
	}
	subs := make([]Submission, 0, len(recs))
	for _, rec := range recs {
		sub, err := submissionFromRecord(rec)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftsleuth/sleuth/internal/config"
	"github.com/craftsleuth/sleuth/internal/storage"
)

// execute runs the root command with args and returns what it wrote to its
// output stream.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--no-color"}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

// writeConfig writes a config whose data dir is inside the test's temp dir.
func writeConfig(t *testing.T) (path, dataDir string) {
	t.Helper()
	dir := t.TempDir()
	path = filepath.Join(dir, "config.json")
	dataDir = filepath.Join(dir, "data")
	content := fmt.Sprintf(`{"reddit.sub_name": "MinecraftHelp", "storage.data_dir": %q}`, dataDir)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path, dataDir
}

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	assert.Equal(t, "text", colorize(colorRed, "text"))

	noColor = false
	assert.Contains(t, colorize(colorRed, "text"), "\033[")
}

func TestPrintWritesToMessages(t *testing.T) {
	oldColor, oldOut := noColor, messages
	defer func() { noColor, messages = oldColor, oldOut }()

	var buf bytes.Buffer
	noColor, messages = true, &buf

	printWarning("No database at %s", "/tmp/x.db")
	printSuccess("done")
	assert.Equal(t, "⚠ No database at /tmp/x.db\n✓ done\n", buf.String())
}

func TestFirstRunWritesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sleuth", "config.json")

	_, err := execute(t, "--config", path, "run")
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr, "template should be written on first run")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 180, cfg.Tracker.MaxDays)
}

func TestRunRejectsIncompleteConfig(t *testing.T) {
	path, _ := writeConfig(t)

	_, err := execute(t, "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reddit.client_id")
}

func TestResetConfigAlias(t *testing.T) {
	path, _ := writeConfig(t)

	_, err := execute(t, "--config", path, "reset_config")
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Reddit.SubName, "reset should discard previous values")
}

func TestConfigSetAndShow(t *testing.T) {
	path, _ := writeConfig(t)

	_, err := execute(t, "--config", path, "config", "set", "tracker.max_days", "30")
	require.NoError(t, err)

	out, err := execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "tracker.max_days = 30")
	assert.Contains(t, out, "reddit.sub_name = MinecraftHelp")
	assert.Contains(t, out, "reddit.password = (unset)")
}

func TestConfigSetSecretRejected(t *testing.T) {
	path, _ := writeConfig(t)

	_, err := execute(t, "--config", path, "config", "set", "reddit.password", "pw")
	require.Error(t, err)
}

func TestResetDB(t *testing.T) {
	path, dataDir := writeConfig(t)

	store, err := storage.Open(context.Background(), dataDir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = execute(t, "--config", path, "reset_db")
	require.NoError(t, err)

	_, err = os.Stat(storage.DBPath(dataDir))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// A second reset has nothing to remove and is not an error.
	_, err = execute(t, "--config", path, "reset-db")
	require.NoError(t, err)
}

func TestTracked(t *testing.T) {
	path, dataDir := writeConfig(t)
	ctx := context.Background()

	store, err := storage.Open(ctx, dataDir)
	require.NoError(t, err)
	for _, s := range []storage.Submission{
		{Username: "steve", Title: "Creeper help", Text: "x", PostID: "abc"},
		{Username: "alex", Title: "Redstone door", Text: "y", PostID: "def"},
	} {
		s.CreatedAt = time.Now().Add(-2 * time.Hour)
		s.EditedAt = s.CreatedAt
		require.NoError(t, store.SaveSubmission(ctx, &s))
	}
	require.NoError(t, store.Close())

	out, err := execute(t, "--config", path, "tracked", "--author", "")
	require.NoError(t, err)
	assert.Contains(t, out, "abc")
	assert.Contains(t, out, "def")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "2 tracked")

	out, err = execute(t, "--config", path, "tracked", "--author", "alex")
	require.NoError(t, err)
	assert.Contains(t, out, "def")
	assert.NotContains(t, out, "abc")
	assert.Contains(t, out, "1 tracked")
}

func TestGuardRecoversPanic(t *testing.T) {
	err := guard(func() error { panic("nil map write") })

	var pe *panicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "panic: nil map write", err.Error())
	assert.Contains(t, traceOf(err), "goroutine")
}

func TestGuardPassesErrors(t *testing.T) {
	want := errors.New("boom")
	assert.Equal(t, want, guard(func() error { return want }))
}

type fakeReporter struct {
	bot, contact, trace string
	cause               error
	err                 error
}

func (f *fakeReporter) ReportError(_ context.Context, bot, contact string, cause error, trace string) error {
	f.bot, f.contact, f.cause, f.trace = bot, contact, cause, trace
	return f.err
}

func TestReportFailure(t *testing.T) {
	root := errors.New("database is locked")
	cause := fmt.Errorf("listing submissions: %w", root)

	r := &fakeReporter{}
	reportFailure(r, cause)

	assert.Equal(t, botName, r.bot)
	assert.Equal(t, authorContact, r.contact)
	assert.Equal(t, cause, r.cause)
	assert.True(t, strings.Contains(r.trace, "caused by: database is locked"), "trace: %q", r.trace)
}

func TestReportFailureSwallowsTransportError(t *testing.T) {
	r := &fakeReporter{err: errors.New("offline")}
	assert.NotPanics(t, func() { reportFailure(r, errors.New("boom")) })
}

func TestPolicyFrom(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)

	p := policyFrom(cfg.Tracker)
	assert.Equal(t, 180, p.MaxAgeDays)
	assert.Equal(t, 5*time.Second, p.Cooldown)
	assert.True(t, p.Ignored("Removed by mod"))
	assert.True(t, p.Excluded("solved"))
}

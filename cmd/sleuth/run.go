package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/craftsleuth/sleuth/internal/config"
	"github.com/craftsleuth/sleuth/internal/notify"
	"github.com/craftsleuth/sleuth/internal/poller"
	"github.com/craftsleuth/sleuth/internal/reddit"
	"github.com/craftsleuth/sleuth/internal/status"
	"github.com/craftsleuth/sleuth/internal/storage"
	"github.com/craftsleuth/sleuth/internal/tracker"
)

const (
	botName       = "CraftSleuthBot"
	authorContact = "https://www.reddit.com/user/kaerfkeerg"
	reportTimeout = 30 * time.Second
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot in the foreground (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return startBot(cmd)
	},
}

func startBot(cmd *cobra.Command) error {
	created, err := config.EnsureFile(configPath)
	if err != nil {
		return err
	}
	if created {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		printWarning("Config template written to %s", path)
		printStep("Fill in the reddit.* settings and start sleuth again")
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})))
	fmt.Fprintf(os.Stderr, "sleuth version %s\n", version)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runBot(ctx, cfg)
}

// runBot wires the bot together and runs it until ctx is cancelled or a
// cycle fails. A failure is reported to the subreddit's modmail before it is
// returned.
func runBot(ctx context.Context, cfg config.Config) error {
	store, err := storage.Open(ctx, cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	client := reddit.NewClient(reddit.Credentials{
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		UserAgent:    cfg.Reddit.UserAgent,
		Username:     cfg.Reddit.Username,
		Password:     cfg.Reddit.Password,
	})
	modmail := notify.NewModmail(client, cfg.Reddit.SubName)

	tr := tracker.New(store, modmail, policyFrom(cfg.Tracker))
	loop := poller.New(poller.Config{
		Community:        cfg.Reddit.SubName,
		MaxPosts:         cfg.Tracker.MaxPosts,
		Interval:         cfg.Tracker.Interval(),
		RateLimitBackoff: cfg.Tracker.RateLimitBackoff(),
	}, poller.NewRedditPlatform(client), store, tr)

	slog.Info("watching subreddit",
		"sub", cfg.Reddit.SubName,
		"db", store.Path(),
		"interval", cfg.Tracker.Interval(),
	)

	err = serve(ctx, cfg.Status.Port, loop, store)
	if err == nil || errors.Is(err, context.Canceled) {
		slog.Info("shutting down")
		return nil
	}

	slog.Error("bot stopped", "error", err)
	reportFailure(modmail, err)
	return err
}

// serve runs the poller and, when port is non-zero, the status server.
func serve(ctx context.Context, port int, loop *poller.Loop, store status.Store) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return guard(func() error { return loop.Run(gctx) })
	})

	if port > 0 {
		addr := fmt.Sprintf("127.0.0.1:%d", port)
		srv := &http.Server{
			Addr:    addr,
			Handler: status.NewHandler(status.Deps{Store: store, Cycles: loop}),
			BaseContext: func(_ net.Listener) context.Context {
				return gctx
			},
		}
		g.Go(func() error {
			slog.Info("status server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func policyFrom(t config.TrackerConfig) tracker.Policy {
	return tracker.Policy{
		MaxAgeDays:     t.MaxDays,
		ExcludedFlairs: t.ExcludedFlairs,
		IgnoreMethods:  t.IgnoreMethods,
		Cooldown:       t.Cooldown(),
	}
}

// panicError carries a recovered panic and the stack where it happened.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// guard converts a panic in fn into a *panicError.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return fn()
}

// errorReporter is the part of *notify.Modmail used for crash reports.
type errorReporter interface {
	ReportError(ctx context.Context, bot, contact string, cause error, trace string) error
}

// reportFailure sends one best-effort crash report. Its own failure is only
// logged.
func reportFailure(r errorReporter, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	if err := r.ReportError(ctx, botName, authorContact, cause, traceOf(cause)); err != nil {
		slog.Error("could not send error report", "error", err)
	}
}

// traceOf returns the panic stack when cause came from a panic, otherwise
// the chain of wrapped errors, one per line.
func traceOf(cause error) string {
	var pe *panicError
	if errors.As(cause, &pe) {
		return string(pe.stack)
	}
	var trace string
	for e := errors.Unwrap(cause); e != nil; e = errors.Unwrap(e) {
		trace += fmt.Sprintf("caused by: %v\n", e)
	}
	return trace
}

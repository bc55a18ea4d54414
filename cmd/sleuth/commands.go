package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/craftsleuth/sleuth/internal/config"
	"github.com/craftsleuth/sleuth/internal/storage"
)

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n", cfg.Path)
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Lists are comma-separated.",
	Args:  cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return config.ValidKeys(), cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(configPath, key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// --- reset ---

var resetConfigCmd = &cobra.Command{
	Use:     "reset-config",
	Aliases: []string{"reset_config"},
	Short:   "Overwrite the config file with the default template",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.Reset(path); err != nil {
			return err
		}
		printSuccess("Config reset: %s", path)
		return nil
	},
}

var resetDBCmd = &cobra.Command{
	Use:     "reset-db",
	Aliases: []string{"reset_db"},
	Short:   "Delete the tracked-posts database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		err = storage.Remove(cfg.Storage.DataDir)
		if errors.Is(err, os.ErrNotExist) {
			printWarning("No database at %s", storage.DBPath(cfg.Storage.DataDir))
			return nil
		}
		if err != nil {
			return err
		}
		printSuccess("Database removed: %s", storage.DBPath(cfg.Storage.DataDir))
		return nil
	},
}

// --- tracked ---

var trackedCmd = &cobra.Command{
	Use:   "tracked",
	Short: "List the submissions currently being tracked",
	RunE: func(cmd *cobra.Command, args []string) error {
		author, _ := cmd.Flags().GetString("author")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		store, err := storage.Open(cmd.Context(), cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		var subs []storage.Submission
		if author != "" {
			subs, err = store.SubmissionsByAuthor(cmd.Context(), author)
		} else {
			subs, err = store.ListSubmissions(cmd.Context())
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(subs) == 0 {
			fmt.Fprintln(out, "No tracked submissions.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "POST\tAUTHOR\tCREATED\tSTATE\tTITLE")
		for _, s := range subs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				colorize(colorCyan, s.PostID),
				s.Username,
				humanize.Time(s.CreatedAt),
				submissionState(s),
				truncate(s.Title, 60),
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s tracked\n", humanize.Comma(int64(len(subs))))
		return nil
	},
}

func init() {
	trackedCmd.Flags().String("author", "", "only show submissions by this user")
}

func submissionState(s storage.Submission) string {
	switch {
	case s.DeletionMethod.Valid:
		return s.DeletionMethod.String
	case s.LastEdit.Valid:
		return "edited"
	default:
		return "live"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Package commands implements billctl, a reporting CLI that reads the
// tracker database directly.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"utility-tracker/internal/cache"
	"utility-tracker/internal/insights"
	"utility-tracker/internal/models"
	"utility-tracker/internal/storage"
)

const defaultDBPath = "utilities.db"

type globalOptions struct {
	dbPath   string
	username string
	date     string
	asJSON   bool
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "billctl",
		Short: "Inspect utility bills, notifications and spending",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	dbDefault := defaultDBPath
	if path := os.Getenv("DB_PATH"); path != "" {
		dbDefault = path
	}
	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", dbDefault, "path to database file")
	rootCmd.PersistentFlags().StringVarP(&opts.username, "user", "u", "", "username whose data to report")
	rootCmd.PersistentFlags().StringVar(&opts.date, "date", "", "evaluate as of this day (YYYY-MM-DD, local time)")
	rootCmd.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")

	rootCmd.AddCommand(newNotificationsCommand(opts))
	rootCmd.AddCommand(newSummaryCommand(opts))
	rootCmd.AddCommand(newBreakdownCommand(opts))
	rootCmd.AddCommand(newRemindersCommand(opts))

	return rootCmd
}

// now returns the evaluation time: the --date day in local time, or the
// current time.
func (o *globalOptions) now() (time.Time, error) {
	if o.date == "" {
		return time.Now(), nil
	}
	t, err := time.ParseInLocation(models.DateLayout, o.date, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", o.date)
	}
	return t, nil
}

func (o *globalOptions) openDB() (*storage.DB, error) {
	if _, err := os.Stat(o.dbPath); err != nil {
		return nil, fmt.Errorf("opening database %s: %w", o.dbPath, err)
	}
	db, err := storage.NewDB(o.dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", o.dbPath, err)
	}
	return db, nil
}

// loadView opens the database and builds the derived view for --user.
func (o *globalOptions) loadView(ctx context.Context) (*insights.View, error) {
	if o.username == "" {
		return nil, errors.New("--user is required")
	}
	now, err := o.now()
	if err != nil {
		return nil, err
	}

	db, err := o.openDB()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	user, err := db.GetUserByUsername(ctx, o.username)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("unknown user %q", o.username)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	views := insights.NewService(db, cache.NewLRUCache[*insights.View](1, time.Minute), nil)
	return views.Overview(ctx, user.ID, now)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

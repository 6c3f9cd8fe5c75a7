package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/officecal/internal/archive"
	"github.com/officecal/internal/config"
	"github.com/officecal/internal/logger"
	"github.com/officecal/internal/storage"
	"github.com/officecal/internal/strava"
	"github.com/officecal/internal/tracker"
	"github.com/officecal/internal/visualization"
)

var (
	cfg            *config.Config
	store          storage.Store
	trackerService *tracker.Tracker
	archiver       *archive.Archiver
	visualizer     = visualization.New()
)

var rootCmd = &cobra.Command{
	Use:   "officecal",
	Short: "Office attendance and fitness calendar",
	Long: `officecal records whether each day was worked from home or the office,
shows the month with weekly office counts, the average and BELT (best 8 of the
last 12 weeks) metrics, and overlays Strava activities against weekly goals.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logger.SetVerbose(verbose)

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		loc, err := cfg.GetLocation()
		if err != nil {
			return err
		}

		store, err = openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		trackerService = tracker.New(tracker.Options{
			Store:        store,
			Source:       strava.NewClient(cfg.StravaBaseURL, cfg.StravaTimeout),
			Prefs:        config.NewPreferences(cfg, config.Path()),
			Notifier:     logger.Notifier{},
			Location:     loc,
			MinimumWeeks: cfg.MinimumWeeks,
		})
		archiver = archive.New(cfg.HistoryPath)

		if _, err := trackerService.Load(cmd.Context()); err != nil && !errors.Is(err, tracker.ErrNoUser) {
			return err
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store != nil {
			return store.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show debug output")

	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(monthCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(goalsCmd)
	rootCmd.AddCommand(stravaCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

// reportError prints err as a single notice line.
func reportError(err error) {
	var cfgErr *config.ValidationError
	switch {
	case errors.As(err, &cfgErr):
		logger.Error("Setup required: %v (config file: %s)", err, config.Path())
	case errors.Is(err, tracker.ErrReconnectRequired):
		// The tracker already warned.
	default:
		logger.Error("%v", err)
	}
}

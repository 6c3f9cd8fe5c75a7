package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/officecal/internal/config"
	"github.com/officecal/internal/location"
	"github.com/officecal/internal/logger"
	"github.com/officecal/internal/stats"
	"github.com/officecal/internal/tracker"
	"github.com/officecal/internal/work"
)

var userCmd = &cobra.Command{
	Use:   "user [name]",
	Short: "Show or switch the active user",
	Long:  `Without an argument prints the active user. With a name, switches to it; the choice is saved in the config file.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			user := trackerService.User()
			if user == "" {
				return tracker.ErrNoUser
			}
			fmt.Println(user)
			return nil
		}
		name := strings.TrimSpace(args[0])
		if err := trackerService.SetUser(name); err != nil {
			return err
		}
		if _, err := trackerService.Load(cmd.Context()); err != nil {
			return err
		}
		logger.Success("Active user is now %s", name)
		return nil
	},
}

var monthCmd = &cobra.Command{
	Use:     "month [YYYY-MM|next|prev]",
	Aliases: []string{"m", "cal"},
	Short:   "Show a month",
	Long:    `Print the month grid with locations, weekly badges, activities and the average/BELT metrics.`,
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			year, month, err := trackerService.ParseMonth(args[0])
			if err != nil {
				return err
			}
			trackerService.GoToMonth(year, month)
		}
		backgroundSync(cmd)
		visualizer.RenderMonth(os.Stdout, trackerService.View())
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <YYYY-MM-DD|today|yesterday> <home|office|none>",
	Short: "Record where a day was worked",
	Long:  `Set a day's location. "none" clears it; weekends without a value count as home.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := trackerService.ParseDay(args[0])
		if err != nil {
			return err
		}
		loc, err := location.Parse(args[1])
		if err != nil {
			return &work.ValidationError{Field: "location", Message: err.Error()}
		}

		year, month, _ := trackerService.ParseMonth(key[:7])
		trackerService.GoToMonth(year, month)
		view, err := trackerService.SetLocation(cmd.Context(), key, loc)
		if err != nil {
			return err
		}

		if loc.IsSet() {
			logger.Success("%s: %s", key, loc)
		} else {
			logger.Success("%s cleared", key)
		}
		fmt.Printf("Average: %s | BELT: %s\n", view.Average, view.Belt)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show weekly office counts and metrics",
	Long: fmt.Sprintf(`Print office days for the last %d weeks, the average over every recorded
week and the BELT metric (best %d of the last %d weeks).`, work.WindowWeeks, work.BestWeeks, work.WindowWeeks),
	RunE: func(cmd *cobra.Command, args []string) error {
		if trackerService.User() == "" {
			return tracker.ErrNoUser
		}
		doc := trackerService.Document()
		summary := stats.Summarize(doc.Locations, trackerService.Today())

		weeks := summary.Weeks
		if len(weeks) > work.WindowWeeks {
			weeks = weeks[len(weeks)-work.WindowWeeks:]
		}
		goal := doc.GoalsOrDefault().Office
		fmt.Println("Week         Office")
		for _, w := range weeks {
			mark := ""
			if goal > 0 && w.OfficeDays >= goal {
				mark = " ✓"
			}
			fmt.Printf("%s   %d%s\n", w.AnchorKey, w.OfficeDays, mark)
		}
		fmt.Println()
		fmt.Printf("Average: %s over %d weeks\n", summary.Average, summary.AverageWeeks)
		fmt.Printf("BELT:    %s over %d weeks\n", summary.Belt, summary.BeltWeeks)
		return nil
	},
}

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Show or change weekly goals",
	Long: fmt.Sprintf(`Without flags prints the weekly goals. Flags change individual goals:
office 0-%d, running/weights/yoga 0-%d days. 0 disables a goal.`, work.MaxOfficeGoal, work.MaxActivityGoal),
	RunE: func(cmd *cobra.Command, args []string) error {
		if trackerService.User() == "" {
			return tracker.ErrNoUser
		}
		goals := trackerService.Document().GoalsOrDefault()
		changed := false
		for name, target := range map[string]*int{
			"office":  &goals.Office,
			"running": &goals.Running,
			"weights": &goals.Weights,
			"yoga":    &goals.Yoga,
		} {
			if cmd.Flags().Changed(name) {
				*target, _ = cmd.Flags().GetInt(name)
				changed = true
			}
		}

		if changed {
			view, err := trackerService.SetGoals(cmd.Context(), goals)
			if err != nil {
				return err
			}
			goals = view.Goals
			logger.Success("Goals saved")
		}
		fmt.Printf("Office: %d | Running: %d | Weights: %d | Yoga: %d\n",
			goals.Office, goals.Running, goals.Weights, goals.Yoga)
		return nil
	},
}

var stravaCmd = &cobra.Command{
	Use:   "strava",
	Short: "Manage the Strava connection",
}

var stravaConnectCmd = &cobra.Command{
	Use:   "connect <access-token>",
	Short: "Store a Strava access token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		refresh, _ := cmd.Flags().GetString("refresh-token")
		if _, err := trackerService.ConnectStrava(cmd.Context(), args[0], refresh); err != nil {
			return err
		}
		logger.Success("Strava connected")
		backgroundSync(cmd)
		return nil
	},
}

var stravaDisconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Forget the Strava tokens (cached activities stay)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := trackerService.DisconnectStrava(cmd.Context()); err != nil {
			return err
		}
		logger.Success("Strava disconnected")
		return nil
	},
}

var stravaSyncCmd = &cobra.Command{
	Use:   "sync [YYYY-MM]",
	Short: "Fetch activities for a month's grid",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			year, month, err := trackerService.ParseMonth(args[0])
			if err != nil {
				return err
			}
			trackerService.GoToMonth(year, month)
		}
		view, err := trackerService.SyncActivities(cmd.Context(), false)
		if err != nil {
			return err
		}
		logger.Success("Synced %s: %d cached activities", view.Title(), view.Activities)
		return nil
	},
}

var filterCmd = &cobra.Command{
	Use:   "filter <work|health>",
	Short: "Show the month with a badge group hidden",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var view tracker.View
		switch strings.ToLower(args[0]) {
		case "work":
			view = trackerService.ToggleWork()
		case "health":
			view = trackerService.ToggleHealth()
		default:
			return &work.ValidationError{Field: "filter", Message: "use work or health"}
		}
		visualizer.RenderMonth(os.Stdout, view)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"st"},
	Short:   "Show user, storage and Strava status",
	RunE: func(cmd *cobra.Command, args []string) error {
		view := trackerService.View()
		user := view.User
		if user == "" {
			user = "(none, run `officecal user <name>`)"
		}
		fmt.Printf("User:    %s\n", user)
		fmt.Printf("Storage: %s\n", cfg.StorageBackend)
		fmt.Printf("Config:  %s\n", config.Path())

		switch {
		case view.Connected && view.SyncedAt == nil:
			fmt.Println("Strava:  connected, never synced")
		case view.Connected:
			fmt.Printf("Strava:  connected, synced %s\n", humanize.Time(*view.SyncedAt))
		default:
			fmt.Println("Strava:  not connected")
		}
		fmt.Printf("Cached:  %s activities\n", humanize.Comma(int64(view.Activities)))
		fmt.Printf("Average: %s | BELT: %s\n", view.Average, view.Belt)
		if view.Outlook != nil {
			fmt.Printf("Week:    %s\n", view.Outlook)
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Redraw the month whenever the data changes",
	Long:  `Keep the month on screen and redraw it on every change, including edits made from other devices. Ctrl+C exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		draw := func(v tracker.View) {
			fmt.Print("\033[H\033[2J")
			visualizer.RenderMonth(os.Stdout, v)
		}
		backgroundSync(cmd)
		draw(trackerService.View())
		return trackerService.Watch(ctx, draw)
	},
}

// backgroundSync refreshes activities for the displayed month. Failures are
// reported and never stop the command.
func backgroundSync(cmd *cobra.Command) {
	if trackerService.User() == "" {
		return
	}
	_, err := trackerService.SyncActivities(cmd.Context(), true)
	switch {
	case err == nil, errors.Is(err, tracker.ErrReconnectRequired):
	default:
		logger.Warning("Activity sync failed: %v", err)
	}
}

func init() {
	goalsCmd.Flags().Int("office", 0, "Office days per week")
	goalsCmd.Flags().Int("running", 0, "Running days per week")
	goalsCmd.Flags().Int("weights", 0, "Weight training days per week")
	goalsCmd.Flags().Int("yoga", 0, "Yoga days per week")

	stravaConnectCmd.Flags().String("refresh-token", "", "Strava refresh token")
	stravaCmd.AddCommand(stravaConnectCmd)
	stravaCmd.AddCommand(stravaDisconnectCmd)
	stravaCmd.AddCommand(stravaSyncCmd)
}

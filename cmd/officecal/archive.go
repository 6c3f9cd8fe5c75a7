package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/officecal/internal/logger"
	"github.com/officecal/internal/tracker"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Snapshot months to markdown",
	Long:  `Write month summaries to markdown files under HistoryPath (default ~/.officecal/history/).`,
}

var archiveMonthCmd = &cobra.Command{
	Use:   "month <YYYY-MM>",
	Short: "Archive a specific month",
	Long:  `Archive a specific month to markdown. Use format YYYY-MM (e.g., 2025-01).`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := time.Parse("2006-01", args[0])
		if err != nil {
			return fmt.Errorf("invalid format, use YYYY-MM (e.g., 2025-01)")
		}
		if trackerService.User() == "" {
			return tracker.ErrNoUser
		}

		trackerService.GoToMonth(t.Year(), t.Month())
		backgroundSync(cmd)
		view := trackerService.View()
		path, err := archiver.ArchiveMonth(view)
		if err != nil {
			return err
		}
		logger.Success("Archived %s to %s", view.Title(), path)
		return nil
	},
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived months",
	RunE: func(cmd *cobra.Command, args []string) error {
		archives, err := archiver.ListArchives()
		if err != nil {
			return err
		}
		if len(archives) == 0 {
			fmt.Println("No archives found")
			return nil
		}
		fmt.Printf("Archived months in %s:\n", cfg.HistoryPath)
		for _, a := range archives {
			fmt.Printf("  - %s\n", strings.TrimSuffix(a, ".md"))
		}
		return nil
	},
}

var archiveShowCmd = &cobra.Command{
	Use:   "show <YYYY-MM>",
	Short: "Print an archived month",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := time.Parse("2006-01", args[0])
		if err != nil {
			return fmt.Errorf("invalid format, use YYYY-MM (e.g., 2025-01)")
		}
		content, err := archiver.ReadArchive(t.Year(), t.Month())
		if err != nil {
			return err
		}
		fmt.Print(content)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the displayed month",
}

var exportHTMLCmd = &cobra.Command{
	Use:   "html [YYYY-MM]",
	Short: "Write the month as a standalone HTML page",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := exportView(args)
		if err != nil {
			return err
		}
		return writeExport(cmd, visualizer.GenerateMonthHTML(view), "html", view)
	},
}

var exportSVGCmd = &cobra.Command{
	Use:   "svg [YYYY-MM]",
	Short: "Write office days per week as an SVG chart",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := exportView(args)
		if err != nil {
			return err
		}
		return writeExport(cmd, visualizer.GenerateWeekSVG(view), "svg", view)
	},
}

func exportView(args []string) (tracker.View, error) {
	if len(args) == 0 {
		return trackerService.View(), nil
	}
	year, month, err := trackerService.ParseMonth(args[0])
	if err != nil {
		return tracker.View{}, err
	}
	return trackerService.GoToMonth(year, month), nil
}

// writeExport writes content to --output, or to stdout when it is "-".
func writeExport(cmd *cobra.Command, content, ext string, view tracker.View) error {
	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		out = fmt.Sprintf("officecal-%d-%02d.%s", view.Year, view.Month, ext)
	}
	if out == "-" {
		fmt.Print(content)
		return nil
	}
	if err := os.WriteFile(out, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	logger.Success("Wrote %s", out)
	return nil
}

func init() {
	archiveCmd.AddCommand(archiveMonthCmd)
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveShowCmd)

	exportCmd.PersistentFlags().StringP("output", "o", "", "Output file, - for stdout")
	exportCmd.AddCommand(exportHTMLCmd)
	exportCmd.AddCommand(exportSVGCmd)
}

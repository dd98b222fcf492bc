package cmd

import (
	"fmt"
	"io"
	"time"

	"codedojo/internal/app"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored progress for every unit",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	report, err := app.Status(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	if report.Warning != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", report.Warning)
	}
	writeStatusTable(cmd.OutOrStdout(), report, time.Now())
	return nil
}

func writeStatusTable(w io.Writer, report app.StatusReport, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(report.Curriculum)
	t.AppendHeader(table.Row{"#", "Unit", "Title", "Passed", "Hints", "Last run", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "Title", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Hints", Align: text.AlignRight},
	})

	done := 0
	for _, u := range report.Units {
		lastRun := "never"
		if !u.LastRun.IsZero() {
			lastRun = humanize.RelTime(u.LastRun, now, "ago", "from now")
		}
		status := "todo"
		switch {
		case u.Complete:
			status = "done"
			done++
		case !u.DependenciesComplete:
			status = "locked"
		case u.Passed > 0:
			status = "in progress"
		}
		t.AppendRow(table.Row{
			u.Ordinal + 1,
			u.ID,
			u.Title,
			fmt.Sprintf("%d/%d", u.Passed, u.Total),
			u.HintsUsed,
			lastRun,
			status,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Complete", fmt.Sprintf("%d/%d", done, len(report.Units))})
	t.SetStyle(table.StyleLight)
	t.Render()
}

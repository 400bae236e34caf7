package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/domain/types"
	"github.com/secmon-lab/riskmatrix/pkg/service/riskapi"
	"github.com/secmon-lab/riskmatrix/pkg/service/worker"
	"github.com/secmon-lab/riskmatrix/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdReport() *cli.Command {
	var apiURL string
	var watch time.Duration
	var noColor bool
	var view viewFlags

	flags := []cli.Flag{
		apiURLFlag(&apiURL),
		&cli.DurationFlag{
			Name:        "watch",
			Aliases:     []string{"w"},
			Usage:       "Redraw the report at this interval until interrupted",
			Destination: &watch,
		},
		&cli.BoolFlag{
			Name:        "no-color",
			Usage:       "Disable colored output",
			Sources:     cli.EnvVars("NO_COLOR"),
			Destination: &noColor,
		},
	}
	flags = append(flags, view.Flags()...)

	return &cli.Command{
		Name:    "report",
		Aliases: []string{"r"},
		Usage:   "Show the risk matrix, statistics and register",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if noColor {
				color.NoColor = true
			}

			v, err := view.View()
			if err != nil {
				return err
			}

			client, err := riskapi.New(apiURL)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if watch <= 0 {
				refresher := worker.NewRegisterRefresher(client)
				snapshot, err := refresher.Refresh(ctx)
				if err != nil {
					return goerr.Wrap(err, "failed to fetch register")
				}
				renderReport(w, snapshot, v)
				return nil
			}

			return watchReport(ctx, w, client, v, watch)
		},
	}
}

// watchReport redraws the report each time the refresher publishes a new snapshot
func watchReport(ctx context.Context, w io.Writer, fetcher *riskapi.Client, view model.RegisterView, interval time.Duration) error {
	refresher := worker.NewRegisterRefresher(fetcher,
		worker.WithInterval(interval),
		worker.WithOnUpdate(func(s *worker.Snapshot) {
			fmt.Fprint(w, "\033[H\033[2J")
			renderReport(w, s, view)
			fmt.Fprintf(w, "\nUpdated %s, refreshing every %s (Ctrl+C to quit)\n",
				s.FetchedAt.Format(time.TimeOnly), interval)
		}),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := refresher.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	refresher.Stop()
	logging.From(ctx).Debug("report watch stopped")
	return nil
}

func levelColor(level types.RiskLevel) *color.Color {
	switch level {
	case types.RiskLevelCritical:
		return color.New(color.FgWhite, color.BgRed, color.Bold)
	case types.RiskLevelHigh:
		return color.New(color.FgRed, color.Bold)
	case types.RiskLevelMedium:
		return color.New(color.FgYellow)
	case types.RiskLevelLow:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgHiBlack)
	}
}

// renderReport prints the heatmap and statistics of the whole snapshot, then the register view
func renderReport(w io.Writer, s *worker.Snapshot, view model.RegisterView) {
	renderMatrix(w, s.Matrix)
	fmt.Fprintln(w)
	renderStats(w, model.CalculateStats(s.Risks))
	fmt.Fprintln(w)
	renderRegister(w, view.Apply(s.Risks))
}

func renderMatrix(w io.Writer, m *model.Matrix) {
	bold := color.New(color.Bold)
	bold.Fprintln(w, "Risk Matrix (likelihood x impact)")

	fmt.Fprint(w, "     ")
	for i := 1; i <= model.MatrixSize; i++ {
		fmt.Fprintf(w, " I%d  ", i)
	}
	fmt.Fprintln(w)

	for l := model.MatrixSize; l >= 1; l-- {
		fmt.Fprintf(w, " L%d  ", l)
		for i := 1; i <= model.MatrixSize; i++ {
			cell, _ := m.Cell(l, i)
			fmt.Fprint(w, levelColor(cell.Level()).Sprintf(" %2d ", cell.Count), " ")
		}
		fmt.Fprintln(w)
	}

	if len(m.Excluded) > 0 {
		ids := make([]string, 0, len(m.Excluded))
		for _, r := range m.Excluded {
			ids = append(ids, fmt.Sprintf("#%d", r.ID))
		}
		color.New(color.FgHiBlack).Fprintf(w, " %d risk(s) with invalid ratings not shown: %s\n",
			len(m.Excluded), strings.Join(ids, ", "))
	}
}

func renderStats(w io.Writer, stats model.RegisterStats) {
	fmt.Fprintf(w, "Total: %d  High+Critical: %s  Critical: %s  Average score: %.1f\n",
		stats.Total,
		levelColor(types.RiskLevelHigh).Sprint(stats.HighCritical),
		levelColor(types.RiskLevelCritical).Sprint(stats.Critical),
		stats.AverageScore,
	)
}

func renderRegister(w io.Writer, risks []*model.Risk) {
	if len(risks) == 0 {
		fmt.Fprintln(w, "No risks recorded.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tASSET\tTHREAT\tL\tI\tSCORE\tLEVEL")
	for _, r := range risks {
		// Level goes last so color escapes do not skew column widths.
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.Asset, r.Threat, r.Likelihood, r.Impact, r.Score,
			levelColor(r.Level).Sprint(r.Level))
	}
	_ = tw.Flush()
}

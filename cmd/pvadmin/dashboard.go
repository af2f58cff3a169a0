package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/display"
	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
)

func newDashboardCmd(e *env, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Сводка по заявкам",
		Args:  cobra.NoArgs,
		RunE: runWithBackend(e, func(cmd *cobra.Command, b *backend, _ []string) error {
			d, err := b.triage.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			rc := b.triage.RenderContext(opts.lang)

			rows := make([][]string, 0, len(model.AllStatuses)+3)
			for _, st := range model.AllStatuses {
				rows = append(rows, []string{st.Label(rc.Lang), strconv.Itoa(d.ByStatus[st])})
			}
			rows = append(rows,
				[]string{b.bundle.Translate(rc.Lang, "dashboard.total"), strconv.Itoa(d.Total)},
				[]string{b.bundle.Translate(rc.Lang, "dashboard.urgent"), strconv.Itoa(d.Urgent)},
				[]string{b.bundle.Translate(rc.Lang, "dashboard.last_week"), strconv.Itoa(d.LastWeek)},
			)
			renderTable(out, []string{"", ""}, rows)

			sections := []struct {
				key   string
				items []*model.Request
			}{
				{"dashboard.urgent_list", d.UrgentList},
				{"dashboard.overdue_list", d.OverdueList},
				{"dashboard.recent_list", d.RecentList},
				{"dashboard.cancelled_list", d.CancelledList},
			}
			for _, s := range sections {
				if err := renderSection(out, b, rc, b.bundle.Translate(rc.Lang, s.key), s.items); err != nil {
					return err
				}
			}
			generated := d.GeneratedAt
			if rc.Location != nil {
				generated = generated.In(rc.Location)
			}
			fmt.Fprintln(out, mutedStyle.Render(generated.Format(display.DateLayout)))
			return nil
		}),
	}
}

func renderSection(w io.Writer, b *backend, rc display.RenderContext, title string, items []*model.Request) error {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s (%d)", title, len(items))))
	if len(items) == 0 {
		return nil
	}
	return renderRequests(w, b.bundle, b.triage.Registry(), rc, items)
}

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
	"github.com/luigimeli-max/sito-parco-verismo/internal/service"
)

func newRichiesteCmd(e *env, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "richieste",
		Short: "Заявки посетителей",
	}
	cmd.AddCommand(
		newListCmd(e, opts),
		newShowCmd(e, opts),
		newSetStatusCmd(e, opts),
		newActionCmd(e, opts),
		newExportCmd(e, opts),
	)
	return cmd
}

// queryFlags — фильтры выборки, общие для list и export.
type queryFlags struct {
	status, priority, text, from, to string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.status, "stato", "", "статус (nuova, in_lavorazione, confermata, completata, cancellata)")
	cmd.Flags().StringVar(&f.priority, "priorita", "", "приоритет (bassa, media, alta)")
	cmd.Flags().StringVar(&f.text, "q", "", "поиск по имени, email, ente, oggetto")
	cmd.Flags().StringVar(&f.from, "dal", "", "создана не раньше (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "al", "", "создана не позже (YYYY-MM-DD)")
}

func (f *queryFlags) query() service.RequestQuery {
	return service.RequestQuery{
		Status:      f.status,
		Priority:    f.priority,
		Query:       f.text,
		CreatedFrom: f.from,
		CreatedTo:   f.to,
	}
}

func newListCmd(e *env, opts *rootOptions) *cobra.Command {
	var (
		qf            queryFlags
		limit, offset int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Список заявок (новые сверху)",
		Args:  cobra.NoArgs,
		RunE: runWithBackend(e, func(cmd *cobra.Command, b *backend, _ []string) error {
			res, err := b.triage.List(cmd.Context(), qf.query(), limit, offset)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			rc := b.triage.RenderContext(opts.lang)
			if err := renderRequests(out, b.bundle, b.triage.Registry(), rc, res.Items); err != nil {
				return err
			}
			fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%d-%d / %d",
				min(res.Offset+1, res.Total), res.Offset+len(res.Items), res.Total)))
			return nil
		}),
	}
	qf.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", service.DefaultPageSize, "размер страницы")
	cmd.Flags().IntVar(&offset, "offset", 0, "смещение")
	return cmd
}

func newShowCmd(e *env, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Карточка заявки",
		Args:  cobra.ExactArgs(1),
		RunE: runWithBackend(e, func(cmd *cobra.Command, b *backend, args []string) error {
			r, err := b.triage.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return renderRequest(cmd.OutOrStdout(), b.bundle, b.triage.Registry(), b.triage.RenderContext(opts.lang), r)
		}),
	}
}

func newSetStatusCmd(e *env, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status ID STATUS",
		Short: "Сменить статус заявки (с автоназначением на --actor)",
		Args:  cobra.ExactArgs(2),
		RunE: runWithBackend(e, func(cmd *cobra.Command, b *backend, args []string) error {
			status := model.Status(args[1])
			if !status.IsValid() {
				return fmt.Errorf("%w: недопустимый статус %q", service.ErrValidation, args[1])
			}
			r, err := b.triage.Update(cmd.Context(), args[0], service.RequestPatch{Status: &status}, opts.actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n",
				r.ID, r.Status.Label(opts.lang), model.StringOrEmpty(r.Assignee))
			return nil
		}),
	}
}

func newActionCmd(e *env, opts *rootOptions) *cobra.Command {
	actions := make([]string, len(service.AllBulkActions))
	for i, a := range service.AllBulkActions {
		actions[i] = string(a)
	}
	return &cobra.Command{
		Use:       "action ACTION ID...",
		Short:     "Массовое действие: " + strings.Join(actions, ", "),
		Args:      cobra.MinimumNArgs(2),
		ValidArgs: actions,
		RunE: runWithBackend(e, func(cmd *cobra.Command, b *backend, args []string) error {
			action := service.BulkAction(args[0])
			if !action.IsValid() {
				return fmt.Errorf("%w: неизвестное действие %q", service.ErrValidation, args[0])
			}
			res, err := b.triage.Bulk(cmd.Context(), action, args[1:], opts.actor, opts.lang)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		}),
	}
}

func newExportCmd(e *env, opts *rootOptions) *cobra.Command {
	var (
		qf      queryFlags
		ids     []string
		outPath string
		archive bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "CSV-экспорт выборки или отмеченных заявок",
		Args:  cobra.NoArgs,
		RunE: runWithBackend(e, func(cmd *cobra.Command, b *backend, _ []string) error {
			q := qf.query()
			if cmd.Flags().Changed("ids") {
				q = service.RequestQuery{IDs: append([]string{}, ids...)}
			}
			file, err := b.triage.Export(cmd.Context(), q, opts.lang)
			if err != nil {
				return err
			}

			// Сначала архив: при ошибке S3 локальный файл не создаётся
			if archive {
				key, err := b.archive.Store(cmd.Context(), file, e.now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Архив: %s\n", key)
			}

			switch outPath {
			case "-":
				_, err = cmd.OutOrStdout().Write(file.Content)
				return err
			case "":
				outPath = file.Name
			}
			if err := os.WriteFile(outPath, file.Content, 0o644); err != nil {
				return fmt.Errorf("запись %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d байт)\n", outPath, len(file.Content))
			return nil
		}),
	}
	qf.register(cmd)
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "ID отмеченных заявок (через запятую); фильтры игнорируются")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "файл результата; \"-\" — stdout; по умолчанию имя экспорта")
	cmd.Flags().BoolVar(&archive, "archive", false, "выгрузить копию в S3 (exports/YYYY/MM/)")
	return cmd
}

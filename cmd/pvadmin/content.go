package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luigimeli-max/sito-parco-verismo/internal/service"
)

func newContentCmd(e *env, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Каталог парка",
	}
	cmd.AddCommand(newImportCmd(e, opts))
	return cmd
}

func newImportCmd(e *env, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE.yaml",
		Short: "Импорт каталога из YAML (upsert по slug, одна транзакция)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Файл разбирается до подключения к БД
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			content, err := service.ParseContentFile(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			return runWithBackend(e, func(cmd *cobra.Command, b *backend, _ []string) error {
				stats, err := b.importer.Import(cmd.Context(), content)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				renderTable(out, []string{"autori", "opere", "eventi", "notizie", "documenti", "itinerari"}, [][]string{{
					fmt.Sprint(stats.Authors), fmt.Sprint(stats.Works), fmt.Sprint(stats.Events),
					fmt.Sprint(stats.News), fmt.Sprint(stats.Documents), fmt.Sprint(stats.Itineraries),
				}})
				fmt.Fprintln(out, b.bundle.Translatef(opts.lang, "content.imported", stats.Total(), b.cacheTTL))
				return nil
			})(cmd, args)
		},
	}
}

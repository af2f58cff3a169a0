// pvadmin — консольный инструмент персонала Parco Verismo: обработка
// заявок, сводка, CSV-экспорт с архивом в S3, импорт каталога, миграции.
// Конфигурация та же, что у сервера (переменные PV_*, опционально .env).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/luigimeli-max/sito-parco-verismo/internal/config"
	"github.com/luigimeli-max/sito-parco-verismo/internal/i18n"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Ошибка чтения .env", slog.String("error", err.Error()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(productionEnv(), os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// rootOptions — глобальные флаги.
type rootOptions struct {
	actor string
	lang  string
}

func newRootCmd(e *env, out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "pvadmin",
		Short:        "Обработка заявок и каталога Parco Verismo",
		Version:      config.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if !i18n.IsSupported(opts.lang) {
				return errors.New("--lang: допустимые значения it, en")
			}
			return nil
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&opts.actor, "actor", os.Getenv("USER"),
		"имя сотрудника для автоназначения заявок")
	root.PersistentFlags().StringVar(&opts.lang, "lang", i18n.DefaultLang,
		"язык меток и CSV (it, en)")

	root.AddCommand(
		newRichiesteCmd(e, opts),
		newDashboardCmd(e, opts),
		newContentCmd(e, opts),
		newMigrateCmd(e),
	)
	return root
}

// runWithBackend открывает backend на время одной команды.
func runWithBackend(e *env, fn func(cmd *cobra.Command, b *backend, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		b, err := e.open(cmd.Context())
		if err != nil {
			return err
		}
		if b.close != nil {
			defer b.close()
		}
		return fn(cmd, b, args)
	}
}

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции БД",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.migrate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Миграции применены")
			return nil
		},
	}
}

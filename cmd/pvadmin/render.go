package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/display"
	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
	"github.com/luigimeli-max/sito-parco-verismo/internal/i18n"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Faint(true)
)

// listColumns — колонки списка заявок, помещающиеся в терминал.
var listColumns = []string{"stato", "nome_completo", "oggetto", "priorita", "data_richiesta", "giorni_attesa"}

func renderTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.String())
}

// renderRequests печатает заявки таблицей: ID и колонки listColumns
// из реестра с заголовками на языке rc.Lang.
func renderRequests(w io.Writer, bundle *i18n.Bundle, reg *display.Registry, rc display.RenderContext, items []*model.Request) error {
	cols, err := reg.Columns(display.RequestList)
	if err != nil {
		return err
	}
	byKey := make(map[string]display.Column, len(cols))
	for _, c := range cols {
		byKey[c.Key] = c
	}

	headers := []string{"ID"}
	for _, key := range listColumns {
		headers = append(headers, bundle.Translate(rc.Lang, byKey[key].HeaderKey))
	}

	rows := make([][]string, 0, len(items))
	for _, r := range items {
		row := []string{r.ID}
		for _, key := range listColumns {
			row = append(row, byKey[key].Render(rc, r))
		}
		rows = append(rows, row)
	}
	renderTable(w, headers, rows)
	return nil
}

// renderRequest печатает одну заявку построчно «поле: значение».
func renderRequest(w io.Writer, bundle *i18n.Bundle, reg *display.Registry, rc display.RenderContext, r *model.Request) error {
	cols, err := reg.Columns(display.RequestCSV)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, titleStyle.Render(r.FullName()+" · "+r.ID))
	for _, c := range cols {
		fmt.Fprintf(w, "%-22s %s\n", bundle.Translate(rc.Lang, c.HeaderKey)+":", c.Render(rc, r))
	}
	fmt.Fprintf(w, "%-22s %s\n", bundle.Translate(rc.Lang, "column.guide")+":", model.StringOrEmpty(r.Guide))
	if notes := model.StringOrEmpty(r.AdminNotes); notes != "" {
		fmt.Fprintln(w, mutedStyle.Render(notes))
	}
	return nil
}

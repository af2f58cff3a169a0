// export.go — CSV-экспорт заявок для персонала.
package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/display"
	"github.com/luigimeli-max/sito-parco-verismo/internal/i18n"
)

// utf8BOM — маркер порядка байтов, чтобы Excel открывал файл в UTF-8.
const utf8BOM = "\ufeff"

// ExportFile — готовый CSV-файл.
type ExportFile struct {
	Name    string
	Content []byte
}

// Export формирует CSV по выборке q в порядке списка. Заголовки и метки
// статусов локализуются на lang. Для одной и той же выборки содержимое
// побайтно совпадает.
func (s *TriageService) Export(ctx context.Context, q RequestQuery, lang string) (*ExportFile, error) {
	f, err := s.filter(q)
	if err != nil {
		return nil, err
	}

	cols, err := s.registry.Columns(display.RequestCSV)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.List(ctx, f, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("выборка для экспорта: %w", err)
	}

	lang = i18n.Normalize(lang)
	rc := s.RenderContext(lang)

	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	w := csv.NewWriter(&buf)

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = s.bundle.Translate(lang, c.HeaderKey)
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("запись заголовка CSV: %w", err)
	}
	for _, r := range items {
		if err := w.Write(display.Row(cols, rc, r)); err != nil {
			return nil, fmt.Errorf("запись строки CSV: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("запись CSV: %w", err)
	}

	file := &ExportFile{
		Name:    fmt.Sprintf("richieste_%s.csv", rc.Now.In(s.loc).Format("20060102_1504")),
		Content: buf.Bytes(),
	}
	s.logger.Info("Экспорт заявок",
		slog.String("file", file.Name),
		slog.Int("rows", len(items)),
		slog.String("lang", lang),
	)
	return file, nil
}

// loader.go — загрузка каталогов переводов из embed.FS.
package i18n

import (
	"fmt"
	"log/slog"
)

// LoadFromEmbedFS загружает каталоги locales/<lang>.json для всех Languages.
func LoadFromEmbedFS(bundle *Bundle, logger *slog.Logger) error {
	for _, lang := range Languages {
		path := fmt.Sprintf("locales/%s.json", lang)
		data, err := LocaleFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("i18n: не удалось прочитать %s: %w", path, err)
		}

		if err := bundle.LoadMessages(lang, data); err != nil {
			return err
		}
	}

	logger.Info("i18n каталоги загружены", slog.Int("languages", len(Languages)))
	return nil
}

// MustLoad создаёт Bundle с встроенными каталогами. Для тестов и CLI.
func MustLoad(logger *slog.Logger) *Bundle {
	bundle := NewBundle(logger)
	if err := LoadFromEmbedFS(bundle, logger); err != nil {
		panic(err)
	}
	return bundle
}

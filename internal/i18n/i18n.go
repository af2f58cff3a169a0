// Пакет i18n — словари интерфейса Parco Verismo (it, en).
// Bundle хранит плоские JSON-каталоги, язык запроса кладёт в контекст
// Middleware: cookie "lang" → Accept-Language → "it".
package i18n

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/text/language"
)

// DefaultLang — язык сайта по умолчанию и язык fallback для переводов.
const DefaultLang = "it"

// Languages — коды поддерживаемых языков.
var Languages = []string{"it", "en"}

// matcher для Accept-Language. Первый тег — default.
var matcher = language.NewMatcher([]language.Tag{language.Italian, language.English})

type langKey struct{}

// Bundle — каталоги переводов по языкам.
type Bundle struct {
	mu       sync.RWMutex
	catalogs map[string]map[string]string
	logger   *slog.Logger
}

// NewBundle создаёт пустой Bundle.
func NewBundle(logger *slog.Logger) *Bundle {
	return &Bundle{
		catalogs: make(map[string]map[string]string, len(Languages)),
		logger:   logger,
	}
}

// LoadMessages разбирает каталог {"key": "testo"} и заменяет им каталог языка.
func (b *Bundle) LoadMessages(lang string, data []byte) error {
	catalog := make(map[string]string)
	if err := json.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("i18n: каталог %s: %w", lang, err)
	}

	b.mu.Lock()
	b.catalogs[lang] = catalog
	b.mu.Unlock()

	if b.logger != nil {
		b.logger.Debug("Каталог переводов загружен",
			slog.String("lang", lang),
			slog.Int("keys", len(catalog)),
		)
	}
	return nil
}

// Translate ищет ключ в каталоге lang, затем в "it". Не найден — сам ключ.
func (b *Bundle) Translate(lang, key string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, l := range []string{lang, DefaultLang} {
		if msg, ok := b.catalogs[l][key]; ok {
			return msg
		}
	}
	return key
}

// Translatef — Translate с подстановкой аргументов в шаблон каталога.
func (b *Bundle) Translatef(lang, key string, args ...any) string {
	msg := b.Translate(lang, key)
	if len(args) == 0 {
		return msg
	}
	return sprintf(msg, args...)
}

// Keys возвращает ключи каталога lang.
func (b *Bundle) Keys(lang string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.catalogs[lang]))
	for k := range b.catalogs[lang] {
		keys = append(keys, k)
	}
	return keys
}

// sprintf вынесен в переменную: шаблоны приходят из каталогов,
// printf-проверка go vet к ним неприменима.
var sprintf = fmt.Sprintf

// WithLang помещает язык в контекст.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, langKey{}, lang)
}

// LangFromContext извлекает язык из контекста. Default: "it".
func LangFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(langKey{}).(string); ok && lang != "" {
		return lang
	}
	return DefaultLang
}

// IsSupported сообщает, поддерживается ли язык.
func IsSupported(lang string) bool {
	return slices.Contains(Languages, lang)
}

// Normalize возвращает lang, если он поддерживается, иначе DefaultLang.
func Normalize(lang string) string {
	if IsSupported(lang) {
		return lang
	}
	return DefaultLang
}

// MatchLanguage выбирает "it" или "en" по заголовку Accept-Language.
func MatchLanguage(acceptLanguage string) string {
	tag, _ := language.MatchStrings(matcher, acceptLanguage)
	base, _ := tag.Base()
	return Normalize(base.String())
}

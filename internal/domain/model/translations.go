package model

import "sort"

// Translations — переводимые поля сущности: код языка → набор полей на этом языке.
type Translations[T any] map[string]T

// Get возвращает перевод для lang. Если его нет — первый найденный из
// fallbacks, затем любой доступный язык (в алфавитном порядке, чтобы
// результат был детерминированным). ok=false, если переводов нет вообще.
func (t Translations[T]) Get(lang string, fallbacks ...string) (T, bool) {
	if v, ok := t[lang]; ok {
		return v, true
	}
	for _, fb := range fallbacks {
		if v, ok := t[fb]; ok {
			return v, true
		}
	}

	if langs := t.Languages(); len(langs) > 0 {
		return t[langs[0]], true
	}

	var zero T
	return zero, false
}

// Languages — отсортированный список языков, для которых есть перевод.
func (t Translations[T]) Languages() []string {
	langs := make([]string, 0, len(t))
	for l := range t {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// middleware.go — HTTP middleware для определения языка посетителя.
package i18n

import (
	"net/http"
)

// LangCookieName — имя cookie с выбранным языком.
const LangCookieName = "lang"

// Middleware определяет язык и помещает его в контекст.
// Приоритет: cookie "lang" → Accept-Language → "it".
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLang(r.Context(), DetectLanguage(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DetectLanguage определяет язык из запроса.
func DetectLanguage(r *http.Request) string {
	if cookie, err := r.Cookie(LangCookieName); err == nil && IsSupported(cookie.Value) {
		return cookie.Value
	}

	if accept := r.Header.Get("Accept-Language"); accept != "" {
		return MatchLanguage(accept)
	}

	return DefaultLang
}

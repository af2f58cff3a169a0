// language.go — переключение языка сайта.
package handlers

import (
	"net/http"
	"time"

	"github.com/luigimeli-max/sito-parco-verismo/internal/i18n"
)

// langCookieMaxAge — срок жизни cookie языка (1 год).
const langCookieMaxAge = 365 * 24 * time.Hour

// SetLanguage — GET|POST /api/v1/lang?lang=it|en.
// Устанавливает cookie "lang" и перенаправляет обратно (Referer того же
// хоста или "/"). Неподдерживаемый язык cookie не меняет.
func (h *APIHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	l := r.FormValue("lang")

	if i18n.IsSupported(l) {
		http.SetCookie(w, &http.Cookie{
			Name:     i18n.LangCookieName,
			Value:    l,
			Path:     "/",
			MaxAge:   int(langCookieMaxAge.Seconds()),
			HttpOnly: false, // JS может читать для UI-логики
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Now().Add(langCookieMaxAge),
		})
	}

	http.Redirect(w, r, backTarget(r), http.StatusSeeOther)
}

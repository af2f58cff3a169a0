// intake.go — публичная форма «Richiesta di contatto».
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"

	apierrors "github.com/luigimeli-max/sito-parco-verismo/internal/api/errors"
	"github.com/luigimeli-max/sito-parco-verismo/internal/service"
)

const (
	// maxFormBytes — предел тела формы
	maxFormBytes = 64 << 10
	// contactAnchor — якорь блока формы на странице
	contactAnchor = "#richiesta-contatto"
)

// submissionRequest — поля формы. Используется и как эхо ввода при ошибке.
type submissionRequest struct {
	Nome      string `json:"nome"`
	Cognome   string `json:"cognome"`
	Email     string `json:"email"`
	Ente      string `json:"ente"`
	Oggetto   string `json:"oggetto"`
	Messaggio string `json:"messaggio"`
}

func (s submissionRequest) input() service.SubmissionInput {
	return service.SubmissionInput{
		FirstName:    s.Nome,
		LastName:     s.Cognome,
		Email:        s.Email,
		Organization: s.Ente,
		Subject:      s.Oggetto,
		Message:      s.Messaggio,
	}
}

type submissionResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// SubmitRequest — POST /api/v1/richieste.
// JSON: 201 {"id","message"}. Форма (x-www-form-urlencoded): 303 обратно
// на страницу с формой.
func (h *APIHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	l := lang(r)
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	isJSON := false
	if ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && ct == "application/json" {
		isJSON = true
	}

	var req submissionRequest
	if isJSON {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierrors.ValidationError(w, h.bundle.Translate(l, "error.invalid_body"))
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			apierrors.ValidationError(w, h.bundle.Translate(l, "error.invalid_body"))
			return
		}
		req = submissionRequest{
			Nome:      r.PostForm.Get("nome"),
			Cognome:   r.PostForm.Get("cognome"),
			Email:     r.PostForm.Get("email"),
			Ente:      r.PostForm.Get("ente"),
			Oggetto:   r.PostForm.Get("oggetto"),
			Messaggio: r.PostForm.Get("messaggio"),
		}
	}

	meta := service.SubmissionMeta{
		ClientIP:  clientIP(r),
		UserAgent: r.UserAgent(),
	}

	created, err := h.intake.Submit(r.Context(), req.input(), meta)
	if err != nil {
		if verr, ok := service.IsValidationError(err); ok {
			apierrors.FieldErrors(w,
				h.bundle.Translate(l, "intake.validation_failed"),
				h.translateFields(l, verr.Fields),
				req,
			)
			return
		}
		if errors.Is(err, service.ErrThrottled) {
			apierrors.RateLimited(w, h.bundle.Translate(l, "intake.throttled"))
			return
		}
		// Детали уже залогированы сервисом
		h.logger.Debug("Заявка не сохранена", slog.String("error", err.Error()))
		apierrors.InternalError(w, h.bundle.Translate(l, "intake.persistence_error"))
		return
	}

	if !isJSON {
		http.Redirect(w, r, backTarget(r)+contactAnchor, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, submissionResponse{
		ID:      created.ID,
		Message: h.bundle.Translate(l, "intake.success"),
	})
}

// translateFields заменяет ключи каталога локализованными сообщениями.
func (h *APIHandler) translateFields(l string, fields map[string][]string) map[string][]string {
	out := make(map[string][]string, len(fields))
	for field, keys := range fields {
		msgs := make([]string, len(keys))
		for i, key := range keys {
			msgs[i] = h.bundle.Translate(l, key)
		}
		out[field] = msgs
	}
	return out
}

// clientIP — адрес клиента без порта. За прокси RemoteAddr уже
// переписан chi RealIP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// backTarget — путь страницы, с которой пришёл запрос (Referer того же
// хоста), иначе "/". Фрагмент отбрасывается.
func backTarget(r *http.Request) string {
	ref := r.Referer()
	if ref == "" {
		return "/"
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != r.Host) {
		return "/"
	}
	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return target
}

// Пакет handlers — HTTP-обработчики API Parco Verismo: публичная форма,
// каталог, переключение языка, staff API обработки заявок и health.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/luigimeli-max/sito-parco-verismo/internal/api/errors"
	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/display"
	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
	"github.com/luigimeli-max/sito-parco-verismo/internal/i18n"
	"github.com/luigimeli-max/sito-parco-verismo/internal/service"
)

// IntakeSubmitter — приём заявок с публичной формы.
type IntakeSubmitter interface {
	Submit(ctx context.Context, in service.SubmissionInput, meta service.SubmissionMeta) (*model.Request, error)
}

// Triage — операции персонала над заявками.
type Triage interface {
	List(ctx context.Context, q service.RequestQuery, limit, offset int) (*service.ListResult, error)
	Get(ctx context.Context, id string) (*model.Request, error)
	Update(ctx context.Context, id string, patch service.RequestPatch, actor string) (*model.Request, error)
	Bulk(ctx context.Context, action service.BulkAction, ids []string, actor, lang string) (*service.BulkResult, error)
	Export(ctx context.Context, q service.RequestQuery, lang string) (*service.ExportFile, error)
	Dashboard(ctx context.Context) (*service.Dashboard, error)
	RenderContext(lang string) display.RenderContext
	Registry() *display.Registry
}

// ContentReader — чтение каталога парка.
type ContentReader interface {
	Home(ctx context.Context) (*service.Home, error)
	Works(ctx context.Context, q string) ([]*model.Work, error)
	Work(ctx context.Context, slug string) (*model.Work, error)
	Events(ctx context.Context) (*service.EventsPage, error)
	Event(ctx context.Context, slug string) (*model.Event, error)
	News(ctx context.Context) ([]*model.News, error)
	NewsItem(ctx context.Context, slug string) (*model.News, error)
	Documents(ctx context.Context, kind, q string) ([]*model.Document, error)
	Document(ctx context.Context, slug string) (*model.Document, error)
	Itineraries(ctx context.Context, kind string) ([]*model.Itinerary, error)
	Itinerary(ctx context.Context, slug string) (*model.Itinerary, error)
}

// APIHandler — обработчик API. Объединяет health и бизнес-обработчики,
// делегируя запросы в сервисный слой.
type APIHandler struct {
	health  *HealthHandler
	intake  IntakeSubmitter
	triage  Triage
	content ContentReader
	bundle  *i18n.Bundle
	logger  *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	intake IntakeSubmitter,
	triage Triage,
	content ContentReader,
	bundle *i18n.Bundle,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:  health,
		intake:  intake,
		triage:  triage,
		content: content,
		bundle:  bundle,
		logger:  logger.With(slog.String("component", "api_handler")),
	}
}

// Mount регистрирует маршруты. staffAuth оборачивает /api/v1/admin;
// nil — staff API не регистрируется.
// POST и DELETE для заявок в staff API отсутствуют намеренно: заявки
// создаются только публичной формой и никогда не удаляются.
func (h *APIHandler) Mount(r chi.Router, staffAuth func(http.Handler) http.Handler) {
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/richieste", h.SubmitRequest)

		r.Get("/lang", h.SetLanguage)
		r.Post("/lang", h.SetLanguage)

		r.Get("/home", h.GetHome)
		r.Get("/opere", h.ListWorks)
		r.Get("/opere/{slug}", h.GetWork)
		r.Get("/eventi", h.ListEvents)
		r.Get("/eventi/{slug}", h.GetEvent)
		r.Get("/notizie", h.ListNews)
		r.Get("/notizie/{slug}", h.GetNews)
		r.Get("/documenti", h.ListDocuments)
		r.Get("/documenti/{slug}", h.GetDocument)
		r.Get("/itinerari", h.ListItineraries)
		r.Get("/itinerari/{slug}", h.GetItinerary)

		if staffAuth == nil {
			return
		}
		r.Route("/admin", func(r chi.Router) {
			r.Use(staffAuth)
			r.Get("/me", h.GetMe)
			r.Get("/dashboard", h.GetDashboard)
			r.Get("/richieste", h.ListRequests)
			r.Post("/richieste/azioni", h.BulkAction)
			r.Get("/richieste/export", h.ExportRequests)
			r.Get("/richieste/{id}", h.GetRequest)
			r.Patch("/richieste/{id}", h.UpdateRequest)
		})
	})
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// paginationDefaults разбирает limit и offset из query string.
// Некорректные значения заменяются значениями по умолчанию,
// верхнюю границу limit применяет сервис.
func paginationDefaults(q url.Values) (limit, offset int) {
	limit = service.DefaultPageSize
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// lang — язык запроса, определённый i18n middleware.
func lang(r *http.Request) string {
	return i18n.LangFromContext(r.Context())
}

// writeServiceError преобразует ошибку сервисного слоя в HTTP-ответ.
// Детали внутренних ошибок только в логе.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	l := lang(r)
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, h.bundle.Translate(l, "error.not_found"))
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	default:
		h.logger.Error("Ошибка обработки запроса",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, h.bundle.Translate(l, "error.internal"))
	}
}

// triage.go — staff API обработки заявок (/api/v1/admin).
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/luigimeli-max/sito-parco-verismo/internal/api/errors"
	"github.com/luigimeli-max/sito-parco-verismo/internal/api/middleware"
	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/display"
	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
	"github.com/luigimeli-max/sito-parco-verismo/internal/service"
)

// requestResponse — заявка в ответах staff API.
type requestResponse struct {
	ID            string     `json:"id"`
	Nome          string     `json:"nome"`
	Cognome       string     `json:"cognome"`
	Email         string     `json:"email"`
	Ente          string     `json:"ente"`
	Oggetto       string     `json:"oggetto"`
	Messaggio     string     `json:"messaggio"`
	Stato         string     `json:"stato"`
	StatoLabel    string     `json:"stato_label"`
	Priorita      string     `json:"priorita"`
	PrioritaLabel string     `json:"priorita_label"`
	DataRichiesta time.Time  `json:"data_richiesta"`
	DataCompl     *time.Time `json:"data_completamento"`
	UltimaModif   time.Time  `json:"ultima_modifica"`
	Responsabile  *string    `json:"responsabile"`
	Guida         *string    `json:"guida_assegnata"`
	NoteAdmin     *string    `json:"note_admin"`
	InRitardo     bool       `json:"in_ritardo"`
	GiorniAttesa  int        `json:"giorni_attesa"`
	// Display — колонки списка, отрисованные для языка запроса
	Display map[string]string `json:"display,omitempty"`
}

func toRequestResponse(r *model.Request, rc display.RenderContext) requestResponse {
	return requestResponse{
		ID:            r.ID,
		Nome:          r.FirstName,
		Cognome:       r.LastName,
		Email:         r.Email,
		Ente:          r.Organization,
		Oggetto:       r.Subject,
		Messaggio:     r.Message,
		Stato:         string(r.Status),
		StatoLabel:    r.Status.Label(rc.Lang),
		Priorita:      string(r.Priority),
		PrioritaLabel: r.Priority.Label(rc.Lang),
		DataRichiesta: r.CreatedAt,
		DataCompl:     r.CompletedAt,
		UltimaModif:   r.UpdatedAt,
		Responsabile:  r.Assignee,
		Guida:         r.Guide,
		NoteAdmin:     r.AdminNotes,
		InRitardo:     r.IsOverdue(),
		GiorniAttesa:  r.WaitingDays(rc.Now, rc.Location),
	}
}

type requestListResponse struct {
	Items  []requestResponse `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// requestQuery собирает фильтр из query string. ids — через запятую или
// повторяющимся параметром; наличие параметра ограничивает выборку.
func requestQuery(r *http.Request) service.RequestQuery {
	q := r.URL.Query()
	rq := service.RequestQuery{
		Status:      q.Get("stato"),
		Priority:    q.Get("priorita"),
		CreatedFrom: q.Get("dal"),
		CreatedTo:   q.Get("al"),
		Query:       q.Get("q"),
	}
	if raw, ok := q["ids"]; ok {
		rq.IDs = []string{}
		for _, v := range raw {
			for _, id := range strings.Split(v, ",") {
				if id = strings.TrimSpace(id); id != "" {
					rq.IDs = append(rq.IDs, id)
				}
			}
		}
	}
	return rq
}

// ListRequests — GET /api/v1/admin/richieste.
func (h *APIHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationDefaults(r.URL.Query())

	res, err := h.triage.List(r.Context(), requestQuery(r), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	cols, err := h.triage.Registry().Columns(display.RequestList)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	rc := h.triage.RenderContext(lang(r))

	resp := requestListResponse{
		Items:  make([]requestResponse, 0, len(res.Items)),
		Total:  res.Total,
		Limit:  res.Limit,
		Offset: res.Offset,
	}
	for _, item := range res.Items {
		dto := toRequestResponse(item, rc)
		dto.Display = display.RowMap(cols, rc, item)
		resp.Items = append(resp.Items, dto)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRequest — GET /api/v1/admin/richieste/{id}.
func (h *APIHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.triage.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestResponse(req, h.triage.RenderContext(lang(r))))
}

// patchRequest — тело PATCH. Отсутствующее поле не меняется,
// пустая строка очищает необязательное поле.
type patchRequest struct {
	Stato        *string `json:"stato"`
	Priorita     *string `json:"priorita"`
	Responsabile *string `json:"responsabile"`
	Guida        *string `json:"guida_assegnata"`
	NoteAdmin    *string `json:"note_admin"`
}

func (p patchRequest) patch() service.RequestPatch {
	out := service.RequestPatch{
		Assignee:   p.Responsabile,
		Guide:      p.Guida,
		AdminNotes: p.NoteAdmin,
	}
	if p.Stato != nil {
		st := model.Status(*p.Stato)
		out.Status = &st
	}
	if p.Priorita != nil {
		pr := model.Priority(*p.Priorita)
		out.Priority = &pr
	}
	return out
}

// UpdateRequest — PATCH /api/v1/admin/richieste/{id}.
func (h *APIHandler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	var body patchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		apierrors.ValidationError(w, h.bundle.Translate(lang(r), "error.invalid_body"))
		return
	}

	updated, err := h.triage.Update(r.Context(), chi.URLParam(r, "id"), body.patch(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestResponse(updated, h.triage.RenderContext(lang(r))))
}

type bulkRequest struct {
	Azione string   `json:"azione"`
	IDs    []string `json:"ids"`
}

type bulkResponse struct {
	Azione   string `json:"azione"`
	Affected int    `json:"affected"`
	Message  string `json:"message"`
}

// BulkAction — POST /api/v1/admin/richieste/azioni.
func (h *APIHandler) BulkAction(w http.ResponseWriter, r *http.Request) {
	l := lang(r)
	var body bulkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes)).Decode(&body); err != nil {
		apierrors.ValidationError(w, h.bundle.Translate(l, "error.invalid_body"))
		return
	}

	action := service.BulkAction(body.Azione)
	if !action.IsValid() {
		apierrors.ValidationError(w, h.bundle.Translate(l, "error.invalid_action"))
		return
	}

	res, err := h.triage.Bulk(r.Context(), action, body.IDs, middleware.ActorFromContext(r.Context()), l)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkResponse{
		Azione:   string(res.Action),
		Affected: res.Affected,
		Message:  res.Message,
	})
}

// ExportRequests — GET /api/v1/admin/richieste/export. CSV вложением.
func (h *APIHandler) ExportRequests(w http.ResponseWriter, r *http.Request) {
	file, err := h.triage.Export(r.Context(), requestQuery(r), lang(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Content)
}

type dashboardResponse struct {
	Total       int               `json:"total"`
	ByStatus    map[string]int    `json:"per_stato"`
	Urgent      int               `json:"urgenti"`
	LastWeek    int               `json:"ultima_settimana"`
	UrgentList  []requestResponse `json:"lista_urgenti"`
	OverdueList []requestResponse `json:"lista_in_ritardo"`
	RecentList  []requestResponse `json:"lista_recenti"`
	Cancelled   []requestResponse `json:"lista_annullate"`
	GeneratedAt time.Time         `json:"generato_il"`
}

// GetDashboard — GET /api/v1/admin/dashboard.
func (h *APIHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.triage.Dashboard(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	rc := h.triage.RenderContext(lang(r))

	byStatus := make(map[string]int, len(d.ByStatus))
	for st, n := range d.ByStatus {
		byStatus[string(st)] = n
	}
	writeJSON(w, http.StatusOK, dashboardResponse{
		Total:       d.Total,
		ByStatus:    byStatus,
		Urgent:      d.Urgent,
		LastWeek:    d.LastWeek,
		UrgentList:  toRequestList(d.UrgentList, rc),
		OverdueList: toRequestList(d.OverdueList, rc),
		RecentList:  toRequestList(d.RecentList, rc),
		Cancelled:   toRequestList(d.CancelledList, rc),
		GeneratedAt: d.GeneratedAt,
	})
}

// toRequestList никогда не возвращает nil: пустой список — [] в JSON.
func toRequestList(list []*model.Request, rc display.RenderContext) []requestResponse {
	out := make([]requestResponse, 0, len(list))
	for _, r := range list {
		out = append(out, toRequestResponse(r, rc))
	}
	return out
}

// GetMe — GET /api/v1/admin/me. Текущий сотрудник из JWT.
func (h *APIHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	staff := middleware.StaffFromContext(r.Context())
	if staff == nil {
		apierrors.Unauthorized(w, h.bundle.Translate(lang(r), "error.unauthorized"))
		return
	}
	writeJSON(w, http.StatusOK, staff)
}

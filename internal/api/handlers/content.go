// content.go — публичный каталог парка: произведения, события, новости,
// документы, маршруты. Тексты отдаются на языке запроса с fallback на
// итальянский, затем на любой доступный перевод.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
	"github.com/luigimeli-max/sito-parco-verismo/internal/i18n"
)

type workResponse struct {
	Slug       string `json:"slug"`
	Autore     string `json:"autore"`
	AutoreSlug string `json:"autore_slug"`
	Anno       *int   `json:"anno,omitempty"`
	Wikisource string `json:"link_wikisource,omitempty"`
	Copertina  string `json:"copertina,omitempty"`
	model.WorkText
}

func toWork(w *model.Work, l string) workResponse {
	text, _ := w.Texts.Get(l, i18n.DefaultLang)
	return workResponse{
		Slug:       w.Slug,
		Autore:     w.Author.Name,
		AutoreSlug: w.Author.Slug,
		Anno:       w.Year,
		Wikisource: w.WikisourceLink,
		Copertina:  w.Cover,
		WorkText:   text,
	}
}

type eventResponse struct {
	Slug       string     `json:"slug"`
	DataInizio time.Time  `json:"data_inizio"`
	DataFine   *time.Time `json:"data_fine,omitempty"`
	Immagine   string     `json:"immagine,omitempty"`
	Passato    bool       `json:"passato"`
	model.EventText
}

func toEvent(e *model.Event, l string, now time.Time) eventResponse {
	text, _ := e.Texts.Get(l, i18n.DefaultLang)
	return eventResponse{
		Slug:       e.Slug,
		DataInizio: e.StartsAt,
		DataFine:   e.EndsAt,
		Immagine:   e.Image,
		Passato:    e.IsPast(now),
		EventText:  text,
	}
}

type newsResponse struct {
	Slug       string    `json:"slug"`
	Pubblicata time.Time `json:"data_pubblicazione"`
	Immagine   string    `json:"immagine,omitempty"`
	model.NewsText
}

func toNews(n *model.News, l string) newsResponse {
	text, _ := n.Texts.Get(l, i18n.DefaultLang)
	return newsResponse{
		Slug:       n.Slug,
		Pubblicata: n.PublishedAt,
		Immagine:   n.Image,
		NewsText:   text,
	}
}

type documentResponse struct {
	Slug       string    `json:"slug"`
	Tipo       string    `json:"tipo"`
	Autori     string    `json:"autori,omitempty"`
	Anno       *int      `json:"anno,omitempty"`
	PDF        string    `json:"pdf,omitempty"`
	Anteprima  string    `json:"anteprima,omitempty"`
	Pubblicato time.Time `json:"data_pubblicazione"`
	model.DocumentText
}

func toDocument(d *model.Document, l string) documentResponse {
	text, _ := d.Texts.Get(l, i18n.DefaultLang)
	return documentResponse{
		Slug:         d.Slug,
		Tipo:         string(d.Kind),
		Autori:       d.Authors,
		Anno:         d.Year,
		PDF:          d.PDF,
		Anteprima:    d.Preview,
		Pubblicato:   d.PublishedAt,
		DocumentText: text,
	}
}

type itineraryResponse struct {
	Slug             string       `json:"slug"`
	Tipo             string       `json:"tipo"`
	Ordine           int          `json:"ordine"`
	Durata           string       `json:"durata_stimata,omitempty"`
	Difficolta       string       `json:"difficolta"`
	DifficoltaLabel  string       `json:"difficolta_label"`
	Colore           string       `json:"colore_percorso"`
	LinkMaps         string       `json:"link_maps,omitempty"`
	Immagine         string       `json:"immagine,omitempty"`
	Centro           [2]float64   `json:"centro"`
	NumeroTappe      int          `json:"numero_tappe"`
	DescrizioneBreve string       `json:"descrizione_breve"`
	Tappe            []model.Stop `json:"tappe"`
	model.ItineraryText
}

func toItinerary(it *model.Itinerary, l string) itineraryResponse {
	text, _ := it.Texts.Get(l, i18n.DefaultLang)
	return itineraryResponse{
		Slug:             it.Slug,
		Tipo:             string(it.Kind),
		Ordine:           it.Order,
		Durata:           it.Duration,
		Difficolta:       string(it.Difficulty),
		DifficoltaLabel:  it.Difficulty.Label(l),
		Colore:           it.Color,
		LinkMaps:         it.MapsLink,
		Immagine:         it.Image,
		Centro:           it.Center(),
		NumeroTappe:      it.StopCount(),
		DescrizioneBreve: it.ShortDescription(l),
		Tappe:            it.OrderedStops(),
		ItineraryText:    text,
	}
}

// mapList применяет fn к каждому элементу; результат не nil.
func mapList[T, R any](items []T, fn func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, it := range items {
		out = append(out, fn(it))
	}
	return out
}

// GetHome — GET /api/v1/home.
func (h *APIHandler) GetHome(w http.ResponseWriter, r *http.Request) {
	home, err := h.content.Home(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	l, now := lang(r), time.Now()
	writeJSON(w, http.StatusOK, map[string]any{
		"eventi":  mapList(home.Events, func(e *model.Event) eventResponse { return toEvent(e, l, now) }),
		"notizie": mapList(home.News, func(n *model.News) newsResponse { return toNews(n, l) }),
	})
}

// ListWorks — GET /api/v1/opere?q=.
func (h *APIHandler) ListWorks(w http.ResponseWriter, r *http.Request) {
	works, err := h.content.Works(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	l := lang(r)
	writeJSON(w, http.StatusOK, mapList(works, func(wk *model.Work) workResponse { return toWork(wk, l) }))
}

// GetWork — GET /api/v1/opere/{slug}.
func (h *APIHandler) GetWork(w http.ResponseWriter, r *http.Request) {
	work, err := h.content.Work(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWork(work, lang(r)))
}

// ListEvents — GET /api/v1/eventi.
func (h *APIHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	page, err := h.content.Events(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	l, now := lang(r), time.Now()
	conv := func(e *model.Event) eventResponse { return toEvent(e, l, now) }
	writeJSON(w, http.StatusOK, map[string]any{
		"prossimi": mapList(page.Upcoming, conv),
		"passati":  mapList(page.Past, conv),
	})
}

// GetEvent — GET /api/v1/eventi/{slug}.
func (h *APIHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.content.Event(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEvent(ev, lang(r), time.Now()))
}

// ListNews — GET /api/v1/notizie.
func (h *APIHandler) ListNews(w http.ResponseWriter, r *http.Request) {
	news, err := h.content.News(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	l := lang(r)
	writeJSON(w, http.StatusOK, mapList(news, func(n *model.News) newsResponse { return toNews(n, l) }))
}

// GetNews — GET /api/v1/notizie/{slug}.
func (h *APIHandler) GetNews(w http.ResponseWriter, r *http.Request) {
	n, err := h.content.NewsItem(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNews(n, lang(r)))
}

// ListDocuments — GET /api/v1/documenti?tipo=&q=.
func (h *APIHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	docs, err := h.content.Documents(r.Context(), q.Get("tipo"), q.Get("q"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	l := lang(r)
	writeJSON(w, http.StatusOK, mapList(docs, func(d *model.Document) documentResponse { return toDocument(d, l) }))
}

// GetDocument — GET /api/v1/documenti/{slug}.
func (h *APIHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	d, err := h.content.Document(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocument(d, lang(r)))
}

// ListItineraries — GET /api/v1/itinerari?tipo=.
func (h *APIHandler) ListItineraries(w http.ResponseWriter, r *http.Request) {
	list, err := h.content.Itineraries(r.Context(), r.URL.Query().Get("tipo"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	l := lang(r)
	writeJSON(w, http.StatusOK, mapList(list, func(it *model.Itinerary) itineraryResponse { return toItinerary(it, l) }))
}

// GetItinerary — GET /api/v1/itinerari/{slug}.
func (h *APIHandler) GetItinerary(w http.ResponseWriter, r *http.Request) {
	it, err := h.content.Itinerary(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItinerary(it, lang(r)))
}

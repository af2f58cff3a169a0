package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/luigimeli-max/sito-parco-verismo/internal/api/middleware"
	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/display"
	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
	"github.com/luigimeli-max/sito-parco-verismo/internal/i18n"
	"github.com/luigimeli-max/sito-parco-verismo/internal/service"
)

var (
	rome, _  = time.LoadLocation("Europe/Rome")
	fixedNow = time.Date(2026, 3, 15, 10, 30, 0, 0, rome)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- intake ---

type fakeIntake struct {
	created *model.Request
	err     error
	got     service.SubmissionInput
	meta    service.SubmissionMeta
}

func (f *fakeIntake) Submit(_ context.Context, in service.SubmissionInput, meta service.SubmissionMeta) (*model.Request, error) {
	f.got, f.meta = in, meta
	if f.err != nil {
		return nil, f.err
	}
	return f.created, nil
}

// --- triage ---

type fakeTriage struct {
	items  []*model.Request
	err    error
	bulk   *service.BulkResult
	export *service.ExportFile
	dash   *service.Dashboard

	query  service.RequestQuery
	limit  int
	offset int
	patch  service.RequestPatch
	actor  string
	ids    []string
	action service.BulkAction
}

func (f *fakeTriage) List(_ context.Context, q service.RequestQuery, limit, offset int) (*service.ListResult, error) {
	f.query, f.limit, f.offset = q, limit, offset
	if f.err != nil {
		return nil, f.err
	}
	return &service.ListResult{Items: f.items, Total: len(f.items), Limit: limit, Offset: offset}, nil
}

func (f *fakeTriage) Get(_ context.Context, id string) (*model.Request, error) {
	for _, r := range f.items {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: заявка %s", service.ErrNotFound, id)
}

func (f *fakeTriage) Update(ctx context.Context, id string, patch service.RequestPatch, actor string) (*model.Request, error) {
	f.patch, f.actor = patch, actor
	if f.err != nil {
		return nil, f.err
	}
	return f.Get(ctx, id)
}

func (f *fakeTriage) Bulk(_ context.Context, action service.BulkAction, ids []string, actor, _ string) (*service.BulkResult, error) {
	f.action, f.ids, f.actor = action, ids, actor
	return f.bulk, f.err
}

func (f *fakeTriage) Export(_ context.Context, q service.RequestQuery, _ string) (*service.ExportFile, error) {
	f.query = q
	return f.export, f.err
}

func (f *fakeTriage) Dashboard(context.Context) (*service.Dashboard, error) {
	return f.dash, f.err
}

func (f *fakeTriage) RenderContext(lang string) display.RenderContext {
	return display.RenderContext{Lang: i18n.Normalize(lang), Location: rome, Now: fixedNow}
}

func (f *fakeTriage) Registry() *display.Registry {
	return display.DefaultRegistry()
}

// --- content ---

type fakeContent struct {
	works       []*model.Work
	events      *service.EventsPage
	itineraries []*model.Itinerary
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", service.ErrNotFound, what)
}

func (f *fakeContent) Home(context.Context) (*service.Home, error) {
	return &service.Home{Events: f.events.Upcoming}, nil
}

func (f *fakeContent) Works(context.Context, string) ([]*model.Work, error) { return f.works, nil }

func (f *fakeContent) Work(_ context.Context, slug string) (*model.Work, error) {
	for _, w := range f.works {
		if w.Slug == slug {
			return w, nil
		}
	}
	return nil, notFound(slug)
}

func (f *fakeContent) Events(context.Context) (*service.EventsPage, error) { return f.events, nil }

func (f *fakeContent) Event(_ context.Context, slug string) (*model.Event, error) {
	return nil, notFound(slug)
}

func (f *fakeContent) News(context.Context) ([]*model.News, error) { return nil, nil }

func (f *fakeContent) NewsItem(_ context.Context, slug string) (*model.News, error) {
	return nil, notFound(slug)
}

func (f *fakeContent) Documents(_ context.Context, kind, _ string) ([]*model.Document, error) {
	if kind != "" && !model.DocumentKind(kind).IsValid() {
		return nil, fmt.Errorf("%w: неизвестный тип документа %q", service.ErrValidation, kind)
	}
	return nil, nil
}

func (f *fakeContent) Document(_ context.Context, slug string) (*model.Document, error) {
	return nil, notFound(slug)
}

func (f *fakeContent) Itineraries(context.Context, string) ([]*model.Itinerary, error) {
	return f.itineraries, nil
}

func (f *fakeContent) Itinerary(_ context.Context, slug string) (*model.Itinerary, error) {
	for _, it := range f.itineraries {
		if it.Slug == slug {
			return it, nil
		}
	}
	return nil, notFound(slug)
}

// --- сборка ---

type deps struct {
	intake  *fakeIntake
	triage  *fakeTriage
	content *fakeContent
	// staff nil — staff API не смонтирован
	staff *middleware.Staff
}

// fakeStaffAuth пропускает запрос как аутентифицированного сотрудника.
func fakeStaffAuth(staff *middleware.Staff) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithStaff(r.Context(), staff)))
		})
	}
}

func newRouter(t *testing.T, d deps) http.Handler {
	t.Helper()
	if d.intake == nil {
		d.intake = &fakeIntake{}
	}
	if d.triage == nil {
		d.triage = &fakeTriage{}
	}
	if d.content == nil {
		d.content = &fakeContent{events: &service.EventsPage{}}
	}

	h := NewAPIHandler(
		NewHealthHandler(okChecker{}, nil),
		d.intake, d.triage, d.content,
		i18n.MustLoad(discardLogger()),
		discardLogger(),
	)

	r := chi.NewRouter()
	r.Use(i18n.Middleware())
	var auth func(http.Handler) http.Handler
	if d.staff != nil {
		auth = fakeStaffAuth(d.staff)
	}
	h.Mount(r, auth)
	return r
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decode разбирает JSON-ответ в map.
func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "тело: %s", rec.Body.String())
	return body
}

// decodeInto разбирает JSON-ответ в v.
func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "тело: %s", rec.Body.String())
}

// errorCode — error.code из стандартного тела ошибки.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	e, ok := decode(t, rec)["error"].(map[string]any)
	require.True(t, ok, "нет поля error: %s", rec.Body.String())
	code, _ := e["code"].(string)
	return code
}

type okChecker struct{}

func (okChecker) CheckReady() (string, string) { return statusOK, "подключение активно" }

package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
	"github.com/luigimeli-max/sito-parco-verismo/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memRequestRepo — репозиторий заявок в памяти для тестов сервисов.
type memRequestRepo struct {
	mu    sync.Mutex
	items map[string]*model.Request
	// calls — число обращений к методам, меняющим данные
	calls int
	err   error
}

func newMemRequestRepo(items ...*model.Request) *memRequestRepo {
	m := &memRequestRepo{items: make(map[string]*model.Request)}
	for _, r := range items {
		m.items[r.ID] = r
	}
	return m
}

func clone(r *model.Request) *model.Request {
	c := *r
	return &c
}

func (m *memRequestRepo) Create(_ context.Context, r *model.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	if _, dup := m.items[r.ID]; dup {
		return repository.ErrConflict
	}
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	m.items[r.ID] = clone(r)
	return nil
}

func (m *memRequestRepo) GetByID(_ context.Context, id string) (*model.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(r), nil
}

func (m *memRequestRepo) GetForUpdate(ctx context.Context, id string) (*model.Request, error) {
	return m.GetByID(ctx, id)
}

func (m *memRequestRepo) match(f repository.RequestFilter, r *model.Request) bool {
	if f.IDs != nil {
		for _, id := range f.IDs {
			if id == r.ID {
				return true
			}
		}
		return false
	}
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	if f.Priority != nil && r.Priority != *f.Priority {
		return false
	}
	if f.CreatedFrom != nil && r.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && !r.CreatedAt.Before(*f.CreatedTo) {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		hay := strings.ToLower(strings.Join([]string{
			r.FirstName, r.LastName, r.Email, r.Message, r.Subject, r.Organization,
			model.StringOrEmpty(r.AdminNotes), model.StringOrEmpty(r.Guide),
		}, " "))
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}

func (m *memRequestRepo) sorted(keep func(*model.Request) bool) []*model.Request {
	out := make([]*model.Request, 0)
	for _, r := range m.items {
		if keep(r) {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() > out[j].Priority.Rank()
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func page(items []*model.Request, limit, offset int) []*model.Request {
	if offset > len(items) {
		return []*model.Request{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (m *memRequestRepo) List(_ context.Context, f repository.RequestFilter, limit, offset int) ([]*model.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return page(m.sorted(func(r *model.Request) bool { return m.match(f, r) }), limit, offset), nil
}

func (m *memRequestRepo) Count(ctx context.Context, f repository.RequestFilter) (int, error) {
	items, err := m.List(ctx, f, 0, 0)
	return len(items), err
}

func (m *memRequestRepo) Update(_ context.Context, r *model.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	old, ok := m.items[r.ID]
	if !ok {
		return repository.ErrNotFound
	}
	c := clone(r)
	c.CreatedAt = old.CreatedAt
	c.UpdatedAt = time.Now()
	m.items[r.ID] = c
	return nil
}

func (m *memRequestRepo) BulkSetStatus(_ context.Context, ids []string, status model.Status, actor string, now time.Time) ([]model.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	prev := make([]model.Status, 0)
	for _, id := range ids {
		r, ok := m.items[id]
		if !ok {
			continue
		}
		prev = append(prev, r.Status)
		r.Status = status
		if status == model.StatusCompleted && r.CompletedAt == nil {
			t := now
			r.CompletedAt = &t
		}
		if actor != "" {
			a := actor
			r.Assignee = &a
		}
		r.UpdatedAt = now
	}
	return prev, nil
}

func (m *memRequestRepo) BulkSetPriority(_ context.Context, ids []string, priority model.Priority, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	n := 0
	for _, id := range ids {
		if r, ok := m.items[id]; ok {
			r.Priority = priority
			r.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *memRequestRepo) CountByStatus(context.Context) (map[model.Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[model.Status]int)
	for _, st := range model.AllStatuses {
		counts[st] = 0
	}
	for _, r := range m.items {
		counts[r.Status]++
	}
	return counts, nil
}

func (m *memRequestRepo) CountUrgent(ctx context.Context) (int, error) {
	list, err := m.ListUrgent(ctx, 0)
	return len(list), err
}

func (m *memRequestRepo) CountSince(_ context.Context, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.items {
		if !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memRequestRepo) ListUrgent(_ context.Context, limit int) ([]*model.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return page(m.sorted(func(r *model.Request) bool {
		return r.Priority == model.PriorityHigh && !r.IsTerminal()
	}), limit, 0), nil
}

func (m *memRequestRepo) ListActive(_ context.Context, oldestFirst bool, limit int) ([]*model.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.sorted(func(r *model.Request) bool { return !r.IsTerminal() })
	sort.SliceStable(items, func(i, j int) bool {
		if oldestFirst {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return page(items, limit, 0), nil
}

func (m *memRequestRepo) ListCancelled(_ context.Context, limit int) ([]*model.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.sorted(func(r *model.Request) bool { return r.Status == model.StatusCancelled }), limit, 0), nil
}

// memTx выполняет fn без транзакции, передавая nil DBTX.
type memTx struct {
	err error
}

func (t memTx) RunInTx(_ context.Context, fn func(tx repository.DBTX) error) error {
	if t.err != nil {
		return t.err
	}
	return fn(nil)
}

// memContentRepo — каталог в памяти.
type memContentRepo struct {
	mu          sync.Mutex
	authors     map[string]*model.Author
	works       map[string]*model.Work
	events      []*model.Event
	news        []*model.News
	documents   map[string]*model.Document
	itineraries map[string]*model.Itinerary
	listCalls   int
}

func newMemContentRepo() *memContentRepo {
	return &memContentRepo{
		authors:     make(map[string]*model.Author),
		works:       make(map[string]*model.Work),
		documents:   make(map[string]*model.Document),
		itineraries: make(map[string]*model.Itinerary),
	}
}

func (m *memContentRepo) UpsertAuthor(_ context.Context, a *model.Author) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.authors[a.Slug]; ok {
		a.ID = old.ID
	} else {
		a.ID = int64(len(m.authors) + 1)
	}
	c := *a
	m.authors[a.Slug] = &c
	return nil
}

func (m *memContentRepo) ListWorks(_ context.Context, q string) ([]*model.Work, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	out := make([]*model.Work, 0)
	for _, w := range m.works {
		t, _ := w.Texts.Get("it")
		if q == "" || strings.Contains(strings.ToLower(t.Title+" "+w.Author.Name), strings.ToLower(q)) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (m *memContentRepo) GetWorkBySlug(_ context.Context, slug string) (*model.Work, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.works[slug]; ok {
		return w, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memContentRepo) UpsertWork(_ context.Context, w *model.Work) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.authors[w.Author.Slug]
	if !ok {
		return repository.ErrNotFound
	}
	w.Author = *a
	m.works[w.Slug] = w
	return nil
}

func (m *memContentRepo) ListEvents(_ context.Context, from time.Time, upcoming bool, limit int) ([]*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	out := make([]*model.Event, 0)
	for _, e := range m.events {
		if e.Active && !e.StartsAt.Before(from) == upcoming {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if upcoming {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].StartsAt.After(out[j].StartsAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memContentRepo) GetEventBySlug(_ context.Context, slug string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.Slug == slug {
			return e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memContentRepo) UpsertEvent(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, old := range m.events {
		if old.Slug == e.Slug {
			m.events[i] = e
			return nil
		}
	}
	m.events = append(m.events, e)
	return nil
}

func (m *memContentRepo) ListNews(_ context.Context, limit int) ([]*model.News, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	out := append([]*model.News{}, m.news...)
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memContentRepo) GetNewsBySlug(_ context.Context, slug string) (*model.News, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.news {
		if n.Slug == slug {
			return n, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memContentRepo) UpsertNews(_ context.Context, n *model.News) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.news = append(m.news, n)
	return nil
}

func (m *memContentRepo) ListDocuments(_ context.Context, kind *model.DocumentKind, _ string) ([]*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	out := make([]*model.Document, 0)
	for _, d := range m.documents {
		if kind == nil || d.Kind == *kind {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memContentRepo) GetDocumentBySlug(_ context.Context, slug string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.documents[slug]; ok {
		return d, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memContentRepo) UpsertDocument(_ context.Context, d *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[d.Slug] = d
	return nil
}

func (m *memContentRepo) ListItineraries(_ context.Context, kind *model.ItineraryKind) ([]*model.Itinerary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	out := make([]*model.Itinerary, 0)
	for _, it := range m.itineraries {
		if kind == nil || it.Kind == *kind {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *memContentRepo) GetItineraryBySlug(_ context.Context, slug string) (*model.Itinerary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok := m.itineraries[slug]; ok {
		return it, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memContentRepo) UpsertItinerary(_ context.Context, it *model.Itinerary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.itineraries[it.Slug] = it
	return nil
}

var errBoom = errors.New("boom")

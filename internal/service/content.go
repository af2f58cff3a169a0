// content.go — публичный каталог: главная, произведения, события, новости,
// документы, маршруты. Только чтение, ответы кэшируются.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
	"github.com/luigimeli-max/sito-parco-verismo/internal/repository"
)

// Размеры блоков главной и архива событий.
const (
	homeEventsLimit = 5
	homeNewsLimit   = 5
	pastEventsLimit = 20
)

// Home — данные главной страницы.
type Home struct {
	Events []*model.Event
	News   []*model.News
}

// EventsPage — предстоящие и прошедшие события.
type EventsPage struct {
	Upcoming []*model.Event
	Past     []*model.Event
}

// ContentService — чтение каталога с кэшем.
type ContentService struct {
	repo   repository.ContentRepository
	cache  *ContentCache
	logger *slog.Logger
	now    func() time.Time
}

// NewContentService создаёт сервис каталога. cache может быть nil.
func NewContentService(repo repository.ContentRepository, cache *ContentCache, logger *slog.Logger) *ContentService {
	return &ContentService{
		repo:   repo,
		cache:  cache,
		logger: logger.With(slog.String("component", "content")),
		now:    time.Now,
	}
}

// Home — ближайшие события (при нехватке дополняются недавними прошедшими)
// и последние новости.
func (s *ContentService) Home(ctx context.Context) (*Home, error) {
	return cached(s.cache, "home", func() (*Home, error) {
		now := s.now()
		events, err := s.repo.ListEvents(ctx, now, true, homeEventsLimit)
		if err != nil {
			return nil, err
		}
		if missing := homeEventsLimit - len(events); missing > 0 {
			past, err := s.repo.ListEvents(ctx, now, false, missing)
			if err != nil {
				return nil, err
			}
			events = append(events, past...)
		}
		news, err := s.repo.ListNews(ctx, homeNewsLimit)
		if err != nil {
			return nil, err
		}
		return &Home{Events: events, News: news}, nil
	})
}

// Works — произведения, q ищет по названию и автору.
func (s *ContentService) Works(ctx context.Context, q string) ([]*model.Work, error) {
	q = strings.TrimSpace(q)
	return cached(s.cache, "works:"+q, func() ([]*model.Work, error) {
		return s.repo.ListWorks(ctx, q)
	})
}

// Work — произведение по slug.
func (s *ContentService) Work(ctx context.Context, slug string) (*model.Work, error) {
	return detail(s, "work:"+slug, func() (*model.Work, error) {
		return s.repo.GetWorkBySlug(ctx, slug)
	})
}

// Events — все предстоящие события и архив прошедших.
func (s *ContentService) Events(ctx context.Context) (*EventsPage, error) {
	return cached(s.cache, "events", func() (*EventsPage, error) {
		now := s.now()
		upcoming, err := s.repo.ListEvents(ctx, now, true, 0)
		if err != nil {
			return nil, err
		}
		past, err := s.repo.ListEvents(ctx, now, false, pastEventsLimit)
		if err != nil {
			return nil, err
		}
		return &EventsPage{Upcoming: upcoming, Past: past}, nil
	})
}

// Event — событие по slug.
func (s *ContentService) Event(ctx context.Context, slug string) (*model.Event, error) {
	return detail(s, "event:"+slug, func() (*model.Event, error) {
		return s.repo.GetEventBySlug(ctx, slug)
	})
}

// News — все новости, новые первыми.
func (s *ContentService) News(ctx context.Context) ([]*model.News, error) {
	return cached(s.cache, "news", func() ([]*model.News, error) {
		return s.repo.ListNews(ctx, 0)
	})
}

// NewsItem — новость по slug.
func (s *ContentService) NewsItem(ctx context.Context, slug string) (*model.News, error) {
	return detail(s, "news:"+slug, func() (*model.News, error) {
		return s.repo.GetNewsBySlug(ctx, slug)
	})
}

// Documents — документы с фильтром по типу и поиском q.
func (s *ContentService) Documents(ctx context.Context, kind, q string) ([]*model.Document, error) {
	var k *model.DocumentKind
	if kind != "" {
		dk := model.DocumentKind(kind)
		if !dk.IsValid() {
			return nil, fmt.Errorf("%w: неизвестный тип документа %q", ErrValidation, kind)
		}
		k = &dk
	}
	q = strings.TrimSpace(q)
	return cached(s.cache, "documents:"+kind+":"+q, func() ([]*model.Document, error) {
		return s.repo.ListDocuments(ctx, k, q)
	})
}

// Document — документ по slug.
func (s *ContentService) Document(ctx context.Context, slug string) (*model.Document, error) {
	return detail(s, "document:"+slug, func() (*model.Document, error) {
		return s.repo.GetDocumentBySlug(ctx, slug)
	})
}

// Itineraries — маршруты по типу в порядке поля ordine.
func (s *ContentService) Itineraries(ctx context.Context, kind string) ([]*model.Itinerary, error) {
	var k *model.ItineraryKind
	if kind != "" {
		ik := model.ItineraryKind(kind)
		if !ik.IsValid() {
			return nil, fmt.Errorf("%w: неизвестный тип маршрута %q", ErrValidation, kind)
		}
		k = &ik
	}
	return cached(s.cache, "itineraries:"+kind, func() ([]*model.Itinerary, error) {
		return s.repo.ListItineraries(ctx, k)
	})
}

// Itinerary — маршрут по slug.
func (s *ContentService) Itinerary(ctx context.Context, slug string) (*model.Itinerary, error) {
	return detail(s, "itinerary:"+slug, func() (*model.Itinerary, error) {
		return s.repo.GetItineraryBySlug(ctx, slug)
	})
}

// detail загружает запись по slug, переводя отсутствие в ErrNotFound.
func detail[T any](s *ContentService, key string, load func() (T, error)) (T, error) {
	v, err := cached(s.cache, key, load)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return v, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		s.logger.Error("Ошибка чтения каталога", slog.String("key", key), slog.String("error", err.Error()))
		return v, err
	}
	return v, nil
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
)

func TestContentCache_GetSet(t *testing.T) {
	c := NewContentCache(10, time.Minute)

	_, ok := c.Get("home")
	assert.False(t, ok, "ожидался промах для нового ключа")

	c.Set("home", 42)
	v, ok := c.Get("home")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	c.Purge()
	assert.Zero(t, c.Len())
}

func TestContentCache_TTLExpiration(t *testing.T) {
	c := NewContentCache(10, 50*time.Millisecond)
	c.Set("k", "v")
	time.Sleep(100 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok, "ожидался промах после истечения TTL")
}

func TestCached_ErrorsNotStored(t *testing.T) {
	c := NewContentCache(10, time.Minute)
	calls := 0
	load := func() (string, error) {
		calls++
		if calls == 1 {
			return "", errBoom
		}
		return "ok", nil
	}

	_, err := cached(c, "k", load)
	assert.ErrorIs(t, err, errBoom)
	v, err := cached(c, "k", load)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	v, err = cached(c, "k", load)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}

func seedContent(t *testing.T) *memContentRepo {
	t.Helper()
	ctx := context.Background()
	repo := newMemContentRepo()

	require.NoError(t, repo.UpsertAuthor(ctx, &model.Author{Name: "Giovanni Verga", Slug: "giovanni-verga"}))
	require.NoError(t, repo.UpsertWork(ctx, &model.Work{
		Slug:   "i-malavoglia",
		Author: model.Author{Slug: "giovanni-verga"},
		Texts:  model.Translations[model.WorkText]{"it": {Title: "I Malavoglia"}},
	}))

	for i, offset := range []time.Duration{-72, -48, -24, 24, 48} {
		require.NoError(t, repo.UpsertEvent(ctx, &model.Event{
			Slug:     "evento-" + string(rune('a'+i)),
			StartsAt: fixedNow.Add(offset * time.Hour),
			Active:   true,
		}))
	}
	for i := range 7 {
		require.NoError(t, repo.UpsertNews(ctx, &model.News{
			Slug:        "notizia-" + string(rune('a'+i)),
			PublishedAt: fixedNow.Add(-time.Duration(i) * time.Hour),
			Active:      true,
		}))
	}
	require.NoError(t, repo.UpsertItinerary(ctx, &model.Itinerary{Slug: "verga-2", Kind: model.ItineraryVerga, Order: 2}))
	require.NoError(t, repo.UpsertItinerary(ctx, &model.Itinerary{Slug: "verga-1", Kind: model.ItineraryVerga, Order: 1}))
	require.NoError(t, repo.UpsertItinerary(ctx, &model.Itinerary{Slug: "tema", Kind: model.ItineraryTheme}))
	return repo
}

func newContent(repo *memContentRepo, cache *ContentCache) *ContentService {
	svc := NewContentService(repo, cache, discardLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestContentService_Home(t *testing.T) {
	svc := newContent(seedContent(t), nil)

	home, err := svc.Home(context.Background())
	require.NoError(t, err)

	slugs := make([]string, len(home.Events))
	for i, e := range home.Events {
		slugs[i] = e.Slug
	}
	// Сначала предстоящие по возрастанию, затем прошедшие от новых к старым
	assert.Equal(t, []string{"evento-d", "evento-e", "evento-c", "evento-b", "evento-a"}, slugs)
	require.Len(t, home.News, 5)
	assert.Equal(t, "notizia-a", home.News[0].Slug)
}

func TestContentService_CacheHit(t *testing.T) {
	repo := seedContent(t)
	svc := newContent(repo, NewContentCache(10, time.Minute))
	ctx := context.Background()

	_, err := svc.Works(ctx, "malavoglia")
	require.NoError(t, err)
	works, err := svc.Works(ctx, "  malavoglia ")
	require.NoError(t, err)
	require.Len(t, works, 1)
	assert.Equal(t, 1, repo.listCalls, "второй запрос обслужен кэшем")
}

func TestContentService_Itineraries(t *testing.T) {
	svc := newContent(seedContent(t), nil)

	list, err := svc.Itineraries(context.Background(), "verghiano")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "verga-1", list[0].Slug)

	_, err = svc.Itineraries(context.Background(), "storico")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Documents(context.Background(), "romanzo", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestContentService_DetailNotFound(t *testing.T) {
	svc := newContent(seedContent(t), NewContentCache(10, time.Minute))
	ctx := context.Background()

	w, err := svc.Work(ctx, "i-malavoglia")
	require.NoError(t, err)
	assert.Equal(t, "Giovanni Verga", w.Author.Name)

	_, err = svc.Work(ctx, "mastro-don-gesualdo")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Event(ctx, "nessuno")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.NewsItem(ctx, "nessuna")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Document(ctx, "nessuno")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Itinerary(ctx, "nessuno")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContentService_Events(t *testing.T) {
	svc := newContent(seedContent(t), nil)
	page, err := svc.Events(context.Background())
	require.NoError(t, err)
	assert.Len(t, page.Upcoming, 2)
	assert.Len(t, page.Past, 3)
}

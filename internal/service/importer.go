// importer.go — загрузка каталога из YAML-файла (upsert по slug).
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
	"github.com/luigimeli-max/sito-parco-verismo/internal/repository"
)

// importDateLayouts — форматы дат в YAML (YYYY-MM-DD или с временем).
var importDateLayouts = []string{"2006-01-02 15:04", "2006-01-02"}

// ContentFile — структура YAML-файла каталога.
type ContentFile struct {
	Authors     []AuthorEntry    `yaml:"autori"`
	Works       []WorkEntry      `yaml:"opere"`
	Events      []EventEntry     `yaml:"eventi"`
	News        []NewsEntry      `yaml:"notizie"`
	Documents   []DocumentEntry  `yaml:"documenti"`
	Itineraries []ItineraryEntry `yaml:"itinerari"`
}

// AuthorEntry — автор в YAML.
type AuthorEntry struct {
	Name string `yaml:"nome"`
	Slug string `yaml:"slug"`
}

// WorkEntry — произведение в YAML. Author — slug автора из того же файла
// или уже сохранённого ранее.
type WorkEntry struct {
	Slug           string                             `yaml:"slug"`
	Author         string                             `yaml:"autore"`
	Year           *int                               `yaml:"anno"`
	WikisourceLink string                             `yaml:"link_wikisource"`
	Cover          string                             `yaml:"copertina"`
	Texts          model.Translations[model.WorkText] `yaml:"traduzioni"`
}

// EventEntry — событие в YAML.
type EventEntry struct {
	Slug     string                              `yaml:"slug"`
	StartsAt string                              `yaml:"data_inizio"`
	EndsAt   string                              `yaml:"data_fine"`
	Image    string                              `yaml:"immagine"`
	Inactive bool                                `yaml:"disattivo"`
	Texts    model.Translations[model.EventText] `yaml:"traduzioni"`
}

// NewsEntry — новость в YAML.
type NewsEntry struct {
	Slug        string                             `yaml:"slug"`
	PublishedAt string                             `yaml:"data_pubblicazione"`
	Image       string                             `yaml:"immagine"`
	Inactive    bool                               `yaml:"disattivo"`
	Texts       model.Translations[model.NewsText] `yaml:"traduzioni"`
}

// DocumentEntry — документ в YAML.
type DocumentEntry struct {
	Slug        string                                 `yaml:"slug"`
	Kind        string                                 `yaml:"tipo"`
	Authors     string                                 `yaml:"autori"`
	Year        *int                                   `yaml:"anno"`
	PDF         string                                 `yaml:"pdf"`
	Preview     string                                 `yaml:"anteprima"`
	PublishedAt string                                 `yaml:"data_pubblicazione"`
	Inactive    bool                                   `yaml:"disattivo"`
	Texts       model.Translations[model.DocumentText] `yaml:"traduzioni"`
}

// ItineraryEntry — маршрут в YAML.
type ItineraryEntry struct {
	Slug       string                                  `yaml:"slug"`
	Kind       string                                  `yaml:"tipo"`
	Order      int                                     `yaml:"ordine"`
	Duration   string                                  `yaml:"durata_stimata"`
	Difficulty string                                  `yaml:"difficolta"`
	Color      string                                  `yaml:"colore_percorso"`
	MapsLink   string                                  `yaml:"link_maps"`
	Image      string                                  `yaml:"immagine"`
	Inactive   bool                                    `yaml:"disattivo"`
	Stops      []model.Stop                            `yaml:"tappe"`
	Texts      model.Translations[model.ItineraryText] `yaml:"traduzioni"`
}

// ImportStats — число сохранённых записей по видам.
type ImportStats struct {
	Authors, Works, Events, News, Documents, Itineraries int
}

// Total — всего записей.
func (s ImportStats) Total() int {
	return s.Authors + s.Works + s.Events + s.News + s.Documents + s.Itineraries
}

// ContentImporter сохраняет каталог из YAML.
type ContentImporter struct {
	tx     TxRunner
	txRepo func(db repository.DBTX) repository.ContentRepository
	loc    *time.Location
	logger *slog.Logger
}

// NewContentImporter создаёт импортёр. Даты без пояса читаются в loc.
func NewContentImporter(
	tx TxRunner,
	txRepo func(db repository.DBTX) repository.ContentRepository,
	loc *time.Location,
	logger *slog.Logger,
) *ContentImporter {
	if loc == nil {
		loc = time.UTC
	}
	return &ContentImporter{
		tx:     tx,
		txRepo: txRepo,
		loc:    loc,
		logger: logger.With(slog.String("component", "content_import")),
	}
}

// ParseContentFile читает YAML-файл каталога.
func ParseContentFile(r io.Reader) (*ContentFile, error) {
	var f ContentFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("%w: разбор YAML каталога: %w", ErrValidation, err)
	}
	return &f, nil
}

// Import сохраняет все записи файла в одной транзакции.
func (im *ContentImporter) Import(ctx context.Context, f *ContentFile) (ImportStats, error) {
	var stats ImportStats
	err := im.tx.RunInTx(ctx, func(db repository.DBTX) error {
		stats = ImportStats{}
		repo := im.txRepo(db)
		authors := make(map[string]model.Author, len(f.Authors))

		for _, e := range f.Authors {
			a := &model.Author{Name: e.Name, Slug: e.Slug}
			if err := requireSlug("autore", a.Slug); err != nil {
				return err
			}
			if err := repo.UpsertAuthor(ctx, a); err != nil {
				return err
			}
			authors[a.Slug] = *a
			stats.Authors++
		}

		for _, e := range f.Works {
			if err := requireSlug("opera", e.Slug); err != nil {
				return err
			}
			w := &model.Work{
				Slug:           e.Slug,
				Author:         model.Author{Slug: e.Author},
				Year:           e.Year,
				WikisourceLink: e.WikisourceLink,
				Cover:          e.Cover,
				Texts:          e.Texts,
			}
			if a, ok := authors[e.Author]; ok {
				w.Author = a
			}
			if err := repo.UpsertWork(ctx, w); err != nil {
				return err
			}
			stats.Works++
		}

		for _, e := range f.Events {
			ev, err := im.event(e)
			if err != nil {
				return err
			}
			if err := repo.UpsertEvent(ctx, ev); err != nil {
				return err
			}
			stats.Events++
		}

		for _, e := range f.News {
			if err := requireSlug("notizia", e.Slug); err != nil {
				return err
			}
			published, err := im.parseDate(e.Slug, e.PublishedAt)
			if err != nil {
				return err
			}
			n := &model.News{Slug: e.Slug, PublishedAt: published, Image: e.Image, Active: !e.Inactive, Texts: e.Texts}
			if err := repo.UpsertNews(ctx, n); err != nil {
				return err
			}
			stats.News++
		}

		for _, e := range f.Documents {
			d, err := im.document(e)
			if err != nil {
				return err
			}
			if err := repo.UpsertDocument(ctx, d); err != nil {
				return err
			}
			stats.Documents++
		}

		for _, e := range f.Itineraries {
			it, err := itinerary(e)
			if err != nil {
				return err
			}
			if err := repo.UpsertItinerary(ctx, it); err != nil {
				return err
			}
			stats.Itineraries++
		}
		return nil
	})
	if err != nil {
		return ImportStats{}, fmt.Errorf("импорт каталога: %w", err)
	}

	im.logger.Info("Каталог импортирован",
		slog.Int("authors", stats.Authors),
		slog.Int("works", stats.Works),
		slog.Int("events", stats.Events),
		slog.Int("news", stats.News),
		slog.Int("documents", stats.Documents),
		slog.Int("itineraries", stats.Itineraries),
	)
	return stats, nil
}

func (im *ContentImporter) event(e EventEntry) (*model.Event, error) {
	if err := requireSlug("evento", e.Slug); err != nil {
		return nil, err
	}
	starts, err := im.parseDate(e.Slug, e.StartsAt)
	if err != nil {
		return nil, err
	}
	ev := &model.Event{Slug: e.Slug, StartsAt: starts, Image: e.Image, Active: !e.Inactive, Texts: e.Texts}
	if e.EndsAt != "" {
		ends, err := im.parseDate(e.Slug, e.EndsAt)
		if err != nil {
			return nil, err
		}
		if ends.Before(starts) {
			return nil, fmt.Errorf("%w: evento %s: data_fine раньше data_inizio", ErrValidation, e.Slug)
		}
		ev.EndsAt = &ends
	}
	return ev, nil
}

func (im *ContentImporter) document(e DocumentEntry) (*model.Document, error) {
	if err := requireSlug("documento", e.Slug); err != nil {
		return nil, err
	}
	kind := model.DocumentKind(e.Kind)
	if e.Kind == "" {
		kind = model.DocumentGeneric
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: documento %s: неизвестный tipo %q", ErrValidation, e.Slug, e.Kind)
	}
	published, err := im.parseDate(e.Slug, e.PublishedAt)
	if err != nil {
		return nil, err
	}
	return &model.Document{
		Slug:        e.Slug,
		Kind:        kind,
		Authors:     e.Authors,
		Year:        e.Year,
		PDF:         e.PDF,
		Preview:     e.Preview,
		PublishedAt: published,
		Active:      !e.Inactive,
		Texts:       e.Texts,
	}, nil
}

func itinerary(e ItineraryEntry) (*model.Itinerary, error) {
	if err := requireSlug("itinerario", e.Slug); err != nil {
		return nil, err
	}
	kind := model.ItineraryKind(e.Kind)
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: itinerario %s: неизвестный tipo %q", ErrValidation, e.Slug, e.Kind)
	}
	difficulty := model.Difficulty(e.Difficulty)
	switch difficulty {
	case "":
		difficulty = model.DifficultyEasy
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
	default:
		return nil, fmt.Errorf("%w: itinerario %s: неизвестная difficolta %q", ErrValidation, e.Slug, e.Difficulty)
	}
	color := e.Color
	if color == "" {
		color = model.DefaultRouteColor
	}
	stops := e.Stops
	if stops == nil {
		stops = []model.Stop{}
	}
	return &model.Itinerary{
		Slug:       e.Slug,
		Kind:       kind,
		Order:      e.Order,
		Duration:   e.Duration,
		Difficulty: difficulty,
		Color:      color,
		MapsLink:   e.MapsLink,
		Image:      e.Image,
		Active:     !e.Inactive,
		Stops:      stops,
		Texts:      e.Texts,
	}, nil
}

// parseDate разбирает дату записи slug; пустая строка недопустима.
func (im *ContentImporter) parseDate(slug, s string) (time.Time, error) {
	for _, layout := range importDateLayouts {
		if t, err := time.ParseInLocation(layout, s, im.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s: некорректная дата %q", ErrValidation, slug, s)
}

func requireSlug(kind, slug string) error {
	if slug == "" {
		return fmt.Errorf("%w: %s без slug", ErrValidation, kind)
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
)

// ContentRepository — каталог контента (только активные записи в выборках).
// Переводы хранятся в JSONB-колонке traduzioni.
type ContentRepository interface {
	UpsertAuthor(ctx context.Context, a *model.Author) error

	ListWorks(ctx context.Context, q string) ([]*model.Work, error)
	GetWorkBySlug(ctx context.Context, slug string) (*model.Work, error)
	// UpsertWork — автор ищется по w.Author.Slug, при отсутствии ErrNotFound.
	UpsertWork(ctx context.Context, w *model.Work) error

	// ListEvents — события от начала >= from (upcoming=true, по возрастанию)
	// или начавшиеся раньше from (upcoming=false, по убыванию).
	ListEvents(ctx context.Context, from time.Time, upcoming bool, limit int) ([]*model.Event, error)
	GetEventBySlug(ctx context.Context, slug string) (*model.Event, error)
	UpsertEvent(ctx context.Context, e *model.Event) error

	ListNews(ctx context.Context, limit int) ([]*model.News, error)
	GetNewsBySlug(ctx context.Context, slug string) (*model.News, error)
	UpsertNews(ctx context.Context, n *model.News) error

	ListDocuments(ctx context.Context, kind *model.DocumentKind, q string) ([]*model.Document, error)
	GetDocumentBySlug(ctx context.Context, slug string) (*model.Document, error)
	UpsertDocument(ctx context.Context, d *model.Document) error

	ListItineraries(ctx context.Context, kind *model.ItineraryKind) ([]*model.Itinerary, error)
	GetItineraryBySlug(ctx context.Context, slug string) (*model.Itinerary, error)
	UpsertItinerary(ctx context.Context, it *model.Itinerary) error
}

type contentRepo struct {
	db DBTX
}

// NewContentRepository создаёт репозиторий каталога.
func NewContentRepository(db DBTX) ContentRepository {
	return &contentRepo{db: db}
}

// notFound переводит pgx.ErrNoRows в ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("ошибка получения %s: %w", what, err)
}

// nonNil гарантирует пустой JSON-объект вместо NULL.
func nonNil[T any](t model.Translations[T]) model.Translations[T] {
	if t == nil {
		return model.Translations[T]{}
	}
	return t
}

// --- Авторы ---

func (r *contentRepo) UpsertAuthor(ctx context.Context, a *model.Author) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO autori (nome, slug) VALUES ($1, $2)
		ON CONFLICT (slug) DO UPDATE SET nome = EXCLUDED.nome
		RETURNING id`, a.Name, a.Slug).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("ошибка сохранения автора %s: %w", a.Slug, err)
	}
	return nil
}

// --- Произведения ---

const workColumns = `o.id, o.slug, o.anno, o.link_wikisource, o.copertina, o.traduzioni,
	a.id, a.nome, a.slug`

func scanWork(row pgx.Row) (*model.Work, error) {
	w := &model.Work{}
	err := row.Scan(&w.ID, &w.Slug, &w.Year, &w.WikisourceLink, &w.Cover, &w.Texts,
		&w.Author.ID, &w.Author.Name, &w.Author.Slug)
	return w, err
}

func (r *contentRepo) ListWorks(ctx context.Context, q string) ([]*model.Work, error) {
	w := &whereBuilder{}
	if q != "" {
		w.add(`(a.nome ILIKE ? OR EXISTS (
			SELECT 1 FROM jsonb_each(o.traduzioni) t WHERE t.value->>'titolo' ILIKE ?))`,
			likePattern(q))
	}
	query := fmt.Sprintf(`SELECT %s FROM opere o JOIN autori a ON a.id = o.autore_id %s
		ORDER BY o.anno NULLS LAST, o.slug`, workColumns, w.clause())

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения произведений: %w", err)
	}
	defer rows.Close()

	result := make([]*model.Work, 0)
	for rows.Next() {
		work, err := scanWork(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования произведения: %w", err)
		}
		result = append(result, work)
	}
	return result, rows.Err()
}

func (r *contentRepo) GetWorkBySlug(ctx context.Context, slug string) (*model.Work, error) {
	work, err := scanWork(r.db.QueryRow(ctx,
		`SELECT `+workColumns+` FROM opere o JOIN autori a ON a.id = o.autore_id WHERE o.slug = $1`, slug))
	if err != nil {
		return nil, notFound(err, "произведения")
	}
	return work, nil
}

func (r *contentRepo) UpsertWork(ctx context.Context, w *model.Work) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO opere (slug, autore_id, anno, link_wikisource, copertina, traduzioni)
		SELECT $1, a.id, $3, $4, $5, $6 FROM autori a WHERE a.slug = $2
		ON CONFLICT (slug) DO UPDATE SET
			autore_id = EXCLUDED.autore_id, anno = EXCLUDED.anno,
			link_wikisource = EXCLUDED.link_wikisource, copertina = EXCLUDED.copertina,
			traduzioni = EXCLUDED.traduzioni
		RETURNING id, autore_id`,
		w.Slug, w.Author.Slug, w.Year, w.WikisourceLink, w.Cover, nonNil(w.Texts),
	).Scan(&w.ID, &w.Author.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: автор %q произведения %s", ErrNotFound, w.Author.Slug, w.Slug)
	}
	if err != nil {
		return fmt.Errorf("ошибка сохранения произведения %s: %w", w.Slug, err)
	}
	return nil
}

// --- События ---

const eventColumns = `id, slug, data_inizio, data_fine, immagine, is_active, traduzioni`

func scanEvent(row pgx.Row) (*model.Event, error) {
	e := &model.Event{}
	err := row.Scan(&e.ID, &e.Slug, &e.StartsAt, &e.EndsAt, &e.Image, &e.Active, &e.Texts)
	return e, err
}

func (r *contentRepo) ListEvents(ctx context.Context, from time.Time, upcoming bool, limit int) ([]*model.Event, error) {
	cond, order := `data_inizio >= $1`, `data_inizio ASC`
	if !upcoming {
		cond, order = `data_inizio < $1`, `data_inizio DESC`
	}
	query := fmt.Sprintf(`SELECT %s FROM eventi WHERE is_active AND %s ORDER BY %s, id LIMIT $2`,
		eventColumns, cond, order)

	// LIMIT NULL — без ограничения
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := r.db.Query(ctx, query, from, lim)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения событий: %w", err)
	}
	defer rows.Close()

	result := make([]*model.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования события: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *contentRepo) GetEventBySlug(ctx context.Context, slug string) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM eventi WHERE slug = $1 AND is_active`, slug))
	if err != nil {
		return nil, notFound(err, "события")
	}
	return e, nil
}

func (r *contentRepo) UpsertEvent(ctx context.Context, e *model.Event) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO eventi (slug, data_inizio, data_fine, immagine, is_active, traduzioni)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (slug) DO UPDATE SET
			data_inizio = EXCLUDED.data_inizio, data_fine = EXCLUDED.data_fine,
			immagine = EXCLUDED.immagine, is_active = EXCLUDED.is_active,
			traduzioni = EXCLUDED.traduzioni
		RETURNING id`,
		e.Slug, e.StartsAt, e.EndsAt, e.Image, e.Active, nonNil(e.Texts),
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("ошибка сохранения события %s: %w", e.Slug, err)
	}
	return nil
}

// --- Новости ---

const newsColumns = `id, slug, data_pubblicazione, immagine, is_active, traduzioni`

func scanNews(row pgx.Row) (*model.News, error) {
	n := &model.News{}
	err := row.Scan(&n.ID, &n.Slug, &n.PublishedAt, &n.Image, &n.Active, &n.Texts)
	return n, err
}

func (r *contentRepo) ListNews(ctx context.Context, limit int) ([]*model.News, error) {
	query := `SELECT ` + newsColumns + ` FROM notizie WHERE is_active
		ORDER BY data_pubblicazione DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения новостей: %w", err)
	}
	defer rows.Close()

	result := make([]*model.News, 0)
	for rows.Next() {
		n, err := scanNews(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования новости: %w", err)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *contentRepo) GetNewsBySlug(ctx context.Context, slug string) (*model.News, error) {
	n, err := scanNews(r.db.QueryRow(ctx,
		`SELECT `+newsColumns+` FROM notizie WHERE slug = $1 AND is_active`, slug))
	if err != nil {
		return nil, notFound(err, "новости")
	}
	return n, nil
}

func (r *contentRepo) UpsertNews(ctx context.Context, n *model.News) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO notizie (slug, data_pubblicazione, immagine, is_active, traduzioni)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (slug) DO UPDATE SET
			data_pubblicazione = EXCLUDED.data_pubblicazione, immagine = EXCLUDED.immagine,
			is_active = EXCLUDED.is_active, traduzioni = EXCLUDED.traduzioni
		RETURNING id`,
		n.Slug, n.PublishedAt, n.Image, n.Active, nonNil(n.Texts),
	).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("ошибка сохранения новости %s: %w", n.Slug, err)
	}
	return nil
}

// --- Документы ---

const documentColumns = `id, slug, tipo, autori, anno, pdf, anteprima,
	data_pubblicazione, is_active, traduzioni`

func scanDocument(row pgx.Row) (*model.Document, error) {
	d := &model.Document{}
	err := row.Scan(&d.ID, &d.Slug, &d.Kind, &d.Authors, &d.Year, &d.PDF, &d.Preview,
		&d.PublishedAt, &d.Active, &d.Texts)
	return d, err
}

func (r *contentRepo) ListDocuments(ctx context.Context, kind *model.DocumentKind, q string) ([]*model.Document, error) {
	w := &whereBuilder{conds: []string{"is_active"}}
	if kind != nil {
		w.add("tipo = ?", string(*kind))
	}
	if q != "" {
		w.add(`(autori ILIKE ? OR EXISTS (
			SELECT 1 FROM jsonb_each(traduzioni) t
			WHERE t.value->>'titolo' ILIKE ? OR t.value->>'parole_chiave' ILIKE ?))`,
			likePattern(q))
	}
	query := fmt.Sprintf(`SELECT %s FROM documenti %s ORDER BY data_pubblicazione DESC, id`,
		documentColumns, w.clause())

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения документов: %w", err)
	}
	defer rows.Close()

	result := make([]*model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования документа: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *contentRepo) GetDocumentBySlug(ctx context.Context, slug string) (*model.Document, error) {
	d, err := scanDocument(r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documenti WHERE slug = $1 AND is_active`, slug))
	if err != nil {
		return nil, notFound(err, "документа")
	}
	return d, nil
}

func (r *contentRepo) UpsertDocument(ctx context.Context, d *model.Document) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO documenti (slug, tipo, autori, anno, pdf, anteprima,
			data_pubblicazione, is_active, traduzioni)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (slug) DO UPDATE SET
			tipo = EXCLUDED.tipo, autori = EXCLUDED.autori, anno = EXCLUDED.anno,
			pdf = EXCLUDED.pdf, anteprima = EXCLUDED.anteprima,
			data_pubblicazione = EXCLUDED.data_pubblicazione,
			is_active = EXCLUDED.is_active, traduzioni = EXCLUDED.traduzioni
		RETURNING id`,
		d.Slug, string(d.Kind), d.Authors, d.Year, d.PDF, d.Preview,
		d.PublishedAt, d.Active, nonNil(d.Texts),
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("ошибка сохранения документа %s: %w", d.Slug, err)
	}
	return nil
}

// --- Маршруты ---

const itineraryColumns = `id, slug, tipo, ordine, durata, difficolta, colore,
	link_maps, immagine, is_active, tappe, traduzioni`

func scanItinerary(row pgx.Row) (*model.Itinerary, error) {
	it := &model.Itinerary{}
	err := row.Scan(&it.ID, &it.Slug, &it.Kind, &it.Order, &it.Duration, &it.Difficulty,
		&it.Color, &it.MapsLink, &it.Image, &it.Active, &it.Stops, &it.Texts)
	return it, err
}

func (r *contentRepo) ListItineraries(ctx context.Context, kind *model.ItineraryKind) ([]*model.Itinerary, error) {
	w := &whereBuilder{conds: []string{"is_active"}}
	if kind != nil {
		w.add("tipo = ?", string(*kind))
	}
	query := fmt.Sprintf(`SELECT %s FROM itinerari %s ORDER BY ordine, id`,
		itineraryColumns, w.clause())

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения маршрутов: %w", err)
	}
	defer rows.Close()

	result := make([]*model.Itinerary, 0)
	for rows.Next() {
		it, err := scanItinerary(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования маршрута: %w", err)
		}
		result = append(result, it)
	}
	return result, rows.Err()
}

func (r *contentRepo) GetItineraryBySlug(ctx context.Context, slug string) (*model.Itinerary, error) {
	it, err := scanItinerary(r.db.QueryRow(ctx,
		`SELECT `+itineraryColumns+` FROM itinerari WHERE slug = $1 AND is_active`, slug))
	if err != nil {
		return nil, notFound(err, "маршрута")
	}
	return it, nil
}

func (r *contentRepo) UpsertItinerary(ctx context.Context, it *model.Itinerary) error {
	stops := it.Stops
	if stops == nil {
		stops = []model.Stop{}
	}
	color := it.Color
	if color == "" {
		color = model.DefaultRouteColor
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO itinerari (slug, tipo, ordine, durata, difficolta, colore,
			link_maps, immagine, is_active, tappe, traduzioni)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (slug) DO UPDATE SET
			tipo = EXCLUDED.tipo, ordine = EXCLUDED.ordine, durata = EXCLUDED.durata,
			difficolta = EXCLUDED.difficolta, colore = EXCLUDED.colore,
			link_maps = EXCLUDED.link_maps, immagine = EXCLUDED.immagine,
			is_active = EXCLUDED.is_active, tappe = EXCLUDED.tappe,
			traduzioni = EXCLUDED.traduzioni
		RETURNING id`,
		it.Slug, string(it.Kind), it.Order, it.Duration, string(it.Difficulty), color,
		it.MapsLink, it.Image, it.Active, stops, nonNil(it.Texts),
	).Scan(&it.ID)
	if err != nil {
		return fmt.Errorf("ошибка сохранения маршрута %s: %w", it.Slug, err)
	}
	it.Color = color
	return nil
}

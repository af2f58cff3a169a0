package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
)

// RequestFilter — фильтры списка запросов. Пустые поля не применяются.
type RequestFilter struct {
	Status   *model.Status
	Priority *model.Priority
	// CreatedFrom — нижняя граница data_richiesta (включительно)
	CreatedFrom *time.Time
	// CreatedTo — верхняя граница data_richiesta (не включительно)
	CreatedTo *time.Time
	// Query — подстрока для поиска по текстовым полям (ILIKE)
	Query string
	// IDs — ограничение выборки конкретными UUID
	IDs []string
}

// RequestRepository — доступ к таблице richieste.
// Удаление не предусмотрено: запросы посетителей хранятся бессрочно.
type RequestRepository interface {
	// Create вставляет новую запись. CreatedAt и UpdatedAt проставляет БД.
	Create(ctx context.Context, r *model.Request) error
	// GetByID возвращает запись по UUID.
	GetByID(ctx context.Context, id string) (*model.Request, error)
	// GetForUpdate возвращает запись с блокировкой строки. Только внутри транзакции.
	GetForUpdate(ctx context.Context, id string) (*model.Request, error)
	// List возвращает записи по фильтру в порядке приоритета. limit <= 0 — без ограничения.
	List(ctx context.Context, f RequestFilter, limit, offset int) ([]*model.Request, error)
	// Count возвращает количество записей по фильтру.
	Count(ctx context.Context, f RequestFilter) (int, error)
	// Update сохраняет изменяемые персоналом поля. CreatedAt не пишется никогда.
	Update(ctx context.Context, r *model.Request) error
	// BulkSetStatus выставляет статус записям ids и возвращает их прежние статусы.
	// Пустой actor не меняет ответственного.
	BulkSetStatus(ctx context.Context, ids []string, status model.Status, actor string, now time.Time) ([]model.Status, error)
	// BulkSetPriority выставляет приоритет и возвращает число изменённых записей.
	BulkSetPriority(ctx context.Context, ids []string, priority model.Priority, now time.Time) (int, error)
	// CountByStatus возвращает количество записей по каждому статусу.
	CountByStatus(ctx context.Context) (map[model.Status]int, error)
	// CountUrgent — записи с приоритетом alta в нетерминальном статусе.
	CountUrgent(ctx context.Context) (int, error)
	// CountSince — записи, созданные начиная с since.
	CountSince(ctx context.Context, since time.Time) (int, error)
	// ListUrgent — срочные записи, новые сверху.
	ListUrgent(ctx context.Context, limit int) ([]*model.Request, error)
	// ListActive — нетерминальные записи по data_richiesta (asc или desc).
	ListActive(ctx context.Context, oldestFirst bool, limit int) ([]*model.Request, error)
	// ListCancelled — отменённые записи по ultima_modifica desc.
	ListCancelled(ctx context.Context, limit int) ([]*model.Request, error)
}

type requestRepo struct {
	db DBTX
}

// NewRequestRepository создаёт репозиторий запросов.
func NewRequestRepository(db DBTX) RequestRepository {
	return &requestRepo{db: db}
}

const requestColumns = `id, nome, cognome, email, ente, oggetto, messaggio,
	stato, priorita, data_richiesta, data_completamento, ultima_modifica,
	responsabile, guida_assegnata, note_admin`

// priorityOrder — сортировка по рангу приоритета, затем новые сверху.
const priorityOrder = `ORDER BY CASE priorita WHEN 'alta' THEN 3 WHEN 'media' THEN 2 ELSE 1 END DESC,
	data_richiesta DESC, id`

// nonTerminal — условие «статус не терминальный».
const nonTerminal = `stato NOT IN ('completata', 'cancellata')`

func scanRequest(row pgx.Row) (*model.Request, error) {
	r := &model.Request{}
	err := row.Scan(
		&r.ID, &r.FirstName, &r.LastName, &r.Email, &r.Organization, &r.Subject, &r.Message,
		&r.Status, &r.Priority, &r.CreatedAt, &r.CompletedAt, &r.UpdatedAt,
		&r.Assignee, &r.Guide, &r.AdminNotes,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func collectRequests(rows pgx.Rows) ([]*model.Request, error) {
	defer rows.Close()

	result := make([]*model.Request, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования запроса: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (r *requestRepo) Create(ctx context.Context, req *model.Request) error {
	query := `
		INSERT INTO richieste (id, nome, cognome, email, ente, oggetto, messaggio,
			stato, priorita, data_completamento, responsabile, guida_assegnata, note_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING data_richiesta, ultima_modifica`

	err := r.db.QueryRow(ctx, query,
		req.ID, req.FirstName, req.LastName, req.Email, req.Organization, req.Subject, req.Message,
		req.Status, req.Priority, req.CompletedAt, req.Assignee, req.Guide, req.AdminNotes,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: запрос %s уже существует", ErrConflict, req.ID)
		}
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	return nil
}

func (r *requestRepo) GetByID(ctx context.Context, id string) (*model.Request, error) {
	return r.get(ctx, `SELECT `+requestColumns+` FROM richieste WHERE id = $1`, id)
}

func (r *requestRepo) GetForUpdate(ctx context.Context, id string) (*model.Request, error) {
	return r.get(ctx, `SELECT `+requestColumns+` FROM richieste WHERE id = $1 FOR UPDATE`, id)
}

func (r *requestRepo) get(ctx context.Context, query, id string) (*model.Request, error) {
	req, err := scanRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения запроса: %w", err)
	}
	return req, nil
}

// buildRequestWhere строит WHERE по фильтру.
func buildRequestWhere(f RequestFilter) *whereBuilder {
	w := &whereBuilder{}
	if f.Status != nil {
		w.add("stato = ?", string(*f.Status))
	}
	if f.Priority != nil {
		w.add("priorita = ?", string(*f.Priority))
	}
	if f.CreatedFrom != nil {
		w.add("data_richiesta >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		w.add("data_richiesta < ?", *f.CreatedTo)
	}
	if f.Query != "" {
		w.add(`(nome ILIKE ? OR cognome ILIKE ? OR email ILIKE ? OR messaggio ILIKE ?
			OR oggetto ILIKE ? OR ente ILIKE ?
			OR COALESCE(note_admin, '') ILIKE ? OR COALESCE(guida_assegnata, '') ILIKE ?)`,
			likePattern(f.Query))
	}
	if f.IDs != nil {
		w.add("id = ANY(?::uuid[])", f.IDs)
	}
	return w
}

func (r *requestRepo) List(ctx context.Context, f RequestFilter, limit, offset int) ([]*model.Request, error) {
	w := buildRequestWhere(f)

	query := fmt.Sprintf(`SELECT %s FROM richieste %s %s`, requestColumns, w.clause(), priorityOrder)
	args := w.args
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, w.next(), w.next()+1)
		args = append(args, limit, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка запросов: %w", err)
	}
	return collectRequests(rows)
}

func (r *requestRepo) Count(ctx context.Context, f RequestFilter) (int, error) {
	w := buildRequestWhere(f)

	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM richieste `+w.clause(), w.args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта запросов: %w", err)
	}
	return count, nil
}

func (r *requestRepo) Update(ctx context.Context, req *model.Request) error {
	query := `
		UPDATE richieste
		SET stato = $2, priorita = $3, data_completamento = $4,
			responsabile = $5, guida_assegnata = $6, note_admin = $7,
			ultima_modifica = now()
		WHERE id = $1
		RETURNING ultima_modifica`

	err := r.db.QueryRow(ctx, query,
		req.ID, req.Status, req.Priority, req.CompletedAt,
		req.Assignee, req.Guide, req.AdminNotes,
	).Scan(&req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления запроса: %w", err)
	}
	return nil
}

func (r *requestRepo) BulkSetStatus(ctx context.Context, ids []string, status model.Status, actor string, now time.Time) ([]model.Status, error) {
	if len(ids) == 0 {
		return []model.Status{}, nil
	}

	query := `
		WITH prev AS (
			SELECT id, stato FROM richieste WHERE id = ANY($1::uuid[]) FOR UPDATE
		)
		UPDATE richieste r
		SET stato = $2::varchar,
			responsabile = CASE WHEN $3::varchar <> '' THEN $3::varchar ELSE r.responsabile END,
			data_completamento = CASE
				WHEN $2::varchar = 'completata' AND r.data_completamento IS NULL THEN $4::timestamptz
				ELSE r.data_completamento END,
			ultima_modifica = $4::timestamptz
		FROM prev
		WHERE r.id = prev.id
		RETURNING prev.stato`

	rows, err := r.db.Query(ctx, query, ids, string(status), actor, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка массовой смены статуса: %w", err)
	}
	defer rows.Close()

	previous := make([]model.Status, 0, len(ids))
	for rows.Next() {
		var s model.Status
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("ошибка сканирования статуса: %w", err)
		}
		previous = append(previous, s)
	}
	return previous, rows.Err()
}

func (r *requestRepo) BulkSetPriority(ctx context.Context, ids []string, priority model.Priority, now time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE richieste SET priorita = $2, ultima_modifica = $3 WHERE id = ANY($1::uuid[])`,
		ids, string(priority), now,
	)
	if err != nil {
		return 0, fmt.Errorf("ошибка массовой смены приоритета: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *requestRepo) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := r.db.Query(ctx, `SELECT stato, COUNT(*) FROM richieste GROUP BY stato`)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта по статусам: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Status]int, len(model.AllStatuses))
	for _, s := range model.AllStatuses {
		counts[s] = 0
	}
	for rows.Next() {
		var (
			s model.Status
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("ошибка сканирования счётчика: %w", err)
		}
		counts[s] = n
	}
	return counts, rows.Err()
}

func (r *requestRepo) CountUrgent(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM richieste WHERE priorita = 'alta' AND `+nonTerminal,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта срочных запросов: %w", err)
	}
	return n, nil
}

func (r *requestRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM richieste WHERE data_richiesta >= $1`, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта новых запросов: %w", err)
	}
	return n, nil
}

func (r *requestRepo) ListUrgent(ctx context.Context, limit int) ([]*model.Request, error) {
	return r.listWhere(ctx,
		`priorita = 'alta' AND `+nonTerminal, `data_richiesta DESC`, limit)
}

func (r *requestRepo) ListActive(ctx context.Context, oldestFirst bool, limit int) ([]*model.Request, error) {
	order := `data_richiesta DESC`
	if oldestFirst {
		order = `data_richiesta ASC`
	}
	return r.listWhere(ctx, nonTerminal, order, limit)
}

func (r *requestRepo) ListCancelled(ctx context.Context, limit int) ([]*model.Request, error) {
	return r.listWhere(ctx, `stato = 'cancellata'`, `ultima_modifica DESC`, limit)
}

// listWhere — выборка по фиксированному условию и сортировке.
func (r *requestRepo) listWhere(ctx context.Context, where, order string, limit int) ([]*model.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM richieste WHERE %s ORDER BY %s, id LIMIT $1`,
		requestColumns, where, order)

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения запросов: %w", err)
	}
	return collectRequests(rows)
}

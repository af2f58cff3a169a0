// triage.go — обработка заявок персоналом: список, фильтры, поиск,
// редактирование, массовые действия. Создания и удаления здесь нет.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/display"
	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/lifecycle"
	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
	"github.com/luigimeli-max/sito-parco-verismo/internal/i18n"
	"github.com/luigimeli-max/sito-parco-verismo/internal/repository"
)

// Размеры страницы списка.
const (
	DefaultPageSize = 25
	MaxPageSize     = 200
)

// dateLayout — формат дат в фильтрах (YYYY-MM-DD).
const dateLayout = "2006-01-02"

// TxRunner выполняет fn в транзакции.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx repository.DBTX) error) error
}

// RequestQuery — параметры выборки заявок в том виде, в каком их передают
// HTTP и CLI. Пустые поля не фильтруют.
type RequestQuery struct {
	Status   string
	Priority string
	// CreatedFrom, CreatedTo — даты YYYY-MM-DD включительно, в поясе сервиса
	CreatedFrom string
	CreatedTo   string
	Query       string
	// IDs — если задано, выборка ограничена этими заявками
	IDs []string
}

// RequestPatch — изменения заявки персоналом. nil — поле не меняется,
// пустая строка в необязательном поле очищает его.
type RequestPatch struct {
	Status     *model.Status
	Priority   *model.Priority
	Assignee   *string
	Guide      *string
	AdminNotes *string
}

// ListResult — страница списка заявок.
type ListResult struct {
	Items  []*model.Request
	Total  int
	Limit  int
	Offset int
}

// BulkAction — массовое действие над выбранными заявками.
type BulkAction string

const (
	ActionInProgress   BulkAction = "in_lavorazione"
	ActionConfirm      BulkAction = "confermata"
	ActionComplete     BulkAction = "completata"
	ActionHighPriority BulkAction = "priorita_alta"
)

// AllBulkActions — все массовые действия.
var AllBulkActions = []BulkAction{ActionInProgress, ActionConfirm, ActionComplete, ActionHighPriority}

// IsValid проверяет действие.
func (a BulkAction) IsValid() bool {
	for _, v := range AllBulkActions {
		if a == v {
			return true
		}
	}
	return false
}

// BulkResult — итог массового действия.
type BulkResult struct {
	Action   BulkAction
	Affected int
	// Message — локализованное сообщение вида «N richieste confermate.»
	Message string
}

// TriageService — операции персонала над заявками.
type TriageService struct {
	repo     repository.RequestRepository
	tx       TxRunner
	txRepo   func(db repository.DBTX) repository.RequestRepository
	registry *display.Registry
	bundle   *i18n.Bundle
	loc      *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// NewTriageService создаёт сервис. txRepo строит репозиторий поверх транзакции.
func NewTriageService(
	repo repository.RequestRepository,
	tx TxRunner,
	txRepo func(db repository.DBTX) repository.RequestRepository,
	registry *display.Registry,
	bundle *i18n.Bundle,
	loc *time.Location,
	logger *slog.Logger,
) *TriageService {
	if loc == nil {
		loc = time.UTC
	}
	return &TriageService{
		repo:     repo,
		tx:       tx,
		txRepo:   txRepo,
		registry: registry,
		bundle:   bundle,
		loc:      loc,
		logger:   logger.With(slog.String("component", "triage")),
		now:      time.Now,
	}
}

// Location возвращает часовой пояс сервиса.
func (s *TriageService) Location() *time.Location {
	return s.loc
}

// Registry возвращает реестр колонок.
func (s *TriageService) Registry() *display.Registry {
	return s.registry
}

// Now — текущее время сервиса.
func (s *TriageService) Now() time.Time {
	return s.now()
}

// filter преобразует RequestQuery в фильтр репозитория.
func (s *TriageService) filter(q RequestQuery) (repository.RequestFilter, error) {
	var f repository.RequestFilter

	if q.IDs != nil {
		f.IDs = validIDs(q.IDs)
		return f, nil
	}

	if q.Status != "" {
		st := model.Status(q.Status)
		if !st.IsValid() {
			return f, fmt.Errorf("%w: недопустимый статус %q", ErrValidation, q.Status)
		}
		f.Status = &st
	}
	if q.Priority != "" {
		p := model.Priority(q.Priority)
		if !p.IsValid() {
			return f, fmt.Errorf("%w: недопустимый приоритет %q", ErrValidation, q.Priority)
		}
		f.Priority = &p
	}
	if q.CreatedFrom != "" {
		from, err := time.ParseInLocation(dateLayout, q.CreatedFrom, s.loc)
		if err != nil {
			return f, fmt.Errorf("%w: дата %q: ожидается YYYY-MM-DD", ErrValidation, q.CreatedFrom)
		}
		f.CreatedFrom = &from
	}
	if q.CreatedTo != "" {
		to, err := time.ParseInLocation(dateLayout, q.CreatedTo, s.loc)
		if err != nil {
			return f, fmt.Errorf("%w: дата %q: ожидается YYYY-MM-DD", ErrValidation, q.CreatedTo)
		}
		end := to.AddDate(0, 0, 1)
		f.CreatedTo = &end
	}
	f.Query = strings.TrimSpace(q.Query)
	return f, nil
}

// validIDs оставляет корректные UUID без повторов. Результат не nil.
func validIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		parsed, err := uuid.Parse(strings.TrimSpace(id))
		if err != nil {
			continue
		}
		key := parsed.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// List возвращает страницу заявок по фильтру в порядке приоритета.
func (s *TriageService) List(ctx context.Context, q RequestQuery, limit, offset int) (*ListResult, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	f, err := s.filter(q)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("список заявок: %w", err)
	}
	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("подсчёт заявок: %w", err)
	}

	return &ListResult{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Get возвращает заявку по ID.
func (s *TriageService) Get(ctx context.Context, id string) (*model.Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: заявка %s", ErrNotFound, id)
	}
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: заявка %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("получение заявки: %w", err)
	}
	return r, nil
}

// Update применяет изменения персонала в транзакции с блокировкой строки:
// смена статуса по жизненному циклу, затем автоназначение ответственного.
func (s *TriageService) Update(ctx context.Context, id string, patch RequestPatch, actor string) (*model.Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: заявка %s", ErrNotFound, id)
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return nil, fmt.Errorf("%w: недопустимый статус %q", ErrValidation, *patch.Status)
	}
	if patch.Priority != nil && !patch.Priority.IsValid() {
		return nil, fmt.Errorf("%w: недопустимый приоритет %q", ErrValidation, *patch.Priority)
	}

	var updated *model.Request
	err := s.tx.RunInTx(ctx, func(db repository.DBTX) error {
		repo := s.txRepo(db)

		r, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		statusChanged := false
		if patch.Status != nil {
			tr := lifecycle.Apply(r, *patch.Status, s.now())
			statusChanged = tr.Changed
			s.observeTransition(r.ID, tr.From, tr.To, tr.Forward, actor)
		}
		if patch.Priority != nil {
			r.Priority = *patch.Priority
		}
		if patch.Assignee != nil {
			r.Assignee = optional(*patch.Assignee)
		}
		if patch.Guide != nil {
			r.Guide = optional(*patch.Guide)
		}
		if patch.AdminNotes != nil {
			r.AdminNotes = optional(*patch.AdminNotes)
		}
		lifecycle.AutoAssign(r, actor, statusChanged)

		if err := repo.Update(ctx, r); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: заявка %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("обновление заявки: %w", err)
	}

	s.logger.Info("Заявка обновлена",
		slog.String("id", id),
		slog.String("actor", actor),
		slog.String("status", string(updated.Status)),
	)
	return updated, nil
}

// observeTransition логирует и считает смены статуса в обход жизненного цикла.
func (s *TriageService) observeTransition(id string, from, to model.Status, regular bool, actor string) {
	if regular {
		return
	}
	irregularTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	s.logger.Warn("Нестандартная смена статуса",
		slog.String("id", id),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("actor", actor),
	)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Bulk выполняет массовое действие над заявками ids. Неизвестные и
// некорректные ID не учитываются, пустой выбор не обращается к БД.
func (s *TriageService) Bulk(ctx context.Context, action BulkAction, ids []string, actor, lang string) (*BulkResult, error) {
	if !action.IsValid() {
		return nil, fmt.Errorf("%w: неизвестное действие %q", ErrValidation, action)
	}

	res := &BulkResult{Action: action}
	selected := validIDs(ids)
	if len(selected) > 0 {
		now := s.now()
		switch action {
		case ActionHighPriority:
			n, err := s.repo.BulkSetPriority(ctx, selected, model.PriorityHigh, now)
			if err != nil {
				return nil, fmt.Errorf("массовое действие %s: %w", action, err)
			}
			res.Affected = n
		default:
			target := model.Status(action)
			previous, err := s.repo.BulkSetStatus(ctx, selected, target, actor, now)
			if err != nil {
				return nil, fmt.Errorf("массовое действие %s: %w", action, err)
			}
			for _, from := range previous {
				s.observeTransition("", from, target, lifecycle.IsForward(from, target), actor)
			}
			res.Affected = len(previous)
		}
	}

	res.Message = s.bundle.Translatef(lang, "bulk."+string(action), res.Affected)
	s.logger.Info("Массовое действие выполнено",
		slog.String("action", string(action)),
		slog.Int("selected", len(selected)),
		slog.Int("affected", res.Affected),
		slog.String("actor", actor),
	)
	return res, nil
}

// RenderContext — контекст отображения колонок для языка lang.
func (s *TriageService) RenderContext(lang string) display.RenderContext {
	return display.RenderContext{Lang: i18n.Normalize(lang), Location: s.loc, Now: s.now()}
}

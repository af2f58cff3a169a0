// Пакет display — таблица колонок для отображения записей.
// Каждая колонка — чистая функция от записи к строке, независимая от
// транспорта. Используется CSV-экспортом и списком запросов staff API.
package display

import (
	"fmt"
	"sync"
	"time"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
)

// DateLayout — формат дат в экспорте и списках (DD/MM/YYYY HH:MM).
const DateLayout = "02/01/2006 15:04"

// Имена таблиц колонок.
const (
	RequestCSV  = "richiesta.csv"
	RequestList = "richiesta.list"
)

// RenderContext — параметры отображения: язык, часовой пояс, текущее время.
type RenderContext struct {
	Lang     string
	Location *time.Location
	Now      time.Time
}

func (rc RenderContext) loc() *time.Location {
	if rc.Location == nil {
		return time.UTC
	}
	return rc.Location
}

// Column — именованная колонка. HeaderKey — ключ i18n-каталога для заголовка.
type Column struct {
	Key       string
	HeaderKey string
	Render    func(rc RenderContext, r *model.Request) string
}

// Registry — таблица «тип записи → упорядоченный набор колонок».
type Registry struct {
	mu     sync.RWMutex
	tables map[string][]Column
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string][]Column)}
}

// DefaultRegistry — реестр с таблицами экспорта и списка запросов.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.Register(RequestCSV, requestCSVColumns())
	reg.Register(RequestList, requestListColumns())
	return reg
}

// Register добавляет или заменяет таблицу колонок.
func (reg *Registry) Register(name string, cols []Column) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.tables[name] = cols
}

// Columns возвращает колонки таблицы name.
func (reg *Registry) Columns(name string) ([]Column, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	cols, ok := reg.tables[name]
	if !ok {
		return nil, fmt.Errorf("таблица колонок %q не зарегистрирована", name)
	}
	return cols, nil
}

// Row вычисляет значения всех колонок для записи r.
func Row(cols []Column, rc RenderContext, r *model.Request) []string {
	row := make([]string, len(cols))
	for i, c := range cols {
		row[i] = c.Render(rc, r)
	}
	return row
}

// RowMap — то же, что Row, но в виде «ключ колонки → значение».
func RowMap(cols []Column, rc RenderContext, r *model.Request) map[string]string {
	m := make(map[string]string, len(cols))
	for _, c := range cols {
		m[c.Key] = c.Render(rc, r)
	}
	return m
}

// --- Рендереры ---

func firstName(_ RenderContext, r *model.Request) string    { return r.FirstName }
func lastName(_ RenderContext, r *model.Request) string     { return r.LastName }
func fullName(_ RenderContext, r *model.Request) string     { return r.FullName() }
func organization(_ RenderContext, r *model.Request) string { return r.Organization }
func subject(_ RenderContext, r *model.Request) string      { return r.Subject }
func email(_ RenderContext, r *model.Request) string        { return r.Email }
func message(_ RenderContext, r *model.Request) string      { return r.Message }

func statusLabel(rc RenderContext, r *model.Request) string {
	return r.Status.Label(rc.Lang)
}

func priorityLabel(rc RenderContext, r *model.Request) string {
	return r.Priority.Label(rc.Lang)
}

func createdAt(rc RenderContext, r *model.Request) string {
	return r.CreatedAt.In(rc.loc()).Format(DateLayout)
}

func completedAt(rc RenderContext, r *model.Request) string {
	if r.CompletedAt == nil {
		return ""
	}
	return r.CompletedAt.In(rc.loc()).Format(DateLayout)
}

func assignee(_ RenderContext, r *model.Request) string {
	return model.StringOrEmpty(r.Assignee)
}

func guide(_ RenderContext, r *model.Request) string {
	return model.StringOrEmpty(r.Guide)
}

func overdueBadge(rc RenderContext, r *model.Request) string {
	if !r.IsOverdue() {
		return ""
	}
	if rc.Lang == "en" {
		return "OVERDUE"
	}
	return "RITARDO"
}

func waitingDays(rc RenderContext, r *model.Request) string {
	days := r.WaitingDays(rc.Now, rc.loc())
	if rc.Lang == "en" {
		return fmt.Sprintf("%d days", days)
	}
	return fmt.Sprintf("%d giorni", days)
}

func requestCSVColumns() []Column {
	return []Column{
		{Key: "nome", HeaderKey: "column.first_name", Render: firstName},
		{Key: "cognome", HeaderKey: "column.last_name", Render: lastName},
		{Key: "ente", HeaderKey: "column.organization", Render: organization},
		{Key: "oggetto", HeaderKey: "column.subject", Render: subject},
		{Key: "email", HeaderKey: "column.email", Render: email},
		{Key: "messaggio", HeaderKey: "column.message", Render: message},
		{Key: "stato", HeaderKey: "column.status", Render: statusLabel},
		{Key: "priorita", HeaderKey: "column.priority", Render: priorityLabel},
		{Key: "data_richiesta", HeaderKey: "column.created_at", Render: createdAt},
		{Key: "data_completamento", HeaderKey: "column.completed_at", Render: completedAt},
		{Key: "responsabile", HeaderKey: "column.assignee", Render: assignee},
	}
}

func requestListColumns() []Column {
	return []Column{
		{Key: "stato", HeaderKey: "column.status", Render: statusLabel},
		{Key: "nome_completo", HeaderKey: "column.full_name", Render: fullName},
		{Key: "ente", HeaderKey: "column.organization", Render: organization},
		{Key: "oggetto", HeaderKey: "column.subject", Render: subject},
		{Key: "email", HeaderKey: "column.email", Render: email},
		{Key: "priorita", HeaderKey: "column.priority", Render: priorityLabel},
		{Key: "ritardo", HeaderKey: "column.overdue", Render: overdueBadge},
		{Key: "guida_assegnata", HeaderKey: "column.guide", Render: guide},
		{Key: "data_richiesta", HeaderKey: "column.created_at", Render: createdAt},
		{Key: "data_completamento", HeaderKey: "column.completed_at", Render: completedAt},
		{Key: "giorni_attesa", HeaderKey: "column.waiting_days", Render: waitingDays},
	}
}

// Пакет model — доменные сущности Parco Verismo.
package model

import "time"

// Status — статус запроса посетителя. Значения хранятся в БД как есть.
type Status string

const (
	StatusNew        Status = "nuova"
	StatusInProgress Status = "in_lavorazione"
	StatusConfirmed  Status = "confermata"
	StatusCompleted  Status = "completata"
	StatusCancelled  Status = "cancellata"
)

// AllStatuses — статусы в порядке жизненного цикла.
var AllStatuses = []Status{
	StatusNew, StatusInProgress, StatusConfirmed, StatusCompleted, StatusCancelled,
}

// ActiveStatuses — нетерминальные статусы.
var ActiveStatuses = []Status{StatusNew, StatusInProgress, StatusConfirmed}

var statusLabels = map[Status]map[string]string{
	StatusNew:        {"it": "Nuova richiesta", "en": "New request"},
	StatusInProgress: {"it": "In lavorazione", "en": "In progress"},
	StatusConfirmed:  {"it": "Confermata", "en": "Confirmed"},
	StatusCompleted:  {"it": "Completata", "en": "Completed"},
	StatusCancelled:  {"it": "Cancellata", "en": "Cancelled"},
}

// IsValid проверяет принадлежность к закрытому перечислению.
func (s Status) IsValid() bool {
	_, ok := statusLabels[s]
	return ok
}

// IsTerminal — completata и cancellata.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Label возвращает отображаемое название на языке lang (it по умолчанию).
func (s Status) Label(lang string) string {
	return label(statusLabels[s], lang, string(s))
}

// Priority — приоритет запроса.
type Priority string

const (
	PriorityLow    Priority = "bassa"
	PriorityMedium Priority = "media"
	PriorityHigh   Priority = "alta"
)

// AllPriorities — приоритеты по возрастанию.
var AllPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

var priorityLabels = map[Priority]map[string]string{
	PriorityLow:    {"it": "Bassa", "en": "Low"},
	PriorityMedium: {"it": "Media", "en": "Medium"},
	PriorityHigh:   {"it": "Alta", "en": "High"},
}

var priorityRank = map[Priority]int{
	PriorityLow:    1,
	PriorityMedium: 2,
	PriorityHigh:   3,
}

// IsValid проверяет принадлежность к закрытому перечислению.
func (p Priority) IsValid() bool {
	_, ok := priorityRank[p]
	return ok
}

// Rank — вес приоритета для сортировки (alta > media > bassa).
func (p Priority) Rank() int {
	return priorityRank[p]
}

// Label возвращает отображаемое название на языке lang (it по умолчанию).
func (p Priority) Label(lang string) string {
	return label(priorityLabels[p], lang, string(p))
}

func label(labels map[string]string, lang, fallback string) string {
	if l, ok := labels[lang]; ok {
		return l
	}
	if l, ok := labels["it"]; ok {
		return l
	}
	return fallback
}

// Request — запрос посетителя с публичной формы.
// Хранится в таблице richieste. Создаётся только через публичную форму,
// никогда не удаляется.
type Request struct {
	// ID — UUID записи
	ID string
	// FirstName — имя (title case)
	FirstName string
	// LastName — фамилия (title case)
	LastName string
	// Email — адрес в нижнем регистре
	Email string
	// Organization — организация (пустая строка, если не указана)
	Organization string
	// Subject — тема
	Subject string
	// Message — текст сообщения (до 1000 символов)
	Message string
	// Status — статус жизненного цикла
	Status Status
	// Priority — приоритет
	Priority Priority
	// CreatedAt — время создания, не изменяется
	CreatedAt time.Time
	// CompletedAt — время первого перехода в completata
	CompletedAt *time.Time
	// UpdatedAt — время последнего изменения
	UpdatedAt time.Time
	// Assignee — ответственный сотрудник
	Assignee *string
	// Guide — назначенный гид
	Guide *string
	// AdminNotes — внутренние заметки персонала
	AdminNotes *string
}

// FullName — «Имя Фамилия».
func (r *Request) FullName() string {
	return r.FirstName + " " + r.LastName
}

// IsTerminal — запрос в терминальном статусе.
func (r *Request) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// IsOverdue всегда false: предпочтительная дата визита не моделируется,
// поэтому просрочить нечего.
func (r *Request) IsOverdue() bool {
	return false
}

// WaitingDays — число полных календарных дней от даты создания до даты
// завершения (для терминальных) или до now. Даты берутся в поясе loc.
func (r *Request) WaitingDays(now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	end := now
	if r.IsTerminal() && r.CompletedAt != nil {
		end = *r.CompletedAt
	}
	days := civilDate(end, loc).Sub(civilDate(r.CreatedAt, loc)) / (24 * time.Hour)
	return int(days)
}

// civilDate отбрасывает время суток, оставляя календарную дату в UTC-полночь.
func civilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StringOrEmpty разыменовывает необязательное строковое поле.
func StringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

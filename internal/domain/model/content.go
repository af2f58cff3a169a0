package model

import (
	"sort"
	"strings"
	"time"
)

// Author — автор произведений (Verga, Capuana, ...).
type Author struct {
	ID   int64
	Name string
	Slug string
}

// WorkText — переводимые поля произведения.
type WorkText struct {
	Title    string `json:"titolo" yaml:"titolo"`
	Plot     string `json:"trama" yaml:"trama"`
	Analysis string `json:"analisi,omitempty" yaml:"analisi,omitempty"`
}

// Work — литературное произведение в библиотеке парка.
type Work struct {
	ID             int64
	Slug           string
	Author         Author
	Year           *int
	WikisourceLink string
	Cover          string
	Texts          Translations[WorkText]
}

// EventText — переводимые поля события.
type EventText struct {
	Title       string `json:"titolo" yaml:"titolo"`
	Description string `json:"descrizione" yaml:"descrizione"`
	Place       string `json:"luogo" yaml:"luogo"`
	Address     string `json:"indirizzo,omitempty" yaml:"indirizzo,omitempty"`
}

// Event — событие в календаре парка.
type Event struct {
	ID       int64
	Slug     string
	StartsAt time.Time
	EndsAt   *time.Time
	Image    string
	Active   bool
	Texts    Translations[EventText]
}

// IsPast — событие уже закончилось (или началось, если конец не задан).
func (e *Event) IsPast(now time.Time) bool {
	if e.EndsAt != nil {
		return e.EndsAt.Before(now)
	}
	return e.StartsAt.Before(now)
}

// NewsText — переводимые поля новости.
type NewsText struct {
	Title   string `json:"titolo" yaml:"titolo"`
	Body    string `json:"contenuto" yaml:"contenuto"`
	Summary string `json:"riassunto,omitempty" yaml:"riassunto,omitempty"`
}

// News — новость.
type News struct {
	ID          int64
	Slug        string
	PublishedAt time.Time
	Image       string
	Active      bool
	Texts       Translations[NewsText]
}

// DocumentKind — тип документа.
type DocumentKind string

const (
	DocumentGeneric  DocumentKind = "documento"
	DocumentStudy    DocumentKind = "studio"
	DocumentResearch DocumentKind = "ricerca"
	DocumentEssay    DocumentKind = "saggio"
)

// IsValid проверяет тип документа.
func (k DocumentKind) IsValid() bool {
	switch k {
	case DocumentGeneric, DocumentStudy, DocumentResearch, DocumentEssay:
		return true
	}
	return false
}

// DocumentText — переводимые поля документа.
type DocumentText struct {
	Title       string `json:"titolo" yaml:"titolo"`
	Description string `json:"descrizione" yaml:"descrizione"`
	Summary     string `json:"riassunto,omitempty" yaml:"riassunto,omitempty"`
	Keywords    string `json:"parole_chiave,omitempty" yaml:"parole_chiave,omitempty"`
}

// Document — документ или исследование (PDF).
type Document struct {
	ID          int64
	Slug        string
	Kind        DocumentKind
	Authors     string
	Year        *int
	PDF         string
	Preview     string
	PublishedAt time.Time
	Active      bool
	Texts       Translations[DocumentText]
}

// ItineraryKind — тематическая линия маршрута.
type ItineraryKind string

const (
	ItineraryVerga   ItineraryKind = "verghiano"
	ItineraryCapuana ItineraryKind = "capuaniano"
	ItineraryTheme   ItineraryKind = "tematico"
)

// IsValid проверяет тип маршрута.
func (k ItineraryKind) IsValid() bool {
	switch k {
	case ItineraryVerga, ItineraryCapuana, ItineraryTheme:
		return true
	}
	return false
}

// Difficulty — сложность маршрута.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "facile"
	DifficultyMedium Difficulty = "medio"
	DifficultyHard   Difficulty = "difficile"
)

// Label — отображаемое название сложности.
func (d Difficulty) Label(lang string) string {
	labels := map[Difficulty]map[string]string{
		DifficultyEasy:   {"it": "Facile", "en": "Easy"},
		DifficultyMedium: {"it": "Medio", "en": "Medium"},
		DifficultyHard:   {"it": "Difficile", "en": "Hard"},
	}
	return label(labels[d], lang, string(d))
}

// DefaultRouteColor — цвет линии маршрута на карте по умолчанию.
const DefaultRouteColor = "#4A6741"

// DefaultMapCenter — центр карты, если у маршрута нет остановок (Сицилия).
var DefaultMapCenter = [2]float64{37.5, 14.7}

// Stop — остановка маршрута. Формат совпадает с JSON-полем coordinate_tappe.
type Stop struct {
	Name             string     `json:"nome" yaml:"nome"`
	Coords           [2]float64 `json:"coords" yaml:"coords"`
	Description      string     `json:"descrizione,omitempty" yaml:"descrizione,omitempty"`
	ShortDescription string     `json:"descrizione_breve,omitempty" yaml:"descrizione_breve,omitempty"`
	Image            string     `json:"immagine,omitempty" yaml:"immagine,omitempty"`
	Order            int        `json:"order" yaml:"order"`
	Dashed           bool       `json:"tratteggiato,omitempty" yaml:"tratteggiato,omitempty"`
}

// ItineraryText — переводимые поля маршрута.
type ItineraryText struct {
	Title       string `json:"titolo" yaml:"titolo"`
	Description string `json:"descrizione" yaml:"descrizione"`
}

// Itinerary — литературный маршрут с остановками на карте.
type Itinerary struct {
	ID         int64
	Slug       string
	Kind       ItineraryKind
	Order      int
	Duration   string
	Difficulty Difficulty
	Color      string
	MapsLink   string
	Image      string
	Active     bool
	Stops      []Stop
	Texts      Translations[ItineraryText]
}

// OrderedStops — остановки, отсортированные по полю order.
func (it *Itinerary) OrderedStops() []Stop {
	stops := make([]Stop, len(it.Stops))
	copy(stops, it.Stops)
	sort.SliceStable(stops, func(i, j int) bool { return stops[i].Order < stops[j].Order })
	return stops
}

// StopCount — число остановок.
func (it *Itinerary) StopCount() int {
	return len(it.Stops)
}

// Center — среднее координат остановок; DefaultMapCenter без остановок.
func (it *Itinerary) Center() [2]float64 {
	if len(it.Stops) == 0 {
		return DefaultMapCenter
	}
	var lat, lng float64
	for _, s := range it.Stops {
		lat += s.Coords[0]
		lng += s.Coords[1]
	}
	n := float64(len(it.Stops))
	return [2]float64{lat / n, lng / n}
}

// shortDescriptionWords — длина краткого описания в словах.
const shortDescriptionWords = 20

// ShortDescription — первые 20 слов описания и «...», если описание длиннее.
func (it *Itinerary) ShortDescription(lang string) string {
	text, _ := it.Texts.Get(lang, "it")
	return TruncateWords(text.Description, shortDescriptionWords)
}

// TruncateWords обрезает текст до n слов, добавляя «...», если слов больше.
func TruncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ") + "..."
}

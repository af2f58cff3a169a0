package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
	"github.com/luigimeli-max/sito-parco-verismo/internal/repository"
)

const catalogueYAML = `
autori:
  - nome: Giovanni Verga
    slug: giovanni-verga
opere:
  - slug: i-malavoglia
    autore: giovanni-verga
    anno: 1881
    traduzioni:
      it: {titolo: I Malavoglia, trama: "La famiglia Toscano..."}
      en: {titolo: The House by the Medlar Tree, trama: "The Toscano family..."}
eventi:
  - slug: festa-verghiana
    data_inizio: "2026-05-10 18:00"
    data_fine: "2026-05-10 22:00"
    traduzioni:
      it: {titolo: Festa verghiana, descrizione: Letture, luogo: Vizzini}
notizie:
  - slug: nuovo-sito
    data_pubblicazione: "2026-01-15"
    traduzioni:
      it: {titolo: Nuovo sito, contenuto: Online}
documenti:
  - slug: studio-verismo
    tipo: studio
    data_pubblicazione: "2025-11-02"
    traduzioni:
      it: {titolo: Il Verismo, descrizione: Saggio breve}
itinerari:
  - slug: sulle-orme-di-verga
    tipo: verghiano
    ordine: 1
    difficolta: medio
    tappe:
      - {nome: Vizzini, coords: [37.16, 14.75], order: 1}
      - {nome: Aci Trezza, coords: [37.56, 15.16], order: 2, tratteggiato: true}
    traduzioni:
      it: {titolo: Sulle orme di Verga, descrizione: Un viaggio}
`

func newImporter(repo *memContentRepo) *ContentImporter {
	return NewContentImporter(
		memTx{},
		func(repository.DBTX) repository.ContentRepository { return repo },
		rome,
		discardLogger(),
	)
}

func TestContentImporter_Import(t *testing.T) {
	f, err := ParseContentFile(strings.NewReader(catalogueYAML))
	require.NoError(t, err)

	repo := newMemContentRepo()
	stats, err := newImporter(repo).Import(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Authors: 1, Works: 1, Events: 1, News: 1, Documents: 1, Itineraries: 1}, stats)
	assert.Equal(t, 6, stats.Total())

	work := repo.works["i-malavoglia"]
	require.NotNil(t, work)
	assert.Equal(t, "Giovanni Verga", work.Author.Name)
	require.NotNil(t, work.Year)
	assert.Equal(t, 1881, *work.Year)
	en, ok := work.Texts.Get("en")
	require.True(t, ok)
	assert.Equal(t, "The House by the Medlar Tree", en.Title)

	ev := repo.events[0]
	assert.True(t, ev.StartsAt.Equal(time.Date(2026, 5, 10, 18, 0, 0, 0, rome)))
	require.NotNil(t, ev.EndsAt)
	assert.True(t, ev.Active)

	it := repo.itineraries["sulle-orme-di-verga"]
	require.NotNil(t, it)
	assert.Equal(t, model.DifficultyMedium, it.Difficulty)
	assert.Equal(t, model.DefaultRouteColor, it.Color)
	require.Len(t, it.Stops, 2)
	assert.True(t, it.Stops[1].Dashed)
	assert.Equal(t, [2]float64{37.56, 15.16}, it.Stops[1].Coords)

	assert.Equal(t, model.DocumentStudy, repo.documents["studio-verismo"].Kind)
}

func TestParseContentFile_Empty(t *testing.T) {
	f, err := ParseContentFile(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Works)
}

func TestParseContentFile_UnknownField(t *testing.T) {
	_, err := ParseContentFile(strings.NewReader("opere:\n  - slug: x\n    titolo: sbagliato\n"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestContentImporter_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"без slug", "autori:\n  - nome: Anonimo\n"},
		{"плохая дата", "notizie:\n  - slug: n\n    data_pubblicazione: \"15/01/2026\"\n"},
		{"конец раньше начала", "eventi:\n  - slug: e\n    data_inizio: \"2026-05-10\"\n    data_fine: \"2026-05-09\"\n"},
		{"тип документа", "documenti:\n  - slug: d\n    tipo: romanzo\n    data_pubblicazione: \"2026-01-01\"\n"},
		{"тип маршрута", "itinerari:\n  - slug: i\n    tipo: storico\n"},
		{"сложность", "itinerari:\n  - slug: i\n    tipo: tematico\n    difficolta: estrema\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseContentFile(strings.NewReader(tt.yaml))
			require.NoError(t, err)
			_, err = newImporter(newMemContentRepo()).Import(context.Background(), f)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestContentImporter_UnknownAuthor(t *testing.T) {
	f, err := ParseContentFile(strings.NewReader("opere:\n  - slug: w\n    autore: nessuno\n"))
	require.NoError(t, err)
	_, err = newImporter(newMemContentRepo()).Import(context.Background(), f)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

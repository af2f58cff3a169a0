// Пакет lifecycle — жизненный цикл запроса посетителя.
//
// Концептуальный путь: nuova → in_lavorazione → confermata → completata,
// cancellata достижим из любого нетерминального статуса.
// Персонал может выставить любой статус в любой момент: политика разрешающая,
// нестандартные переходы лишь помечаются (IsForward == false).
package lifecycle

import (
	"time"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
)

// forwardTransitions — матрица переходов по жизненному циклу.
// Ключ — текущий статус, значение — статусы, переход в которые считается штатным.
var forwardTransitions = map[model.Status]map[model.Status]bool{
	model.StatusNew: {
		model.StatusInProgress: true,
		model.StatusConfirmed:  true,
		model.StatusCompleted:  true,
		model.StatusCancelled:  true,
	},
	model.StatusInProgress: {
		model.StatusConfirmed: true,
		model.StatusCompleted: true,
		model.StatusCancelled: true,
	},
	model.StatusConfirmed: {
		model.StatusCompleted: true,
		model.StatusCancelled: true,
	},
	model.StatusCompleted: {},
	model.StatusCancelled: {},
}

// IsForward сообщает, соответствует ли переход from → to жизненному циклу.
// Повторная установка того же статуса считается штатной.
func IsForward(from, to model.Status) bool {
	if from == to {
		return true
	}
	return forwardTransitions[from][to]
}

// Transition — результат применения статуса к записи.
type Transition struct {
	From    model.Status
	To      model.Status
	Changed bool
	// Forward — переход соответствует жизненному циклу
	Forward bool
	// Completed — при переходе проставлена дата завершения
	Completed bool
}

// Apply выставляет статус target. При первом входе в completata проставляет
// CompletedAt = now; уже установленная дата не меняется. Статус target должен
// быть проверен вызывающим кодом.
func Apply(r *model.Request, target model.Status, now time.Time) Transition {
	tr := Transition{
		From:    r.Status,
		To:      target,
		Changed: r.Status != target,
		Forward: IsForward(r.Status, target),
	}
	r.Status = target

	if target == model.StatusCompleted && r.CompletedAt == nil {
		completedAt := now
		r.CompletedAt = &completedAt
		tr.Completed = true
	}
	return tr
}

// AutoAssign назначает ответственным actor, если статус изменился
// или ответственный ещё не задан. Возвращает true, если назначение произошло.
func AutoAssign(r *model.Request, actor string, statusChanged bool) bool {
	if actor == "" {
		return false
	}
	if statusChanged || r.Assignee == nil || *r.Assignee == "" {
		a := actor
		r.Assignee = &a
		return true
	}
	return false
}

// notifier.go — уведомления о новой заявке: посетителю и персоналу.
// Каналы независимы, ошибки логируются и не влияют на приём заявки.
package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
)

// Notifier — канал уведомлений. Методы не паникуют и не возвращают ошибок:
// сбой логируется, результат — false.
type Notifier interface {
	// Channel — имя канала для логов и метрик.
	Channel() string
	// NotifyRequester — подтверждение посетителю.
	NotifyRequester(ctx context.Context, r *model.Request) bool
	// NotifyStaff — сообщение персоналу о новой заявке.
	NotifyStaff(ctx context.Context, r *model.Request) bool
}

// NoopNotifier — отключённый канал: ничего не отправляет и сообщает об успехе.
type NoopNotifier struct {
	Name string
}

// Channel возвращает имя канала.
func (n NoopNotifier) Channel() string { return n.Name }

// NotifyRequester ничего не делает.
func (NoopNotifier) NotifyRequester(context.Context, *model.Request) bool { return true }

// NotifyStaff ничего не делает.
func (NoopNotifier) NotifyStaff(context.Context, *model.Request) bool { return true }

// DispatchResult — итог рассылки: true, если все каналы адресата отработали.
type DispatchResult struct {
	Requester bool
	Staff     bool
}

// Dispatcher рассылает уведомления по всем каналам параллельно.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
	logger    *slog.Logger
}

// NewDispatcher создаёт диспетчер. timeout ограничивает всю рассылку.
func NewDispatcher(timeout time.Duration, logger *slog.Logger, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		timeout:   timeout,
		logger:    logger.With(slog.String("component", "notifier")),
	}
}

// Dispatch отправляет оба уведомления по всем каналам и ждёт результатов.
func (d *Dispatcher) Dispatch(ctx context.Context, r *model.Request) DispatchResult {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	requester := make([]bool, len(d.notifiers))
	staff := make([]bool, len(d.notifiers))

	var g errgroup.Group
	for i, n := range d.notifiers {
		g.Go(func() error {
			requester[i] = d.send(ctx, n, "requester", r, n.NotifyRequester)
			return nil
		})
		g.Go(func() error {
			staff[i] = d.send(ctx, n, "staff", r, n.NotifyStaff)
			return nil
		})
	}
	_ = g.Wait()

	return DispatchResult{Requester: all(requester), Staff: all(staff)}
}

// send вызывает канал, перехватывая панику, и учитывает результат в метриках.
func (d *Dispatcher) send(
	ctx context.Context,
	n Notifier,
	kind string,
	r *model.Request,
	fn func(context.Context, *model.Request) bool,
) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("Паника в канале уведомлений",
				slog.String("channel", n.Channel()),
				slog.String("kind", kind),
				slog.Any("panic", p),
			)
			ok = false
		}
		result := "ok"
		if !ok {
			result = "fail"
		}
		notificationsTotal.WithLabelValues(n.Channel(), kind, result).Inc()
	}()

	return fn(ctx, r)
}

func all(results []bool) bool {
	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}

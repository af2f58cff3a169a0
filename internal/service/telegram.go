// telegram.go — уведомление персонала о новой заявке в чат Telegram.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
)

// TelegramSender — отправка сообщений ботом (реализуется *tgbotapi.BotAPI).
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewTelegramBot подключается к Bot API по токену.
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("подключение к Telegram Bot API: %w", err)
	}
	return bot, nil
}

// TelegramNotifier — канал персонала. Посетителям ничего не отправляет.
type TelegramNotifier struct {
	bot    TelegramSender
	chatID int64
	logger *slog.Logger
}

// NewTelegramNotifier создаёт канал Telegram для чата chatID.
func NewTelegramNotifier(bot TelegramSender, chatID int64, logger *slog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
		logger: logger.With(slog.String("component", "telegram_notifier")),
	}
}

// Channel возвращает имя канала.
func (n *TelegramNotifier) Channel() string { return "telegram" }

// NotifyRequester — no-op: у посетителя нет Telegram-адреса.
func (n *TelegramNotifier) NotifyRequester(context.Context, *model.Request) bool {
	return true
}

// NotifyStaff отправляет краткую карточку заявки в чат персонала.
// Bot API не принимает context, поэтому отменённый ctx проверяется до отправки.
func (n *TelegramNotifier) NotifyStaff(ctx context.Context, r *model.Request) bool {
	if err := ctx.Err(); err != nil {
		n.logger.Warn("Уведомление в Telegram не отправлено", slog.String("error", err.Error()))
		return false
	}

	msg := tgbotapi.NewMessage(n.chatID, StaffTelegramText(r))
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error("Ошибка отправки в Telegram",
			slog.String("request_id", r.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// StaffTelegramText — текст карточки заявки.
func StaffTelegramText(r *model.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nuova richiesta: %s\n", r.FullName())
	fmt.Fprintf(&b, "Email: %s\n", r.Email)
	if r.Organization != "" {
		fmt.Fprintf(&b, "Ente: %s\n", r.Organization)
	}
	fmt.Fprintf(&b, "Oggetto: %s\n", r.Subject)
	fmt.Fprintf(&b, "ID: %s", r.ID)
	return b.String()
}

package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
)

func sampleRequest() *model.Request {
	return &model.Request{
		ID:           "11111111-1111-1111-1111-111111111111",
		FirstName:    "Mario",
		LastName:     "Rossi",
		Email:        "mario@example.it",
		Organization: "Liceo Verga",
		Subject:      "Visita guidata",
		Message:      "Vorremmo prenotare una visita.",
		Status:       model.StatusNew,
		Priority:     model.PriorityMedium,
	}
}

// stubNotifier — канал с заданными результатами.
type stubNotifier struct {
	name      string
	requester bool
	staff     bool
	panics    bool
	calls     int
	mu        sync.Mutex
}

func (s *stubNotifier) Channel() string { return s.name }

func (s *stubNotifier) NotifyRequester(context.Context, *model.Request) bool {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panics {
		panic("канал сломан")
	}
	return s.requester
}

func (s *stubNotifier) NotifyStaff(context.Context, *model.Request) bool {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.staff
}

func TestDispatcher_AllChannels(t *testing.T) {
	email := &stubNotifier{name: "email", requester: true, staff: true}
	tg := &stubNotifier{name: "telegram", requester: true, staff: false}
	d := NewDispatcher(time.Second, discardLogger(), email, tg)

	res := d.Dispatch(context.Background(), sampleRequest())

	assert.Equal(t, DispatchResult{Requester: true, Staff: false}, res)
	assert.Equal(t, 2, email.calls)
	assert.Equal(t, 2, tg.calls)
}

func TestDispatcher_PanicIsFailure(t *testing.T) {
	broken := &stubNotifier{name: "broken", panics: true, staff: true}
	d := NewDispatcher(time.Second, discardLogger(), broken)

	res := d.Dispatch(context.Background(), sampleRequest())
	assert.False(t, res.Requester)
	assert.True(t, res.Staff)
}

func TestDispatcher_NoopChannels(t *testing.T) {
	d := NewDispatcher(time.Second, discardLogger(), NoopNotifier{Name: "email"}, NoopNotifier{Name: "telegram"})
	res := d.Dispatch(context.Background(), sampleRequest())
	assert.Equal(t, DispatchResult{Requester: true, Staff: true}, res)
}

// --- Email ---

type sentMail struct {
	from string
	to   []string
	msg  string
}

type fakeMailSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailSender) Send(_ context.Context, from string, to []string, msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{from: from, to: to, msg: string(msg)})
	return nil
}

func TestEmailNotifier(t *testing.T) {
	sender := &fakeMailSender{}
	n := NewEmailNotifier(sender, "noreply@parcolettverismo.it", "admin@parcolettverismo.it", discardLogger())
	r := sampleRequest()

	require.True(t, n.NotifyRequester(context.Background(), r))
	require.True(t, n.NotifyStaff(context.Background(), r))
	require.Len(t, sender.sent, 2)

	assert.Equal(t, []string{"mario@example.it"}, sender.sent[0].to)
	assert.Equal(t, []string{"admin@parcolettverismo.it"}, sender.sent[1].to)
	assert.Equal(t, "noreply@parcolettverismo.it", sender.sent[0].from)
	assert.Contains(t, sender.sent[0].msg, "Content-Type: text/plain; charset=utf-8\r\n")
	assert.Contains(t, sender.sent[0].msg, "Il Team del Parco Letterario del Verismo")
}

func TestEmailNotifier_SendFailure(t *testing.T) {
	sender := &fakeMailSender{err: errors.New("smtp: 550")}
	n := NewEmailNotifier(sender, "noreply@parcolettverismo.it", "admin@parcolettverismo.it", discardLogger())
	assert.False(t, n.NotifyRequester(context.Background(), sampleRequest()))
}

func TestRequesterEmail(t *testing.T) {
	r := sampleRequest()
	subject, body := RequesterEmail(r)
	assert.Equal(t, "Richiesta ricevuta - Visita guidata", subject)
	assert.True(t, strings.HasPrefix(body, "Gentile Mario Rossi,"))
	assert.Contains(t, body, "- Ente: Liceo Verga")

	r.Subject = ""
	r.Organization = ""
	subject, body = RequesterEmail(r)
	assert.Equal(t, "Richiesta ricevuta - Richiesta contatto", subject)
	assert.NotContains(t, body, "Ente:")
}

func TestStaffEmail(t *testing.T) {
	subject, body := StaffEmail(sampleRequest())
	assert.Equal(t, "Nuova richiesta: Mario Rossi - Visita guidata", subject)
	assert.Contains(t, body, "Email: mario@example.it")
	assert.Contains(t, body, "Messaggio: Vorremmo prenotare una visita.")
}

func TestBuildMessage_EncodesSubject(t *testing.T) {
	msg := string(buildMessage("a@b.it", "c@d.it", "Priorità alta", "riga1\nriga2", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
	assert.Contains(t, msg, "Subject: =?utf-8?q?Priorit=C3=A0_alta?=\r\n")
	assert.Contains(t, msg, "riga1\r\nriga2")
}

// --- Telegram ---

type fakeTelegram struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func TestTelegramNotifier(t *testing.T) {
	bot := &fakeTelegram{}
	n := NewTelegramNotifier(bot, 42, discardLogger())

	assert.True(t, n.NotifyRequester(context.Background(), sampleRequest()))
	assert.Empty(t, bot.sent)

	require.True(t, n.NotifyStaff(context.Background(), sampleRequest()))
	require.Len(t, bot.sent, 1)
	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.True(t, msg.DisableWebPagePreview)
	assert.Contains(t, msg.Text, "Nuova richiesta: Mario Rossi")
}

func TestTelegramNotifier_Failures(t *testing.T) {
	n := NewTelegramNotifier(&fakeTelegram{err: errors.New("chat not found")}, 42, discardLogger())
	assert.False(t, n.NotifyStaff(context.Background(), sampleRequest()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bot := &fakeTelegram{}
	n = NewTelegramNotifier(bot, 42, discardLogger())
	assert.False(t, n.NotifyStaff(ctx, sampleRequest()))
	assert.Empty(t, bot.sent)
}

// email.go — email-канал уведомлений (SMTP).
package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
)

// MailSender отправляет готовое RFC 5322 сообщение.
type MailSender interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

// SMTPSender — отправка через SMTP-сервер с STARTTLS (если поддерживается)
// и PLAIN-аутентификацией (если задан пользователь).
type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
}

// NewSMTPSender создаёт SMTP-отправителя.
func NewSMTPSender(host string, port int, user, password string) *SMTPSender {
	return &SMTPSender{host: host, port: port, user: user, password: password}
}

// Send открывает соединение с учётом дедлайна ctx и отправляет сообщение.
func (s *SMTPSender) Send(ctx context.Context, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("подключение к SMTP %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("SMTP handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("SMTP STARTTLS: %w", err)
		}
	}
	if s.user != "" {
		if err := c.Auth(smtp.PlainAuth("", s.user, s.password, s.host)); err != nil {
			return fmt.Errorf("SMTP auth: %w", err)
		}
	}

	if err := c.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("SMTP RCPT TO %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return fmt.Errorf("SMTP запись письма: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("SMTP завершение письма: %w", err)
	}
	return c.Quit()
}

// EmailNotifier — подтверждение посетителю и уведомление администратору.
type EmailNotifier struct {
	sender     MailSender
	from       string
	adminEmail string
	logger     *slog.Logger
	now        func() time.Time
}

// NewEmailNotifier создаёт email-канал.
func NewEmailNotifier(sender MailSender, from, adminEmail string, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		sender:     sender,
		from:       from,
		adminEmail: adminEmail,
		logger:     logger.With(slog.String("component", "email_notifier")),
		now:        time.Now,
	}
}

// Channel возвращает имя канала.
func (n *EmailNotifier) Channel() string { return "email" }

// NotifyRequester отправляет посетителю подтверждение получения заявки.
func (n *EmailNotifier) NotifyRequester(ctx context.Context, r *model.Request) bool {
	subject, body := RequesterEmail(r)
	return n.send(ctx, r, r.Email, subject, body)
}

// NotifyStaff отправляет администратору сведения о новой заявке.
func (n *EmailNotifier) NotifyStaff(ctx context.Context, r *model.Request) bool {
	subject, body := StaffEmail(r)
	return n.send(ctx, r, n.adminEmail, subject, body)
}

func (n *EmailNotifier) send(ctx context.Context, r *model.Request, to, subject, body string) bool {
	msg := buildMessage(n.from, to, subject, body, n.now())
	if err := n.sender.Send(ctx, n.from, []string{to}, msg); err != nil {
		n.logger.Error("Ошибка отправки email",
			slog.String("request_id", r.ID),
			slog.String("to", to),
			slog.String("error", err.Error()),
		)
		return false
	}
	n.logger.Info("Email отправлен",
		slog.String("request_id", r.ID),
		slog.String("to", to),
	)
	return true
}

// RequesterEmail — тема и текст подтверждения посетителю.
func RequesterEmail(r *model.Request) (subject, body string) {
	subject = "Richiesta ricevuta - " + subjectOrDefault(r.Subject, "Richiesta contatto")

	var b strings.Builder
	fmt.Fprintf(&b, "Gentile %s %s,\n\n", r.FirstName, r.LastName)
	b.WriteString("Abbiamo ricevuto la tua richiesta.\n")
	if r.Organization != "" {
		fmt.Fprintf(&b, "- Ente: %s\n", r.Organization)
	}
	if r.Subject != "" {
		fmt.Fprintf(&b, "- Oggetto: %s\n", r.Subject)
	}
	b.WriteString("\nTi contatteremo presto per rispondere alla tua richiesta.\n\n")
	b.WriteString("Cordiali saluti,\nIl Team del Parco Letterario del Verismo\n")
	return subject, b.String()
}

// StaffEmail — тема и текст уведомления администратору.
func StaffEmail(r *model.Request) (subject, body string) {
	subject = fmt.Sprintf("Nuova richiesta: %s %s - %s", r.FirstName, r.LastName, r.Subject)

	var b strings.Builder
	b.WriteString("Nuova richiesta ricevuta:\n\n")
	fmt.Fprintf(&b, "Cliente: %s %s\n", r.FirstName, r.LastName)
	fmt.Fprintf(&b, "Email: %s\n", r.Email)
	if r.Organization != "" {
		fmt.Fprintf(&b, "Ente: %s\n", r.Organization)
	}
	if r.Subject != "" {
		fmt.Fprintf(&b, "Oggetto: %s\n", r.Subject)
	}
	if r.Message != "" {
		fmt.Fprintf(&b, "\nMessaggio: %s\n", r.Message)
	}
	b.WriteString("\nGestisci la richiesta dall'area staff.\n")
	return subject, b.String()
}

func subjectOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// buildMessage собирает text/plain письмо в UTF-8 с закодированной темой.
func buildMessage(from, to, subject, body string, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.Bytes()
}

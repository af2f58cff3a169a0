// intake.go — приём заявок посетителей через публичную форму контакта.
// Валидация, антиспам, сохранение и отправка уведомлений.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
)

// FormField — ключ ошибок уровня формы.
const FormField = "__all__"

// Ограничения полей формы.
const (
	nameMinRunes    = 2
	nameMaxRunes    = 100
	orgMaxRunes     = 200
	subjectMaxRunes = 200
	messageMaxRunes = 1000
	maxLinks        = 3
	allCapsMinRunes = 20
)

var (
	namePattern = regexp.MustCompile(`^[\p{Latin}\s'’-]+$`)
	linkPattern = regexp.MustCompile(`https?://`)
)

// SubmissionInput — данные формы в том виде, в каком их прислал посетитель.
type SubmissionInput struct {
	FirstName    string
	LastName     string
	Email        string
	Organization string
	Subject      string
	Message      string
}

// SubmissionMeta — сведения о клиенте, не входящие в запись.
type SubmissionMeta struct {
	ClientIP  string
	UserAgent string
}

// ValidationError — ошибки валидации формы: поле → ключи i18n-каталога.
// Ошибки уровня формы хранятся под ключом FormField.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) add(field, key string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], key)
}

// Error перечисляет поля с ошибками в детерминированном порядке.
func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(fields, ", "))
}

// Unwrap позволяет errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ValidateSubmission проверяет и нормализует данные формы. Чистая функция:
// либо возвращает готовую к сохранению запись (nuova, media, без ID), либо
// ValidationError со всеми найденными ошибками.
func ValidateSubmission(in SubmissionInput, blocklist DomainChecker) (*model.Request, *ValidationError) {
	verr := &ValidationError{}

	first := validateName(verr, "nome", in.FirstName)
	last := validateName(verr, "cognome", in.LastName)
	email := validateEmail(verr, in.Email, blocklist)

	org := strings.TrimSpace(in.Organization)
	if utf8.RuneCountInString(org) > orgMaxRunes {
		verr.add("ente", "intake.ente_max")
	}

	subject := strings.TrimSpace(in.Subject)
	switch {
	case subject == "":
		verr.add("oggetto", "intake.oggetto_required")
	case utf8.RuneCountInString(subject) > subjectMaxRunes:
		verr.add("oggetto", "intake.oggetto_max")
	}

	message := strings.TrimSpace(in.Message)
	messageOK := false
	switch {
	case message == "":
		verr.add("messaggio", "intake.messaggio_required")
	case utf8.RuneCountInString(message) > messageMaxRunes:
		verr.add("messaggio", "intake.messaggio_max")
	default:
		messageOK = true
	}

	// Антиспам — только для сообщения, прошедшего собственные проверки.
	if messageOK {
		if len(linkPattern.FindAllStringIndex(message, -1)) > maxLinks {
			verr.add(FormField, "form.too_many_links")
		} else if utf8.RuneCountInString(message) > allCapsMinRunes && isAllUpper(message) {
			verr.add(FormField, "form.all_caps")
		}
	}

	if len(verr.Fields) > 0 {
		return nil, verr
	}

	return &model.Request{
		FirstName:    first,
		LastName:     last,
		Email:        email,
		Organization: org,
		Subject:      subject,
		Message:      message,
		Status:       model.StatusNew,
		Priority:     model.PriorityMedium,
	}, nil
}

// validateName проверяет имя или фамилию; field — "nome" или "cognome".
func validateName(verr *ValidationError, field, raw string) string {
	s := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(s)
	switch {
	case s == "":
		verr.add(field, "intake."+field+"_required")
	case n < nameMinRunes:
		verr.add(field, "intake."+field+"_min")
	case n > nameMaxRunes:
		verr.add(field, "intake."+field+"_max")
	case !namePattern.MatchString(s):
		verr.add(field, "intake."+field+"_invalid")
	default:
		return titleName(s)
	}
	return ""
}

// titleName приводит имя к виду "D'Annunzio": заглавная в начале слова
// и после апострофа, который cases.Title считает частью слова.
func titleName(s string) string {
	// Caser хранит состояние, поэтому создаётся на каждый вызов
	runes := []rune(cases.Title(language.Italian).String(s))
	for i := 1; i < len(runes); i++ {
		if runes[i-1] == '\'' || runes[i-1] == '’' {
			runes[i] = unicode.ToUpper(runes[i])
		}
	}
	return string(runes)
}

func validateEmail(verr *ValidationError, raw string, blocklist DomainChecker) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		verr.add("email", "intake.email_required")
		return ""
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		verr.add("email", "intake.email_invalid")
		return ""
	}
	at := strings.LastIndexByte(email, '@')
	domain := email[at+1:]
	if !validDomain(domain) {
		verr.add("email", "intake.email_invalid")
		return ""
	}

	if blocklist != nil && blocklist.IsBlocked(domain) {
		verr.add("email", "intake.email_disposable")
		return ""
	}
	return email
}

// validDomain — домен из меток, разделённых точками, минимум две метки.
func validDomain(domain string) bool {
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if l == "" || strings.HasPrefix(l, "-") || strings.HasSuffix(l, "-") {
			return false
		}
		for _, r := range l {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' {
				return false
			}
		}
	}
	return true
}

// isAllUpper — есть хотя бы одна буква с регистром и ни одной строчной.
func isAllUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}

// --- Сервис приёма заявок ---

// RequestCreator — сохранение новой заявки.
type RequestCreator interface {
	Create(ctx context.Context, r *model.Request) error
}

// Throttler ограничивает частоту заявок по ключу (IP клиента).
type Throttler interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// NotificationDispatcher отправляет уведомления о новой заявке.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, r *model.Request) DispatchResult
}

// IntakeService — приём заявок: валидация, throttle, сохранение, уведомления.
type IntakeService struct {
	repo       RequestCreator
	blocklist  DomainChecker
	throttle   Throttler
	dispatcher NotificationDispatcher
	logger     *slog.Logger

	newID func() string
	wg    sync.WaitGroup
}

// NewIntakeService создаёт сервис приёма заявок. throttle и dispatcher
// могут быть nil — тогда соответствующий шаг пропускается.
func NewIntakeService(
	repo RequestCreator,
	blocklist DomainChecker,
	throttle Throttler,
	dispatcher NotificationDispatcher,
	logger *slog.Logger,
) *IntakeService {
	return &IntakeService{
		repo:       repo,
		blocklist:  blocklist,
		throttle:   throttle,
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("component", "intake")),
		newID:      func() string { return uuid.New().String() },
	}
}

// Submit принимает заявку. Возможные ошибки: *ValidationError (ErrValidation),
// ErrThrottled, ErrPersistence. Уведомления отправляются в фоне после
// сохранения и на результат не влияют.
func (s *IntakeService) Submit(ctx context.Context, in SubmissionInput, meta SubmissionMeta) (*model.Request, error) {
	if s.throttle != nil && meta.ClientIP != "" {
		allowed, err := s.throttle.Allow(ctx, meta.ClientIP)
		if err != nil {
			s.logger.Warn("Throttle недоступен, заявка пропущена без ограничения",
				slog.String("error", err.Error()),
			)
		} else if !allowed {
			requestsSubmittedTotal.WithLabelValues("throttled").Inc()
			s.logger.Warn("Превышен лимит заявок", slog.String("client_ip", meta.ClientIP))
			return nil, ErrThrottled
		}
	}

	r, verr := ValidateSubmission(in, s.blocklist)
	if verr != nil {
		requestsSubmittedTotal.WithLabelValues("invalid").Inc()
		s.logger.Debug("Заявка отклонена валидацией", slog.String("error", verr.Error()))
		return nil, verr
	}

	r.ID = s.newID()
	if err := s.repo.Create(ctx, r); err != nil {
		requestsSubmittedTotal.WithLabelValues("error").Inc()
		s.logger.Error("Ошибка сохранения заявки",
			slog.String("email", r.Email),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	requestsSubmittedTotal.WithLabelValues("created").Inc()
	s.logger.Info("Заявка создана",
		slog.String("id", r.ID),
		slog.String("email", r.Email),
		slog.String("client_ip", meta.ClientIP),
	)

	if s.dispatcher != nil {
		notifyCtx := context.WithoutCancel(ctx)
		snapshot := *r
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			res := s.dispatcher.Dispatch(notifyCtx, &snapshot)
			s.logger.Debug("Уведомления отправлены",
				slog.String("id", snapshot.ID),
				slog.Bool("requester", res.Requester),
				slog.Bool("staff", res.Staff),
			)
		}()
	}

	return r, nil
}

// Wait ждёт завершения фоновых отправок уведомлений.
func (s *IntakeService) Wait() {
	s.wg.Wait()
}

// IsValidationError извлекает *ValidationError из цепочки ошибок.
func IsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// auth.go — JWT middleware staff API. Проверяет подпись токена по JWKS
// IdP, требует членства в одной из staff-групп и кладёт сотрудника в
// контекст. Имя сотрудника (preferred_username) становится actor для
// автоназначения заявок.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/luigimeli-max/sito-parco-verismo/internal/api/errors"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyStaff — сотрудник, аутентифицированный по JWT.
const ContextKeyStaff contextKey = "staff"

// Staff — сотрудник парка, извлечённый из JWT.
type Staff struct {
	// Subject — sub из JWT
	Subject string `json:"sub"`
	// Username — preferred_username, используется как actor
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	// Groups — группы и роли IdP, совпавшие со staff-группами
	Groups []string `json:"groups"`
}

// Actor — имя, под которым сотрудник записывается ответственным.
func (s *Staff) Actor() string {
	switch {
	case s.Username != "":
		return s.Username
	case s.Email != "":
		return s.Email
	default:
		return s.Subject
	}
}

// idpClaims — raw claims из JWT IdP (Keycloak-совместимый формат).
type idpClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string       `json:"preferred_username"`
	Email             string       `json:"email"`
	RealmAccess       *realmAccess `json:"realm_access,omitempty"`
	Groups            []string     `json:"groups,omitempty"`
}

type realmAccess struct {
	Roles []string `json:"roles"`
}

// JWTOptions — параметры JWT middleware.
type JWTOptions struct {
	// Issuer — ожидаемый iss (пустой — не проверяется)
	Issuer string
	// StaffGroups — группы или роли IdP, дающие доступ к staff API
	StaffGroups []string
	// Leeway — допустимое отклонение времени
	Leeway time.Duration
}

// JWTAuth — middleware для JWT-аутентификации через JWKS.
type JWTAuth struct {
	jwks        keyfunc.Keyfunc
	logger      *slog.Logger
	issuer      string
	staffGroups map[string]bool
	leeway      time.Duration
}

// NewJWTAuth создаёт JWT middleware с JWKS, загружаемым по HTTP и
// обновляемым в фоне с интервалом refreshInterval.
func NewJWTAuth(
	ctx context.Context,
	jwksURL string,
	clientTimeout, refreshInterval time.Duration,
	opts JWTOptions,
	logger *slog.Logger,
) (*JWTAuth, error) {
	httpClient := &http.Client{Timeout: clientTimeout}

	// NoErrorReturnFirstHTTPReq — стартуем даже если IdP ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		Ctx:                       ctx,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Ctx: ctx, Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewJWTAuthWithKeyfunc(k, opts, logger), nil
}

// NewJWTAuthWithKeyfunc создаёт middleware с готовым keyfunc
// (статический JWKS в тестах).
func NewJWTAuthWithKeyfunc(k keyfunc.Keyfunc, opts JWTOptions, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		jwks:        k,
		logger:      logger.With(slog.String("component", "jwt_auth")),
		issuer:      opts.Issuer,
		staffGroups: toSet(opts.StaffGroups),
		leeway:      opts.Leeway,
	}
}

// Middleware возвращает HTTP middleware: Bearer token → подпись RS256 →
// staff-группа → Staff в контексте.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}
			tokenString = strings.TrimSpace(tokenString)
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			raw := &idpClaims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.leeway),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			token, err := jwt.ParseWithClaims(tokenString, raw, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
			if err != nil || !token.Valid {
				j.logger.Debug("JWT валидация не пройдена",
					slog.Any("error", err),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			if raw.Subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			staff := j.buildStaff(raw)
			if len(staff.Groups) == 0 {
				j.logger.Warn("Доступ к staff API без staff-группы",
					slog.String("sub", staff.Subject),
					slog.String("username", staff.Username),
				)
				apierrors.Forbidden(w, "Недостаточно прав: требуется группа персонала")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyStaff, staff)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// buildStaff собирает Staff из claims. Группы и realm-роли проверяются
// по одному набору staff-групп.
func (j *JWTAuth) buildStaff(raw *idpClaims) *Staff {
	staff := &Staff{
		Subject:  raw.Subject,
		Username: raw.PreferredUsername,
		Email:    raw.Email,
		Groups:   []string{},
	}

	candidates := raw.Groups
	if raw.RealmAccess != nil {
		candidates = append(candidates, raw.RealmAccess.Roles...)
	}
	seen := make(map[string]bool, len(candidates))
	for _, g := range candidates {
		// Keycloak отдаёт группы с ведущим "/" при full path
		name := strings.TrimPrefix(g, "/")
		if j.staffGroups[name] && !seen[name] {
			seen[name] = true
			staff.Groups = append(staff.Groups, name)
		}
	}
	return staff
}

// toSet конвертирует срез строк в map для быстрого поиска.
func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}

// --- Context helpers ---

// StaffFromContext извлекает сотрудника из контекста запроса.
// Возвращает nil, если запрос не прошёл JWT middleware.
func StaffFromContext(ctx context.Context) *Staff {
	staff, _ := ctx.Value(ContextKeyStaff).(*Staff)
	return staff
}

// ActorFromContext возвращает actor сотрудника или пустую строку.
func ActorFromContext(ctx context.Context) string {
	if staff := StaffFromContext(ctx); staff != nil {
		return staff.Actor()
	}
	return ""
}

// WithStaff кладёт сотрудника в контекст в обход JWT (тесты handlers).
func WithStaff(ctx context.Context, staff *Staff) context.Context {
	return context.WithValue(ctx, ContextKeyStaff, staff)
}

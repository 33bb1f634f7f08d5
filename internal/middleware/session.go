// Package middleware содержит HTTP middleware кассы: сжатие, журналирование запросов и сессию.
package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const sessionIDKey contextKey = "sessionID"

// SessionCookieName содержит имя cookie с флагом сессии.
const SessionCookieName = "billing_session"

var (
	// ErrInvalidCredentials возвращается при несовпадении логина или пароля.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidSession возвращается для повреждённого или чужого токена сессии.
	ErrInvalidSession = errors.New("invalid session token")
)

// SessionGate проверяет единственную пару учётных данных и выдаёт cookie сессии.
type SessionGate struct {
	username     string
	passwordHash []byte
	secretKey    []byte
}

// NewSessionGate создаёт шлюз сессии. Пароль хешируется bcrypt при создании.
// Пустой secret заменяется случайным ключом, поэтому после перезапуска сессии сбрасываются.
func NewSessionGate(username, password, secret string) (*SessionGate, error) {
	if password == "" {
		return nil, errors.New("password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}

	return &SessionGate{
		username:     username,
		passwordHash: hash,
		secretKey:    key,
	}, nil
}

// Authenticate сверяет логин и пароль с настроенными.
func (g *SessionGate) Authenticate(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(g.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(g.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// Issue создаёт новую сессию и записывает её cookie. Cookie без Expires живёт до закрытия браузера.
func (g *SessionGate) Issue(w http.ResponseWriter) (string, error) {
	sid := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       sid,
			Subject:  g.username,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	})

	signed, err := token.SignedString(g.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return sid, nil
}

// Clear удаляет cookie сессии.
func (g *SessionGate) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionID извлекает идентификатор сессии из cookie запроса.
func (g *SessionGate) SessionID(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", ErrInvalidSession
	}

	var claims sessionClaims
	token, err := jwt.ParseWithClaims(cookie.Value, &claims, func(t *jwt.Token) (any, error) {
		return g.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidSession
	}

	if claims.ID == "" || claims.Subject != g.username {
		return "", ErrInvalidSession
	}

	return claims.ID, nil
}

// Middleware пропускает запросы с действительной cookie сессии и добавляет её идентификатор в контекст.
func (g *SessionGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, err := g.SessionID(r)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), sessionIDKey, sid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionIDFromContext извлекает идентификатор сессии из контекста запроса.
func GetSessionIDFromContext(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(sessionIDKey).(string)
	return sid, ok && sid != ""
}

// Пакет auth — выпуск и проверка сессионных токенов (JWT HS256)
// и хэширование паролей (bcrypt).
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nkrecruitment/portal/internal/domain/rbac"
)

// ErrInvalidToken — токен отсутствует, повреждён, подписан чужим ключом или просрочен.
var ErrInvalidToken = errors.New("невалидный или просроченный токен")

// sessionClaims — claims сессионного токена.
type sessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// TokenManager выпускает и проверяет сессионные токены.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager создаёт TokenManager с общим секретом HMAC.
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL возвращает время жизни выпускаемых токенов.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue выпускает токен для сотрудника. Возвращает токен и момент истечения.
func (m *TokenManager) Issue(id *rbac.Identity) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: id.Email,
		Name:  id.Name,
		Role:  id.Role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return token, expiresAt, nil
}

// Parse проверяет подпись, срок действия и issuer токена и возвращает Identity.
func (m *TokenManager) Parse(tokenString string) (*rbac.Identity, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" || !rbac.IsValidRole(claims.Role) {
		return nil, fmt.Errorf("%w: отсутствует sub или роль", ErrInvalidToken)
	}

	return &rbac.Identity{
		ID:    claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
		Role:  claims.Role,
	}, nil
}

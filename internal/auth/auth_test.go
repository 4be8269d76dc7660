package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nkrecruitment/portal/internal/domain/rbac"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager(testSecret, "nk-test", 24*time.Hour)
	id := &rbac.Identity{ID: "acc-1", Email: "admin@x.com", Name: "Admin", Role: rbac.RoleAdmin}

	token, expiresAt, err := m.Issue(id)
	if err != nil {
		t.Fatalf("Issue() ошибка: %v", err)
	}
	if d := time.Until(expiresAt); d < 23*time.Hour || d > 24*time.Hour {
		t.Errorf("expiresAt через %v, ожидалось ~24h", d)
	}

	got, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse() ошибка: %v", err)
	}
	if *got != *id {
		t.Errorf("Parse() = %+v, хотели %+v", got, id)
	}
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewTokenManager(testSecret, "nk-test", time.Hour)
	id := &rbac.Identity{ID: "acc-1", Email: "a@x.com", Role: rbac.RoleRecruiter}
	valid, _, _ := m.Issue(id)

	// Просроченный токен
	expired := NewTokenManager(testSecret, "nk-test", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, _, _ := expired.Issue(id)

	// Чужой секрет
	foreign := NewTokenManager(strings.Repeat("z", 32), "nk-test", time.Hour)
	foreignToken, _, _ := foreign.Issue(id)

	// Чужой issuer
	otherIssuer := NewTokenManager(testSecret, "someone-else", time.Hour)
	otherIssuerToken, _, _ := otherIssuer.Issue(id)

	// Неизвестная роль
	badRole := NewTokenManager(testSecret, "nk-test", time.Hour)
	badRoleToken, _, _ := badRole.Issue(&rbac.Identity{ID: "acc-1", Role: "root"})

	// Алгоритм none
	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "acc-1", "role": "admin", "iss": "nk-test", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"пустой", ""},
		{"мусор", "not-a-token"},
		{"подменённый payload", tamper(valid, badRoleToken)},
		{"просроченный", expiredToken},
		{"чужой секрет", foreignToken},
		{"чужой issuer", otherIssuerToken},
		{"неизвестная роль", badRoleToken},
		{"alg none", noneToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Parse(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Parse() = %v, хотели ErrInvalidToken", err)
			}
		})
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("admin123")
	if err != nil {
		t.Fatalf("HashPassword() ошибка: %v", err)
	}
	if hash == "admin123" || !strings.HasPrefix(hash, "$2a$10$") {
		t.Errorf("hash = %q, ожидался bcrypt cost 10", hash)
	}

	ok, err := CheckPassword(hash, "admin123")
	if err != nil || !ok {
		t.Errorf("CheckPassword(верный) = %v, %v", ok, err)
	}
	ok, err = CheckPassword(hash, "wrong")
	if err != nil || ok {
		t.Errorf("CheckPassword(неверный) = %v, %v", ok, err)
	}
	if _, err := CheckPassword("not-a-hash", "x"); err == nil {
		t.Error("CheckPassword() с повреждённым хэшем должен вернуть ошибку")
	}
}

func TestHashPassword_Length(t *testing.T) {
	if _, err := HashPassword(strings.Repeat("a", MaxPasswordBytes)); err != nil {
		t.Errorf("пароль ровно %d байт: ошибка %v", MaxPasswordBytes, err)
	}
	if _, err := HashPassword(strings.Repeat("a", MaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("ошибка = %v, ожидалась ErrPasswordTooLong", err)
	}
}

// tamper подставляет payload из other в токен с исходной подписью.
func tamper(token, other string) string {
	a := strings.Split(token, ".")
	b := strings.Split(other, ".")
	return a[0] + "." + b[1] + "." + a[2]
}

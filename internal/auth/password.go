package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost — стоимость bcrypt (2^10 раундов).
const PasswordCost = 10

// MaxPasswordBytes — предел bcrypt: более длинный пароль не хэшируется.
const MaxPasswordBytes = 72

// ErrPasswordTooLong — пароль длиннее MaxPasswordBytes.
var ErrPasswordTooLong = errors.New("пароль длиннее 72 байт")

// dummyHash — хэш для сравнения при неизвестном email,
// чтобы время ответа не выдавало существование учётной записи.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("nk-dummy-password"), PasswordCost)

// HashPassword возвращает bcrypt-хэш пароля.
func HashPassword(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("ошибка хэширования пароля: %w", err)
	}
	return string(hash), nil
}

// CheckPassword сравнивает пароль с хэшем.
// Возвращает false при несовпадении, ошибку — только при повреждённом хэше.
func CheckPassword(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("ошибка проверки пароля: %w", err)
}

// BurnCompare выполняет сравнение с фиктивным хэшем.
func BurnCompare(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

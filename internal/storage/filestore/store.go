package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/nkrecruitment/portal/internal/domain/model"
)

// DefaultMaxSize — максимальный размер CV по умолчанию (5 МиБ).
const DefaultMaxSize int64 = 5 * 1024 * 1024

// AllowedMimeTypes — допустимые типы CV: PDF и документы Word.
var AllowedMimeTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// Ошибки валидации файла. Все оборачивают ErrInvalidFile.
var (
	ErrInvalidFile = errors.New("недопустимый файл")
	ErrInvalidType = fmt.Errorf("%w: разрешены только документы PDF и Word", ErrInvalidFile)
	ErrTooLarge    = fmt.Errorf("%w: файл слишком большой", ErrInvalidFile)
	ErrEmpty       = fmt.Errorf("%w: файл пуст", ErrInvalidFile)
)

// ErrNotFound — файл отсутствует в хранилище.
var ErrNotFound = errors.New("файл не найден")

// Upload — загружаемый кандидатом файл.
type Upload struct {
	Reader       io.Reader
	OriginalName string
	ContentType  string
	// Size — заявленный размер (из multipart-заголовка)
	Size int64
}

// Store — хранилище файлов CV (локальный диск или S3).
type Store interface {
	// Save сохраняет файл под уникальным именем и возвращает его описание.
	Save(ctx context.Context, u Upload) (*model.CVFile, error)
	// Delete удаляет файл. Отсутствие файла ошибкой не считается.
	Delete(ctx context.Context, path string) error
	// Open открывает файл для чтения. Вызывающий код обязан закрыть ReadCloser.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Validate проверяет MIME-тип и размер файла. Ничего не записывает.
func Validate(contentType string, size, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if !AllowedMimeTypes[normalizeContentType(contentType)] {
		return ErrInvalidType
	}
	if size > maxSize {
		return fmt.Errorf("%w (максимум %d МиБ)", ErrTooLarge, maxSize/(1024*1024))
	}
	if size <= 0 {
		return ErrEmpty
	}
	return nil
}

// normalizeContentType отбрасывает параметры (например, "; charset=...").
func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// GenerateName возвращает имя для хранения: UUID + расширение исходного файла.
func GenerateName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !safeExt(ext) {
		ext = ""
	}
	return uuid.New().String() + ext
}

// safeExt допускает только расширения из латинских букв и цифр.
func safeExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 10 || ext[0] != '.' {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

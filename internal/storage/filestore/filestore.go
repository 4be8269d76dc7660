// Пакет filestore — хранение файлов CV.
// Локальная реализация пишет на диск по схеме temp → fsync → atomic rename.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nkrecruitment/portal/internal/domain/model"
)

// FileStore — хранение CV в каталоге на локальном диске.
type FileStore struct {
	// dataDir — абсолютный путь к каталогу загрузок
	dataDir string
	maxSize int64
	logger  *slog.Logger
}

// New создаёт FileStore. Каталог создаётся при первом сохранении.
func New(dataDir string, maxSize int64, logger *slog.Logger) (*FileStore, error) {
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("некорректный каталог загрузок %s: %w", dataDir, err)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{dataDir: abs, maxSize: maxSize, logger: logger.With(slog.String("component", "filestore"))}, nil
}

// Save валидирует и записывает файл на диск.
// Возвращённый Path — абсолютный путь к файлу.
func (fs *FileStore) Save(ctx context.Context, u Upload) (*model.CVFile, error) {
	if err := Validate(u.ContentType, u.Size, fs.maxSize); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(fs.dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог загрузок %s: %w", fs.dataDir, err)
	}

	name := GenerateName(u.OriginalName)
	fullPath := filepath.Join(fs.dataDir, name)
	tmpPath := fullPath + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Читаем не больше лимита + 1 байт: заявленному размеру не доверяем
	size, err := io.Copy(f, io.LimitReader(u.Reader, fs.maxSize+1))
	if err == nil && size > fs.maxSize {
		err = ErrTooLarge
	}
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		if errors.Is(err, ErrInvalidFile) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &model.CVFile{
		Filename:     name,
		OriginalName: u.OriginalName,
		Path:         fullPath,
		Size:         size,
		MimeType:     normalizeContentType(u.ContentType),
	}, nil
}

// Delete удаляет файл с диска. Возвращает nil, если файла уже нет.
func (fs *FileStore) Delete(_ context.Context, path string) error {
	full, ok := fs.resolve(path)
	if !ok {
		return nil
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", full, err)
	}
	return nil
}

// Open открывает файл для чтения.
func (fs *FileStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	full, ok := fs.resolve(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", full, err)
	}
	return f, nil
}

// resolve приводит сохранённый путь к файлу внутри каталога загрузок.
// Путь из другого каталога (например, после смены NK_UPLOAD_DIR) ищется
// по имени файла в текущем каталоге; за его пределы операции не выходят.
// ok == false — файл заведомо отсутствует.
func (fs *FileStore) resolve(path string) (string, bool) {
	clean := filepath.Clean(path)
	if strings.HasPrefix(clean, fs.dataDir+string(filepath.Separator)) {
		return clean, true
	}

	name := filepath.Base(clean)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		fs.logger.Warn("Путь CV вне каталога загрузок, файл считается отсутствующим",
			slog.String("path", path),
		)
		return "", false
	}
	fs.logger.Warn("Путь CV вне каталога загрузок, поиск по имени файла",
		slog.String("path", path),
		slog.String("data_dir", fs.dataDir),
	)
	return filepath.Join(fs.dataDir, name), true
}

// DataDir возвращает путь к каталогу загрузок.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

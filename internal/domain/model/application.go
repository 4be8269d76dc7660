package model

import (
	"fmt"
	"time"
)

// Status — этап обработки заявки.
type Status string

// Допустимые статусы заявки. Переходы между ними не ограничены.
const (
	StatusNew         Status = "New"
	StatusReviewed    Status = "Reviewed"
	StatusContacted   Status = "Contacted"
	StatusInterviewed Status = "Interviewed"
	StatusHired       Status = "Hired"
	StatusRejected    Status = "Rejected"
)

// AllStatuses — статусы в порядке прохождения воронки.
var AllStatuses = []Status{
	StatusNew,
	StatusReviewed,
	StatusContacted,
	StatusInterviewed,
	StatusHired,
	StatusRejected,
}

// IsValid проверяет, что статус входит в перечень допустимых.
func (s Status) IsValid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus преобразует строку в Status с проверкой.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", fmt.Errorf("недопустимый статус %q", s)
	}
	return st, nil
}

// CVFile — описание сохранённого файла резюме.
type CVFile struct {
	// Filename — сгенерированное имя (uuid + расширение)
	Filename string
	// OriginalName — имя файла, загруженного кандидатом
	OriginalName string
	// Path — путь в хранилище (абсолютный путь на диске или ключ S3).
	// Не отдаётся в ответах API.
	Path string
	// Size — размер в байтах
	Size int64
	// MimeType — заявленный MIME-тип
	MimeType string
}

// Note — внутренняя заметка рекрутера к заявке. Заметки только добавляются.
type Note struct {
	Text      string    `json:"text"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Application — заявка кандидата. Хранится в таблице applications.
type Application struct {
	ID         string
	FullName   string
	Email      string
	Phone      string
	Education  string
	Experience string
	Skills     string
	Position   string
	Message    string
	CVFile     CVFile
	Status     Status
	Notes      []Note
	// SubmittedAt — время подачи, не меняется
	SubmittedAt time.Time
	// LastUpdated — обновляется при каждом изменении
	LastUpdated time.Time
	// LastUpdatedBy — email сотрудника, внёсшего последнее изменение
	LastUpdatedBy *string
}

// ApplicationFilter — критерии отбора заявок. Пустое поле означает
// отсутствие ограничения.
type ApplicationFilter struct {
	// Search — подстрока без учёта регистра по имени, email и позиции
	Search *string
	// Status — точное совпадение статуса
	Status *Status
	// Position — точное совпадение позиции
	Position *string
}

// Поля сортировки списка заявок.
const (
	SortSubmittedAt = "submittedAt"
	SortLastUpdated = "lastUpdated"
	SortFullName    = "fullName"
	SortEmail       = "email"
	SortPosition    = "position"
	SortStatus      = "status"
)

// ApplicationSort — порядок сортировки списка заявок.
type ApplicationSort struct {
	Field string
	Desc  bool
}

// DefaultApplicationSort — новые заявки первыми.
var DefaultApplicationSort = ApplicationSort{Field: SortSubmittedAt, Desc: true}

// Пакет s3store — хранение файлов CV в S3-совместимом бакете (AWS S3, MinIO).
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/nkrecruitment/portal/internal/config"
	"github.com/nkrecruitment/portal/internal/domain/model"
	"github.com/nkrecruitment/portal/internal/storage/filestore"
)

// ObjectAPI — подмножество клиента S3, используемое хранилищем.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store — реализация filestore.Store поверх S3.
// Path в model.CVFile — ключ объекта в бакете.
type Store struct {
	client  ObjectAPI
	bucket  string
	prefix  string
	maxSize int64
}

var _ filestore.Store = (*Store)(nil)

// NewClient создаёт клиент S3 со статическими учётными данными.
// Для MinIO используется path-style адресация.
func NewClient(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey, cfg.S3SecretKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации S3: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// New создаёт хранилище в бакете bucket с префиксом ключей prefix.
func New(client ObjectAPI, bucket, prefix string, maxSize int64) *Store {
	if maxSize <= 0 {
		maxSize = filestore.DefaultMaxSize
	}
	return &Store{client: client, bucket: bucket, prefix: prefix, maxSize: maxSize}
}

// Save валидирует файл и загружает его в бакет.
// Файл буферизуется в памяти (не больше лимита), чтобы тело запроса было seekable.
func (s *Store) Save(ctx context.Context, u filestore.Upload) (*model.CVFile, error) {
	if err := filestore.Validate(u.ContentType, u.Size, s.maxSize); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(u.Reader, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, filestore.ErrTooLarge
	}

	name := filestore.GenerateName(u.OriginalName)
	key := path.Join(s.prefix, name)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(u.ContentType),
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки объекта %s в S3: %w", key, err)
	}

	return &model.CVFile{
		Filename:     name,
		OriginalName: u.OriginalName,
		Path:         key,
		Size:         int64(len(data)),
		MimeType:     u.ContentType,
	}, nil
}

// Delete удаляет объект. S3 не возвращает ошибку для отсутствующего ключа.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления объекта %s из S3: %w", key, err)
	}
	return nil
}

// Open возвращает тело объекта.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", filestore.ErrNotFound, key)
		}
		return nil, fmt.Errorf("ошибка получения объекта %s из S3: %w", key, err)
	}
	return out.Body, nil
}

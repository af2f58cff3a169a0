// archive.go — выгрузка CSV-экспортов в S3-совместимое хранилище.
package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter — загрузка объекта (реализуется *s3.Client).
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options — параметры подключения к хранилищу.
type S3Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// NewS3Client создаёт клиента S3 со статическими ключами и адресацией
// path-style (MinIO и аналоги).
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey, opts.SecretKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("конфигурация S3: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = true
	}), nil
}

// Archive сохраняет экспорты в бакет под ключом exports/YYYY/MM/<имя>.
type Archive struct {
	client ObjectPutter
	bucket string
	loc    *time.Location
	logger *slog.Logger
}

// NewArchive создаёт архив. client == nil означает, что архив не настроен.
func NewArchive(client ObjectPutter, bucket string, loc *time.Location, logger *slog.Logger) *Archive {
	if loc == nil {
		loc = time.UTC
	}
	return &Archive{
		client: client,
		bucket: bucket,
		loc:    loc,
		logger: logger.With(slog.String("component", "archive")),
	}
}

// ArchiveKey — ключ объекта для файла name, выгруженного в момент at.
func ArchiveKey(name string, at time.Time, loc *time.Location) string {
	at = at.In(loc)
	return fmt.Sprintf("exports/%04d/%02d/%s", at.Year(), int(at.Month()), name)
}

// Store загружает файл и возвращает ключ объекта.
func (a *Archive) Store(ctx context.Context, f *ExportFile, at time.Time) (string, error) {
	if a == nil || a.client == nil {
		return "", ErrArchiveDisabled
	}
	key := ArchiveKey(f.Name, at, a.loc)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(f.Content),
		ContentLength: aws.Int64(int64(len(f.Content))),
		ContentType:   aws.String("text/csv; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("выгрузка %s в S3: %w", key, err)
	}
	a.logger.Info("Экспорт выгружен в архив",
		slog.String("bucket", a.bucket),
		slog.String("key", key),
		slog.Int("bytes", len(f.Content)),
	)
	return key, nil
}

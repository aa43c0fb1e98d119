// Хранилище PDF отчетов: S3 совместимые бакеты (Minio, Supabase S3, AWS) и загрузка по ссылке.
//
// Основные возможности:
//   - Единый интерфейс ObjectStorage с выбором реализации по STORAGE_BACKEND.
//   - Ключи вида ats/<дата>/<бригада>/<файл>.
//   - Публичная ссылка на сохраненный объект.
//   - Загрузка копии отчета PUT запросом в папку супервайзера.
package filestorage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	minioCredentials "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/cicsa-sst/ats/internal/ats/config"
	"github.com/cicsa-sst/ats/internal/ats/types"
)

const (
	UploadTries      = 3
	uploadRetryDelay = time.Second
)

var ErrStorageDisabled = errors.New("object storage disabled")

type ObjectStorage interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}

// ReportKey путь отчета в бакете. Пробелы в названии бригады заменяются на "_".
func ReportKey(date, crew, filename string) string {
	if strings.TrimSpace(date) == "" {
		date = time.Now().Format(types.DateLayout)
	}
	crew = strings.TrimSpace(crew)
	if crew == "" {
		crew = types.NoCrew
	}
	return fmt.Sprintf("ats/%s/%s/%s", date, strings.ReplaceAll(crew, " ", "_"), filename)
}

// New создает хранилище по STORAGE_BACKEND.
func New(ctx context.Context, cfg *config.Config) (ObjectStorage, error) {
	switch cfg.StorageBackend {
	case config.StorageNone:
		slog.Info("Object storage disabled")
		return NoopStorage{}, nil
	case config.StorageS3:
		return NewS3Storage(ctx, cfg)
	case config.StorageMinio:
		return NewMinioStorage(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

type NoopStorage struct{}

func (NoopStorage) Save(ctx context.Context, key string, data []byte, contentType string) error {
	return ErrStorageDisabled
}

func (NoopStorage) PublicURL(key string) string {
	return ""
}

type MinioStorage struct {
	client     *minio.Client
	bucketName string
	publicBase string
}

// NewMinioStorage подключается к S3 совместимому хранилищу и создает бакет при отсутствии.
func NewMinioStorage(ctx context.Context, cfg *config.Config) (*MinioStorage, error) {
	host, secure, err := splitEndpoint(cfg.AWSEndpoint, cfg.AWSUseSSL)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  minioCredentials.NewStaticV4(cfg.AWSAccessKey, cfg.AWSSecretKey, ""),
		Secure: secure,
		Region: cfg.AWSRegion,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.PDFBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.PDFBucket, err)
	}

	if !exists {
		// Create bucket if not exist
		if err := client.MakeBucket(ctx, cfg.PDFBucket, minio.MakeBucketOptions{Region: cfg.AWSRegion}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.PDFBucket, err)
		}
		slog.Info("Bucket created", "bucket", cfg.PDFBucket)
	}

	publicBase := cfg.StoragePublicURL
	if publicBase == "" {
		publicBase = client.EndpointURL().String() + "/" + cfg.PDFBucket
	}

	return &MinioStorage{client: client, bucketName: cfg.PDFBucket, publicBase: publicBase}, nil
}

func (s *MinioStorage) Save(ctx context.Context, key string, data []byte, contentType string) error {
	putOptions := minio.PutObjectOptions{ContentType: contentType}

	var err error
	for i := range UploadTries {
		_, err = s.client.PutObject(ctx,
			s.bucketName,
			key,
			bytes.NewReader(data),
			int64(len(data)),
			putOptions)
		if err == nil {
			return nil
		}
		slog.Warn("Put object", "key", key, "try", i+1, "err", err)
		if i == UploadTries-1 {
			break
		}
		if err := sleepCtx(ctx, uploadRetryDelay); err != nil {
			return err
		}
	}
	return fmt.Errorf("put object %s: %w", key, err)
}

func (s *MinioStorage) PublicURL(key string) string {
	return joinURL(s.publicBase, key)
}

type S3Storage struct {
	client     *s3.Client
	bucketName string
	publicBase string
}

// NewS3Storage клиент AWS S3. При заданном AWS_S3_ENDPOINT_URL используется path style адресация.
func NewS3Storage(ctx context.Context, cfg *config.Config) (*S3Storage, error) {
	if cfg.AWSAccessKey == "" || cfg.AWSSecretKey == "" {
		return nil, errors.New("AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY required for s3 storage")
	}

	awsCfg, err := s3config.LoadDefaultConfig(ctx,
		s3config.WithRegion(cfg.AWSRegion),
		s3config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AWSAccessKey, cfg.AWSSecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := ""
	if cfg.AWSEndpoint != "" {
		host, secure, err := splitEndpoint(cfg.AWSEndpoint, cfg.AWSUseSSL)
		if err != nil {
			return nil, err
		}
		scheme := "http://"
		if secure {
			scheme = "https://"
		}
		endpoint = scheme + host
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	publicBase := cfg.StoragePublicURL
	if publicBase == "" {
		if endpoint != "" {
			publicBase = endpoint + "/" + cfg.PDFBucket
		} else {
			publicBase = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.PDFBucket, cfg.AWSRegion)
		}
	}

	return &S3Storage{client: client, bucketName: cfg.PDFBucket, publicBase: publicBase}, nil
}

func (s *S3Storage) Save(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *S3Storage) PublicURL(key string) string {
	return joinURL(s.publicBase, key)
}

// splitEndpoint принимает адрес с протоколом или без, возвращает host[:port] и признак TLS.
func splitEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", false, errors.New("AWS_S3_ENDPOINT_URL is empty")
	}
	if !strings.Contains(endpoint, "://") {
		return strings.TrimRight(endpoint, "/"), useSSL, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse storage endpoint: %w", err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("storage endpoint %q has no host", endpoint)
	}
	return u.Host, u.Scheme == "https", nil
}

func joinURL(base, key string) string {
	if base == "" {
		return ""
	}
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

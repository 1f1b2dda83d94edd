// Package storage выгружает готовый файл дампа в S3-совместимое хранилище.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

// DefaultPartSize - размер части multipart-загрузки
const DefaultPartSize = 16 * 1024 * 1024

// Config - параметры S3
type Config struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
	// Endpoint - адрес S3-совместимого сервиса (MinIO, Ceph). Пусто - AWS.
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// Prefix добавляется к ключу объекта: <prefix>/<имя файла>
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"path_style"`
	PartSize  int64  `yaml:"part_size"`
}

// Validate проверяет обязательные параметры
func (c Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("%w: s3 bucket is required", dumperr.ErrConfig)
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("%w: s3 access_key and secret_key must be set together", dumperr.ErrConfig)
	}
	return nil
}

// Key возвращает ключ объекта для файла
func (c Config) Key(file string) string {
	name := filepath.Base(file)
	if c.Prefix == "" {
		return name
	}
	return path.Join(c.Prefix, name)
}

// Upload - результат выгрузки
type Upload struct {
	Bucket   string
	Key      string
	Location string
	ETag     string
	Size     int64
	Duration time.Duration
}

// Uploader выгружает файлы через s3 manager
type Uploader struct {
	config   Config
	uploader *manager.Uploader
}

// NewUploader создает клиент S3.
// Статические ключи приоритетнее цепочки AWS по умолчанию (env, профиль, IMDS).
func NewUploader(ctx context.Context, cfg Config) (*Uploader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load aws config: %w", dumperr.ErrConfig, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	partSize := cfg.PartSize
	if partSize <= 0 {
		partSize = DefaultPartSize
	}

	return &Uploader{
		config: cfg,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = partSize
		}),
	}, nil
}

// UploadFile выгружает файл дампа. Ошибки сети имеют класс соединения.
func (u *Uploader) UploadFile(ctx context.Context, file string) (*Upload, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open dump file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat dump file: %w", err)
	}

	key := u.config.Key(file)
	start := time.Now()

	out, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.config.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(ContentType(file)),
	})
	if err != nil {
		return nil, dumperr.Connection("s3 upload "+key, err)
	}

	return &Upload{
		Bucket:   u.config.Bucket,
		Key:      key,
		Location: out.Location,
		ETag:     aws.ToString(out.ETag),
		Size:     info.Size(),
		Duration: time.Since(start),
	}, nil
}

// ContentType по расширению файла дампа
func ContentType(file string) string {
	switch filepath.Ext(file) {
	case ".gz":
		return "application/gzip"
	case ".zst":
		return "application/zstd"
	default:
		return "application/sql"
	}
}

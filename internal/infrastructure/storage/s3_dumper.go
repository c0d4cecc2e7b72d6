package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"medvision/internal/domain/port"
)

// S3Config: параметры бакета для отладочных снимков.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // для S3-совместимых хранилищ, пусто для AWS
}

// S3Dumper выгружает отладочные снимки в бакет S3.
type S3Dumper struct {
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
}

var _ port.DebugDumper = (*S3Dumper)(nil)

// NewS3Dumper создаёт сессию AWS со статическими ключами.
func NewS3Dumper(cfg S3Config) (*S3Dumper, error) {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}

	return &S3Dumper{
		uploader: s3manager.NewUploader(sess),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
	}, nil
}

// Dump загружает данные под ключом prefix/name.
func (d *S3Dumper) Dump(ctx context.Context, name string, data []byte) error {
	key := path.Join(d.prefix, name)
	_, err := d.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

package s3

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/keytune/keytune/pkg/util"
)

// Any S3-compatible store works, including the storage API of hosted
// backends, as long as it accepts SigV4 presigned GETs.
type Storage struct {
	AccessKeyId     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`

	client    *s3.Client
	uploader  *manager.Uploader
	presigner *s3.PresignClient
}

// Upload streams r to the bucket. Bodies larger than the part size go up as
// a single multipart upload, so the object is written exactly once.
func (s *Storage) Upload(ctx context.Context, path string, r io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(path),
		Body:        r,
		ContentType: aws.String(contentType),
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("s3 upload %s: %w", path, err)
	}
	return nil
}

func (s *Storage) SignedURL(ctx context.Context, path string, expires time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s: %w", path, err)
	}
	return req.URL, nil
}

func (s *Storage) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(path),
	})

	return err
}

// NewStorage returns a new initialized Storage
func NewStorage(c map[string]any) (*Storage, error) {
	q, err := util.ConfigToStruct[Storage](c)
	if err != nil {
		return nil, err
	}
	if q.Bucket == "" {
		q.Bucket = "music-files"
	}

	appCreds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(q.AccessKeyId, q.SecretAccessKey, ""))

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(q.Region),
		config.WithCredentialsProvider(appCreds),
	)
	if err != nil {
		return nil, err
	}

	var endpoint *string
	if q.Endpoint != "" {
		endpoint = aws.String(q.Endpoint)
	}

	q.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = endpoint
		o.UsePathStyle = q.UsePathStyle
	})
	q.uploader = manager.NewUploader(q.client)
	q.presigner = s3.NewPresignClient(q.client)

	return q, nil
}

package gcs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/keytune/keytune/pkg/util"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

type Storage struct {
	Bucket                string `mapstructure:"bucket"`
	CredentialsJsonString string `mapstructure:"credentials_json"`

	client *storage.Client
}

func (s *Storage) Upload(ctx context.Context, path string, r io.Reader, contentType string) error {
	wc := s.client.Bucket(s.Bucket).Object(path).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := io.Copy(wc, r); err != nil {
		log.Error().Err(err).Str("path", path).Msg("error copying to gcs")
		wc.Close()
		return err
	}
	return wc.Close()
}

// SignedURL relies on the service account in credentials_json to sign.
func (s *Storage) SignedURL(ctx context.Context, path string, expires time.Duration) (string, error) {
	return s.client.Bucket(s.Bucket).SignedURL(path, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(expires),
	})
}

func (s *Storage) Delete(ctx context.Context, path string) error {
	err := s.client.Bucket(s.Bucket).Object(path).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func NewStorage(c map[string]any) (*Storage, error) {
	q, err := util.ConfigToStruct[Storage](c)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(context.Background(), option.WithCredentialsJSON([]byte(q.CredentialsJsonString)))
	if err != nil {
		return nil, err
	}
	q.client = client

	return q, nil
}

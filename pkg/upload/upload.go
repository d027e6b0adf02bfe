package upload

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/keytune/keytune/pkg/auth"
	"github.com/keytune/keytune/pkg/storage"
	"github.com/keytune/keytune/pkg/storage/database/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var uploadedBytes = promauto.NewCounter(prometheus.CounterOpts{
	Name: "uploaded_bytes_total",
	Help: "Bytes of audio stored",
})

var uploadsByType = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "uploads_total",
	Help: "Completed uploads by content type",
}, []string{"content_type"})

type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Result struct {
	Link models.MusicLink
}

type Service struct {
	storage *storage.Services
	now     func() time.Time
}

func NewService(s *storage.Services) *Service {
	return &Service{storage: s, now: time.Now}
}

// Upload validates f, stores it in a single object write and records the
// link. progress may be nil.
func (s *Service) Upload(ctx context.Context, owner *auth.User, f File, progress ProgressFunc) (*Result, error) {
	if err := Validate(f.ContentType, f.Size); err != nil {
		return nil, err
	}
	if owner == nil || owner.ID == "" {
		return nil, ErrUnauthenticated
	}

	token := NewLinkToken()
	path := StoragePath(owner.ID, token, f.Name)

	if progress != nil {
		progress(0)
	}

	body := &progressReader{r: io.LimitReader(f.Body, MaxFileSize+1), total: f.Size, fn: progress}
	if err := s.storage.BlobStore.Upload(ctx, path, body, f.ContentType); err != nil {
		return nil, fmt.Errorf("upload: store %s: %w", path, err)
	}
	if body.read > MaxFileSize {
		s.removeObject(path)
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, body.read)
	}

	now := s.now().UTC()
	link := models.MusicLink{
		UserID:    owner.ID,
		Filename:  f.Name,
		FilePath:  path,
		LinkID:    token,
		ExpiresAt: now.Add(LinkTTL),
		FileSize:  body.read,
		FileType:  f.ContentType,
		CreatedAt: now,
	}
	if err := s.storage.Database.CreateMusicLink(ctx, &link); err != nil {
		s.removeObject(path)
		return nil, fmt.Errorf("upload: save link %s: %w", token, err)
	}

	if err := s.storage.Database.RecordUpload(ctx, &models.UploadAnalytics{
		UserID:   owner.ID,
		LinkID:   token,
		FileSize: link.FileSize,
		FileType: link.FileType,
	}); err != nil {
		log.Error().Err(err).Str("link_id", token).Msg("Unable to record upload analytics")
	}

	uploadedBytes.Add(float64(link.FileSize))
	uploadsByType.WithLabelValues(link.FileType).Inc()

	if progress != nil {
		progress(100)
	}

	log.Info().Str("link_id", token).Str("user_id", owner.ID).Int64("size", link.FileSize).Msg("Stored upload")

	return &Result{Link: link}, nil
}

func (s *Service) removeObject(path string) {
	// the request context may already be cancelled
	if err := s.storage.BlobStore.Delete(context.Background(), path); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Unable to remove orphaned upload")
	}
}

package links

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/keytune/keytune/pkg/auth"
	"github.com/keytune/keytune/pkg/storage"
	"github.com/keytune/keytune/pkg/storage/blobstore"
	"github.com/keytune/keytune/pkg/storage/database/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("link not found")

const (
	SignedURLValidity = time.Hour
	// signed URLs are reused from the cache well before they stop working
	signedURLCacheTTL = 50 * time.Minute
)

var accessOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "link_access_total",
	Help: "Link access checks by outcome",
}, []string{"outcome"})

type Access struct {
	Decision
	Link      models.MusicLink
	SignedURL string
}

type Service struct {
	storage *storage.Services
	now     func() time.Time
}

func NewService(s *storage.Services) *Service {
	return &Service{storage: s, now: time.Now}
}

// Check looks the link up and decides whether caller may play it. A nil
// caller is anonymous. Unknown tokens yield a NotFound decision, not an
// error; errors are reserved for backend failures.
func (s *Service) Check(ctx context.Context, linkID string, caller *auth.User) (*Access, error) {
	link, err := s.storage.Database.GetMusicLink(ctx, linkID)
	if errors.Is(err, models.ErrNotFound) {
		accessOutcomes.WithLabelValues(NotFound.String()).Inc()
		return &Access{Decision: Decision{Outcome: NotFound}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("links.Check: %s: %w", linkID, err)
	}

	access := &Access{
		Decision: Decide(link, caller, s.now().UTC()),
		Link:     link,
	}
	accessOutcomes.WithLabelValues(access.Outcome.String()).Inc()

	if access.Outcome != Granted {
		return access, nil
	}

	access.SignedURL, err = s.signedURL(ctx, link.FilePath)
	if errors.Is(err, blobstore.ErrNotFound) {
		log.Warn().Str("link_id", linkID).Str("path", link.FilePath).Msg("Link points at a missing object")
		accessOutcomes.WithLabelValues("missing_object").Inc()
		return &Access{Decision: Decision{Outcome: NotFound}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("links.Check: %s: %w", linkID, err)
	}

	if err := s.storage.Database.IncrementDownloadCount(ctx, linkID); err != nil {
		log.Warn().Err(err).Str("link_id", linkID).Msg("Unable to count download")
	}

	return access, nil
}

func (s *Service) signedURL(ctx context.Context, path string) (string, error) {
	key := "signed:" + path
	if cached, ok := s.storage.Cache.Get(key); ok {
		return string(cached), nil
	}

	url, err := s.storage.BlobStore.SignedURL(ctx, path, SignedURLValidity)
	if err != nil {
		return "", err
	}

	ttl := signedURLCacheTTL
	if err := s.storage.Cache.Set(key, []byte(url), &ttl); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Unable to cache signed url")
	}

	return url, nil
}

// Get returns the link without any access decision.
func (s *Service) Get(ctx context.Context, linkID string) (models.MusicLink, error) {
	link, err := s.storage.Database.GetMusicLink(ctx, linkID)
	if errors.Is(err, models.ErrNotFound) {
		return link, ErrNotFound
	}
	return link, err
}

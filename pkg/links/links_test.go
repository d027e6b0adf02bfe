package links

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/keytune/keytune/pkg/auth"
	"github.com/keytune/keytune/pkg/config"
	"github.com/keytune/keytune/pkg/storage"
	"github.com/keytune/keytune/pkg/storage/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	owner := &auth.User{ID: "owner"}
	stranger := &auth.User{ID: "stranger"}

	live := models.MusicLink{UserID: "owner", LinkID: "tok", ExpiresAt: now.Add(time.Hour)}
	premium := live
	premium.IsPremium = true
	expired := live
	expired.ExpiresAt = now.Add(-time.Second)
	expiredPremium := premium
	expiredPremium.ExpiresAt = now.Add(-time.Second)

	tests := []struct {
		name   string
		link   models.MusicLink
		caller *auth.User
		want   Decision
	}{
		{"free anonymous", live, nil, Decision{Outcome: Granted}},
		{"free stranger", live, stranger, Decision{Outcome: Granted}},
		{"free owner", live, owner, Decision{Outcome: Granted}},
		{"premium anonymous", premium, nil, Decision{Outcome: LoginRequired, ReturnPath: "/link/tok"}},
		{"premium stranger", premium, stranger, Decision{Outcome: Denied, Reason: ReasonOwnerOnly}},
		{"premium owner", premium, owner, Decision{Outcome: Granted}},
		{"expired anonymous", expired, nil, Decision{Outcome: Expired}},
		{"expired owner", expired, owner, Decision{Outcome: Expired}},
		{"expired premium owner", expiredPremium, owner, Decision{Outcome: Expired}},
		{"expired premium anonymous", expiredPremium, nil, Decision{Outcome: Expired}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.link, tt.caller, now)
			if got != tt.want {
				t.Fatalf("Expected %+v; Got %+v", tt.want, got)
			}
		})
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "granted", Granted.String())
	assert.Equal(t, "login_required", LoginRequired.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}

func newServices(t *testing.T) *storage.Services {
	t.Helper()
	s, err := storage.New(config.KeyTuneConfig{
		Database:  config.Database{Type: "memory"},
		BlobStore: config.BlobStore{Type: "memory"},
		Cache:     config.Cache{Type: "memory"},
		Queue:     config.Queue{Type: "memory"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	s := newServices(t)
	svc := NewService(s)

	now := time.Now().UTC()
	path := "owner/tok-song.mp3"
	require.NoError(t, s.BlobStore.Upload(ctx, path, bytes.NewReader([]byte("abc")), "audio/mpeg"))
	require.NoError(t, s.Database.CreateMusicLink(ctx, &models.MusicLink{
		UserID: "owner", Filename: "song.mp3", FilePath: path, LinkID: "tok",
		ExpiresAt: now.Add(7 * 24 * time.Hour),
	}))
	require.NoError(t, s.Database.CreateMusicLink(ctx, &models.MusicLink{
		UserID: "owner", Filename: "old.mp3", FilePath: "owner/old-old.mp3", LinkID: "old",
		ExpiresAt: now.Add(-time.Hour),
	}))

	t.Run("unknown token", func(t *testing.T) {
		a, err := svc.Check(ctx, "missing", nil)
		require.NoError(t, err)
		assert.Equal(t, NotFound, a.Outcome)

		_, err = svc.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("expired has no url", func(t *testing.T) {
		a, err := svc.Check(ctx, "old", nil)
		require.NoError(t, err)
		assert.Equal(t, Expired, a.Outcome)
		assert.Empty(t, a.SignedURL)
	})

	t.Run("granted anonymously and cached", func(t *testing.T) {
		a, err := svc.Check(ctx, "tok", nil)
		require.NoError(t, err)
		require.Equal(t, Granted, a.Outcome)
		assert.True(t, strings.HasPrefix(a.SignedURL, "/blobs/"))
		assert.Equal(t, "song.mp3", a.Link.Filename)

		cached, ok := s.Cache.Get("signed:" + path)
		require.True(t, ok)
		assert.Equal(t, a.SignedURL, string(cached))

		again, err := svc.Check(ctx, "tok", &auth.User{ID: "someone"})
		require.NoError(t, err)
		assert.Equal(t, a.SignedURL, again.SignedURL)

		link, err := s.Database.GetMusicLink(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, int64(2), link.DownloadCount)
	})

	t.Run("missing object", func(t *testing.T) {
		require.NoError(t, s.Database.CreateMusicLink(ctx, &models.MusicLink{
			UserID: "owner", Filename: "gone.mp3", FilePath: "owner/gone-gone.mp3", LinkID: "gone",
			ExpiresAt: now.Add(time.Hour),
		}))

		a, err := svc.Check(ctx, "gone", nil)
		require.NoError(t, err)
		assert.Equal(t, NotFound, a.Outcome)
		assert.Empty(t, a.SignedURL)

		link, err := s.Database.GetMusicLink(ctx, "gone")
		require.NoError(t, err)
		assert.Zero(t, link.DownloadCount)
	})

	t.Run("premium", func(t *testing.T) {
		require.NoError(t, s.Database.SetPremium(ctx, "tok"))

		a, err := svc.Check(ctx, "tok", nil)
		require.NoError(t, err)
		assert.Equal(t, LoginRequired, a.Outcome)
		assert.Equal(t, "/link/tok", a.ReturnPath)

		a, err = svc.Check(ctx, "tok", &auth.User{ID: "someone"})
		require.NoError(t, err)
		assert.Equal(t, Denied, a.Outcome)
		assert.Equal(t, ReasonOwnerOnly, a.Reason)
		assert.Empty(t, a.SignedURL)

		a, err = svc.Check(ctx, "tok", &auth.User{ID: "owner"})
		require.NoError(t, err)
		assert.Equal(t, Granted, a.Outcome)
		assert.NotEmpty(t, a.SignedURL)
	})
}

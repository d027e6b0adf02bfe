package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/keytune/keytune/pkg/auth"
	"github.com/keytune/keytune/pkg/config"
	"github.com/keytune/keytune/pkg/storage"
	"github.com/keytune/keytune/pkg/storage/blobstore"
	"github.com/keytune/keytune/pkg/storage/blobstore/memory"
	"github.com/keytune/keytune/pkg/storage/database"
	"github.com/keytune/keytune/pkg/storage/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	blobstore.BlobStore
	uploads int
	deletes int
}

func (c *countingStore) Upload(ctx context.Context, path string, r io.Reader, contentType string) error {
	c.uploads++
	return c.BlobStore.Upload(ctx, path, r, contentType)
}

func (c *countingStore) Delete(ctx context.Context, path string) error {
	c.deletes++
	return c.BlobStore.Delete(ctx, path)
}

type countingDB struct {
	database.Database
	creates   int
	createErr error
	uploadErr error
}

func (d *countingDB) CreateMusicLink(ctx context.Context, link *models.MusicLink) error {
	d.creates++
	if d.createErr != nil {
		return d.createErr
	}
	return d.Database.CreateMusicLink(ctx, link)
}

func (d *countingDB) RecordUpload(ctx context.Context, u *models.UploadAnalytics) error {
	if d.uploadErr != nil {
		return d.uploadErr
	}
	return d.Database.RecordUpload(ctx, u)
}

func newTestService(t *testing.T) (*Service, *countingStore, *countingDB) {
	t.Helper()
	s, err := storage.New(config.KeyTuneConfig{
		Database:  config.Database{Type: "memory"},
		BlobStore: config.BlobStore{Type: "memory"},
		Cache:     config.Cache{Type: "memory"},
		Queue:     config.Queue{Type: "memory"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	store := &countingStore{BlobStore: s.BlobStore}
	db := &countingDB{Database: s.Database}
	s.BlobStore = store
	s.Database = db

	return NewService(s), store, db
}

func TestValidate(t *testing.T) {
	tests := []struct {
		contentType string
		size        int64
		want        error
	}{
		{"audio/mpeg", 1, nil},
		{"audio/x-wav", MaxFileSize, nil},
		{"AUDIO/OGG", 10, nil},
		{"audio/flac; rate=44100", 10, nil},
		{"audio/mpeg", MaxFileSize + 1, ErrTooLarge},
		{"audio/mpeg", 0, ErrEmptyFile},
		{"video/mp4", 10, ErrUnsupportedType},
		{"", 10, ErrUnsupportedType},
		{"not a type", 10, ErrUnsupportedType},
	}
	for _, tt := range tests {
		err := Validate(tt.contentType, tt.size)
		if !errors.Is(err, tt.want) || (tt.want == nil && err != nil) {
			t.Fatalf("Validate(%q, %d): expected %v; got %v", tt.contentType, tt.size, tt.want, err)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "my_song__final_.mp3", SanitizeFilename("my song (final).mp3"))
	assert.Equal(t, "a-b_c.wav", SanitizeFilename("a-b_c.wav"))
	assert.Equal(t, "u1/tok-.._.._x.mp3", StoragePath("u1", "tok", "../../x.mp3"))
}

func TestNewLinkToken(t *testing.T) {
	a, b := NewLinkToken(), NewLinkToken()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
	assert.Equal(t, strings.ToLower(a), a)
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	svc, store, db := newTestService(t)
	owner := &auth.User{ID: "user-1", Email: "u@example.com"}

	content := bytes.Repeat([]byte{0xff}, 2*1024*1024+100)
	var progress []int
	res, err := svc.Upload(ctx, owner, File{
		Name:        "My Song.mp3",
		ContentType: "audio/mpeg",
		Size:        int64(len(content)),
		Body:        bytes.NewReader(content),
	}, func(p int) { progress = append(progress, p) })
	require.NoError(t, err)

	link := res.Link
	assert.Equal(t, "user-1", link.UserID)
	assert.Equal(t, "My Song.mp3", link.Filename)
	assert.Equal(t, "user-1/"+link.LinkID+"-My_Song.mp3", link.FilePath)
	assert.False(t, link.IsPremium)
	assert.Equal(t, int64(len(content)), link.FileSize)
	assert.WithinDuration(t, time.Now().Add(LinkTTL), link.ExpiresAt, time.Minute)
	assert.Equal(t, 1, store.uploads)

	// two full slices, the remainder, then completion
	assert.Equal(t, []int{0, 49, 90, 90, 100}, progress)

	stored, err := db.GetMusicLink(ctx, link.LinkID)
	require.NoError(t, err)
	assert.Equal(t, link.ID, stored.ID)

	data, contentType, err := store.BlobStore.(*memory.Storage).Get(link.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", contentType)
	assert.Equal(t, content, data)
}

func TestUploadRejectedBeforeNetwork(t *testing.T) {
	ctx := context.Background()
	svc, store, db := newTestService(t)
	owner := &auth.User{ID: "user-1"}

	_, err := svc.Upload(ctx, owner, File{
		Name: "big.mp3", ContentType: "audio/mpeg", Size: MaxFileSize + 1, Body: strings.NewReader("x"),
	}, nil)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = svc.Upload(ctx, owner, File{
		Name: "clip.mp4", ContentType: "video/mp4", Size: 10, Body: strings.NewReader("x"),
	}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = svc.Upload(ctx, nil, File{
		Name: "ok.mp3", ContentType: "audio/mpeg", Size: 1, Body: strings.NewReader("x"),
	}, nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	assert.Equal(t, 0, store.uploads)
	assert.Equal(t, 0, db.creates)
}

func TestUploadUnderstatedSize(t *testing.T) {
	svc, store, db := newTestService(t)

	body := bytes.NewReader(make([]byte, MaxFileSize+10))
	_, err := svc.Upload(context.Background(), &auth.User{ID: "user-1"}, File{
		Name: "liar.mp3", ContentType: "audio/mpeg", Size: 10, Body: body,
	}, nil)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, 1, store.deletes)
	assert.Equal(t, 0, db.creates)
}

func TestUploadRemovesOrphan(t *testing.T) {
	svc, store, db := newTestService(t)
	db.createErr = errors.New("database down")

	_, err := svc.Upload(context.Background(), &auth.User{ID: "user-1"}, File{
		Name: "song.mp3", ContentType: "audio/mpeg", Size: 3, Body: strings.NewReader("abc"),
	}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, store.uploads)
	assert.Equal(t, 1, store.deletes)
}

func TestUploadAnalyticsFailureIsNotFatal(t *testing.T) {
	svc, _, db := newTestService(t)
	db.uploadErr = errors.New("analytics down")

	res, err := svc.Upload(context.Background(), &auth.User{ID: "user-1"}, File{
		Name: "song.mp3", ContentType: "audio/mpeg", Size: 3, Body: strings.NewReader("abc"),
	}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Link.LinkID)
}

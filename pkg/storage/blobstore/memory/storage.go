package memory

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/keytune/keytune/pkg/util"
)

var ErrNotFound = errors.New("object not found")

type object struct {
	data        []byte
	contentType string
}

type Storage struct {
	BaseURL string `mapstructure:"base_url"`
	// SigningSecret keys the URL signatures. A random one is generated
	// when empty, which is enough since objects don't outlive the process.
	SigningSecret string `mapstructure:"signing_secret"`

	secret []byte

	mu    sync.RWMutex
	items map[string]object
}

func (s *Storage) Upload(ctx context.Context, path string, r io.Reader, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[path] = object{data: data, contentType: contentType}

	return nil
}

// Get returns the stored bytes and content type for path.
func (s *Storage) Get(path string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.items[path]
	if !ok {
		return nil, "", fmt.Errorf("Storage.Get: %s: %w", path, ErrNotFound)
	}
	return obj.data, obj.contentType, nil
}

func (s *Storage) SignedURL(ctx context.Context, path string, expires time.Duration) (string, error) {
	s.mu.RLock()
	_, ok := s.items[path]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("Storage.SignedURL: %s: %w", path, ErrNotFound)
	}

	exp := strconv.FormatInt(time.Now().Add(expires).Unix(), 10)
	q := url.Values{}
	q.Set("expires", exp)
	q.Set("sig", s.sign(path, exp))
	return s.BaseURL + "/" + url.PathEscape(path) + "?" + q.Encode(), nil
}

func (s *Storage) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, path)
	return nil
}

func (s *Storage) sign(path, expires string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(path + "\n" + expires))
	return hex.EncodeToString(mac.Sum(nil))
}

// ServeHTTP serves objects behind the URLs SignedURL hands out, relative
// to BaseURL. It lets a development server play uploads without a bucket.
func (s *Storage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	query := r.URL.Query()

	exp := query.Get("expires")
	if !hmac.Equal([]byte(query.Get("sig")), []byte(s.sign(path, exp))) {
		http.Error(w, "Invalid signature", http.StatusForbidden)
		return
	}

	expires, err := strconv.ParseInt(exp, 10, 64)
	if err != nil || time.Now().Unix() > expires {
		http.Error(w, "Link expired", http.StatusForbidden)
		return
	}

	data, contentType, err := s.Get(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// NewStorage returns a new initialized Storage
func NewStorage(settings map[string]any) (*Storage, error) {
	rc, err := util.ConfigToStruct[Storage](settings)
	if err != nil {
		return nil, err
	}
	if rc.BaseURL == "" {
		rc.BaseURL = "/blobs"
	}
	rc.secret = []byte(rc.SigningSecret)
	if len(rc.secret) == 0 {
		rc.secret = make([]byte, 32)
		if _, err := rand.Read(rc.secret); err != nil {
			return nil, err
		}
	}
	rc.items = map[string]object{}
	return rc, nil
}

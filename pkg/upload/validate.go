package upload

import (
	"crypto/rand"
	"errors"
	"fmt"
	"mime"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	MaxFileSize = 50 * 1024 * 1024
	ChunkSize   = 1024 * 1024
	LinkTTL     = 7 * 24 * time.Hour
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file exceeds 50MB limit")
	ErrEmptyFile       = errors.New("file is empty")
	ErrUnauthenticated = errors.New("authentication required")
)

var AllowedTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/x-m4a": true,
	"audio/flac":  true,
	"audio/aac":   true,
	"audio/ogg":   true,
}

// Validate checks a declared content type and size. It never touches the
// network, so rejected files cost nothing.
func Validate(contentType string, size int64) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !AllowedTypes[strings.ToLower(mediaType)] {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	if size <= 0 {
		return ErrEmptyFile
	}
	if size > MaxFileSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	return nil
}

func NewLinkToken() string {
	return strings.ToLower(ulid.MustNew(ulid.Now(), rand.Reader).String())
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

func StoragePath(userID, linkToken, filename string) string {
	return userID + "/" + linkToken + "-" + SanitizeFilename(filename)
}

package upload

import (
	"errors"
	"mime/multipart"
	"net/http"
)

var ErrNoFile = errors.New("no file provided")

// MaxRequestSize allows for multipart overhead on top of the file itself.
const MaxRequestSize = MaxFileSize + 1024*1024

// LimitBody caps request bodies at n bytes. It has to run before anything
// that parses the form, such as the CSRF check.
func LimitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

type MultipartFile struct {
	File
	f multipart.File
}

func (m *MultipartFile) Close() error {
	return m.f.Close()
}

// FromRequest pulls the "file" field out of a multipart request and
// validates it before anything is sent to storage.
func FromRequest(w http.ResponseWriter, r *http.Request) (*MultipartFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, ErrTooLarge
		}
		return nil, ErrNoFile
	}

	contentType := header.Header.Get("Content-Type")
	if err := Validate(contentType, header.Size); err != nil {
		file.Close()
		return nil, err
	}

	return &MultipartFile{
		File: File{
			Name:        header.Filename,
			ContentType: contentType,
			Size:        header.Size,
			Body:        file,
		},
		f: file,
	}, nil
}

// Message is the user-facing text for a rejected upload.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedType):
		return "Invalid file type. Please upload an audio file."
	case errors.Is(err, ErrTooLarge):
		return "File size must be less than 50MB"
	case errors.Is(err, ErrEmptyFile):
		return "File is empty"
	case errors.Is(err, ErrNoFile):
		return "No file provided"
	case errors.Is(err, ErrUnauthenticated):
		return "Unauthorized"
	}
	return "Upload failed"
}

// IsRejected reports whether err is the caller's fault rather than a
// backend failure.
func IsRejected(err error) bool {
	return errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrTooLarge) ||
		errors.Is(err, ErrEmptyFile) ||
		errors.Is(err, ErrNoFile)
}

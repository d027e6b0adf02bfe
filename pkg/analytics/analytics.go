package analytics

import (
	"encoding/json"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/keytune/keytune/pkg/storage/queue"
	queue_models "github.com/keytune/keytune/pkg/storage/queue/models"
)

var mobileAgent = regexp.MustCompile(`Mobile|iP(hone|od|ad)|Android|BlackBerry`)

func DeviceType(userAgent string) string {
	if mobileAgent.MatchString(userAgent) {
		return "Mobile"
	}
	return "Desktop"
}

// ClientIP prefers proxy headers over the connection address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Recorder hands page views to the worker pool.
type Recorder struct {
	queue queue.Queue
	now   func() time.Time
}

func NewRecorder(q queue.Queue) *Recorder {
	return &Recorder{queue: q, now: time.Now}
}

func (rec *Recorder) RecordView(r *http.Request, linkID string) error {
	ua := r.UserAgent()
	msg := queue_models.PageViewMessage{
		LinkID:     linkID,
		IPAddress:  ClientIP(r),
		UserAgent:  ua,
		DeviceType: DeviceType(ua),
		ViewedAt:   rec.now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return rec.queue.Enqueue(data)
}

package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// MusicLink is an uploaded file and the public token it is shared under.
// LinkID is the lookup key; ID never leaves the server.
type MusicLink struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID        string    `gorm:"index;not null" json:"user_id"`
	Filename      string    `gorm:"not null" json:"filename"`
	FilePath      string    `gorm:"not null" json:"file_path"`
	LinkID        string    `gorm:"uniqueIndex;not null" json:"link_id"`
	IsPremium     bool      `gorm:"not null;default:false" json:"is_premium"`
	ExpiresAt     time.Time `gorm:"index" json:"expires_at"`
	FileSize      int64     `json:"file_size"`
	FileType      string    `json:"file_type"`
	DownloadCount int64     `gorm:"not null;default:0" json:"download_count"`
	CreatedAt     time.Time `json:"created_at"`
}

func (MusicLink) TableName() string {
	return "music_links"
}

func (l *MusicLink) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

func (l MusicLink) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// LinkAnalytics is written once per view of a link page.
type LinkAnalytics struct {
	ID         int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	LinkID     string    `gorm:"index;not null" json:"link_id"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	Country    string    `json:"country"`
	DeviceType string    `json:"device_type"`
	CreatedAt  time.Time `json:"created_at"`
}

func (LinkAnalytics) TableName() string {
	return "link_analytics"
}

type UploadAnalytics struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	LinkID    string    `gorm:"index;not null" json:"link_id"`
	FileSize  int64     `json:"file_size"`
	FileType  string    `json:"file_type"`
	CreatedAt time.Time `json:"created_at"`
}

func (UploadAnalytics) TableName() string {
	return "upload_analytics"
}

// LinkStats are the per-owner counts shown on the dashboard.
type LinkStats struct {
	TotalLinks   int64
	PremiumLinks int64
	ActiveLinks  int64
	TotalViews   int64
}

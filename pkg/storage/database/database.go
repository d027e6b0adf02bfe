package database

import (
	"context"
	"fmt"
	"time"

	"github.com/keytune/keytune/pkg/config"
	"github.com/keytune/keytune/pkg/storage/database/gorm"
	"github.com/keytune/keytune/pkg/storage/database/models"
)

type Database interface {
	CreateMusicLink(ctx context.Context, link *models.MusicLink) error
	GetMusicLink(ctx context.Context, linkID string) (models.MusicLink, error)
	GetMusicLinks(ctx context.Context, userID string) ([]models.MusicLink, error)
	SetPremium(ctx context.Context, linkID string) error
	SetPremiumForOwner(ctx context.Context, userID string, linkID string) error
	IncrementDownloadCount(ctx context.Context, linkID string) error

	RecordLinkView(ctx context.Context, view *models.LinkAnalytics) error
	RecordUpload(ctx context.Context, upload *models.UploadAnalytics) error
	GetLinkStats(ctx context.Context, userID string, now time.Time) (models.LinkStats, error)

	Close() error
}

func NewConnection(conf config.Database) (Database, error) {
	switch conf.Type {
	case "sqlite", "postgres", "memory":
		return gorm.NewGorm(conf)
	}

	return nil, fmt.Errorf("unsupported database type: %q", conf.Type)
}

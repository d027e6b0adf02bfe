package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/keytune/keytune/pkg/config"
	"github.com/keytune/keytune/pkg/storage/database/models"
	"github.com/keytune/keytune/pkg/util"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Gorm struct {
	DSN string `mapstructure:"dsn"`
	db  *gorm.DB
}

func NewGorm(conf config.Database) (*Gorm, error) {
	rc, err := util.ConfigToStruct[Gorm](conf.Settings)
	if err != nil {
		return nil, err
	}
	if conf.DSN != "" {
		rc.DSN = conf.DSN
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	var db *gorm.DB
	switch conf.Type {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(rc.DSN), gormConfig)
	case "postgres":
		db, err = gorm.Open(postgres.Open(rc.DSN), gormConfig)
	case "memory":
		// Named shared-cache database so every pooled connection sees the
		// same tables; one open connection avoids SQLITE_LOCKED.
		rc.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
		db, err = gorm.Open(sqlite.Open(rc.DSN), gormConfig)
		if err == nil {
			sqlDB, dbErr := db.DB()
			if dbErr != nil {
				return nil, dbErr
			}
			sqlDB.SetMaxOpenConns(1)
		}
	default:
		return nil, fmt.Errorf("unknown database type: %s", conf.Type)
	}
	if err != nil {
		return nil, err
	}

	rc.db = db

	err = db.AutoMigrate(
		&models.MusicLink{},
		&models.LinkAnalytics{},
		&models.UploadAnalytics{},
	)
	if err != nil {
		return nil, err
	}

	return rc, nil
}

func (s *Gorm) CreateMusicLink(ctx context.Context, link *models.MusicLink) error {
	res := s.db.WithContext(ctx).Create(link)
	return res.Error
}

func (s *Gorm) GetMusicLink(ctx context.Context, linkID string) (models.MusicLink, error) {
	var link models.MusicLink
	res := s.db.WithContext(ctx).First(&link, "link_id = ?", linkID)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return link, models.ErrNotFound
		}
		log.Error().Err(res.Error).Str("link_id", linkID).Msg("Unable to find music link")
		return link, res.Error
	}
	return link, nil
}

func (s *Gorm) GetMusicLinks(ctx context.Context, userID string) ([]models.MusicLink, error) {
	var links []models.MusicLink
	res := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&links)
	if res.Error != nil {
		return nil, res.Error
	}
	return links, nil
}

// SetPremium flips is_premium on. Setting it again is a no-op, so replayed
// payment notifications are harmless.
func (s *Gorm) SetPremium(ctx context.Context, linkID string) error {
	res := s.db.WithContext(ctx).
		Model(&models.MusicLink{}).
		Where("link_id = ?", linkID).
		Update("is_premium", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *Gorm) SetPremiumForOwner(ctx context.Context, userID string, linkID string) error {
	res := s.db.WithContext(ctx).
		Model(&models.MusicLink{}).
		Where("link_id = ? AND user_id = ?", linkID, userID).
		Update("is_premium", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// IncrementDownloadCount counts one more served playback URL.
func (s *Gorm) IncrementDownloadCount(ctx context.Context, linkID string) error {
	res := s.db.WithContext(ctx).
		Model(&models.MusicLink{}).
		Where("link_id = ?", linkID).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *Gorm) RecordLinkView(ctx context.Context, view *models.LinkAnalytics) error {
	return s.db.WithContext(ctx).Create(view).Error
}

func (s *Gorm) RecordUpload(ctx context.Context, upload *models.UploadAnalytics) error {
	return s.db.WithContext(ctx).Create(upload).Error
}

func (s *Gorm) GetLinkStats(ctx context.Context, userID string, now time.Time) (models.LinkStats, error) {
	var stats models.LinkStats
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.MusicLink{}).
		Where("user_id = ?", userID).
		Count(&stats.TotalLinks).Error; err != nil {
		return stats, err
	}

	if err := db.Model(&models.MusicLink{}).
		Where("user_id = ? AND is_premium = ?", userID, true).
		Count(&stats.PremiumLinks).Error; err != nil {
		return stats, err
	}

	if err := db.Model(&models.MusicLink{}).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Count(&stats.ActiveLinks).Error; err != nil {
		return stats, err
	}

	if err := db.Model(&models.LinkAnalytics{}).
		Joins("JOIN music_links ON music_links.link_id = link_analytics.link_id").
		Where("music_links.user_id = ?", userID).
		Count(&stats.TotalViews).Error; err != nil {
		return stats, err
	}

	return stats, nil
}

func (s *Gorm) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

package view

import (
	"github.com/keytune/keytune/pkg/storage/database/models"
	"github.com/keytune/keytune/pkg/view/session"
)

type IndexPage struct {
	MaxSizeMB int
	Accept    string
}

type LoginPage struct {
	Redirect string
}

type LinkRow struct {
	models.MusicLink
	ShareURL string
	Expired  bool
}

type DashboardPage struct {
	Links           []LinkRow
	Stats           models.LinkStats
	Notice          *session.Flash
	PaymentsEnabled bool
	Price           string
}

type LinkPage struct {
	Link      models.MusicLink
	SignedURL string
	IsOwner   bool
	Notice    *session.Flash
	Price     string
}

type ErrorPage struct {
	Status  int
	Title   string
	Message string
}

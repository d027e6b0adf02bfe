package view

import (
	"fmt"
	"html/template"
	"net/http"
	"path"
	"time"

	"github.com/foolin/goview"
	"github.com/gorilla/csrf"
	"github.com/keytune/keytune/pkg/auth"
	"github.com/keytune/keytune/pkg/view/session"
	"github.com/keytune/keytune/pkg/view/templates"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type LayoutData struct {
	CSRFToken template.HTML
	Email     string
	LoggedIn  bool
	Flashes   []any
	Data      any
}

type View struct {
	engine   *goview.ViewEngine
	sessions *session.Service
}

func NewView(sessions *session.Service, liveReload bool) (*View, error) {
	engine, err := newConfig("layout/base")
	if err != nil {
		return nil, err
	}
	if !liveReload {
		engine.SetFileHandler(embeddedFH)
	}
	return &View{
		engine:   engine,
		sessions: sessions,
	}, nil
}

func (s *View) Render(w http.ResponseWriter, r *http.Request, statusCode int, name string, data any) {
	flashes, err := s.sessions.GetFlashes(w, r)
	if err != nil {
		log.Err(err).Msg("failed to clear flashes")
	}

	m := LayoutData{
		CSRFToken: csrf.TemplateField(r),
		Flashes:   flashes,
		Data:      data,
	}

	if user, ok := auth.GetUser(r.Context()); ok {
		m.Email = user.Email
		m.LoggedIn = true
	}

	if err := s.engine.Render(w, statusCode, name, m); err != nil {
		log.Error().Err(err).Str("template", name).Msg("Unable to render template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func embeddedFH(config goview.Config, tmpl string) (string, error) {
	bytes, err := templates.Templates.ReadFile(tmpl + config.Extension)
	return string(bytes), err
}

func newConfig(layout string) (*goview.ViewEngine, error) {
	files, err := templates.Templates.ReadDir("partials")
	if err != nil {
		return nil, err
	}

	var partials []string
	for _, f := range files {
		ext := path.Ext(f.Name())
		fn := f.Name()[:len(f.Name())-len(ext)]
		partials = append(partials, path.Join("partials", fn))
	}

	return goview.New(goview.Config{
		Root:         "pkg/view/templates",
		Extension:    ".html",
		Master:       layout,
		Partials:     partials,
		DisableCache: true,
		Funcs: map[string]any{
			"title": func(a string) string {
				return cases.Title(language.AmericanEnglish).String(a)
			},
			"date": func(t time.Time) string {
				return t.UTC().Format("Jan 2, 2006")
			},
			"fileSize": humanSize,
		},
	}), nil
}

func humanSize(n int64) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	}
	return fmt.Sprintf("%d B", n)
}

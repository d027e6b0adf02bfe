package session

import (
	"encoding/gob"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"
)

const gorillaSessionName = "keytune_session"

func init() {
	gob.Register(Flash{})
}

type FlashType string

const (
	FlashTypeSuccess FlashType = "success"
	FlashTypeWarning FlashType = "warning"
	FlashTypeError   FlashType = "error"
)

type Flash struct {
	Type    FlashType
	Title   string
	Message string
	// Link is rendered as a copyable share URL when set.
	Link string
}

type Service struct {
	sessionStore sessions.Store
}

func NewSession(sessionStore sessions.Store) *Service {
	return &Service{
		sessionStore: sessionStore,
	}
}

func (s *Service) NewFlash(w http.ResponseWriter, r *http.Request, f Flash) {
	session, err := s.sessionStore.Get(r, gorillaSessionName)
	if err != nil {
		log.Err(err).Msg("failed to get session")
		return
	}
	session.AddFlash(f)
	err = session.Save(r, w)
	if err != nil {
		log.Err(err).Msg("failed to save session")
	}
}

func (s *Service) GetFlashes(w http.ResponseWriter, r *http.Request) ([]any, error) {
	session, err := s.sessionStore.Get(r, gorillaSessionName)
	if err != nil {
		return nil, err
	}
	flashes := session.Flashes()
	if len(flashes) == 0 {
		return nil, nil
	}
	err = session.Save(r, w)
	if err != nil {
		return nil, err
	}
	return flashes, nil
}

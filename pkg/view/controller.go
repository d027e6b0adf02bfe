package view

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/keytune/keytune/pkg/analytics"
	"github.com/keytune/keytune/pkg/auth"
	"github.com/keytune/keytune/pkg/links"
	"github.com/keytune/keytune/pkg/payments"
	"github.com/keytune/keytune/pkg/storage/database/models"
	"github.com/keytune/keytune/pkg/upload"
	"github.com/keytune/keytune/pkg/view/session"
	"github.com/rs/zerolog/log"
)

type Controller struct {
	session  *session.Service
	view     *View
	deps     Deps
	price    string
	now      func() time.Time
	recorder *analytics.Recorder
}

func NewController(sessions *session.Service, v *View, d Deps) *Controller {
	return &Controller{
		session:  sessions,
		view:     v,
		deps:     d,
		price:    payments.FormatPrice(d.PaymentsConfig.UnitAmount, d.PaymentsConfig.Currency),
		now:      time.Now,
		recorder: analytics.NewRecorder(d.Storage.Queue),
	}
}

func (s *Controller) shareURL(linkID string) string {
	return strings.TrimSuffix(s.deps.BaseURL, "/") + links.LinkPath(linkID)
}

func (s *Controller) renderError(w http.ResponseWriter, r *http.Request, status int, title, message string) {
	s.view.Render(w, r, status, "pages/error", ErrorPage{
		Status:  status,
		Title:   title,
		Message: message,
	})
}

func (s *Controller) GetHome(w http.ResponseWriter, r *http.Request) {
	accept := make([]string, 0, len(upload.AllowedTypes))
	for t := range upload.AllowedTypes {
		accept = append(accept, t)
	}
	sort.Strings(accept)

	s.view.Render(w, r, http.StatusOK, "pages/index", IndexPage{
		MaxSizeMB: upload.MaxFileSize / (1024 * 1024),
		Accept:    strings.Join(accept, ","),
	})
}

func (s *Controller) GetLogin(w http.ResponseWriter, r *http.Request) {
	redirect := auth.SafeRedirect(r.URL.Query().Get("redirect"), "/dashboard")
	if _, ok := auth.GetUser(r.Context()); ok {
		http.Redirect(w, r, redirect, http.StatusFound)
		return
	}
	s.view.Render(w, r, http.StatusOK, "pages/login", LoginPage{Redirect: redirect})
}

func (s *Controller) PostLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	redirect := auth.SafeRedirect(r.Form.Get("redirect"), "/dashboard")
	email := strings.TrimSpace(r.Form.Get("email"))
	password := r.Form.Get("password")

	if email == "" || password == "" {
		s.session.NewFlash(w, r, session.Flash{
			Type:    session.FlashTypeError,
			Title:   "Sign in failed",
			Message: "Email and password are required.",
		})
		http.Redirect(w, r, auth.LoginPath(redirect), http.StatusFound)
		return
	}

	sess, err := s.deps.Provider.SignIn(r.Context(), email, password)
	if err != nil {
		message := "Unable to sign in right now. Please try again."
		if errors.Is(err, auth.ErrInvalidCredentials) {
			message = "Invalid email or password."
		} else {
			log.Error().Err(err).Msg("Sign in failed")
		}
		s.session.NewFlash(w, r, session.Flash{
			Type:    session.FlashTypeError,
			Title:   "Sign in failed",
			Message: message,
		})
		http.Redirect(w, r, auth.LoginPath(redirect), http.StatusFound)
		return
	}

	s.deps.Auth.SetSession(w, sess)
	http.Redirect(w, r, redirect, http.StatusFound)
}

func (s *Controller) PostSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(r.Form.Get("email"))
	password := r.Form.Get("password")
	if email == "" || password == "" {
		s.session.NewFlash(w, r, session.Flash{
			Type:    session.FlashTypeError,
			Title:   "Sign up failed",
			Message: "Email and password are required.",
		})
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	sess, err := s.deps.Provider.SignUp(r.Context(), email, password)
	if err != nil {
		log.Warn().Err(err).Msg("Sign up failed")
		s.session.NewFlash(w, r, session.Flash{
			Type:    session.FlashTypeError,
			Title:   "Sign up failed",
			Message: "Unable to create the account.",
		})
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	if sess.AccessToken == "" {
		s.session.NewFlash(w, r, session.Flash{
			Type:    session.FlashTypeSuccess,
			Title:   "Check your inbox",
			Message: "Confirm your email address, then sign in.",
		})
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	s.deps.Auth.SetSession(w, sess)
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (s *Controller) PostLogout(w http.ResponseWriter, r *http.Request) {
	s.deps.Auth.ClearSession(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Controller) GetDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.GetUser(r.Context())
	ctx := r.Context()
	now := s.now().UTC()

	musicLinks, err := s.deps.Storage.Database.GetMusicLinks(ctx, user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Unable to list links")
		s.renderError(w, r, http.StatusInternalServerError, "Something went wrong", "Unable to load your links.")
		return
	}

	stats, err := s.deps.Storage.Database.GetLinkStats(ctx, user.ID, now)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Unable to load link stats")
		s.renderError(w, r, http.StatusInternalServerError, "Something went wrong", "Unable to load your links.")
		return
	}

	page := DashboardPage{
		Links:           make([]LinkRow, 0, len(musicLinks)),
		Stats:           stats,
		Notice:          paymentNotice(r),
		PaymentsEnabled: s.deps.Payments.Enabled(),
		Price:           s.price,
	}
	for _, l := range musicLinks {
		page.Links = append(page.Links, LinkRow{
			MusicLink: l,
			ShareURL:  s.shareURL(l.LinkID),
			Expired:   l.Expired(now),
		})
	}

	s.view.Render(w, r, http.StatusOK, "pages/dashboard", page)
}

func paymentNotice(r *http.Request) *session.Flash {
	q := r.URL.Query()
	switch {
	case q.Get("success") == "true":
		return &session.Flash{
			Type:    session.FlashTypeSuccess,
			Title:   "Payment successful!",
			Message: "Your link is now premium.",
		}
	case q.Get("canceled") == "true":
		return &session.Flash{
			Type:    session.FlashTypeWarning,
			Title:   "Payment canceled.",
			Message: "Your link was not changed.",
		}
	}
	return nil
}

func (s *Controller) PostUpload(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.GetUser(r.Context())

	fail := func(message string) {
		s.session.NewFlash(w, r, session.Flash{
			Type:    session.FlashTypeError,
			Title:   "Upload failed",
			Message: message,
		})
		http.Redirect(w, r, "/", http.StatusFound)
	}

	f, err := upload.FromRequest(w, r)
	if err != nil {
		fail(upload.Message(err))
		return
	}
	defer f.Close()

	res, err := s.deps.Uploads.Upload(r.Context(), user, f.File, nil)
	if err != nil {
		if !upload.IsRejected(err) {
			log.Error().Err(err).Str("user_id", user.ID).Msg("Upload failed")
		}
		fail(upload.Message(err))
		return
	}

	s.session.NewFlash(w, r, session.Flash{
		Type:    session.FlashTypeSuccess,
		Title:   "Upload complete",
		Message: res.Link.Filename + " is ready to share.",
		Link:    s.shareURL(res.Link.LinkID),
	})
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (s *Controller) PostUpgrade(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.GetUser(r.Context())
	linkID := chi.URLParam(r, "id")
	ctx := r.Context()

	link, err := s.deps.Links.Get(ctx, linkID)
	if errors.Is(err, links.ErrNotFound) || (err == nil && link.UserID != user.ID) {
		s.renderError(w, r, http.StatusNotFound, "Link not found", "This link doesn't exist.")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("link_id", linkID).Msg("Unable to load link")
		s.renderError(w, r, http.StatusInternalServerError, "Something went wrong", "Unable to upgrade the link.")
		return
	}

	if link.IsPremium {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	if s.deps.Payments.Enabled() {
		url, err := s.deps.Payments.CreateCheckout(ctx, payments.CheckoutRequest{
			Email:  user.Email,
			LinkID: link.LinkID,
		})
		if err != nil {
			log.Error().Err(err).Str("link_id", linkID).Msg("Unable to create checkout session")
			s.session.NewFlash(w, r, session.Flash{
				Type:    session.FlashTypeError,
				Title:   "Upgrade failed",
				Message: "Unable to start checkout. Please try again.",
			})
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
		http.Redirect(w, r, url, http.StatusSeeOther)
		return
	}

	if err := s.deps.Storage.Database.SetPremiumForOwner(ctx, user.ID, link.LinkID); err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			log.Error().Err(err).Str("link_id", linkID).Msg("Unable to upgrade link")
		}
		s.session.NewFlash(w, r, session.Flash{
			Type:    session.FlashTypeError,
			Title:   "Upgrade failed",
			Message: "Unable to upgrade the link.",
		})
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	s.session.NewFlash(w, r, session.Flash{
		Type:    session.FlashTypeSuccess,
		Title:   "Link upgraded",
		Message: link.Filename + " is now premium.",
	})
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (s *Controller) GetLink(w http.ResponseWriter, r *http.Request) {
	linkID := chi.URLParam(r, "id")

	var caller *auth.User
	if user, ok := auth.GetUser(r.Context()); ok {
		caller = user
	}

	access, err := s.deps.Links.Check(r.Context(), linkID, caller)
	if err != nil {
		log.Error().Err(err).Str("link_id", linkID).Msg("Unable to check link access")
		s.renderError(w, r, http.StatusInternalServerError, "Something went wrong", "Unable to load this link.")
		return
	}

	if access.Outcome != links.NotFound {
		if err := s.recorder.RecordView(r, linkID); err != nil {
			log.Warn().Err(err).Str("link_id", linkID).Msg("Unable to record page view")
		}
	}

	switch access.Outcome {
	case links.Granted:
		s.view.Render(w, r, http.StatusOK, "pages/link", LinkPage{
			Link:      access.Link,
			SignedURL: access.SignedURL,
			IsOwner:   caller != nil && caller.ID == access.Link.UserID,
			Notice:    paymentNotice(r),
			Price:     s.price,
		})
	case links.LoginRequired:
		http.Redirect(w, r, auth.LoginPath(access.ReturnPath), http.StatusFound)
	case links.Denied:
		s.renderError(w, r, http.StatusForbidden, "Premium content", "This link is available to its "+access.Reason+".")
	case links.Expired:
		s.renderError(w, r, http.StatusGone, "Link expired", "This link has expired.")
	default:
		s.renderError(w, r, http.StatusNotFound, "Link not found", "This link doesn't exist.")
	}
}

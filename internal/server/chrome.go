package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/goliatone/go-crudkit/pkg/menu"
	"github.com/goliatone/go-crudkit/pkg/notify"
	"github.com/goliatone/go-crudkit/pkg/render"
)

const (
	localeCookie = "crudkit_locale"
	flashCookie  = "crudkit_flash"
)

// locale resolves the display locale: the locale cookie, then the
// session's explicit switch, then Accept-Language.
func (s *Server) locale(r *http.Request) string {
	if c, err := r.Cookie(localeCookie); err == nil && s.locales.Supports(c.Value) {
		return c.Value
	}
	token := ""
	if v, ok := viewerFrom(r.Context()); ok {
		token = v.token
	}
	return s.locales.Resolve(token, r.Header.Get("Accept-Language"))
}

// translate returns a lookup bound to locale. Missing keys render as-is.
func (s *Server) translate(locale string) func(key string, args ...any) string {
	return func(key string, args ...any) string {
		msg, err := s.catalog.Translate(locale, key, args...)
		if err != nil {
			return key
		}
		return msg
	}
}

func (s *Server) menuViewer(r *http.Request) menu.Viewer {
	v, ok := viewerFrom(r.Context())
	if !ok {
		return menu.Anonymous
	}
	return menu.Viewer{SignedIn: true, Role: v.role}
}

// links is the configured menu followed by one entry per collection.
func (s *Server) links() []menu.Link {
	out := append([]menu.Link(nil), s.cfg.Menu...)
	for _, name := range s.order {
		label := s.collections[name].schema.Label
		if label == "" {
			label = name
		}
		out = append(out, menu.Link{Label: label, To: "/collections/" + name, Auth: menu.Bool(true)})
	}
	return out
}

// document builds the page chrome shared by every rendered page.
func (s *Server) document(w http.ResponseWriter, r *http.Request, kind render.Kind, title string) render.Document {
	locale := s.locale(r)
	doc := render.Document{
		Kind:          kind,
		Title:         title,
		Path:          r.URL.Path,
		Menu:          menu.Build(s.links(), s.menuViewer(r), r.URL.Path, nil),
		Locales:       s.locales.Options(locale),
		Notifications: s.takeFlash(w, r),
	}
	if v, ok := viewerFrom(r.Context()); ok {
		user := v.user
		doc.User = &user
	}
	return doc
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, doc render.Document, opts render.RenderOptions) {
	opts.Locale = s.locale(r)
	out, err := s.renderer.Render(r.Context(), doc, opts)
	if err != nil {
		loggerFrom(r.Context()).Errorw("render page", "kind", doc.Kind, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", s.renderer.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(out)
}

// flash stores notifications for the next rendered page.
func (s *Server) flash(w http.ResponseWriter, notes ...notify.Notification) {
	if len(notes) == 0 {
		return
	}
	raw, err := json.Marshal(notes)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) takeFlash(w http.ResponseWriter, r *http.Request) []notify.Notification {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var notes []notify.Notification
	if err := json.Unmarshal(raw, &notes); err != nil {
		return nil
	}
	return notes
}

// redirectBack sends the browser to a same-site referer, or fallback.
func redirectBack(w http.ResponseWriter, r *http.Request, fallback string) {
	target := fallback
	if ref, err := url.Parse(r.Referer()); err == nil && ref.Path != "" && (ref.Host == "" || ref.Host == r.Host) {
		target = ref.RequestURI()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	locale := s.locale(r)
	t := s.translate(locale)
	links := menu.Build(s.links(), s.menuViewer(r), r.URL.Query().Get("path"), func(key string) string { return t(key) })
	writeJSON(w, http.StatusOK, map[string]any{
		"links":   links,
		"locales": s.locales.Options(locale),
	})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	locale := chi.URLParam(r, "locale")
	if !s.locales.Supports(locale) {
		writeError(w, r, notFound("unsupported locale "+locale))
		return
	}
	writeJSON(w, http.StatusOK, s.catalog.Messages(locale))
}

func (s *Server) submitLocale(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	code := strings.TrimSpace(r.PostForm.Get("locale"))
	if !s.locales.Supports(code) {
		http.Error(w, menu.ErrUnsupportedLocale.Error(), http.StatusBadRequest)
		return
	}
	if v, ok := viewerFrom(r.Context()); ok {
		_ = s.locales.Switch(v.token, code)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     localeCookie,
		Value:    code,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		SameSite: http.SameSiteLaxMode,
	})
	redirectBack(w, r, "/")
}

func (s *Server) pageDashboard(w http.ResponseWriter, r *http.Request) {
	doc := s.document(w, r, render.KindPage, "dashboard")
	s.renderPage(w, r, http.StatusOK, doc, render.RenderOptions{})
}

package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-crudkit/pkg/apperr"
	"github.com/goliatone/go-crudkit/pkg/auth"
	"github.com/goliatone/go-crudkit/pkg/form"
	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/notify"
	"github.com/goliatone/go-crudkit/pkg/render"
	"github.com/goliatone/go-crudkit/pkg/widgets"
)

const (
	modeLogin  = "login"
	modeSignup = "signup"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type federatedRequest struct {
	Credential string `json:"credential"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      auth.User `json:"user"`
	Role      auth.Role `json:"role,omitempty"`
}

type meResponse struct {
	User auth.User     `json:"user"`
	Meta auth.UserMeta `json:"meta"`
}

var errSignupDisabled = errors.New("sign up is disabled")

// signUp creates the account and promotes configured admin emails.
func (s *Server) signUp(ctx context.Context, email, password string) (auth.Session, auth.User, error) {
	if !s.cfg.AllowSignup {
		return auth.Session{}, auth.User{}, apperr.New(apperr.CodeUnauthorized, errSignupDisabled)
	}
	sess, user, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		return auth.Session{}, auth.User{}, err
	}
	for _, admin := range s.cfg.Admins {
		if strings.EqualFold(strings.TrimSpace(admin), user.Email) {
			if err := s.docs.Update(ctx, auth.UserMetasCollection, user.UID, model.Record{"role": string(auth.RoleAdmin)}); err != nil {
				return auth.Session{}, auth.User{}, err
			}
			s.logger.Infow("admin promoted", "uid", user.UID)
			break
		}
	}
	return sess, user, nil
}

func (s *Server) setSession(w http.ResponseWriter, sess auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: s.cfg.CookieName, Path: "/", MaxAge: -1, HttpOnly: true})
}

func (s *Server) respondSession(w http.ResponseWriter, r *http.Request, status int, sess auth.Session, user auth.User) {
	s.setSession(w, sess)
	resp := sessionResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: user}
	if meta, err := s.auth.Meta(r.Context(), user.UID); err == nil {
		resp.Role = meta.Role
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sess, user, err := s.signUp(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondSession(w, r, http.StatusCreated, sess, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sess, user, err := s.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondSession(w, r, http.StatusOK, sess, user)
}

func (s *Server) handleFederated(w http.ResponseWriter, r *http.Request) {
	var in federatedRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sess, user, err := s.auth.LoginFederated(r.Context(), in.Credential)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondSession(w, r, http.StatusOK, sess, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := s.token(r)
	s.clearSession(w)
	if token == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := s.auth.Logout(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}
	s.locales.Forget(token)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	v, _ := viewerFrom(r.Context())
	meta, err := s.auth.Meta(r.Context(), v.user.UID)
	if err != nil && apperr.CodeOf(err) != apperr.CodeNotFound {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: v.user, Meta: meta})
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	v, _ := viewerFrom(r.Context())
	var p auth.Profile
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.auth.UpdateProfile(r.Context(), v.token, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type passwordCheck struct {
	Strength     int                      `json:"strength"`
	Strong       bool                     `json:"strong"`
	Requirements []auth.RequirementStatus `json:"requirements"`
}

// handlePasswordCheck scores a candidate password. Requirement labels are
// translated for the request locale.
func (s *Server) handlePasswordCheck(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	t := s.translate(s.locale(r))
	reqs := auth.Check(in.Password)
	for i := range reqs {
		reqs[i].Label = t(reqs[i].Label)
	}
	writeJSON(w, http.StatusOK, passwordCheck{
		Strength:     auth.Strength(in.Password),
		Strong:       auth.Strong(in.Password),
		Requirements: reqs,
	})
}

func (s *Server) handlePasswordGenerate(w http.ResponseWriter, r *http.Request) {
	length := 16
	if raw := r.URL.Query().Get("length"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, badRequest("length must be a number"))
			return
		}
		length = n
	}
	password, err := auth.GeneratePassword(length)
	if err != nil {
		writeError(w, r, badRequest("%v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"password": password})
}

// loginFields describes the sign-in form.
func loginFields() []model.Field {
	return []model.Field{
		{Key: "email", Label: "email", Type: model.FieldTypeText, Widget: widgets.WidgetEmail, Required: true},
		{Key: "password", Label: "password", Type: model.FieldTypeText, Widget: widgets.WidgetPassword, Required: true},
	}
}

func (s *Server) loginDocument(w http.ResponseWriter, r *http.Request, mode string, values model.Record) render.Document {
	if mode != modeSignup || !s.cfg.AllowSignup {
		mode = modeLogin
	}
	f := form.New(loginFields(), values, form.WithNoValidation())
	doc := s.document(w, r, render.KindForm, mode)
	doc.Form = &render.FormView{
		Name:   mode,
		Action: "/login",
		Method: http.MethodPost,
		Inputs: f.Inputs(),
		Submit: s.translate(s.locale(r))(mode),
	}
	return doc
}

func loginHidden(r *http.Request, mode string) []render.HiddenField {
	next := r.FormValue("next")
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/"
	}
	return []render.HiddenField{render.Hidden("mode", mode), render.Hidden("next", next)}
}

func (s *Server) pageLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := viewerFrom(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	mode := r.URL.Query().Get("mode")
	doc := s.loginDocument(w, r, mode, nil)
	s.renderPage(w, r, http.StatusOK, doc, render.RenderOptions{Hidden: loginHidden(r, doc.Form.Name)})
}

func (s *Server) submitLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	email, password := r.PostForm.Get("email"), r.PostForm.Get("password")
	mode := r.PostForm.Get("mode")

	var (
		sess auth.Session
		err  error
	)
	if mode == modeSignup {
		sess, _, err = s.signUp(r.Context(), email, password)
	} else {
		sess, _, err = s.auth.Login(r.Context(), email, password)
	}
	if err != nil {
		status, _ := errorResponse(err)
		doc := s.loginDocument(w, r, mode, model.Record{"email": email})
		s.renderPage(w, r, status, doc, render.RenderOptions{
			Errors: render.ErrorPayload(err),
			Hidden: loginHidden(r, doc.Form.Name),
		})
		return
	}
	s.setSession(w, sess)
	next := loginHidden(r, mode)[1].Value
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) submitLogout(w http.ResponseWriter, r *http.Request) {
	if token := s.token(r); token != "" {
		if err := s.auth.Logout(r.Context(), token); err != nil {
			loggerFrom(r.Context()).Debugw("logout", "error", err)
		}
		s.locales.Forget(token)
	}
	s.clearSession(w)
	rec := &notify.Recorder{}
	notify.Success(rec, s.translate(s.locale(r))("logout"))
	s.flash(w, rec.All()...)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

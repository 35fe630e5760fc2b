package server

import (
	"context"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/goliatone/go-crudkit/pkg/auth"
	"github.com/goliatone/go-crudkit/pkg/render"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	viewerKey
	collectionKey
)

// viewer is the signed-in account behind a request.
type viewer struct {
	token string
	user  auth.User
	role  auth.Role
}

func viewerFrom(ctx context.Context) (*viewer, bool) {
	v, ok := ctx.Value(viewerKey).(*viewer)
	return v, ok && v != nil
}

func loggerFrom(ctx context.Context) *zap.SugaredLogger {
	if l, ok := ctx.Value(loggerKey).(*zap.SugaredLogger); ok && l != nil {
		return l
	}
	return zap.S()
}

var requestID = middleware.RequestID

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Errorw("panic", "path", r.URL.Path, "panic", rec, "stack", string(debug.Stack()))
				writeJSON(w, http.StatusInternalServerError, errorBody{Code: "unknown", Message: "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := s.logger.With("request_id", middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), loggerKey, logger)))
		logger.Debugw("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

// methodOverride lets browser forms reach PUT, PATCH and DELETE routes
// through a hidden _method input.
func methodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
			if err := r.ParseForm(); err == nil {
				switch m := strings.ToUpper(r.PostForm.Get(render.MethodField)); m {
				case http.MethodPut, http.MethodPatch, http.MethodDelete:
					r.Method = m
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// token reads the session token from the Authorization header or the
// session cookie.
func (s *Server) token(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(s.cfg.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// session resolves the token into a viewer. Unknown tokens are ignored
// here; requireUser rejects them.
func (s *Server) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.token(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, err := s.auth.Current(r.Context(), token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		v := &viewer{token: token, user: user}
		if meta, err := s.auth.Meta(r.Context(), user.UID); err == nil {
			v.role = meta.Role
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), viewerKey, v)))
	})
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := viewerFrom(r.Context()); !ok {
			writeError(w, r, unauthenticated())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requirePageUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := viewerFrom(r.Context()); !ok {
			http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withCollection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.ToLower(chi.URLParam(r, "name"))
		c, ok := s.collections[name]
		if !ok {
			writeError(w, r, notFound("unknown collection "+name))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), collectionKey, c)))
	})
}

func collectionFrom(ctx context.Context) *collection {
	c, _ := ctx.Value(collectionKey).(*collection)
	return c
}

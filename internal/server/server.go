// Package server exposes collections, uploads, identity and the realtime
// tree over HTTP: a JSON API under /api, websocket subscriptions and the
// server-rendered admin pages.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/goliatone/go-crudkit/components/options"
	"github.com/goliatone/go-crudkit/pkg/auth"
	"github.com/goliatone/go-crudkit/pkg/blob"
	"github.com/goliatone/go-crudkit/pkg/media"
	"github.com/goliatone/go-crudkit/pkg/menu"
	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/notify"
	"github.com/goliatone/go-crudkit/pkg/realtime"
	"github.com/goliatone/go-crudkit/pkg/render"
	"github.com/goliatone/go-crudkit/pkg/renderers/vanilla"
	"github.com/goliatone/go-crudkit/pkg/schema"
	"github.com/goliatone/go-crudkit/pkg/store"
)

// Defaults applied by New.
const (
	DefaultCookieName     = "crudkit_session"
	DefaultFilesURL       = "/files"
	DefaultMaxUploadBytes = 32 << 20
	DefaultShutdownGrace  = 5 * time.Second
	Version               = "0.1.0"
)

// Config wires the server. Zero values get in-memory backends.
type Config struct {
	Addr          string
	ShutdownGrace time.Duration
	Logger        *zap.SugaredLogger

	Store store.Store
	Blobs blob.Store
	Auth  *auth.Local
	Tree  *realtime.Tree

	Schemas  []model.Schema
	Renderer render.Renderer
	Catalog  *render.Catalog
	Locales  *menu.Locales
	Menu     []menu.Link
	// Lists are named option lists served under /api/options/{name}.
	Lists map[string]options.Source

	// FilesURL is the path blobs are served from. It must match the base
	// URL the blob store builds download URLs with.
	FilesURL       string
	MaxUploadBytes int64

	CookieName  string
	AllowSignup bool
	// Admins are emails promoted to the admin role when they sign up.
	Admins []string
}

// Server is the HTTP front of a crudkit instance.
type Server struct {
	cfg    Config
	logger *zap.SugaredLogger
	router chi.Router

	docs        store.Store
	auth        *auth.Local
	uploads     *media.Service
	tree        *realtime.Tree
	renderer    render.Renderer
	catalog     *render.Catalog
	locales     *menu.Locales
	notifier    notify.Notifier
	toasts      *broadcaster
	apiDoc      *openapi3.T
	collections map[string]*collection
	order       []string
}

// New validates cfg, fills the missing backends and registers the routes.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemory(store.WithMemoryLogger(cfg.Logger))
	}
	if cfg.FilesURL == "" {
		cfg.FilesURL = DefaultFilesURL
	}
	cfg.FilesURL = "/" + strings.Trim(cfg.FilesURL, "/")
	if cfg.Blobs == nil {
		cfg.Blobs = blob.NewMemory(cfg.FilesURL)
	}
	if cfg.Auth == nil {
		cfg.Auth = auth.NewLocal(cfg.Store, auth.WithLogger(cfg.Logger))
	}
	if cfg.Tree == nil {
		cfg.Tree = realtime.New(realtime.WithLogger(cfg.Logger))
	}
	if cfg.Catalog == nil {
		cfg.Catalog = render.DefaultCatalog()
	}
	if cfg.Locales == nil {
		locales, err := menu.NewLocales()
		if err != nil {
			return nil, err
		}
		cfg.Locales = locales
	}
	if cfg.Menu == nil {
		cfg.Menu = menu.DefaultLinks()
	}
	if cfg.Renderer == nil {
		renderer, err := vanilla.New(vanilla.WithTranslator(cfg.Catalog))
		if err != nil {
			return nil, fmt.Errorf("server: renderer: %w", err)
		}
		cfg.Renderer = renderer
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}

	s := &Server{
		cfg:         cfg,
		logger:      cfg.Logger.Named("server"),
		docs:        cfg.Store,
		auth:        cfg.Auth,
		tree:        cfg.Tree,
		renderer:    cfg.Renderer,
		catalog:     cfg.Catalog,
		locales:     cfg.Locales,
		toasts:      newBroadcaster(),
		collections: make(map[string]*collection, len(cfg.Schemas)),
	}
	s.notifier = notify.Multi{notify.NewLogger(s.logger), s.toasts}
	s.uploads = media.NewService(cfg.Blobs, cfg.Store, media.WithNotifier(s.notifier), media.WithLogger(cfg.Logger))

	if err := s.registerCollections(cfg.Schemas); err != nil {
		return nil, err
	}
	if len(cfg.Schemas) > 0 {
		doc, err := schema.APIDocument(context.Background(), cfg.Schemas, schema.WithTitle("crudkit", Version))
		if err != nil {
			return nil, fmt.Errorf("server: api document: %w", err)
		}
		s.apiDoc = doc
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Uploads exposes the media service.
func (s *Server) Uploads() *media.Service { return s.uploads }

// Collection returns the store collection registered under name.
func (s *Server) Collection(name string) (*store.Collection, bool) {
	c, ok := s.collections[name]
	if !ok {
		return nil, false
	}
	return c.docs, true
}

// Run serves until ctx is done, then drains in-flight requests for the
// configured grace period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("listening", "addr", s.cfg.Addr, "collections", s.order)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()
	s.logger.Infow("shutting down", "grace", s.cfg.ShutdownGrace)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID, s.recoverer, s.accessLog, methodOverride, s.session)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/openapi.json", s.handleOpenAPI)
	r.Get("/api/menu", s.handleMenu)
	r.Get("/api/i18n/{locale}", s.handleMessages)
	r.Get("/api/options/{name}", s.handleList)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignUp)
		r.Post("/login", s.handleLogin)
		r.Post("/federated", s.handleFederated)
		r.Post("/logout", s.handleLogout)
		r.Post("/password/check", s.handlePasswordCheck)
		r.Get("/password/generate", s.handlePasswordGenerate)
		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Get("/me", s.handleMe)
			r.Patch("/me", s.handleUpdateMe)
			r.Get("/watch", s.handleAuthWatch)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)

		r.Get("/api/collections", s.handleSchemas)
		r.Route("/api/collections/{name}", func(r chi.Router) {
			r.Use(s.withCollection)
			r.Get("/items", s.handleListItems)
			r.Post("/items", s.handleCreateItem)
			r.Delete("/items", s.handleDeleteBy)
			r.Post("/items/bulk", s.handleBulk)
			r.Get("/items/{id}", s.handleGetItem)
			r.Put("/items/{id}", s.handleReplaceItem)
			r.Patch("/items/{id}", s.handlePatchItem)
			r.Delete("/items/{id}", s.handleDeleteItem)
			r.Post("/items/{id}/duplicate", s.handleDuplicateItem)
			r.Get("/export", s.handleExport)
			r.Post("/import", s.handleImport)
			r.Get("/subscribe", s.handleSubscribe)
			r.Get("/options/{field}", s.handleFieldOptions)
		})

		r.Route("/api/uploads", func(r chi.Router) {
			r.Get("/", s.handleListUploads)
			r.Post("/", s.handleUpload)
			r.Post("/selection", s.handleSelection)
			r.Patch("/{id}", s.handleEditUpload)
			r.Delete("/{id}", s.handleDeleteUpload)
		})

		r.Route("/api/realtime", func(r chi.Router) {
			r.Get("/watch", s.handleTreeWatch)
			r.Get("/data", s.handleTreeGet)
			r.Get("/data/*", s.handleTreeGet)
			r.Put("/data/*", s.handleTreeSet)
			r.Patch("/data/*", s.handleTreeUpdate)
			r.Post("/data/*", s.handleTreePush)
			r.Delete("/data/*", s.handleTreeRemove)
		})
		r.Get("/api/notifications", s.handleNotifications)
	})

	r.Get(s.cfg.FilesURL+"/*", s.handleFile)

	// pages
	r.Get("/login", s.pageLogin)
	r.Post("/login", s.submitLogin)
	r.Post("/auth/logout", s.submitLogout)
	r.Post("/locale", s.submitLocale)
	r.Group(func(r chi.Router) {
		r.Use(s.requirePageUser)
		r.Get("/", s.pageDashboard)
		r.Route("/collections/{name}", func(r chi.Router) {
			r.Use(s.withCollection)
			r.Get("/", s.pageTable)
			r.Post("/bulk", s.submitBulk)
			r.Get("/new", s.pageNew)
			r.Post("/new", s.submitNew)
			r.Get("/export", s.pageExport)
			r.Get("/import", s.pageImport)
			r.Post("/import", s.submitImport)
			r.Get("/{id}/edit", s.pageEdit)
			r.Put("/{id}", s.submitEdit)
			r.Post("/{id}/import", s.submitImportInto)
			r.Post("/{id}/duplicate", s.submitDuplicate)
			r.Post("/{id}/delete", s.submitDelete)
		})
		r.Get("/uploads", s.pageUploads)
		r.Post("/uploads", s.submitUploads)
		r.Post("/uploads/selection", s.handleSelection)
		r.Post("/uploads/{id}/delete", s.submitDeleteUpload)
	})
	return r
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	if s.apiDoc == nil {
		writeError(w, r, notFound("no collections are configured"))
		return
	}
	writeJSON(w, http.StatusOK, s.apiDoc)
}

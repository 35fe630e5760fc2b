// Package crudkit wires the schema-driven admin server from a configuration
// file: the document store, blob storage, identity, option lists and
// translations. The cmd/ binaries are thin shells around it.
package crudkit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goliatone/go-crudkit/components/options"
	"github.com/goliatone/go-crudkit/internal/config"
	"github.com/goliatone/go-crudkit/internal/server"
	"github.com/goliatone/go-crudkit/pkg/auth"
	"github.com/goliatone/go-crudkit/pkg/blob"
	"github.com/goliatone/go-crudkit/pkg/menu"
	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/render"
	"github.com/goliatone/go-crudkit/pkg/renderers/vanilla"
	"github.com/goliatone/go-crudkit/pkg/schema"
	"github.com/goliatone/go-crudkit/pkg/store"
)

// Config is the file backed configuration.
type Config = config.Config

// Server is the HTTP front.
type Server = server.Server

// SchemaFetchTimeout bounds downloads of remote schema sources.
const SchemaFetchTimeout = 10 * time.Second

// LoadConfig reads path (optional) and applies CRUDKIT_* overrides.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// NewLogger builds the process logger: the development encoder on stdout
// when cfg asks for debug, the JSON production logger otherwise.
func NewLogger(cfg Config) (*zap.SugaredLogger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Debug() {
		z := zap.NewDevelopmentConfig()
		z.OutputPaths = []string{"stdout"}
		logger, err = z.Build()
	} else {
		z := zap.NewProductionConfig()
		if cfg.LogLevel != "" {
			level, perr := zapcore.ParseLevel(cfg.LogLevel)
			if perr != nil {
				return nil, fmt.Errorf("crudkit: log level: %w", perr)
			}
			z.Level = zap.NewAtomicLevelAt(level)
		}
		logger, err = z.Build()
	}
	if err != nil {
		return nil, fmt.Errorf("crudkit: logger: %w", err)
	}
	return logger.Sugar(), nil
}

// OpenStore opens the configured document store.
func OpenStore(ctx context.Context, cfg Config, logger *zap.SugaredLogger) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		db, err := store.OpenSQLite(ctx, cfg.Store.DSN, logger)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.DriverMongo:
		db, err := store.OpenMongo(ctx, cfg.Store.DSN, cfg.Store.Database, logger)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.DriverMemory, "":
		return store.NewMemory(store.WithMemoryLogger(logger)), nil
	}
	return nil, fmt.Errorf("crudkit: unknown store driver %q", cfg.Store.Driver)
}

// LoadSchemas decodes every configured schema source.
func LoadSchemas(ctx context.Context, refs []string) ([]model.Schema, error) {
	sources := make([]schema.Source, 0, len(refs))
	for _, ref := range refs {
		src, err := schema.Parse(ref)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return schema.NewLoader(schema.WithHTTP(SchemaFetchTimeout)).Schemas(ctx, sources...)
}

// LoadCatalog returns the built-in catalogs overlaid with the YAML files in
// dir, if any.
func LoadCatalog(dir string) (*render.Catalog, error) {
	catalog := render.DefaultCatalog()
	if dir == "" {
		return catalog, nil
	}
	if err := catalog.LoadFS(os.DirFS(dir), "."); err != nil {
		return nil, err
	}
	return catalog, nil
}

// filesPath is the route blobs are served from: the base URL itself, or
// its path when the base is absolute.
func filesPath(baseURL string) (string, error) {
	if !strings.Contains(baseURL, "://") {
		return baseURL, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("crudkit: uploads baseUrl: %w", err)
	}
	if u.Path == "" {
		return "", errors.New("crudkit: uploads baseUrl needs a path")
	}
	return u.Path, nil
}

// Open builds a server from cfg. release closes the store and must be
// called once the server is done.
func Open(ctx context.Context, cfg Config, logger *zap.SugaredLogger) (srv *Server, release func() error, err error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	docs, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if err != nil {
			_ = docs.Close()
		}
	}()

	files, err := filesPath(cfg.Uploads.BaseURL)
	if err != nil {
		return nil, nil, err
	}
	var blobs blob.Store
	if cfg.Uploads.Dir == "" {
		blobs = blob.NewMemory(cfg.Uploads.BaseURL)
	} else if blobs, err = blob.NewFilesystem(cfg.Uploads.Dir, cfg.Uploads.BaseURL, logger); err != nil {
		return nil, nil, err
	}

	schemas, err := LoadSchemas(ctx, cfg.Schemas)
	if err != nil {
		return nil, nil, err
	}
	catalog, err := LoadCatalog(cfg.Translations)
	if err != nil {
		return nil, nil, err
	}
	locales, err := menu.NewLocales(cfg.Locales...)
	if err != nil {
		return nil, nil, err
	}
	lists := make(map[string]options.Source, len(cfg.Options))
	for name, file := range cfg.Options {
		lists[name] = options.LinesFile(file)
	}

	srv, err = server.New(server.Config{
		Addr:           cfg.Addr,
		ShutdownGrace:  cfg.ShutdownGrace,
		Logger:         logger,
		Store:          docs,
		Blobs:          blobs,
		Auth:           auth.NewLocal(docs, auth.WithLogger(logger), auth.WithSessionTTL(cfg.Auth.SessionTTL)),
		Schemas:        schemas,
		Catalog:        catalog,
		Locales:        locales,
		Menu:           cfg.Menu,
		Lists:          lists,
		FilesURL:       files,
		MaxUploadBytes: cfg.Uploads.MaxBytes,
		CookieName:     cfg.Auth.CookieName,
		AllowSignup:    cfg.Auth.SignupAllowed(),
		Admins:         cfg.Auth.Admins,
	})
	if err != nil {
		return nil, nil, err
	}
	return srv, docs.Close, nil
}

// EmbeddedTemplates exposes the built-in page and component templates so
// callers can extend them with vanilla.WithTemplatesFS.
func EmbeddedTemplates() fs.FS {
	return vanilla.TemplatesFS()
}

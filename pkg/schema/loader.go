package schema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-crudkit/pkg/model"
)

// maxDocumentBytes caps remote and local payloads.
const maxDocumentBytes = 8 << 20

// Format tells descriptor files and OpenAPI documents apart.
type Format string

const (
	FormatDescriptors Format = "descriptors"
	FormatOpenAPI     Format = "openapi"
)

// Document is a raw payload and its origin.
type Document struct {
	Source Source
	Raw    []byte
}

// Location returns the origin identifier, empty for in-memory documents.
func (d Document) Location() string {
	if d.Source == nil {
		return ""
	}
	return d.Source.Location()
}

// Format sniffs the top-level keys. JSON is valid YAML, so one decoder
// covers both encodings.
func (d Document) Format() Format {
	var head map[string]any
	if err := yaml.Unmarshal(d.Raw, &head); err != nil {
		return FormatDescriptors
	}
	if _, ok := head["openapi"]; ok {
		return FormatOpenAPI
	}
	if _, ok := head["swagger"]; ok {
		return FormatOpenAPI
	}
	return FormatDescriptors
}

// Loader fetches documents from files, an fs.FS or HTTP.
type Loader struct {
	fs      fs.FS
	client  *http.Client
	timeout time.Duration
}

// Option configures a Loader.
type Option func(*Loader)

// WithFileSystem enables FS sources.
func WithFileSystem(files fs.FS) Option {
	return func(l *Loader) {
		l.fs = files
	}
}

// WithHTTPClient enables URL sources with the given client.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) {
		l.client = client
	}
}

// WithHTTP enables URL sources using a default client with timeout.
func WithHTTP(timeout time.Duration) Option {
	return func(l *Loader) {
		l.timeout = timeout
		if l.client == nil {
			l.client = &http.Client{Timeout: timeout}
		}
	}
}

// NewLoader builds a Loader. URL sources stay disabled unless an HTTP
// option is given.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Load reads the raw document behind src.
func (l *Loader) Load(ctx context.Context, src Source) (Document, error) {
	if src == nil {
		return Document{}, errors.New("schema: source is nil")
	}
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	var (
		data []byte
		err  error
	)
	switch src.Kind() {
	case SourceKindFile:
		data, err = readLimited(func() (io.ReadCloser, error) { return os.Open(src.Location()) })
	case SourceKindFS:
		if l.fs == nil {
			return Document{}, errors.New("schema: filesystem is not configured")
		}
		data, err = readLimited(func() (io.ReadCloser, error) { return l.fs.Open(src.Location()) })
	case SourceKindURL:
		data, err = l.fetch(ctx, src.Location())
	default:
		err = fmt.Errorf("schema: unsupported source kind %q", src.Kind())
	}
	if err != nil {
		return Document{}, fmt.Errorf("schema: load %s: %w", src.Location(), err)
	}
	if len(data) == 0 {
		return Document{}, fmt.Errorf("schema: %s is empty", src.Location())
	}
	return Document{Source: src, Raw: data}, nil
}

func (l *Loader) fetch(ctx context.Context, location string) ([]byte, error) {
	if l.client == nil {
		return nil, errors.New("http support disabled")
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/yaml, application/json")
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
}

func readLimited(open func() (io.ReadCloser, error)) ([]byte, error) {
	f, err := open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxDocumentBytes))
}

// Schemas loads every source and decodes its collections. Collection names
// must be unique across sources.
func (l *Loader) Schemas(ctx context.Context, sources ...Source) ([]model.Schema, error) {
	var out []model.Schema
	seen := make(map[string]string)
	for _, src := range sources {
		doc, err := l.Load(ctx, src)
		if err != nil {
			return nil, err
		}
		schemas, err := Decode(ctx, doc)
		if err != nil {
			return nil, err
		}
		for _, s := range schemas {
			if prev, dup := seen[s.Name]; dup {
				return nil, fmt.Errorf("schema: collection %q defined in %s and %s", s.Name, prev, doc.Location())
			}
			seen[s.Name] = doc.Location()
			out = append(out, s)
		}
	}
	return out, nil
}

// Decode converts a document into validated collection schemas.
func Decode(ctx context.Context, doc Document) ([]model.Schema, error) {
	var (
		schemas []model.Schema
		err     error
	)
	switch doc.Format() {
	case FormatOpenAPI:
		schemas, err = FromOpenAPI(ctx, doc.Raw)
	default:
		schemas, err = DecodeDescriptors(doc.Raw)
	}
	if err != nil {
		if loc := doc.Location(); loc != "" {
			return nil, fmt.Errorf("%s: %w", loc, err)
		}
		return nil, err
	}
	return schemas, nil
}

package schema

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Source identifies where a descriptor document lives.
type Source interface {
	Kind() SourceKind
	Location() string
}

// SourceKind enumerates the loader strategies.
type SourceKind string

const (
	SourceKindFile SourceKind = "file"
	SourceKindFS   SourceKind = "fs"
	SourceKindURL  SourceKind = "url"
)

type source struct {
	kind     SourceKind
	location string
}

func (s source) Kind() SourceKind { return s.kind }
func (s source) Location() string { return s.location }

// File returns a Source for a path on disk.
func File(path string) Source {
	return source{kind: SourceKindFile, location: filepath.Clean(path)}
}

// FS returns a Source for a name inside the loader's fs.FS.
func FS(name string) Source {
	return source{kind: SourceKindFS, location: name}
}

// URL returns a Source for an http(s) endpoint.
func URL(raw string) (Source, error) {
	if raw == "" {
		return nil, errors.New("schema: empty URL source")
	}
	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return nil, fmt.Errorf("schema: invalid URL %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("schema: unsupported URL scheme %q", parsed.Scheme)
	}
	return source{kind: SourceKindURL, location: raw}, nil
}

// Parse maps a command line style reference to a Source: http(s) URLs
// become URL sources, everything else a file.
func Parse(ref string) (Source, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return URL(ref)
	}
	if strings.TrimSpace(ref) == "" {
		return nil, errors.New("schema: empty source")
	}
	return File(ref), nil
}

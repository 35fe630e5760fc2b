// Package render turns table, form and media view models into bytes. It
// holds the renderer contract and registry, per-request options, the i18n
// catalog and theme configuration shared by concrete renderers.
package render

import (
	"context"

	"github.com/goliatone/go-crudkit/pkg/auth"
	"github.com/goliatone/go-crudkit/pkg/form"
	"github.com/goliatone/go-crudkit/pkg/media"
	"github.com/goliatone/go-crudkit/pkg/menu"
	"github.com/goliatone/go-crudkit/pkg/notify"
	"github.com/goliatone/go-crudkit/pkg/table"
)

// Kind selects the main view of a document.
type Kind string

const (
	KindTable Kind = "table"
	KindForm  Kind = "form"
	KindMedia Kind = "media"
	KindPage  Kind = "page"
)

// Document is one rendered page: the chrome (menu, locales, user, toasts)
// plus the view selected by Kind.
type Document struct {
	Kind          Kind                  `json:"kind"`
	Title         string                `json:"title,omitempty"`
	Path          string                `json:"path,omitempty"`
	Menu          []menu.Link           `json:"menu,omitempty"`
	Locales       []menu.LocaleOption   `json:"locales,omitempty"`
	User          *auth.User            `json:"user,omitempty"`
	Notifications []notify.Notification `json:"notifications,omitempty"`

	Table *TableView `json:"table,omitempty"`
	Form  *FormView  `json:"form,omitempty"`
	Media *MediaView `json:"media,omitempty"`
}

// TableView is a table view model plus the URLs its controls post to.
type TableView struct {
	table.View
	Collection string `json:"collection"`
	BaseURL    string `json:"baseUrl"`
}

// FormView is a generated form.
type FormView struct {
	Name   string       `json:"name"`
	Action string       `json:"action"`
	Method string       `json:"method"`
	Inputs []form.Input `json:"inputs"`
	// Errors are form-level messages; field errors live on the inputs.
	Errors []string `json:"errors,omitempty"`
	Submit string   `json:"submit,omitempty"`
	// DeleteAction is set when the edited record can be deleted.
	DeleteAction string `json:"deleteAction,omitempty"`
	// Multiple marks a multi-record edit.
	Multiple bool `json:"multiple,omitempty"`
}

// MediaView is one page of the media manager.
type MediaView struct {
	Mode media.Mode `json:"mode"`
	media.Page
	Query     string   `json:"query,omitempty"`
	Types     []string `json:"types,omitempty"`
	Active    []string `json:"active,omitempty"`
	Selection []string `json:"selection,omitempty"`
	Max       int      `json:"max,omitempty"`
}

// Renderer converts a Document into a byte representation.
type Renderer interface {
	Name() string
	ContentType() string
	Render(ctx context.Context, doc Document, options RenderOptions) ([]byte, error)
}

// Package menu builds the navigation chrome: nested links filtered by
// sign-in state and role, and the locale switcher.
package menu

import (
	"slices"

	"github.com/goliatone/go-crudkit/pkg/auth"
)

// Link is one navigation entry. Auth nil shows the link to everyone, true
// only to signed-in users and false only to anonymous users. A non-empty
// Roles list further requires the viewer's meta role.
type Link struct {
	Label    string      `json:"label" yaml:"label"`
	Icon     string      `json:"icon,omitempty" yaml:"icon,omitempty"`
	Color    string      `json:"color,omitempty" yaml:"color,omitempty"`
	To       string      `json:"to,omitempty" yaml:"to,omitempty"`
	Auth     *bool       `json:"auth,omitempty" yaml:"auth,omitempty"`
	Roles    []auth.Role `json:"roles,omitempty" yaml:"roles,omitempty"`
	Active   bool        `json:"active,omitempty" yaml:"-"`
	Children []Link      `json:"children,omitempty" yaml:"children,omitempty"`
}

// Viewer is who the menu is built for. Role is empty for anonymous users
// and for accounts without a meta document.
type Viewer struct {
	SignedIn bool
	Role     auth.Role
}

// Anonymous is the signed-out viewer.
var Anonymous = Viewer{}

// Bool returns a pointer for Link.Auth literals.
func Bool(v bool) *bool { return &v }

// Visible reports whether the link alone (not its children) is shown to v.
func (l Link) Visible(v Viewer) bool {
	if l.Auth != nil && *l.Auth != v.SignedIn {
		return false
	}
	if len(l.Roles) > 0 && !slices.Contains(l.Roles, v.Role) {
		return false
	}
	return true
}

// Filter returns the links visible to v. Hidden links drop their whole
// subtree. The input is not modified.
func Filter(links []Link, v Viewer) []Link {
	out := make([]Link, 0, len(links))
	for _, link := range links {
		if !link.Visible(v) {
			continue
		}
		if len(link.Children) > 0 {
			link.Children = Filter(link.Children, v)
		}
		out = append(out, link)
	}
	return out
}

// Build filters links for v, marks the entry matching path as active,
// translates labels with t (when non-nil) and sanitizes icon markup.
func Build(links []Link, v Viewer, path string, t func(string) string) []Link {
	return decorate(Filter(links, v), path, t)
}

func decorate(links []Link, path string, t func(string) string) []Link {
	for i := range links {
		link := &links[i]
		link.Active = link.To != "" && link.To == path
		if t != nil {
			link.Label = t(link.Label)
		}
		link.Icon = SanitizeIcon(link.Icon)
		if len(link.Children) > 0 {
			link.Children = decorate(link.Children, path, t)
		}
	}
	return links
}

// DefaultLinks is the lateral menu of a fresh install.
func DefaultLinks() []Link {
	return []Link{
		{Label: "dashboard", To: "/", Icon: homeIcon},
		{Label: "uploads", To: "/uploads", Auth: Bool(true), Icon: uploadIcon},
	}
}

const (
	homeIcon   = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24" width="16" height="16" fill="none" stroke="currentColor" stroke-width="2"><path d="M5 12l-2 0l9 -9l9 9l-2 0"></path><path d="M5 12v7a2 2 0 0 0 2 2h10a2 2 0 0 0 2 -2v-7"></path></svg>`
	uploadIcon = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24" width="16" height="16" fill="none" stroke="currentColor" stroke-width="2"><path d="M4 17v2a2 2 0 0 0 2 2h12a2 2 0 0 0 2 -2v-2"></path><polyline points="7 9 12 4 17 9"></polyline><line x1="12" y1="4" x2="12" y2="16"></line></svg>`
)

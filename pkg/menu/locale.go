package menu

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/text/language"
)

// ErrUnsupportedLocale is returned when switching to a locale the switcher
// does not offer.
var ErrUnsupportedLocale = errors.New("menu: unsupported locale")

// DefaultLocales are the offered locales; the first one is the fallback.
var DefaultLocales = []string{"en", "fr"}

var localeLabels = map[string]string{
	"en": "english",
	"fr": "french",
}

// LocaleOption is one entry of the language selector. Label is an i18n key.
type LocaleOption struct {
	Code   string `json:"code"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

// Locales negotiates the display locale and remembers explicit switches
// per session key.
type Locales struct {
	codes   []string
	matcher language.Matcher

	mu       sync.RWMutex
	sessions map[string]string
}

// NewLocales builds a switcher over codes (DefaultLocales when empty).
// Codes must be valid BCP 47 tags.
func NewLocales(codes ...string) (*Locales, error) {
	if len(codes) == 0 {
		codes = DefaultLocales
	}
	tags := make([]language.Tag, 0, len(codes))
	for _, code := range codes {
		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("menu: locale %q: %w", code, err)
		}
		tags = append(tags, tag)
	}
	return &Locales{
		codes:    append([]string(nil), codes...),
		matcher:  language.NewMatcher(tags),
		sessions: make(map[string]string),
	}, nil
}

// Codes returns the offered locale codes.
func (l *Locales) Codes() []string {
	return append([]string(nil), l.codes...)
}

// Default is the fallback locale.
func (l *Locales) Default() string {
	return l.codes[0]
}

// Supports reports whether code is offered.
func (l *Locales) Supports(code string) bool {
	for _, c := range l.codes {
		if c == code {
			return true
		}
	}
	return false
}

// Match picks the best offered locale for an Accept-Language header.
func (l *Locales) Match(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return l.Default()
	}
	_, index, confidence := l.matcher.Match(tags...)
	if confidence == language.No {
		return l.Default()
	}
	return l.codes[index]
}

// Switch records code as the session's locale.
func (l *Locales) Switch(session, code string) error {
	if !l.Supports(code) {
		return fmt.Errorf("%w: %q", ErrUnsupportedLocale, code)
	}
	l.mu.Lock()
	l.sessions[session] = code
	l.mu.Unlock()
	return nil
}

// Forget drops the session's explicit choice.
func (l *Locales) Forget(session string) {
	l.mu.Lock()
	delete(l.sessions, session)
	l.mu.Unlock()
}

// Resolve returns the session's explicit choice, otherwise the best match
// for acceptLanguage.
func (l *Locales) Resolve(session, acceptLanguage string) string {
	if session != "" {
		l.mu.RLock()
		code, ok := l.sessions[session]
		l.mu.RUnlock()
		if ok {
			return code
		}
	}
	return l.Match(acceptLanguage)
}

// Options lists the selector entries with current marked active.
func (l *Locales) Options(current string) []LocaleOption {
	out := make([]LocaleOption, 0, len(l.codes))
	for _, code := range l.codes {
		label, ok := localeLabels[code]
		if !ok {
			label = code
		}
		out = append(out, LocaleOption{Code: code, Label: label, Active: code == current})
	}
	return out
}

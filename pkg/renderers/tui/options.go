package tui

import (
	"io"
	"net/http"
	"strings"
)

// OutputFormat controls how collected records are serialized.
type OutputFormat string

const (
	// OutputFormatJSON emits application/json payloads.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatFormURLEncoded emits the form encoding the admin pages post.
	OutputFormatFormURLEncoded OutputFormat = "form"
	// OutputFormatPrettyText emits one path=value line per leaf.
	OutputFormatPrettyText OutputFormat = "pretty"
)

// DefaultRetries is how many times invalid fields are asked again.
const DefaultRetries = 3

// Option configures a Prompter.
type Option func(*Prompter)

// WithPromptDriver overrides the survey driver.
func WithPromptDriver(driver PromptDriver) Option {
	return func(p *Prompter) {
		if driver != nil {
			p.driver = driver
		}
	}
}

// WithOutputFormat selects the serialization used by Encode.
func WithOutputFormat(format OutputFormat) Option {
	return func(p *Prompter) {
		if format != "" {
			p.format = format
		}
	}
}

// WithRemoteOptions resolves fields carrying an options URL against base
// using client. Without it those fields fall back to free text.
func WithRemoteOptions(client *http.Client, base, token string) Option {
	return func(p *Prompter) {
		p.client = client
		p.base = strings.TrimRight(base, "/")
		p.token = token
	}
}

// WithRetries bounds the re-prompts of invalid fields.
func WithRetries(n int) Option {
	return func(p *Prompter) {
		if n >= 0 {
			p.retries = n
		}
	}
}

// WithOutput redirects informational messages of the default driver.
func WithOutput(w io.Writer) Option {
	return func(p *Prompter) {
		if w != nil {
			p.out = w
		}
	}
}

package options

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/widgets"
)

// Component bundles a Source with its handler configuration and routing.
type Component struct {
	opts Options
}

// New constructs a component with default options plus any overrides.
func New(fns ...OptionFn) *Component {
	return &Component{opts: NewOptions(fns...)}
}

// Options returns a copy of the component configuration.
func (c *Component) Options() Options {
	if c == nil {
		return DefaultOptions()
	}
	return NewOptions(func(o *Options) { *o = c.opts })
}

// Handler returns the net/http handler.
func (c *Component) Handler() http.Handler {
	if c == nil {
		return Handler()
	}
	return HandlerWithOptions(c.opts)
}

// RegisterRoutes registers the handler under basePath on mux.
func (c *Component) RegisterRoutes(mux Mux, basePath string) (string, error) {
	if c == nil {
		return RegisterRoutes(mux, basePath)
	}
	return RegisterRoutesWithOptions(mux, basePath, c.opts)
}

// Bind points field at the component endpoint mounted under basePath:
// the field renders as an autocomplete that fetches its options remotely
// with the default limit.
func (c *Component) Bind(field model.Field, basePath string) model.Field {
	opts := c.Options()
	endpoint := mountPath(basePath, opts.RoutePath)
	params := url.Values{}
	params.Set(opts.LimitParam, strconv.Itoa(opts.DefaultLimit))
	field.OptionsURL = endpoint + "?" + params.Encode()
	if field.Widget == "" {
		field.Widget = widgets.WidgetAutocomplete
	}
	return field
}

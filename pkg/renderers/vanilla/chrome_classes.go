package vanilla

// ChromeClass names a styled region of the page chrome.
type ChromeClass string

const (
	ClassPage    ChromeClass = "page"
	ClassNav     ChromeClass = "nav"
	ClassHeader  ChromeClass = "header"
	ClassForm    ChromeClass = "form"
	ClassActions ChromeClass = "actions"
	ClassErrors  ChromeClass = "errors"
	ClassTable   ChromeClass = "table"
	ClassMedia   ChromeClass = "media"
	ClassToasts  ChromeClass = "toasts"
)

// DefaultChromeClasses are used when WithChromeClasses does not override a
// region.
var DefaultChromeClasses = map[ChromeClass]string{
	ClassPage:    "crudkit-page",
	ClassNav:     "crudkit-nav",
	ClassHeader:  "crudkit-header",
	ClassForm:    "crudkit-form",
	ClassActions: "crudkit-actions",
	ClassErrors:  "crudkit-errors",
	ClassTable:   "crudkit-table",
	ClassMedia:   "crudkit-media",
	ClassToasts:  "crudkit-toasts",
}

func chromeClasses(overrides map[ChromeClass]string) map[string]string {
	out := make(map[string]string, len(DefaultChromeClasses))
	for class, value := range DefaultChromeClasses {
		if override := sanitizeClassList(overrides[class]); override != "" {
			value = override
		}
		out[string(class)] = value
	}
	return out
}

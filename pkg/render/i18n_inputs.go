package render

import (
	"github.com/goliatone/go-crudkit/pkg/form"
	"github.com/goliatone/go-crudkit/pkg/menu"
)

func localizeInputs(inputs []form.Input, tr func(string) string) {
	for i := range inputs {
		in := &inputs[i]
		in.Label = tr(in.Label)
		in.Placeholder = tr(in.Placeholder)
		in.Description = tr(in.Description)
		for o := range in.Options {
			in.Options[o].Label = tr(in.Options[o].Label)
		}
		for p := range in.Items {
			localizeInputs(in.Items[p].Inputs, tr)
		}
		for p := range in.Checks {
			localizeInputs(in.Checks[p].Inputs, tr)
		}
	}
}

func localizeLinks(links []menu.Link, tr func(string) string) {
	for i := range links {
		links[i].Label = tr(links[i].Label)
		localizeLinks(links[i].Children, tr)
	}
}

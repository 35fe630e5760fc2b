package components

import "github.com/goliatone/go-crudkit/pkg/widgets"

// Component names used by the default registry. Widget identifiers map one
// to one; NameJSON is the raw record editor of the data-load form.
const (
	NameText         = widgets.WidgetText
	NameEmail        = widgets.WidgetEmail
	NamePassword     = widgets.WidgetPassword
	NameTextarea     = widgets.WidgetTextarea
	NameRich         = widgets.WidgetRich
	NameNumber       = widgets.WidgetNumber
	NameSlider       = widgets.WidgetSlider
	NameToggle       = widgets.WidgetToggle
	NameCheckbox     = widgets.WidgetCheckbox
	NameSegmented    = widgets.WidgetSegmented
	NameSelect       = widgets.WidgetSelect
	NameMultiSelect  = widgets.WidgetMultiSelect
	NameAutocomplete = widgets.WidgetAutocomplete
	NameChips        = widgets.WidgetChips
	NameDate         = widgets.WidgetDate
	NameItems        = widgets.WidgetItems
	NameCheckGroup   = widgets.WidgetCheckGroup
	NameJSON         = "json"
)

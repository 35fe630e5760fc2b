package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/goliatone/go-crudkit/pkg/form"
	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/notify"
	"github.com/goliatone/go-crudkit/pkg/query"
	"github.com/goliatone/go-crudkit/pkg/render"
	"github.com/goliatone/go-crudkit/pkg/widgets"
)

// Bulk form values posted by the table page.
const (
	bulkActionField = "_action"
	selectionField  = "selection"
	selectAllField  = "all"
	bulkIDsField    = "ids"
	payloadField    = "payload"
)

func (c *collection) base() string { return "/collections/" + c.schema.Name }

func (c *collection) title() string {
	if c.schema.Label != "" {
		return c.schema.Label
	}
	return c.schema.Name
}

// pageError renders err as an error toast on an empty page.
func (s *Server) pageError(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := errorResponse(err)
	if status >= http.StatusInternalServerError {
		loggerFrom(r.Context()).Errorw("page failed", "path", r.URL.Path, "error", err)
	}
	rec := &notify.Recorder{}
	notify.Error(rec, err, s.translate(s.locale(r))("errors.unknown"))
	doc := s.document(w, r, render.KindPage, http.StatusText(status))
	doc.Notifications = append(doc.Notifications, rec.All()...)
	s.renderPage(w, r, status, doc, render.RenderOptions{})
}

// done flashes a success toast and goes back to the table.
func (s *Server) done(w http.ResponseWriter, r *http.Request, c *collection, message string) {
	rec := &notify.Recorder{}
	notify.Success(rec, message)
	s.flash(w, rec.All()...)
	http.Redirect(w, r, c.base(), http.StatusSeeOther)
}

// refererRequest recovers the table query the browser was looking at.
func refererRequest(r *http.Request, perPage int) query.Request {
	values := url.Values{}
	if ref, err := url.Parse(r.Referer()); err == nil {
		values = ref.Query()
	}
	req, err := query.ParseRequest(values, perPage)
	if err != nil {
		req, _ = query.ParseRequest(url.Values{}, perPage)
	}
	return req
}

func (s *Server) pageTable(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	var notes []notify.Notification
	req, err := query.ParseRequest(r.URL.Query(), c.schema.PerPage)
	if err != nil {
		values := r.URL.Query()
		values.Del("filters")
		req, _ = query.ParseRequest(values, c.schema.PerPage)
		notes = append(notes, notify.Notification{Level: notify.LevelError, Message: err.Error()})
	}
	records, err := c.list(r.Context())
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	view := c.table(req, nil).View(records)
	doc := s.document(w, r, render.KindTable, c.title())
	doc.Notifications = append(doc.Notifications, notes...)
	doc.Table = &render.TableView{View: view, Collection: c.schema.Name, BaseURL: c.base()}
	s.renderPage(w, r, http.StatusOK, doc, render.RenderOptions{})
}

// editForm is a form page being edited.
type editForm struct {
	form   *form.Form
	title  string
	action string
	method string
	delete string
	multi  bool
	hidden []render.HiddenField
}

func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, status int, e editForm, err error) {
	doc := s.document(w, r, render.KindForm, e.title)
	doc.Form = &render.FormView{
		Name:         e.title,
		Action:       e.action,
		Method:       e.method,
		Inputs:       e.form.Inputs(),
		DeleteAction: e.delete,
		Multiple:     e.multi,
	}
	s.renderPage(w, r, status, doc, render.RenderOptions{
		Errors: render.ErrorPayload(err),
		Hidden: e.hidden,
	})
}

// submitForm applies the posted values onto e.form. Item add/remove
// buttons re-render the form; anything else commits it.
func (s *Server) submitForm(w http.ResponseWriter, r *http.Request, c *collection, e editForm, saved string) {
	if err := r.ParseForm(); err != nil {
		s.pageError(w, r, badRequest("%v", err))
		return
	}
	applyErr := e.form.ApplyValues(r.PostForm)
	if action, ok := form.ParseItemAction(r.PostForm.Get(form.ItemActionField)); ok {
		if err := e.form.ApplyItemAction(action); err != nil {
			s.renderForm(w, r, http.StatusBadRequest, e, badRequest("%v", err))
			return
		}
		s.renderForm(w, r, http.StatusOK, e, nil)
		return
	}
	if applyErr != nil {
		s.renderForm(w, r, http.StatusUnprocessableEntity, e, nil)
		return
	}
	if err := e.form.Commit(r.Context()); err != nil {
		status, _ := errorResponse(err)
		s.renderForm(w, r, status, e, err)
		return
	}
	s.done(w, r, c, saved)
}

func (s *Server) newForm(ctx context.Context, c *collection, initial model.Record) (*form.Form, error) {
	records, err := c.list(ctx)
	if err != nil {
		return nil, err
	}
	return form.New(c.schema.Fields, c.stripID(initial), form.WithRecords(records), form.WithSubmit(func(ctx context.Context, values model.Record) error {
		_, err := c.create(ctx, values)
		return err
	})), nil
}

func (s *Server) editForm(ctx context.Context, c *collection, id string, values model.Record) (editForm, error) {
	current, err := c.get(ctx, id)
	if err != nil {
		return editForm{}, err
	}
	records, err := c.list(ctx)
	if err != nil {
		return editForm{}, err
	}
	if values == nil {
		values = current
	}
	f := form.New(c.schema.Fields, values, form.WithRecords(records), form.WithSubmit(func(ctx context.Context, values model.Record) error {
		_, err := c.replace(ctx, id, values)
		return err
	}))
	base := c.base() + "/" + url.PathEscape(id)
	return editForm{
		form:   f,
		title:  c.title(),
		action: base,
		method: http.MethodPut,
		delete: base + "/delete",
	}, nil
}

func (s *Server) pageNew(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	f, err := s.newForm(r.Context(), c, nil)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.renderForm(w, r, http.StatusOK, editForm{form: f, title: c.title(), action: c.base() + "/new", method: http.MethodPost}, nil)
}

func (s *Server) submitNew(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	f, err := s.newForm(r.Context(), c, nil)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	e := editForm{form: f, title: c.title(), action: c.base() + "/new", method: http.MethodPost}
	s.submitForm(w, r, c, e, s.translate(s.locale(r))("form.submit"))
}

func (s *Server) pageEdit(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	e, err := s.editForm(r.Context(), c, chi.URLParam(r, "id"), nil)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.renderForm(w, r, http.StatusOK, e, nil)
}

func (s *Server) submitEdit(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	e, err := s.editForm(r.Context(), c, chi.URLParam(r, "id"), nil)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.submitForm(w, r, c, e, s.translate(s.locale(r))("form.submit"))
}

func (s *Server) submitDuplicate(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	rec, err := c.get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	if err := c.table(query.Request{}, nil).Duplicate(r.Context(), rec); err != nil {
		s.pageError(w, r, err)
		return
	}
	s.done(w, r, c, s.translate(s.locale(r))("table.duplicate"))
}

func (s *Server) submitDelete(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	rec, err := c.get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	if err := c.table(query.Request{}, nil).Delete(r.Context(), rec); err != nil {
		s.pageError(w, r, err)
		return
	}
	s.done(w, r, c, s.translate(s.locale(r))("form.delete"))
}

// submitBulk runs the table bulk bar: delete, open the multi-edit form,
// or apply it.
func (s *Server) submitBulk(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		s.pageError(w, r, badRequest("%v", err))
		return
	}
	records, err := c.list(r.Context())
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	req := refererRequest(r, c.schema.PerPage)
	t := c.table(req, nil)

	ids := append(append([]string(nil), r.PostForm[selectionField]...), splitIDs(r.PostForm[bulkIDsField])...)
	if r.PostForm.Get(selectAllField) == "true" {
		t.SelectAll(query.Apply(records, c.schema.Fields, req).Items, false)
	} else {
		for _, id := range ids {
			t.Toggle(id)
		}
	}
	selected := t.Selection()
	tr := s.translate(s.locale(r))

	switch r.PostForm.Get(bulkActionField) {
	case "delete":
		if err := t.DeleteSelected(r.Context(), records); err != nil {
			s.pageError(w, r, err)
			return
		}
		s.done(w, r, c, tr("table.selected", len(selected)))
	case "duplicate":
		if err := t.DuplicateSelected(r.Context(), records); err != nil {
			s.pageError(w, r, err)
			return
		}
		s.done(w, r, c, tr("table.selected", len(selected)))
	case "edit":
		if len(selected) == 0 {
			http.Redirect(w, r, c.base(), http.StatusSeeOther)
			return
		}
		s.renderForm(w, r, http.StatusOK, multiEdit(c, selected), nil)
	case "update":
		e := multiEdit(c, selected)
		if err := e.form.ApplyValues(r.PostForm); err != nil {
			s.renderForm(w, r, http.StatusUnprocessableEntity, e, nil)
			return
		}
		t.EditSelected()
		if err := t.Submit(r.Context(), setValues(e.form.Values()), records); err != nil {
			status, _ := errorResponse(err)
			s.renderForm(w, r, status, e, err)
			return
		}
		s.done(w, r, c, tr("table.selected", len(selected)))
	default:
		s.pageError(w, r, badRequest("unknown bulk action"))
	}
}

// multiEdit is a blank form whose submit merges its set values into every
// selected record.
func multiEdit(c *collection, ids []string) editForm {
	return editForm{
		form:   form.New(c.schema.Fields, nil, form.WithNoValidation()),
		title:  c.title(),
		action: c.base() + "/bulk",
		method: http.MethodPost,
		multi:  true,
		hidden: []render.HiddenField{
			render.Hidden(bulkActionField, "update"),
			render.Hidden(bulkIDsField, strings.Join(ids, ",")),
		},
	}
}

// setValues keeps the values a multi-edit actually sets: non-empty
// strings and lists, numbers, objects and true booleans.
func setValues(values model.Record) model.Record {
	out := model.Record{}
	for k, v := range values {
		switch tv := v.(type) {
		case nil:
			continue
		case string:
			if tv == "" {
				continue
			}
		case bool:
			if !tv {
				continue
			}
		case []any:
			if len(tv) == 0 {
				continue
			}
		case map[string]any:
			if len(tv) == 0 {
				continue
			}
		}
		out[k] = v
	}
	return out
}

func (s *Server) pageExport(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	records, err := s.exportRecords(r, c)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.json"`, c.schema.Name))
	writeJSON(w, http.StatusOK, records)
}

// importFields describes the paste-JSON form.
func importFields() []model.Field {
	return []model.Field{{Key: payloadField, Label: "form.load_json", Type: model.FieldTypeTextarea, Widget: widgets.WidgetTextarea, Required: true}}
}

func importForm(c *collection, id string) editForm {
	action := c.base() + "/import"
	if id != "" {
		action = c.base() + "/" + url.PathEscape(id) + "/import"
	}
	return editForm{
		form:   form.New(importFields(), nil),
		title:  c.title(),
		action: action,
		method: http.MethodPost,
	}
}

// pageImport shows the paste-JSON form: bulk import into the collection,
// or a merge into one record when ?id= is given.
func (s *Server) pageImport(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	s.renderForm(w, r, http.StatusOK, importForm(c, r.URL.Query().Get("id")), nil)
}

func (s *Server) submitImport(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		s.pageError(w, r, badRequest("%v", err))
		return
	}
	created, err := c.table(query.Request{}, nil).BulkImport(r.Context(), r.PostForm.Get(payloadField))
	if err != nil && created == 0 {
		e := importForm(c, "")
		_ = e.form.Set(payloadField, r.PostForm.Get(payloadField))
		s.renderForm(w, r, http.StatusBadRequest, e, importError(err))
		return
	}
	rec := &notify.Recorder{}
	notify.Success(rec, s.translate(s.locale(r))("table.total", created))
	notify.Error(rec, err, "")
	s.flash(w, rec.All()...)
	http.Redirect(w, r, c.base(), http.StatusSeeOther)
}

// submitImportInto merges pasted JSON into a record and shows the edit
// form with the result. Nothing is saved until that form is submitted.
func (s *Server) submitImportInto(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		s.pageError(w, r, badRequest("%v", err))
		return
	}
	current, err := c.get(r.Context(), id)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	merged, err := c.table(query.Request{}, nil).ImportInto(current, r.PostForm.Get(payloadField))
	if err != nil {
		e := importForm(c, id)
		_ = e.form.Set(payloadField, r.PostForm.Get(payloadField))
		s.renderForm(w, r, http.StatusBadRequest, e, importError(err))
		return
	}
	e, err := s.editForm(r.Context(), c, id, merged)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.renderForm(w, r, http.StatusOK, e, nil)
}

// importError targets the payload input with the decode failure.
func importError(err error) error {
	return &form.ValidationError{Fields: map[string]string{payloadField: err.Error()}}
}

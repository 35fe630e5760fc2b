package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/goliatone/go-crudkit/components/options"
	"github.com/goliatone/go-crudkit/pkg/auth"
	"github.com/goliatone/go-crudkit/pkg/form"
	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/query"
	"github.com/goliatone/go-crudkit/pkg/store"
	"github.com/goliatone/go-crudkit/pkg/table"
	"github.com/goliatone/go-crudkit/pkg/widgets"
)

// collection is a registered schema plus its document collection.
type collection struct {
	schema  model.Schema
	docs    *store.Collection
	options map[string]http.Handler
}

func (s *Server) registerCollections(schemas []model.Schema) error {
	for _, sc := range schemas {
		if err := sc.Validate(); err != nil {
			return err
		}
		name := strings.ToLower(strings.TrimSpace(sc.Name))
		if name == auth.UsersCollection {
			return fmt.Errorf("server: collection name %q is reserved", name)
		}
		if _, dup := s.collections[name]; dup {
			return fmt.Errorf("server: duplicate collection %q", name)
		}
		c := &collection{
			schema:  sc,
			docs:    store.NewCollection(s.docs, name, store.WithNotifier(s.notifier), store.WithLogger(s.logger)),
			options: map[string]http.Handler{},
		}
		c.schema.Name = name
		c.schema.Fields = append([]model.Field(nil), sc.Fields...)

		base := "/api/collections/" + name + "/options"
		for i, f := range c.schema.Fields {
			if f.Key == "" || f.Hidden || (!f.Type.Optioned() && f.Widget != widgets.WidgetAutocomplete) {
				continue
			}
			comp := options.New(
				options.WithRoutePath(f.Key),
				options.WithSource(options.Records(f, c.list)),
			)
			c.options[f.Key] = comp.Handler()
			remote := f.Type == model.FieldTypeAutocomplete || f.Widget == widgets.WidgetAutocomplete
			if remote && len(f.Options) == 0 && f.OptionsURL == "" {
				c.schema.Fields[i] = comp.Bind(f, base)
			}
		}
		s.collections[name] = c
		s.order = append(s.order, name)
	}
	return nil
}

// expose copies the store identifier under the schema item id key.
func (c *collection) expose(rec model.Record) model.Record {
	if key := c.schema.IDKey(); key != store.IDKey && rec != nil {
		rec[key] = rec[store.IDKey]
	}
	return rec
}

func (c *collection) itemID(rec model.Record) string {
	if id := model.Stringify(rec[c.schema.IDKey()]); id != "" {
		return id
	}
	return model.Stringify(rec[store.IDKey])
}

func (c *collection) list(ctx context.Context) ([]model.Record, error) {
	records, err := c.docs.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		c.expose(rec)
	}
	return records, nil
}

func (c *collection) get(ctx context.Context, id string) (model.Record, error) {
	rec, err := c.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.expose(rec), nil
}

// stripID drops both identifier keys; ids live outside the document body.
func (c *collection) stripID(rec model.Record) model.Record {
	out := model.CloneRecord(rec)
	delete(out, store.IDKey)
	delete(out, c.schema.IDKey())
	return out
}

// create validates rec through the form engine and adds it.
func (c *collection) create(ctx context.Context, rec model.Record) (model.Record, error) {
	var id string
	f := form.New(c.schema.Fields, c.stripID(rec), form.WithSubmit(func(ctx context.Context, values model.Record) error {
		var err error
		id, err = c.docs.Add(ctx, c.stripID(values))
		return err
	}))
	if err := f.Commit(ctx); err != nil {
		return nil, err
	}
	return c.get(ctx, id)
}

// replace validates rec and overwrites the document at id.
func (c *collection) replace(ctx context.Context, id string, rec model.Record) (model.Record, error) {
	if _, err := c.docs.Get(ctx, id); err != nil {
		return nil, err
	}
	f := form.New(c.schema.Fields, c.stripID(rec), form.WithSubmit(func(ctx context.Context, values model.Record) error {
		_, err := c.docs.Set(ctx, id, c.stripID(values), false)
		return err
	}))
	if err := f.Commit(ctx); err != nil {
		return nil, err
	}
	return c.get(ctx, id)
}

// patch validates the merged record and writes only the patched keys.
func (c *collection) patch(ctx context.Context, id string, patch model.Record) (model.Record, error) {
	current, err := c.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch = c.stripID(patch)
	merged := c.stripID(current)
	for k, v := range patch {
		merged[k] = v
	}
	f := form.New(c.schema.Fields, merged, form.WithSubmit(func(ctx context.Context, values model.Record) error {
		changed := make(model.Record, len(patch))
		for k := range patch {
			changed[k] = values[k]
		}
		return c.docs.Update(ctx, id, changed)
	}))
	if err := f.Commit(ctx); err != nil {
		return nil, err
	}
	return c.get(ctx, id)
}

// table returns a table bound to the collection. Records created through
// it are appended to created when non-nil.
func (c *collection) table(req query.Request, created *[]model.Record) *table.Table {
	cb := table.Callbacks{
		OnCreate: func(ctx context.Context, rec model.Record) error {
			saved, err := c.create(ctx, rec)
			if err == nil && created != nil {
				*created = append(*created, saved)
			}
			return err
		},
		OnUpdate: func(ctx context.Context, rec model.Record) error {
			_, err := c.replace(ctx, c.itemID(rec), rec)
			return err
		},
		OnDelete: func(ctx context.Context, rec model.Record) error {
			return c.docs.Delete(ctx, c.itemID(rec))
		},
	}
	if req.PerPage == 0 {
		req.PerPage = c.schema.PerPage
	}
	if req.Page == 0 {
		req.Page = 1
	}
	return table.New(c.schema, cb, table.WithRequest(req))
}

type listResponse struct {
	Items   []model.Record `json:"items"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	Pages   int            `json:"pages"`
	PerPage int            `json:"perPage"`
}

type bulkRequest struct {
	Action string       `json:"action"`
	IDs    []string     `json:"ids"`
	Patch  model.Record `json:"patch"`
}

type countResponse struct {
	Count int `json:"count"`
}

func (s *Server) handleSchemas(w http.ResponseWriter, _ *http.Request) {
	out := make([]model.Schema, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.collections[name].schema)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	req, err := query.ParseRequest(r.URL.Query(), c.schema.PerPage)
	if err != nil {
		writeError(w, r, badRequest("invalid filters: %v", err))
		return
	}
	records, err := c.list(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	res := query.Apply(records, c.schema.Fields, req)
	if res.Items == nil {
		res.Items = []model.Record{}
	}
	writeJSON(w, http.StatusOK, listResponse{
		Items:   res.Items,
		Total:   res.Total,
		Page:    res.Page,
		Pages:   res.Pages,
		PerPage: req.PerPage,
	})
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	var rec model.Record
	if err := decodeJSON(r, &rec); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := c.create(r.Context(), rec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	rec, err := c.get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleReplaceItem(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	var rec model.Record
	if err := decodeJSON(r, &rec); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := c.replace(r.Context(), chi.URLParam(r, "id"), rec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handlePatchItem(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	var patch model.Record
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := c.patch(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	if err := c.docs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDuplicateItem(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	rec, err := c.get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var created []model.Record
	if err := c.table(query.Request{}, &created).Duplicate(r.Context(), rec); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created[0])
}

// handleDeleteBy removes every document whose field equals value. Values
// that parse as JSON scalars match typed fields.
func (s *Server) handleDeleteBy(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	field := r.URL.Query().Get("field")
	raw := r.URL.Query().Get("value")
	if field == "" {
		writeError(w, r, badRequest("field is required"))
		return
	}
	n, err := c.docs.DeleteBy(r.Context(), field, scalar(raw))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

func scalar(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		switch v.(type) {
		case float64, bool, string:
			return v
		}
	}
	return raw
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, r, badRequest("ids are required"))
		return
	}
	records, err := c.list(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var created []model.Record
	t := c.table(query.Request{}, &created)
	for _, id := range req.IDs {
		t.Toggle(id)
	}
	count := len(t.Selected(records))

	switch req.Action {
	case "delete":
		err = t.DeleteSelected(r.Context(), records)
	case "update":
		if len(req.Patch) == 0 {
			writeError(w, r, badRequest("patch is required"))
			return
		}
		t.EditSelected()
		err = t.Submit(r.Context(), req.Patch, records)
	case "duplicate":
		err = t.DuplicateSelected(r.Context(), records)
		count = len(created)
	default:
		writeError(w, r, badRequest("unknown bulk action %q", req.Action))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: count})
}

// handleExport returns the records matching the list query, or only the
// ids given, as a JSON array.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	records, err := s.exportRecords(r, c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) exportRecords(r *http.Request, c *collection) ([]model.Record, error) {
	values := r.URL.Query()
	req, err := query.ParseRequest(values, 0)
	if err != nil {
		return nil, badRequest("invalid filters: %v", err)
	}
	records, err := c.list(r.Context())
	if err != nil {
		return nil, err
	}
	records = query.Sort(query.Filter(records, c.schema.Fields, req), c.schema.Fields, req.SortKey, req.SortDesc)
	if ids := splitIDs(values["ids"]); len(ids) > 0 {
		t := c.table(req, nil)
		for _, id := range ids {
			t.Toggle(id)
		}
		records = t.Selected(records)
	}
	if records == nil {
		records = []model.Record{}
	}
	return records, nil
}

func splitIDs(values []string) []string {
	var out []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	defer r.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		writeError(w, r, badRequest("read body: %v", err))
		return
	}
	created, err := c.table(query.Request{}, nil).BulkImport(r.Context(), string(raw))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, countResponse{Count: created})
}

func (s *Server) handleFieldOptions(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	h, ok := c.options[chi.URLParam(r, "field")]
	if !ok {
		writeError(w, r, notFound("field has no options"))
		return
	}
	h.ServeHTTP(w, r)
}

// handleList serves a configured option list.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	src, ok := s.cfg.Lists[chi.URLParam(r, "name")]
	if !ok {
		writeError(w, r, notFound("unknown option list"))
		return
	}
	options.NewHandler(options.WithSource(src)).ServeHTTP(w, r)
}

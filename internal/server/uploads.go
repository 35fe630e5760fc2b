package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/goliatone/go-crudkit/pkg/apperr"
	"github.com/goliatone/go-crudkit/pkg/auth"
	"github.com/goliatone/go-crudkit/pkg/blob"
	"github.com/goliatone/go-crudkit/pkg/media"
	"github.com/goliatone/go-crudkit/pkg/notify"
	"github.com/goliatone/go-crudkit/pkg/query"
	"github.com/goliatone/go-crudkit/pkg/render"
)

const (
	uploadsPage = "/uploads"
	filesField  = "files"
)

var errNotOwner = errors.New("upload belongs to another user")

type uploadsResponse struct {
	media.Page
	Types  []string `json:"types"`
	Active []string `json:"active,omitempty"`
}

type selectionRequest struct {
	Selection []string        `json:"selection"`
	Max       *int            `json:"max,omitempty"`
	Kind      media.ValueKind `json:"kind,omitempty"`
	Prop      string          `json:"prop,omitempty"`
	Keys      []string        `json:"keys,omitempty"`
}

// managerFor builds a media manager from query parameters: mode, max, kind,
// prop, keys, type and the usual q/sort/page parameters.
func managerFor(values url.Values) (*media.Manager, error) {
	mode := media.Mode(values.Get("mode"))
	switch mode {
	case media.ModeSelect, media.ModeInput:
	default:
		mode = media.ModeGallery
	}
	limit := media.Unlimited
	if raw := values.Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, badRequest("max must be a number")
		}
		limit = n
	}
	binding := media.Binding{
		Kind: media.ValueKind(values.Get("kind")),
		Prop: values.Get("prop"),
		Keys: splitIDs(values["keys"]),
	}
	m := media.NewManager(mode, media.WithMultiple(limit), media.WithBinding(binding))

	req, err := query.ParseRequest(values, media.DefaultPerPage)
	if err != nil {
		return nil, badRequest("%v", err)
	}
	if values.Get("sort") == "" {
		req.SortKey, req.SortDesc = m.Request().SortKey, m.Request().SortDesc
	}
	m.SetRequest(req)
	m.RestrictTypes(values["type"]...)
	return m, nil
}

func viewerUID(r *http.Request) string {
	if v, ok := viewerFrom(r.Context()); ok {
		return v.user.UID
	}
	return ""
}

// owned loads an upload the viewer may change: their own files, or any
// file for admins.
func (s *Server) owned(r *http.Request, id string) (media.Upload, error) {
	up, err := s.uploads.Get(r.Context(), id)
	if err != nil {
		return media.Upload{}, err
	}
	v, _ := viewerFrom(r.Context())
	if up.UserID != "" && up.UserID != v.user.UID && v.role != auth.RoleAdmin {
		return media.Upload{}, apperr.New(apperr.CodeUnauthorized, errNotOwner)
	}
	return up, nil
}

// replaceable lists the uploads a replace value may point to: the viewer's
// own files. Public files of other users are listed but never replaced.
func (s *Server) replaceable(r *http.Request) ([]media.Upload, error) {
	v, ok := viewerFrom(r.Context())
	if !ok {
		return nil, nil
	}
	all, err := s.uploads.List(r.Context(), v.user.UID)
	if err != nil {
		return nil, err
	}
	mine := all[:0]
	for _, up := range all {
		if up.OwnedBy(v.user.UID) {
			mine = append(mine, up)
		}
	}
	return mine, nil
}

func listed(uploads []media.Upload, id string) bool {
	if id == "" {
		return false
	}
	for _, up := range uploads {
		if up.ID == id {
			return true
		}
	}
	return false
}

// filesFrom opens every part of the multipart field "files". Callers close
// the returned files.
func filesFrom(form *multipart.Form) ([]media.File, func(), error) {
	var (
		files   []media.File
		closers []io.Closer
	)
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
	if form == nil {
		return nil, closeAll, nil
	}
	for _, fh := range form.File[filesField] {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, badRequest("open %s: %v", fh.Filename, err)
		}
		closers = append(closers, f)
		files = append(files, media.File{
			Name:        fh.Filename,
			Body:        f,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
		})
	}
	return files, closeAll, nil
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	m, err := managerFor(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.uploads.List(r.Context(), viewerUID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadsResponse{
		Page:   m.Visible(items),
		Types:  media.ContentTypes(items),
		Active: m.Types(),
	})
}

// handleUpload stores the posted files. With a replace value the upload
// acts as a single-file field: the new file replaces the one the value
// points to and the response carries the new field value.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, r, badRequest("read upload: %v", err))
		return
	}
	files, closeAll, err := filesFrom(r.MultipartForm)
	defer closeAll()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(files) == 0 {
		writeError(w, r, badRequest("no files in field %q", filesField))
		return
	}
	opts := media.UploadOptions{UserID: viewerUID(r), IsPublic: r.FormValue("isPublic") == "true"}

	if prev := r.FormValue("replace"); prev != "" {
		binding := media.Binding{Prop: r.FormValue("prop")}
		mine, err := s.replaceable(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		u := media.NewUploader(s.uploads, binding)
		u.Load(prev, mine)
		if items := u.Items(); len(items) != 1 || !listed(mine, items[0].ID) {
			writeError(w, r, apperr.New(apperr.CodeUnauthorized, errNotOwner))
			return
		}
		value, err := u.Add(r.Context(), files[:1], opts)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"value": value, "items": u.Items()})
		return
	}

	added, err := s.uploads.UploadAll(r.Context(), files, opts)
	if err != nil && len(added) == 0 {
		writeError(w, r, err)
		return
	}
	if err != nil {
		loggerFrom(r.Context()).Warnw("partial upload", "stored", len(added), "error", err)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"items": added})
}

func selectionFrom(r *http.Request) (selectionRequest, error) {
	var in selectionRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		err := decodeJSON(r, &in)
		return in, err
	}
	if err := r.ParseForm(); err != nil {
		return in, badRequest("%v", err)
	}
	in.Selection = splitIDs(r.PostForm[selectionField])
	if raw := r.PostForm.Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return in, badRequest("max must be a number")
		}
		in.Max = &n
	}
	in.Kind = media.ValueKind(r.PostForm.Get("kind"))
	in.Prop = r.PostForm.Get("prop")
	in.Keys = splitIDs(r.PostForm["keys"])
	return in, nil
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

// handleSelection picks the posted uploads in order and returns the bound
// field value. Browser forms get the media page back with the selection
// ticked.
func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	in, err := selectionFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit := media.Unlimited
	if in.Max != nil {
		limit = *in.Max
	}
	m := media.NewManager(media.ModeSelect,
		media.WithMultiple(limit),
		media.WithBinding(media.Binding{Kind: in.Kind, Prop: in.Prop, Keys: in.Keys}),
		media.WithResetDelay(0),
	)

	items, err := s.uploads.List(r.Context(), viewerUID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	byID := make(map[string]media.Upload, len(items))
	for _, up := range items {
		byID[up.ID] = up
	}
	fail := func(err error) {
		if wantsJSON(r) {
			writeError(w, r, err)
			return
		}
		s.pageError(w, r, err)
	}
	for _, id := range in.Selection {
		up, ok := byID[id]
		if !ok {
			fail(notFound("unknown upload " + id))
			return
		}
		if err := m.Pick(up); err != nil {
			fail(err)
			return
		}
	}

	ids := make([]string, 0, len(in.Selection))
	for _, up := range m.Selection() {
		ids = append(ids, up.ID)
	}
	value := m.Confirm()
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"value": value, "selection": ids})
		return
	}

	page, err := managerFor(url.Values{"mode": {string(media.ModeSelect)}})
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	doc := s.document(w, r, render.KindMedia, s.translate(s.locale(r))("uploads"))
	doc.Path = uploadsPage
	doc.Media = &render.MediaView{
		Mode:      media.ModeSelect,
		Page:      page.Visible(items),
		Types:     media.ContentTypes(items),
		Selection: ids,
		Max:       mediaMax(m),
	}
	rec := &notify.Recorder{}
	notify.Success(rec, s.translate(s.locale(r))("table.selected", len(ids)))
	doc.Notifications = append(doc.Notifications, rec.All()...)
	s.renderPage(w, r, http.StatusOK, doc, render.RenderOptions{})
}

func (s *Server) handleEditUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.owned(r, id); err != nil {
		writeError(w, r, err)
		return
	}
	var edit media.Edit
	if err := decodeJSON(r, &edit); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.uploads.UpdateMetadata(r.Context(), id, edit); err != nil {
		writeError(w, r, err)
		return
	}
	up, err := s.uploads.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, up)
}

func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	up, err := s.owned(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.uploads.Delete(r.Context(), up); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFile streams a stored blob.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	p, err := blob.CleanPath(chi.URLParam(r, "*"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	body, meta, err := s.cfg.Blobs.Open(r.Context(), p)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		writeError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", blob.ContentTypeOf(meta.Name, meta.ContentType))
	if meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	if _, err := io.Copy(w, body); err != nil {
		loggerFrom(r.Context()).Debugw("stream file", "path", p, "error", err)
	}
}

func (s *Server) pageUploads(w http.ResponseWriter, r *http.Request) {
	m, err := managerFor(r.URL.Query())
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	items, err := s.uploads.List(r.Context(), viewerUID(r))
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	doc := s.document(w, r, render.KindMedia, s.translate(s.locale(r))("uploads"))
	doc.Path = uploadsPage
	doc.Media = &render.MediaView{
		Mode:   m.Mode(),
		Page:   m.Visible(items),
		Query:  m.Request().Query,
		Types:  media.ContentTypes(items),
		Active: m.Types(),
		Max:    mediaMax(m),
	}
	s.renderPage(w, r, http.StatusOK, doc, render.RenderOptions{})
}

// mediaMax is the cap shown to the user: 1 for single pickers, 0 when
// unlimited.
func mediaMax(m *media.Manager) int {
	if !m.Multiple() {
		return 1
	}
	return m.Max()
}

func (s *Server) submitUploads(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		s.pageError(w, r, badRequest("read upload: %v", err))
		return
	}
	files, closeAll, err := filesFrom(r.MultipartForm)
	defer closeAll()
	if err != nil {
		s.pageError(w, r, err)
		return
	}

	rec := &notify.Recorder{}
	added, err := s.uploads.UploadAll(r.Context(), files, media.UploadOptions{
		UserID:   viewerUID(r),
		IsPublic: r.FormValue("isPublic") == "true",
	})
	if err != nil {
		notify.Error(rec, err, s.translate(s.locale(r))("errors.unknown"))
	}
	if len(added) > 0 {
		notify.Success(rec, s.translate(s.locale(r))("media.file_uploaded"))
	}
	s.flash(w, rec.All()...)
	http.Redirect(w, r, uploadsPage, http.StatusSeeOther)
}

func (s *Server) submitDeleteUpload(w http.ResponseWriter, r *http.Request) {
	up, err := s.owned(r, chi.URLParam(r, "id"))
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	rec := &notify.Recorder{}
	if err := s.uploads.Delete(r.Context(), up); err != nil {
		notify.Error(rec, err, s.translate(s.locale(r))("errors.unknown"))
	} else {
		notify.Success(rec, s.translate(s.locale(r))("media.file_deleted"))
	}
	s.flash(w, rec.All()...)
	redirectBack(w, r, uploadsPage)
}

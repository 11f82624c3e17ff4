package web

import (
	"database/sql"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/moment/internal/config"
	"github.com/hpungsan/moment/internal/errors"
	"github.com/hpungsan/moment/internal/ops"
)

// Handlers contains HTTP route handlers for the feed viewer.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
	logger   *zap.Logger
}

// HandleList handles GET /posts and renders the family feed, newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := ops.ListInput{
		Author:         q.Get("author"),
		Date:           q.Get("date"),
		Limit:          parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:         parseIntParam(r, "offset", 0),
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	}

	result, err := ops.List(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData:   h.renderer.page("Feed"),
		Items:      result.Items,
		Pagination: result.Pagination,
		Author:     input.Author,
		Date:       input.Date,
		Deleted:    input.IncludeDeleted,
	})
}

// HandleCompose handles POST /posts and publishes an uploaded photo.
func (h *Handlers) HandleCompose(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, ops.MaxImageFileBytes+(1<<20))
	if err := r.ParseMultipartForm(ops.MaxImageFileBytes); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid multipart form"))
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		h.renderer.renderError(w, r, errors.NewNoImageSelected())
		return
	}
	image, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("could not read image upload"))
		return
	}

	input := ops.ComposeInput{
		Image:    image,
		Filter:   r.FormValue("filter"),
		Text:     r.FormValue("text"),
		Caption:  r.FormValue("caption"),
		Location: formBool(r, "location"),
		Weather:  formBool(r, "weather"),
		Time:     formBool(r, "time"),
	}
	if s := r.FormValue("caption_index"); s != "" {
		i, err := strconv.Atoi(s)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("caption_index must be an integer"))
			return
		}
		input.CaptionIndex = &i
	}
	if category := r.FormValue("health_category"); category != "" {
		i, err := strconv.Atoi(r.FormValue("health_index"))
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("health_index must be an integer"))
			return
		}
		input.Health = &ops.ComposeHealth{Category: category, Index: i}
	}

	result, err := ops.Compose(r.Context(), h.db, h.cfg, input, ops.WithLogger(h.logger))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	location := "/posts/" + result.ID
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", location)
		w.WriteHeader(http.StatusCreated)
		return
	}
	if wantsJSON(r) {
		w.Header().Set("Location", location)
		renderJSON(w, http.StatusCreated, result)
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// HandleDetail handles GET /posts/{id} and shows a single post.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("post ID is required"))
		return
	}

	includeImage := false
	p, err := ops.Fetch(r.Context(), h.db, ops.FetchInput{
		ID:             id,
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
		IncludeImage:   &includeImage,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, p)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData:    h.renderer.page(p.Author + " · " + p.CreatedDate),
		Post:        p,
		CaptionHTML: renderCaption(p.Caption),
	})
}

// HandleImage handles GET /posts/{id}/image and serves the composed JPEG.
func (h *Handlers) HandleImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("post ID is required"))
		return
	}

	// Post images never change after publish.
	etag := `"` + id + `"`
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	includeImage := true
	p, err := ops.Fetch(r.Context(), h.db, ops.FetchInput{
		ID:             id,
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
		IncludeImage:   &includeImage,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Image)))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(p.Image)
}

// HandleDelete handles DELETE /posts/{id} and soft-deletes a post.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("post ID is required"))
		return
	}

	result, err := ops.Delete(r.Context(), h.db, ops.DeleteInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/posts")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/posts", http.StatusFound)
}

// HandlePurge handles POST /posts/purge and permanently deletes soft-deleted posts.
func (h *Handlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	var input ops.PurgeInput
	if days := r.FormValue("older_than_days"); days != "" {
		d, err := strconv.Atoi(days)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("older_than_days must be an integer"))
			return
		}
		input.OlderThanDays = &d
	}

	result, err := ops.Purge(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="purge-result">` + template.HTMLEscapeString(result.Message) + `</div>`))
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/posts?include_deleted=true", http.StatusFound)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}

// formBool reads an HTML checkbox.
func formBool(r *http.Request, name string) bool {
	switch strings.ToLower(r.FormValue(name)) {
	case "on", "true", "1":
		return true
	}
	return false
}

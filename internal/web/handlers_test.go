package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hpungsan/moment/internal/config"
	"github.com/hpungsan/moment/internal/db"
	"github.com/hpungsan/moment/internal/ops"
)

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 48, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 48; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 5), G: 140, B: uint8(y * 7), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func setupTest(t *testing.T) *Handlers {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.Author = "엄마"

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}

	return &Handlers{
		db:       database,
		cfg:      cfg,
		renderer: NewRenderer(templateSub, "test", nil),
	}
}

// seedPost publishes a gallery post and returns its ID.
func seedPost(t *testing.T, h *Handlers, caption string) string {
	t.Helper()
	out, err := ops.Compose(context.Background(), h.db, h.cfg, ops.ComposeInput{
		Image:   testJPEG(t),
		Caption: caption,
		Text:    "산책",
		Time:    true,
	})
	if err != nil {
		t.Fatalf("seed post %q: %v", caption, err)
	}
	return out.ID
}

// --- HandleList ---

func TestHandleList_Default(t *testing.T) {
	h := setupTest(t)
	seedPost(t, h, "아침 스트레칭")
	seedPost(t, h, "저녁 산책")

	req := httptest.NewRequest("GET", "/posts", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"아침 스트레칭", "저녁 산책", "<!doctype html>", "2 posts"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in feed page", want)
		}
	}
}

func TestHandleList_Empty(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/posts", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No posts yet.") {
		t.Error("expected empty state")
	}
}

func TestHandleList_HtmxReturnsContentOnly(t *testing.T) {
	h := setupTest(t)
	seedPost(t, h, "fragment")

	req := httptest.NewRequest("GET", "/posts", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	body := rec.Body.String()
	if strings.Contains(body, "<!doctype html>") {
		t.Error("htmx response should not include the layout")
	}
	if !strings.Contains(body, "fragment") {
		t.Error("expected post in fragment")
	}
}

func TestHandleList_JSON(t *testing.T) {
	h := setupTest(t)
	seedPost(t, h, "json")

	req := httptest.NewRequest("GET", "/posts?limit=1", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	var resp ops.ListOutput
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Caption != "json" {
		t.Errorf("items = %+v", resp.Items)
	}
}

func TestHandleList_BadDate(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/posts?date=yesterday", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleList_InvalidLimitFallsBack(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/posts?limit=abc", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

// --- HandleCompose ---

func multipartRequest(t *testing.T, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "photo.jpg")
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(image)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", "/posts", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandleCompose_JSON(t *testing.T) {
	h := setupTest(t)

	req := multipartRequest(t, map[string]string{
		"filter":          "Warm",
		"caption":         "가족 나들이",
		"weather":         "on",
		"health_category": "mood",
		"health_index":    "0",
	}, testJPEG(t))
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleCompose(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var out ops.ComposeOutput
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if out.Filter != "Warm" || out.Caption != "가족 나들이" {
		t.Errorf("out = %+v", out)
	}
	if len(out.Overlays) != 2 {
		t.Errorf("overlays = %v, want weather and mood", out.Overlays)
	}
	if loc := rec.Header().Get("Location"); loc != "/posts/"+out.ID {
		t.Errorf("Location = %q", loc)
	}
}

func TestHandleCompose_DefaultRedirect(t *testing.T) {
	h := setupTest(t)

	rec := httptest.NewRecorder()
	h.HandleCompose(rec, multipartRequest(t, nil, testJPEG(t)))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, "/posts/") {
		t.Errorf("Location = %q", loc)
	}
}

func TestHandleCompose_NoImage(t *testing.T) {
	h := setupTest(t)

	req := multipartRequest(t, map[string]string{"caption": "no photo"}, nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleCompose(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp map[string]map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp["error"]["code"] != "NO_IMAGE_SELECTED" {
		t.Errorf("code = %v", resp["error"]["code"])
	}
}

func TestHandleCompose_BadFields(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		image  []byte
	}{
		{"unknown filter", map[string]string{"filter": "Sepia"}, nil},
		{"caption index", map[string]string{"caption_index": "first"}, nil},
		{"health index", map[string]string{"health_category": "mood", "health_index": ""}, nil},
		{"not an image", nil, []byte("GIF89a-not-really")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTest(t)
			image := tt.image
			if image == nil {
				image = testJPEG(t)
			}
			rec := httptest.NewRecorder()
			h.HandleCompose(rec, multipartRequest(t, tt.fields, image))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

// --- HandleDetail / HandleImage ---

func TestHandleDetail_Found(t *testing.T) {
	h := setupTest(t)
	id := seedPost(t, h, "**오늘** 만보 달성")

	req := httptest.NewRequest("GET", "/posts/"+id, nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"<strong>오늘</strong>", "엄마", "산책", "/posts/" + id + "/image", "Normal"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in detail page", want)
		}
	}
}

func TestHandleDetail_CaptionHTMLIsEscaped(t *testing.T) {
	h := setupTest(t)
	id := seedPost(t, h, `<script>alert(1)</script>`)

	req := httptest.NewRequest("GET", "/posts/"+id, nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if strings.Contains(rec.Body.String(), "<script>alert(1)</script>") {
		t.Error("raw HTML in captions must not be rendered")
	}
}

func TestHandleDetail_NotFound(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/posts/NONEXISTENT", nil)
	req.SetPathValue("id", "NONEXISTENT")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDetail_EmptyID(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/posts/", nil)
	req.SetPathValue("id", "")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleImage(t *testing.T) {
	h := setupTest(t)
	id := seedPost(t, h, "image")

	req := httptest.NewRequest("GET", "/posts/"+id+"/image", nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.HandleImage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if _, err := jpeg.Decode(rec.Body); err != nil {
		t.Fatalf("body is not a JPEG: %v", err)
	}

	etag := rec.Header().Get("ETag")
	req = httptest.NewRequest("GET", "/posts/"+id+"/image", nil)
	req.SetPathValue("id", id)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	h.HandleImage(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("status = %d, want 304", rec.Code)
	}
}

func TestHandleImage_DeletedNeedsFlag(t *testing.T) {
	h := setupTest(t)
	id := seedPost(t, h, "gone")
	if _, err := ops.Delete(context.Background(), h.db, ops.DeleteInput{ID: id}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/posts/"+id+"/image", nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.HandleImage(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	req = httptest.NewRequest("GET", "/posts/"+id+"/image?include_deleted=true", nil)
	req.SetPathValue("id", id)
	rec = httptest.NewRecorder()
	h.HandleImage(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

// --- HandleDelete ---

func TestHandleDelete_HtmxRequest(t *testing.T) {
	h := setupTest(t)
	id := seedPost(t, h, "del-htmx")

	req := httptest.NewRequest("DELETE", "/posts/"+id, nil)
	req.SetPathValue("id", id)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("HX-Redirect"); got != "/posts" {
		t.Errorf("HX-Redirect = %q, want /posts", got)
	}
}

func TestHandleDelete_JSONRequest(t *testing.T) {
	h := setupTest(t)
	id := seedPost(t, h, "del-json")

	req := httptest.NewRequest("DELETE", "/posts/"+id, nil)
	req.SetPathValue("id", id)
	req.Header.Set("Accept", "text/html, application/json")
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp["deleted"] != true || resp["id"] != id {
		t.Errorf("resp = %v", resp)
	}
}

func TestHandleDelete_NotFound(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("DELETE", "/posts/NONEXISTENT", nil)
	req.SetPathValue("id", "NONEXISTENT")
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

// --- HandlePurge ---

func purgeRequest(form url.Values) *http.Request {
	req := httptest.NewRequest("POST", "/posts/purge", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHandlePurge_RequiresConfirm(t *testing.T) {
	h := setupTest(t)

	for _, form := range []url.Values{{}, {"confirm": {"false"}}} {
		rec := httptest.NewRecorder()
		h.HandlePurge(rec, purgeRequest(form))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	}
}

func TestHandlePurge_DefaultRedirect(t *testing.T) {
	h := setupTest(t)

	rec := httptest.NewRecorder()
	h.HandlePurge(rec, purgeRequest(url.Values{"confirm": {"true"}}))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/posts?include_deleted=true" {
		t.Errorf("Location = %q", loc)
	}
}

func TestHandlePurge_JSONResponse(t *testing.T) {
	h := setupTest(t)
	id := seedPost(t, h, "purge-target")
	if _, err := ops.Delete(context.Background(), h.db, ops.DeleteInput{ID: id}); err != nil {
		t.Fatalf("delete for purge setup: %v", err)
	}

	req := purgeRequest(url.Values{"confirm": {"true"}})
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandlePurge(rec, req)

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp["purged"] != float64(1) {
		t.Errorf("purged = %v, want 1", resp["purged"])
	}
}

func TestHandlePurge_HtmxResponse(t *testing.T) {
	h := setupTest(t)

	req := purgeRequest(url.Values{"confirm": {"true"}})
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandlePurge(rec, req)

	if !strings.Contains(rec.Body.String(), "purge-result") {
		t.Error("expected purge-result div in htmx response")
	}
}

func TestHandlePurge_InvalidOlderThanDays(t *testing.T) {
	h := setupTest(t)

	rec := httptest.NewRecorder()
	h.HandlePurge(rec, purgeRequest(url.Values{"confirm": {"true"}, "older_than_days": {"notanumber"}}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- Error rendering ---

func TestErrorRendering_HtmxFragment(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/posts/NONEXISTENT", nil)
	req.SetPathValue("id", "NONEXISTENT")
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `class="error-message"`) {
		t.Error("expected error fragment")
	}
	if strings.Contains(body, "<!doctype html>") {
		t.Error("htmx error should not include the layout")
	}
}

func TestErrorRendering_FullErrorPage(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/posts/NONEXISTENT", nil)
	req.SetPathValue("id", "NONEXISTENT")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "404") || !strings.Contains(body, "Back to feed") {
		t.Error("expected full error page")
	}
}

// --- Server ---

func TestNewServer_RoutesAndHeaders(t *testing.T) {
	h := setupTest(t)
	id := seedPost(t, h, "routed")

	srv, err := NewServer(h.db, h.cfg, "test", "127.0.0.1", 0, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/", http.StatusFound},
		{"/posts", http.StatusOK},
		{"/posts/" + id, http.StatusOK},
		{"/posts/" + id + "/image", http.StatusOK},
		{"/static/style.css", http.StatusOK},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("GET %s status = %d, want %d", tt.path, rec.Code, tt.want)
		}
		if rec.Header().Get("X-Frame-Options") != "DENY" {
			t.Errorf("GET %s missing security headers", tt.path)
		}
	}
}

// --- Helpers ---

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=abc", 20},
		{"limit=-3", -3},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/posts?"+tt.query, nil)
		if got := parseIntParam(req, "limit", 20); got != tt.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int]string{
		512:             "512 B",
		2048:            "2.0 KB",
		3 * 1024 * 1024: "3.0 MB",
	}
	for in, want := range tests {
		if got := formatBytes(in); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

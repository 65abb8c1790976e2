package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jo-hoe/mebloggy/internal/assets"
	"github.com/jo-hoe/mebloggy/internal/backend/database"
	"github.com/jo-hoe/mebloggy/internal/backend/preferences"
	"github.com/jo-hoe/mebloggy/internal/common"
	"github.com/jo-hoe/mebloggy/internal/core"

	"github.com/labstack/echo/v4"
)

// newTestServer serves the bundled seed: s-landscapes [lake mountains dunes]
// and s-city [skyline bridge]
func newTestServer(t *testing.T) (*echo.Echo, *core.CoreService) {
	t.Helper()

	config, err := core.ParseConfig([]byte(`database:
  connectionString: ":memory:"
thumbnailWidth: 64
`))
	if err != nil {
		t.Fatalf("ParseConfig error: %v", err)
	}
	db, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		t.Fatalf("NewDatabase error: %v", err)
	}
	coreService, err := core.NewCoreServiceWithStores(config, db, preferences.NewMemoryStore(), assets.Embedded())
	if err != nil {
		t.Fatalf("NewCoreServiceWithStores error: %v", err)
	}
	t.Cleanup(func() { _ = coreService.Close() })
	if err := coreService.Init(context.Background()); err != nil {
		t.Fatalf("Init error: %v", err)
	}

	e := echo.New()
	e.Validator = common.NewGenericEchoValidator()
	NewAPIService(config, coreService).SetRoutes(e)
	return e, coreService
}

func doJSON(t *testing.T, e *echo.Echo, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func doUpload(t *testing.T, e *echo.Echo, method, path, field string, payload []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, "upload.png")
	if err != nil {
		t.Fatalf("CreateFormFile error: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("WriteField error: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	if err := json.Unmarshal(rec.Body.Bytes(), &value); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return value
}

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func TestProbe(t *testing.T) {
	e, _ := newTestServer(t)
	if rec := doJSON(t, e, http.MethodGet, ProbePath, nil); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestShowcases_ListAndGet(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodGet, "/api/showcases", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	showcases := decode[[]core.ShowcaseView](t, rec)
	if len(showcases) != 2 || showcases[0].ID != "s-landscapes" {
		t.Fatalf("unexpected showcases %+v", showcases)
	}
	if src := showcases[0].Images[0].Src; src != "/assets/images/lake.svg" {
		t.Errorf("expected asset src for seeded image, got %q", src)
	}

	rec = doJSON(t, e, http.MethodGet, "/api/showcases/s-city", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if showcase := decode[core.ShowcaseView](t, rec); len(showcase.Images) != 2 {
		t.Errorf("expected 2 images in s-city, got %d", len(showcase.Images))
	}

	if rec := doJSON(t, e, http.MethodGet, "/api/showcases/s-missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestShowcases_CreateThenUpload(t *testing.T) {
	e, _ := newTestServer(t)

	if rec := doJSON(t, e, http.MethodPost, "/api/showcases", map[string]string{"title": ""}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty title, got %d", rec.Code)
	}

	rec := doJSON(t, e, http.MethodPost, "/api/showcases", map[string]string{"title": "Trips"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[createShowcaseResponse](t, rec)

	rec = doUpload(t, e, http.MethodPost, "/api/images", "image", testPNG(t, 8, 8),
		map[string]string{"showcaseId": created.ID, "title": "Harbour", "description": "boats"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	uploaded := decode[core.ImageView](t, rec)
	if uploaded.Title != "Harbour" || uploaded.Src != core.ImageBlobURL(uploaded.ID) {
		t.Errorf("unexpected upload response %+v", uploaded)
	}

	showcase := decode[core.ShowcaseView](t, doJSON(t, e, http.MethodGet, "/api/showcases/"+created.ID, nil))
	if len(showcase.Images) != 1 || showcase.Images[0].ID != uploaded.ID {
		t.Errorf("expected uploaded image first in new showcase, got %+v", showcase.Images)
	}

	last := decode[lastShowcaseRequest](t, doJSON(t, e, http.MethodGet, "/api/preferences/last-showcase", nil))
	if last.ShowcaseID != created.ID {
		t.Errorf("expected last showcase %s, got %q", created.ID, last.ShowcaseID)
	}

	blob := doJSON(t, e, http.MethodGet, core.ImageBlobURL(uploaded.ID), nil)
	if blob.Code != http.StatusOK || blob.Header().Get(echo.HeaderContentType) != "image/png" {
		t.Errorf("expected PNG blob, got %d %q", blob.Code, blob.Header().Get(echo.HeaderContentType))
	}
}

func TestImages_UploadErrors(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doUpload(t, e, http.MethodPost, "/api/images", "image", testPNG(t, 4, 4), map[string]string{"showcaseId": "s-missing"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown showcase, got %d", rec.Code)
	}

	rec = doUpload(t, e, http.MethodPost, "/api/images", "wrong-field", testPNG(t, 4, 4), nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without image field, got %d", rec.Code)
	}
}

func TestImages_MetadataMoveDelete(t *testing.T) {
	e, coreService := newTestServer(t)

	rec := doJSON(t, e, http.MethodPatch, "/api/images/img-bridge", map[string]string{"title": "Old Bridge", "description": "night"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if title := coreService.GetShowcase("s-city").Images[1].Title; title != "Old Bridge" {
		t.Errorf("expected updated title, got %q", title)
	}
	if rec := doJSON(t, e, http.MethodPatch, "/api/images/img-bridge", map[string]string{"description": "no title"}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without title, got %d", rec.Code)
	}

	rec = doJSON(t, e, http.MethodPost, "/api/images/img-bridge/move", map[string]string{"showcaseId": "s-landscapes"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if first := coreService.GetShowcase("s-landscapes").Images[0].ID; first != "img-bridge" {
		t.Errorf("expected moved image first, got %s", first)
	}

	if rec := doJSON(t, e, http.MethodDelete, "/api/images/img-skyline", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	// s-city lost both images
	if coreService.GetShowcase("s-city") != nil {
		t.Error("expected emptied showcase to be deleted")
	}
	if rec := doJSON(t, e, http.MethodDelete, "/api/images/img-skyline", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestShowcases_Order(t *testing.T) {
	e, coreService := newTestServer(t)

	rec := doJSON(t, e, http.MethodPut, "/api/showcases/order", map[string][]string{"showcaseIds": {"s-city"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if showcases := decode[[]core.ShowcaseView](t, rec); showcases[0].ID != "s-city" {
		t.Errorf("expected s-city first, got %s", showcases[0].ID)
	}

	rec = doJSON(t, e, http.MethodPut, "/api/showcases/s-city/images", map[string][]string{"imageIds": {"img-bridge", "img-skyline"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if showcase := decode[core.ShowcaseView](t, rec); showcase.Images[0].ID != "img-bridge" {
		t.Errorf("expected img-bridge first, got %s", showcase.Images[0].ID)
	}

	rec = doJSON(t, e, http.MethodPut, "/api/showcases/s-city/images", map[string][]string{"imageIds": {}})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 after emptying, got %d", rec.Code)
	}
	if coreService.GetShowcase("s-city") != nil {
		t.Error("expected showcase to be deleted")
	}
}

func TestImages_BlobAndThumbnail(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodGet, "/api/images/img-lake/blob", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if contentType := rec.Header().Get(echo.HeaderContentType); contentType != "image/svg+xml" {
		t.Errorf("expected image/svg+xml, got %q", contentType)
	}

	rec = doJSON(t, e, http.MethodGet, "/api/images/img-lake/thumbnail", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("expected PNG thumbnail: %v", err)
	}
	if cfg.Width != 64 {
		t.Errorf("expected thumbnail width 64, got %d", cfg.Width)
	}

	if rec := doJSON(t, e, http.MethodGet, "/api/images/img-missing/thumbnail", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestImages_OversizedThumbnailIsBadRequest(t *testing.T) {
	e, _ := newTestServer(t)

	// GIF header declaring a 60000x60000 canvas
	huge := []byte{'G', 'I', 'F', '8', '9', 'a', 0x60, 0xEA, 0x60, 0xEA, 0x00, 0x00, 0x00}
	rec := doUpload(t, e, http.MethodPost, "/api/images", "image", huge, map[string]string{"title": "Huge"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	uploaded := decode[core.ImageView](t, rec)

	if rec := doJSON(t, e, http.MethodGet, "/api/images/"+uploaded.ID+"/thumbnail", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestFeatured(t *testing.T) {
	e, _ := newTestServer(t)

	featured := decode[*core.ImageView](t, doJSON(t, e, http.MethodGet, "/api/featured", nil))
	if featured == nil || featured.ID != "img-lake" {
		t.Fatalf("expected img-lake featured after init, got %+v", featured)
	}

	rec := doJSON(t, e, http.MethodPut, "/api/featured", map[string]string{"imageId": "img-dunes"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if featured := decode[*core.ImageView](t, rec); featured.ID != "img-dunes" {
		t.Errorf("expected img-dunes, got %s", featured.ID)
	}
	if rec := doJSON(t, e, http.MethodPut, "/api/featured", map[string]string{"imageId": "img-missing"}); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	if rec := doJSON(t, e, http.MethodDelete, "/api/featured", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = doJSON(t, e, http.MethodGet, "/api/featured", nil)
	if body := strings.TrimSpace(rec.Body.String()); body != "null" {
		t.Errorf("expected null after clearing, got %s", body)
	}
}

func TestAvatar(t *testing.T) {
	e, _ := newTestServer(t)

	if rec := doJSON(t, e, http.MethodGet, "/api/avatar/blob", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without avatar, got %d", rec.Code)
	}

	payload := testPNG(t, 6, 6)
	rec := doUpload(t, e, http.MethodPut, "/api/avatar", "avatar", payload, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	avatar := decode[core.AvatarView](t, rec)
	if !strings.HasPrefix(avatar.Src, core.AvatarBlobPath) {
		t.Errorf("unexpected avatar src %q", avatar.Src)
	}

	got := decode[*core.AvatarView](t, doJSON(t, e, http.MethodGet, "/api/avatar", nil))
	if got == nil || got.ID != avatar.ID {
		t.Errorf("expected stored avatar, got %+v", got)
	}

	rec = doJSON(t, e, http.MethodGet, "/api/avatar/blob", nil)
	if rec.Code != http.StatusOK || !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Errorf("expected avatar payload, got %d", rec.Code)
	}

	if rec := doJSON(t, e, http.MethodDelete, "/api/avatar", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := doJSON(t, e, http.MethodGet, "/api/avatar/blob", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after removal, got %d", rec.Code)
	}
}

func TestSelection(t *testing.T) {
	e, _ := newTestServer(t)

	selection := decode[selectionRequest](t, doJSON(t, e, http.MethodGet, "/api/selection", nil))
	if len(selection.ShowcaseIDs) != 2 {
		t.Fatalf("expected both showcases selected, got %v", selection.ShowcaseIDs)
	}

	rec := doJSON(t, e, http.MethodPut, "/api/selection", selectionRequest{ShowcaseIDs: []string{"s-city", "s-missing"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if selection := decode[selectionRequest](t, rec); len(selection.ShowcaseIDs) != 1 || selection.ShowcaseIDs[0] != "s-city" {
		t.Errorf("unexpected selection %v", selection.ShowcaseIDs)
	}

	visible := decode[[]core.ShowcaseView](t, doJSON(t, e, http.MethodGet, "/api/showcases?visible=true", nil))
	if len(visible) != 1 || visible[0].ID != "s-city" {
		t.Errorf("expected only s-city visible, got %+v", visible)
	}
}

func TestLastShowcase(t *testing.T) {
	e, _ := newTestServer(t)

	if rec := doJSON(t, e, http.MethodPut, "/api/preferences/last-showcase", lastShowcaseRequest{ShowcaseID: "s-city"}); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	last := decode[lastShowcaseRequest](t, doJSON(t, e, http.MethodGet, "/api/preferences/last-showcase", nil))
	if last.ShowcaseID != "s-city" {
		t.Errorf("expected s-city, got %q", last.ShowcaseID)
	}
	if rec := doJSON(t, e, http.MethodPut, "/api/preferences/last-showcase", lastShowcaseRequest{ShowcaseID: "s-missing"}); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestAssets(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodGet, "/assets/images/lake.svg", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<svg") {
		t.Error("expected SVG content")
	}
}

func TestEvents_StreamsUpdates(t *testing.T) {
	e, coreService := newTestServer(t)
	server := httptest.NewServer(e)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/events"
	connection, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer func() {
		_ = connection.Close()
	}()
	_ = connection.SetReadDeadline(time.Now().Add(5 * time.Second))

	// every channel sends its current value first
	seen := make(map[string]bool)
	for len(seen) < 5 {
		var event Event
		if err := connection.ReadJSON(&event); err != nil {
			t.Fatalf("ReadJSON error: %v (seen %v)", err, seen)
		}
		seen[event.Type] = true
	}
	for _, eventType := range []string{EventShowcases, EventFeatured, EventAvatar, EventAvatarError, EventSelection} {
		if !seen[eventType] {
			t.Errorf("expected initial %s event", eventType)
		}
	}

	if _, err := coreService.CreateShowcase(context.Background(), "Live"); err != nil {
		t.Fatalf("CreateShowcase error: %v", err)
	}
	for {
		var event struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := connection.ReadJSON(&event); err != nil {
			t.Fatalf("ReadJSON error while waiting for update: %v", err)
		}
		if event.Type != EventShowcases {
			continue
		}
		var showcases []core.ShowcaseView
		if err := json.Unmarshal(event.Payload, &showcases); err != nil {
			t.Fatalf("failed to decode showcases payload: %v", err)
		}
		if len(showcases) == 3 {
			return
		}
	}
}

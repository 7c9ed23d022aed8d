package httpapi

import (
	"bytes"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sieffosman/hotel-dashboard/internal/config"
	"github.com/sieffosman/hotel-dashboard/internal/domain"
	"github.com/sieffosman/hotel-dashboard/internal/roomapitest"
	"github.com/sieffosman/hotel-dashboard/internal/roomclient"
	"github.com/sieffosman/hotel-dashboard/internal/service"
)

type fixture struct {
	api     *roomapitest.Server
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	api := roomapitest.New(t)
	cfg := config.Default().API
	cfg.BaseURL = api.URL
	cfg.MediaBaseURL = api.URL
	cfg.RetryCount = 0

	reg := prometheus.NewRegistry()
	client := roomclient.New(cfg, zap.NewNop(), roomclient.NewMetrics(reg))
	svc := service.NewRoomService(client, zap.NewNop())
	h, err := NewRouter(svc, reg, zap.NewNop())
	require.NoError(t, err)
	return &fixture{api: api, handler: h}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (f *fixture) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(req)
}

func (f *fixture) seed() domain.Room {
	return f.api.Seed(domain.Room{Name: "Deluxe Sea View", Description: "Top floor", Capacity: 3, FacilitiesCount: 2})[0]
}

func TestRouter_Redirects(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/rooms", rec.Header().Get("Location"))

	rec = f.get("/no/such/page")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/rooms", rec.Header().Get("Location"))
}

func TestRouter_Health(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRouter_RequestIDIsEchoed(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := f.do(req)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
}

func TestListPage_NewestFirst(t *testing.T) {
	f := newFixture(t)
	f.api.Seed(
		domain.Room{Name: "Garden Room", Description: "Ground floor", Capacity: 2},
		domain.Room{Name: "Penthouse", Description: "Roof", Capacity: 4},
	)

	rec := f.get("/rooms")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Less(t, strings.Index(body, "Penthouse"), strings.Index(body, "Garden Room"))
	assert.Contains(t, body, `href="/rooms/2"`)
}

func TestListPage_EmptyAndPlaceholders(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/rooms")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No rooms available")

	f.api.SetListPayload(`[{"id":1,"name":"Only"},42]`)
	rec = f.get("/rooms")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid room data at index 1")
}

func TestListPage_FailureOffersRetry(t *testing.T) {
	f := newFixture(t)
	f.api.Fail(roomapitest.RouteList, http.StatusInternalServerError)

	rec := f.get("/rooms")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Retry")
}

func TestListPage_WarningFromRedirect(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/rooms?warning=image_not_finalized")
	assert.Contains(t, rec.Body.String(), "its image could not be finalized")
}

func TestCreate_PostsFacilityCountAndRedirects(t *testing.T) {
	f := newFixture(t)

	rec := f.postForm("/rooms/new", url.Values{
		"name":        {"Suite 12"},
		"description": {"Ocean view"},
		"capacity":    {"2"},
		"facility":    {"Wifi", "", "Balcony"},
		"action":      {"create"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/rooms", rec.Header().Get("Location"))

	req, ok := f.api.LastRequest(http.MethodPost, "/rooms")
	require.True(t, ok)
	assert.EqualValues(t, 2, req.JSON()["facilities_count"])
}

func TestCreate_ValidationIsInline(t *testing.T) {
	f := newFixture(t)

	rec := f.postForm("/rooms/new", url.Values{
		"name":     {""},
		"capacity": {"2"},
		"action":   {"create"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Title and description are required")
	assert.Empty(t, f.api.Requests(http.MethodPost, "/rooms"))
}

func TestCreate_AddFacilityRow(t *testing.T) {
	f := newFixture(t)

	rec := f.postForm("/rooms/new", url.Values{
		"name":     {"Suite 12"},
		"capacity": {"2"},
		"facility": {"Wifi"},
		"action":   {"add_facility"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, strings.Count(rec.Body.String(), `name="facility"`))
}

func TestCreate_UploadImageKeepsTempReference(t *testing.T) {
	f := newFixture(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("name", "Suite 12"))
	require.NoError(t, mw.WriteField("capacity", "2"))
	require.NoError(t, mw.WriteField("action", "upload_image"))
	fw, err := mw.CreateFormFile("image", "view.jpg")
	require.NoError(t, err)
	_, err = fw.Write([]byte("jpeg"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/rooms/new", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), roomapitest.TempPrefix)
	assert.Len(t, f.api.TempImages(), 1)
	assert.Empty(t, f.api.Requests(http.MethodPost, "/rooms"))
}

func TestDetailPage_NotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/rooms/7")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Room not found")
	assert.NotContains(t, rec.Body.String(), "<form")
}

func TestDetailPage_ConfirmDelete(t *testing.T) {
	f := newFixture(t)
	room := f.seed()

	rec := f.get("/rooms/1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), room.Name)
	assert.NotContains(t, rec.Body.String(), "Are you sure?")

	rec = f.get("/rooms/1?confirm=delete")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Are you sure?")
}

func TestForms_SubmitOnlyOnce(t *testing.T) {
	f := newFixture(t)
	f.seed()
	const guard = `onsubmit="if (this.dataset.busy) return false; this.dataset.busy = 1"`

	rec := f.get("/rooms/new")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), guard)

	rec = f.get("/rooms/1?confirm=delete")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, strings.Count(rec.Body.String(), guard))
}

func TestUpdate_SavesAndRedirects(t *testing.T) {
	f := newFixture(t)
	room := f.seed()

	rec := f.postForm("/rooms/1", url.Values{
		"name":        {"Deluxe Garden View"},
		"description": {room.Description},
		"capacity":    {"3"},
		"action":      {"save"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/rooms", rec.Header().Get("Location"))

	req, ok := f.api.LastRequest(http.MethodPatch, "/rooms/1")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"name": "Deluxe Garden View"}, req.JSON())
	assert.Equal(t, 1, f.api.PDFCalls(1))
}

func TestUpdate_PDFFailureWarnsAfterRedirect(t *testing.T) {
	f := newFixture(t)
	f.seed()
	f.api.Fail(roomapitest.RoutePDF, http.StatusInternalServerError)

	rec := f.postForm("/rooms/1", url.Values{
		"name":        {"Renamed"},
		"description": {"Top floor"},
		"capacity":    {"3"},
		"action":      {"save"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/rooms?warning=pdf_not_regenerated", rec.Header().Get("Location"))
}

func TestDelete_RemovesRoom(t *testing.T) {
	f := newFixture(t)
	f.seed()

	rec := f.do(httptest.NewRequest(http.MethodPost, "/rooms/1/delete", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/rooms", rec.Header().Get("Location"))
	_, ok := f.api.Room(1)
	assert.False(t, ok)

	rec = f.do(httptest.NewRequest(http.MethodPost, "/rooms/1/delete", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDelete_FailureShowsMessage(t *testing.T) {
	f := newFixture(t)
	f.seed()
	f.api.Fail(roomapitest.RouteDelete, http.StatusInternalServerError)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/rooms/1/delete", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to delete room")
}

func TestPDF_Download(t *testing.T) {
	f := newFixture(t)
	f.seed()

	rec := f.get("/rooms/1/pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=room_1_Deluxe_Sea_View.pdf", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, roomapitest.PDFBody, rec.Body.Bytes())
}

func TestPDF_DownloadNonASCIIName(t *testing.T) {
	f := newFixture(t)
	f.api.Seed(domain.Room{Name: "Hôtel Café", Description: "Desc", Capacity: 2})

	rec := f.get("/rooms/1/pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	header := rec.Header().Get("Content-Disposition")
	assert.Contains(t, header, "filename*=utf-8''")
	assert.NotContains(t, header, "Hôtel")

	disposition, params, err := mime.ParseMediaType(header)
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, "room_1_Hôtel_Café.pdf", params["filename"])
}

func TestPDF_DownloadFailure(t *testing.T) {
	f := newFixture(t)
	f.seed()
	f.api.Fail(roomapitest.RoutePDF, http.StatusInternalServerError)

	rec := f.get("/rooms/1/pdf")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Could not download PDF")
}

func TestExport_Workbook(t *testing.T) {
	f := newFixture(t)
	f.seed()

	rec := f.get("/rooms/export.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "rooms_")
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestMetrics_ExposeClientCounters(t *testing.T) {
	f := newFixture(t)
	f.get("/rooms")

	rec := f.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hotel_dashboard_room_api_requests_total")
}

func TestRecovery_AnswersInternalError(t *testing.T) {
	h := recovery(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

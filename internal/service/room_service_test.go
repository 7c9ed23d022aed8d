package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/sieffosman/hotel-dashboard/internal/config"
	"github.com/sieffosman/hotel-dashboard/internal/domain"
	"github.com/sieffosman/hotel-dashboard/internal/roomapitest"
	"github.com/sieffosman/hotel-dashboard/internal/roomclient"
)

// fakeAPI records the order of calls and lets each step fail.
type fakeAPI struct {
	calls       []string
	createErr   error
	finalizeErr error
	updateErr   error
	pdfErr      error
	list        *domain.RoomList
}

func (f *fakeAPI) ListRooms(ctx context.Context) (*domain.RoomList, error) {
	f.calls = append(f.calls, "list")
	return f.list, nil
}

func (f *fakeAPI) GetRoom(ctx context.Context, id int) (*domain.Room, error) {
	f.calls = append(f.calls, "get")
	return &domain.Room{ID: id}, nil
}

func (f *fakeAPI) CreateRoom(ctx context.Context, draft domain.RoomDraft) (*domain.Room, error) {
	f.calls = append(f.calls, "create")
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &domain.Room{ID: 41, Name: draft.Name, ImageURL: draft.ImageURL}, nil
}

func (f *fakeAPI) UpdateRoom(ctx context.Context, id int, patch domain.RoomFields) (*domain.Room, error) {
	f.calls = append(f.calls, "update")
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	r := patch.Apply(domain.Room{ID: id})
	return &r, nil
}

func (f *fakeAPI) DeleteRoom(ctx context.Context, id int) error {
	f.calls = append(f.calls, "delete")
	return nil
}

func (f *fakeAPI) UploadTempImage(ctx context.Context, filename string, image io.Reader) (string, error) {
	f.calls = append(f.calls, "upload")
	return "/uploads/rooms/temp/" + filename, nil
}

func (f *fakeAPI) FinalizeImage(ctx context.Context, roomID int, tempImageURL string) error {
	f.calls = append(f.calls, "finalize")
	return f.finalizeErr
}

func (f *fakeAPI) RegeneratePDF(ctx context.Context, roomID int) error {
	f.calls = append(f.calls, "pdf")
	return f.pdfErr
}

func (f *fakeAPI) DownloadPDF(ctx context.Context, roomID int) ([]byte, error) {
	f.calls = append(f.calls, "download")
	return []byte("%PDF"), nil
}

func (f *fakeAPI) IsTempImage(imageURL string) bool {
	return domain.IsTempImage(imageURL, "/uploads/rooms/temp/")
}

func (f *fakeAPI) ResolveImageURL(imageURL string) string { return imageURL }

func validDraft() domain.RoomDraft {
	return domain.RoomDraft{Name: "Suite 12", Description: "Ocean view", Capacity: 2, Facilities: []string{"Wifi"}}
}

func TestCreate_WithoutImageSkipsFinalize(t *testing.T) {
	api := &fakeAPI{}
	svc := NewRoomService(api, zap.NewNop())

	out, err := svc.Create(context.Background(), validDraft())
	require.NoError(t, err)
	assert.Equal(t, StepNoImage, out.Step)
	assert.Equal(t, []string{"create"}, api.calls)
}

func TestCreate_FinalizesTempImageOnceAfterCreate(t *testing.T) {
	api := &fakeAPI{}
	svc := NewRoomService(api, zap.NewNop())
	d := validDraft()
	d.ImageURL = "/uploads/rooms/temp/a.png"

	out, err := svc.Create(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, StepImageFinalized, out.Step)
	assert.Equal(t, 41, out.Room.ID)
	assert.Equal(t, []string{"create", "finalize"}, api.calls)
}

func TestCreate_PermanentImageIsNotFinalized(t *testing.T) {
	api := &fakeAPI{}
	svc := NewRoomService(api, zap.NewNop())
	d := validDraft()
	d.ImageURL = "/uploads/rooms/permanent/3_a.png"

	out, err := svc.Create(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, StepNoImage, out.Step)
	assert.Equal(t, []string{"create"}, api.calls)
}

func TestCreate_FailureNeverFinalizes(t *testing.T) {
	api := &fakeAPI{createErr: &roomclient.TransportError{Op: "create_room", StatusCode: 500}}
	svc := NewRoomService(api, zap.NewNop())
	d := validDraft()
	d.ImageURL = "/uploads/rooms/temp/a.png"

	out, err := svc.Create(context.Background(), d)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, []string{"create"}, api.calls)
}

func TestCreate_FinalizeFailureLeavesImagePending(t *testing.T) {
	finalizeErr := errors.New("boom")
	api := &fakeAPI{finalizeErr: finalizeErr}
	svc := NewRoomService(api, zap.NewNop())
	d := validDraft()
	d.ImageURL = "/uploads/rooms/temp/a.png"

	out, err := svc.Create(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, StepImagePending, out.Step)
	assert.ErrorIs(t, out.FinalizeErr, finalizeErr)
	assert.Equal(t, "/uploads/rooms/temp/a.png", out.Room.ImageURL)
	// no retry, no rollback
	assert.Equal(t, []string{"create", "finalize"}, api.calls)
}

func TestSave_PDFFailureDoesNotFailSave(t *testing.T) {
	api := &fakeAPI{pdfErr: errors.New("renderer down")}
	svc := NewRoomService(api, zap.NewNop())

	out, err := svc.Save(context.Background(), 7, domain.RoomFields{Name: domain.StringPtr("X")})
	require.NoError(t, err)
	assert.Equal(t, "X", out.Room.Name)
	assert.Error(t, out.PDFErr)
	assert.Equal(t, []string{"update", "pdf"}, api.calls)
}

func TestSave_UpdateFailureSkipsPDF(t *testing.T) {
	api := &fakeAPI{updateErr: &roomclient.NotFoundError{Op: "update_room", ID: 7}}
	svc := NewRoomService(api, zap.NewNop())

	_, err := svc.Save(context.Background(), 7, domain.RoomFields{Name: domain.StringPtr("X")})
	require.Error(t, err)
	assert.True(t, roomclient.IsNotFound(err))
	assert.Equal(t, []string{"update"}, api.calls)
}

func TestList_NewestFirst(t *testing.T) {
	api := &fakeAPI{list: &domain.RoomList{Rooms: []domain.Room{{ID: 1}, {ID: 2}, {ID: 3}}}}
	svc := NewRoomService(api, zap.NewNop())

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	ids := []int{}
	for _, r := range list.Rooms {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int{3, 2, 1}, ids)
	// the client's slice is left untouched
	assert.Equal(t, 1, api.list.Rooms[0].ID)
}

func TestDownloadPDF_FileName(t *testing.T) {
	svc := NewRoomService(&fakeAPI{}, zap.NewNop())

	name, data, err := svc.DownloadPDF(context.Background(), domain.Room{ID: 7, Name: "Deluxe  Sea View"})
	require.NoError(t, err)
	assert.Equal(t, "room_7_Deluxe_Sea_View.pdf", name)
	assert.Equal(t, []byte("%PDF"), data)
}

func newClientService(t *testing.T) (*RoomService, *roomapitest.Server) {
	t.Helper()
	api := roomapitest.New(t)
	cfg := config.Default().API
	cfg.BaseURL = api.URL
	cfg.RetryCount = 0
	client := roomclient.New(cfg, zap.NewNop(), nil)
	return NewRoomService(client, zap.NewNop()), api
}

func TestCreate_EndToEndWithUploadedImage(t *testing.T) {
	svc, api := newClientService(t)
	ctx := context.Background()

	tempURL, err := svc.API().UploadTempImage(ctx, "view.jpg", strings.NewReader("jpeg"))
	require.NoError(t, err)

	d := validDraft()
	d.ImageURL = tempURL
	out, err := svc.Create(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, StepImageFinalized, out.Step)

	stored, ok := api.Room(out.Room.ID)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(stored.ImageURL, roomapitest.PermanentPrefix))
}

func TestCreate_EndToEndFinalizeFailure(t *testing.T) {
	svc, api := newClientService(t)
	ctx := context.Background()

	tempURL, err := svc.API().UploadTempImage(ctx, "view.jpg", strings.NewReader("jpeg"))
	require.NoError(t, err)
	api.Fail(roomapitest.RouteFinalize, http.StatusInternalServerError)

	d := validDraft()
	d.ImageURL = tempURL
	out, err := svc.Create(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, StepImagePending, out.Step)
	assert.True(t, roomclient.IsTransport(out.FinalizeErr))

	stored, ok := api.Room(out.Room.ID)
	require.True(t, ok)
	assert.Equal(t, tempURL, stored.ImageURL)
	assert.Len(t, api.Requests(http.MethodPost, "/rooms/1/finalize-image"), 1)
}

func TestExportRooms_Workbook(t *testing.T) {
	svc, api := newClientService(t)
	api.Seed(
		domain.Room{Name: "First", Description: "Oldest", Capacity: 2, FacilitiesCount: 1},
		domain.Room{Name: "Second", Description: "Newest", Capacity: 4, FacilitiesCount: 3, ImageURL: "/uploads/rooms/permanent/2_b.png"},
	)

	data, err := svc.ExportRooms(context.Background())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(roomExportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, RoomExportHeader, rows[0])
	assert.Equal(t, "Second", rows[1][1])
	assert.Equal(t, api.URL+"/uploads/rooms/permanent/2_b.png", rows[1][5])
	assert.Equal(t, "First", rows[2][1])
}

func TestExportFileName(t *testing.T) {
	ts := time.Date(2025, 3, 17, 9, 5, 0, 0, time.UTC)
	assert.Equal(t, "rooms_20250317_090500.xlsx", ExportFileName(ts))
}

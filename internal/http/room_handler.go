package httpapi

import (
	"context"
	"errors"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sieffosman/hotel-dashboard/internal/domain"
	"github.com/sieffosman/hotel-dashboard/internal/service"
	"github.com/sieffosman/hotel-dashboard/internal/views"
)

const (
	maxUploadSize = 10 << 20 // 10MB

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	pdfContentType  = "application/pdf"
)

// Warnings carried across the post/redirect/get hop.
const (
	warningImagePending = "image_not_finalized"
	warningPDFStale     = "pdf_not_regenerated"
)

var warningMessages = map[string]string{
	warningImagePending: views.MsgImagePending,
	warningPDFStale:     views.MsgPDFNotRegenerated,
}

// RoomHandler serves the room pages. Every request builds a fresh view,
// loads it, applies the posted action and renders the snapshot.
type RoomHandler struct {
	svc       *service.RoomService
	logger    *zap.Logger
	templates map[string]*template.Template
	now       func() time.Time
}

// NewRoomHandler parses the embedded templates.
func NewRoomHandler(svc *service.RoomService, logger *zap.Logger) (*RoomHandler, error) {
	h := &RoomHandler{svc: svc, logger: logger, now: time.Now}
	templates, err := parseTemplates(template.FuncMap{
		"imageSrc": svc.API().ResolveImageURL,
		"roomPath": views.RouteRoom,
	})
	if err != nil {
		return nil, err
	}
	h.templates = templates
	return h, nil
}

// List GET /rooms
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	v := views.NewListView(h.svc, h.logger)
	defer v.Close()
	if err := v.Load(r.Context()); err != nil {
		h.logger.Error("List view load rejected", zap.Error(err))
	}
	s := v.Snapshot()

	p := page{Title: "Rooms", List: &s, Warning: warningMessages[r.URL.Query().Get("warning")]}
	status := http.StatusOK
	switch s.Phase {
	case views.PhaseEmpty:
		p.Empty = true
	case views.PhaseMalformed:
		p.Message = s.Message
	case views.PhaseLoadFailed:
		p.Message = s.Message
		status = http.StatusBadGateway
	}
	h.render(w, status, pageList, p)
}

// Export GET /rooms/export.xlsx
func (h *RoomHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.ExportRooms(r.Context())
	if err != nil {
		h.logger.Error("Room export failed", zap.Error(err))
		h.render(w, http.StatusBadGateway, pageList, page{Title: "Rooms", Message: "Failed to export rooms", List: &views.ListSnapshot{Phase: views.PhaseLoadFailed}})
		return
	}
	writeAttachment(w, xlsxContentType, service.ExportFileName(h.now()), data)
}

// NewForm GET /rooms/new
func (h *RoomHandler) NewForm(w http.ResponseWriter, _ *http.Request) {
	v := views.NewCreateView(h.svc, h.logger)
	defer v.Close()
	s := v.Snapshot()
	h.render(w, http.StatusOK, pageCreate, page{Title: "Create a room", Create: &s})
}

// Create POST /rooms/new
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	v := views.NewCreateView(h.svc, h.logger)
	defer v.Close()

	err := v.Edit(draftFromForm(r))
	if err == nil {
		switch r.PostFormValue("action") {
		case "add_facility":
			err = v.AddFacility()
		case "upload_image":
			err = h.upload(r, v.UploadImage)
		default:
			err = v.Submit(r.Context())
		}
	}
	if err != nil {
		h.logger.Error("Create action rejected", zap.Error(err))
	}

	s := v.Snapshot()
	if s.Phase == views.PhaseDone {
		h.logger.Info("Room created", zap.Int("room_id", s.Room.ID), zap.Stringer("step", s.Step))
		redirectDone(w, r, s.Next, s.Step == service.StepImagePending, warningImagePending)
		return
	}
	status := http.StatusOK
	if s.Message != "" {
		status = http.StatusUnprocessableEntity
	}
	h.render(w, status, pageCreate, page{Title: "Create a room", Create: &s, Message: s.Message})
}

// Detail GET /rooms/{id}; ?confirm=delete opens the confirmation.
func (h *RoomHandler) Detail(w http.ResponseWriter, r *http.Request) {
	v, ok := h.loadDetail(w, r)
	if !ok {
		return
	}
	defer v.Close()

	confirm := r.URL.Query().Get("confirm") == "delete"
	if confirm {
		if err := v.RequestDelete(); err != nil {
			h.logger.Error("Delete confirmation rejected", zap.Error(err))
		}
	}
	h.renderDetail(w, v.Snapshot(), confirm)
}

// Update POST /rooms/{id}
func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	v, ok := h.loadDetail(w, r)
	if !ok {
		return
	}
	defer v.Close()

	err := v.Edit(draftFromForm(r))
	if err == nil {
		switch r.PostFormValue("action") {
		case "add_facility":
			err = v.AddFacility()
		case "upload_image":
			err = h.upload(r, v.ChangeImage)
		default:
			err = v.Save(r.Context())
		}
	}
	if err != nil {
		h.logger.Error("Update action rejected", zap.Error(err))
	}

	s := v.Snapshot()
	if s.Phase == views.PhaseDone {
		redirectDone(w, r, s.Next, s.Warning != "", warningPDFStale)
		return
	}
	h.renderDetail(w, s, false)
}

// Delete POST /rooms/{id}/delete
func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	v, ok := h.loadDetail(w, r)
	if !ok {
		return
	}
	defer v.Close()

	err := v.RequestDelete()
	if err == nil {
		err = v.ConfirmDelete(r.Context())
	}
	if err != nil {
		h.logger.Error("Delete rejected", zap.Error(err))
	}

	s := v.Snapshot()
	if s.Phase == views.PhaseDone {
		http.Redirect(w, r, s.Next, http.StatusSeeOther)
		return
	}
	h.renderDetail(w, s, false)
}

// PDF GET /rooms/{id}/pdf
func (h *RoomHandler) PDF(w http.ResponseWriter, r *http.Request) {
	v, ok := h.loadDetail(w, r)
	if !ok {
		return
	}
	defer v.Close()

	name, data, err := v.DownloadPDF(r.Context())
	if err != nil {
		h.renderDetail(w, v.Snapshot(), false)
		return
	}
	writeAttachment(w, pdfContentType, name, data)
}

// loadDetail loads the detail view of the routed room. When the room
// cannot be shown the page is rendered and ok is false.
func (h *RoomHandler) loadDetail(w http.ResponseWriter, r *http.Request) (*views.DetailView, bool) {
	v := views.NewDetailView(h.svc, h.logger, roomID(r))
	if err := v.Load(r.Context()); err != nil {
		h.logger.Error("Detail view load rejected", zap.Error(err))
	}
	s := v.Snapshot()
	if !s.ShowForm() {
		v.Close()
		h.renderDetail(w, s, false)
		return nil, false
	}
	return v, true
}

func (h *RoomHandler) renderDetail(w http.ResponseWriter, s views.DetailSnapshot, confirm bool) {
	title := "Room"
	if s.Room != nil {
		title = s.Room.Name
	}
	status := http.StatusOK
	switch {
	case s.Phase == views.PhaseNotFound:
		status = http.StatusNotFound
	case s.Phase == views.PhaseLoadFailed:
		status = http.StatusBadGateway
	case s.Message != "":
		status = http.StatusUnprocessableEntity
	}
	h.render(w, status, pageDetail, page{
		Title:   title,
		Message: s.Message,
		Warning: s.Warning,
		Detail:  &s,
		Confirm: confirm && s.Phase == views.PhaseConfirmingDelete,
	})
}

// upload forwards the posted image file to action. A post without a file
// leaves the form untouched.
func (h *RoomHandler) upload(r *http.Request, action func(ctx context.Context, filename string, image io.Reader) error) error {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()
	return action(r.Context(), header.Filename, file)
}

func redirectDone(w http.ResponseWriter, r *http.Request, next string, warn bool, warning string) {
	if warn {
		next += "?" + url.Values{"warning": {warning}}.Encode()
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// parseForm accepts both urlencoded and multipart posts.
func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(maxUploadSize)
	if errors.Is(err, http.ErrNotMultipart) {
		return nil
	}
	return err
}

// draftFromForm reads the posted form. Facility rows are nil when the
// form carried none, which keeps the stored count untouched on save.
func draftFromForm(r *http.Request) domain.RoomDraft {
	return domain.RoomDraft{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		Capacity:    parseInt(strings.TrimSpace(r.PostFormValue("capacity")), 0),
		ImageURL:    r.PostFormValue("image_url"),
		Facilities:  r.PostForm["facility"],
	}
}

package views

import (
	"context"
	"io"
	"slices"

	"go.uber.org/zap"

	"github.com/sieffosman/hotel-dashboard/internal/domain"
	"github.com/sieffosman/hotel-dashboard/internal/roomclient"
	"github.com/sieffosman/hotel-dashboard/internal/service"
)

// DetailSnapshot is a copy of the detail view state.
type DetailSnapshot struct {
	Phase Phase
	ID    int
	Room  *domain.Room
	Draft domain.RoomDraft
	// Message is the error shown to the user, Warning a non-fatal notice.
	Message string
	Warning string
	Err     error
	// Next is the route to navigate to once the view is Done.
	Next string
}

// ShowForm reports whether the edit form is rendered.
func (s DetailSnapshot) ShowForm() bool {
	switch s.Phase {
	case PhaseLoaded, PhaseEditing, PhaseSaving, PhaseConfirmingDelete, PhaseDeleting:
		return true
	}
	return false
}

// CanRetry reports whether loading failed in a way worth retrying.
func (s DetailSnapshot) CanRetry() bool { return s.Phase == PhaseLoadFailed }

// DetailView shows one room and lets the user edit or delete it.
type DetailView struct {
	svc    *service.RoomService
	logger *zap.Logger
	id     int

	guard   inflight
	phase   Phase
	back    Phase
	room    *domain.Room
	draft   domain.RoomDraft
	message string
	warning string
	err     error
	next    string
}

// NewDetailView creates a detail view for room id in the Loading phase.
func NewDetailView(svc *service.RoomService, logger *zap.Logger, id int) *DetailView {
	return &DetailView{
		svc:    svc,
		logger: logger.With(zap.Int("room_id", id)),
		id:     id,
		phase:  PhaseLoading,
	}
}

// Load fetches the room and seeds the edit form from it.
func (v *DetailView) Load(ctx context.Context) error {
	if err := v.guard.begin(func() error {
		v.phase = PhaseLoading
		v.clearNotice()
		return nil
	}); err != nil {
		return err
	}

	room, err := v.svc.API().GetRoom(ctx, v.id)

	v.guard.finish(func() {
		switch {
		case roomclient.IsNotFound(err):
			v.phase = PhaseNotFound
			v.room = nil
			v.message = MsgRoomNotFound
			v.err = err
		case err != nil:
			v.logger.Warn("Failed to load room", zap.Error(err))
			v.phase = PhaseLoadFailed
			v.message = err.Error()
			v.err = err
		default:
			v.phase = PhaseLoaded
			v.room = room
			v.draft = domain.DraftFromRoom(*room)
		}
	})
	return nil
}

// Edit replaces the form contents. Nothing is sent.
func (v *DetailView) Edit(draft domain.RoomDraft) error {
	return v.guard.update(func() error {
		if !v.editable() {
			return ErrInvalidTransition
		}
		v.draft = draft
		v.phase = PhaseEditing
		return nil
	})
}

// AddFacility appends a blank facility row to the form.
func (v *DetailView) AddFacility() error {
	return v.guard.update(func() error {
		if !v.editable() {
			return ErrInvalidTransition
		}
		v.draft.AddFacility()
		v.phase = PhaseEditing
		return nil
	})
}

// ChangeImage uploads a replacement image to the temporary namespace and
// points the form at it. The room keeps its old image until saved.
func (v *DetailView) ChangeImage(ctx context.Context, filename string, image io.Reader) error {
	if err := v.guard.begin(func() error {
		if !v.editable() {
			return ErrInvalidTransition
		}
		v.clearNotice()
		return nil
	}); err != nil {
		return err
	}

	url, err := v.svc.API().UploadTempImage(ctx, filename, image)

	v.guard.finish(func() {
		v.phase = PhaseEditing
		if err != nil {
			v.logger.Warn("Image upload failed", zap.Error(err))
			v.message = MsgUploadFailed
			v.err = err
			return
		}
		v.draft.ImageURL = url
	})
	return nil
}

// Save validates the form, sends the changed fields and regenerates the
// room PDF. On success the view is Done and navigates to the list.
func (v *DetailView) Save(ctx context.Context) error {
	var patch domain.RoomFields
	err := v.guard.begin(func() error {
		if !v.editable() {
			return ErrInvalidTransition
		}
		v.clearNotice()
		if err := v.draft.Validate(); err != nil {
			v.phase = PhaseEditing
			v.message = validationMessage(err)
			v.err = err
			return errSettled
		}
		patch = v.draft.Changes(*v.room)
		v.phase = PhaseSaving
		return nil
	})
	if err != nil {
		return settled(err)
	}

	out, err := v.svc.Save(ctx, v.id, patch)

	v.guard.finish(func() {
		if err != nil {
			v.logger.Warn("Failed to save room", zap.Error(err))
			v.phase = PhaseEditing
			v.message = MsgSaveFailed
			if roomclient.IsNotFound(err) {
				v.message = MsgRoomGone
			}
			v.err = err
			return
		}
		v.room = out.Room
		if out.PDFErr != nil {
			v.warning = MsgPDFNotRegenerated
		}
		v.phase = PhaseDone
		v.next = RouteList
	})
	return nil
}

// RequestDelete opens the delete confirmation.
func (v *DetailView) RequestDelete() error {
	return v.guard.update(func() error {
		if !v.editable() {
			return ErrInvalidTransition
		}
		v.back = v.phase
		v.phase = PhaseConfirmingDelete
		return nil
	})
}

// CancelDelete closes the confirmation and returns to the form.
func (v *DetailView) CancelDelete() error {
	return v.guard.update(func() error {
		if v.phase != PhaseConfirmingDelete {
			return ErrInvalidTransition
		}
		v.phase = v.back
		return nil
	})
}

// ConfirmDelete deletes the room. On success the view is Done and
// navigates to the list; on failure it returns to the form with a message.
func (v *DetailView) ConfirmDelete(ctx context.Context) error {
	if err := v.guard.begin(func() error {
		if v.phase != PhaseConfirmingDelete {
			return ErrInvalidTransition
		}
		v.clearNotice()
		v.phase = PhaseDeleting
		return nil
	}); err != nil {
		return err
	}

	err := v.svc.API().DeleteRoom(ctx, v.id)

	v.guard.finish(func() {
		if err != nil {
			v.logger.Warn("Failed to delete room", zap.Error(err))
			v.phase = v.back
			v.message = MsgDeleteFailed
			if roomclient.IsNotFound(err) {
				v.message = MsgRoomGone
			}
			v.err = err
			return
		}
		v.logger.Info("Room deleted")
		v.phase = PhaseDone
		v.next = RouteList
	})
	return nil
}

// DownloadPDF regenerates the room summary and returns its save-as file
// name and bytes. A failure is also recorded as the view message.
func (v *DetailView) DownloadPDF(ctx context.Context) (string, []byte, error) {
	var room domain.Room
	if err := v.guard.begin(func() error {
		if v.room == nil || !v.editable() {
			return ErrInvalidTransition
		}
		v.clearNotice()
		room = *v.room
		return nil
	}); err != nil {
		return "", nil, err
	}

	name, data, err := v.svc.DownloadPDF(ctx, room)

	v.guard.finish(func() {
		if err != nil {
			v.logger.Warn("PDF download failed", zap.Error(err))
			v.message = MsgDownloadFailed
			v.err = err
		}
	})
	if err != nil {
		return "", nil, err
	}
	return name, data, nil
}

// Close unmounts the view. Pending results are dropped.
func (v *DetailView) Close() { v.guard.close() }

// Snapshot returns the current state.
func (v *DetailView) Snapshot() DetailSnapshot {
	var s DetailSnapshot
	v.guard.read(func() {
		s = DetailSnapshot{
			Phase:   v.phase,
			ID:      v.id,
			Draft:   v.draft,
			Message: v.message,
			Warning: v.warning,
			Err:     v.err,
			Next:    v.next,
		}
		if v.room != nil {
			r := *v.room
			s.Room = &r
		}
		s.Draft.Facilities = slices.Clone(v.draft.Facilities)
	})
	return s
}

func (v *DetailView) editable() bool {
	return v.phase == PhaseLoaded || v.phase == PhaseEditing
}

func (v *DetailView) clearNotice() {
	v.message = ""
	v.warning = ""
	v.err = nil
}

package views

import (
	"context"
	"io"
	"slices"

	"go.uber.org/zap"

	"github.com/sieffosman/hotel-dashboard/internal/domain"
	"github.com/sieffosman/hotel-dashboard/internal/service"
)

// CreateSnapshot is a copy of the create view state.
type CreateSnapshot struct {
	Phase   Phase
	Draft   domain.RoomDraft
	Message string
	Warning string
	Err     error
	// Room is the created room once the view is Done.
	Room *domain.Room
	Step service.CreateStep
	Next string
}

// CreateView is the new-room form.
type CreateView struct {
	svc    *service.RoomService
	logger *zap.Logger

	guard   inflight
	phase   Phase
	draft   domain.RoomDraft
	message string
	warning string
	err     error
	room    *domain.Room
	step    service.CreateStep
	next    string
}

// NewCreateView creates a create view holding an empty draft.
func NewCreateView(svc *service.RoomService, logger *zap.Logger) *CreateView {
	return &CreateView{
		svc:    svc,
		logger: logger,
		phase:  PhaseEditing,
		draft:  domain.NewRoomDraft(),
	}
}

// Edit replaces the form contents. Nothing is sent.
func (v *CreateView) Edit(draft domain.RoomDraft) error {
	return v.guard.update(func() error {
		if v.phase != PhaseEditing {
			return ErrInvalidTransition
		}
		v.draft = draft
		return nil
	})
}

// AddFacility appends a blank facility row.
func (v *CreateView) AddFacility() error {
	return v.guard.update(func() error {
		if v.phase != PhaseEditing {
			return ErrInvalidTransition
		}
		v.draft.AddFacility()
		return nil
	})
}

// UploadImage uploads the room image to the temporary namespace. The
// returned reference is only finalized after the room is created.
func (v *CreateView) UploadImage(ctx context.Context, filename string, image io.Reader) error {
	if err := v.guard.begin(func() error {
		if v.phase != PhaseEditing {
			return ErrInvalidTransition
		}
		v.clearNotice()
		return nil
	}); err != nil {
		return err
	}

	url, err := v.svc.API().UploadTempImage(ctx, filename, image)

	v.guard.finish(func() {
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

// Submit validates the draft and creates the room. Validation failures
// stay inline and nothing is sent. On success the view is Done and
// navigates to the list.
func (v *CreateView) Submit(ctx context.Context) error {
	var draft domain.RoomDraft
	err := v.guard.begin(func() error {
		if v.phase != PhaseEditing {
			return ErrInvalidTransition
		}
		v.clearNotice()
		if err := v.draft.Validate(); err != nil {
			v.message = validationMessage(err)
			v.err = err
			return errSettled
		}
		draft = v.draft
		draft.Facilities = slices.Clone(v.draft.Facilities)
		v.phase = PhaseSubmitting
		return nil
	})
	if err != nil {
		return settled(err)
	}

	out, err := v.svc.Create(ctx, draft)

	v.guard.finish(func() {
		if err != nil {
			v.logger.Warn("Failed to create room", zap.Error(err))
			v.phase = PhaseEditing
			v.message = MsgCreateFailed
			v.err = err
			return
		}
		v.room = out.Room
		v.step = out.Step
		if out.Step == service.StepImagePending {
			v.warning = MsgImagePending
		}
		v.phase = PhaseDone
		v.next = RouteList
	})
	return nil
}

// Close unmounts the view. Pending results are dropped.
func (v *CreateView) Close() { v.guard.close() }

// Snapshot returns the current state.
func (v *CreateView) Snapshot() CreateSnapshot {
	var s CreateSnapshot
	v.guard.read(func() {
		s = CreateSnapshot{
			Phase:   v.phase,
			Draft:   v.draft,
			Message: v.message,
			Warning: v.warning,
			Err:     v.err,
			Step:    v.step,
			Next:    v.next,
		}
		s.Draft.Facilities = slices.Clone(v.draft.Facilities)
		if v.room != nil {
			r := *v.room
			s.Room = &r
		}
	})
	return s
}

func (v *CreateView) clearNotice() {
	v.message = ""
	v.warning = ""
	v.err = nil
}

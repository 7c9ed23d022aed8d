// Package views holds the UI-agnostic view models of the dashboard: the
// room list, the room detail/edit page and the room create form. Each
// view is a small state machine owned by one caller; the HTML console and
// the CLI only render snapshots and forward user actions.
package views

import (
	"errors"
	"strconv"
	"sync"

	"github.com/sieffosman/hotel-dashboard/internal/domain"
)

// Routes the views navigate to.
const (
	RouteList = "/rooms"
	RouteNew  = "/rooms/new"
)

// RouteRoom is the detail route of a room.
func RouteRoom(id int) string { return RouteList + "/" + strconv.Itoa(id) }

// ErrBusy is returned when an action is attempted while another action of
// the same view is still in flight.
var ErrBusy = errors.New("views: action already in progress")

// ErrClosed is returned for actions on a view that was closed.
var ErrClosed = errors.New("views: view is closed")

// ErrInvalidTransition is returned when an action is not allowed in the
// current phase.
var ErrInvalidTransition = errors.New("views: action not allowed in current phase")

// Phase is the state of a view.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseLoaded
	PhaseEmpty
	PhaseMalformed
	PhaseLoadFailed
	PhaseNotFound
	PhaseEditing
	PhaseSaving
	PhaseSubmitting
	PhaseConfirmingDelete
	PhaseDeleting
	// PhaseDone means the view finished and navigated away.
	PhaseDone
)

var phaseNames = map[Phase]string{
	PhaseLoading:          "loading",
	PhaseLoaded:           "loaded",
	PhaseEmpty:            "empty",
	PhaseMalformed:        "malformed",
	PhaseLoadFailed:       "load_failed",
	PhaseNotFound:         "not_found",
	PhaseEditing:          "editing",
	PhaseSaving:           "saving",
	PhaseSubmitting:       "submitting",
	PhaseConfirmingDelete: "confirming_delete",
	PhaseDeleting:         "deleting",
	PhaseDone:             "done",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "phase(" + strconv.Itoa(int(p)) + ")"
}

// Messages shown to the user.
const (
	MsgRoomNotFound      = "Room not found"
	MsgRequiredFields    = "Title and description are required"
	MsgCreateFailed      = "Failed to create room"
	MsgSaveFailed        = "Failed to save room"
	MsgDeleteFailed      = "Failed to delete room"
	MsgUploadFailed      = "Failed to upload image"
	MsgDownloadFailed    = "Could not download PDF"
	MsgRoomGone          = "This room no longer exists"
	MsgNoRooms           = "No rooms available"
	MsgMalformedRooms    = "Rooms data is not in the expected format"
	MsgImagePending      = "Room created, but its image could not be finalized"
	MsgPDFNotRegenerated = "Room saved, but its PDF could not be regenerated"
)

// inflight serialises the actions of one view, guards its state and
// tracks whether the view is still mounted. The lock is never held across
// a network call.
type inflight struct {
	mu     sync.Mutex
	busy   bool
	closed bool
}

// errSettled stops an action whose outcome start already recorded.
var errSettled = errors.New("views: settled")

// begin starts an action and runs start under the lock. An error from
// start leaves the view idle; errSettled is reported to the caller as nil.
func (f *inflight) begin(start func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if f.busy {
		return ErrBusy
	}
	if start != nil {
		if err := start(); err != nil {
			return err
		}
	}
	f.busy = true
	return nil
}

// settled maps errSettled to nil.
func settled(err error) error {
	if errors.Is(err, errSettled) {
		return nil
	}
	return err
}

// validationMessage is the inline message of a failed draft check.
func validationMessage(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) && (verr.Has("name") || verr.Has("description")) {
		return MsgRequiredFields
	}
	return err.Error()
}

// finish ends the action and applies its result unless the view was
// closed meanwhile, in which case the result is dropped.
func (f *inflight) finish(apply func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if f.closed {
		return false
	}
	apply()
	return true
}

// update mutates state that needs no network call.
func (f *inflight) update(fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if f.busy {
		return ErrBusy
	}
	return fn()
}

func (f *inflight) read(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

func (f *inflight) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

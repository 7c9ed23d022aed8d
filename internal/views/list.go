package views

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/sieffosman/hotel-dashboard/internal/domain"
	"github.com/sieffosman/hotel-dashboard/internal/service"
)

// Row is one line of the room list. Invalid rows carry no room.
type Row struct {
	// Index is the position of the entry in the API payload.
	Index int
	Room  *domain.Room
}

// Invalid reports whether the entry was not a room object.
func (r Row) Invalid() bool { return r.Room == nil }

// Label is the placeholder text of an invalid row.
func (r Row) Label() string {
	if r.Room != nil {
		return r.Room.Name
	}
	return fmt.Sprintf("Invalid room data at index %d", r.Index)
}

// ListSnapshot is a copy of the list view state.
type ListSnapshot struct {
	Phase   Phase
	Rows    []Row
	Message string
	Err     error
}

// CanRetry reports whether the view offers a retry.
func (s ListSnapshot) CanRetry() bool {
	return s.Phase == PhaseLoadFailed || s.Phase == PhaseMalformed
}

// ListView shows all rooms, most recently created first.
type ListView struct {
	svc    *service.RoomService
	logger *zap.Logger

	guard   inflight
	phase   Phase
	rows    []Row
	message string
	err     error
}

// NewListView creates a list view in the Loading phase.
func NewListView(svc *service.RoomService, logger *zap.Logger) *ListView {
	return &ListView{svc: svc, logger: logger, phase: PhaseLoading}
}

// Load fetches the room list.
func (v *ListView) Load(ctx context.Context) error {
	if err := v.guard.begin(func() error {
		v.phase = PhaseLoading
		v.message = ""
		v.err = nil
		return nil
	}); err != nil {
		return err
	}

	list, err := v.svc.API().ListRooms(ctx)

	v.guard.finish(func() {
		if err != nil {
			v.logger.Warn("Failed to load rooms", zap.Error(err))
			v.phase = PhaseLoadFailed
			v.rows = nil
			v.message = err.Error()
			v.err = err
			return
		}
		v.rows = buildRows(list)
		switch {
		case list.Malformed:
			v.logger.Warn("Room list payload is not an array")
			v.phase = PhaseMalformed
			v.message = MsgMalformedRooms
		case len(v.rows) == 0:
			v.phase = PhaseEmpty
			v.message = MsgNoRooms
		default:
			v.phase = PhaseLoaded
		}
	})
	return nil
}

// Retry reloads the list after a failure.
func (v *ListView) Retry(ctx context.Context) error {
	return v.Load(ctx)
}

// Close unmounts the view. A pending load is dropped.
func (v *ListView) Close() { v.guard.close() }

// Snapshot returns the current state.
func (v *ListView) Snapshot() ListSnapshot {
	var s ListSnapshot
	v.guard.read(func() {
		s = ListSnapshot{
			Phase:   v.phase,
			Rows:    slices.Clone(v.rows),
			Message: v.message,
			Err:     v.err,
		}
	})
	return s
}

// buildRows merges valid rooms and invalid placeholders back into payload
// order, then reverses it.
func buildRows(list *domain.RoomList) []Row {
	total := list.Len()
	invalid := make(map[int]bool, len(list.Invalid))
	for _, i := range list.Invalid {
		invalid[i] = true
	}

	rows := make([]Row, 0, total)
	next := 0
	for i := 0; i < total; i++ {
		if invalid[i] || next >= len(list.Rooms) {
			rows = append(rows, Row{Index: i})
			continue
		}
		room := list.Rooms[next]
		next++
		rows = append(rows, Row{Index: i, Room: &room})
	}
	slices.Reverse(rows)
	return rows
}

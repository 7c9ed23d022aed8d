package domain

import (
	"strings"
)

// RoomDraft is what a create or edit form holds before it is submitted.
type RoomDraft struct {
	Name        string
	Description string
	Capacity    int
	ImageURL    string
	// Facilities are free-text rows; only their non-blank count is sent.
	Facilities []string
}

// NewRoomDraft returns an empty create form: default capacity and a
// single blank facility row.
func NewRoomDraft() RoomDraft {
	return RoomDraft{
		Capacity:   DefaultCapacity,
		Facilities: []string{""},
	}
}

// DraftFromRoom seeds an edit form from a loaded room.
// Facility text is not stored server-side, so Facilities starts nil.
func DraftFromRoom(r Room) RoomDraft {
	capacity := r.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return RoomDraft{
		Name:        r.Name,
		Description: r.Description,
		Capacity:    capacity,
		ImageURL:    r.ImageURL,
	}
}

// FacilitiesCount counts the facility rows that are not blank.
func (d RoomDraft) FacilitiesCount() int {
	return CountFacilities(d.Facilities)
}

// CountFacilities counts entries that are non-empty after trimming.
func CountFacilities(facilities []string) int {
	n := 0
	for _, f := range facilities {
		if strings.TrimSpace(f) != "" {
			n++
		}
	}
	return n
}

// AddFacility appends a blank facility row.
func (d *RoomDraft) AddFacility() {
	d.Facilities = append(d.Facilities, "")
}

// Validate checks the fields required before anything is sent.
func (d RoomDraft) Validate() error {
	var verr ValidationError
	if strings.TrimSpace(d.Name) == "" {
		verr.add("name", "title is required")
	}
	if strings.TrimSpace(d.Description) == "" {
		verr.add("description", "description is required")
	}
	if d.Capacity < 1 {
		verr.add("capacity", "capacity must be at least 1")
	}
	if verr.Empty() {
		return nil
	}
	return &verr
}

// Fields converts the draft to a fully populated request body.
// facilities_count is recomputed from the facility rows on every call.
func (d RoomDraft) Fields() RoomFields {
	f := RoomFields{
		Name:            StringPtr(d.Name),
		Description:     StringPtr(d.Description),
		Capacity:        IntPtr(d.Capacity),
		FacilitiesCount: IntPtr(d.FacilitiesCount()),
	}
	if d.ImageURL != "" {
		f.ImageURL = StringPtr(d.ImageURL)
	}
	return f
}

// Changes returns only the fields of d that differ from r. The facility
// count is included only when the facility rows were edited (non-nil),
// since the stored count cannot be reconstructed into rows.
func (d RoomDraft) Changes(r Room) RoomFields {
	var f RoomFields
	if d.Name != r.Name {
		f.Name = StringPtr(d.Name)
	}
	if d.Description != r.Description {
		f.Description = StringPtr(d.Description)
	}
	if d.Capacity != r.Capacity {
		f.Capacity = IntPtr(d.Capacity)
	}
	if d.ImageURL != r.ImageURL {
		f.ImageURL = StringPtr(d.ImageURL)
	}
	if d.Facilities != nil {
		if n := d.FacilitiesCount(); n != r.FacilitiesCount {
			f.FacilitiesCount = IntPtr(n)
		}
	}
	return f
}

package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultCapacity is the capacity a new draft starts with.
const DefaultCapacity = 2

// Room is a room record as returned by the room API.
// ID and CreatedAt are server-assigned and never sent back.
type Room struct {
	ID              int       `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Capacity        int       `json:"capacity"`
	ImageURL        string    `json:"image_url,omitempty"`
	FacilitiesCount int       `json:"facilities_count"`
	CreatedAt       Timestamp `json:"created_at"`
	UpdatedAt       Timestamp `json:"updated_at"`
}

// RoomFields is the set of mutable room fields accepted by the API.
// A nil field is omitted from the request body, which gives PATCH its
// partial-update semantics; the create body is a fully populated value.
type RoomFields struct {
	Name            *string `json:"name,omitempty"`
	Description     *string `json:"description,omitempty"`
	Capacity        *int    `json:"capacity,omitempty"`
	ImageURL        *string `json:"image_url,omitempty"`
	FacilitiesCount *int    `json:"facilities_count,omitempty"`
}

// IsEmpty reports whether no field is set.
func (f RoomFields) IsEmpty() bool {
	return f.Name == nil && f.Description == nil && f.Capacity == nil &&
		f.ImageURL == nil && f.FacilitiesCount == nil
}

// Apply returns a copy of r with the set fields of f applied.
func (f RoomFields) Apply(r Room) Room {
	if f.Name != nil {
		r.Name = *f.Name
	}
	if f.Description != nil {
		r.Description = *f.Description
	}
	if f.Capacity != nil {
		r.Capacity = *f.Capacity
	}
	if f.ImageURL != nil {
		r.ImageURL = *f.ImageURL
	}
	if f.FacilitiesCount != nil {
		r.FacilitiesCount = *f.FacilitiesCount
	}
	return r
}

// StringPtr and IntPtr build RoomFields values inline.
func StringPtr(s string) *string { return &s }

func IntPtr(i int) *int { return &i }

// RoomList is a decoded GET /rooms payload.
type RoomList struct {
	Rooms []Room
	// Invalid holds the payload indices of entries that were not room objects.
	Invalid []int
	// Malformed is set when the payload was not an array at all.
	Malformed bool
}

// Len counts rooms plus invalid placeholders.
func (l *RoomList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Rooms) + len(l.Invalid)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// PDFFileName is the save-as name of a downloaded room summary:
// room_{id}_{name with whitespace runs replaced by underscores}.pdf
func PDFFileName(id int, name string) string {
	return "room_" + strconv.Itoa(id) + "_" + whitespaceRun.ReplaceAllString(name, "_") + ".pdf"
}

// IsTempImage reports whether imageURL lives in the temporary upload
// namespace identified by segment. Absolute URLs are matched on their path.
func IsTempImage(imageURL, segment string) bool {
	if imageURL == "" || segment == "" {
		return false
	}
	path := imageURL
	if i := strings.Index(path, "://"); i >= 0 {
		rest := path[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			path = rest[j:]
		} else {
			path = "/"
		}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.HasPrefix(path, segment)
}

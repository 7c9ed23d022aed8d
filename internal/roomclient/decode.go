package roomclient

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sieffosman/hotel-dashboard/internal/domain"
)

// decodeRoom decodes a single room object. Anything that is not an
// object with a positive id is rejected.
func decodeRoom(data []byte) (*domain.Room, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: room is not an object", ErrMalformedResponse)
	}
	var r domain.Room
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if r.ID <= 0 {
		return nil, fmt.Errorf("%w: room without id", ErrMalformedResponse)
	}
	return &r, nil
}

// decodeRoomList normalises a GET /rooms payload. A non-array payload
// becomes an empty, Malformed list; entries that are not room objects are
// skipped and their indices recorded.
func decodeRoomList(data []byte) *domain.RoomList {
	list := &domain.RoomList{Rooms: []domain.Room{}}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil || entries == nil {
		list.Malformed = true
		return list
	}
	for i, raw := range entries {
		r, err := decodeRoom(raw)
		if err != nil {
			list.Invalid = append(list.Invalid, i)
			continue
		}
		list.Rooms = append(list.Rooms, *r)
	}
	return list
}

// errorDetail extracts a human readable detail from an error body.
// The room API answers {"detail": "..."}; other shapes yield "".
func errorDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	return payload.Error
}

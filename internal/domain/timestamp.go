package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// timestampLayouts are tried in order. The last one is the short
// day-first form some deployments of the room API store verbatim.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/06",
}

// Timestamp is a server-assigned time. Values that match none of the
// known layouts keep their raw text so they can still be displayed.
type Timestamp struct {
	Time time.Time
	Raw  string
}

// IsZero reports an absent timestamp.
func (t Timestamp) IsZero() bool {
	return t.Time.IsZero() && t.Raw == ""
}

// String renders the timestamp for display; absent values render as "-".
func (t Timestamp) String() string {
	switch {
	case !t.Time.IsZero():
		return t.Time.Format("02/01/06")
	case t.Raw != "":
		return t.Raw
	default:
		return "-"
	}
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = ParseTimestamp(s)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	switch {
	case !t.Time.IsZero():
		return json.Marshal(t.Time.Format(time.RFC3339))
	case t.Raw != "":
		return json.Marshal(t.Raw)
	default:
		return []byte("null"), nil
	}
}

// ParseTimestamp parses s with the known layouts.
func ParseTimestamp(s string) Timestamp {
	if s == "" {
		return Timestamp{}
	}
	for _, layout := range timestampLayouts {
		if tm, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: tm, Raw: s}
		}
	}
	return Timestamp{Raw: s}
}

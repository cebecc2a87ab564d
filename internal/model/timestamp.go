package model

import (
	"encoding/json"
	"strings"
	"time"
)

// isoLayouts are tried in order when a timestamp arrives as a string.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp converts any stored timestamp representation into a time.Time:
//
//   - time.Time (and *time.Time)
//   - ISO-8601 strings
//   - {seconds, nanoseconds} objects, including the "_seconds"/"_nanoseconds"
//     spelling of exported records
//
// The second result is false when v is none of these.
func ParseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	case Timestamp:
		return t.Time, !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range isoLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	case map[string]any:
		return secondsPair(t)
	case Document:
		return secondsPair(t)
	}
	return time.Time{}, false
}

func secondsPair(m map[string]any) (time.Time, bool) {
	d := Document(m)
	secKey, nanoKey := "seconds", "nanoseconds"
	if _, ok := m[secKey]; !ok {
		secKey, nanoKey = "_seconds", "_nanoseconds"
	}
	if _, ok := m[secKey]; !ok {
		return time.Time{}, false
	}
	sec := int64(d.Number(secKey))
	nsec := int64(d.Number(nanoKey))
	return time.Unix(sec, nsec).UTC(), true
}

// JSONLayout is RFC 3339 in UTC with a fixed nine-digit fraction, so encoded
// timestamps compare correctly as strings.
const JSONLayout = "2006-01-02T15:04:05.000000000Z"

// Timestamp is a time.Time that decodes from every stored shape ParseTimestamp
// understands. It encodes as JSONLayout, or null when zero.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(JSONLayout))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, _ := ParseTimestamp(raw)
	t.Time = parsed
	return nil
}

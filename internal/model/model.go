package model

import (
	"fmt"
	"strings"
	"time"
)

// Document is the canonical, validated form of one parsed roster. Event
// order mirrors the chronological order produced by the upstream parser;
// no later stage reorders it.
type Document struct {
	Events []Event `json:"events"`
}

// Kind discriminates the two event variants a roster can contain.
type Kind string

const (
	KindFlight   Kind = "Flight"
	KindActivity Kind = "Activity"
)

// DutyType categorizes a roster entry. It drives calendar coloring only,
// never business logic, so values outside the known set are carried
// through rather than rejected.
type DutyType string

const (
	DutyFlight   DutyType = "flight_duty"
	DutyStandby  DutyType = "standby"
	DutyGround   DutyType = "ground_activity"
	DutyDayOff   DutyType = "day_off"
	DutyTraining DutyType = "training"
)

// Known reports whether d is one of the closed set of duty types.
func (d DutyType) Known() bool {
	switch d {
	case DutyFlight, DutyStandby, DutyGround, DutyDayOff, DutyTraining:
		return true
	}
	return false
}

// Label is the human-readable form of the duty type, shared by the
// description lines and the exported category so the two cannot drift.
// Unknown values are shown as-is.
func (d DutyType) Label() string {
	switch d {
	case DutyFlight:
		return "Flight duty"
	case DutyStandby:
		return "Standby"
	case DutyGround:
		return "Ground activity"
	case DutyDayOff:
		return "Day off"
	case DutyTraining:
		return "Training"
	case "":
		return "Duty"
	default:
		return string(d)
	}
}

// DefaultDuration is applied when a timed event has a start but no end.
// The source data carries no signal about true duty length, so this is a
// fixed, documented policy value rather than a guess.
const DefaultDuration = time.Hour

// Event is one calendar entry in canonical form.
//
// Start/End are UTC instants and nil when unknown. For all-day events
// they hold midnight-UTC instants that stand for civil dates; the time
// component is never interpreted. Description is derived display text
// produced by the time resolver and is absent in raw payloads.
type Event struct {
	Kind     Kind     `json:"kind"`
	DutyType DutyType `json:"duty_type,omitempty"`

	Start  *time.Time `json:"start,omitempty"`
	End    *time.Time `json:"end,omitempty"`
	AllDay bool       `json:"is_all_day,omitempty"`

	// Flight-only fields.
	FlightNumber string `json:"flight_number,omitempty"`
	Origin       string `json:"origin,omitempty"`
	Destination  string `json:"destination,omitempty"`

	Description []string `json:"description,omitempty"`

	// Err taints the event: it carries a human-readable reason and the
	// exporter must surface it instead of treating the data as valid.
	Err string `json:"error,omitempty"`
}

// Tainted reports whether the event carries an error marker.
func (e *Event) Tainted() bool {
	return e.Err != ""
}

// ValidationError describes the first field that made a raw record
// unusable. It is data, not a control-flow failure: the normalizer folds
// it into the event's Err marker.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// Validate builds a typed Event of the given kind from a raw record.
// It fails fast on the first offending field and has no side effects.
func Validate(kind Kind, raw map[string]any) (Event, *ValidationError) {
	ev := Event{Kind: kind}

	if s, ok := stringField(raw, "duty_type"); ok {
		ev.DutyType = DutyType(s)
	}

	if b, ok := raw["is_all_day"].(bool); ok {
		ev.AllDay = b
	}

	var verr *ValidationError
	if ev.AllDay {
		ev.Start, verr = dateField(raw, "start")
		if verr != nil {
			return ev, verr
		}
		if ev.Start == nil {
			return ev, &ValidationError{Field: "start", Reason: "missing"}
		}
		ev.End, verr = dateField(raw, "end")
		if verr != nil {
			return ev, verr
		}
	} else {
		ev.Start, verr = instantField(raw, "start")
		if verr != nil {
			return ev, verr
		}
		if ev.Start == nil {
			return ev, &ValidationError{Field: "start", Reason: "missing"}
		}
		ev.End, verr = instantField(raw, "end")
		if verr != nil {
			return ev, verr
		}
	}

	if ev.Start != nil && ev.End != nil && ev.End.Before(*ev.Start) {
		return ev, &ValidationError{Field: "end", Reason: "before start"}
	}

	switch kind {
	case KindFlight:
		for _, f := range []struct {
			name string
			dst  *string
		}{
			{"flight_number", &ev.FlightNumber},
			{"origin", &ev.Origin},
			{"destination", &ev.Destination},
		} {
			s, ok := stringField(raw, f.name)
			if !ok {
				return ev, &ValidationError{Field: f.name, Reason: "missing"}
			}
			*f.dst = s
		}
	case KindActivity:
		for _, name := range []string{"flight_number", "origin", "destination"} {
			if _, ok := stringField(raw, name); ok {
				return ev, &ValidationError{Field: name, Reason: "not allowed for activity"}
			}
		}
	default:
		return ev, &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", kind)}
	}

	return ev, nil
}

func stringField(raw map[string]any, key string) (string, bool) {
	v, ok := raw[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// instantField parses an RFC 3339 timestamp into a UTC instant.
// A missing or empty field yields (nil, nil).
func instantField(raw map[string]any, key string) (*time.Time, *ValidationError) {
	s, ok := stringField(raw, key)
	if !ok {
		if v, present := raw[key]; present && v != nil {
			return nil, &ValidationError{Field: key, Reason: "not a timestamp string"}
		}
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, &ValidationError{Field: key, Reason: "unparseable date"}
	}
	u := t.UTC()
	return &u, nil
}

// dateField parses a civil date for all-day events. It accepts plain
// dates as well as full timestamps, of which only the date part is kept.
func dateField(raw map[string]any, key string) (*time.Time, *ValidationError) {
	s, ok := stringField(raw, key)
	if !ok {
		if v, present := raw[key]; present && v != nil {
			return nil, &ValidationError{Field: key, Reason: "not a date string"}
		}
		return nil, nil
	}

	if t, err := time.Parse("2006-01-02", s); err == nil {
		u := t.UTC()
		return &u, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &d, nil
	}
	return nil, &ValidationError{Field: key, Reason: "unparseable date"}
}

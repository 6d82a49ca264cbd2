package roster

import (
	"encoding/json"
	"errors"
	"fmt"

	appLog "ros2cal/internal/log"
	"ros2cal/internal/model"
)

// ErrMalformedPayload is returned when the top-level payload is not a
// well-formed sequence of records. This is the only document-level hard
// failure; every per-record problem becomes a tainted event instead.
var ErrMalformedPayload = errors.New("malformed roster payload")

// rawPayload mirrors the upstream parsing service's output shape.
type rawPayload struct {
	Events []json.RawMessage `json:"events"`
}

// Normalize validates a raw JSON payload from the upstream parsing
// service into a canonical Document.
//
// The upstream LLM output is not trusted: records with a missing or
// unparseable field are kept with an error marker rather than dropped,
// so the output always contains exactly one event per input record.
// Normalize is deterministic and side-effect-free apart from logging.
func Normalize(payload []byte) (model.Document, error) {
	var raw rawPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return model.Document{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if raw.Events == nil {
		return model.Document{}, fmt.Errorf("%w: missing events array", ErrMalformedPayload)
	}

	doc := model.Document{Events: make([]model.Event, 0, len(raw.Events))}
	tainted := 0

	for _, rec := range raw.Events {
		ev := normalizeRecord(rec)
		if ev.Tainted() {
			tainted++
		}
		doc.Events = append(doc.Events, ev)
	}

	appLog.Info("roster normalized", "events", len(doc.Events), "tainted", tainted)
	return doc, nil
}

func normalizeRecord(rec json.RawMessage) model.Event {
	var fields map[string]any
	if err := json.Unmarshal(rec, &fields); err != nil {
		return model.Event{Err: "malformed record"}
	}

	kind, ok := classify(fields)
	if !ok {
		return model.Event{Err: "unclassified entry"}
	}

	ev, verr := model.Validate(kind, fields)
	if verr != nil {
		ev.Err = verr.Error()
	}

	// An error already flagged by the upstream parser takes precedence;
	// the entry was suspect before it ever reached us.
	if upstream, hasUpstream := fields["error"].(string); hasUpstream && upstream != "" {
		ev.Err = upstream
	}

	return ev
}

// classify determines the event kind from the declared "kind" field or,
// failing that, from the presence of kind-specific fields. It never
// guesses: a record with no recognizable signal stays unclassified.
func classify(fields map[string]any) (model.Kind, bool) {
	if declared, ok := fields["kind"].(string); ok {
		switch declared {
		case "Flight", "flight":
			return model.KindFlight, true
		case "Activity", "activity":
			return model.KindActivity, true
		default:
			return "", false
		}
	}

	for _, name := range []string{"flight_number", "origin", "destination"} {
		if _, ok := fields[name]; ok {
			return model.KindFlight, true
		}
	}
	if _, ok := fields["duty_type"]; ok {
		return model.KindActivity, true
	}

	return "", false
}

package roster

import (
	"fmt"
	"time"

	"ros2cal/internal/model"
)

// Resolver derives human-readable description lines for events, showing
// both UTC and configured-local renderings of the canonical times. It
// never rewrites the UTC instants themselves.
type Resolver struct {
	tzName     string
	loc        *time.Location
	defaultDur time.Duration
}

// NewResolver validates the IANA timezone name once; an unknown name is
// a fatal configuration error, not a per-event condition.
func NewResolver(tzName string, defaultDur time.Duration) (*Resolver, error) {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tzName, err)
	}
	if defaultDur <= 0 {
		defaultDur = model.DefaultDuration
	}
	return &Resolver{tzName: tzName, loc: loc, defaultDur: defaultDur}, nil
}

// Resolve returns a copy of doc with description lines attached and the
// default-duration policy applied to timed events missing an end.
func (r *Resolver) Resolve(doc model.Document) model.Document {
	out := model.Document{Events: make([]model.Event, len(doc.Events))}
	for i, ev := range doc.Events {
		out.Events[i] = r.resolveEvent(ev)
	}
	return out
}

func (r *Resolver) resolveEvent(ev model.Event) model.Event {
	if ev.AllDay {
		// Civil dates carry no timezone; no time strings are produced.
		ev.Description = []string{ev.DutyType.Label()}
		return ev
	}

	if ev.Start == nil {
		// Nothing to resolve; the taint marker already explains why.
		return ev
	}

	if ev.End == nil {
		end := ev.Start.Add(r.defaultDur)
		ev.End = &end
	}

	lines := []string{
		ev.DutyType.Label(),
		"CHECK-IN " + r.formatInstant(*ev.Start),
	}
	if ev.Kind == model.KindFlight && ev.FlightNumber != "" && ev.Origin != "" && ev.Destination != "" {
		lines = append(lines, fmt.Sprintf("%s %s %s %s %s",
			ev.FlightNumber, ev.Origin, formatTimeZ(*ev.Start), ev.Destination, formatTimeZ(*ev.End)))
	}
	lines = append(lines, "CHECK-OUT "+r.formatInstant(*ev.End))
	ev.Description = lines

	return ev
}

// formatInstant renders an instant as "06:00Z (07:00 LT)".
func (r *Resolver) formatInstant(t time.Time) string {
	return formatTimeZ(t) + " (" + formatTimeLT(t, r.loc) + ")"
}

func formatTimeZ(t time.Time) string {
	return t.UTC().Format("15:04") + "Z"
}

func formatTimeLT(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04") + " LT"
}

package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"ros2cal/internal/model"
)

// ErrMarker prefixes the summary of tainted events so the user knows to
// verify that roster line by hand.
const ErrMarker = "⚠️"

// defaultColor is used for duty types outside the known set.
const defaultColor = "#616161"

// colorByDuty maps duty types to fixed calendar colors. Unknown values
// fall back to defaultColor; export never fails on categorization.
var colorByDuty = map[model.DutyType]string{
	model.DutyFlight:   "#4285F4",
	model.DutyStandby:  "#F4B400",
	model.DutyDayOff:   "#0F9D58",
	model.DutyTraining: "#DB4437",
	model.DutyGround:   defaultColor,
}

// Options controls calendar-level export parameters.
type Options struct {
	// CalendarName feeds the PRODID and the calendar display name.
	CalendarName string

	// Timestamp is used as DTSTAMP on every entry. Injecting it instead
	// of reading the wall clock keeps the output byte-identical across
	// runs over the same input.
	Timestamp time.Time
}

// Warning is a per-event export note. Warnings never abort the export;
// the entry is still emitted.
type Warning struct {
	Index   int
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("entry %d: %s", w.Index, w.Message)
}

// Export serializes the resolved document into a single ICS text blob,
// one VEVENT per event, in input order. It performs no I/O.
//
// Tainted events are exported with a visible marker and the raw error
// text rather than dropped; an event with no usable start is emitted
// without DTSTART and reported in the returned warning list.
func Export(doc model.Document, opts Options) (string, []Warning) {
	name := opts.CalendarName
	if name == "" {
		name = "Roster"
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(fmt.Sprintf("-//%s//ros2cal//EN", name))
	cal.SetXWRCalName(name)

	var warnings []Warning

	for i, ev := range doc.Events {
		w := addEvent(cal, i, ev, opts.Timestamp)
		warnings = append(warnings, w...)
	}

	return cal.Serialize(), warnings
}

func addEvent(cal *ical.Calendar, index int, ev model.Event, stamp time.Time) []Warning {
	var warnings []Warning

	ve := cal.AddEvent(eventUID(index, ev))
	ve.SetDtStampTime(stamp.UTC())

	switch {
	case ev.Start == nil:
		// No usable start: keep the entry (cardinality is preserved) but
		// flag that calendar clients cannot place it.
		warnings = append(warnings, Warning{Index: index, Message: "no usable start time"})
	case ev.AllDay:
		start := *ev.Start
		end := start.AddDate(0, 0, 1)
		if ev.End != nil {
			// DTEND is exclusive; the roster's end date is inclusive.
			end = ev.End.AddDate(0, 0, 1)
		}
		ve.SetAllDayStartAt(start)
		ve.SetAllDayEndAt(end)
	default:
		ve.SetStartAt(ev.Start.UTC())
		if ev.End != nil {
			ve.SetEndAt(ev.End.UTC())
		} else {
			warnings = append(warnings, Warning{Index: index, Message: "no end time"})
		}
	}

	// TEXT escaping (commas, semicolons, backslashes, line breaks) is
	// done by the library during Serialize; values are passed raw.
	ve.SetProperty(ical.ComponentPropertySummary, summaryFor(ev))

	desc := strings.Join(ev.Description, "\n")
	if ev.Tainted() {
		errLine := "ERROR: " + ev.Err
		if desc == "" {
			desc = errLine
		} else {
			desc = errLine + "\n" + desc
		}
	}
	if desc != "" {
		ve.SetProperty(ical.ComponentPropertyDescription, desc)
	}

	ve.SetProperty(ical.ComponentPropertyCategories, ev.DutyType.Label())

	color, ok := colorByDuty[ev.DutyType]
	if !ok {
		color = defaultColor
		if ev.DutyType != "" {
			warnings = append(warnings, Warning{Index: index, Message: fmt.Sprintf("unknown duty type %q, using default color", ev.DutyType)})
		}
	}
	ve.SetProperty(ical.ComponentProperty("COLOR"), color)

	return warnings
}

func summaryFor(ev model.Event) string {
	var title string
	switch {
	case ev.Kind == model.KindFlight && ev.FlightNumber != "":
		title = ev.FlightNumber
		if ev.Origin != "" && ev.Destination != "" {
			title = fmt.Sprintf("%s %s-%s", ev.FlightNumber, ev.Origin, ev.Destination)
		}
	case ev.Kind != "":
		title = ev.DutyType.Label()
	}

	if ev.Tainted() {
		if title == "" {
			return ErrMarker + " " + ev.Err
		}
		return ErrMarker + " " + title
	}
	return title
}

// eventUID derives a stable, name-based UUID from the entry's identity
// fields plus its position, so re-exporting the same roster yields the
// same UIDs and importing twice updates instead of duplicating.
func eventUID(index int, ev model.Event) string {
	var start, end string
	if ev.Start != nil {
		start = ev.Start.UTC().Format(time.RFC3339)
	}
	if ev.End != nil {
		end = ev.End.UTC().Format(time.RFC3339)
	}
	key := fmt.Sprintf("ros2cal://event/%s|%s|%s|%d", ev.DutyType, start, end, index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

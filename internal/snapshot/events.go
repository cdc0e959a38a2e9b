package snapshot

import (
	"sort"
	"strings"

	"github.com/kamusis/envdiff/internal/config"
)

// Event sources read by the collaborator.
const (
	SourceEvents         = "events"
	SourceTestEvents     = "test_events"
	SourceDatabaseEvents = "database_events"
)

// EventRow is one raw event definition row.
type EventRow struct {
	Source string
	// Entity is the template for events/test_events and the table for database_events.
	Entity       string
	TriggerPoint string
	Formula      string
}

// EntityKey is the name an event entity is compared under.
func (r EventRow) EntityKey() string {
	return r.Source + "/" + r.Entity
}

// EventDef holds every trigger point of one entity. Calls is the ordered
// active call sequence across trigger points (sorted by trigger point, then
// textual order); commented calls are kept apart for diagnostics.
type EventDef struct {
	Name      string
	Source    string
	Formulas  map[string]string
	Calls     []SubroutineCall
	Commented []SubroutineCall
	Anomalies []ParseAnomaly
}

// TriggerPoints returns the trigger point names sorted.
func (e *EventDef) TriggerPoints() []string {
	tps := make([]string, 0, len(e.Formulas))
	for tp := range e.Formulas {
		tps = append(tps, tp)
	}
	sort.Strings(tps)
	return tps
}

// TargetsAt returns the distinct active call targets of one trigger point, sorted.
func (e *EventDef) TargetsAt(tp string) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range e.Calls {
		if c.TriggerPoint == tp && !seen[c.Target] {
			seen[c.Target] = true
			out = append(out, c.Target)
		}
	}
	sort.Strings(out)
	return out
}

// EventSnapshot is the normalized event definitions of one connection.
type EventSnapshot struct {
	Conn   config.Connection
	Events map[string]*EventDef
}

func (s *EventSnapshot) EventNames() []string {
	names := make([]string, 0, len(s.Events))
	for name := range s.Events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Anomalies collects the parse anomalies of every event, keyed by event name.
func (s *EventSnapshot) Anomalies() map[string][]ParseAnomaly {
	out := map[string][]ParseAnomaly{}
	for name, ev := range s.Events {
		if len(ev.Anomalies) > 0 {
			out[name] = ev.Anomalies
		}
	}
	return out
}

// BuildEvents groups rows by entity and trigger point and scans each formula.
// Several rows for the same trigger point are joined in arrival order.
func BuildEvents(conn config.Connection, rows []EventRow) *EventSnapshot {
	snap := &EventSnapshot{Conn: conn, Events: map[string]*EventDef{}}
	for _, r := range rows {
		if r.Entity == "" {
			continue
		}
		key := r.EntityKey()
		ev, ok := snap.Events[key]
		if !ok {
			ev = &EventDef{Name: key, Source: r.Source, Formulas: map[string]string{}}
			snap.Events[key] = ev
		}
		if prev, ok := ev.Formulas[r.TriggerPoint]; ok {
			ev.Formulas[r.TriggerPoint] = prev + "\n" + r.Formula
		} else {
			ev.Formulas[r.TriggerPoint] = r.Formula
		}
	}

	for _, ev := range snap.Events {
		for _, tp := range ev.TriggerPoints() {
			res := ScanFormula(ev.Formulas[tp])
			for _, c := range res.Active {
				c.TriggerPoint = tp
				ev.Calls = append(ev.Calls, c)
			}
			for _, c := range res.Commented {
				c.TriggerPoint = tp
				ev.Commented = append(ev.Commented, c)
			}
			for _, a := range res.Anomalies {
				a.TriggerPoint = tp
				ev.Anomalies = append(ev.Anomalies, a)
			}
		}
	}
	return snap
}

// CallSequence renders the active calls as "KIND:TARGET" joined by ", ".
func CallSequence(calls []SubroutineCall) string {
	parts := make([]string, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, ", ")
}

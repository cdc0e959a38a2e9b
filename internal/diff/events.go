package diff

import (
	"strconv"

	"github.com/kamusis/envdiff/internal/snapshot"
)

// EventOptions tunes event comparison. By default the trigger points and,
// per trigger point, the set of called targets are compared.
type EventOptions struct {
	// CompareFormulaText adds an exact text comparison per trigger point.
	CompareFormulaText bool
	// CompareCallOrder adds the ordered active call sequence.
	CompareCallOrder bool
}

// Events diffs the event snapshots of all results.
func Events(results []snapshot.Result[*snapshot.EventSnapshot], opts EventOptions) *Matrix {
	ids := make([]string, len(results))
	flat := make([]map[string][]Attribute, len(results))
	reasons := map[string]string{}
	for i, r := range results {
		ids[i] = r.Conn.ID()
		if !r.Available() || r.Snapshot == nil {
			reasons[ids[i]] = unavailableReason(r.Err)
			continue
		}
		events := make(map[string][]Attribute, len(r.Snapshot.Events))
		for name, ev := range r.Snapshot.Events {
			events[name] = FlattenEvent(ev, opts)
		}
		flat[i] = events
	}

	m := compare(KindEvents, ids, flat, reasons)
	for _, r := range results {
		if !r.Available() || r.Snapshot == nil {
			continue
		}
		var calls, commented, anomalies int
		for _, ev := range r.Snapshot.Events {
			calls += len(ev.Calls)
			commented += len(ev.Commented)
			anomalies += len(ev.Anomalies)
		}
		m.Stats[r.Conn.ID()] = []Stat{
			{Name: "Events", Value: strconv.Itoa(len(r.Snapshot.Events))},
			{Name: "Active calls", Value: strconv.Itoa(calls)},
			{Name: "Commented calls", Value: strconv.Itoa(commented)},
			{Name: "Parse anomalies", Value: strconv.Itoa(anomalies)},
		}
	}
	return m
}

// FlattenEvent lists an event's attributes: one per trigger point, one per
// distinct target called from it, and optionally the formula text and call
// order. Commented calls never appear.
func FlattenEvent(ev *snapshot.EventDef, opts EventOptions) []Attribute {
	var out []Attribute
	if opts.CompareCallOrder {
		out = append(out, Attribute{Path: "call_order", Value: snapshot.CallSequence(ev.Calls)})
	}

	for _, tp := range ev.TriggerPoints() {
		base := "triggers." + tp
		out = append(out, Attribute{Path: base})
		for _, target := range ev.TargetsAt(tp) {
			out = append(out, Attribute{Path: base + ".calls." + target, Parent: base})
		}
		if opts.CompareFormulaText {
			out = append(out, Attribute{Path: base + ".formula", Parent: base, Value: ev.Formulas[tp]})
		}
	}
	return out
}

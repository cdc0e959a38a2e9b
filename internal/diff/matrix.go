// Package diff compares the snapshots of several connections at once.
package diff

import (
	"sort"
	"strings"
)

// Kind names what a matrix compares.
type Kind string

const (
	KindSchema Kind = "schema"
	KindEvents Kind = "events"
)

// DivergenceKind separates an attribute absent somewhere from a differing value.
type DivergenceKind string

const (
	Missing       DivergenceKind = "missing"
	ValueMismatch DivergenceKind = "mismatch"
)

// Attribute is one flattened fact about an entity. Existence attributes such
// as "columns.ID" carry an empty value; Parent is the existence path the
// attribute hangs off, empty for top level ones.
type Attribute struct {
	Path   string
	Parent string
	Value  string
}

// Divergence is one attribute path that is not the same everywhere.
type Divergence struct {
	Path string
	Kind DivergenceKind
	// Values holds the value of each connection that has the attribute.
	Values map[string]string
	// Absent lists connections lacking the attribute, in connection order.
	Absent []string
}

// Label is a short human description such as "column missing" or
// "column type differs".
func (d Divergence) Label() string {
	parts := strings.Split(d.Path, ".")
	var object, attr string
	switch {
	case len(parts) == 1:
		object = parts[0]
	case len(parts)%2 == 0:
		// collection.name[.collection.name]
		object = singular(parts[len(parts)-2])
	default:
		object = singular(parts[len(parts)-3])
		attr = parts[len(parts)-1]
	}
	if attr != "" {
		object += " " + attr
	}
	if d.Kind == Missing {
		return object + " missing"
	}
	return object + " differs"
}

func singular(s string) string {
	switch {
	case strings.HasSuffix(s, "xes"):
		return strings.TrimSuffix(s, "es")
	case strings.HasSuffix(s, "s"):
		return strings.TrimSuffix(s, "s")
	default:
		return s
	}
}

// Status is the summary classification of an entity.
type Status string

const (
	StatusIdentical Status = "identical"
	StatusDivergent Status = "divergent"
	// StatusOnlyIn is an entity held by exactly one connection.
	StatusOnlyIn Status = "only-in"
	// StatusPartial is an entity held by several, but not all, connections.
	StatusPartial Status = "partial"
)

// Entity is one table or event across all compared connections.
type Entity struct {
	Name string
	// Present lists the connections that have the entity, in connection order.
	Present []string
	// Absent lists the compared connections that lack it.
	Absent      []string
	Divergences []Divergence
}

func (e Entity) Status() Status {
	switch {
	case len(e.Present) == 1:
		return StatusOnlyIn
	case len(e.Absent) > 0:
		return StatusPartial
	case len(e.Divergences) > 0:
		return StatusDivergent
	default:
		return StatusIdentical
	}
}

// Stat is a named figure shown in a connection's sheet header.
type Stat struct {
	Name  string
	Value string
}

// Matrix is the result of one comparison run. It is not modified after
// Schemas or Events returns it.
type Matrix struct {
	Kind Kind
	// Connections lists every input connection in input order.
	Connections []string
	// Compared lists the connections whose snapshot was available.
	Compared []string
	// Unavailable maps a connection to the reason it could not be inspected.
	Unavailable map[string]string
	// Entities is sorted by name; divergences within an entity by path.
	Entities []Entity
	// Attributes holds each compared connection's own flattened entities.
	Attributes map[string]map[string][]Attribute
	Stats      map[string][]Stat
}

// IsUnavailable reports whether id failed to snapshot.
func (m *Matrix) IsUnavailable(id string) bool {
	_, ok := m.Unavailable[id]
	return ok
}

// Divergent returns the entities that are not identical, including only-in ones.
func (m *Matrix) Divergent() []Entity {
	var out []Entity
	for _, e := range m.Entities {
		if e.Status() != StatusIdentical {
			out = append(out, e)
		}
	}
	return out
}

// EntityNames returns the entity names of one compared connection, sorted.
func (m *Matrix) EntityNames(id string) []string {
	names := make([]string, 0, len(m.Attributes[id]))
	for name := range m.Attributes[id] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// compare builds a matrix from per-connection flattened entities. flat is
// indexed like ids; nil marks an unavailable connection.
func compare(kind Kind, ids []string, flat []map[string][]Attribute, reasons map[string]string) *Matrix {
	m := &Matrix{
		Kind:        kind,
		Connections: append([]string(nil), ids...),
		Unavailable: map[string]string{},
		Attributes:  map[string]map[string][]Attribute{},
		Stats:       map[string][]Stat{},
	}

	universe := map[string]bool{}
	for i, id := range ids {
		if flat[i] == nil {
			m.Unavailable[id] = reasons[id]
			continue
		}
		m.Compared = append(m.Compared, id)
		m.Attributes[id] = flat[i]
		for name := range flat[i] {
			universe[name] = true
		}
	}

	names := make([]string, 0, len(universe))
	for name := range universe {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		e := Entity{Name: name}
		for _, id := range m.Compared {
			if _, ok := m.Attributes[id][name]; ok {
				e.Present = append(e.Present, id)
			} else {
				e.Absent = append(e.Absent, id)
			}
		}
		if len(e.Present) >= 2 {
			e.Divergences = compareEntity(e.Present, func(id string) []Attribute { return m.Attributes[id][name] })
		}
		m.Entities = append(m.Entities, e)
	}
	return m
}

// compareEntity diffs one entity across the connections that have it.
// A connection lacking both an attribute and its parent is only reported on
// the parent.
func compareEntity(present []string, attrs func(string) []Attribute) []Divergence {
	byConn := make(map[string]map[string]Attribute, len(present))
	paths := map[string]string{}
	for _, id := range present {
		idx := map[string]Attribute{}
		for _, a := range attrs(id) {
			idx[a.Path] = a
			paths[a.Path] = a.Parent
		}
		byConn[id] = idx
	}

	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	var out []Divergence
	for _, path := range sorted {
		parent := paths[path]
		d := Divergence{Path: path, Values: map[string]string{}}
		distinct := map[string]bool{}
		for _, id := range present {
			a, ok := byConn[id][path]
			if ok {
				d.Values[id] = a.Value
				distinct[a.Value] = true
				continue
			}
			if parent != "" {
				if _, hasParent := byConn[id][parent]; !hasParent {
					continue
				}
			}
			d.Absent = append(d.Absent, id)
		}
		switch {
		case len(d.Absent) > 0:
			d.Kind = Missing
		case len(distinct) > 1:
			d.Kind = ValueMismatch
		default:
			continue
		}
		out = append(out, d)
	}
	return out
}

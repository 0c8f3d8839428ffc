package selection

import (
	"fmt"
	"slices"
)

// TableKind names an auxiliary table whose ids are remapped.
type TableKind int

const (
	TableSpw TableKind = iota
	TableDataDescription
	TableField
	TableObservation
	TableState
	TableAntenna
	TablePolarization
)

func (k TableKind) String() string {
	switch k {
	case TableSpw:
		return "SPECTRAL_WINDOW"
	case TableDataDescription:
		return "DATA_DESCRIPTION"
	case TableField:
		return "FIELD"
	case TableObservation:
		return "OBSERVATION"
	case TableState:
		return "STATE"
	case TableAntenna:
		return "ANTENNA"
	case TablePolarization:
		return "POLARIZATION"
	default:
		return fmt.Sprintf("TableKind(%d)", int(k))
	}
}

// IndexMap maps old ids of one table kind to new ids. Ids absent from the
// map are dropped. A map is immutable once built.
type IndexMap struct {
	kind     TableKind
	old      []int
	fwd      map[int]int
	offset   int
	identity bool
}

// DenseMap maps the ascending, duplicate-free ids onto offset..offset+len-1.
func DenseMap(kind TableKind, ids []int, offset int) IndexMap {
	old := slices.Clone(ids)
	slices.Sort(old)
	old = slices.Compact(old)

	fwd := make(map[int]int, len(old))
	for i, id := range old {
		fwd[id] = i + offset
	}

	return IndexMap{kind: kind, old: old, fwd: fwd, offset: offset}
}

// IdentityMap keeps the given ids under their own numbers.
func IdentityMap(kind TableKind, ids []int) IndexMap {
	old := slices.Clone(ids)
	slices.Sort(old)
	old = slices.Compact(old)

	fwd := make(map[int]int, len(old))
	for _, id := range old {
		fwd[id] = id
	}

	return IndexMap{kind: kind, old: old, fwd: fwd, identity: true}
}

// Kind returns the table kind.
func (m IndexMap) Kind() TableKind {
	return m.kind
}

// Lookup returns the new id of old, or false when rows with old are dropped.
func (m IndexMap) Lookup(old int) (int, bool) {
	id, ok := m.fwd[old]
	return id, ok
}

// Contains reports whether old survives.
func (m IndexMap) Contains(old int) bool {
	_, ok := m.fwd[old]
	return ok
}

// Len returns the number of surviving ids.
func (m IndexMap) Len() int {
	return len(m.old)
}

// IDs returns the surviving old ids in ascending order.
func (m IndexMap) IDs() []int {
	return slices.Clone(m.old)
}

// Identity reports whether ids keep their numbers.
func (m IndexMap) Identity() bool {
	return m.identity
}

// Offset returns the first new id of a dense map.
func (m IndexMap) Offset() int {
	return m.offset
}

// IndexMaps holds one map per remapped table kind.
type IndexMaps struct {
	Spw             IndexMap
	DataDescription IndexMap
	Field           IndexMap
	Observation     IndexMap
	State           IndexMap
	Antenna         IndexMap
	Polarization    IndexMap
}

// Get returns the map of kind k.
func (m *IndexMaps) Get(k TableKind) IndexMap {
	switch k {
	case TableSpw:
		return m.Spw
	case TableDataDescription:
		return m.DataDescription
	case TableField:
		return m.Field
	case TableObservation:
		return m.Observation
	case TableState:
		return m.State
	case TableAntenna:
		return m.Antenna
	default:
		return m.Polarization
	}
}

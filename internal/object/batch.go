package object

import "slices"

// ChangeKind is the operation recorded for one attribute change.
type ChangeKind int

const (
	ChangeAdd ChangeKind = iota
	ChangeRemove
	ChangeRemoveAll
	ChangeReplace
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdd:
		return "add"
	case ChangeRemove:
		return "remove"
	case ChangeRemoveAll:
		return "remove_all"
	case ChangeReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Change is one pending attribute operation, in domain form.
type Change struct {
	Attribute string
	Kind      ChangeKind
	Values    []any
}

// Batch is the ordered change log of one entry. Changes are append-only and
// keep their recording order; the target DN can be rekeyed in place.
type Batch struct {
	dn      string
	changes []Change
}

// NewBatch creates an empty batch targeting dn.
func NewBatch(dn string) *Batch {
	return &Batch{dn: dn}
}

// DN returns the entry the batch applies to.
func (b *Batch) DN() string {
	return b.dn
}

// SetDN rekeys the batch.
func (b *Batch) SetDN(dn string) {
	b.dn = dn
}

// Add records values added to attribute.
func (b *Batch) Add(attribute string, values ...any) {
	b.append(attribute, ChangeAdd, values)
}

// Remove records values removed from attribute.
func (b *Batch) Remove(attribute string, values ...any) {
	b.append(attribute, ChangeRemove, values)
}

// RemoveAll records the removal of every value of attribute.
func (b *Batch) RemoveAll(attribute string) {
	b.append(attribute, ChangeRemoveAll, nil)
}

// Replace records attribute being replaced by values.
func (b *Batch) Replace(attribute string, values ...any) {
	b.append(attribute, ChangeReplace, values)
}

func (b *Batch) append(attribute string, kind ChangeKind, values []any) {
	b.changes = append(b.changes, Change{
		Attribute: attribute,
		Kind:      kind,
		Values:    slices.Clone(values),
	})
}

// Changes returns the pending changes in recording order.
func (b *Batch) Changes() []Change {
	return slices.Clone(b.changes)
}

// Len returns the number of pending changes.
func (b *Batch) Len() int {
	return len(b.changes)
}

// IsEmpty reports whether no changes are pending.
func (b *Batch) IsEmpty() bool {
	return len(b.changes) == 0
}

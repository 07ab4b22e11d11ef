// Package val defines the typed value references exchanged between the
// evaluation engine and host-implemented functions, and the call-scoped
// argument lists that carry them across the boundary.
package val

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// Kind discriminates the payload of a Ref.
type Kind int

const (
	// KindVoid marks the completion of a call that produces no value.
	KindVoid Kind = iota
	// KindInt is a sized, optionally signed integer value.
	KindInt
	// KindCty is a general cty-typed value.
	KindCty
)

// Ref is a reference to one typed value. Refs handed out through a List are
// valid only for the duration of the call that produced the list.
type Ref struct {
	kind   Kind
	i      int64
	signed bool
	width  int
	v      cty.Value
}

// VoidRef returns the void completion marker.
func VoidRef() Ref {
	return Ref{kind: KindVoid}
}

// IntRef returns an integer value reference with the given signedness and
// bit width.
func IntRef(v int64, signed bool, width int) Ref {
	return Ref{kind: KindInt, i: v, signed: signed, width: width}
}

// CtyRef wraps a cty value.
func CtyRef(v cty.Value) Ref {
	return Ref{kind: KindCty, v: v}
}

// Kind returns the payload discriminator.
func (r Ref) Kind() Kind { return r.kind }

// Int returns the integer payload together with its signedness and width.
// It is only meaningful for KindInt refs.
func (r Ref) Int() (value int64, signed bool, width int) {
	return r.i, r.signed, r.width
}

// Cty returns the value as a cty.Value. Integer refs convert to cty numbers;
// void refs convert to cty.NilVal.
func (r Ref) Cty() cty.Value {
	switch r.kind {
	case KindInt:
		return cty.NumberIntVal(r.i)
	case KindCty:
		return r.v
	default:
		return cty.NilVal
	}
}

// AsInt64 extracts an int64 from an integer or numeric cty ref.
func (r Ref) AsInt64() (int64, error) {
	switch r.kind {
	case KindInt:
		return r.i, nil
	case KindCty:
		if r.v.Type() != cty.Number || r.v.IsNull() {
			return 0, fmt.Errorf("value of type %s is not a number", r.v.Type().FriendlyName())
		}
		i, _ := r.v.AsBigFloat().Int64()
		return i, nil
	default:
		return 0, fmt.Errorf("void value has no integer payload")
	}
}

// IndexError reports an out-of-range access into a List.
type IndexError struct {
	Index int
	Size  int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("argument index %d out of range for list of size %d", e.Index, e.Size)
}

// List is a read-only, indexable view over the typed arguments of one call.
// A List and the Refs it yields are valid only until the call that produced
// them completes.
type List struct {
	refs []Ref
}

// NewList wraps refs in a List. The caller must not mutate refs afterwards.
func NewList(refs []Ref) *List {
	return &List{refs: refs}
}

// Len returns the element count.
func (l *List) Len() int {
	return len(l.refs)
}

// At returns the ref at index i. Out-of-range access returns an *IndexError;
// callers are expected to consult Len first.
func (l *List) At(i int) (Ref, error) {
	if i < 0 || i >= len(l.refs) {
		return Ref{}, &IndexError{Index: i, Size: len(l.refs)}
	}
	return l.refs[i], nil
}

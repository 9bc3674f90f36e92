// =============================================================================
// MO Tree to CSV Converter - Schema Registry
// =============================================================================
//
// The registry holds, for every MO type, the ordered list of columns that its
// CSV file will carry. It is populated in one of two ways:
//
//   1. DISCOVERY: every closed object of every input file contributes its
//      attribute names. A name is appended the first time it is seen, so
//      later files can only add columns at the end.
//   2. LISTING: a parameter listing (TYPE:attr1,attr2,...) is loaded up
//      front. Only the listed types are written.
//
// After discovery or listing load the registry is frozen; the column order of
// a type never changes while rows are being written.
//
// =============================================================================

package schema

import (
	"errors"
	"strings"

	"github.com/ginjaninja78/motree-to-csv/internal/types"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrFrozen is returned when a frozen registry is asked to change.
var ErrFrozen = errors.New("schema registry is frozen")

// Mode describes how the registry was populated.
type Mode int

const (
	// ModeDiscovery learns columns from the input files.
	ModeDiscovery Mode = iota

	// ModeListing takes columns from a parameter listing and restricts
	// output to the listed types.
	ModeListing
)

func (m Mode) String() string {
	switch m {
	case ModeDiscovery:
		return "discovery"
	case ModeListing:
		return "listing"
	default:
		return "unknown"
	}
}

// columnSet is an insertion-ordered set of column names.
type columnSet = orderedmap.OrderedMap[string, struct{}]

// Registry maps MO type -> ordered, unique column names.
type Registry struct {
	mode   Mode
	types  *orderedmap.OrderedMap[string, *columnSet]
	frozen bool
}

// NewRegistry creates an empty registry in discovery mode.
func NewRegistry() *Registry {
	return newRegistry(ModeDiscovery)
}

// NewListingRegistry creates an empty registry in listing mode.
func NewListingRegistry() *Registry {
	return newRegistry(ModeListing)
}

func newRegistry(mode Mode) *Registry {
	return &Registry{
		mode:  mode,
		types: orderedmap.New[string, *columnSet](),
	}
}

// Mode returns how the registry is populated.
func (r *Registry) Mode() Mode {
	return r.mode
}

// Restricted reports whether output is limited to the registered types.
func (r *Registry) Restricted() bool {
	return r.mode == ModeListing
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen
}

// Observe appends the attribute names of obj to its type's columns.
func (r *Registry) Observe(obj *types.ManagedObject) error {
	if r.frozen {
		return ErrFrozen
	}

	cols := r.ensure(obj.Type)
	for pair := obj.Attributes.Oldest(); pair != nil; pair = pair.Next() {
		addColumn(cols, pair.Key)
	}
	return nil
}

// Add appends columns to a type, registering the type if needed.
// Names already present keep their position.
func (r *Registry) Add(moType string, columns ...string) error {
	if r.frozen {
		return ErrFrozen
	}

	cols := r.ensure(moType)
	for _, c := range columns {
		addColumn(cols, c)
	}
	return nil
}

// Merge folds other into r. Types and columns unseen by r are appended in
// the order other saw them.
func (r *Registry) Merge(other *Registry) error {
	if r.frozen {
		return ErrFrozen
	}

	for pair := other.types.Oldest(); pair != nil; pair = pair.Next() {
		cols := r.ensure(pair.Key)
		for c := pair.Value.Oldest(); c != nil; c = c.Next() {
			addColumn(cols, c.Key)
		}
	}
	return nil
}

// Has reports whether the type is registered.
func (r *Registry) Has(moType string) bool {
	_, ok := r.types.Get(moType)
	return ok
}

// Columns returns the registered columns of a type, in order.
func (r *Registry) Columns(moType string) []string {
	cols, ok := r.types.Get(moType)
	if !ok {
		return nil
	}

	names := make([]string, 0, cols.Len())
	for c := cols.Oldest(); c != nil; c = c.Next() {
		names = append(names, c.Key)
	}
	return names
}

// OutputColumns returns the columns of a type without the reserved names.
// These are the columns that follow FILENAME,NODENAME in the output.
func (r *Registry) OutputColumns(moType string) []string {
	all := r.Columns(moType)
	out := make([]string, 0, len(all))
	for _, c := range all {
		if !IsReserved(c) {
			out = append(out, c)
		}
	}
	return out
}

// Types returns the registered types in the order they were first seen.
func (r *Registry) Types() []string {
	names := make([]string, 0, r.types.Len())
	for pair := r.types.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	return r.types.Len()
}

func (r *Registry) ensure(moType string) *columnSet {
	cols, ok := r.types.Get(moType)
	if !ok {
		cols = orderedmap.New[string, struct{}]()
		r.types.Set(moType, cols)
	}
	return cols
}

func addColumn(cols *columnSet, name string) {
	if _, ok := cols.Get(name); !ok {
		cols.Set(name, struct{}{})
	}
}

// =============================================================================
// RESERVED COLUMNS
// =============================================================================

// Fixed leading columns of every output row.
const (
	ColumnFileName = "FILENAME"
	ColumnNodeName = "NODENAME"
)

// reservedColumns are attribute names dropped from the output because the
// fixed leading columns already carry that information.
var reservedColumns = []string{"filename", "datetime", "nodename"}

// IsReserved reports whether an attribute name collides (case-insensitively)
// with one of the fixed columns.
func IsReserved(name string) bool {
	for _, r := range reservedColumns {
		if strings.EqualFold(name, r) {
			return true
		}
	}
	return false
}

// Header returns the full header row for a type.
func (r *Registry) Header(moType string) []string {
	return append([]string{ColumnFileName, ColumnNodeName}, r.OutputColumns(moType)...)
}

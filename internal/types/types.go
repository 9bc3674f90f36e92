// =============================================================================
// MO Tree to CSV Converter - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - motree    (produces them while walking a dump)
//   - schema    (learns columns from them)
//   - emitter   (turns them into rows)
//   - converter (owns the per-file context)
//
// =============================================================================

package types

import (
	"path/filepath"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// =============================================================================
// MANAGED OBJECT TYPES
// =============================================================================

// Attributes holds the attribute values of one managed object instance in the
// order they were encountered.
type Attributes = orderedmap.OrderedMap[string, string]

// NewAttributes returns an empty attribute map.
func NewAttributes() *Attributes {
	return orderedmap.New[string, string]()
}

// ManagedObject is one open <MO> element of the configuration tree.
// It only lives until its closing tag has been handled.
type ManagedObject struct {
	// Type is the value of the className attribute, e.g. "CELL".
	Type string

	// Depth is the nesting level of the object; the root object is 1.
	Depth int

	// Attributes maps attr name -> text value, in encounter order.
	Attributes *Attributes
}

// NewManagedObject creates an object with an empty attribute map.
func NewManagedObject(moType string, depth int) *ManagedObject {
	return &ManagedObject{
		Type:       moType,
		Depth:      depth,
		Attributes: NewAttributes(),
	}
}

// Value returns the attribute value and whether it was present.
func (o *ManagedObject) Value(name string) (string, bool) {
	return o.Attributes.Get(name)
}

// Keys returns the attribute names in encounter order.
func (o *ManagedObject) Keys() []string {
	keys := make([]string, 0, o.Attributes.Len())
	for pair := o.Attributes.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// =============================================================================
// FILE CONTEXT
// =============================================================================

// FileContext carries the per-file state every row is tagged with.
type FileContext struct {
	// Path is the path of the dump being read.
	Path string

	// BaseName is the file name without its directory.
	// It is the FILENAME column of every row.
	BaseName string

	// NodeName is the "name" attribute of the depth-1 object.
	// It stays empty until that attribute has been read.
	NodeName string
}

// NewFileContext creates the context for a dump file.
func NewFileContext(path string) *FileContext {
	return &FileContext{
		Path:     path,
		BaseName: filepath.Base(path),
	}
}

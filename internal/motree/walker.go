// =============================================================================
// MO Tree to CSV Converter - Tree Walker
// =============================================================================
//
// This module turns the XML token stream of one MO tree dump into managed
// object events. A dump looks like this:
//
//   <MO className="NE">                      <!-- depth 1, the node -->
//     <attr name="name">SITE_001</attr>      <!-- becomes NODENAME -->
//     <MO className="CELL">                  <!-- depth 2 -->
//       <attr name="CELLID">11</attr>
//       <attr name="FREQ">1800</attr>
//     </MO>
//   </MO>
//
// Every closing </MO> hands the completed object to a Handler. Which handler
// is active (schema discovery or row extraction) is decided by the caller.
//
// TOLERANCE:
//   Structural irregularities are ignored, not reported:
//   - </MO> without an open object
//   - <attr> outside of any object, or without a name attribute
//   - <MO> without a className (its attributes are read but never emitted)
//   Only XML syntax errors and read errors stop a file.
//
// =============================================================================

package motree

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ginjaninja78/motree-to-csv/internal/types"
	"golang.org/x/net/html/charset"
)

// Element and attribute names of the dump format.
const (
	ElementMO       = "MO"
	ElementAttr     = "attr"
	AttrClassName   = "className"
	AttrName        = "name"
	NodeNameAttr    = "name"
	nodeObjectDepth = 1
)

// =============================================================================
// HANDLER INTERFACES
// =============================================================================

// Handler receives every completed managed object of a file.
// A returned error stops the walk and is passed through unchanged.
type Handler interface {
	ObjectClosed(file *types.FileContext, obj *types.ManagedObject) error
}

// AttributeObserver may additionally be implemented by a Handler to be told
// about every attribute value as soon as its </attr> is read.
type AttributeObserver interface {
	AttributeRead(file *types.FileContext, moType, name, value string)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(file *types.FileContext, obj *types.ManagedObject) error

// ObjectClosed calls f.
func (f HandlerFunc) ObjectClosed(file *types.FileContext, obj *types.ManagedObject) error {
	return f(file, obj)
}

// =============================================================================
// PARSE ERROR
// =============================================================================

// ParseError reports that a file could not be read to the end.
// It is scoped to one file; the converter decides whether to skip it.
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s: line %d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// =============================================================================
// WALKER
// =============================================================================

// Walker walks one file at a time. It is not safe for concurrent use; a
// single Walker may be reused for any number of files.
type Walker struct {
	// open holds the instance records of the currently open objects; the
	// last element is the innermost one. len(open) is the current depth.
	open []*types.ManagedObject

	// attrName is the name of the <attr> being read, inAttr reports whether
	// we are inside one.
	attrName string
	inAttr   bool

	// text accumulates the character data of the current <attr>.
	text strings.Builder
}

// New creates a Walker.
func New() *Walker {
	return &Walker{}
}

// Depth returns the number of currently open objects.
func (w *Walker) Depth() int {
	return len(w.open)
}

// Reset clears all per-file state.
func (w *Walker) Reset() {
	for i := range w.open {
		w.open[i] = nil
	}
	w.open = w.open[:0]
	w.attrName = ""
	w.inAttr = false
	w.text.Reset()
}

// Walk reads the token stream from r and reports closed objects to h.
//
// PARAMETERS:
//   - r: The dump contents.
//   - file: The per-file context; its NodeName is filled in while walking.
//   - h: The handler for closed objects.
//
// RETURNS:
//   - A *ParseError if the stream is malformed or cannot be read.
//   - The handler's error, unchanged, if the handler fails.
func (w *Walker) Walk(r io.Reader, file *types.FileContext, h Handler) error {
	w.Reset()
	defer w.Reset()

	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel

	observer, _ := h.(AttributeObserver)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			line, _ := decoder.InputPos()
			return &ParseError{File: file.BaseName, Line: line, Err: err}
		}

		switch t := token.(type) {
		case xml.StartElement:
			w.startElement(t)

		case xml.CharData:
			if w.inAttr {
				w.text.Write(t)
			}

		case xml.EndElement:
			if err := w.endElement(t, file, h, observer); err != nil {
				return err
			}
		}
	}
}

// startElement handles <MO> and <attr>.
func (w *Walker) startElement(t xml.StartElement) {
	switch t.Name.Local {
	case ElementMO:
		moType, _ := attrValue(t.Attr, AttrClassName)
		w.open = append(w.open, types.NewManagedObject(moType, len(w.open)+1))

	case ElementAttr:
		w.attrName, _ = attrValue(t.Attr, AttrName)
		w.inAttr = true
		w.text.Reset()
	}
}

// endElement handles </attr> and </MO>.
func (w *Walker) endElement(t xml.EndElement, file *types.FileContext, h Handler, observer AttributeObserver) error {
	switch t.Name.Local {
	case ElementAttr:
		name, value := w.attrName, attrText(w.text.String())
		w.attrName = ""
		w.inAttr = false
		w.text.Reset()

		if name == "" || len(w.open) == 0 {
			return nil
		}

		current := w.open[len(w.open)-1]
		current.Attributes.Set(name, value)

		if current.Depth == nodeObjectDepth && name == NodeNameAttr {
			file.NodeName = value
		}
		if observer != nil && current.Type != "" {
			observer.AttributeRead(file, current.Type, name, value)
		}

	case ElementMO:
		if len(w.open) == 0 {
			return nil
		}

		last := len(w.open) - 1
		closed := w.open[last]
		w.open[last] = nil
		w.open = w.open[:last]

		if closed.Type == "" {
			return nil
		}
		return h.ObjectClosed(file, closed)
	}

	return nil
}

// attrValue finds an XML attribute by local name.
func attrValue(attrs []xml.Attr, local string) (string, bool) {
	for _, a := range attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// attrText normalises the text of an <attr>: whitespace-only text is empty.
func attrText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

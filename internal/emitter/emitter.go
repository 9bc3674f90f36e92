// =============================================================================
// MO Tree to CSV Converter - Row Emitter
// =============================================================================
//
// The emitter turns closed managed objects into table rows during the
// extraction pass. Rows are laid out by the frozen schema registry:
//
//   FILENAME, NODENAME, <non-reserved column 1>, <non-reserved column 2>, ...
//
// Rows of a file are staged while the file is walked and only reach the
// output on Commit. A file that fails half way is discarded and leaves no
// rows behind.
//
// NODENAME is the name of the root object a row was read under. Objects that
// close before any root name has been read get the first root name of the
// file once it is known.
//
// Every MO type gets one output handle for the whole run, opened on its first
// committed row. Handles are closed once, by Close.
//
// =============================================================================

package emitter

import (
	"fmt"

	"github.com/ginjaninja78/motree-to-csv/internal/output"
	"github.com/ginjaninja78/motree-to-csv/internal/schema"
	"github.com/ginjaninja78/motree-to-csv/internal/types"
)

// handle is the open output of one MO type.
type handle struct {
	sink          output.Sink
	headerWritten bool
	rows          int
}

// stagedRow is a row waiting for its file to finish. An empty nodeName is
// filled in at Commit.
type stagedRow struct {
	moType   string
	nodeName string
	values   []string
}

// Emitter writes rows for the types of a frozen registry.
type Emitter struct {
	registry *schema.Registry
	factory  output.Factory

	handles map[string]*handle
	order   []string

	file      *types.FileContext
	firstNode string
	staged    []stagedRow

	closed bool
}

// New creates an emitter writing through factory. The registry must not
// change while the emitter is in use.
func New(registry *schema.Registry, factory output.Factory) *Emitter {
	return &Emitter{
		registry: registry,
		factory:  factory,
		handles:  make(map[string]*handle),
	}
}

// Begin starts staging rows for a file. Rows still staged from a previous
// file are dropped.
func (e *Emitter) Begin(file *types.FileContext) {
	e.file = file
	e.firstNode = ""
	e.staged = e.staged[:0]
}

// ObjectClosed implements motree.Handler.
func (e *Emitter) ObjectClosed(file *types.FileContext, obj *types.ManagedObject) error {
	return e.Emit(file, obj)
}

// Emit stages the row of one closed object.
//
// Objects whose type the registry does not know are dropped. For a
// registry loaded from a listing this is how unlisted types are kept out of
// the output; types listed without parameters are dropped as well.
func (e *Emitter) Emit(file *types.FileContext, obj *types.ManagedObject) error {
	if e.closed {
		return fmt.Errorf("emitter is closed")
	}
	if e.file != file {
		e.Begin(file)
	}
	if e.firstNode == "" {
		e.firstNode = file.NodeName
	}

	if !e.registry.Has(obj.Type) {
		return nil
	}

	columns := e.registry.OutputColumns(obj.Type)
	if e.registry.Restricted() && len(columns) == 0 {
		return nil
	}

	values := make([]string, len(columns))
	for i, c := range columns {
		if v, ok := obj.Value(c); ok {
			values[i] = v
		}
	}

	e.staged = append(e.staged, stagedRow{moType: obj.Type, nodeName: file.NodeName, values: values})
	return nil
}

// Staged returns the number of rows waiting for Commit.
func (e *Emitter) Staged() int {
	return len(e.staged)
}

// Commit writes the staged rows of the current file. Rows staged before any
// root name was read get the first root name of the file.
func (e *Emitter) Commit() error {
	if e.closed {
		return fmt.Errorf("emitter is closed")
	}
	defer func() { e.staged = e.staged[:0] }()

	if len(e.staged) == 0 {
		return nil
	}

	fileName, firstNode := "", e.firstNode
	if e.file != nil {
		fileName = e.file.BaseName
		if firstNode == "" {
			firstNode = e.file.NodeName
		}
	}

	for _, row := range e.staged {
		h, err := e.handle(row.moType)
		if err != nil {
			return err
		}
		if !h.headerWritten {
			if err := h.sink.WriteHeader(e.registry.Header(row.moType)); err != nil {
				return fmt.Errorf("failed to write %s header: %w", row.moType, err)
			}
			h.headerWritten = true
		}

		nodeName := row.nodeName
		if nodeName == "" {
			nodeName = firstNode
		}

		fields := make([]string, 0, len(row.values)+2)
		fields = append(fields, fileName, nodeName)
		fields = append(fields, row.values...)

		if err := h.sink.WriteRow(fields); err != nil {
			return fmt.Errorf("failed to write %s row: %w", row.moType, err)
		}
		h.rows++
	}
	return nil
}

// Discard drops the staged rows of the current file.
func (e *Emitter) Discard() {
	e.staged = e.staged[:0]
}

// handle returns the output of a type, opening it on first use.
func (e *Emitter) handle(moType string) (*handle, error) {
	if h, ok := e.handles[moType]; ok {
		return h, nil
	}

	sink, err := e.factory.Open(moType)
	if err != nil {
		return nil, fmt.Errorf("failed to open output for %s: %w", moType, err)
	}

	h := &handle{sink: sink}
	e.handles[moType] = h
	e.order = append(e.order, moType)
	return h, nil
}

// Rows returns the number of rows written for a type.
func (e *Emitter) Rows(moType string) int {
	if h, ok := e.handles[moType]; ok {
		return h.rows
	}
	return 0
}

// Close closes every open output and then the factory. It returns the first
// error encountered. Calling Close again is a no-op.
func (e *Emitter) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.staged = nil

	var first error
	for _, t := range e.order {
		if err := e.handles[t].sink.Close(); err != nil && first == nil {
			first = fmt.Errorf("failed to close output for %s: %w", t, err)
		}
	}
	if err := e.factory.Close(); err != nil && first == nil {
		first = fmt.Errorf("failed to close outputs: %w", err)
	}
	return first
}

package convert

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/beevik/etree"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"gj2kml/config"
	"gj2kml/geojson"
	"gj2kml/kml"
)

// WriteError means split file could not be created or written. Files written
// before it stay in place.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("unable to write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Options controls how placemarks are distributed between files and how files
// are created.
type Options struct {
	Mode          config.SplitMode
	Overwrite     bool
	Transliterate bool
}

// Output describes single written KML file.
type Output struct {
	Path       string
	Placemarks int
	Size       int64
}

// Splitter accumulates placemarks into KML document and writes it out as
// <prefix>_<N>.kml every time size limit is reached.
//
// Size is tracked incrementally: serialized size of styles-only document plus
// serialized size each placemark adds to it. Placemark contribution does not
// depend on its neighbours when document is indented, so tracked size is
// exactly the size of the file being written.
type Splitter struct {
	prefix  string
	limit   int64
	opts    Options
	builder *kml.Builder
	log     *zap.Logger

	// placemarks are measured here before being moved to current document
	scratch    *etree.Document
	scratchBox *etree.Element
	base       int64

	doc       *etree.Document
	container *etree.Element
	count     int
	size      int64

	outputs []Output
}

func NewSplitter(prefix string, limit int64, builder *kml.Builder, opts Options, log *zap.Logger) (*Splitter, error) {
	if limit < 0 {
		return nil, fmt.Errorf("negative size limit %d", limit)
	}
	switch opts.Mode {
	case config.SplitModeDeferred, config.SplitModeInclusive:
	default:
		return nil, fmt.Errorf("unknown split mode %q", opts.Mode)
	}

	s := &Splitter{
		prefix:  prefix,
		limit:   limit,
		opts:    opts,
		builder: builder,
		log:     log.Named("split"),
	}

	s.scratch, s.scratchBox = builder.NewDocument()
	s.scratch.Indent(kml.IndentSpaces)
	base, err := s.scratch.WriteTo(io.Discard)
	if err != nil {
		return nil, fmt.Errorf("unable to serialize empty document: %w", err)
	}
	s.base = base
	s.reset()

	s.log.Debug("Splitter ready", zap.Int64("limit", limit), zap.Int64("base", base), zap.Stringer("mode", opts.Mode))
	return s, nil
}

func (s *Splitter) reset() {
	s.doc, s.container = s.builder.NewDocument()
	s.count, s.size = 0, s.base
}

// measure returns number of bytes placemark adds to serialized document.
func (s *Splitter) measure(pm *etree.Element) (int64, error) {
	s.scratchBox.AddChild(pm)
	defer s.scratchBox.RemoveChild(pm)

	s.scratch.Indent(kml.IndentSpaces)
	n, err := s.scratch.WriteTo(io.Discard)
	if err != nil {
		return 0, err
	}
	return n - s.base, nil
}

// Add translates feature and appends it to the current document, flushing
// documents to disk as necessary.
func (s *Splitter) Add(f *geojson.Feature) error {
	pm := s.builder.Placemark(f)

	delta, err := s.measure(pm)
	if err != nil {
		return fmt.Errorf("unable to serialize feature %d: %w", f.Index, err)
	}

	if s.opts.Mode == config.SplitModeDeferred && s.count > 0 && s.size+delta > s.limit {
		if err := s.flush(); err != nil {
			return err
		}
	}

	s.container.AddChild(pm)
	s.count++
	s.size += delta

	if s.count == 1 && s.size > s.limit {
		s.log.Debug("Single placemark exceeds size limit", zap.Int("feature", f.Index), zap.Int64("size", s.size))
	}

	if s.opts.Mode == config.SplitModeInclusive && s.size > s.limit {
		return s.flush()
	}
	return nil
}

// Close writes out whatever has been accumulated. Nothing is written when
// current document has no placemarks.
func (s *Splitter) Close() error {
	return s.flush()
}

// Outputs returns files written so far in order.
func (s *Splitter) Outputs() []Output {
	return s.outputs
}

func (s *Splitter) flush() error {
	if s.count == 0 {
		return nil
	}

	path := outputName(s.prefix, len(s.outputs)+1)

	s.doc.Indent(kml.IndentSpaces)
	n, err := writeDocument(path, s.doc, s.opts.Overwrite)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if n != s.size {
		s.log.Warn("Written size differs from estimate", zap.String("file", path), zap.Int64("written", n), zap.Int64("estimated", s.size))
	}

	s.outputs = append(s.outputs, Output{Path: path, Placemarks: s.count, Size: n})
	s.log.Debug("KML file written", zap.String("file", path), zap.Int("placemarks", s.count), zap.Int64("size", n))

	s.reset()
	return nil
}

func writeDocument(path string, doc *etree.Document, overwrite bool) (n int64, err error) {
	flags := os.O_CREATE | os.O_WRONLY
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	w := bufio.NewWriter(f)
	if n, err = doc.WriteTo(w); err != nil {
		return n, err
	}
	return n, w.Flush()
}

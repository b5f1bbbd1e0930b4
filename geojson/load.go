package geojson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/buger/jsonparser"
	orbgeojson "github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"gj2kml/archive"
)

// Load reads GeoJSON feature collection from file. Path may go through zip
// archive: "roads.zip" (single GeoJSON file inside) or
// "roads.zip/europe/rome.geojson". All features are checked before returning
// so malformed input is detected before any output is produced.
func Load(path string, log *zap.Logger) (*FeatureCollection, error) {
	name, data, err := readSource(path, log)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	fc, err := Decode(name, data)
	if err != nil {
		return nil, err
	}

	unsupported := 0
	for _, f := range fc.Features {
		if f.Geometry == nil {
			unsupported++
		}
	}
	log.Debug("GeoJSON loaded",
		zap.String("file", name),
		zap.Int("bytes", len(data)),
		zap.Int("lines", fc.Lines),
		zap.Int("features", len(fc.Features)),
		zap.Int("unsupported", unsupported))
	return fc, nil
}

func readSource(path string, log *zap.Logger) (string, []byte, error) {
	zpath, inner, err := archive.Locate(path)
	if err != nil {
		return "", nil, err
	}
	if len(zpath) == 0 {
		data, err := os.ReadFile(path)
		return path, data, err
	}

	entry, data, err := archive.ReadFile(zpath, inner)
	if err != nil {
		return "", nil, err
	}
	log.Debug("Reading from archive", zap.String("archive", zpath), zap.String("entry", entry))
	return filepath.Join(zpath, filepath.FromSlash(entry)), data, nil
}

// Decode parses GeoJSON feature collection from data, name is only used for
// error reporting.
func Decode(name string, data []byte) (*FeatureCollection, error) {
	fc := &FeatureCollection{Name: name, Lines: countLines(data)}

	newParseError := func(offset int, msg string, err error) *ParseError {
		line, col := position(data, offset)
		return &ParseError{Name: name, Line: line, Column: col, Lines: fc.Lines, Msg: msg, Err: err}
	}

	// jsonparser is lenient with broken documents, so syntax is checked
	// first to get precise location of the problem
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var serr *json.SyntaxError
		if errors.As(err, &serr) {
			// offset counts bytes read including the offending one
			return nil, newParseError(int(serr.Offset)-1, serr.Error(), err)
		}
		return nil, newParseError(len(data), err.Error(), err)
	}

	start := len(data) - len(bytes.TrimLeft(data, " \t\r\n"))
	if data[start] != '{' {
		return nil, newParseError(start, "top level value is not an object", nil)
	}

	features, kind, end, err := jsonparser.Get(data, "features")
	if err != nil || kind == jsonparser.NotExist {
		return nil, newParseError(bytes.LastIndexByte(data, '}'), "no \"features\" member in top level object", err)
	}
	if kind != jsonparser.Array {
		return nil, newParseError(end-len(features), "\"features\" is not an array, but "+kind.String(), nil)
	}

	var ferr error
	index := 0
	if _, err := jsonparser.ArrayEach(features, func(value []byte, kind jsonparser.ValueType, _ int, err error) {
		defer func() { index++ }()
		if ferr != nil {
			return
		}
		if err != nil {
			ferr = &MalformedFeatureError{Index: index, Reason: "unable to iterate features", Err: err}
			return
		}
		if kind != jsonparser.Object {
			ferr = &MalformedFeatureError{Index: index, Reason: "feature is not an object, but " + kind.String()}
			return
		}
		f, err := decodeFeature(index, value)
		if err != nil {
			ferr = err
			return
		}
		fc.Features = append(fc.Features, f)
	}); err != nil && ferr == nil {
		ferr = newParseError(end-len(features), "unable to iterate features", err)
	}
	if ferr != nil {
		return nil, ferr
	}
	return fc, nil
}

func decodeFeature(index int, data []byte) (*Feature, error) {
	f := &Feature{Index: index}

	val, kind, _, err := jsonparser.Get(data, "properties")
	if err != nil || kind != jsonparser.Object {
		return nil, &MalformedFeatureError{Index: index, Reason: "\"properties\" is missing or not an object"}
	}
	if f.Properties, err = parseProperties(val); err != nil {
		return nil, &MalformedFeatureError{Index: index, Reason: "unable to parse properties", Err: err}
	}

	geom, kind, _, err := jsonparser.Get(data, "geometry")
	if err != nil || kind != jsonparser.Object {
		return nil, &MalformedFeatureError{Index: index, Reason: "\"geometry\" is missing or not an object"}
	}
	if f.GeometryType, err = jsonparser.GetString(geom, "type"); err != nil {
		return nil, &MalformedFeatureError{Index: index, Reason: "geometry \"type\" is missing or not a string", Err: err}
	}

	if !Supported(f.GeometryType) {
		// not an error, translator skips geometry
		return f, nil
	}

	coords, kind, _, err := jsonparser.Get(geom, "coordinates")
	if err != nil || kind != jsonparser.Array {
		return nil, &MalformedFeatureError{Index: index, Reason: f.GeometryType + " \"coordinates\" are missing or not an array"}
	}
	// orb silently fills short positions with zeros
	if err := checkPositions(coords, positionDepth[f.GeometryType]); err != nil {
		return nil, &MalformedFeatureError{Index: index, Reason: "invalid " + f.GeometryType + " coordinates", Err: err}
	}
	g, err := orbgeojson.UnmarshalGeometry(geom)
	if err != nil {
		return nil, &MalformedFeatureError{Index: index, Reason: "invalid " + f.GeometryType + " coordinates", Err: err}
	}
	f.Geometry = g.Geometry()
	return f, nil
}

// checkPositions makes sure every position nested depth arrays deep in data
// holds at least longitude and latitude and nothing but numbers.
func checkPositions(data []byte, depth int) error {
	var (
		n    int
		perr error
	)
	_, err := jsonparser.ArrayEach(data, func(value []byte, kind jsonparser.ValueType, _ int, err error) {
		defer func() { n++ }()
		switch {
		case perr != nil:
		case err != nil:
			perr = err
		case depth == 0 && kind != jsonparser.Number:
			perr = fmt.Errorf("position %s: member %d is %s, not a number", data, n, kind)
		case depth > 0 && kind != jsonparser.Array:
			perr = fmt.Errorf("expected array of positions, got %s", kind)
		case depth > 0:
			perr = checkPositions(value, depth-1)
		}
	})
	if err != nil {
		return err
	}
	if perr != nil {
		return perr
	}
	if depth == 0 && n < 2 {
		return fmt.Errorf("position %s has %d members, longitude and latitude are required", data, n)
	}
	return nil
}

// countLines returns number of lines in data, last line does not need to be
// terminated.
func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}

// position converts byte offset into 1-based line and column.
func position(data []byte, offset int) (int, int) {
	offset = max(0, min(offset, len(data)))
	line := 1 + bytes.Count(data[:offset], []byte{'\n'})
	col := offset - bytes.LastIndexByte(data[:offset], '\n')
	return line, col
}

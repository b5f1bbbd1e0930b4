// Package geojson loads GeoJSON feature collections keeping property order
// intact.
package geojson

import (
	"github.com/paulmach/orb"
)

// Geometry types we know how to translate.
const (
	TypePoint           = "Point"
	TypeLineString      = "LineString"
	TypePolygon         = "Polygon"
	TypeMultiPoint      = "MultiPoint"
	TypeMultiLineString = "MultiLineString"
	TypeMultiPolygon    = "MultiPolygon"
)

// nesting of positions inside "coordinates" for every supported type, 0 means
// "coordinates" is a position itself
var positionDepth = map[string]int{
	TypePoint:           0,
	TypeLineString:      1,
	TypeMultiPoint:      1,
	TypePolygon:         2,
	TypeMultiLineString: 2,
	TypeMultiPolygon:    3,
}

// Supported reports if geometry type is one of the six simple kinds.
func Supported(geomType string) bool {
	_, ok := positionDepth[geomType]
	return ok
}

type Feature struct {
	// Index is zero based position of the feature in the collection.
	Index      int
	Properties Properties
	// GeometryType is the value of geometry "type" member as found in source.
	GeometryType string
	// Geometry is nil when GeometryType is not supported.
	Geometry orb.Geometry
}

type FeatureCollection struct {
	// Name is where collection came from, file path usually.
	Name     string
	Features []*Feature
	// Lines is number of lines read from the source.
	Lines int
}

func (fc *FeatureCollection) Len() int {
	if fc == nil {
		return 0
	}
	return len(fc.Features)
}

package kml

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/paulmach/orb"

	"gj2kml/geojson"
)

// AppendGeometry adds KML geometry for g to parent. Multi geometries are
// flattened into sibling elements rather than wrapped into MultiGeometry.
// Returns false when geometry kind is not supported, parent is left unchanged
// then.
func AppendGeometry(parent *etree.Element, g orb.Geometry) bool {
	switch g := g.(type) {
	case orb.Point:
		appendPoint(parent, g)
	case orb.LineString:
		appendLineString(parent, g)
	case orb.Polygon:
		appendPolygon(parent, g)
	case orb.MultiPoint:
		for _, p := range g {
			appendPoint(parent, p)
		}
	case orb.MultiLineString:
		for _, ls := range g {
			appendLineString(parent, ls)
		}
	case orb.MultiPolygon:
		for _, p := range g {
			appendPolygon(parent, p)
		}
	default:
		return false
	}
	return true
}

func appendPoint(parent *etree.Element, p orb.Point) {
	parent.CreateElement("Point").CreateElement("coordinates").SetText(formatPoint(p))
}

func appendLineString(parent *etree.Element, ls orb.LineString) {
	parent.CreateElement("LineString").CreateElement("coordinates").SetText(formatPoints(ls))
}

func appendPolygon(parent *etree.Element, p orb.Polygon) {
	poly := parent.CreateElement("Polygon")
	for _, r := range p {
		poly.CreateElement("LinearRing").CreateElement("coordinates").SetText(formatPoints(r))
	}
}

func formatPoint(p orb.Point) string {
	return geojson.FormatFloat(p.Lon()) + "," + geojson.FormatFloat(p.Lat())
}

func formatPoints[T ~[]orb.Point](points T) string {
	var sb strings.Builder
	for i, p := range points {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(formatPoint(p))
	}
	return sb.String()
}

// Package kml translates GeoJSON features into KML 2.2 element trees.
package kml

import (
	"strconv"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"gj2kml/config"
	"gj2kml/geojson"
)

const (
	Namespace = "http://www.opengis.net/kml/2.2"
	// IndentSpaces is used for every serialized document.
	IndentSpaces = 2
)

// Builder creates KML documents and placemarks according to document
// configuration. It is not safe for concurrent use.
type Builder struct {
	cfg  *config.DocumentConfig
	skip SkipList
	log  *zap.Logger

	// geometry types we already complained about
	reported map[string]struct{}
}

func NewBuilder(cfg *config.DocumentConfig, log *zap.Logger) *Builder {
	return &Builder{
		cfg:      cfg,
		skip:     NewSkipList(cfg.SkipProperties),
		log:      log.Named("kml"),
		reported: make(map[string]struct{}),
	}
}

// NewDocument returns new KML document with style block already in place and
// its Document element where placemarks should go.
func (b *Builder) NewDocument() (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	// carriage returns in text must survive XML end-of-line normalization
	doc.WriteSettings.CanonicalText = true
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("kml")
	root.CreateAttr("xmlns", Namespace)

	container := root.CreateElement("Document")
	for _, st := range []config.StyleConfig{b.cfg.Styles.Common, b.cfg.Styles.Major} {
		style := container.CreateElement("Style")
		style.CreateAttr("id", st.ID)
		style.CreateElement("LineStyle").CreateElement("width").SetText(strconv.FormatFloat(st.Width, 'f', -1, 64))
	}
	return doc, container
}

// Placemark builds detached Placemark element for the feature. Features
// without supported geometry produce placemark with no geometry.
func (b *Builder) Placemark(f *geojson.Feature) *etree.Element {
	pm := etree.NewElement("Placemark")
	pm.CreateElement("name").SetText(b.Name(f.Properties))

	desc := pm.CreateElement("description")
	if text := Describe(f.Properties, b.skip); len(text) > 0 {
		desc.SetText(text)
	}

	pm.CreateElement("styleUrl").SetText(b.ResolveStyle(f.Properties))

	if !AppendGeometry(pm, f.Geometry) {
		b.reportUnsupported(f)
	}
	return pm
}

// Name returns placemark name, configured default is used when name property
// is absent, null or has empty text.
func (b *Builder) Name(props geojson.Properties) string {
	v, ok := props.Get(b.cfg.NameProperty)
	if !ok || v.IsNull() {
		return b.cfg.DefaultName
	}
	if text := v.Text(); len(text) > 0 {
		return text
	}
	return b.cfg.DefaultName
}

// ResolveStyle returns style reference for the feature.
func (b *Builder) ResolveStyle(props geojson.Properties) string {
	if IsMajor(props, b.cfg.Styles.MajorProperty) {
		return "#" + b.cfg.Styles.Major.ID
	}
	return "#" + b.cfg.Styles.Common.ID
}

// IsMajor is true only when property is integer JSON number equal to 1.
func IsMajor(props geojson.Properties, key string) bool {
	v, ok := props.Get(key)
	if !ok {
		return false
	}
	n, err := v.AsInt()
	return err == nil && n == 1
}

func (b *Builder) reportUnsupported(f *geojson.Feature) {
	if _, ok := b.reported[f.GeometryType]; !ok {
		b.reported[f.GeometryType] = struct{}{}
		b.log.Warn("Unsupported geometry type, placemark will have no geometry",
			zap.String("type", f.GeometryType), zap.Int("feature", f.Index))
		return
	}
	b.log.Debug("Unsupported geometry type", zap.String("type", f.GeometryType), zap.Int("feature", f.Index))
}

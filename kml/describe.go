package kml

import (
	"strings"

	"gj2kml/geojson"
)

// SkipList is a set of property keys never copied to placemark description.
// Keys are case sensitive.
type SkipList map[string]struct{}

func NewSkipList(keys []string) SkipList {
	sl := make(SkipList, len(keys))
	for _, k := range keys {
		sl[k] = struct{}{}
	}
	return sl
}

func (sl SkipList) Contains(key string) bool {
	_, ok := sl[key]
	return ok
}

// Describe renders properties as "key: value" lines in source order. Skipped
// keys and values which are null, "null" or empty are left out.
func Describe(props geojson.Properties, skip SkipList) string {
	var sb strings.Builder
	for _, p := range props {
		if skip.Contains(p.Key) || p.Value.IsNull() {
			continue
		}
		text := p.Value.Text()
		if len(text) == 0 || text == "null" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(p.Key)
		sb.WriteString(": ")
		sb.WriteString(text)
	}
	return sb.String()
}

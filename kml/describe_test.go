package kml

import (
	"testing"

	"gj2kml/geojson"
)

func TestDescribe_ScenarioD(t *testing.T) {
	skip := NewSkipList(defaultDocumentConfig(t).SkipProperties)

	f := decodeOne(t, `{"properties":{"LENGTH":42,"Name":"Elm St","Surface":"gravel","Lanes":2},"geometry":{"type":"Point","coordinates":[0,0]}}`)
	want := "Name: Elm St\nSurface: gravel\nLanes: 2"
	if got := Describe(f.Properties, skip); got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}
}

func TestDescribe(t *testing.T) {
	skip := NewSkipList([]string{"pid", "Lat"})

	tests := []struct {
		name  string
		props string
		want  string
	}{
		{"empty", `{}`, ""},
		{"order kept", `{"z":1,"a":"b","m":true}`, "z: 1\na: b\nm: true"},
		{"skip is case sensitive", `{"pid":1,"PID":2,"lat":3,"Lat":4}`, "PID: 2\nlat: 3"},
		{"null and empty dropped", `{"a":null,"b":"","c":"null","d":"x"}`, "d: x"},
		{"numbers as written", `{"a":-0.25,"b":100,"c":1.50}`, "a: -0.25\nb: 100\nc: 1.5"},
		{"compound values", `{"a":[1, 2],"b":{"c": "d"},"e":[]}`, "a: [1,2]\nb: {\"c\":\"d\"}\ne: []"},
		{"escaped strings", `{"a":"line\nbreak","b":"tab\there"}`, "a: line\nbreak\nb: tab\there"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := decodeOne(t, `{"properties":`+tt.props+`,"geometry":{"type":"Point","coordinates":[0,0]}}`)
			if got := Describe(f.Properties, skip); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSkipList(t *testing.T) {
	sl := NewSkipList([]string{"LENGTH", "pid"})
	if !sl.Contains("LENGTH") || !sl.Contains("pid") {
		t.Errorf("SkipList should contain configured keys")
	}
	if sl.Contains("length") || sl.Contains("") {
		t.Errorf("SkipList should not contain other keys")
	}

	var empty SkipList
	if empty.Contains("pid") {
		t.Errorf("nil SkipList should not contain anything")
	}
	if got := Describe(geojson.Properties{}, empty); got != "" {
		t.Errorf("Describe() of no properties = %q", got)
	}
}

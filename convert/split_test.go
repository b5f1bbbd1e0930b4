package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"gj2kml/config"
	"gj2kml/kml"
)

func testLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

func testDocumentConfig(t *testing.T) *config.DocumentConfig {
	t.Helper()
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return &cfg.Document
}

// roadsCollection produces n LineString features, each serializing to
// roughly 1.5-2KB of KML.
func roadsCollection(n, points int) string {
	var sb strings.Builder
	sb.WriteString(`{"type":"FeatureCollection","features":[`)
	for i := range n {
		if i > 0 {
			sb.WriteString(",\n")
		}
		fmt.Fprintf(&sb, `{"type":"Feature","properties":{"Name":"Road %04d","Major_or_M":%d,"LENGTH":12.5},"geometry":{"type":"LineString","coordinates":[`, i, i%2)
		for j := range points {
			if j > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "[12.%06d,41.%06d]", (i*points+j)%1000000, (i+j*7)%1000000)
		}
		sb.WriteString(`]}}`)
	}
	sb.WriteString("]}\n")
	return sb.String()
}

func writeInput(t *testing.T, dir, data string) string {
	t.Helper()
	path := filepath.Join(dir, "input.geojson")
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func placemarkNames(t *testing.T, outputs []Output) []string {
	t.Helper()
	var names []string
	for _, o := range outputs {
		doc := etree.NewDocument()
		if err := doc.ReadFromFile(o.Path); err != nil {
			t.Fatalf("output %s is not well formed: %v", o.Path, err)
		}
		if doc.Root() == nil || doc.Root().Tag != "kml" {
			t.Fatalf("output %s has no kml root", o.Path)
		}
		if n := len(doc.FindElements("/kml/Document/Style")); n != 2 {
			t.Errorf("output %s has %d styles, want 2", o.Path, n)
		}
		pms := doc.FindElements("/kml/Document/Placemark")
		if len(pms) != o.Placemarks {
			t.Errorf("output %s has %d placemarks, reported %d", o.Path, len(pms), o.Placemarks)
		}
		for _, pm := range pms {
			names = append(names, pm.FindElement("name").Text())
		}
	}
	return names
}

func TestConvert_ScenarioB(t *testing.T) {
	for _, mode := range []config.SplitMode{config.SplitModeDeferred, config.SplitModeInclusive} {
		t.Run(mode.String(), func(t *testing.T) {
			dir := t.TempDir()
			src := writeInput(t, dir, roadsCollection(1000, 85))

			const limit = 1 * bytesPerMB
			outputs, err := Convert(context.Background(), src, filepath.Join(dir, "roads"), limit,
				testDocumentConfig(t), Options{Mode: mode, Overwrite: true}, testLogger(t))
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}
			if len(outputs) != 2 {
				t.Fatalf("Convert() produced %d files, want 2", len(outputs))
			}

			total := 0
			for i, o := range outputs {
				if want := filepath.Join(dir, fmt.Sprintf("roads_%d.kml", i+1)); o.Path != want {
					t.Errorf("output %d path = %s, want %s", i, o.Path, want)
				}
				fi, err := os.Stat(o.Path)
				if err != nil {
					t.Fatalf("stat %s: %v", o.Path, err)
				}
				if fi.Size() != o.Size {
					t.Errorf("output %s size %d, reported %d", o.Path, fi.Size(), o.Size)
				}
				if mode == config.SplitModeDeferred && o.Size > limit {
					t.Errorf("output %s size %d exceeds limit %d", o.Path, o.Size, limit)
				}
				total += o.Placemarks
			}
			if total != 1000 {
				t.Errorf("placemarks total = %d, want 1000", total)
			}

			// order preservation across files
			names := placemarkNames(t, outputs)
			if len(names) != 1000 {
				t.Fatalf("found %d placemarks, want 1000", len(names))
			}
			for i, n := range names {
				if want := fmt.Sprintf("Road %04d", i); n != want {
					t.Fatalf("placemark %d is %q, want %q", i, n, want)
				}
			}
		})
	}
}

func TestConvert_Idempotent(t *testing.T) {
	dir := t.TempDir()
	src := writeInput(t, dir, roadsCollection(60, 40))
	prefix := filepath.Join(dir, "out", "roads")

	run := func() [][]byte {
		outputs, err := Convert(context.Background(), src, prefix, 32*1024,
			testDocumentConfig(t), Options{Mode: config.SplitModeDeferred, Overwrite: true}, testLogger(t))
		if err != nil {
			t.Fatalf("Convert() error = %v", err)
		}
		var res [][]byte
		for _, o := range outputs {
			data, err := os.ReadFile(o.Path)
			if err != nil {
				t.Fatalf("read %s: %v", o.Path, err)
			}
			res = append(res, data)
		}
		return res
	}

	first := run()
	second := run()
	if len(first) < 2 || len(first) != len(second) {
		t.Fatalf("runs produced %d and %d files", len(first), len(second))
	}
	for i := range first {
		if !bytes.Equal(first[i], second[i]) {
			t.Errorf("file %d differs between runs", i+1)
		}
	}
}

func TestConvert_OversizedFeature(t *testing.T) {
	dir := t.TempDir()
	data := `{"features":[
{"properties":{"Name":"small 1"},"geometry":{"type":"Point","coordinates":[1,2]}},
` + strings.TrimSuffix(strings.TrimPrefix(roadsCollection(1, 400), `{"type":"FeatureCollection","features":[`), "]}\n") + `,
{"properties":{"Name":"small 2"},"geometry":{"type":"Point","coordinates":[3,4]}}
]}`
	src := writeInput(t, dir, data)

	const limit = 2000
	for _, tt := range []struct {
		mode   config.SplitMode
		counts []int
	}{
		// oversized feature is alone in its file, nothing is dropped
		{config.SplitModeDeferred, []int{1, 1, 1}},
		// oversized feature closes the file it was added to
		{config.SplitModeInclusive, []int{2, 1}},
	} {
		t.Run(tt.mode.String(), func(t *testing.T) {
			prefix := filepath.Join(dir, tt.mode.String())
			outputs, err := Convert(context.Background(), src, prefix, limit,
				testDocumentConfig(t), Options{Mode: tt.mode, Overwrite: true}, testLogger(t))
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}
			var counts []int
			for _, o := range outputs {
				counts = append(counts, o.Placemarks)
			}
			if fmt.Sprint(counts) != fmt.Sprint(tt.counts) {
				t.Fatalf("placemarks per file = %v, want %v", counts, tt.counts)
			}
			names := placemarkNames(t, outputs)
			if strings.Join(names, ",") != "small 1,Road 0000,small 2" {
				t.Errorf("placemarks = %v", names)
			}
			if tt.mode == config.SplitModeDeferred {
				for i, o := range outputs {
					if i != 1 && o.Size > limit {
						t.Errorf("output %s size %d exceeds limit", o.Path, o.Size)
					}
				}
				if outputs[1].Size <= limit {
					t.Errorf("oversized feature should produce file over limit, got %d", outputs[1].Size)
				}
			}
		})
	}
}

func TestConvert_DefaultSplitMode(t *testing.T) {
	dir := t.TempDir()
	src := writeInput(t, dir, roadsCollection(3, 20))
	cfg := testDocumentConfig(t)

	whole, err := Convert(context.Background(), src, filepath.Join(dir, "whole"), 1<<40,
		cfg, Options{Mode: cfg.Split.Mode, Overwrite: true}, testLogger(t))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if len(whole) != 1 {
		t.Fatalf("expected single output, got %d", len(whole))
	}

	// second placemark crosses the limit and stays with the first one
	limit := whole[0].Size * 2 / 3
	outputs, err := Convert(context.Background(), src, filepath.Join(dir, "split"), limit,
		cfg, Options{Mode: cfg.Split.Mode, Overwrite: true}, testLogger(t))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	var counts []int
	for _, o := range outputs {
		counts = append(counts, o.Placemarks)
	}
	if fmt.Sprint(counts) != "[2 1]" {
		t.Fatalf("placemarks per file = %v, want [2 1]", counts)
	}
	if names := placemarkNames(t, outputs); strings.Join(names, ",") != "Road 0000,Road 0001,Road 0002" {
		t.Errorf("placemarks = %v", names)
	}
	if outputs[0].Size <= limit {
		t.Errorf("first file size %d should be over limit %d", outputs[0].Size, limit)
	}
}

func TestConvert_ZeroLimit(t *testing.T) {
	dir := t.TempDir()
	src := writeInput(t, dir, roadsCollection(3, 2))

	outputs, err := Convert(context.Background(), src, filepath.Join(dir, "zero"), 0,
		testDocumentConfig(t), Options{Mode: config.SplitModeDeferred, Overwrite: true}, testLogger(t))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if len(outputs) != 3 {
		t.Errorf("zero limit should produce one file per feature, got %d", len(outputs))
	}
}

func TestConvert_ScenarioE(t *testing.T) {
	dir := t.TempDir()
	src := writeInput(t, dir, `{"type":"FeatureCollection","features":[]}`)

	outputs, err := Convert(context.Background(), src, filepath.Join(dir, "empty"), bytesPerMB,
		testDocumentConfig(t), Options{Mode: config.SplitModeDeferred, Overwrite: true}, testLogger(t))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if len(outputs) != 0 {
		t.Errorf("Convert() produced %d files, want 0", len(outputs))
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.kml"))
	if len(matches) != 0 {
		t.Errorf("unexpected files written: %v", matches)
	}
}

func TestConvert_NoOverwrite(t *testing.T) {
	dir := t.TempDir()
	src := writeInput(t, dir, roadsCollection(2, 2))
	prefix := filepath.Join(dir, "roads")

	existing := prefix + "_1.kml"
	if err := os.WriteFile(existing, []byte("keep me"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	outputs, err := Convert(context.Background(), src, prefix, bytesPerMB,
		testDocumentConfig(t), Options{Mode: config.SplitModeDeferred, Overwrite: false}, testLogger(t))
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("Convert() error = %v (%T), want *WriteError", err, err)
	}
	if werr.Path != existing || !errors.Is(err, os.ErrExist) {
		t.Errorf("WriteError = %v", werr)
	}
	if len(outputs) != 0 {
		t.Errorf("no outputs expected, got %v", outputs)
	}
	if data, _ := os.ReadFile(existing); string(data) != "keep me" {
		t.Errorf("existing file was modified")
	}
}

func TestConvert_Errors(t *testing.T) {
	dir := t.TempDir()
	cfg := testDocumentConfig(t)
	opts := Options{Mode: config.SplitModeDeferred, Overwrite: true}

	t.Run("missing input", func(t *testing.T) {
		_, err := Convert(context.Background(), filepath.Join(dir, "missing.geojson"), filepath.Join(dir, "x"), bytesPerMB, cfg, opts, testLogger(t))
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("malformed feature writes nothing", func(t *testing.T) {
		src := writeInput(t, t.TempDir(), `{"features":[
{"properties":{},"geometry":{"type":"Point","coordinates":[1,2]}},
{"geometry":{"type":"Point","coordinates":[1,2]}}]}`)
		prefix := filepath.Join(filepath.Dir(src), "bad")
		outputs, err := Convert(context.Background(), src, prefix, 0, cfg, opts, testLogger(t))
		if err == nil || len(outputs) != 0 {
			t.Fatalf("Convert() = %v, %v", outputs, err)
		}
		if _, err := os.Stat(prefix + "_1.kml"); !os.IsNotExist(err) {
			t.Errorf("no file should be written for malformed input")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		src := writeInput(t, t.TempDir(), roadsCollection(2, 2))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Convert(ctx, src, filepath.Join(filepath.Dir(src), "c"), bytesPerMB, cfg, opts, testLogger(t))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Convert() error = %v, want context.Canceled", err)
		}
	})
}

func TestNewSplitter_Validation(t *testing.T) {
	cfg := testDocumentConfig(t)
	log := testLogger(t)
	b := kml.NewBuilder(cfg, log)

	if _, err := NewSplitter("x", -1, b, Options{Mode: config.SplitModeDeferred}, log); err == nil {
		t.Error("expected error for negative limit")
	}
	if _, err := NewSplitter("x", 1, b, Options{Mode: "greedy"}, log); err == nil {
		t.Error("expected error for unknown mode")
	}
	s, err := NewSplitter("x", 1, b, Options{Mode: config.SplitModeInclusive}, log)
	if err != nil {
		t.Fatalf("NewSplitter() error = %v", err)
	}
	// closing without placemarks writes nothing
	if err := s.Close(); err != nil || len(s.Outputs()) != 0 {
		t.Errorf("Close() = %v, outputs %v", err, s.Outputs())
	}
}

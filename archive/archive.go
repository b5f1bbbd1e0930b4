// Package archive reads GeoJSON sources packed into zip archives.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/h2non/filetype"
	"github.com/maruel/natural"
)

// ErrNoSource is returned when nothing in archive looks like GeoJSON.
var ErrNoSource = errors.New("no GeoJSON file found in archive")

// headerSize is enough for filetype to recognize any of the supported
// formats.
const headerSize = 262

// WalkFunc is the type of the function called for each file in archive
// visited by Walk. If an error is returned, processing stops.
type WalkFunc func(archive string, file *zip.File) error

// Walk calls walkFn for every regular file in the archive which name starts
// with prefix. Entries with absolute paths or ".." components make the whole
// archive unacceptable.
func Walk(archive, prefix string, walkFn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if !f.FileInfo().IsDir() && strings.HasPrefix(name, prefix) {
			if err := walkFn(archive, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// IsArchive reports whether file contents look like zip archive.
func IsArchive(file string) (bool, error) {
	f, err := os.Open(file)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, headerSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return filetype.Is(head[:n], "zip"), nil
}

// Locate splits src into the archive on disk and the path inside of it,
// for example "data/roads.zip/europe/rome.geojson" gives "data/roads.zip" and
// "europe/rome.geojson". It returns empty archive when src does not go
// through zip archive.
func Locate(src string) (archive, inner string, err error) {
	var head string
	for head = src; len(head) != 0; head, _ = filepath.Split(head) {
		head = strings.TrimSuffix(head, string(filepath.Separator))
		if len(head) == 0 {
			break
		}

		fi, err := os.Stat(head)
		if err != nil {
			// does not exist - probably path in archive
			continue
		}
		if !fi.Mode().IsRegular() {
			return "", "", nil
		}

		ok, err := IsArchive(head)
		if err != nil {
			return "", "", fmt.Errorf("unable to check archive type: %w", err)
		}
		if !ok {
			return "", "", nil
		}
		inner = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
		return head, filepath.ToSlash(inner), nil
	}
	return "", "", nil
}

// ReadFile returns the name and contents of the GeoJSON file inside archive.
// When inner names an entry exactly that entry is used, otherwise inner is
// treated as directory and it must hold exactly one file with ".geojson" or
// ".json" extension.
func ReadFile(archive, inner string) (string, []byte, error) {
	var (
		exact      string
		candidates []string
	)

	dir := strings.TrimSuffix(inner, "/") + "/"
	err := Walk(archive, inner, func(_ string, f *zip.File) error {
		name := f.FileHeader.Name
		switch {
		case name == inner:
			exact = name
		case len(inner) > 0 && !strings.HasPrefix(name, dir):
			// "roads" must not match "roads2/a.geojson"
		case isGeoJSONName(name):
			candidates = append(candidates, name)
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	selected := exact
	if len(selected) == 0 {
		switch len(candidates) {
		case 0:
			return "", nil, fmt.Errorf("%w: %s", ErrNoSource, path.Join(archive, inner))
		case 1:
			selected = candidates[0]
		default:
			sort.Sort(natural.StringSlice(candidates))
			return "", nil, fmt.Errorf("archive %s holds more than one GeoJSON file, select one of: %s", archive, strings.Join(candidates, ", "))
		}
	}

	// entries are only readable while archive is open
	var data []byte
	err = Walk(archive, selected, func(_ string, f *zip.File) error {
		if f.FileHeader.Name != selected || data != nil {
			return nil
		}
		var err error
		if data, err = readEntry(f); err != nil {
			return fmt.Errorf("unable to read %s from archive %s: %w", selected, archive, err)
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return selected, data, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	r, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func isGeoJSONName(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".geojson", ".json":
		return true
	}
	return false
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

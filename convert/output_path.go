package convert

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gosimple/slug"

	"gj2kml/config"
)

// buildOutputPrefix makes sure directory of the requested prefix exists. Prefix
// is used as is unless transliteration is requested, then its base name is
// transliterated and cleaned up.
func buildOutputPrefix(prefix string, transliterate bool) (string, error) {
	dir, base := filepath.Split(prefix)
	if len(dir) > 0 {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("unable to create output directory '%s': %w", dir, err)
		}
	}
	if !transliterate {
		return prefix, nil
	}

	base = config.CleanFileName(slug.Make(base))
	if len(dir) == 0 {
		return base, nil
	}
	return filepath.Join(dir, base), nil
}

// outputName returns name of the split file, index starts with 1.
func outputName(prefix string, index int) string {
	return fmt.Sprintf("%s_%d.kml", prefix, index)
}

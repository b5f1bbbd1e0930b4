package config

// SplitMode decides where the placemark that pushes a document over the size
// budget ends up.
type SplitMode string

const (
	// SplitModeDeferred starts the next file with the overflowing placemark.
	SplitModeDeferred SplitMode = "deferred"
	// SplitModeInclusive writes the overflowing placemark together with the
	// document it overflowed.
	SplitModeInclusive SplitMode = "inclusive"
)

func (m SplitMode) String() string {
	return string(m)
}

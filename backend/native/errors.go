package native

import "errors"

var (
	// ErrNoBackend is returned when no HAL backend is linked into the binary.
	ErrNoBackend = errors.New("native: no HAL backend registered")

	// ErrNoSurface is returned when presenting to a window without a HAL
	// instance to create the surface from.
	ErrNoSurface = errors.New("native: window presentation needs a HAL instance")

	// ErrNotHeadless is returned by Capture on a device presenting to a window.
	ErrNotHeadless = errors.New("native: capture requires a headless device")
)

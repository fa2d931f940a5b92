package rhi

// DisplayMode is one resolution an output supports.
type DisplayMode struct {
	Width       uint32
	Height      uint32
	RefreshRate uint32
}

// WindowHandle identifies the native window a device presents to. The zero
// value selects headless presentation into device-allocated images.
type WindowHandle struct {
	// Display is the platform display or instance handle (HINSTANCE,
	// Display*, NSWindow*), Window the window handle (HWND, Window, NSView*).
	Display uintptr
	Window  uintptr

	// Modes lists the display modes of the window's output, preferred
	// first. It may be empty.
	Modes []DisplayMode
}

// Headless reports whether h names no window.
func (h WindowHandle) Headless() bool {
	return h.Window == 0
}

// SelectDisplayMode picks the mode matching width x height. When none
// matches it falls back to the first mode and reports false. With no modes
// at all it returns the requested size and reports false.
func SelectDisplayMode(modes []DisplayMode, width, height uint32) (DisplayMode, bool) {
	for _, m := range modes {
		if m.Width == width && m.Height == height {
			return m, true
		}
	}
	if len(modes) > 0 {
		return modes[0], false
	}
	return DisplayMode{Width: width, Height: height}, false
}

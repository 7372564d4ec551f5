package components

// Key groups:
// 1. Global - available in every view
// 2. View-specific - sessions list, filter panel, session detail

// Global keys
const (
	KeyQuit    = "ctrl+c"
	KeyQuitAlt = "q"

	KeyEscape    = "esc"
	KeyEnter     = "enter"
	KeySpace     = " "
	KeyTab       = "tab"
	KeyShiftTab  = "shift+tab"
	KeyBackspace = "backspace"
)

// Navigation keys
const (
	KeyUp       = "up"
	KeyDown     = "down"
	KeyLeft     = "left"
	KeyRight    = "right"
	KeyPageUp   = "pgup"
	KeyPageDown = "pgdown"
	KeyHome     = "home"
	KeyEnd      = "end"
)

// Vim-style navigation
const (
	KeyVimUp    = "k"
	KeyVimDown  = "j"
	KeyVimLeft  = "h"
	KeyVimRight = "l"
	KeyVimTop   = "g"
	KeyVimEnd   = "G"
)

// Sessions view keys
const (
	KeyFilters = "f"
	KeyRefresh = "r"
	KeySort    = "s"
	KeyOrder   = "o"
)

// Filter panel keys
const (
	KeyApply = "ctrl+s"
	KeyReset = "ctrl+r"
)

// Detail view keys
const (
	KeyExpandAll   = "e"
	KeyCollapseAll = "c"
)

// IsUp reports whether key moves the cursor up.
func IsUp(key string) bool {
	return key == KeyUp || key == KeyVimUp
}

// IsDown reports whether key moves the cursor down.
func IsDown(key string) bool {
	return key == KeyDown || key == KeyVimDown
}

// IsLeft reports whether key moves left or cycles a value backwards.
func IsLeft(key string) bool {
	return key == KeyLeft || key == KeyVimLeft
}

// IsRight reports whether key moves right or cycles a value forwards.
func IsRight(key string) bool {
	return key == KeyRight || key == KeyVimRight
}

package tui

import (
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// truncateToWidth cuts s to at most w terminal columns, ending in an ellipsis when cut.
func truncateToWidth(s string, w int) string {
	if w <= 0 {
		return ""
	}
	if xansi.StringWidth(s) <= w {
		return s
	}
	if w == 1 {
		return xansi.Cut(s, 0, 1)
	}
	return xansi.Cut(s, 0, w-1) + "…"
}

// padOrCutANSI forces s to exactly w columns.
func padOrCutANSI(s string, w int) string {
	s = truncateToWidth(s, w)
	if n := xansi.StringWidth(s); n < w {
		s += strings.Repeat(" ", w-n)
	}
	return s
}

// padLeftANSI right-aligns s in w columns.
func padLeftANSI(s string, w int) string {
	s = truncateToWidth(s, w)
	if n := xansi.StringWidth(s); n < w {
		s = strings.Repeat(" ", w-n) + s
	}
	return s
}

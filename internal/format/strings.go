package format

import "strings"

// TruncateWithEllipsis cuts s to maxWidth runes, ending in "..." when
// something was cut. Widths under 4 hard-truncate.
func TruncateWithEllipsis(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}

	runes := []rune(s)
	if len(runes) <= maxWidth {
		return s
	}
	if maxWidth < 4 {
		return string(runes[:maxWidth])
	}
	return string(runes[:maxWidth-3]) + "..."
}

// KeyValue renders "key: value" pairs aligned on the colon, one per line.
func KeyValue(pairs [][2]string) string {
	width := 0
	for _, p := range pairs {
		if n := len([]rune(p[0])); n > width {
			width = n
		}
	}
	var sb strings.Builder
	for i, p := range pairs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(p[0])
		sb.WriteString(":")
		sb.WriteString(strings.Repeat(" ", width-len([]rune(p[0]))+1))
		sb.WriteString(p[1])
	}
	return sb.String()
}

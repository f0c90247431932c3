package renderer

import (
	"fmt"
	"strings"
	"time"
)

// truncateWithEllipsis shortens preview to at most limit runes, appending
// "..." when it had to cut.
func truncateWithEllipsis(preview string, limit int) string {
	if limit <= 0 {
		return preview
	}
	runes := []rune(preview)
	if len(runes) <= limit {
		return preview
	}
	const ellipsis = "..."
	if limit <= len(ellipsis) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(ellipsis)]) + ellipsis
}

// formatDurationShort renders a duration the way a terminal status line
// wants it: compact units, no sub-component noise once it gets long.
func formatDurationShort(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		seconds := d.Seconds()
		if seconds < 10 {
			return fmt.Sprintf("%.2fs", seconds)
		}
		if seconds < 100 {
			return fmt.Sprintf("%.1fs", seconds)
		}
		return fmt.Sprintf("%.0fs", seconds)
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%02ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%02dm", hours, minutes)
}

// formatArgs renders a tool call's arguments as a single-line preview,
// clipped well short of a full-screen dump.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, 0, len(args))
	for k, v := range args {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return truncateWithEllipsis(strings.Join(parts, " "), 120)
}

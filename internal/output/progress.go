package output

import (
	"fmt"
	"strings"
)

// CountBar renders a bar of width cells, filled in proportion to count/max.
// Example: "███░░░░░░░ 3"
func CountBar(count, max, width int) string {
	if width <= 0 {
		width = 10
	}
	filled := 0
	if max > 0 {
		filled = count * width / max
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %s", StyleMuted.Render(bar), StyleBold.Render(fmt.Sprintf("%d", count)))
}

// TrendArrow returns a styled trend indicator for an integer delta.
// Positive delta shows an up arrow, negative shows down, zero shows a dash.
// higherIsBetter selects which direction is styled as an improvement.
func TrendArrow(delta int, higherIsBetter bool) string {
	if delta == 0 {
		return StyleMuted.Render("─")
	}

	isPositive := delta > 0
	isImproved := (isPositive && higherIsBetter) || (!isPositive && !higherIsBetter)

	var arrow string
	if isPositive {
		arrow = fmt.Sprintf("▲ +%d", delta)
	} else {
		arrow = fmt.Sprintf("▼ %d", delta)
	}

	if isImproved {
		return StyleSuccess.Render(arrow)
	}
	return StyleError.Render(arrow)
}

// Section returns a styled section header with a horizontal rule.
func Section(title string) string {
	header := StyleHeader.Render(title)
	rule := StyleMuted.Render(strings.Repeat("─", 66))
	return fmt.Sprintf("\n %s\n %s", header, rule)
}

package components

import (
	"fmt"
	"strings"
)

const (
	filledChar = "■"
	emptyChar  = "□"
)

// ProgressBar renders a percent-based progress bar like: ■■■■□□□□ 50%
type ProgressBar struct {
	Percent int // 0-100
	Width   int // character width of the bar portion
}

// NewProgressBar creates a new ProgressBar instance.
func NewProgressBar(percent, width int) ProgressBar {
	return ProgressBar{
		Percent: percent,
		Width:   width,
	}
}

// View returns the rendered progress bar string.
func (p ProgressBar) View() string {
	if p.Width <= 0 {
		return ""
	}

	percent := p.Percent
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := (percent * p.Width) / 100
	bar := strings.Repeat(filledChar, filled) + strings.Repeat(emptyChar, p.Width-filled)

	return fmt.Sprintf("%s %d%%", bar, percent)
}

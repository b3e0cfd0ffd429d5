package ui

import (
	"fmt"
	"math"
	"strings"

	runewidth "github.com/mattn/go-runewidth"

	"github.com/dgnsrekt/troupe/agent"
)

const (
	meterNameWidth = 12
	meterBarWidth  = 10
)

// meter draws one character's mouth openness as a bar.
func meter(name string, f agent.Frame) string {
	name = runewidth.FillRight(runewidth.Truncate(name, meterNameWidth, "…"), meterNameWidth)

	v := math.Max(0, math.Min(1, f.Viseme))
	filled := int(math.Round(v * meterBarWidth))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", meterBarWidth-filled)

	s := meterNameStyle(name) + " "
	if f.Speaking {
		s += meterActiveStyle(bar)
	} else {
		s += meterIdleStyle(bar)
	}
	if f.Speaking && f.MotionID != "" {
		s += " " + meterDetailStyle(fmt.Sprintf("%s %s", f.MotionID, f.Expression))
	}
	return s
}

package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatClock renders seconds as h:mm:ss or m:ss.
func FormatClock(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "--:--"
	}
	neg := seconds < 0
	total := int(math.Round(math.Abs(seconds)))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	sign := ""
	if neg {
		sign = "-"
	}
	if h > 0 {
		return fmt.Sprintf("%s%d:%02d:%02d", sign, h, m, s)
	}
	return fmt.Sprintf("%s%d:%02d", sign, m, s)
}

// ParseClock parses "h:mm:ss", "m:ss" or plain seconds into seconds.
func ParseClock(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("position is empty")
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid position %q", s)
	}
	var total float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("invalid position %q", s)
		}
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("invalid position %q", s)
		}
		total = total*60 + v
	}
	return total, nil
}

func formatSeconds(seconds float64) string {
	if seconds == math.Trunc(seconds) {
		return fmt.Sprintf("%d s", int64(seconds))
	}
	return fmt.Sprintf("%.1f s", seconds)
}

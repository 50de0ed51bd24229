package utils

import (
	"fmt"
	"strings"
	"time"
)

// ParseDuration extends time.ParseDuration with day ("7d") and week ("2w") units.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	var n int
	if c, err := fmt.Sscanf(s, "%dd", &n); err == nil && c == 1 && strings.HasSuffix(s, "d") {
		return time.Duration(n) * 24 * time.Hour, nil
	}
	if c, err := fmt.Sscanf(s, "%dw", &n); err == nil && c == 1 && strings.HasSuffix(s, "w") {
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("invalid duration: %q", s)
}


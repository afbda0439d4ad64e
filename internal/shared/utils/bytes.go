package utils

import "fmt"

// FormatBytes renders a byte count for humans. SI units step by 1000
// (kB, MB, ...); binary units step by 1024 (KiB, MiB, ...).
func FormatBytes(bytes int64, si bool) string {
	unit := int64(1024)
	if si {
		unit = 1000
	}
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	prefix := "KMGTPE"[exp : exp+1]
	if si {
		if exp == 0 {
			prefix = "k"
		}
		return fmt.Sprintf("%.1f %sB", float64(bytes)/float64(div), prefix)
	}
	return fmt.Sprintf("%.1f %siB", float64(bytes)/float64(div), prefix)
}

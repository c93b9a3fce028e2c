package main

import "fmt"

// siBytes renders size using the same thresholds as the teacher's du-backed
// listings: whole bytes below 1000, otherwise one decimal at the first SI
// unit that keeps the mantissa under 999.95.
func siBytes(size int64) string {
	switch {
	case size < 1_000:
		return fmt.Sprintf("%d B", size)
	case size < 999_950:
		return fmt.Sprintf("%.1f kB", float64(size)/1e3)
	case size < 999_950*1e3:
		return fmt.Sprintf("%.1f MB", float64(size)/1e6)
	case size < 999_950*1e6:
		return fmt.Sprintf("%.1f GB", float64(size)/1e9)
	default:
		return fmt.Sprintf("%.1f TB", float64(size)/1e12)
	}
}

// relTime renders a duration in seconds as the coarsest unit (minutes, hours,
// days) that keeps the mantissa readable, matching rel_time's thresholds.
func relTime(seconds float64) string {
	minutes := seconds / 60
	if minutes < 59.5 {
		return fmt.Sprintf("%.0f minutes", minutes)
	}
	hours := minutes / 60
	if hours < 23.5 {
		return fmt.Sprintf("%.0f hours", hours)
	}
	days := hours / 24
	return fmt.Sprintf("%.0f days", days)
}

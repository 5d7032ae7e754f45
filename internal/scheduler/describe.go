package scheduler

import "strings"

var descriptions = map[string]string{
	"0 0 * * *":    "every day at midnight",
	"0 2 * * *":    "every day at 02:00",
	"0 8 * * *":    "every day at 08:00",
	"0 12 * * *":   "every day at noon",
	"0 18 * * *":   "every day at 18:00",
	"0 */6 * * *":  "every 6 hours",
	"0 */12 * * *": "every 12 hours",
	"0 0 * * 0":    "every Sunday at midnight",
	"0 0 1 * *":    "on the 1st of every month",
	"0 0 1 1 *":    "every year on January 1st",
	"*/5 * * * *":  "every 5 minutes",
	"*/15 * * * *": "every 15 minutes",
	"*/30 * * * *": "every 30 minutes",
}

// Describe returns a human description of common presets, otherwise the
// expression itself
func Describe(expr string) string {
	expr = strings.TrimSpace(expr)
	if desc, ok := descriptions[expr]; ok {
		return desc
	}
	return expr
}

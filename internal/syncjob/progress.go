package syncjob

import (
	"regexp"
	"strconv"
)

// rclone --stats-one-line output, e.g.
// "1.234 MiB / 10.000 MiB, 12%, 512.000 KiB/s, ETA 17s"
var (
	bytesRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(KiB|MiB|GiB|TiB|B)\s*/\s*(\d+(?:\.\d+)?)\s*(KiB|MiB|GiB|TiB|B).*?(\d+)%`)
	filesRe = regexp.MustCompile(`Transferred:\s*(\d+)/(\d+)`)
	speedRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(KiB|MiB|GiB)/s`)
	etaRe   = regexp.MustCompile(`ETA\s*(\S+)`)
)

var unitMultipliers = map[string]float64{
	"B":   1,
	"KiB": 1 << 10,
	"MiB": 1 << 20,
	"GiB": 1 << 30,
	"TiB": 1 << 40,
}

// Stats holds whatever one stats line revealed. HasProgress is set only when
// the bytes/percentage form matched.
type Stats struct {
	HasProgress      bool   `json:"-"`
	Percent          int    `json:"percentage,omitempty"`
	BytesTransferred int64  `json:"bytes_transferred,omitempty"`
	BytesTotal       int64  `json:"bytes_total,omitempty"`
	HasFiles         bool   `json:"-"`
	FilesTransferred int64  `json:"files_transferred,omitempty"`
	FilesTotal       int64  `json:"files_total,omitempty"`
	Speed            int64  `json:"speed,omitempty"`
	ETA              string `json:"eta,omitempty"`
}

// ParseProgressLine extracts transfer stats from a single rclone stderr line.
// It reports false when nothing matched.
func ParseProgressLine(line string) (Stats, bool) {
	var stats Stats
	matched := false

	if m := bytesRe.FindStringSubmatch(line); m != nil {
		matched = true
		stats.HasProgress = true
		stats.BytesTransferred = toBytes(m[1], m[2])
		stats.BytesTotal = toBytes(m[3], m[4])
		stats.Percent, _ = strconv.Atoi(m[5])
	}

	if m := filesRe.FindStringSubmatch(line); m != nil {
		matched = true
		stats.HasFiles = true
		stats.FilesTransferred, _ = strconv.ParseInt(m[1], 10, 64)
		stats.FilesTotal, _ = strconv.ParseInt(m[2], 10, 64)
	}

	if m := speedRe.FindStringSubmatch(line); m != nil {
		matched = true
		stats.Speed = toBytes(m[1], m[2])
	}

	if m := etaRe.FindStringSubmatch(line); m != nil {
		matched = true
		stats.ETA = m[1]
	}

	return stats, matched
}

func toBytes(value, unit string) int64 {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return int64(v * unitMultipliers[unit])
}

package mount

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/openmined/rclonebox/internal/utils"
)

// LoadMounts reads the mount registry. A missing file is an empty registry;
// entries that fail validation are skipped.
func LoadMounts(path string, logger *slog.Logger) ([]*Mount, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []*Mount{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("read mounts: %w", err)
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return []*Mount{}, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode mounts: %w", err)
	}

	mounts := make([]*Mount, 0, len(raw))
	for i, entry := range raw {
		var m Mount
		if err := json.Unmarshal(entry, &m); err != nil {
			logger.Warn("skipping invalid mount entry", "index", i, "error", err)
			continue
		}
		if m.IsDiscovered() {
			continue
		}
		// a launch does not survive a restart
		if m.Status == StatusMounting {
			m.Status = StatusUnmounted
			m.ProcessID = nil
		}
		mounts = append(mounts, &m)
	}

	return mounts, nil
}

// SaveMounts writes config mounts as an indented JSON array, sorted by name
func SaveMounts(path string, mounts []*Mount) error {
	sorted := slices.Clone(mounts)
	slices.SortFunc(sorted, func(a, b *Mount) int {
		return strings.Compare(a.RemoteName, b.RemoteName)
	})

	records := make([]*Mount, 0, len(sorted))
	for _, m := range sorted {
		// discovered mounts are re-derived on every refresh
		if m.IsDiscovered() {
			continue
		}
		records = append(records, m)
	}

	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mounts: %w", err)
	}

	if err := utils.WriteFileAtomic(path, out, 0o644); err != nil {
		return fmt.Errorf("write mounts: %w", err)
	}
	return nil
}

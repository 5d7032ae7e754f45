package syncjob

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

// LoadTasks reads the task list. A missing file is an empty list; entries that
// fail to decode are skipped. A task persisted as running is reset to idle
// since no worker survives a restart.
func LoadTasks(path string, logger *slog.Logger) ([]*Task, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []*Task{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("read tasks: %w", err)
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return []*Task{}, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}

	tasks := make([]*Task, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, entry := range raw {
		var t Task
		if err := json.Unmarshal(entry, &t); err != nil {
			logger.Warn("skipping invalid task entry", "index", i, "error", err)
			continue
		}
		if _, dup := seen[t.ID]; dup {
			logger.Warn("skipping duplicate task id", "index", i, "id", t.ID)
			continue
		}
		seen[t.ID] = struct{}{}

		if t.Status == StatusRunning {
			t.Status = StatusIdle
		}
		tasks = append(tasks, &t)
	}

	return tasks, nil
}

// SaveTasks writes tasks as an indented JSON array in the given order
func SaveTasks(path string, tasks []*Task) error {
	records := slices.Clone(tasks)
	if records == nil {
		records = []*Task{}
	}

	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}

	if err := utils.WriteFileAtomic(path, out, 0o644); err != nil {
		return fmt.Errorf("write tasks: %w", err)
	}
	return nil
}

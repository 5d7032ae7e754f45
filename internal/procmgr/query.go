package procmgr

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v4/process"
)

// Filter selects processes by executable name prefix and command line terms.
// All CmdlineContains terms must be present (case-insensitive).
type Filter struct {
	ImagePrefix     string
	CmdlineContains []string
}

// ProcessInfo is one matching process. CmdlineKnown is false when the command
// line could not be read, which only happens for image-name-only listings.
type ProcessInfo struct {
	PID          int32  `json:"pid"`
	Name         string `json:"name"`
	Cmdline      string `json:"cmdline"`
	CmdlineKnown bool   `json:"cmdlineKnown"`
}

// ProcessQuery lists live processes
type ProcessQuery interface {
	List(ctx context.Context, filter Filter) ([]ProcessInfo, error)
}

type systemQuery struct{}

// NewSystemQuery returns a ProcessQuery backed by the OS process table
func NewSystemQuery() ProcessQuery {
	return systemQuery{}
}

func (systemQuery) List(ctx context.Context, filter Filter) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var result []ProcessInfo
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name, err := p.NameWithContext(ctx)
		if err != nil || !matchImage(name, filter.ImagePrefix) {
			continue
		}

		info := ProcessInfo{PID: p.Pid, Name: name}
		cmdline, err := p.CmdlineWithContext(ctx)
		if err == nil && cmdline != "" {
			info.Cmdline = cmdline
			info.CmdlineKnown = true
		}

		if len(filter.CmdlineContains) > 0 {
			if !info.CmdlineKnown || !matchCmdline(info.Cmdline, filter.CmdlineContains) {
				continue
			}
		}

		result = append(result, info)
	}

	return result, nil
}

func matchImage(name, prefix string) bool {
	if prefix == "" {
		return true
	}
	base := strings.ToLower(filepath.Base(name))
	return strings.HasPrefix(base, strings.ToLower(prefix))
}

func matchCmdline(cmdline string, terms []string) bool {
	lower := strings.ToLower(cmdline)
	for _, term := range terms {
		if !strings.Contains(lower, strings.ToLower(term)) {
			return false
		}
	}
	return true
}

// MockQuery is a ProcessQuery test double. ListFunc must be set.
type MockQuery struct {
	ListFunc func(ctx context.Context, filter Filter) ([]ProcessInfo, error)

	Calls []Filter
	mu    sync.Mutex
}

func (m *MockQuery) List(ctx context.Context, filter Filter) ([]ProcessInfo, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, filter)
	m.mu.Unlock()
	if m.ListFunc == nil {
		panic("MockQuery.ListFunc not set")
	}
	return m.ListFunc(ctx, filter)
}

// GetCalls returns a copy of the recorded filters
func (m *MockQuery) GetCalls() []Filter {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]Filter, len(m.Calls))
	copy(calls, m.Calls)
	return calls
}

// StaticQuery returns a MockQuery that applies filter to a fixed process list
func StaticQuery(procs ...ProcessInfo) *MockQuery {
	return &MockQuery{
		ListFunc: func(_ context.Context, filter Filter) ([]ProcessInfo, error) {
			var out []ProcessInfo
			for _, p := range procs {
				if !matchImage(p.Name, filter.ImagePrefix) {
					continue
				}
				if len(filter.CmdlineContains) > 0 && !matchCmdline(p.Cmdline, filter.CmdlineContains) {
					continue
				}
				out = append(out, p)
			}
			return out, nil
		},
	}
}

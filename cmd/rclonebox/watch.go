package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/openmined/rclonebox/internal/cpsdk"
	"github.com/openmined/rclonebox/internal/daemon/handlers"
	"github.com/openmined/rclonebox/internal/events"
	"github.com/openmined/rclonebox/internal/syncjob"
	"github.com/spf13/cobra"
)

const (
	watchBarWidth = 30
	watchLogSize  = 6
)

var (
	titleStyle = cyan.Bold(true)
	helpStyle  = gray
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live view of sync progress and mount status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			views, err := client.Tasks.List(ctx)
			if err != nil {
				return err
			}
			stream, err := client.Events.Subscribe(ctx)
			if err != nil {
				return err
			}

			m := newWatchModel(client.BaseURL(), views, stream)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		},
	}
}

type taskRow struct {
	id      string
	name    string
	status  string
	percent int
	files   int64
	bytes   int64
	speed   int64
	eta     string
	message string
}

type watchModel struct {
	url    string
	stream <-chan *cpsdk.Event
	tasks  map[string]*taskRow
	mounts map[string]string
	log    []string
	bar    progress.Model
	closed bool
}

type eventMsg struct{ ev *cpsdk.Event }
type streamClosedMsg struct{}

func newWatchModel(url string, views []*handlers.TaskView, stream <-chan *cpsdk.Event) watchModel {
	m := watchModel{
		url:    url,
		stream: stream,
		tasks:  make(map[string]*taskRow),
		mounts: make(map[string]string),
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(watchBarWidth)),
	}
	for _, v := range views {
		m.tasks[v.Task.ID] = &taskRow{
			id:      v.Task.ID,
			name:    v.Task.Name,
			status:  string(v.Task.Status),
			percent: v.Task.Progress,
			files:   v.Task.FilesTransferred,
			bytes:   v.Task.BytesTransferred,
		}
	}
	return m
}

func waitForEvent(stream <-chan *cpsdk.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-stream
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

func (m watchModel) Init() tea.Cmd {
	return waitForEvent(m.stream)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = min(watchBarWidth, max(10, msg.Width/3))
	case eventMsg:
		m.apply(msg.ev)
		return m, waitForEvent(m.stream)
	case streamClosedMsg:
		m.closed = true
	}
	return m, nil
}

func (m *watchModel) row(id string) *taskRow {
	r, ok := m.tasks[id]
	if !ok {
		r = &taskRow{id: id, name: shortID(id), status: string(syncjob.StatusIdle)}
		m.tasks[id] = r
	}
	return r
}

func (m *watchModel) logf(ev *cpsdk.Event, format string, args ...any) {
	line := ev.Time.Local().Format("15:04:05") + " " + fmt.Sprintf(format, args...)
	m.log = append(m.log, line)
	if len(m.log) > watchLogSize {
		m.log = m.log[len(m.log)-watchLogSize:]
	}
}

func (m *watchModel) apply(ev *cpsdk.Event) {
	switch ev.Type {
	case events.TaskStatus:
		var d events.StatusData
		if ev.Decode(&d) == nil {
			r := m.row(ev.Subject)
			r.status = d.Status
			if d.Status == string(syncjob.StatusRunning) {
				r.percent, r.files, r.bytes, r.speed, r.eta, r.message = 0, 0, 0, 0, "", ""
			}
		}
	case events.TaskProgress:
		var d events.ProgressData
		if ev.Decode(&d) == nil {
			r := m.row(ev.Subject)
			r.percent, r.files, r.bytes = d.Percent, d.Files, d.Bytes
		}
	case events.TaskStats:
		var s syncjob.Stats
		if ev.Decode(&s) == nil {
			r := m.row(ev.Subject)
			r.speed, r.eta = s.Speed, s.ETA
		}
	case events.TaskCompleted:
		var d events.CompletedData
		if ev.Decode(&d) == nil {
			r := m.row(ev.Subject)
			r.message = d.Message
			r.speed, r.eta = 0, ""
			m.logf(ev, "task %s %s", r.name, d.Message)
		}
	case events.TaskDue:
		m.logf(ev, "task %s due", m.row(ev.Subject).name)
	case events.MountStatus, events.MountError:
		var d events.StatusData
		if ev.Decode(&d) == nil {
			m.mounts[ev.Subject] = d.Status
			if d.Error != "" {
				m.logf(ev, "mount %s %s: %s", ev.Subject, d.Status, d.Error)
			} else {
				m.logf(ev, "mount %s %s", ev.Subject, d.Status)
			}
		}
	case events.RemotesChanged:
		m.logf(ev, "remotes changed")
	}
}

func (m watchModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("RcloneBox") + " " + gray.Render(m.url) + "\n\n")

	rows := make([]*taskRow, 0, len(m.tasks))
	for _, r := range m.tasks {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })

	if len(rows) == 0 {
		sb.WriteString(gray.Render("no sync tasks") + "\n")
	}
	for _, r := range rows {
		status := statusStyle(r.status).Render(fmt.Sprintf("%-9s", r.status))
		fmt.Fprintf(&sb, "%-20s %s %s %3d%%", truncateName(r.name, 20), status, m.bar.ViewAs(float64(r.percent)/100), r.percent)
		if r.files > 0 || r.bytes > 0 {
			fmt.Fprintf(&sb, "  %s", lightGray.Render(fmt.Sprintf("%d files, %s", r.files, fmtBytes(r.bytes))))
		}
		if r.speed > 0 {
			fmt.Fprintf(&sb, "  %s/s", fmtBytes(r.speed))
		}
		if r.eta != "" && r.eta != "-" {
			fmt.Fprintf(&sb, "  eta %s", r.eta)
		}
		sb.WriteString("\n")
	}

	if len(m.mounts) > 0 {
		sb.WriteString("\n")
		names := make([]string, 0, len(m.mounts))
		for name := range m.mounts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "%-20s %s\n", truncateName(name, 20), statusStyle(m.mounts[name]).Render(m.mounts[name]))
		}
	}

	if len(m.log) > 0 {
		sb.WriteString("\n")
		for _, line := range m.log {
			sb.WriteString(gray.Render(line) + "\n")
		}
	}

	sb.WriteString("\n")
	if m.closed {
		sb.WriteString(red.Render("disconnected from daemon") + " ")
	}
	sb.WriteString(helpStyle.Render("q to quit") + "\n")
	return sb.String()
}

func truncateName(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

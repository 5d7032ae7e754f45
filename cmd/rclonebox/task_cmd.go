package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/openmined/rclonebox/internal/cpsdk"
	"github.com/openmined/rclonebox/internal/daemon/handlers"
	"github.com/openmined/rclonebox/internal/events"
	"github.com/openmined/rclonebox/internal/scheduler"
	"github.com/openmined/rclonebox/internal/syncjob"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newTaskCmd() *cobra.Command {
	taskCmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"tasks"},
		Short:   "Manage sync tasks",
	}
	taskCmd.AddCommand(
		newTaskCmdList(),
		newTaskCmdAdd(),
		newTaskCmdRemove(),
		newTaskCmdRun(),
		newTaskCmdCancel(),
		newTaskCmdSchedule(),
		newTaskCmdUnschedule(),
		newTaskCmdHistory(),
		newTaskCmdExport(),
	)
	return taskCmd
}

func newTaskCmdList() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sync tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			views, err := client.Tasks.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintln(out, "No sync tasks")
				return nil
			}

			rows := make([][]string, 0, len(views))
			for _, v := range views {
				t := v.Task
				status := statusStyle(string(t.Status)).Render(string(t.Status))
				if t.Status == syncjob.StatusRunning {
					status += fmt.Sprintf(" %d%%", t.Progress)
				}
				rows = append(rows, []string{
					shortID(t.ID),
					t.Name,
					string(t.Mode),
					t.Source + " → " + t.Destination,
					status,
					fmtTime(t.LastRun),
					v.NextRun,
				})
			}
			renderTable(out, []string{"ID", "NAME", "MODE", "ROUTE", "STATUS", "LAST RUN", "NEXT RUN"}, rows)
			return nil
		},
	}
}

func newTaskCmdAdd() *cobra.Command {
	var req handlers.TaskRequest
	var mode string

	taskCmdAdd := &cobra.Command{
		Use:     "add NAME SOURCE DESTINATION",
		Aliases: []string{"a"},
		Short:   "Create a sync task",
		Example: "  rclonebox task add photos ~/Pictures gdrive:backup/pictures --mode copy --cron '0 2 * * *'",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name, req.Source, req.Destination = args[0], args[1], args[2]
			req.Mode = syncjob.Mode(mode)
			req.Scheduled = req.CronExpression != ""

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			view, err := client.Tasks.Create(cmd.Context(), &req)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created task '%s' %s\n",
				cyan.Bold(true).Render(view.Task.Name), gray.Render(view.Task.ID))
			if view.Task.Scheduled {
				fmt.Fprintf(cmd.OutOrStdout(), "Runs %s, next at %s\n",
					scheduler.Describe(view.Task.CronExpression), green.Render(view.NextRun))
			}
			return nil
		},
	}

	taskCmdAdd.Flags().SortFlags = false
	taskCmdAdd.Flags().StringVarP(&mode, "mode", "m", string(syncjob.ModeSync), "sync, copy, move or bisync")
	taskCmdAdd.Flags().StringVar(&req.CronExpression, "cron", "", "Cron schedule, e.g. '0 2 * * *'")
	taskCmdAdd.Flags().StringVar(&req.BandwidthLimit, "bwlimit", "", "Bandwidth limit, e.g. 10M")
	taskCmdAdd.Flags().StringArrayVarP(&req.ExcludePatterns, "exclude", "x", nil, "Exclude pattern (repeatable)")
	taskCmdAdd.Flags().BoolVar(&req.DeleteExcluded, "delete-excluded", false, "Delete excluded files on the destination")
	taskCmdAdd.Flags().BoolVar(&req.DryRun, "dry-run", false, "Only report what would be transferred")

	return taskCmdAdd
}

func newTaskCmdRemove() *cobra.Command {
	return &cobra.Command{
		Use:     "remove TASK",
		Aliases: []string{"rm"},
		Short:   "Delete a sync task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			if err := client.Tasks.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed task '%s'\n", green.Bold(true).Render(args[0]))
			return nil
		},
	}
}

func newTaskCmdRun() *cobra.Command {
	var follow bool

	taskCmdRun := &cobra.Command{
		Use:   "run TASK",
		Short: "Run a sync task now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}

			// subscribe first so no event between run and subscribe is lost
			var stream <-chan *cpsdk.Event
			if follow {
				stream, err = client.Events.Subscribe(cmd.Context(),
					events.TaskProgress, events.TaskCompleted)
				if err != nil {
					return err
				}
			}

			view, err := client.Tasks.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started task '%s'\n", cyan.Bold(true).Render(view.Task.Name))
			if !follow {
				return nil
			}
			return followTask(cmd.OutOrStdout(), stream, view.Task.ID)
		},
	}

	taskCmdRun.Flags().BoolVarP(&follow, "follow", "f", false, "Print progress until the run completes")
	return taskCmdRun
}

var errRunFailed = errors.New("run failed")

// followTask prints progress for id until its completion event arrives
func followTask(out io.Writer, stream <-chan *cpsdk.Event, id string) error {
	for ev := range stream {
		if ev.Subject != id {
			continue
		}
		switch ev.Type {
		case events.TaskProgress:
			var p events.ProgressData
			if err := ev.Decode(&p); err == nil {
				fmt.Fprintf(out, "  %3d%%  %d files  %s\n", p.Percent, p.Files, fmtBytes(p.Bytes))
			}
		case events.TaskCompleted:
			var c events.CompletedData
			if err := ev.Decode(&c); err != nil {
				return err
			}
			if !c.Success {
				fmt.Fprintf(out, "%s %s\n", red.Render("✗"), c.Message)
				return fmt.Errorf("%w: %s", errRunFailed, c.Message)
			}
			fmt.Fprintf(out, "%s %s\n", green.Render("✓"), c.Message)
			return nil
		}
	}
	return fmt.Errorf("event stream closed before the run completed")
}

func newTaskCmdCancel() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel TASK",
		Short: "Cancel a running sync task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			if err := client.Tasks.Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled task '%s'\n", green.Bold(true).Render(args[0]))
			return nil
		},
	}
}

func newTaskCmdSchedule() *cobra.Command {
	return &cobra.Command{
		Use:     "schedule TASK CRON",
		Short:   "Enable or change a task's cron schedule",
		Example: "  rclonebox task schedule photos '*/30 * * * *'",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			view, err := client.Tasks.Schedule(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task '%s' runs %s, next at %s\n",
				cyan.Bold(true).Render(view.Task.Name),
				scheduler.Describe(view.Task.CronExpression),
				green.Render(view.NextRun))
			return nil
		},
	}
}

func newTaskCmdUnschedule() *cobra.Command {
	return &cobra.Command{
		Use:   "unschedule TASK",
		Short: "Disable a task's schedule, keeping the expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			view, err := client.Tasks.Unschedule(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task '%s' is no longer scheduled\n", cyan.Bold(true).Render(view.Task.Name))
			return nil
		},
	}
}

func newTaskCmdHistory() *cobra.Command {
	var limit int

	taskCmdHistory := &cobra.Command{
		Use:   "history TASK",
		Short: "Show recent runs of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			runs, err := client.Tasks.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				result := green.Render("ok")
				if !r.Success {
					result = red.Render("failed")
				}
				rows = append(rows, []string{
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					r.Duration().Round(100 * time.Millisecond).String(),
					result,
					r.Message,
					fmt.Sprint(r.Files),
					fmtBytes(r.Bytes),
				})
			}
			renderTable(out, []string{"STARTED", "DURATION", "RESULT", "MESSAGE", "FILES", "BYTES"}, rows)
			return nil
		},
	}

	taskCmdHistory.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return taskCmdHistory
}

func newTaskCmdExport() *cobra.Command {
	var format string
	var output string

	taskCmdExport := &cobra.Command{
		Use:   "export",
		Short: "Export task definitions as YAML or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "yaml" && format != "json" {
				return fmt.Errorf("unsupported format %q, use yaml or json", format)
			}

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			views, err := client.Tasks.List(cmd.Context())
			if err != nil {
				return err
			}

			tasks := make([]*syncjob.Task, 0, len(views))
			for _, v := range views {
				tasks = append(tasks, v.Task)
			}

			data, err := encodeTasks(tasks, format)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d tasks to '%s'\n", len(tasks), green.Render(output))
			return nil
		},
	}

	taskCmdExport.Flags().StringVarP(&format, "format", "f", "yaml", "yaml or json")
	taskCmdExport.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return taskCmdExport
}

func encodeTasks(tasks []*syncjob.Task, format string) ([]byte, error) {
	if format == "json" {
		data, err := json.MarshalIndent(tasks, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
	return yaml.Marshal(tasks)
}

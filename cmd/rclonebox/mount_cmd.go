package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/openmined/rclonebox/internal/daemon/handlers"
	"github.com/openmined/rclonebox/internal/mount"
	"github.com/spf13/cobra"
)

func newMountCmd() *cobra.Command {
	mountCmd := &cobra.Command{
		Use:   "mount",
		Short: "Manage rclone mounts",
	}
	mountCmd.AddCommand(
		newMountCmdList(),
		newMountCmdAdd(),
		newMountCmdRemove(),
		newMountCmdUp(),
		newMountCmdDown(),
		newMountCmdRefresh(),
		newMountCmdDrives(),
		newMountCmdStats(),
	)
	return mountCmd
}

func printMounts(cmd *cobra.Command, mounts []*mount.Mount) {
	out := cmd.OutOrStdout()
	if len(mounts) == 0 {
		fmt.Fprintln(out, "No mounts registered")
		return
	}

	rows := make([][]string, 0, len(mounts))
	for _, m := range mounts {
		pid := "-"
		if m.ProcessID != nil {
			pid = fmt.Sprint(*m.ProcessID)
		}
		status := statusStyle(string(m.Status)).Render(string(m.Status))
		if m.ErrorMessage != nil {
			status += " " + gray.Render(*m.ErrorMessage)
		}
		rows = append(rows, []string{
			m.RemoteName,
			m.DriveLetter + ":",
			m.RemoteFullPath(),
			status,
			string(m.Source),
			string(m.CacheMode),
			yesNo(m.AutoMount),
			pid,
		})
	}
	renderTable(out, []string{"NAME", "DRIVE", "REMOTE", "STATUS", "SOURCE", "CACHE", "AUTO", "PID"}, rows)
}

func newMountCmdList() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List config and discovered mounts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			mounts, err := client.Mounts.List(cmd.Context())
			if err != nil {
				return err
			}
			printMounts(cmd, mounts)
			return nil
		},
	}
}

func newMountCmdAdd() *cobra.Command {
	var req handlers.MountCreateRequest
	var cacheMode string

	mountCmdAdd := &cobra.Command{
		Use:     "add REMOTE[:PATH]",
		Aliases: []string{"a"},
		Short:   "Register a mount for a remote",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.RemoteName, req.RemotePath, _ = strings.Cut(args[0], ":")
			req.CacheMode = mount.CacheMode(cacheMode)

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			mnt, err := client.Mounts.Create(cmd.Context(), &req)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added mount '%s' on %s\n",
				cyan.Bold(true).Render(mnt.RemoteFullPath()), green.Bold(true).Render(mnt.DriveLetter+":"))
			return nil
		},
	}

	mountCmdAdd.Flags().SortFlags = false
	mountCmdAdd.Flags().StringVarP(&req.DriveLetter, "drive", "d", "", "Drive letter (default: first free)")
	mountCmdAdd.Flags().StringVar(&cacheMode, "cache-mode", "", "VFS cache mode: off, minimal, writes, full")
	mountCmdAdd.Flags().StringVar(&req.VFSCacheMaxSize, "cache-size", "", "VFS cache max size, e.g. 10G")
	mountCmdAdd.Flags().BoolVar(&req.AutoMount, "auto", false, "Mount when the daemon starts")
	mountCmdAdd.Flags().BoolVar(&req.ReadOnly, "read-only", false, "Mount read-only")
	mountCmdAdd.Flags().BoolVar(&req.MountNow, "now", false, "Mount right away")

	return mountCmdAdd
}

func newMountCmdRemove() *cobra.Command {
	return &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm"},
		Short:   "Unmount and unregister a mount",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			if err := client.Mounts.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed mount '%s'\n", green.Bold(true).Render(args[0]))
			return nil
		},
	}
}

func newMountCmdUp() *cobra.Command {
	return &cobra.Command{
		Use:     "up NAME",
		Aliases: []string{"start"},
		Short:   "Start a mount",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			mnt, err := client.Mounts.Mount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mounting '%s' on %s %s\n",
				cyan.Bold(true).Render(mnt.RemoteFullPath()),
				green.Bold(true).Render(mnt.DriveLetter+":"),
				gray.Render("(rclonebox watch to follow)"))
			return nil
		},
	}
}

func newMountCmdDown() *cobra.Command {
	return &cobra.Command{
		Use:     "down NAME",
		Aliases: []string{"stop"},
		Short:   "Stop a mount",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			mnt, err := client.Mounts.Unmount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unmounted '%s' from %s\n",
				cyan.Bold(true).Render(mnt.RemoteName), mnt.DriveLetter+":")
			return nil
		},
	}
}

func newMountCmdRefresh() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reconcile mounts with running rclone processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			mounts, err := client.Mounts.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			printMounts(cmd, mounts)
			return nil
		},
	}
}

func newMountCmdDrives() *cobra.Command {
	return &cobra.Command{
		Use:   "drives",
		Short: "List free drive letters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			drives, err := client.Mounts.Drives(cmd.Context())
			if err != nil {
				return err
			}
			if len(drives) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No drive letters available on this platform")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(drives, " "))
			return nil
		},
	}
}

func newMountCmdStats() *cobra.Command {
	return &cobra.Command{
		Use:   "stats NAME",
		Short: "Show resource usage of a mount's rclone process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			stats, err := client.Mounts.Stats(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			uptime := time.Duration(stats.Uptime) * time.Millisecond
			printKV(cmd.OutOrStdout(),
				[2]string{"PID", fmt.Sprint(stats.PID)},
				[2]string{"Name", stats.Name},
				[2]string{"Status", strings.Join(stats.Status, ",")},
				[2]string{"CPU", fmt.Sprintf("%.1f%%", stats.CPUPercent)},
				[2]string{"Memory", fmtBytes(int64(stats.RSS))},
				[2]string{"Threads", fmt.Sprint(stats.NumThreads)},
				[2]string{"Uptime", uptime.Round(time.Second).String()},
			)
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printKV(out,
				[2]string{"Daemon", green.Render(status.Status) + " " + gray.Render(client.BaseURL())},
				[2]string{"Version", status.Version},
				[2]string{"Rclone", status.Rclone},
				[2]string{"Uptime", status.Uptime},
				[2]string{"Mounts", fmt.Sprintf("%d total, %d mounted, %d discovered, %d errored",
					status.Mounts.Total, status.Mounts.Mounted, status.Mounts.Discovered, status.Mounts.Errored)},
				[2]string{"Tasks", fmt.Sprintf("%d total, %d running, %d scheduled, %d errored",
					status.Tasks.Total, status.Tasks.Running, status.Tasks.Scheduled, status.Tasks.Errored)},
				[2]string{"Remotes", fmt.Sprintf("%d", status.Remotes)},
			)
			return nil
		},
	}
}

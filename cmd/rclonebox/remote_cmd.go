package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"
)

func newRemoteCmd() *cobra.Command {
	remoteCmd := &cobra.Command{
		Use:     "remote",
		Aliases: []string{"remotes"},
		Short:   "Inspect rclone remotes",
	}
	remoteCmd.AddCommand(
		newRemoteCmdList(),
		newRemoteCmdShow(),
		newRemoteCmdTest(),
		newRemoteCmdAbout(),
		newRemoteCmdRemove(),
	)
	return remoteCmd
}

func newRemoteCmdList() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List remotes from rclone.conf",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			list, err := client.Remotes.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No remotes configured. Use `rclone config` to add one.")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, r := range list {
				rows = append(rows, []string{r.Name, r.Type, orDash(r.Host()), orDash(r.User())})
			}
			renderTable(out, []string{"NAME", "TYPE", "HOST", "USER"}, rows)
			return nil
		},
	}
}

func newRemoteCmdShow() *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show a remote's options, credentials masked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			r, err := client.Remotes.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			pairs := [][2]string{{"name", cyan.Bold(true).Render(r.Name)}, {"type", r.Type}}
			for _, key := range slices.Sorted(maps.Keys(r.Config)) {
				pairs = append(pairs, [2]string{key, r.Config[key]})
			}
			printKV(cmd.OutOrStdout(), pairs...)
			return nil
		},
	}
}

func newRemoteCmdTest() *cobra.Command {
	return &cobra.Command{
		Use:   "test NAME",
		Short: "Check that a remote is reachable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			res, err := client.Remotes.Test(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !res.Success {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", red.Render("✗"), args[0], res.Message)
				return fmt.Errorf("remote %s is not reachable", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", green.Render("✓"), args[0], res.Message)
			return nil
		},
	}
}

func newRemoteCmdAbout() *cobra.Command {
	return &cobra.Command{
		Use:   "about NAME",
		Short: "Show quota and usage of a remote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			info, err := client.Remotes.About(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			objects := "-"
			if info.Objects != nil {
				objects = fmt.Sprint(*info.Objects)
			}
			printKV(cmd.OutOrStdout(),
				[2]string{"Total", fmtBytesPtr(info.Total)},
				[2]string{"Used", fmtBytesPtr(info.Used)},
				[2]string{"Free", fmtBytesPtr(info.Free)},
				[2]string{"Trashed", fmtBytesPtr(info.Trashed)},
				[2]string{"Objects", objects},
			)
			return nil
		},
	}
}

func newRemoteCmdRemove() *cobra.Command {
	return &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm"},
		Short:   "Delete a remote from rclone.conf",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			if err := client.Remotes.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed remote '%s'\n", green.Bold(true).Render(args[0]))
			return nil
		},
	}
}

package main

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jessm23/portafolio-backend/config"
)

type deps func() (*config.Config, Syncer)

func newFileCmd(get deps) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "file <local-path> [remote-path]",
		Short: "Create or overwrite one remote file",
		Long: "Uploads a local file to the repository. When remote-path is omitted " +
			"the file lands in the configured remote folder under its own name.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, syncer := get()
			local := args[0]
			remote := path.Join(cfg.GitHub.RemoteDir, filepath.Base(local))
			if len(args) == 2 {
				remote = args[1]
			}
			if message == "" {
				message = "Upload " + filepath.Base(local)
			}

			res, err := syncer.SyncFile(commandContext(cmd, "file"), local, remote, message)
			if err != nil {
				return err
			}
			verb := "updated"
			if res.Created {
				verb = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (sha %s)\n", verb, res.RemotePath, res.SHA)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	return cmd
}

func newTreeCmd(get deps) *cobra.Command {
	return &cobra.Command{
		Use:   "tree <local-dir> <remote-dir>",
		Short: "Mirror a directory tree, keeping relative paths",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, syncer := get()

			report, err := syncer.SyncTree(commandContext(cmd, "tree"), args[0], args[1])
			if report != nil {
				out := cmd.OutOrStdout()
				for _, r := range report.Results {
					fmt.Fprintf(out, "ok     %s\n", r.RemotePath)
				}
				for _, f := range report.Failures {
					fmt.Fprintf(out, "failed %s: %s\n", f.RemotePath, f.Kind)
				}
				fmt.Fprintf(out, "%d of %d files mirrored\n", len(report.Results), report.Attempted())
			}
			return err
		},
	}
}

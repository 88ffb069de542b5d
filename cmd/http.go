package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tanq16/vidgrab/internal/utils"
)

func newHTTPCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:     "http [URL] [--output OUTPUT_PATH]",
		Short:   "Download a video file directly via HTTP/HTTPS",
		Aliases: []string{"direct"},
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runJobs(cmd, []utils.Job{newJob("http", args[0], outputPath)})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (inferred from the server or URL if empty)")
	return cmd
}

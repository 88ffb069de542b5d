package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tanq16/vidgrab/internal/utils"
)

func newYouTubeCmd() *cobra.Command {
	var outputPath string
	var format string

	cmd := &cobra.Command{
		Use:     "yt [URL] [--output OUTPUT_PATH] [--format FORMAT]",
		Short:   "Download a video through yt-dlp (YouTube and other supported sites)",
		Aliases: []string{"youtube"},
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			job := newJob("youtube", args[0], outputPath)
			if format != "" {
				job.Metadata["format"] = format
			}
			runJobs(cmd, []utils.Job{job})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path or yt-dlp template (default: %(title)s.%(ext)s)")
	cmd.Flags().StringVar(&format, "format", "decent", "Video format (best, decent, 1080p, 720p, audio, etc.)")
	return cmd
}

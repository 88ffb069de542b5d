package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tanq16/vidgrab/internal/utils"
)

func newHLSCmd() *cobra.Command {
	var outputPath string
	var tempDir string
	var extract string

	cmd := &cobra.Command{
		Use:     "hls [URL] [--output OUTPUT_PATH]",
		Short:   "Download an HLS (m3u8) stream into one file",
		Long:    "Resolves a master or media playlist, picks the highest-bandwidth rendition, downloads its segments in order and concatenates them.",
		Aliases: []string{"m3u8", "live-stream", "stream"},
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			job := newJob("hls", args[0], outputPath)
			if tempDir != "" {
				job.Metadata["scratchRoot"] = tempDir
			}
			if extract != "" {
				job.Metadata["extract"] = extract
			}
			runJobs(cmd, []utils.Job{job})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stream_[timestamp].mp4)")
	cmd.Flags().StringVar(&tempDir, "temp-dir", "", "Directory for per-job segment scratch space (default: beside the output)")
	cmd.Flags().StringVarP(&extract, "extract", "e", "", "Treat URL as a video page and extract its playlist (supported: rumble)")
	return cmd
}

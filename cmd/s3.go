package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tanq16/vidgrab/internal/utils"
)

func newS3Cmd() *cobra.Command {
	var outputPath string
	var profile string
	var endpoint string

	cmd := &cobra.Command{
		Use:   "s3 [BUCKET/KEY or s3://BUCKET/KEY]",
		Short: "Download a video object from AWS S3",
		Long: `Download a single video object from AWS S3 or an S3-compatible store.

Examples:
  vidgrab s3 mybucket/recordings/talk.mp4
  vidgrab s3 s3://mybucket/recordings/talk.mp4 --profile myprofile
  vidgrab s3 media/clip.ts --endpoint http://localhost:9000`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			job := newJob("s3", args[0], outputPath)
			job.Metadata["profile"] = profile
			if endpoint != "" {
				job.Metadata["endpoint"] = endpoint
			}
			runJobs(cmd, []utils.Job{job})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path")
	cmd.Flags().StringVar(&profile, "profile", "", "AWS profile to use (default: SDK resolution)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Custom S3-compatible endpoint URL")
	return cmd
}

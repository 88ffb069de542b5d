package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/vidgrab/internal/output"
	"github.com/tanq16/vidgrab/internal/utils"
	"gopkg.in/yaml.v3"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE] [OPTIONS]",
		Short: "Process multiple downloads from a YAML file",
		Long: `Process multiple downloads from a YAML file keyed by job type.

Example:
  hls:
    - link: https://cdn.example.com/show/master.m3u8
      op: episode1.mp4
  yt:
    - link: https://www.youtube.com/watch?v=dQw4w9WgXcQ`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			batchFile, err := readBatchFile(args[0])
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			jobs := buildJobsFromBatch(batchFile)
			if len(jobs) == 0 {
				output.PrintError("No valid jobs found in the batch file")
				os.Exit(1)
			}
			runJobs(cmd, jobs)
		},
	}
	return cmd
}

func readBatchFile(path string) (utils.BatchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading YAML file: %v", err)
	}
	var batchFile utils.BatchFile
	if err := yaml.Unmarshal(data, &batchFile); err != nil {
		return nil, fmt.Errorf("error parsing YAML file: %v", err)
	}
	return batchFile, nil
}

func buildJobsFromBatch(batchFile utils.BatchFile) []utils.Job {
	// map order is random; keep job order stable across runs
	keys := make([]string, 0, len(batchFile))
	for k := range batchFile {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var jobs []utils.Job
	for _, jobType := range keys {
		normalizedType := normalizeJobType(jobType)
		if normalizedType == "" {
			output.PrintWarning(fmt.Sprintf("Warning: Unknown job type '%s', skipping...", jobType))
			log.Warn().Str("op", "cmd/batch").Msgf("Unknown job type %q in batch file", jobType)
			continue
		}
		for _, entry := range batchFile[jobType] {
			if strings.TrimSpace(entry.Link) == "" {
				output.PrintWarning(fmt.Sprintf("Warning: Empty link found in %s section, skipping...", jobType))
				continue
			}
			job := newJob(normalizedType, strings.TrimSpace(entry.Link), entry.OutputPath)
			if normalizedType == "youtube" {
				job.Metadata["format"] = "decent"
			}
			jobs = append(jobs, job)
		}
	}
	return jobs
}

func normalizeJobType(jobType string) string {
	typeMap := map[string]string{
		"hls":         "hls",
		"m3u8":        "hls",
		"live-stream": "hls",
		"livestream":  "hls",
		"stream":      "hls",
		"http":        "http",
		"https":       "http",
		"direct":      "http",
		"youtube":     "youtube",
		"yt":          "youtube",
		"ytdlp":       "youtube",
		"yt-dlp":      "youtube",
		"s3":          "s3",
	}
	return typeMap[strings.ToLower(strings.TrimSpace(jobType))]
}

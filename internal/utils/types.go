package utils

import (
	"context"
	"time"
)

// Downloader is implemented by every source kind the scheduler can run.
type Downloader interface {
	ValidateJob(job *Job) error
	BuildJob(job *Job) error
	Download(ctx context.Context, job *Job) error
}

type Job struct {
	ID               string
	JobType          string
	URL              string
	OutputPath       string
	ProgressType     string
	ProgressFunc     func(done, total int64)
	StreamFunc       func(line string)
	Retries          int
	RetryWait        time.Duration
	Metadata         map[string]any
	HTTPClientConfig HTTPClientConfig
}

type BatchEntry struct {
	OutputPath string `yaml:"op,omitempty"`
	Link       string `yaml:"link"`
}

// BatchFile maps a job type (or one of its aliases) to the links to fetch with it.
type BatchFile map[string][]BatchEntry

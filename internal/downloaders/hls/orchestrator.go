package hls

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/utils"
)

// Progress counts units of work: one per segment plus one for the final merge, so
// Completed reaches Total exactly when the job is Done.
type Progress struct {
	Completed int
	Total     int
	Message   string
	State     State
}

// ProgressFunc receives progress updates synchronously and must return promptly.
type ProgressFunc func(Progress)

type Config struct {
	MaxRetries int
	RetryWait  time.Duration
	// ScratchRoot is where the per-job scratch directory is created; os.TempDir() when empty.
	ScratchRoot string
}

// Orchestrator runs a playlist download: resolve, fetch every segment in order, merge.
type Orchestrator struct {
	resolver    *Resolver
	fetcher     *Fetcher
	scratchRoot string
	progress    ProgressFunc
}

func NewOrchestrator(client utils.HTTPDoer, cfg Config, progress ProgressFunc) *Orchestrator {
	if progress == nil {
		progress = func(Progress) {}
	}
	return &Orchestrator{
		resolver:    NewResolver(client),
		fetcher:     NewFetcher(client, cfg.MaxRetries, cfg.RetryWait),
		scratchRoot: cfg.ScratchRoot,
		progress:    progress,
	}
}

// Run downloads playlistURL into outputPath. The returned Job is terminal; on failure its
// Err is the returned error. The scratch directory is removed whatever the outcome.
func (o *Orchestrator) Run(ctx context.Context, playlistURL, outputPath string) (*Job, error) {
	job := newJob()
	scratch, err := o.allocateScratch(job.ID)
	if err != nil {
		return job, o.fail(job, err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			log.Warn().Str("op", "hls/orchestrator").Err(err).Msgf("Could not remove scratch dir %s", scratch)
		}
	}()

	if err := job.advance(StateResolving); err != nil {
		return job, o.fail(job, err)
	}
	log.Info().Str("op", "hls/orchestrator").Msgf("Job %s resolving %s", job.ID, playlistURL)
	segments, err := o.resolver.Resolve(ctx, playlistURL)
	if err != nil {
		return job, o.fail(job, err)
	}
	job.Total = len(segments)
	steps := job.Total + 1
	o.report(job, steps, fmt.Sprintf("Found %d segments", job.Total))

	if err := job.advance(StateFetching); err != nil {
		return job, o.fail(job, err)
	}
	files := make([]string, 0, len(segments))
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			log.Warn().Str("op", "hls/orchestrator").Msgf("Job %s canceled before segment %d", job.ID, seg.Ordinal)
			return job, o.fail(job, err)
		}
		job.Current = seg.Ordinal
		dst := filepath.Join(scratch, fmt.Sprintf("seg_%05d.ts", seg.Ordinal))
		result, err := o.fetcher.Fetch(ctx, seg, dst)
		if err != nil {
			return job, o.fail(job, err)
		}
		files = append(files, dst)
		job.Completed++
		log.Debug().Str("op", "hls/orchestrator").Msgf("Segment %d/%d done (%s, %d attempts)",
			seg.Ordinal, job.Total, utils.FormatBytes(uint64(result.Bytes)), len(result.Attempts))
		o.report(job, steps, fmt.Sprintf("Downloaded segment %d of %d", job.Completed, job.Total))
	}

	if err := job.advance(StateMerging); err != nil {
		return job, o.fail(job, err)
	}
	o.report(job, steps, "Merging segments")
	if err := Merge(files, outputPath); err != nil {
		return job, o.fail(job, err)
	}

	if err := job.advance(StateDone); err != nil {
		return job, o.fail(job, err)
	}
	o.progress(Progress{Completed: steps, Total: steps, Message: "HLS download and merge complete", State: StateDone})
	log.Info().Str("op", "hls/orchestrator").Msgf("Job %s wrote %d segments to %s", job.ID, job.Total, outputPath)
	return job, nil
}

// fail moves job to Failed and tells the sink why. Total never drops to Completed here.
func (o *Orchestrator) fail(job *Job, err error) error {
	job.fail(err)
	log.Error().Str("op", "hls/orchestrator").Err(err).Msgf("Job %s failed (%s)", job.ID, KindOf(err))
	o.progress(Progress{Completed: job.Completed, Total: job.Total + 1, Message: err.Error(), State: StateFailed})
	return err
}

func (o *Orchestrator) report(job *Job, steps int, message string) {
	o.progress(Progress{Completed: job.Completed, Total: steps, Message: message, State: job.State})
}

func (o *Orchestrator) allocateScratch(jobID string) (string, error) {
	root := o.scratchRoot
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return "", &IOError{Op: "creating scratch root", Path: root, Err: err}
	}
	scratch := filepath.Join(root, "hls_"+jobID)
	if err := os.Mkdir(scratch, 0700); err != nil {
		return "", &IOError{Op: "creating scratch directory", Path: scratch, Err: err}
	}
	return scratch, nil
}

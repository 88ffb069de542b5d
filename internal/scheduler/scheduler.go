package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/downloaders/hls"
	vidhttp "github.com/tanq16/vidgrab/internal/downloaders/http"
	"github.com/tanq16/vidgrab/internal/downloaders/s3"
	"github.com/tanq16/vidgrab/internal/downloaders/youtube"
	"github.com/tanq16/vidgrab/internal/output"
	"github.com/tanq16/vidgrab/internal/utils"
)

const (
	ProgressBytes  = "bytes"
	ProgressSteps  = "steps"
	ProgressStream = "stream"
)

type entry struct {
	downloader   utils.Downloader
	progressType string
}

// downloaderRegistry maps job types to their downloader and how their progress is shown.
var downloaderRegistry = map[string]entry{
	"hls":     {&hls.HLSDownloader{}, ProgressSteps},
	"http":    {&vidhttp.HTTPDownloader{}, ProgressBytes},
	"youtube": {&youtube.YouTubeDownloader{}, ProgressStream},
	"s3":      {&s3.S3Downloader{}, ProgressBytes},
}

// JobTypes lists the registered job types.
func JobTypes() []string {
	return []string{"hls", "http", "youtube", "s3"}
}

// Sink is the display side of the scheduler; *output.Manager implements it.
type Sink interface {
	Register(label string) int
	SetMessage(id int, message string)
	SetStatus(id int, status string)
	Complete(id int, message string)
	ReportError(id int, err error)
	AddStreamLine(id int, line string)
	AddProgressBarToStream(id int, done, total int64)
	AddStepProgress(id int, done, total int64)
}

// Run executes jobs on numWorkers workers with a live terminal display. It returns an error
// when at least one job failed; the others still run to completion.
func Run(ctx context.Context, jobs []utils.Job, numWorkers int) error {
	outputMgr := output.NewManager()
	outputMgr.StartDisplay()
	defer outputMgr.StopDisplay()
	return run(ctx, jobs, numWorkers, downloaderRegistry, outputMgr)
}

func run(ctx context.Context, jobs []utils.Job, numWorkers int, registry map[string]entry, sink Sink) error {
	jobCh := make(chan utils.Job, len(jobs))
	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)

	var failed int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < max(numWorkers, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				if err := processJob(ctx, &job, registry, sink); err != nil {
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(jobs))
	}
	return nil
}

func processJob(ctx context.Context, job *utils.Job, registry map[string]entry, sink Sink) error {
	id := sink.Register(job.URL)
	fail := func(stage string, err error) error {
		err = fmt.Errorf("%s failed: %w", stage, err)
		log.Error().Str("op", "scheduler").Str("job", job.ID).Err(err).Msgf("Job for %s failed", job.URL)
		sink.ReportError(id, err)
		return err
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Metadata == nil {
		job.Metadata = make(map[string]any)
	}
	reg, exists := registry[job.JobType]
	if !exists {
		return fail("lookup", fmt.Errorf("unknown job type: %s", job.JobType))
	}
	if ctx.Err() != nil {
		return fail("start", ctx.Err())
	}
	if job.ProgressType == "" {
		job.ProgressType = reg.progressType
	}

	sink.SetMessage(id, fmt.Sprintf("Validating %s job", job.JobType))
	if err := reg.downloader.ValidateJob(job); err != nil {
		return fail("validation", err)
	}
	sink.SetMessage(id, fmt.Sprintf("Building %s job", job.JobType))
	if err := reg.downloader.BuildJob(job); err != nil {
		return fail("build", err)
	}

	sink.SetStatus(id, "downloading")
	sink.SetMessage(id, fmt.Sprintf("Downloading %s", job.OutputPath))
	switch job.ProgressType {
	case ProgressSteps:
		job.ProgressFunc = func(done, total int64) { sink.AddStepProgress(id, done, total) }
	case ProgressBytes:
		job.ProgressFunc = func(done, total int64) { sink.AddProgressBarToStream(id, done, total) }
	}
	job.StreamFunc = func(line string) { sink.AddStreamLine(id, line) }
	log.Info().Str("op", "scheduler").Str("job", job.ID).Msgf("Starting %s download of %s", job.JobType, job.URL)
	if err := reg.downloader.Download(ctx, job); err != nil {
		return fail("download", err)
	}
	sink.Complete(id, fmt.Sprintf("Completed %s", job.OutputPath))
	log.Info().Str("op", "scheduler").Str("job", job.ID).Msgf("Completed %s", job.OutputPath)
	return nil
}

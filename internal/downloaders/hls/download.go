package hls

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/utils"
)

func (d *HLSDownloader) Download(ctx context.Context, job *utils.Job) error {
	if job.Metadata == nil {
		job.Metadata = make(map[string]any)
	}
	client := utils.NewHTTPClient(job.HTTPClientConfig)
	scratchRoot, _ := job.Metadata["scratchRoot"].(string)
	if scratchRoot == "" {
		// keep leftovers beside the output so the clean command can find them
		scratchRoot = utils.ScratchRoot(job.OutputPath)
		defer os.Remove(scratchRoot)
	}
	cfg := Config{
		MaxRetries:  job.Retries,
		RetryWait:   job.RetryWait,
		ScratchRoot: scratchRoot,
	}
	var lastMessage string
	sink := func(p Progress) {
		if job.ProgressFunc != nil {
			job.ProgressFunc(int64(p.Completed), int64(p.Total))
		}
		if job.StreamFunc != nil && p.Message != lastMessage {
			job.StreamFunc(p.Message)
			lastMessage = p.Message
		}
	}
	result, err := NewOrchestrator(client, cfg, sink).Run(ctx, job.URL, job.OutputPath)
	job.Metadata["hlsJobID"] = result.ID
	job.Metadata["segments"] = result.Total
	if err != nil {
		utils.ReleaseOutputPath(job.OutputPath)
		job.Metadata["errorKind"] = string(KindOf(err))
		return err
	}
	log.Info().Str("op", "hls/download").Msgf("Saved %s from %d segments", job.OutputPath, result.Total)
	return nil
}

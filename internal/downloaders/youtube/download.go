package youtube

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/utils"
)

func (d *YouTubeDownloader) Download(ctx context.Context, job *utils.Job) error {
	ytdlpPath, ok := job.Metadata["ytdlpPath"].(string)
	if !ok || ytdlpPath == "" {
		return fmt.Errorf("yt-dlp path not resolved, job was not built")
	}
	if _, ok := job.Metadata["ytdlpFormat"].(string); !ok {
		return fmt.Errorf("yt-dlp format not resolved, job was not built")
	}
	dir := outputDir(job.OutputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating output directory: %v", err)
	}

	cmd := exec.CommandContext(ctx, ytdlpPath, buildArgs(job)...)
	log.Debug().Str("op", "youtube/download").Msgf("Executing yt-dlp command: %s", cmd.String())
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("error creating stdout pipe: %v", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("error creating stderr pipe: %v", err)
	}
	// mtimes are second-granular on some filesystems
	started := time.Now().Add(-time.Second)
	if err := cmd.Start(); err != nil {
		log.Error().Str("op", "youtube/download").Err(err).Msg("Error starting yt-dlp")
		return fmt.Errorf("error starting yt-dlp: %v", err)
	}

	var mu sync.Mutex
	var finalPath string
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processStream(stdout, func(line string) {
			if path, ok := finalPathFromLine(line); ok {
				mu.Lock()
				finalPath = path
				mu.Unlock()
				return
			}
			emit(job, line)
		})
	}()
	go func() {
		defer wg.Done()
		processStream(stderr, func(line string) { emit(job, line) })
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if cancelled(ctx) {
			return ctx.Err()
		}
		log.Error().Str("op", "youtube/download").Err(err).Msg("yt-dlp command failed")
		return fmt.Errorf("yt-dlp failed: %v", err)
	}

	if finalPath == "" {
		log.Warn().Str("op", "youtube/download").Msg("yt-dlp did not report a file path, checking output directory")
		finalPath, err = newestFile(dir, started)
		if err != nil {
			return fmt.Errorf("error locating downloaded file: %v", err)
		}
	}
	if _, err := os.Stat(finalPath); err != nil {
		return fmt.Errorf("downloaded file missing: %v", err)
	}
	job.OutputPath = finalPath
	job.Metadata["outputFile"] = finalPath
	log.Info().Str("op", "youtube/download").Msgf("yt-dlp download completed for %s -> %s", job.URL, finalPath)
	return nil
}

func emit(job *utils.Job, line string) {
	if job.StreamFunc != nil {
		job.StreamFunc(line)
	}
}

func processStream(reader io.Reader, lineFunc func(string)) {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lineFunc(line)
		}
	}
}

package vidhttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/utils"
)

func (d *HTTPDownloader) Download(ctx context.Context, job *utils.Job) error {
	client := utils.NewHTTPClient(job.HTTPClientConfig)
	fileSize, _ := job.Metadata["fileSize"].(int64)
	progress := func(done, total int64) {
		if job.ProgressFunc != nil {
			job.ProgressFunc(done, total)
		}
	}
	start := time.Now()
	written, err := PerformSimpleDownload(ctx, job.URL, job.OutputPath, fileSize, job.Retries, job.RetryWait, client, progress)
	if err != nil {
		utils.ReleaseOutputPath(job.OutputPath)
		return err
	}
	job.Metadata["totalDownloaded"] = written
	job.Metadata["totalTime"] = time.Since(start).Seconds()
	return nil
}

// PerformSimpleDownload streams url into a .part file under the scratch root and renames it
// to outputPath once complete. Each retry starts the body over.
func PerformSimpleDownload(ctx context.Context, url, outputPath string, size int64, retries int, retryWait time.Duration, client utils.HTTPDoer, progress func(done, total int64)) (int64, error) {
	tempDir := utils.ScratchRoot(outputPath)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return 0, fmt.Errorf("error creating temp directory: %v", err)
	}
	defer os.Remove(tempDir) // only succeeds once empty
	tempOutputPath := filepath.Join(tempDir, filepath.Base(outputPath)+".part")
	attempts := max(retries, 0) + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			log.Warn().Str("op", "http/download").Msgf("Retrying download for %s (attempt %d/%d)", outputPath, attempt, attempts)
			if retryWait > 0 {
				select {
				case <-ctx.Done():
					os.Remove(tempOutputPath)
					return 0, ctx.Err()
				case <-time.After(retryWait * time.Duration(attempt-1)):
				}
			}
		}
		written, err := downloadAttempt(ctx, url, tempOutputPath, size, client, progress)
		if err == nil {
			if err := os.Rename(tempOutputPath, outputPath); err != nil {
				os.Remove(tempOutputPath)
				return 0, fmt.Errorf("error renaming (finalizing) output file: %v", err)
			}
			log.Info().Str("op", "http/download").Msgf("Download successful for %s (%s)", outputPath, utils.FormatBytes(uint64(written)))
			return written, nil
		}
		lastErr = err
		os.Remove(tempOutputPath)
		log.Error().Str("op", "http/download").Err(err).Msgf("Download attempt %d failed", attempt)
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
	}
	return 0, fmt.Errorf("download failed after %d attempts: %w", attempts, lastErr)
}

func downloadAttempt(ctx context.Context, url, tempOutputPath string, size int64, client utils.HTTPDoer, progress func(done, total int64)) (int64, error) {
	outFile, err := os.Create(tempOutputPath)
	if err != nil {
		return 0, fmt.Errorf("error creating output file: %v", err)
	}
	defer outFile.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("error creating GET request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error executing GET request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if resp.ContentLength > 0 {
		size = resp.ContentLength
	}

	var downloaded int64
	progress(0, size)
	buffer := make([]byte, utils.DefaultBufferSize)
	for {
		bytesRead, readErr := resp.Body.Read(buffer)
		if bytesRead > 0 {
			if _, writeErr := outFile.Write(buffer[:bytesRead]); writeErr != nil {
				return downloaded, fmt.Errorf("error writing to output file: %v", writeErr)
			}
			downloaded += int64(bytesRead)
			progress(downloaded, size)
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return downloaded, fmt.Errorf("error reading response body: %v", readErr)
		}
	}
	if err := outFile.Sync(); err != nil {
		return downloaded, fmt.Errorf("error syncing output file: %v", err)
	}
	return downloaded, nil
}

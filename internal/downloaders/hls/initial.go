package hls

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tanq16/vidgrab/internal/utils"
)

type HLSDownloader struct{}

func (d *HLSDownloader) ValidateJob(job *utils.Job) error {
	parsedURL, err := url.Parse(job.URL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("URL has no host: %s", job.URL)
	}
	if extractor, _ := job.Metadata["extract"].(string); extractor != "" && !slices.Contains(Extractors, strings.ToLower(extractor)) {
		return fmt.Errorf("unsupported extractor: %s", extractor)
	}
	if job.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", job.Retries)
	}
	return nil
}

func (d *HLSDownloader) BuildJob(job *utils.Job) error {
	if extractor, _ := job.Metadata["extract"].(string); extractor != "" {
		if err := extractPlaylistURL(context.Background(), job, extractor); err != nil {
			return fmt.Errorf("error extracting playlist URL: %v", err)
		}
	}
	if job.OutputPath == "" {
		name := utils.NameFromURL(job.URL, "")
		if name == "" || strings.HasSuffix(strings.ToLower(name), ".m3u8") {
			name = fmt.Sprintf("stream_%s_%s", time.Now().Format("2006-01-02_15-04-05"), shortID(job.ID))
		}
		job.OutputPath = name
	}
	reserved, err := utils.ReserveOutputPath(utils.EnsureExtension(job.OutputPath, ".mp4"))
	if err != nil {
		return fmt.Errorf("error reserving output path: %v", err)
	}
	job.OutputPath = reserved
	return nil
}

func shortID(id string) string {
	if len(id) < 8 {
		id = uuid.NewString()
	}
	return id[:8]
}

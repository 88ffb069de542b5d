package vidhttp

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/utils"
)

type HTTPDownloader struct{}

var filenameRegex = regexp.MustCompile(`[^a-zA-Z0-9_\-\. ]+`)

func (d *HTTPDownloader) ValidateJob(job *utils.Job) error {
	parsedURL, err := url.Parse(job.URL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", parsedURL.Scheme)
	}
	if job.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", job.Retries)
	}
	return nil
}

func (d *HTTPDownloader) BuildJob(job *utils.Job) error {
	client := utils.NewHTTPClient(job.HTTPClientConfig)
	fileSize, fileName, err := getFileInfo(context.Background(), job.URL, client)
	if err != nil {
		// HEAD is advisory; plenty of video hosts reject it but serve GET fine
		log.Warn().Str("op", "http/initial").Err(err).Msgf("Could not inspect %s", job.URL)
	}
	if job.OutputPath == "" {
		if fileName != "" {
			job.OutputPath = fileName
		} else {
			job.OutputPath = utils.NameFromURL(job.URL, "downloaded_video")
		}
	}
	job.OutputPath = utils.EnsureExtension(job.OutputPath, ".mp4")
	if existingFile, err := os.Stat(job.OutputPath); err == nil {
		if fileSize > 0 && existingFile.Size() == fileSize {
			return fmt.Errorf("file already exists with same size")
		}
	}
	reserved, err := utils.ReserveOutputPath(job.OutputPath)
	if err != nil {
		return fmt.Errorf("error reserving output path: %v", err)
	}
	job.OutputPath = reserved
	job.Metadata["fileSize"] = fileSize
	log.Debug().Str("op", "http/initial").Msgf("Job built for %s -> %s (%d bytes)", job.URL, job.OutputPath, fileSize)
	return nil
}

// getFileInfo issues a HEAD request for the size and any server-suggested file name.
func getFileInfo(ctx context.Context, link string, client utils.HTTPDoer) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0, "", fmt.Errorf("server returned status code %d", resp.StatusCode)
	}
	filename := ""
	if contentDisposition := resp.Header.Get("Content-Disposition"); contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
			if fn, ok := params["filename"]; ok && fn != "" {
				filename = filenameRegex.ReplaceAllString(fn, "_")
			}
		}
	}
	size, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil || size < 0 {
		return 0, filename, nil
	}
	return size, strings.TrimSpace(filename), nil
}

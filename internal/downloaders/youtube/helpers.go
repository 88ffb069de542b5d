package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/utils"
)

const filepathMarker = "VIDGRAB_FILEPATH:"

func releaseAsset(goos, goarch string) (string, error) {
	switch {
	case goos == "windows" && goarch == "amd64":
		return "yt-dlp.exe", nil
	case goos == "windows" && goarch == "arm64":
		return "yt-dlp_arm64.exe", nil
	case goos == "linux" && goarch == "amd64":
		return "yt-dlp_linux", nil
	case goos == "linux" && goarch == "arm64":
		return "yt-dlp_linux_aarch64", nil
	case goos == "darwin":
		return "yt-dlp_macos", nil
	}
	return "", fmt.Errorf("unsupported OS/arch: %s/%s", goos, goarch)
}

func downloadYtdlp(cfg utils.HTTPClientConfig) (string, error) {
	asset, err := releaseAsset(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(utils.TempDirName, 0755); err != nil {
		return "", fmt.Errorf("error creating temp directory: %v", err)
	}
	downloadURL := fmt.Sprintf("https://github.com/yt-dlp/yt-dlp/releases/latest/download/%s", asset)
	filePath := filepath.Join(utils.TempDirName, binaryName("yt-dlp"))
	log.Info().Str("op", "youtube/helpers").Msgf("Downloading yt-dlp from %s", downloadURL)
	if err := downloadFile(utils.NewHTTPClient(cfg), downloadURL, filePath); err != nil {
		return "", err
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(filePath, 0755); err != nil {
			return "", fmt.Errorf("error setting permissions: %v", err)
		}
	}
	return filePath, nil
}

func downloadFile(client utils.HTTPDoer, url, path string) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	return out.Close()
}

// buildArgs assembles the yt-dlp command line. The final path is echoed with a marker so it
// can be told apart from progress output.
func buildArgs(job *utils.Job) []string {
	args := []string{
		"--newline",
		"--no-playlist",
		"--no-warnings",
		"--no-simulate",
		"--print", "after_move:" + filepathMarker + "%(filepath)s",
	}
	if format, ok := job.Metadata["ytdlpFormat"].(string); ok && format != "" {
		args = append(args, "-f", format)
	}
	if ffmpegPath, ok := job.Metadata["ffmpegPath"].(string); ok {
		args = append(args, "--ffmpeg-location", ffmpegPath)
	}
	if proxy := job.HTTPClientConfig.ProxyURL; proxy != "" {
		args = append(args, "--proxy", proxyWithCredentials(job.HTTPClientConfig))
	}
	if ua := job.HTTPClientConfig.UserAgent; ua != "" && ua != utils.ToolUserAgent {
		args = append(args, "--user-agent", ua)
	}
	for k, v := range job.HTTPClientConfig.Headers {
		args = append(args, "--add-headers", k+":"+v)
	}
	if job.Retries > 0 {
		args = append(args, "--retries", fmt.Sprint(job.Retries))
	}
	args = append(args, "-o", job.OutputPath, job.URL)
	return args
}

func proxyWithCredentials(cfg utils.HTTPClientConfig) string {
	if cfg.ProxyUsername == "" {
		return cfg.ProxyURL
	}
	scheme, rest, found := strings.Cut(cfg.ProxyURL, "://")
	if !found {
		scheme, rest = "http", cfg.ProxyURL
	}
	return fmt.Sprintf("%s://%s:%s@%s", scheme, cfg.ProxyUsername, cfg.ProxyPassword, rest)
}

// finalPathFromLine extracts the file path yt-dlp printed after post-processing.
func finalPathFromLine(line string) (string, bool) {
	path, found := strings.CutPrefix(strings.TrimSpace(line), filepathMarker)
	if !found || path == "" || path == "NA" {
		return "", false
	}
	return path, true
}

// newestFile returns the most recently modified regular file in dir changed at or after since.
func newestFile(dir string, since time.Time) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var newest string
	var newestTime time.Time
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".part") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime()
		if mod.Before(since) {
			continue
		}
		if newest == "" || mod.After(newestTime) {
			newest = filepath.Join(dir, entry.Name())
			newestTime = mod
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no new file found in %s", dir)
	}
	return newest, nil
}

func outputDir(template string) string {
	dir := filepath.Dir(template)
	if dir == "" {
		return "."
	}
	return dir
}

func cancelled(ctx context.Context) bool {
	return ctx.Err() != nil
}

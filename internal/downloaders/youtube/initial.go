package youtube

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/utils"
)

// YouTubeDownloader hands the URL to yt-dlp, which resolves and fetches the stream itself.
// Despite the name it accepts any site yt-dlp understands.
type YouTubeDownloader struct{}

const defaultTemplate = "%(title)s.%(ext)s"

var ytdlpFormats = map[string]string{
	"best":     "bestvideo+bestaudio/best",
	"best60":   "bestvideo[fps<=60]+bestaudio/best",
	"bestmp4":  "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]",
	"decent":   "bestvideo[height<=1080]+bestaudio/best",
	"decent60": "bestvideo[height<=1080][fps<=60]+bestaudio/best",
	"cheap":    "bestvideo[height<=720]+bestaudio/best",
	"1080p":    "bestvideo[height=1080][ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]",
	"1080p60":  "bestvideo[height=1080][fps<=60][ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]",
	"720p":     "bestvideo[height=720][ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]",
	"480p":     "bestvideo[height=480][ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]",
	"audio":    "bestaudio[ext=m4a]/bestaudio",
}

// single-file fallback used when ffmpeg is unavailable to merge separate streams
const noMergeFormat = "best[ext=mp4]/best"

func (d *YouTubeDownloader) ValidateJob(job *utils.Job) error {
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
	if format, ok := job.Metadata["format"].(string); ok && format != "" {
		if _, exists := ytdlpFormats[format]; !exists {
			return fmt.Errorf("unsupported format: %s", format)
		}
	}
	return nil
}

func (d *YouTubeDownloader) BuildJob(job *utils.Job) error {
	format, ok := job.Metadata["format"].(string)
	if !ok || format == "" {
		format = "best"
		job.Metadata["format"] = format
	}
	job.Metadata["ytdlpFormat"] = ytdlpFormats[format]

	if _, ok := job.Metadata["ytdlpPath"].(string); !ok {
		ytdlpPath, err := EnsureYtdlp(job.HTTPClientConfig)
		if err != nil {
			return fmt.Errorf("error ensuring yt-dlp: %v", err)
		}
		job.Metadata["ytdlpPath"] = ytdlpPath
	}
	if ffmpegPath, err := findExecutable("ffmpeg"); err == nil {
		job.Metadata["ffmpegPath"] = ffmpegPath
	} else if format != "audio" {
		log.Warn().Str("op", "youtube/initial").Msg("ffmpeg not found, falling back to a single-file format")
		job.Metadata["ytdlpFormat"] = noMergeFormat
	}

	if job.OutputPath == "" {
		job.OutputPath = defaultTemplate
	} else if filepath.Ext(job.OutputPath) == "" {
		job.OutputPath += ".%(ext)s"
	}
	return nil
}

// EnsureYtdlp returns a usable yt-dlp binary: PATH first, then beside the executable,
// then a fresh release download into the temp dir.
func EnsureYtdlp(cfg utils.HTTPClientConfig) (string, error) {
	if path, err := findExecutable("yt-dlp"); err == nil {
		return path, nil
	}
	cached := filepath.Join(utils.TempDirName, binaryName("yt-dlp"))
	if _, err := os.Stat(cached); err == nil {
		return cached, nil
	}
	return downloadYtdlp(cfg)
}

func findExecutable(name string) (string, error) {
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	execPath, err := os.Executable()
	if err == nil {
		candidate := filepath.Join(filepath.Dir(execPath), binaryName(name))
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s not found in PATH or beside the executable", name)
}

func binaryName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

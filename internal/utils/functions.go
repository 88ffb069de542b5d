package utils

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

func GetRandomUserAgent() string {
	return userAgents[time.Now().UnixNano()%int64(len(userAgents))]
}

// RenewOutputPath returns the first "name-(n).ext" sibling of outputPath that does not exist yet.
func RenewOutputPath(outputPath string) string {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	index := 1
	for {
		outputPath = filepath.Join(dir, fmt.Sprintf("%s-(%d)%s", name, index, ext))
		if _, err := os.Stat(outputPath); os.IsNotExist(err) {
			return outputPath
		}
		index++
	}
}

// ReserveOutputPath claims outputPath, or its first free "-(n)" sibling, by creating an empty
// placeholder with O_EXCL, so concurrent jobs never settle on the same file. The download
// later renames its result over the placeholder.
func ReserveOutputPath(outputPath string) (string, error) {
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
	}
	candidate := outputPath
	for {
		f, err := os.OpenFile(candidate, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			return candidate, f.Close()
		}
		if !os.IsExist(err) {
			return "", err
		}
		candidate = RenewOutputPath(outputPath)
	}
}

// ReleaseOutputPath removes a placeholder left by ReserveOutputPath when nothing was written to it.
func ReleaseOutputPath(outputPath string) {
	if info, err := os.Stat(outputPath); err == nil && info.Mode().IsRegular() && info.Size() == 0 {
		os.Remove(outputPath)
	}
}

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// NameFromURL takes the last path element of rawURL, or fallback when there is none.
func NameFromURL(rawURL, fallback string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	name := path.Base(parsed.Path)
	if name == "" || name == "." || name == "/" {
		return fallback
	}
	return name
}

// EnsureExtension appends ext when the file name of p carries no extension at all.
func EnsureExtension(p, ext string) string {
	if filepath.Ext(filepath.Base(p)) == "" {
		return p + ext
	}
	return p
}

// ScratchRoot is the parent of every per-job scratch directory for outputs written next to outputPath.
func ScratchRoot(outputPath string) string {
	return filepath.Join(filepath.Dir(outputPath), TempDirName)
}

// Clean removes leftovers of interrupted jobs for outputPath: its .part files and any
// hls_* scratch directories. The temp root itself goes once it is empty.
func Clean(outputPath string) error {
	tempDir := ScratchRoot(outputPath)
	files, err := os.ReadDir(tempDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	partPrefix := filepath.Base(outputPath) + ".part"
	for _, file := range files {
		filePath := filepath.Join(tempDir, file.Name())
		stale := strings.HasPrefix(file.Name(), partPrefix) ||
			(file.IsDir() && strings.HasPrefix(file.Name(), "hls_"))
		if !stale {
			continue
		}
		if err := os.RemoveAll(filePath); err != nil {
			return err
		}
	}
	remainingFiles, err := os.ReadDir(tempDir)
	if err != nil {
		return err
	}
	if len(remainingFiles) == 0 {
		return os.Remove(tempDir)
	}
	return nil
}

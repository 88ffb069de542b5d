package hls

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/utils"
)

// Merge concatenates files, in order and byte for byte, into outputPath. The artifact is
// assembled in a temp file next to outputPath and renamed into place, so a failed merge
// never leaves a truncated output behind.
func Merge(files []string, outputPath string) (err error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return &IOError{Op: "creating output directory", Path: filepath.Dir(outputPath), Err: err}
	}
	out, err := os.CreateTemp(filepath.Dir(outputPath), "."+filepath.Base(outputPath)+".merge-*")
	if err != nil {
		return &IOError{Op: "creating output file", Path: outputPath, Err: err}
	}
	tempPath := out.Name()
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(tempPath)
		}
	}()

	buffer := make([]byte, utils.DefaultBufferSize)
	var total int64
	for _, file := range files {
		n, err := appendFile(out, file, buffer)
		if err != nil {
			return err
		}
		total += n
	}
	if err := out.Close(); err != nil {
		return &IOError{Op: "closing output file", Path: tempPath, Err: err}
	}
	if err := os.Rename(tempPath, outputPath); err != nil {
		return &IOError{Op: "finalizing output file", Path: outputPath, Err: err}
	}
	log.Debug().Str("op", "hls/merge").Msgf("Merged %d segments (%s) into %s", len(files), utils.FormatBytes(uint64(total)), outputPath)
	return nil
}

func appendFile(out *os.File, file string, buffer []byte) (int64, error) {
	in, err := os.Open(file)
	if err != nil {
		return 0, &IOError{Op: "opening segment file", Path: file, Err: err}
	}
	defer in.Close()
	n, err := io.CopyBuffer(out, in, buffer)
	if err != nil {
		return n, &IOError{Op: "appending segment file", Path: file, Err: err}
	}
	return n, nil
}

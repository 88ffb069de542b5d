package hls

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tanq16/vidgrab/internal/utils"
)

func TestValidateJob(t *testing.T) {
	d := &HLSDownloader{}
	tests := []struct {
		url     string
		retries int
		wantErr bool
	}{
		{url: "https://cdn.example.com/live/index.m3u8", retries: 3},
		{url: "http://cdn.example.com/master.m3u8", retries: 0},
		{url: "ftp://cdn.example.com/index.m3u8", wantErr: true},
		{url: "/relative/index.m3u8", wantErr: true},
		{url: "https:///index.m3u8", wantErr: true},
		{url: "https://cdn.example.com/index.m3u8", retries: -1, wantErr: true},
	}
	for _, tt := range tests {
		err := d.ValidateJob(&utils.Job{URL: tt.url, Retries: tt.retries})
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateJob(%q, %d) error = %v, wantErr %v", tt.url, tt.retries, err, tt.wantErr)
		}
	}
}

func TestBuildJobOutputPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	d := &HLSDownloader{}

	job := &utils.Job{URL: "https://cdn.example.com/live/index.m3u8", Metadata: map[string]any{}}
	if err := d.BuildJob(job); err != nil {
		t.Fatalf("BuildJob() error = %v", err)
	}
	if !strings.HasPrefix(job.OutputPath, "stream_") || filepath.Ext(job.OutputPath) != ".mp4" {
		t.Fatalf("OutputPath = %q, want stream_<time>.mp4", job.OutputPath)
	}

	job = &utils.Job{URL: "https://cdn.example.com/x.m3u8", OutputPath: filepath.Join(dir, "clip")}
	d.BuildJob(job)
	if want := filepath.Join(dir, "clip.mp4"); job.OutputPath != want {
		t.Fatalf("OutputPath = %q, want %q", job.OutputPath, want)
	}

	existing := filepath.Join(dir, "taken.ts")
	os.WriteFile(existing, []byte("x"), 0644)
	job = &utils.Job{URL: "https://cdn.example.com/x.m3u8", OutputPath: existing}
	d.BuildJob(job)
	if want := filepath.Join(dir, "taken-(1).ts"); job.OutputPath != want {
		t.Fatalf("OutputPath = %q, want %q", job.OutputPath, want)
	}
}

func TestDownloadReportsToJobSinks(t *testing.T) {
	srv := newStreamServer(t, 3, nil)
	out := filepath.Join(t.TempDir(), "v.mp4")
	var lines []string
	var done, total int64
	job := &utils.Job{
		URL:              srv.URL + "/master.m3u8",
		OutputPath:       out,
		Retries:          2,
		HTTPClientConfig: utils.HTTPClientConfig{},
		Metadata:         map[string]any{"scratchRoot": t.TempDir()},
		ProgressFunc:     func(d, tot int64) { done, total = d, tot },
		StreamFunc:       func(line string) { lines = append(lines, line) },
	}
	if err := (&HLSDownloader{}).Download(context.Background(), job); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if done != total || total != 4 {
		t.Fatalf("final progress = %d/%d, want 4/4", done, total)
	}
	if job.Metadata["segments"] != 3 {
		t.Fatalf("segments metadata = %v, want 3", job.Metadata["segments"])
	}
	if len(lines) == 0 || lines[len(lines)-1] != "HLS download and merge complete" {
		t.Fatalf("stream lines = %v", lines)
	}
	got, _ := os.ReadFile(out)
	if !bytes.Equal(got, bytes.Join(srv.segments, nil)) {
		t.Fatal("downloaded output differs from the served segments")
	}
}

func TestDownloadDefaultScratchBesideOutput(t *testing.T) {
	srv := newStreamServer(t, 2, nil)
	dir := t.TempDir()
	job := &utils.Job{
		URL:        srv.URL + "/high.m3u8",
		OutputPath: filepath.Join(dir, "v.mp4"),
		Metadata:   map[string]any{},
	}
	if err := (&HLSDownloader{}).Download(context.Background(), job); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if _, err := os.Stat(utils.ScratchRoot(job.OutputPath)); !os.IsNotExist(err) {
		t.Fatalf("scratch root left beside output: %v", err)
	}
}

func TestBuildJobDefaultNamesAreUnique(t *testing.T) {
	t.Chdir(t.TempDir())
	d := &HLSDownloader{}
	a := &utils.Job{URL: "https://a.example/live/index.m3u8", Metadata: map[string]any{}}
	b := &utils.Job{URL: "https://b.example/vod/index.m3u8", Metadata: map[string]any{}}
	for _, job := range []*utils.Job{a, b} {
		if err := d.BuildJob(job); err != nil {
			t.Fatalf("BuildJob() error = %v", err)
		}
		if _, err := os.Stat(job.OutputPath); err != nil {
			t.Fatalf("output path %q not reserved: %v", job.OutputPath, err)
		}
	}
	if a.OutputPath == b.OutputPath {
		t.Fatalf("both jobs were given %q", a.OutputPath)
	}
}

func TestBuildJobSameExplicitPathTwice(t *testing.T) {
	out := filepath.Join(t.TempDir(), "show.mp4")
	d := &HLSDownloader{}
	first := &utils.Job{URL: "https://cdn.example.com/x.m3u8", OutputPath: out}
	second := &utils.Job{URL: "https://cdn.example.com/y.m3u8", OutputPath: out}
	d.BuildJob(first)
	d.BuildJob(second)
	if first.OutputPath != out || second.OutputPath != filepath.Join(filepath.Dir(out), "show-(1).mp4") {
		t.Fatalf("paths = %q, %q", first.OutputPath, second.OutputPath)
	}
}

func TestFailedDownloadReleasesReservedPath(t *testing.T) {
	srv := newStreamServer(t, 2, nil)
	job := &utils.Job{URL: srv.URL + "/missing.m3u8", OutputPath: filepath.Join(t.TempDir(), "v.mp4"), Metadata: map[string]any{}}
	d := &HLSDownloader{}
	if err := d.BuildJob(job); err != nil {
		t.Fatalf("BuildJob() error = %v", err)
	}
	if err := d.Download(context.Background(), job); err == nil {
		t.Fatal("expected failure for a missing playlist")
	}
	if _, err := os.Stat(job.OutputPath); !os.IsNotExist(err) {
		t.Fatalf("placeholder left after failure: %v", err)
	}
}

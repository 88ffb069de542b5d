package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tanq16/vidgrab/internal/downloaders/hls"
	"github.com/tanq16/vidgrab/internal/utils"
)

type recordingSink struct {
	mu        sync.Mutex
	next      int
	completed map[int]string
	errs      map[int]error
	steps     map[int][2]int64
	lines     map[int][]string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		completed: map[int]string{},
		errs:      map[int]error{},
		steps:     map[int][2]int64{},
		lines:     map[int][]string{},
	}
}

func (s *recordingSink) Register(string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next
}
func (s *recordingSink) SetMessage(int, string) {}
func (s *recordingSink) SetStatus(int, string)  {}
func (s *recordingSink) Complete(id int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[id] = msg
}
func (s *recordingSink) ReportError(id int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[id] = err
}
func (s *recordingSink) AddStreamLine(id int, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines[id] = append(s.lines[id], line)
}
func (s *recordingSink) AddProgressBarToStream(int, int64, int64) {}
func (s *recordingSink) AddStepProgress(id int, done, total int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[id] = [2]int64{done, total}
}

type fakeDownloader struct {
	validateErr error
	downloadErr error
	mu          sync.Mutex
	seen        []*utils.Job
}

func (f *fakeDownloader) ValidateJob(job *utils.Job) error { return f.validateErr }
func (f *fakeDownloader) BuildJob(job *utils.Job) error {
	if job.OutputPath == "" {
		job.OutputPath = "built.mp4"
	}
	return nil
}
func (f *fakeDownloader) Download(ctx context.Context, job *utils.Job) error {
	f.mu.Lock()
	f.seen = append(f.seen, job)
	f.mu.Unlock()
	if f.downloadErr != nil {
		return f.downloadErr
	}
	job.ProgressFunc(3, 3)
	job.StreamFunc("done")
	return nil
}

func TestRunSuccess(t *testing.T) {
	fake := &fakeDownloader{}
	registry := map[string]entry{"hls": {fake, ProgressSteps}}
	sink := newRecordingSink()
	jobs := []utils.Job{
		{JobType: "hls", URL: "https://a.example/x.m3u8"},
		{JobType: "hls", URL: "https://a.example/y.m3u8", OutputPath: "y.mp4"},
	}
	if err := run(context.Background(), jobs, 2, registry, sink); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if len(sink.completed) != 2 || len(sink.errs) != 0 {
		t.Fatalf("completed=%d errors=%d", len(sink.completed), len(sink.errs))
	}
	for id, s := range sink.steps {
		if s != [2]int64{3, 3} {
			t.Errorf("job %d steps = %v", id, s)
		}
	}
	for _, job := range fake.seen {
		if job.ID == "" || job.Metadata == nil || job.ProgressType != ProgressSteps {
			t.Errorf("job not prepared: id=%q metadata=%v progress=%q", job.ID, job.Metadata, job.ProgressType)
		}
	}
}

func TestRunReportsFailures(t *testing.T) {
	segErr := errors.New("segment 2 failed after 4 attempts")
	registry := map[string]entry{
		"ok":      {&fakeDownloader{}, ProgressBytes},
		"invalid": {&fakeDownloader{validateErr: errors.New("bad url")}, ProgressBytes},
		"broken":  {&fakeDownloader{downloadErr: segErr}, ProgressSteps},
	}
	sink := newRecordingSink()
	jobs := []utils.Job{
		{JobType: "ok", URL: "u1"},
		{JobType: "invalid", URL: "u2"},
		{JobType: "broken", URL: "u3"},
		{JobType: "ftp", URL: "u4"},
	}
	err := run(context.Background(), jobs, 1, registry, sink)
	if err == nil || !strings.Contains(err.Error(), "3 of 4 jobs failed") {
		t.Fatalf("run() error = %v", err)
	}
	if len(sink.completed) != 1 {
		t.Fatalf("completed = %d, want 1", len(sink.completed))
	}
	var sawSegErr bool
	for _, e := range sink.errs {
		if errors.Is(e, segErr) {
			sawSegErr = true
		}
	}
	if !sawSegErr {
		t.Error("download error was not wrapped with %w")
	}
}

func TestRunCanceledContextSkipsJobs(t *testing.T) {
	fake := &fakeDownloader{}
	registry := map[string]entry{"hls": {fake, ProgressSteps}}
	sink := newRecordingSink()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var jobs []utils.Job
	for i := 0; i < 3; i++ {
		jobs = append(jobs, utils.Job{JobType: "hls", URL: fmt.Sprintf("u%d", i)})
	}
	if err := run(ctx, jobs, 2, registry, sink); err == nil {
		t.Fatal("expected error for canceled run")
	}
	if len(fake.seen) != 0 {
		t.Fatalf("downloader ran %d times after cancellation", len(fake.seen))
	}
	for _, e := range sink.errs {
		if !errors.Is(e, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", e)
		}
	}
}

func TestRegistryCoversJobTypes(t *testing.T) {
	for _, jt := range JobTypes() {
		if _, ok := downloaderRegistry[jt]; !ok {
			t.Errorf("job type %q has no downloader", jt)
		}
	}
}

func TestRunConcurrentJobsSameOutputPath(t *testing.T) {
	segments := [][]byte{bytes.Repeat([]byte{1}, 700), bytes.Repeat([]byte{2}, 900), bytes.Repeat([]byte{3}, 500)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/index.m3u8" {
			fmt.Fprint(w, "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:4\n#EXT-X-MEDIA-SEQUENCE:0\n")
			for i := range segments {
				fmt.Fprintf(w, "#EXTINF:4.000,\nseg%d.ts\n", i)
			}
			fmt.Fprint(w, "#EXT-X-ENDLIST\n")
			return
		}
		var idx int
		if _, err := fmt.Sscanf(r.URL.Path, "/seg%d.ts", &idx); err != nil || idx >= len(segments) {
			http.NotFound(w, r)
			return
		}
		// keep both jobs in flight at the same time
		time.Sleep(50 * time.Millisecond)
		w.Write(segments[idx])
	}))
	defer srv.Close()

	dir := t.TempDir()
	out := filepath.Join(dir, "video.mp4")
	jobs := []utils.Job{
		{JobType: "hls", URL: srv.URL + "/index.m3u8", OutputPath: out},
		{JobType: "hls", URL: srv.URL + "/index.m3u8", OutputPath: out},
	}
	registry := map[string]entry{"hls": {&hls.HLSDownloader{}, ProgressSteps}}
	sink := newRecordingSink()
	if err := run(context.Background(), jobs, 2, registry, sink); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if len(sink.completed) != 2 || len(sink.errs) != 0 {
		t.Fatalf("completed=%d errors=%v", len(sink.completed), sink.errs)
	}
	want := bytes.Join(segments, nil)
	for _, path := range []string{out, filepath.Join(dir, "video-(1).mp4")} {
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading %s: %v", path, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("%s has %d bytes, want the %d merged segment bytes", path, len(got), len(want))
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("output dir holds %v, want exactly the two videos", names)
	}
}

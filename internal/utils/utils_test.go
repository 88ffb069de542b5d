package utils

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRenewOutputPath(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "video.mp4")
	os.WriteFile(base, nil, 0644)
	if got, want := RenewOutputPath(base), filepath.Join(dir, "video-(1).mp4"); got != want {
		t.Fatalf("RenewOutputPath = %q, want %q", got, want)
	}
	os.WriteFile(filepath.Join(dir, "video-(1).mp4"), nil, 0644)
	if got, want := RenewOutputPath(base), filepath.Join(dir, "video-(2).mp4"); got != want {
		t.Fatalf("RenewOutputPath = %q, want %q", got, want)
	}
}

func TestParseHeaderArgs(t *testing.T) {
	got := ParseHeaderArgs([]string{"Referer: https://example.com", "X-Token:abc:def", "malformed"})
	if len(got) != 2 || got["Referer"] != "https://example.com" || got["X-Token"] != "abc:def" {
		t.Fatalf("ParseHeaderArgs = %v", got)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[uint64]string{
		0:               "0 B",
		1023:            "1023 B",
		1024:            "1.00 KB",
		5 * 1024 * 1024: "5.00 MB",
	}
	for in, want := range tests {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestNameFromURLAndExtension(t *testing.T) {
	if got := NameFromURL("https://cdn.example.com/a/b/clip.ts?sig=1", "x"); got != "clip.ts" {
		t.Errorf("NameFromURL = %q", got)
	}
	if got := NameFromURL("https://cdn.example.com/", "fallback"); got != "fallback" {
		t.Errorf("NameFromURL root = %q", got)
	}
	if got := EnsureExtension("dir.v1/movie", ".mp4"); got != "dir.v1/movie.mp4" {
		t.Errorf("EnsureExtension = %q", got)
	}
	if got := EnsureExtension("movie.ts", ".mp4"); got != "movie.ts" {
		t.Errorf("EnsureExtension kept = %q", got)
	}
}

func TestClean(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "video.mp4")
	root := ScratchRoot(out)
	os.MkdirAll(filepath.Join(root, "hls_1234", "nested"), 0755)
	os.WriteFile(filepath.Join(root, "video.mp4.part"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(root, "other.mp4.part"), []byte("x"), 0644)

	if err := Clean(out); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "other.mp4.part" {
		t.Fatalf("remaining entries = %v", entries)
	}

	os.Remove(filepath.Join(root, "other.mp4.part"))
	if err := Clean(out); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Fatalf("empty temp root not removed: %v", err)
	}
	if err := Clean(out); err != nil {
		t.Fatalf("Clean without temp root: %v", err)
	}
}

func TestHTTPClientSetsHeaders(t *testing.T) {
	var gotUA, gotRef string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA, gotRef = r.UserAgent(), r.Header.Get("Referer")
	}))
	defer srv.Close()

	headers := map[string]string{"Referer": "https://example.com"}
	client := NewHTTPClient(HTTPClientConfig{Headers: headers})
	client.SetHeader("X-Extra", "1")
	if _, ok := headers["X-Extra"]; ok {
		t.Fatal("SetHeader mutated the caller's header map")
	}
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if gotUA != ToolUserAgent || gotRef != "https://example.com" {
		t.Fatalf("UA=%q Referer=%q", gotUA, gotRef)
	}
}

// newDripServer writes chunks of 1KB with gap between them, then stalls for stall.
func newDripServer(t *testing.T, chunks int, gap, stall time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < chunks; i++ {
			if i > 0 {
				time.Sleep(gap)
			}
			w.Write(make([]byte, 1024))
			flusher.Flush()
		}
		if stall > 0 {
			select {
			case <-r.Context().Done():
			case <-time.After(stall):
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClientTimeoutIsPerRead(t *testing.T) {
	// 8 chunks 100ms apart take far longer than the 300ms timeout overall
	srv := newDripServer(t, 8, 100*time.Millisecond, 0)
	client := NewHTTPClient(HTTPClientConfig{Timeout: 300 * time.Millisecond})
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("steady stream failed: %v", err)
	}
	if len(body) != 8*1024 {
		t.Fatalf("read %d bytes, want %d", len(body), 8*1024)
	}
}

func TestHTTPClientIdleBodyTimesOut(t *testing.T) {
	srv := newDripServer(t, 1, 0, 5*time.Second)
	client := NewHTTPClient(HTTPClientConfig{Timeout: 200 * time.Millisecond})
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	start := time.Now()
	_, err = io.ReadAll(resp.Body)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ReadAll error = %v, want idle deadline", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("idle timeout took %s", elapsed)
	}
}

func TestReserveOutputPathConcurrent(t *testing.T) {
	target := filepath.Join(t.TempDir(), "sub", "stream.mp4")
	const n = 8
	paths := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() {
			p, err := ReserveOutputPath(target)
			if err != nil {
				t.Error(err)
			}
			paths <- p
		}()
	}
	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		p := <-paths
		if seen[p] {
			t.Fatalf("path %q reserved twice", p)
		}
		seen[p] = true
	}
	if !seen[target] {
		t.Errorf("no job got the requested path %q", target)
	}

	ReleaseOutputPath(target)
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Errorf("empty placeholder not released: %v", err)
	}
	kept := filepath.Join(filepath.Dir(target), "kept.mp4")
	os.WriteFile(kept, []byte("video"), 0644)
	ReleaseOutputPath(kept)
	if _, err := os.Stat(kept); err != nil {
		t.Errorf("ReleaseOutputPath removed a written file: %v", err)
	}
}

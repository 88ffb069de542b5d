package hls

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/utils"
)

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeTransient
	OutcomeExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransient:
		return "transient"
	case OutcomeExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Attempt records one try at a segment. Number runs from 1 to MaxRetries+1.
type Attempt struct {
	Ordinal int
	Number  int
	Bytes   int64
	Outcome Outcome
	Err     error
}

type FetchResult struct {
	Bytes    int64
	Attempts []Attempt
}

// attemptFunc streams the body of url into w and returns the byte count.
type attemptFunc func(ctx context.Context, url string, w io.Writer) (int64, error)

const maxRetryWait = 10 * time.Second

// Fetcher downloads single segments. MaxRetries is the number of extra attempts after
// the first; RetryWait, when set, is multiplied by the attempt number between attempts.
type Fetcher struct {
	MaxRetries int
	RetryWait  time.Duration
	attempt    attemptFunc
}

func NewFetcher(client utils.HTTPDoer, maxRetries int, retryWait time.Duration) *Fetcher {
	return &Fetcher{
		MaxRetries: max(maxRetries, 0),
		RetryWait:  retryWait,
		attempt:    httpAttempt(client),
	}
}

func httpAttempt(client utils.HTTPDoer) attemptFunc {
	return func(ctx context.Context, url string, w io.Writer) (int64, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, fmt.Errorf("error creating request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, fmt.Errorf("error downloading segment: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return 0, fmt.Errorf("server returned status code %d", resp.StatusCode)
		}
		buffer := make([]byte, utils.DefaultBufferSize)
		written, err := io.CopyBuffer(w, resp.Body, buffer)
		if err != nil {
			var ioErr *IOError
			if errors.As(err, &ioErr) {
				return written, ioErr
			}
			return written, fmt.Errorf("error reading segment body: %w", err)
		}
		return written, nil
	}
}

// Fetch writes seg to dst. On success dst holds exactly the bytes of the last attempt;
// on failure dst does not exist. Attempts are returned in both cases.
func (f *Fetcher) Fetch(ctx context.Context, seg Segment, dst string) (FetchResult, error) {
	var result FetchResult
	total := f.MaxRetries + 1
	var lastErr error
	for number := 1; number <= total; number++ {
		if number > 1 && f.RetryWait > 0 {
			if err := sleepContext(ctx, min(f.RetryWait*time.Duration(number-1), maxRetryWait)); err != nil {
				return result, err
			}
		}
		written, err := f.attemptOnce(ctx, seg, dst)
		record := Attempt{Ordinal: seg.Ordinal, Number: number, Bytes: written}
		if err == nil {
			record.Outcome = OutcomeSuccess
			result.Attempts = append(result.Attempts, record)
			result.Bytes = written
			return result, nil
		}
		lastErr = err
		record.Err = err
		// local disk failures and cancellation end the loop, retrying will not help
		var ioErr *IOError
		fatal := errors.As(err, &ioErr) || ctx.Err() != nil
		record.Outcome = OutcomeTransient
		if number == total || fatal {
			record.Outcome = OutcomeExhausted
		}
		result.Attempts = append(result.Attempts, record)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		if fatal {
			return result, err
		}
		if number < total {
			log.Warn().Str("op", "hls/fetcher").Err(err).Msgf("Segment %d attempt %d/%d failed, retrying", seg.Ordinal, number, total)
		}
	}
	log.Error().Str("op", "hls/fetcher").Err(lastErr).Msgf("Segment %d exhausted %d attempts", seg.Ordinal, total)
	return result, &SegmentFetchError{Ordinal: seg.Ordinal, Attempts: total, Err: lastErr}
}

// attemptOnce truncates dst, streams into it and removes it again if anything fails.
func (f *Fetcher) attemptOnce(ctx context.Context, seg Segment, dst string) (int64, error) {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, &IOError{Op: "creating segment file", Path: dst, Err: err}
	}
	written, err := f.attempt(ctx, seg.URI, &segmentWriter{w: out, path: dst})
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = &IOError{Op: "closing segment file", Path: dst, Err: closeErr}
	}
	if err != nil {
		os.Remove(dst)
		return written, err
	}
	return written, nil
}

// segmentWriter reports local write failures as *IOError so they are not retried.
type segmentWriter struct {
	w    io.Writer
	path string
}

func (s *segmentWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		return n, &IOError{Op: "writing segment", Path: s.path, Err: err}
	}
	return n, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package hls

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNoRenditions = errors.New("no renditions in master playlist")
	ErrNoSegments   = errors.New("no segments in media playlist")
	ErrNestedMaster = errors.New("rendition resolved to another master playlist")
)

// FetchError is a playlist that could not be loaded.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("error fetching playlist %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError is a playlist that loaded but is not a usable HLS document.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("error parsing playlist %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SegmentFetchError is returned once a segment has used up its retry budget.
// Err is the cause of the last attempt.
type SegmentFetchError struct {
	Ordinal  int
	Attempts int
	Err      error
}

func (e *SegmentFetchError) Error() string {
	return fmt.Sprintf("segment %d failed after %d attempts: %v", e.Ordinal, e.Attempts, e.Err)
}

func (e *SegmentFetchError) Unwrap() error { return e.Err }

// IOError is a local filesystem failure (scratch area, segment file or output artifact).
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("error %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

type Kind string

const (
	KindNone         Kind = ""
	KindFetch        Kind = "fetch"
	KindParse        Kind = "parse"
	KindNoRenditions Kind = "no-renditions"
	KindNoSegments   Kind = "no-segments"
	KindSegmentFetch Kind = "segment-fetch"
	KindIO           Kind = "io"
	KindCanceled     Kind = "canceled"
	KindUnknown      Kind = "unknown"
)

// KindOf classifies err so callers can branch on the cause of a failed job.
func KindOf(err error) Kind {
	var (
		fetchErr   *FetchError
		parseErr   *ParseError
		segmentErr *SegmentFetchError
		ioErr      *IOError
	)
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNoRenditions):
		return KindNoRenditions
	case errors.Is(err, ErrNoSegments):
		return KindNoSegments
	case errors.As(err, &segmentErr):
		return KindSegmentFetch
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &fetchErr):
		return KindFetch
	case errors.As(err, &ioErr):
		return KindIO
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}

package hls

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	"github.com/grafov/m3u8"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/utils"
)

type Rendition struct {
	URI       string
	Bandwidth uint32
}

type Segment struct {
	URI     string
	Ordinal int
}

// Resolver turns a playlist URL into the ordered segments of one rendition.
type Resolver struct {
	client utils.HTTPDoer
}

func NewResolver(client utils.HTTPDoer) *Resolver {
	return &Resolver{client: client}
}

func (r *Resolver) Resolve(ctx context.Context, playlistURL string) ([]Segment, error) {
	playlist, listType, base, err := r.load(ctx, playlistURL)
	if err != nil {
		return nil, err
	}
	if listType == m3u8.MASTER {
		master := playlist.(*m3u8.MasterPlaylist)
		chosen, err := selectRendition(renditionsOf(master, base))
		if err != nil {
			return nil, err
		}
		log.Debug().Str("op", "hls/playlist").Msgf("Selected rendition %s (%d bps)", chosen.URI, chosen.Bandwidth)
		playlist, listType, base, err = r.load(ctx, chosen.URI)
		if err != nil {
			return nil, err
		}
		if listType == m3u8.MASTER {
			return nil, &ParseError{URL: chosen.URI, Err: ErrNestedMaster}
		}
	}
	media := playlist.(*m3u8.MediaPlaylist)
	segments, err := segmentsOf(media, base)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}
	log.Debug().Str("op", "hls/playlist").Msgf("Resolved %d segments from %s", len(segments), base)
	return segments, nil
}

// load fetches and decodes one playlist. The returned base is the URL the document was
// finally served from, which relative URIs inside it resolve against.
func (r *Resolver) load(ctx context.Context, playlistURL string) (m3u8.Playlist, m3u8.ListType, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return nil, 0, nil, &FetchError{URL: playlistURL, Err: err}
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, 0, nil, &FetchError{URL: playlistURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, 0, nil, &FetchError{URL: playlistURL, Err: fmt.Errorf("server returned status code %d", resp.StatusCode)}
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, nil, &FetchError{URL: playlistURL, Err: fmt.Errorf("error reading playlist body: %w", err)}
	}
	var base *url.URL
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	} else if base, err = url.Parse(playlistURL); err != nil {
		return nil, 0, nil, &ParseError{URL: playlistURL, Err: err}
	}
	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(content), false)
	if err != nil {
		return nil, 0, nil, &ParseError{URL: playlistURL, Err: err}
	}
	if listType != m3u8.MASTER && listType != m3u8.MEDIA {
		return nil, 0, nil, &ParseError{URL: playlistURL, Err: fmt.Errorf("unknown playlist type %d", listType)}
	}
	return playlist, listType, base, nil
}

func renditionsOf(master *m3u8.MasterPlaylist, base *url.URL) []Rendition {
	var renditions []Rendition
	for _, variant := range master.Variants {
		if variant == nil || variant.Iframe || variant.URI == "" {
			continue
		}
		ref, err := url.Parse(variant.URI)
		if err != nil {
			log.Warn().Str("op", "hls/playlist").Msgf("Skipping rendition with bad URI %q: %v", variant.URI, err)
			continue
		}
		renditions = append(renditions, Rendition{
			URI:       base.ResolveReference(ref).String(),
			Bandwidth: variant.Bandwidth,
		})
	}
	return renditions
}

// selectRendition picks the highest declared bandwidth; among equals the first listed wins.
func selectRendition(renditions []Rendition) (Rendition, error) {
	if len(renditions) == 0 {
		return Rendition{}, ErrNoRenditions
	}
	sorted := make([]Rendition, len(renditions))
	copy(sorted, renditions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Bandwidth > sorted[j].Bandwidth
	})
	return sorted[0], nil
}

func segmentsOf(media *m3u8.MediaPlaylist, base *url.URL) ([]Segment, error) {
	var segments []Segment
	for _, seg := range media.Segments {
		if seg == nil {
			continue
		}
		ref, err := url.Parse(seg.URI)
		if err != nil {
			return nil, &ParseError{URL: base.String(), Err: fmt.Errorf("bad segment URI %q: %w", seg.URI, err)}
		}
		if seg.Key != nil && seg.Key.Method != "" && seg.Key.Method != "NONE" {
			log.Warn().Str("op", "hls/playlist").Msgf("Segment %s is encrypted (%s), storing it as served", seg.URI, seg.Key.Method)
		}
		segments = append(segments, Segment{
			URI:     base.ResolveReference(ref).String(),
			Ordinal: len(segments) + 1,
		})
	}
	return segments, nil
}

package hls

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"regexp"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/utils"
)

// rumbleBase is swapped out in tests.
var rumbleBase = "https://rumble.com"

var rumbleEmbedRegex = regexp.MustCompile(`"embedUrl":\s*"https://rumble\.com/embed/([^/"]+)/"`)

type rumbleEmbedResponse struct {
	U struct {
		HLS struct {
			URL string `json:"url"`
		} `json:"hls"`
	} `json:"u"`
	UA struct {
		HLS map[string]struct {
			URL string `json:"url"`
		} `json:"hls"`
	} `json:"ua"`
}

// Extractors lists the page extractors that turn a video page into a playlist URL.
var Extractors = []string{"rumble"}

// extractPlaylistURL replaces a video page URL on job with the playlist URL the page embeds.
func extractPlaylistURL(ctx context.Context, job *utils.Job, extractor string) error {
	switch strings.ToLower(extractor) {
	case "rumble":
		client := utils.NewHTTPClient(job.HTTPClientConfig)
		playlistURL, err := extractRumble(ctx, client, job.URL)
		if err != nil {
			return err
		}
		job.Metadata["pageURL"] = job.URL
		job.URL = playlistURL
		log.Debug().Str("op", "hls/extractors").Msgf("Extracted playlist %s", playlistURL)
		return nil
	default:
		return fmt.Errorf("unsupported extractor: %s", extractor)
	}
}

func extractRumble(ctx context.Context, client *utils.HTTPClient, pageURL string) (string, error) {
	body, err := getBody(ctx, client, pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch rumble page: %w", err)
	}
	matches := rumbleEmbedRegex.FindStringSubmatch(string(body))
	if len(matches) < 2 {
		return "", fmt.Errorf("could not find rumble video ID in page source")
	}
	videoID := matches[1]
	log.Debug().Str("op", "hls/extractors").Msgf("Found Rumble video ID: %s", videoID)

	client.SetHeader("Referer", rumbleBase+"/")
	body, err = getBody(ctx, client, fmt.Sprintf("%s/embedJS/u3/?request=video&ver=2&v=%s", rumbleBase, videoID))
	if err != nil {
		return "", fmt.Errorf("failed to fetch rumble embed data: %w", err)
	}
	var data rumbleEmbedResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("failed to decode rumble json: %w", err)
	}
	if data.U.HLS.URL != "" {
		return data.U.HLS.URL, nil
	}
	if auto, ok := data.UA.HLS["auto"]; ok && auto.URL != "" {
		return auto.URL, nil
	}
	for _, key := range slices.Sorted(maps.Keys(data.UA.HLS)) {
		if u := data.UA.HLS[key].URL; u != "" {
			return u, nil
		}
	}
	return "", fmt.Errorf("could not find m3u8 url in rumble json response")
}

func getBody(ctx context.Context, client utils.HTTPDoer, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, target)
	}
	return io.ReadAll(resp.Body)
}

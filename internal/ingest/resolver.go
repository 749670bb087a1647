package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// locator has no usable stream
	ErrNoSuitableStream = errors.New("no suitable stream found")
	// network failure while fetching a stream
	ErrDownloadFailed = errors.New("download failed")
	// lossless remux of the downloaded streams failed
	ErrMuxFailed = errors.New("mux failed")
)

// StreamDescriptor is one downloadable stream of a remote source, as
// reported by the resolver.
type StreamDescriptor struct {
	HasVideo     bool   `json:"hasVideo"`
	HasAudio     bool   `json:"hasAudio"`
	Container    string `json:"container"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	AudioBitrate int    `json:"audioBitrate,omitempty"` // in kilobits
	URL          string `json:"url"`
}

// Resolver lists the streams available for a remote source locator.
type Resolver interface {
	Resolve(ctx context.Context, locator string) ([]StreamDescriptor, error)
}

// HTTPResolver talks to an external resolver service over JSON/HTTP.
type HTTPResolver struct {
	logger  zerolog.Logger
	baseURL string
	client  *http.Client
}

func NewHTTPResolver(baseURL string, client *http.Client) *HTTPResolver {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &HTTPResolver{
		logger:  log.With().Str("module", "ingest").Str("submodule", "resolver").Logger(),
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, locator string) ([]StreamDescriptor, error) {
	if r.baseURL == "" {
		return nil, fmt.Errorf("%w: no resolver configured", ErrNoSuitableStream)
	}

	endpoint := fmt.Sprintf("%s/resolve?locator=%s", r.baseURL, url.QueryEscape(locator))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuitableStream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: resolver returned %d", ErrNoSuitableStream, resp.StatusCode)
	}

	var streams []StreamDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&streams); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuitableStream, err)
	}

	r.logger.Debug().Str("locator", locator).Int("streams", len(streams)).Msg("locator resolved")
	return streams, nil
}

// bestVideoOnly picks the video-only stream with the highest resolution,
// preferring mp4 containers so the mux stays a stream copy.
func bestVideoOnly(streams []StreamDescriptor) (StreamDescriptor, bool) {
	best := StreamDescriptor{}
	found := false

	for _, s := range streams {
		if !s.HasVideo || s.HasAudio || s.Container != "mp4" {
			continue
		}
		if !found || s.Height > best.Height {
			best = s
			found = true
		}
	}

	return best, found
}

// bestAudioOnly picks the audio-only stream with the highest bitrate.
func bestAudioOnly(streams []StreamDescriptor) (StreamDescriptor, bool) {
	best := StreamDescriptor{}
	found := false

	for _, s := range streams {
		if !s.HasAudio || s.HasVideo {
			continue
		}
		if !found || s.AudioBitrate > best.AudioBitrate {
			best = s
			found = true
		}
	}

	return best, found
}

// bestCombined picks the highest-resolution stream carrying both tracks.
func bestCombined(streams []StreamDescriptor) (StreamDescriptor, bool) {
	best := StreamDescriptor{}
	found := false

	for _, s := range streams {
		if !s.HasVideo || !s.HasAudio || s.Container != "mp4" {
			continue
		}
		if !found || s.Height > best.Height {
			best = s
			found = true
		}
	}

	return best, found
}

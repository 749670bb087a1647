package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/gmma/gmma/internal/store"
	"github.com/gmma/gmma/internal/transcode"
)

// Adapter normalizes both input modes into a single master file at a
// well-known path inside the asset directory. A failed ingestion leaves no
// partial master behind, temporary downloads are removed on every exit path.
type Adapter struct {
	logger   zerolog.Logger
	assets   store.Store
	resolver Resolver
	runner   transcode.Runner
	client   *http.Client

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewAdapter(assets store.Store, resolver Resolver, runner transcode.Runner) *Adapter {
	return &Adapter{
		logger:   log.With().Str("module", "ingest").Logger(),
		assets:   assets,
		resolver: resolver,
		runner:   runner,
		client:   &http.Client{},
		locks:    map[string]*sync.Mutex{},
	}
}

// LockAsset serializes ingestion per asset id, so re-ingestion never
// overwrites a master while the previous ingestion's encodes still read it.
// The returned func releases the lock.
func (a *Adapter) LockAsset(id string) func() {
	a.mu.Lock()
	lock, ok := a.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[id] = lock
	}
	a.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// ForgetAsset drops the lock entry of a deleted asset. An ingestion still
// in flight keeps its mutex and fails on the missing record.
func (a *Adapter) ForgetAsset(id string) {
	a.mu.Lock()
	delete(a.locks, id)
	a.mu.Unlock()
}

// Direct streams uploaded bytes verbatim to the master path. Codec errors
// are not detected here, they surface later as encode failures.
func (a *Adapter) Direct(ctx context.Context, id string, r io.Reader, format string) (string, error) {
	asset, err := a.assets.Get(id)
	if err != nil {
		return "", err
	}

	dir := a.assets.AssetDir(id)

	tmp, err := os.CreateTemp(dir, ".master-*.tmp")
	if err != nil {
		return "", fmt.Errorf("allocate master file: %w", err)
	}

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write master file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write master file: %w", err)
	}

	return a.publishMaster(asset, tmp.Name(), "master."+format)
}

// RemoteVideo resolves a locator to its best video-only and audio-only
// streams, downloads both and muxes them losslessly into the master.
func (a *Adapter) RemoteVideo(ctx context.Context, id string, locator string) (string, error) {
	asset, err := a.assets.Get(id)
	if err != nil {
		return "", err
	}

	streams, err := a.resolver.Resolve(ctx, locator)
	if err != nil {
		return "", err
	}

	video, ok := bestVideoOnly(streams)
	if !ok {
		return "", fmt.Errorf("%w: no video-only stream for %s", ErrNoSuitableStream, locator)
	}
	audio, ok := bestAudioOnly(streams)
	if !ok {
		return "", fmt.Errorf("%w: no audio-only stream for %s", ErrNoSuitableStream, locator)
	}

	dir := a.assets.AssetDir(id)
	videoTmp := filepath.Join(dir, ".remote-video.tmp")
	audioTmp := filepath.Join(dir, ".remote-audio.tmp")
	defer os.Remove(videoTmp)
	defer os.Remove(audioTmp)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.download(gctx, video.URL, videoTmp) })
	g.Go(func() error { return a.download(gctx, audio.URL, audioTmp) })
	if err := g.Wait(); err != nil {
		return "", err
	}

	muxed := filepath.Join(dir, ".muxed.tmp")
	defer os.Remove(muxed)
	if err := a.runner.Run(ctx, transcode.MuxArgs(videoTmp, audioTmp, muxed)...); err != nil {
		return "", fmt.Errorf("%w: %s", ErrMuxFailed, err)
	}

	return a.publishMaster(asset, muxed, "master.mp4")
}

// RemoteAudio resolves a locator to its best combined stream, downloads it
// and normalizes the audio track into the master.
func (a *Adapter) RemoteAudio(ctx context.Context, id string, locator string) (string, error) {
	asset, err := a.assets.Get(id)
	if err != nil {
		return "", err
	}

	streams, err := a.resolver.Resolve(ctx, locator)
	if err != nil {
		return "", err
	}

	combined, ok := bestCombined(streams)
	if !ok {
		return "", fmt.Errorf("%w: no combined stream for %s", ErrNoSuitableStream, locator)
	}

	dir := a.assets.AssetDir(id)
	container := filepath.Join(dir, ".remote-combined.tmp")
	defer os.Remove(container)

	if err := a.download(ctx, combined.URL, container); err != nil {
		return "", err
	}

	extracted := filepath.Join(dir, ".extracted.tmp")
	defer os.Remove(extracted)
	if err := a.runner.Run(ctx, transcode.ExtractAudioArgs(container, extracted)...); err != nil {
		return "", fmt.Errorf("%w: %s", transcode.ErrEncode, err)
	}

	return a.publishMaster(asset, extracted, "master.mp3")
}

func (a *Adapter) download(ctx context.Context, srcURL string, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDownloadFailed, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: source returned %d", ErrDownloadFailed, resp.StatusCode)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDownloadFailed, err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("%w: %s", ErrDownloadFailed, err)
	}

	return out.Close()
}

// publishMaster moves a fully written temp file onto the master path and
// flips the asset's master flag. Re-ingestion replaces a previous master,
// also when its extension changed.
func (a *Adapter) publishMaster(asset store.Asset, tmpPath string, filename string) (string, error) {
	dir := a.assets.AssetDir(asset.ID)
	masterPath := filepath.Join(dir, filename)

	if err := os.Rename(tmpPath, masterPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("publish master file: %w", err)
	}

	if asset.MasterFile != "" && asset.MasterFile != filename {
		_ = os.Remove(filepath.Join(dir, asset.MasterFile))
	}

	if err := a.assets.SetMaster(asset.ID, filename); err != nil {
		return "", err
	}

	a.logger.Info().Str("asset", asset.ID).Str("master", filename).Msg("master ingested")
	return masterPath, nil
}

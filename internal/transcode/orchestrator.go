package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/gmma/gmma/internal/ladder"
	"github.com/gmma/gmma/internal/store"
)

// transcode subprocess failure
var ErrEncode = errors.New("encode failed")

// Outcome is the per-rendition result of one orchestrator run.
type Outcome struct {
	Rendition string
	Err       error
}

// Orchestrator fans one master file out to the ladder's rendition encodes.
// Entries are independent, a failing encode never aborts its siblings, and
// a rendition is flipped present in the store only after its artifacts are
// fully written and moved to their final path.
type Orchestrator struct {
	logger zerolog.Logger
	assets store.Store
	runner Runner
	sem    *semaphore.Weighted
}

func NewOrchestrator(assets store.Store, runner Runner, maxEncodes int) *Orchestrator {
	if maxEncodes <= 0 {
		maxEncodes = 2
	}

	return &Orchestrator{
		logger: log.With().Str("module", "transcode").Str("submodule", "orchestrator").Logger(),
		assets: assets,
		runner: runner,
		sem:    semaphore.NewWeighted(int64(maxEncodes)),
	}
}

func (o *Orchestrator) Run(ctx context.Context, assetID string, masterPath string, specs []ladder.Spec) []Outcome {
	outcomes := make([]Outcome, len(specs))

	wg := sync.WaitGroup{}
	for i, spec := range specs {
		wg.Add(1)

		go func(i int, spec ladder.Spec) {
			defer wg.Done()

			err := o.encode(ctx, assetID, masterPath, spec)
			if err != nil {
				o.logger.Warn().Err(err).
					Str("asset", assetID).
					Str("rendition", spec.Name).
					Msg("rendition encode failed")
			}

			outcomes[i] = Outcome{Rendition: spec.Name, Err: err}
		}(i, spec)
	}
	wg.Wait()

	return outcomes
}

func (o *Orchestrator) encode(ctx context.Context, assetID string, masterPath string, spec ladder.Spec) error {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer o.sem.Release(1)

	dir := o.assets.RenditionsDir(assetID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("prepare renditions directory: %w", err)
	}

	if spec.Segmented {
		return o.encodeSegmented(ctx, assetID, masterPath, dir, spec)
	}
	return o.encodeFlat(ctx, assetID, masterPath, dir, spec)
}

func (o *Orchestrator) encodeSegmented(ctx context.Context, assetID string, masterPath string, dir string, spec ladder.Spec) error {
	tmp := filepath.Join(dir, "."+spec.Name+".tmp")
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("clear rendition scratch: %w", err)
	}
	if err := os.MkdirAll(tmp, 0755); err != nil {
		return fmt.Errorf("prepare rendition scratch: %w", err)
	}

	if err := o.runner.Run(ctx, EncodeArgs(spec, masterPath, tmp)...); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("%w: %s", ErrEncode, err)
	}

	final := filepath.Join(dir, spec.Name)
	if err := os.RemoveAll(final); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("clear previous rendition: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("publish rendition: %w", err)
	}

	return o.assets.SetRenditionPresent(assetID, spec.Name, path.Join("renditions", spec.Name, "index.m3u8"))
}

func (o *Orchestrator) encodeFlat(ctx context.Context, assetID string, masterPath string, dir string, spec ladder.Spec) error {
	tmp := filepath.Join(dir, "."+spec.Name+".tmp")
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("clear rendition scratch: %w", err)
	}

	if err := o.runner.Run(ctx, EncodeArgs(spec, masterPath, tmp)...); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %s", ErrEncode, err)
	}

	filename := spec.Name + "." + spec.Ext
	if err := os.Rename(tmp, filepath.Join(dir, filename)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish rendition: %w", err)
	}

	return o.assets.SetRenditionPresent(assetID, spec.Name, path.Join("renditions", filename))
}

package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gmma/gmma/internal/ladder"
	"github.com/gmma/gmma/internal/store"
)

// fakeRunner stands in for ffmpeg and writes the expected artifacts at the
// output path, which is always the final argument.
type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	failFor string
}

func (f *fakeRunner) Run(ctx context.Context, args ...string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	out := args[len(args)-1]

	if f.failFor != "" && strings.Contains(out, "."+f.failFor+".tmp") {
		return errors.New("simulated encode failure")
	}

	if strings.HasSuffix(out, "index.m3u8") {
		dir := filepath.Dir(out)
		if err := os.WriteFile(filepath.Join(dir, "index0.ts"), []byte("chunk"), 0644); err != nil {
			return err
		}
		return os.WriteFile(out, []byte("#EXTM3U\n#EXT-X-ENDLIST\n"), 0644)
	}

	return os.WriteFile(out, []byte("media"), 0644)
}

func setupOrchestrator(t *testing.T, runner Runner) (*Orchestrator, *store.FS, store.Asset, string) {
	t.Helper()

	assets, err := store.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	asset, err := assets.Create(store.KindVideo, store.Meta{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	masterPath := filepath.Join(assets.AssetDir(asset.ID), "master.mp4")
	if err := os.WriteFile(masterPath, []byte("master"), 0644); err != nil {
		t.Fatal(err)
	}

	return NewOrchestrator(assets, runner, 2), assets, asset, masterPath
}

func TestRunEncodesFullLadder(t *testing.T) {
	runner := &fakeRunner{}
	orchestrator, assets, asset, masterPath := setupOrchestrator(t, runner)

	specs := ladder.New(nil, 0).ForKind(store.KindVideo, true)
	outcomes := orchestrator.Run(context.Background(), asset.ID, masterPath, specs)

	if len(outcomes) != len(specs) {
		t.Fatalf("expected %d outcomes, got %d", len(specs), len(outcomes))
	}
	for i, outcome := range outcomes {
		if outcome.Rendition != specs[i].Name {
			t.Errorf("outcome %d reports %q, spec is %q", i, outcome.Rendition, specs[i].Name)
		}
		if outcome.Err != nil {
			t.Errorf("rendition %s failed: %v", outcome.Rendition, outcome.Err)
		}
	}

	got, err := assets.Get(asset.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	for _, spec := range specs {
		rendition, ok := got.Renditions[spec.Name]
		if !ok || !rendition.Present {
			t.Errorf("rendition %s not flipped present", spec.Name)
			continue
		}
		if _, err := os.Stat(filepath.Join(assets.AssetDir(asset.ID), filepath.FromSlash(rendition.Path))); err != nil {
			t.Errorf("rendition %s artifact missing: %v", spec.Name, err)
		}
	}
}

func TestRunFailureIsIndependent(t *testing.T) {
	runner := &fakeRunner{failFor: ladder.Standard}
	orchestrator, assets, asset, masterPath := setupOrchestrator(t, runner)

	specs := ladder.New(nil, 0).ForKind(store.KindVideo, true)
	outcomes := orchestrator.Run(context.Background(), asset.ID, masterPath, specs)

	for _, outcome := range outcomes {
		if outcome.Rendition == ladder.Standard {
			if !errors.Is(outcome.Err, ErrEncode) {
				t.Errorf("expected ErrEncode for standard, got %v", outcome.Err)
			}
			continue
		}
		if outcome.Err != nil {
			t.Errorf("sibling rendition %s failed: %v", outcome.Rendition, outcome.Err)
		}
	}

	got, err := assets.Get(asset.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if rendition := got.Renditions[ladder.Standard]; rendition.Present {
		t.Error("failed rendition must not be present")
	}
	if rendition := got.Renditions[ladder.High]; !rendition.Present {
		t.Error("high rendition must survive a sibling failure")
	}
	if rendition := got.Renditions[ladder.Audio]; !rendition.Present {
		t.Error("audio rendition must survive a sibling failure")
	}

	// no scratch directory may outlive a failed encode
	entries, err := os.ReadDir(assets.RenditionsDir(asset.ID))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			t.Errorf("scratch path %q left behind", entry.Name())
		}
	}
}

func TestRunFlatRendition(t *testing.T) {
	runner := &fakeRunner{}
	orchestrator, assets, _, _ := setupOrchestrator(t, runner)

	asset, err := assets.Create(store.KindAudio, store.Meta{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	masterPath := filepath.Join(assets.AssetDir(asset.ID), "master.mp3")
	if err := os.WriteFile(masterPath, []byte("master"), 0644); err != nil {
		t.Fatal(err)
	}

	specs := ladder.New(nil, 0).ForKind(store.KindAudio, false)
	outcomes := orchestrator.Run(context.Background(), asset.ID, masterPath, specs)

	if len(outcomes) != 1 || outcomes[0].Err != nil {
		t.Fatalf("unexpected outcomes: %+v", outcomes)
	}

	got, err := assets.Get(asset.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	rendition := got.Renditions[ladder.Audio]
	if !rendition.Present || rendition.Path != "renditions/audio.mp3" {
		t.Errorf("flat rendition not recorded: %+v", rendition)
	}
	if _, err := os.Stat(filepath.Join(assets.AssetDir(asset.ID), "renditions", "audio.mp3")); err != nil {
		t.Errorf("flat artifact missing: %v", err)
	}
}

func TestEncodeArgs(t *testing.T) {
	specs := ladder.New(nil, 0).ForKind(store.KindVideo, false)
	high := specs[0]

	args := strings.Join(EncodeArgs(high, "in.mp4", "/out/high"), " ")
	for _, want := range []string{
		"-c:v libx264", "-preset fast", "-s 1920x1080",
		"-hls_time 10", "-hls_playlist_type vod", "-f hls",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("encode args missing %q: %s", want, args)
		}
	}

	audio := ladder.New(nil, 0).ForKind(store.KindAudio, false)[0]
	args = strings.Join(EncodeArgs(audio, "in.webm", "/out/audio.mp3"), " ")
	if !strings.Contains(args, "-vn") || !strings.Contains(args, "-c:a libmp3lame") {
		t.Errorf("audio encode args: %s", args)
	}
	if strings.Contains(args, "-c:v") {
		t.Errorf("audio encode args carry a video codec: %s", args)
	}
}

// outputs land on .tmp paths, so ffmpeg cannot guess the container from the
// extension and every builder must name the output format explicitly
func TestMuxArgs(t *testing.T) {
	args := MuxArgs("/a/.remote-video.tmp", "/a/.remote-audio.tmp", "/a/.muxed.tmp")

	joined := strings.Join(args, " ")
	for _, want := range []string{"-c:v copy", "-c:a copy", "-movflags +faststart", "-f mp4"} {
		if !strings.Contains(joined, want) {
			t.Errorf("mux args missing %q: %s", want, joined)
		}
	}
	if args[len(args)-1] != "/a/.muxed.tmp" {
		t.Errorf("output must be the final argument: %s", joined)
	}
	if args[len(args)-2] != "mp4" || args[len(args)-3] != "-f" {
		t.Errorf("output format must be pinned right before the output: %s", joined)
	}
}

func TestExtractAudioArgs(t *testing.T) {
	args := ExtractAudioArgs("/a/.remote-combined.tmp", "/a/.extracted.tmp")

	joined := strings.Join(args, " ")
	for _, want := range []string{"-vn", "-c:a libmp3lame", "-f mp3"} {
		if !strings.Contains(joined, want) {
			t.Errorf("extract args missing %q: %s", want, joined)
		}
	}
	if args[len(args)-1] != "/a/.extracted.tmp" {
		t.Errorf("output must be the final argument: %s", joined)
	}
	if args[len(args)-2] != "mp3" || args[len(args)-3] != "-f" {
		t.Errorf("output format must be pinned right before the output: %s", joined)
	}
}

package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()

	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	return fs
}

func TestCreateGet(t *testing.T) {
	fs := newTestFS(t)

	created, err := fs.Create(KindVideo, Meta{Name: "clip", Uploader: "alice"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created asset has no id")
	}
	if created.MasterPresent {
		t.Error("new asset must not report a master")
	}

	got, err := fs.Get(created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Kind != KindVideo || got.Meta.Name != "clip" || got.Meta.Uploader != "alice" {
		t.Errorf("round-tripped asset mismatch: %+v", got)
	}

	if _, err := os.Stat(filepath.Join(fs.AssetDir(created.ID), recordFile)); err != nil {
		t.Errorf("record file missing: %v", err)
	}
}

func TestGetUnknown(t *testing.T) {
	fs := newTestFS(t)

	if _, err := fs.Get("no-such-asset"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	fs := newTestFS(t)

	ids := map[string]bool{}
	for i := 0; i < 3; i++ {
		asset, err := fs.Create(KindAudio, Meta{})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids[asset.ID] = true
	}

	assets, err := fs.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(assets) != 3 {
		t.Fatalf("expected 3 assets, got %d", len(assets))
	}
	for _, asset := range assets {
		if !ids[asset.ID] {
			t.Errorf("unexpected asset %q in listing", asset.ID)
		}
	}
}

func TestListSkipsBrokenRecords(t *testing.T) {
	fs := newTestFS(t)

	good, err := fs.Create(KindVideo, Meta{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	broken := filepath.Join(fs.root, "broken")
	if err := os.MkdirAll(broken, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(broken, recordFile), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	assets, err := fs.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(assets) != 1 || assets[0].ID != good.ID {
		t.Errorf("expected only the readable asset, got %+v", assets)
	}
}

func TestUpdateMetaMergesNonZeroFields(t *testing.T) {
	fs := newTestFS(t)

	asset, err := fs.Create(KindAudio, Meta{Name: "song", Artist: "band"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := fs.UpdateMeta(asset.ID, Meta{Album: "record", Duration: 183.2})
	if err != nil {
		t.Fatalf("UpdateMeta: %v", err)
	}

	if updated.Meta.Name != "song" || updated.Meta.Artist != "band" {
		t.Errorf("merge dropped existing fields: %+v", updated.Meta)
	}
	if updated.Meta.Album != "record" || updated.Meta.Duration != 183.2 {
		t.Errorf("merge missed patched fields: %+v", updated.Meta)
	}
}

func TestSetMaster(t *testing.T) {
	fs := newTestFS(t)

	asset, err := fs.Create(KindVideo, Meta{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := fs.SetMaster(asset.ID, "master.mp4"); err != nil {
		t.Fatalf("SetMaster: %v", err)
	}

	got, err := fs.Get(asset.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.MasterPresent || got.MasterFile != "master.mp4" {
		t.Errorf("master not recorded: %+v", got)
	}

	// repeating with the same filename is a no-op
	if err := fs.SetMaster(asset.ID, "master.mp4"); err != nil {
		t.Errorf("idempotent SetMaster: %v", err)
	}
}

func TestSetRenditionPresent(t *testing.T) {
	fs := newTestFS(t)

	asset, err := fs.Create(KindVideo, Meta{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := fs.SetRenditionPresent(asset.ID, "high", "renditions/high/index.m3u8"); err != nil {
		t.Fatalf("SetRenditionPresent: %v", err)
	}
	if err := fs.SetRenditionPresent(asset.ID, "high", "renditions/high/index.m3u8"); err != nil {
		t.Errorf("idempotent SetRenditionPresent: %v", err)
	}

	got, err := fs.Get(asset.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	rendition, ok := got.Renditions["high"]
	if !ok || !rendition.Present || rendition.Path != "renditions/high/index.m3u8" {
		t.Errorf("rendition not recorded: %+v", got.Renditions)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	fs := newTestFS(t)

	asset, err := fs.Create(KindVideo, Meta{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := fs.Delete(asset.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := fs.Get(asset.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("asset still readable after delete: %v", err)
	}

	// deleting again must not fail
	if err := fs.Delete(asset.ID); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const recordFile = "asset.json"

// FS keeps one directory per asset under root, with an asset.json record
// next to the master file and the renditions subtree:
//
//	<root>/<id>/asset.json
//	<root>/<id>/master.<ext>
//	<root>/<id>/renditions/<name>/index.m3u8 + chunks
//	<root>/<id>/renditions/<name>.<ext>
type FS struct {
	logger zerolog.Logger
	root   string
	mu     sync.RWMutex
}

func NewFS(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create library root: %w", err)
	}

	return &FS{
		logger: log.With().Str("module", "store").Logger(),
		root:   root,
	}, nil
}

func (s *FS) Create(kind Kind, meta Meta) (Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset := Asset{
		ID:         uuid.NewString(),
		Kind:       kind,
		Renditions: map[string]Rendition{},
		Meta:       meta,
	}

	dir := s.AssetDir(asset.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Asset{}, fmt.Errorf("allocate asset directory: %w", err)
	}

	if err := s.save(asset); err != nil {
		// directory and record are created together or not at all
		_ = os.RemoveAll(dir)
		return Asset{}, err
	}

	s.logger.Debug().Str("id", asset.ID).Str("kind", string(kind)).Msg("asset created")
	return asset, nil
}

func (s *FS) Get(id string) (Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.load(id)
}

func (s *FS) List() ([]Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read library root: %w", err)
	}

	assets := []Asset{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		asset, err := s.load(entry.Name())
		if err != nil {
			// directories without a record are leftovers of an
			// interrupted creation, skip them
			s.logger.Warn().Err(err).Str("id", entry.Name()).Msg("skipping unreadable asset record")
			continue
		}

		assets = append(assets, asset)
	}

	return assets, nil
}

func (s *FS) UpdateMeta(id string, patch Meta) (Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, err := s.load(id)
	if err != nil {
		return Asset{}, err
	}

	if patch.Name != "" {
		asset.Meta.Name = patch.Name
	}
	if patch.Artist != "" {
		asset.Meta.Artist = patch.Artist
	}
	if patch.Album != "" {
		asset.Meta.Album = patch.Album
	}
	if patch.Uploader != "" {
		asset.Meta.Uploader = patch.Uploader
	}
	if patch.Duration > 0 {
		asset.Meta.Duration = patch.Duration
	}

	if err := s.save(asset); err != nil {
		return Asset{}, err
	}

	return asset, nil
}

func (s *FS) SetMaster(id string, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, err := s.load(id)
	if err != nil {
		return err
	}

	if asset.MasterPresent && asset.MasterFile == filename {
		return nil
	}

	asset.MasterPresent = true
	asset.MasterFile = filename
	return s.save(asset)
}

func (s *FS) SetRenditionPresent(id string, name string, relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, err := s.load(id)
	if err != nil {
		return err
	}

	if current, ok := asset.Renditions[name]; ok && current.Present && current.Path == relPath {
		return nil
	}

	asset.Renditions[name] = Rendition{Present: true, Path: relPath}
	return s.save(asset)
}

func (s *FS) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// deleting an absent asset is a no-op, clients retry deletes
	if err := os.RemoveAll(s.AssetDir(id)); err != nil {
		return fmt.Errorf("remove asset directory: %w", err)
	}

	s.logger.Debug().Str("id", id).Msg("asset deleted")
	return nil
}

func (s *FS) AssetDir(id string) string {
	return filepath.Join(s.root, id)
}

func (s *FS) RenditionsDir(id string) string {
	return filepath.Join(s.root, id, "renditions")
}

func (s *FS) load(id string) (Asset, error) {
	data, err := os.ReadFile(filepath.Join(s.AssetDir(id), recordFile))
	if err != nil {
		if os.IsNotExist(err) {
			return Asset{}, ErrNotFound
		}
		return Asset{}, fmt.Errorf("read asset record: %w", err)
	}

	var asset Asset
	if err := json.Unmarshal(data, &asset); err != nil {
		return Asset{}, fmt.Errorf("decode asset record: %w", err)
	}

	if asset.ID == "" {
		asset.ID = id
	}
	if asset.Renditions == nil {
		asset.Renditions = map[string]Rendition{}
	}

	return asset, nil
}

// save writes the record via a temp file and rename, so readers never
// observe a partially written record and a crash right after save keeps
// the previous record intact.
func (s *FS) save(asset Asset) error {
	dir := s.AssetDir(asset.ID)

	tmp, err := os.CreateTemp(dir, ".asset-*.tmp")
	if err != nil {
		return fmt.Errorf("write asset record: %w", err)
	}

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(asset); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode asset record: %w", err)
	}

	// flush to disk before the rename, so a crash right after a successful
	// call cannot roll the record back
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("sync asset record: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write asset record: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(dir, recordFile)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write asset record: %w", err)
	}

	return nil
}

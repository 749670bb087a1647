package store

import (
	"errors"
)

type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

func (k Kind) Valid() bool {
	return k == KindAudio || k == KindVideo
}

// asset not found in the library
var ErrNotFound = errors.New("asset not found")

// Meta carries the display fields of an asset record. Zero values are
// treated as "not set" when merging updates.
type Meta struct {
	Name     string  `json:"name,omitempty"`
	Artist   string  `json:"artist,omitempty"`
	Album    string  `json:"album,omitempty"`
	Uploader string  `json:"uploader,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Rendition is the readiness record of one encoding of an asset. Path is
// relative to the asset directory and points at the manifest for segmented
// renditions or at the media file itself for flat ones.
type Rendition struct {
	Present bool   `json:"present"`
	Path    string `json:"path,omitempty"`
}

type Asset struct {
	ID            string               `json:"id"`
	Kind          Kind                 `json:"kind"`
	MasterPresent bool                 `json:"masterPresent"`
	MasterFile    string               `json:"masterFile,omitempty"`
	Renditions    map[string]Rendition `json:"renditions"`
	Meta          Meta                 `json:"meta"`
}

// Store is the asset record layer. All mutations are persisted before the
// call returns. Presence flags are the only synchronization signal between
// writers (ingest, transcode) and readers (streaming).
type Store interface {
	Create(kind Kind, meta Meta) (Asset, error)
	Get(id string) (Asset, error)
	List() ([]Asset, error)
	UpdateMeta(id string, patch Meta) (Asset, error)
	SetMaster(id string, filename string) error
	SetRenditionPresent(id string, name string, relPath string) error
	Delete(id string) error

	AssetDir(id string) string
	RenditionsDir(id string) string
}

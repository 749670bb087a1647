package api

import (
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-chi/chi"

	"github.com/gmma/gmma/internal/ladder"
	"github.com/gmma/gmma/internal/store"
)

// chunk and manifest names as ffmpeg writes them, nothing else gets served
var hlsFileRegexp = regexp.MustCompile(`^[0-9A-Za-z_-]+\.(m3u8|ts)$`)

func hlsContentType(name string) string {
	switch filepath.Ext(name) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/MP2T"
	default:
		return "application/octet-stream"
	}
}

// PlayFlat serves a single progressive file for an asset. Audio assets get
// their flat mp3 rendition when it is ready, otherwise the master is served
// as-is. Range requests are honored.
func (a *ApiManagerCtx) PlayFlat(w http.ResponseWriter, r *http.Request) {
	asset, err := a.assets.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.writeMappedError(w, err)
		return
	}

	dir := a.assets.AssetDir(asset.ID)

	if rendition, ok := asset.Renditions[ladder.Audio]; ok && rendition.Present && !strings.HasSuffix(rendition.Path, ".m3u8") {
		path := filepath.Join(dir, filepath.FromSlash(rendition.Path))
		serveFile(w, r, path, flatContentType(rendition.Path))
		return
	}

	if !asset.MasterPresent {
		writeError(w, http.StatusNotFound, "no media ingested for asset")
		return
	}

	serveFile(w, r, filepath.Join(dir, asset.MasterFile), flatContentType(asset.MasterFile))
}

// PlayAudioRendition serves strictly the flat audio rendition, it never
// falls back to the master.
func (a *ApiManagerCtx) PlayAudioRendition(w http.ResponseWriter, r *http.Request) {
	asset, err := a.assets.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.writeMappedError(w, err)
		return
	}

	rendition, ok := asset.Renditions[ladder.Audio]
	if !ok || !rendition.Present || strings.HasSuffix(rendition.Path, ".m3u8") {
		writeError(w, http.StatusNotFound, "rendition not available")
		return
	}

	path := filepath.Join(a.assets.AssetDir(asset.ID), filepath.FromSlash(rendition.Path))
	serveFile(w, r, path, flatContentType(rendition.Path))
}

// ServeManifest serves the HLS manifest of one quality of a video asset.
// Quality defaults to high; an absent rendition is a 404, never a partial
// manifest.
func (a *ApiManagerCtx) ServeManifest(w http.ResponseWriter, r *http.Request) {
	asset, quality, ok := a.lookupRendition(w, r)
	if !ok {
		return
	}

	path := filepath.Join(a.assets.AssetDir(asset.ID), filepath.FromSlash(asset.Renditions[quality].Path))

	w.Header().Set("Cache-Control", "no-cache")
	serveFile(w, r, path, hlsContentType(path))
}

// ServeChunk serves one chunk (or the manifest by name) out of a quality's
// rendition directory.
func (a *ApiManagerCtx) ServeChunk(w http.ResponseWriter, r *http.Request) {
	asset, quality, ok := a.lookupRendition(w, r)
	if !ok {
		return
	}

	file := chi.URLParam(r, "file")
	if !hlsFileRegexp.MatchString(file) {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}

	path := filepath.Join(a.assets.RenditionsDir(asset.ID), quality, file)
	serveFile(w, r, path, hlsContentType(file))
}

// lookupRendition resolves the asset and quality token of an HLS request.
// It writes the error response itself when the rendition is not servable.
func (a *ApiManagerCtx) lookupRendition(w http.ResponseWriter, r *http.Request) (store.Asset, string, bool) {
	asset, err := a.assets.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.writeMappedError(w, err)
		return store.Asset{}, "", false
	}

	quality := r.URL.Query().Get("quality")
	if quality == "" {
		quality = ladder.High
	}

	rendition, ok := asset.Renditions[quality]
	if !ok || !rendition.Present {
		writeError(w, http.StatusNotFound, "rendition not available")
		return store.Asset{}, "", false
	}

	return asset, quality, true
}

func flatContentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

package api

import (
	"context"
	"net/http"
	"regexp"

	"github.com/go-chi/chi"

	"github.com/gmma/gmma/internal/store"
)

var formatRegexp = regexp.MustCompile(`^[0-9a-z]{1,8}$`)

type remoteIngestRequest struct {
	Locator         string `json:"locator"`
	IncludeStandard bool   `json:"includeStandard"`
}

type ingestResponse struct {
	Asset      store.Asset       `json:"asset"`
	Renditions []renditionReport `json:"renditions"`
}

// Upload receives a master file in the request body and transcodes the
// rendition ladder for the asset's kind. The response reports per-rendition
// results; a failed rendition does not fail the request.
func (a *ApiManagerCtx) Upload(w http.ResponseWriter, r *http.Request) {
	if !a.editable(w) {
		return
	}

	id := chi.URLParam(r, "id")

	format := r.URL.Query().Get("format")
	if !formatRegexp.MatchString(format) {
		writeError(w, http.StatusBadRequest, "format query parameter is required")
		return
	}

	includeStandard := r.URL.Query().Get("standard") == "true"

	unlock := a.adapter.LockAsset(id)
	defer unlock()

	// The pipeline keeps going even when the client goes away, so it never
	// runs on the request context.
	ctx := context.Background()

	masterPath, err := a.adapter.Direct(ctx, id, r.Body, format)
	if err != nil {
		a.writeMappedError(w, err)
		return
	}

	a.transcodeAndRespond(ctx, w, id, masterPath, includeStandard)
}

// RemoteIngest fetches a master from a remote locator, then transcodes the
// rendition ladder. Video assets download the best split streams and mux
// them; audio assets extract an mp3 track from the best combined stream.
func (a *ApiManagerCtx) RemoteIngest(w http.ResponseWriter, r *http.Request) {
	if !a.editable(w) {
		return
	}

	request := remoteIngestRequest{}
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if request.Locator == "" {
		writeError(w, http.StatusBadRequest, "locator is required")
		return
	}

	id := chi.URLParam(r, "id")

	asset, err := a.assets.Get(id)
	if err != nil {
		a.writeMappedError(w, err)
		return
	}

	unlock := a.adapter.LockAsset(id)
	defer unlock()

	ctx := context.Background()

	var masterPath string
	switch asset.Kind {
	case store.KindVideo:
		masterPath, err = a.adapter.RemoteVideo(ctx, id, request.Locator)
	case store.KindAudio:
		masterPath, err = a.adapter.RemoteAudio(ctx, id, request.Locator)
	}
	if err != nil {
		a.writeMappedError(w, err)
		return
	}

	a.transcodeAndRespond(ctx, w, id, masterPath, request.IncludeStandard)
}

func (a *ApiManagerCtx) transcodeAndRespond(ctx context.Context, w http.ResponseWriter, id string, masterPath string, includeStandard bool) {
	asset, err := a.assets.Get(id)
	if err != nil {
		a.writeMappedError(w, err)
		return
	}

	specs := a.renditions.ForKind(asset.Kind, includeStandard)
	outcomes := a.orchestrator.Run(ctx, id, masterPath, specs)

	asset, err = a.assets.Get(id)
	if err != nil {
		a.writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Asset:      asset,
		Renditions: reportOutcomes(outcomes),
	})
}

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/gmma/gmma/internal/store"
)

type createAssetRequest struct {
	Kind     store.Kind `json:"kind"`
	Name     string     `json:"name"`
	Artist   string     `json:"artist"`
	Album    string     `json:"album"`
	Uploader string     `json:"uploader"`
}

func (a *ApiManagerCtx) Check(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"editing": a.config.AllowEdits,
	})
}

func (a *ApiManagerCtx) CreateAsset(w http.ResponseWriter, r *http.Request) {
	if !a.editable(w) {
		return
	}

	request := createAssetRequest{}
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !request.Kind.Valid() {
		writeError(w, http.StatusBadRequest, "kind must be audio or video")
		return
	}

	asset, err := a.assets.Create(request.Kind, store.Meta{
		Name:     request.Name,
		Artist:   request.Artist,
		Album:    request.Album,
		Uploader: request.Uploader,
	})
	if err != nil {
		a.writeMappedError(w, err)
		return
	}

	a.logger.Info().Str("id", asset.ID).Str("kind", string(asset.Kind)).Msg("asset created")
	writeJSON(w, http.StatusCreated, asset)
}

func (a *ApiManagerCtx) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := a.assets.List()
	if err != nil {
		a.writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, assets)
}

func (a *ApiManagerCtx) GetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := a.assets.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, asset)
}

func (a *ApiManagerCtx) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	if !a.editable(w) {
		return
	}

	meta := store.Meta{}
	if err := decodeJSON(r, &meta); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	asset, err := a.assets.UpdateMeta(chi.URLParam(r, "id"), meta)
	if err != nil {
		a.writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, asset)
}

func (a *ApiManagerCtx) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	if !a.editable(w) {
		return
	}

	id := chi.URLParam(r, "id")
	if err := a.assets.Delete(id); err != nil && !errors.Is(err, store.ErrNotFound) {
		a.writeMappedError(w, err)
		return
	}
	a.adapter.ForgetAsset(id)

	a.logger.Info().Str("id", id).Msg("asset deleted")
	w.WriteHeader(http.StatusNoContent)
}

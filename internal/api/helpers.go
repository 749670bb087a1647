package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gmma/gmma/internal/ingest"
	"github.com/gmma/gmma/internal/store"
	"github.com/gmma/gmma/internal/transcode"
)

type errResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errResponse{Error: message})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeMappedError translates pipeline sentinels into HTTP statuses.
func (a *ApiManagerCtx) writeMappedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "asset not found")
	case errors.Is(err, ingest.ErrNoSuitableStream):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ingest.ErrDownloadFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, ingest.ErrMuxFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, transcode.ErrEncode):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		a.logger.Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// editable guards mutating endpoints behind the allow-edits switch.
func (a *ApiManagerCtx) editable(w http.ResponseWriter) bool {
	if !a.config.AllowEdits {
		writeError(w, http.StatusForbidden, "editing is disabled")
		return false
	}
	return true
}

// serveFile answers plain and Range requests alike via http.ServeContent.
func serveFile(w http.ResponseWriter, r *http.Request, path string, contentType string) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "file not found")
		} else {
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", contentType)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

type renditionReport struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

func reportOutcomes(outcomes []transcode.Outcome) []renditionReport {
	reports := make([]renditionReport, 0, len(outcomes))
	for _, o := range outcomes {
		report := renditionReport{
			Name:  o.Rendition,
			Ready: o.Err == nil,
		}
		if o.Err != nil {
			report.Error = o.Err.Error()
		}
		reports = append(reports, report)
	}
	return reports
}
